package config

import (
	"errors"
	"fmt"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Catalog == nil || c.Catalog.Path == "" {
		errs = append(errs, errors.New("catalog.path is required"))
	}

	if e := c.Embedding; e != nil {
		switch e.Mode {
		case ModeAuto, ModeSemantic, ModeKeyword, ModeHybrid:
		default:
			errs = append(errs, fmt.Errorf("embedding.mode %q: must be auto, semantic, keyword or hybrid", e.Mode))
		}
		if e.SemanticWeight < 0 || e.SemanticWeight > 1 {
			errs = append(errs, fmt.Errorf("embedding.semanticWeight %v: must be between 0 and 1", e.SemanticWeight))
		}
		if e.RequestsPerSecond < 0 {
			errs = append(errs, errors.New("embedding.requestsPerSecond must not be negative"))
		}
		if e.BatchSize < 0 || e.Concurrency < 0 || e.CacheSize < 0 {
			errs = append(errs, errors.New("embedding batchSize, concurrency and cacheSize must not be negative"))
		}
	}

	if l := c.LLM; l != nil {
		switch l.Provider {
		case "openai", "gemini":
		default:
			errs = append(errs, fmt.Errorf("llm.provider %q: must be openai or gemini", l.Provider))
		}
		if l.Temperature < 0 || l.Temperature > 2 {
			errs = append(errs, fmt.Errorf("llm.temperature %v: must be between 0 and 2", l.Temperature))
		}
	}

	if c.Session != nil && c.Session.TimeoutMinutes < 0 {
		errs = append(errs, errors.New("session.timeoutMinutes must not be negative"))
	}
	if c.Server != nil && c.Server.RequestTimeoutSeconds < 0 {
		errs = append(errs, errors.New("server.requestTimeoutSeconds must not be negative"))
	}
	if s := c.Settings; s != nil {
		if s.UpstreamTimeoutSeconds < 0 || s.TopK < 0 || s.HistoryRetentionDays < 0 {
			errs = append(errs, errors.New("settings values must not be negative"))
		}
	}

	return errors.Join(errs...)
}
