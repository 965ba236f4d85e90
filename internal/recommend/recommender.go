/*
Package recommend asks a language model to pick the best tool from a short
candidate list and parses its structured answer.
*/
package recommend

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultModel       = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultTemperature = 0.7
)

// Recommender produces raw model output for a recommendation request.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (string, error)
}

// Config selects and configures the recommendation backend.
type Config struct {
	Provider     string
	Model        string
	APIKey       string
	APIKeyEnvVar string
	BaseURL      string
	Temperature  float32
	Logger       *zap.Logger
}

func (c Config) apiKey() (string, error) {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key, nil
	}
	envVar := strings.TrimSpace(c.APIKeyEnvVar)
	if envVar == "" {
		return "", fmt.Errorf("API key is required: set llm.apiKey or llm.apiKeyEnvVar")
	}
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("API key not found in env var %s", envVar)
	}
	return key, nil
}

// New builds the recommender for cfg.Provider.
func New(ctx context.Context, cfg Config) (Recommender, error) {
	key, err := cfg.apiKey()
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIRecommender(ctx, cfg.Model, key, cfg.BaseURL, cfg.Temperature, cfg.Logger)
	case ProviderGemini:
		return NewGeminiRecommender(ctx, cfg.Model, key, cfg.Temperature, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
