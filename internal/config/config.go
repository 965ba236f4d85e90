/*
Package config handles loading, validating and saving torque-advisor configuration.

Configuration is stored in ~/.torque-advisor.json. Missing sections fall back
to defaults and a few environment variables override file values.

Schema:
  {
    "catalog":   {"path": "data/tools.json"},
    "embedding": {"mode": "auto", "model": "text-embedding-3-small", "apiKeyEnvVar": "OPENAI_API_KEY"},
    "llm":       {"provider": "openai", "model": "gpt-4o-mini", "temperature": 0.7},
    "session":   {"timeoutMinutes": 30},
    "server":    {"listen": ":8080", "requestTimeoutSeconds": 90},
    "settings":  {"upstreamTimeoutSeconds": 60, "topK": 3, "analytics": true}
  }
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Embedding modes.
const (
	ModeAuto     = "auto"
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
	ModeHybrid   = "hybrid"
)

// Defaults for the catalog location and listen address.
const (
	DefaultCatalogPath = "data/tools.json"
	DefaultListen      = ":8080"
)

// Environment overrides.
const (
	EnvCatalog = "TORQUE_ADVISOR_CATALOG"
	EnvListen  = "TORQUE_ADVISOR_LISTEN"
	EnvOpenAI  = "OPENAI_API_KEY"
	EnvGemini  = "GEMINI_API_KEY"
)

const configFileName = ".torque-advisor.json"

// Config represents the root configuration structure.
type Config struct {
	Catalog   *CatalogConfig   `json:"catalog,omitempty"`
	Embedding *EmbeddingConfig `json:"embedding,omitempty"`
	LLM       *LLMConfig       `json:"llm,omitempty"`
	Session   *SessionConfig   `json:"session,omitempty"`
	Server    *ServerConfig    `json:"server,omitempty"`
	Settings  *Settings        `json:"settings,omitempty"`
}

// CatalogConfig locates the tool catalog.
type CatalogConfig struct {
	// Path is the JSON array of tools.
	Path string `json:"path"`
}

// EmbeddingConfig configures the similarity ranker.
type EmbeddingConfig struct {
	// Mode is one of auto, semantic, keyword or hybrid. Auto picks semantic
	// when an API key is available and keyword otherwise.
	Mode              string  `json:"mode,omitempty"`
	Model             string  `json:"model,omitempty"`
	BaseURL           string  `json:"baseUrl,omitempty"`
	APIKey            string  `json:"apiKey,omitempty"`
	APIKeyEnvVar      string  `json:"apiKeyEnvVar,omitempty"`
	RequestsPerSecond float64 `json:"requestsPerSecond,omitempty"`
	BatchSize         int     `json:"batchSize,omitempty"`
	Concurrency       int     `json:"concurrency,omitempty"`
	CacheSize         int     `json:"cacheSize,omitempty"`
	// SemanticWeight is the semantic share of hybrid scores.
	SemanticWeight float64 `json:"semanticWeight,omitempty"`
}

// LLMConfig configures the recommendation model.
type LLMConfig struct {
	Provider     string  `json:"provider,omitempty"`
	Model        string  `json:"model,omitempty"`
	BaseURL      string  `json:"baseUrl,omitempty"`
	APIKey       string  `json:"apiKey,omitempty"`
	APIKeyEnvVar string  `json:"apiKeyEnvVar,omitempty"`
	Temperature  float32 `json:"temperature"`
}

// SessionConfig configures conversation state.
type SessionConfig struct {
	TimeoutMinutes int `json:"timeoutMinutes,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Listen                string `json:"listen,omitempty"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds,omitempty"`
}

// Settings contains global options.
type Settings struct {
	// UpstreamTimeoutSeconds bounds each embedding or recommendation call.
	UpstreamTimeoutSeconds int `json:"upstreamTimeoutSeconds,omitempty"`

	// TopK is how many neighbours unfiltered retrieval considers.
	TopK int `json:"topK,omitempty"`

	// DataDir holds the SQLite database. Empty means ~/.torque-advisor.
	DataDir string `json:"dataDir,omitempty"`

	// Analytics enables turn history recording.
	Analytics bool `json:"analytics"`

	// HistoryRetentionDays is how long turn history is kept.
	HistoryRetentionDays int `json:"historyRetentionDays,omitempty"`
}

// NewConfig creates a configuration with every section set to defaults.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills missing sections and zero fields.
func (c *Config) applyDefaults() {
	if c.Catalog == nil {
		c.Catalog = &CatalogConfig{}
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = DefaultCatalogPath
	}

	if c.Embedding == nil {
		c.Embedding = &EmbeddingConfig{}
	}
	e := c.Embedding
	if e.Mode == "" {
		e.Mode = ModeAuto
	}
	if e.Model == "" {
		e.Model = "text-embedding-3-small"
	}
	if e.APIKeyEnvVar == "" {
		e.APIKeyEnvVar = EnvOpenAI
	}
	if e.BatchSize == 0 {
		e.BatchSize = 64
	}
	if e.Concurrency == 0 {
		e.Concurrency = 4
	}
	if e.CacheSize == 0 {
		e.CacheSize = 1024
	}
	if e.SemanticWeight == 0 {
		e.SemanticWeight = 0.7
	}

	if c.LLM == nil {
		c.LLM = &LLMConfig{Temperature: 0.7}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.APIKeyEnvVar == "" {
		c.LLM.APIKeyEnvVar = EnvOpenAI
		if c.LLM.Provider == "gemini" {
			c.LLM.APIKeyEnvVar = EnvGemini
		}
	}

	if c.Session == nil {
		c.Session = &SessionConfig{}
	}
	if c.Session.TimeoutMinutes == 0 {
		c.Session.TimeoutMinutes = 30
	}

	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = 90
	}

	if c.Settings == nil {
		c.Settings = &Settings{Analytics: true}
	}
	if c.Settings.UpstreamTimeoutSeconds == 0 {
		c.Settings.UpstreamTimeoutSeconds = 60
	}
	if c.Settings.TopK == 0 {
		c.Settings.TopK = 3
	}
	if c.Settings.HistoryRetentionDays == 0 {
		c.Settings.HistoryRetentionDays = 90
	}
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvCatalog); v != "" {
		c.Catalog.Path = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Server.Listen = v
	}
}

// EmbeddingAPIKey returns the embedding key from the file or its env var.
func (c *Config) EmbeddingAPIKey() string {
	if c.Embedding.APIKey != "" {
		return c.Embedding.APIKey
	}
	return os.Getenv(c.Embedding.APIKeyEnvVar)
}

// SessionTimeout returns the session inactivity window.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// UpstreamTimeout returns the per-call upstream timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Settings.UpstreamTimeoutSeconds) * time.Second
}

// RequestTimeout returns the HTTP request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// HistoryRetention returns how long turn history is kept.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Settings.HistoryRetentionDays) * 24 * time.Hour
}

// GetDefaultConfigPath returns the path to ~/.torque-advisor.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configFileName), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}
