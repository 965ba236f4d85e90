package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Catalog == nil || cfg.Catalog.Path != DefaultCatalogPath {
		t.Errorf("default catalog path should be %q, got %+v", DefaultCatalogPath, cfg.Catalog)
	}

	if cfg.Embedding.Mode != ModeAuto {
		t.Errorf("default embedding mode should be %q, got %q", ModeAuto, cfg.Embedding.Mode)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("default provider should be openai, got %q", cfg.LLM.Provider)
	}

	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("default temperature should be 0.7, got %v", cfg.LLM.Temperature)
	}

	if cfg.SessionTimeout() != 30*time.Minute {
		t.Errorf("default session timeout should be 30m, got %v", cfg.SessionTimeout())
	}

	if cfg.Settings.TopK != 3 {
		t.Errorf("default topK should be 3, got %d", cfg.Settings.TopK)
	}

	if !cfg.Settings.Analytics {
		t.Error("analytics should be enabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".torque-advisor.json")

	cfg := NewConfig()
	cfg.Catalog.Path = "/srv/catalog/tools.json"
	cfg.Embedding.Mode = ModeHybrid
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-2.5-flash"
	cfg.Session.TimeoutMinutes = 5

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if loaded.Catalog.Path != "/srv/catalog/tools.json" {
		t.Errorf("expected catalog path to round-trip, got %q", loaded.Catalog.Path)
	}
	if loaded.Embedding.Mode != ModeHybrid {
		t.Errorf("expected hybrid mode, got %q", loaded.Embedding.Mode)
	}
	if loaded.LLM.Provider != "gemini" || loaded.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("unexpected llm section: %+v", loaded.LLM)
	}
	if loaded.SessionTimeout() != 5*time.Minute {
		t.Errorf("expected 5m session timeout, got %v", loaded.SessionTimeout())
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(`{"catalog": {"path": "tools.json"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Catalog.Path != "tools.json" {
		t.Errorf("catalog path should be kept, got %q", cfg.Catalog.Path)
	}
	if cfg.Embedding == nil || cfg.LLM == nil || cfg.Session == nil || cfg.Server == nil || cfg.Settings == nil {
		t.Fatal("missing sections should be filled with defaults")
	}
	if cfg.Server.Listen != DefaultListen {
		t.Errorf("expected default listen address, got %q", cfg.Server.Listen)
	}
}

func TestLoadNonExistent(t *testing.T) {
	_, err := LoadFrom("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("LoadFrom should fail for non-existent file")
	}

	var notFound *ConfigNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ConfigNotFoundError, got %T", err)
	}
	if !strings.Contains(err.Error(), "torque-advisor init") {
		t.Errorf("error should hint at init, got %q", err.Error())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(`{broken`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(configPath)
	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidConfigError, got %v", err)
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Errorf("expected the JSON syntax error to be wrapped, got %v", err)
	}
	if !strings.Contains(err.Error(), configPath+".bak") {
		t.Errorf("error should point at the backup file, got %q", err.Error())
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Catalog.Path != DefaultCatalogPath {
		t.Errorf("expected defaults, got catalog path %q", cfg.Catalog.Path)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvCatalog, "/env/tools.json")
	t.Setenv(EnvListen, ":9999")

	cfg := NewConfig()
	cfg.ApplyEnv()

	if cfg.Catalog.Path != "/env/tools.json" {
		t.Errorf("catalog path should come from env, got %q", cfg.Catalog.Path)
	}
	if cfg.Server.Listen != ":9999" {
		t.Errorf("listen address should come from env, got %q", cfg.Server.Listen)
	}
}

func TestEmbeddingAPIKey(t *testing.T) {
	t.Setenv("CUSTOM_EMBED_KEY", "from-env")

	cfg := NewConfig()
	cfg.Embedding.APIKeyEnvVar = "CUSTOM_EMBED_KEY"
	if got := cfg.EmbeddingAPIKey(); got != "from-env" {
		t.Errorf("expected key from env, got %q", got)
	}

	cfg.Embedding.APIKey = "inline"
	if got := cfg.EmbeddingAPIKey(); got != "inline" {
		t.Errorf("inline key should win, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty catalog", func(c *Config) { c.Catalog.Path = "" }, "catalog.path"},
		{"unknown mode", func(c *Config) { c.Embedding.Mode = "fuzzy" }, "embedding.mode"},
		{"weight too high", func(c *Config) { c.Embedding.SemanticWeight = 1.5 }, "semanticWeight"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "local" }, "llm.provider"},
		{"temperature out of range", func(c *Config) { c.LLM.Temperature = 3 }, "llm.temperature"},
		{"negative timeout", func(c *Config) { c.Session.TimeoutMinutes = -1 }, "session.timeoutMinutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := NewConfig()
	cfg.Catalog.Path = ""
	cfg.LLM.Provider = "local"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(err.Error(), "catalog.path") || !strings.Contains(err.Error(), "llm.provider") {
		t.Errorf("both problems should be reported, got %v", err)
	}
}

func TestPermissionErrorMessage(t *testing.T) {
	err := &PermissionError{Path: "/etc/advisor.json", Op: "write", Fix: "chmod u+w /etc/advisor.json", Details: "The advisor config is read-only"}

	msg := err.Error()
	for _, want := range []string{"cannot write advisor config /etc/advisor.json", "read-only", "💡 Try: chmod u+w"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}
