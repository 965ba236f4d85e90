package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/clarify"
	"github.com/khanglvm/torque-advisor/internal/config"
)

// NewVerifyCmd creates the 'verify' command for verifying configuration.
func NewVerifyCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify configuration and catalog",
		Long: `Verify that the configuration is valid, the catalog loads and the
API keys needed by the configured providers are present.`,
		Example: `  torque-advisor verify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd.OutOrStdout())
		},
	}

	return cmd
}

// runVerify validates the configuration and catalog.
func runVerify(opts *globalOptions, out io.Writer) error {
	configPath := opts.configPath
	if configPath == "" {
		p, err := config.GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		configPath = p
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		fmt.Fprintf(out, "- Config: %s not found, using defaults\n", configPath)
	} else {
		fmt.Fprintf(out, "✓ Config: %s\n", configPath)
	}

	c, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		fmt.Fprintf(out, "✗ Catalog: %v\n", err)
		return fmt.Errorf("catalog error: %w", err)
	}
	fmt.Fprintf(out, "✓ Catalog: %s (%d tools, %d keywords)\n",
		cfg.Catalog.Path, c.Len(), clarify.NewVocabulary(c).Len())

	if key := cfg.EmbeddingAPIKey(); key != "" {
		fmt.Fprintf(out, "✓ Embedding key: %s\n", cfg.Embedding.APIKeyEnvVar)
	} else if cfg.Embedding.Mode == config.ModeSemantic || cfg.Embedding.Mode == config.ModeHybrid {
		fmt.Fprintf(out, "✗ Embedding key: %s is not set (required for %s mode)\n", cfg.Embedding.APIKeyEnvVar, cfg.Embedding.Mode)
	} else {
		fmt.Fprintf(out, "- Embedding key: not set, keyword ranking will be used\n")
	}

	if cfg.LLM.APIKey != "" || lookupEnv(cfg.LLM.APIKeyEnvVar) {
		fmt.Fprintf(out, "✓ %s key: %s\n", cfg.LLM.Provider, cfg.LLM.APIKeyEnvVar)
	} else {
		fmt.Fprintf(out, "✗ %s key: %s is not set\n", cfg.LLM.Provider, cfg.LLM.APIKeyEnvVar)
	}

	return nil
}

func lookupEnv(name string) bool {
	if name == "" {
		return false
	}
	return os.Getenv(name) != ""
}
