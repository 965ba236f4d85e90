package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/torque-advisor/internal/config"
)

// NewInitCmd creates the 'init' command for writing a default configuration.
func NewInitCmd(opts *globalOptions) *cobra.Command {
	var (
		force       bool
		catalogPath string
		provider    string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long: `Write a configuration file with default settings.

The file is written atomically and an existing file is kept as .bak.
API keys are read from environment variables (OPENAI_API_KEY,
GEMINI_API_KEY) unless set in the file.`,
		Example: `  # Write ~/.torque-advisor.json
  torque-advisor init

  # Use Gemini and a custom catalog
  torque-advisor init --provider gemini --catalog /srv/tools.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := opts.configPath
			if configPath == "" {
				p, err := config.GetDefaultConfigPath()
				if err != nil {
					return fmt.Errorf("failed to get config path: %w", err)
				}
				configPath = p
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config already exists: %s (use --force to overwrite)", configPath)
			}

			cfg := config.NewConfig()
			if catalogPath != "" {
				cfg.Catalog.Path = catalogPath
			}
			if provider != "" {
				cfg.LLM.Provider = provider
				if provider == "gemini" {
					cfg.LLM.APIKeyEnvVar = config.EnvGemini
				}
			}

			if err := config.Save(cfg, configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Wrote %s\n", configPath)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  torque-advisor verify")
			fmt.Fprintln(out, "  torque-advisor index")
			fmt.Fprintln(out, "  torque-advisor serve")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog JSON path")
	cmd.Flags().StringVar(&provider, "provider", "", "Recommendation provider (openai or gemini)")

	return cmd
}
