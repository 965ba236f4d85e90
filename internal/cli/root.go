/*
Package cli implements the command-line interface for torque-advisor.

Each command is implemented as a separate function that returns a *cobra.Command,
allowing for clean separation and easy testing.
*/
package cli

import (
	"github.com/spf13/cobra"

	"github.com/khanglvm/torque-advisor/internal/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd creates the torque-advisor root command with all subcommands.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "torque-advisor",
		Short: "Conversational recommender for industrial tightening tools",
		Long: `torque-advisor recommends nutrunners, screwdrivers, spindles and torque
verification equipment from a product catalog.

Each turn extracts hard constraints from the question (voltage, torque,
IP rating, application type), narrows the catalog to tools that satisfy
them, ranks the survivors by similarity and either asks a clarifying
question or lets a language model explain the best match.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default ~/.torque-advisor.json)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable development logging")

	rootCmd.AddCommand(NewInitCmd(opts))
	rootCmd.AddCommand(NewServeCmd(opts))
	rootCmd.AddCommand(NewMCPCmd(opts))
	rootCmd.AddCommand(NewAskCmd(opts))
	rootCmd.AddCommand(NewIndexCmd(opts))
	rootCmd.AddCommand(NewStatsCmd(opts))
	rootCmd.AddCommand(NewVerifyCmd(opts))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
