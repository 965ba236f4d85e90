package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/storage"
)

// NewStatsCmd creates the 'stats' command for turn analytics.
func NewStatsCmd(opts *globalOptions) *cobra.Command {
	var (
		days   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show turn analytics",
		Long: `Summarise recorded turns: how many ended in a recommendation, a
clarification or an error, and which tools were recommended most.

Queries and session ids are stored as hashes only.`,
		Example: `  torque-advisor stats
  torque-advisor stats --days 30 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			store := storage.NewStorage(cfg.Settings.DataDir, zap.NewNop())
			if err := store.Init(); err != nil {
				return fmt.Errorf("failed to open analytics database: %w", err)
			}
			defer store.Close()

			summary, err := store.TurnSummary(time.Now().AddDate(0, 0, -days))
			if err != nil {
				return fmt.Errorf("failed to read turn history: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(summary, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Turns in the last %d days: %d (%d sessions)\n", days, summary.Total, summary.Sessions)
			for _, kind := range sortedCounts(summary.ByKind) {
				fmt.Fprintf(out, "  %-20s %d\n", kind, summary.ByKind[kind])
			}
			if len(summary.TopTools) > 0 {
				fmt.Fprintln(out, "\nMost recommended:")
				for _, tool := range sortedCounts(summary.TopTools) {
					fmt.Fprintf(out, "  %-40s %d\n", tool, summary.TopTools[tool])
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days to summarise")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

// sortedCounts returns keys by descending count, then name.
func sortedCounts(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
