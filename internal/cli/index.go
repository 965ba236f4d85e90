package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/storage"
)

// NewIndexCmd creates the 'index' command for precomputing catalog embeddings.
func NewIndexCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Precompute catalog embeddings",
		Long: `Embed every catalog tool and cache the vectors in the local database.

Each tool is embedded from its name, use case, torque range, application
type and specifications. Vectors are keyed by a hash of that text and the
embedding model, so re-running only embeds tools that changed.`,
		Example: `  torque-advisor index
  torque-advisor index --config ./advisor.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runIndex(ctx, opts, cmd)
		},
	}

	return cmd
}

func runIndex(ctx context.Context, opts *globalOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(opts.debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	store := storage.NewStorage(cfg.Settings.DataDir, logger)
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to open embedding cache: %w", err)
	}
	defer store.Close()

	a := &app{cfg: cfg, logger: logger, catalog: c, storage: store}
	embedder, err := a.embedder()
	if err != nil {
		return err
	}
	idx, stats, err := a.buildIndex(ctx, embedder)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Indexed %d tools (dim %d)\n", idx.Len(), idx.Dim())
	fmt.Fprintf(out, "  Cached:   %d\n", stats.Cached)
	fmt.Fprintf(out, "  Embedded: %d\n", stats.Embedded)
	fmt.Fprintf(out, "  Database: %s\n", store.Path())
	return nil
}
