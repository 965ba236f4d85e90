package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/httpapi"
	"github.com/khanglvm/torque-advisor/internal/metrics"
	"github.com/khanglvm/torque-advisor/internal/version"
)

// NewServeCmd creates the 'serve' command for running the HTTP turn API.
func NewServeCmd(opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP turn API",
		Long: `Start the torque-advisor HTTP server.

Routes:
  • POST   /chat            - Run one conversational turn
  • GET    /health          - Liveness check
  • GET    /sessions/stats  - Live session counts
  • DELETE /sessions/{id}   - Clear a session
  • GET    /metrics         - Prometheus metrics`,
		Example: `  # Listen on the configured address
  torque-advisor serve

  # Ask a question
  curl -s localhost:8080/chat -d '{"question":"18V cordless nutrunner for 50Nm"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, listen)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides server.listen)")

	return cmd
}

// runServe starts the HTTP server and shuts down gracefully on SIGINT/SIGTERM.
func runServe(opts *globalOptions, listen string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if listen == "" {
		listen = a.cfg.Server.Listen
	}

	go a.evictLoop(ctx)

	router := httpapi.NewRouter(httpapi.Config{
		Advisor:        a.advisor,
		Sessions:       a.sessions,
		Metrics:        metrics.Handler(a.registry),
		Logger:         a.logger,
		RequestTimeout: a.cfg.RequestTimeout(),
		Version:        version.Version,
	})

	if err := httpapi.Serve(ctx, listen, router, a.logger); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	a.logger.Info("shutdown complete", zap.Int("active_sessions", a.sessions.Stats().ActiveSessions))
	return nil
}
