package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanglvm/torque-advisor/internal/mcp"
	"github.com/khanglvm/torque-advisor/internal/version"
)

// NewMCPCmd creates the 'mcp' command for running the MCP server.
//
// The server exposes advisor_chat, advisor_list_tools and
// advisor_session_stats via stdio transport.
func NewMCPCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the torque-advisor MCP server using stdio transport.

This server exposes 3 tools to AI clients:
  • advisor_chat          - Run one conversational turn
  • advisor_list_tools    - List catalog tools matching stated constraints
  • advisor_session_stats - Report live session counts`,
		Example: `  # Run directly
  torque-advisor mcp

  # Register with an MCP client
  claude mcp add torque-advisor -- torque-advisor mcp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(opts)
		},
	}

	return cmd
}

// runMCP serves MCP requests on stdin/stdout until stdin closes or a signal arrives.
func runMCP(opts *globalOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a, err := buildApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.evictLoop(ctx)

	server := mcp.NewServer(a.advisor, a.sessions, a.catalog, version.Version, a.logger)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
