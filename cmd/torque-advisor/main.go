/*
Package main is the entry point for the torque-advisor CLI.

torque-advisor is a conversational recommender for industrial tightening
tools. It narrows a product catalog with hard constraints taken from the
question, ranks what is left and either asks a clarifying question or
recommends one tool.

Usage:
  torque-advisor [command]

Available Commands:
  init        Create a configuration file
  serve       Run the HTTP turn API
  mcp         Run the MCP server (stdio transport)
  ask         Ask for a tool recommendation
  index       Precompute catalog embeddings
  stats       Show turn analytics
  verify      Verify configuration and catalog
  version     Show version information

Examples:
  # Write a config and check it
  torque-advisor init && torque-advisor verify

  # Serve the turn API
  torque-advisor serve --listen :8080

  # One-shot question
  torque-advisor ask "cordless nutrunner 18V for 50Nm"
*/
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/khanglvm/torque-advisor/internal/cli"
	"github.com/khanglvm/torque-advisor/internal/version"
)

// Version information (set via ldflags during build)
var (
	buildVersion = "dev"
	commit       = "none"
	date         = "unknown"
)

func main() {
	// A missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	version.Version, version.Commit, version.Date = buildVersion, commit, date

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
