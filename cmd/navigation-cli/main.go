// Package main provides the CLI entry point for the navigation agent.
//
// The navigation agent drives a browser through a natural-language task
// by interleaving model calls, structured page actions, and remote tool
// servers, with record/replay and credential/value resolution layered
// underneath.
//
// # Basic Usage
//
// Run a single task against a configured site:
//
//	navigation-cli run --config nav.yaml --site united --task "find flight status for UA123"
//
// Run a batch of tasks from a CSV file with bounded concurrency:
//
//	navigation-cli batch --config nav.yaml --file tasks.csv --concurrency 4
//
// List recordings saved by a previous run:
//
//	navigation-cli list-recorded-tasks --config nav.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	commit     = "none"
	configPath string
)

func main() {
	_ = godotenv.Load() // optional; missing .env is not an error

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "navigation-cli",
		Short: "Drive a browser through natural-language tasks",
		Long: `navigation-cli drives a browser through natural-language tasks by
interleaving model calls, structured page actions, and remote tool
servers, with record/replay and credential resolution underneath.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "nav.yaml", "path to the navigation config file")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildBatchCmd(),
		buildListRecordedTasksCmd(),
	)
	return rootCmd
}
