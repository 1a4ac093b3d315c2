package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tollbooth-hq/tollbooth/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tollbooth",
	Short: "Tollbooth - budget admission control for LLM APIs",
	Long: `Tollbooth is an OpenAI-compatible proxy that enforces per-user spending
budgets before requests reach an LLM provider.

Each request reserves its worst-case cost from the caller's in-memory budget,
is forwarded to the provider routed for its model, and is settled to the cost
computed from the usage the provider reports. Spend is flushed periodically to
a durable store (SQLite, PostgreSQL or Redis).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
