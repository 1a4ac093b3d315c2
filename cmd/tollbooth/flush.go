package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"tollbooth-hq/tollbooth/pkg/cli"
	"tollbooth-hq/tollbooth/pkg/store"
)

var flushTimeout time.Duration

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Check that the durable store is reachable",
	Long: `Check that the durable store is reachable and readable.

Deltas live in the memory of the running proxy and are flushed by it on its
own schedule and on shutdown, so this command writes nothing. It connects to
the configured store, pings it, and reports how many balances it holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flushTimeout)
		defer cancel()

		st, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := probeStore(ctx, cmd.OutOrStdout(), st); err != nil {
			return cli.NewCommandError("flush", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)

	flushCmd.Flags().DurationVar(&flushTimeout, "timeout", 10*time.Second, "store operation timeout")
}

func probeStore(ctx context.Context, w io.Writer, st store.Store) error {
	start := time.Now()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	balances, err := st.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("store not readable: %w", err)
	}
	fmt.Fprintf(w, "✓ Store reachable (%d balances, %s)\n", len(balances), time.Since(start).Round(time.Millisecond))
	return nil
}
