package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tollbooth-hq/tollbooth/pkg/cli"
	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/store"
)

var balanceFlags struct {
	output  string
	timeout time.Duration
}

var balanceCmd = &cobra.Command{
	Use:   "balance [user...]",
	Short: "Show balances persisted in the durable store",
	Long: `Show balances persisted in the durable store.

Only flushed spend is visible: a running proxy may hold up to one flush
interval of spend that has not reached the store yet. Users without a row
are shown at the default balance.

Examples:
  # List every persisted balance
  tollbooth balance

  # Show specific users as JSON
  tollbooth balance alice bob --output json`,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVarP(&balanceFlags.output, "output", "o", "text", "output format: text, json, csv")
	balanceCmd.Flags().DurationVar(&balanceFlags.timeout, "timeout", 10*time.Second, "store operation timeout")
}

type balanceRecord struct {
	UserID     string `json:"user_id"`
	BalanceUSD string `json:"balance_usd"`
	Persisted  bool   `json:"persisted"`
}

func runBalance(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(balanceFlags.output)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), balanceFlags.timeout)
	defer cancel()

	st, def, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := collectBalances(ctx, st, def, args)
	if err != nil {
		return cli.NewCommandError("balance", err)
	}
	return writeBalances(cmd.OutOrStdout(), format, records)
}

// collectBalances reads the given users, or every persisted user when none
// are given, sorted by user id.
func collectBalances(ctx context.Context, st store.Store, def money.Amount, users []string) ([]balanceRecord, error) {
	var records []balanceRecord

	if len(users) == 0 {
		balances, err := st.LoadBalances(ctx)
		if err != nil {
			return nil, fmt.Errorf("load balances: %w", err)
		}
		for user, b := range balances {
			records = append(records, balanceRecord{UserID: user, BalanceUSD: b.USD(), Persisted: true})
		}
	} else {
		for _, user := range users {
			b, ok, err := st.Balance(ctx, user)
			if err != nil {
				return nil, fmt.Errorf("balance of %q: %w", user, err)
			}
			if !ok {
				b = def
			}
			records = append(records, balanceRecord{UserID: user, BalanceUSD: b.USD(), Persisted: ok})
		}
	}

	slices.SortFunc(records, func(a, b balanceRecord) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return records, nil
}

func writeBalances(w io.Writer, format cli.OutputFormat, records []balanceRecord) error {
	table := &cli.Table{
		Headers: []string{"USER", "BALANCE_USD", "PERSISTED"},
		Records: records,
	}
	for _, r := range records {
		table.Rows = append(table.Rows, []string{r.UserID, r.BalanceUSD, strconv.FormatBool(r.Persisted)})
	}
	return cli.NewFormatter(format).FormatTo(w, table)
}

// openStore loads the configuration and opens the configured store. The
// caller closes it.
func openStore(ctx context.Context) (store.Store, money.Amount, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, 0, cli.WrapConfigError(err)
	}
	def, err := money.ParseUSD(cfg.Budget.DefaultBalanceUSD)
	if err != nil {
		return nil, 0, cli.NewConfigError("budget.default_balance_usd", err.Error())
	}
	st, err := store.New(ctx, cfg.Store, def)
	if err != nil {
		return nil, 0, cli.NewCommandError("store", err)
	}
	return st, def, nil
}
