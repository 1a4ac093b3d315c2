package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tollbooth-hq/tollbooth/pkg/cli"
	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/server"
	"tollbooth-hq/tollbooth/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Tollbooth proxy server",
	Long: `Start the Tollbooth proxy server with the specified configuration.

Balances are loaded from the durable store before the listener opens. If the
store stays unreachable past flush.hydrate_timeout the proxy starts anyway and
serves every user from the default balance.

Examples:
  # Start with default config
  tollbooth run

  # Start with custom config
  tollbooth run --config /etc/tollbooth/config.yaml

  # Override listen address
  tollbooth run --listen 0.0.0.0:8080

  # Validate config without starting server
  tollbooth run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.WrapConfigError(err)
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.SetDefault(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging.level", err.Error())
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx := cli.SetupSignalHandler()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := a.boot(ctx); err != nil {
		_ = a.close(context.Background())
		return cli.NewCommandError("run", err)
	}

	printBanner(cmd.OutOrStdout(), cfg)

	srv := server.New(&cfg.Proxy, a.handler, logger)
	serveErr := srv.Start(ctx)

	// Start returns once the listener is closed; the final flush gets its
	// own deadline so a slow store cannot hold the process forever.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Proxy.ShutdownTimeout)
	defer cancel()
	if err := a.close(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}

	if serveErr != nil {
		return cli.NewCommandError("run", serveErr)
	}
	logger.Info("tollbooth stopped")
	return nil
}

func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Tollbooth %s\n", Version)
	fmt.Fprintf(w, "  listen:    %s\n", cfg.Proxy.ListenAddress)
	fmt.Fprintf(w, "  store:     %s\n", cfg.Store.Backend)
	fmt.Fprintf(w, "  providers: %v\n", cfg.AvailableProviders())
	fmt.Fprintf(w, "  budget:    %s USD default, flushed every %s\n", cfg.Budget.DefaultBalanceUSD, cfg.Flush.Interval)
}
