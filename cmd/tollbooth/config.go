package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tollbooth-hq/tollbooth/pkg/cli"
	"tollbooth-hq/tollbooth/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and environment overrides",
	Long: `Load the configuration file, apply defaults and TOLLBOOTH_* environment
overrides (including a .env file in the working directory), and validate the
result. Every invalid field is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return cli.WrapConfigError(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "✓ Configuration valid")
		fmt.Fprintf(out, "  providers with keys: %v\n", cfg.AvailableProviders())
		fmt.Fprintf(out, "  routes: %d, pricing rules: %d, models: %d\n", len(cfg.Routes), len(cfg.Pricing), len(cfg.Models))
		fmt.Fprintf(out, "  store: %s\n", cfg.Store.Backend)
		if !cfg.HasProvider() {
			fmt.Fprintln(out, "  warning: no provider has an api key; /ready will report 503")
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
