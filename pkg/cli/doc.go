/*
Package cli provides helpers shared by the tollbooth commands.

Output Formatting:

Commands that print tables support text, JSON and CSV:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	table := &cli.Table{Headers: []string{"user_id", "balance_usd"}, Rows: rows}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Errors and Exit Codes:

Commands return *ConfigError for configuration problems and
*CommandError otherwise; ExitCode maps them to 2 and 1.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
