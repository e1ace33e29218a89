/*
Package cli provides the helpers shared by the arbiter commands.

Output Formatting:

Commands print results as text, JSON, or a table, chosen with --output:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return cli.NewUsageError("validate", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Results control their text rendering by implementing TextWriter and their
table rendering by implementing Table.

Errors and Exit Codes:

ExitCode maps a command error to the process exit code: ExitFailure for
negative outcomes such as invalid definitions or failing test cases, and
ExitUsage for ConfigError values and usage errors.

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "cases")
	progress.Start(int64(len(cases)))
	harness.WithProgress(func(done, _ int) { progress.Update(int64(done)) })
	report := harness.RunAll(ctx, cases, target)
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
