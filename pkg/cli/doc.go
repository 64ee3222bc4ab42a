/*
Package cli provides command-line interface utilities for the arbiter command.

Output Formatting:

Results are rendered as text, JSON or CSV. Values implementing Table get
aligned columns in text mode and rows in CSV mode:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, actions); err != nil {
		return err
	}

Progress Reporting:

For long replays, use the progress reporter. Add is safe for concurrent use:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(totalSignals)
	progress.Add(int64(len(batch)))
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
