package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/cli"
	"nsc-hq/arbiter/pkg/supervisor"
	"nsc-hq/arbiter/pkg/telemetry/logging"
)

var replayFlags struct {
	parallel  int
	batchSize int
	format    string
	progress  bool
	noSave    bool
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE...",
	Short: "Replay several signal streams concurrently",
	Long: `Replay several independent signal streams into one supervisor at the
same time. Each file is read in batches by its own worker; at most
--parallel files are processed at once.

Streams should cover disjoint intents. Batches of different streams may
interleave in any order, and only intents shared between streams observe
that order.

Examples:
  # Replay three streams with two workers
  arbiter replay --parallel 2 a.jsonl b.jsonl c.jsonl

  # Show progress and print a JSON summary
  arbiter replay --progress --format json logs/*.jsonl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().IntVarP(&replayFlags.parallel, "parallel", "p", 4, "maximum streams processed at once")
	replayCmd.Flags().IntVar(&replayFlags.batchSize, "batch-size", 0, "signals per batch (uses config if not specified)")
	replayCmd.Flags().StringVar(&replayFlags.format, "format", "text", "output format: text, json, csv")
	replayCmd.Flags().BoolVar(&replayFlags.progress, "progress", false, "report progress on stderr")
	replayCmd.Flags().BoolVar(&replayFlags.noSave, "no-save", false, "do not save a snapshot generation")
}

// streamSummary is the per-file result of a replay.
type streamSummary struct {
	Stream    string `json:"stream"`
	Signals   int    `json:"signals"`
	Batches   int    `json:"batches"`
	Actions   int    `json:"actions"`
	Escalated int    `json:"escalated"`
}

type summaryTable []streamSummary

func (t summaryTable) Header() []string {
	return []string{"stream", "signals", "batches", "actions", "escalated"}
}

func (t summaryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{
			s.Stream,
			strconv.Itoa(s.Signals),
			strconv.Itoa(s.Batches),
			strconv.Itoa(s.Actions),
			strconv.Itoa(s.Escalated),
		})
	}
	return rows
}

func runReplay(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(replayFlags.format)
	if err != nil {
		return err
	}
	if replayFlags.parallel < 1 {
		return fmt.Errorf("--parallel must be at least 1")
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.Background()); cerr != nil {
			a.logger.Error("shutdown failed", "error", cerr)
		}
	}()

	if err := a.recover(ctx); err != nil {
		return cli.NewCommandError("replay", fmt.Errorf("recover: %w", err))
	}

	batchSize := a.cfg.Supervisor.BatchSize
	if replayFlags.batchSize > 0 {
		batchSize = replayFlags.batchSize
	}

	var progress cli.ProgressReporter
	if replayFlags.progress {
		progress = cli.NewUnitProgressReporter(cmd.ErrOrStderr(), "streams")
		progress.Start(int64(len(args)))
	}

	var total atomic.Int64
	summaries := make([]streamSummary, len(args))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(replayFlags.parallel)
	for i, path := range args {
		g.Go(func() error {
			sum, err := replayStream(gctx, a, path, batchSize)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			summaries[i] = sum
			total.Add(int64(sum.Signals))
			if progress != nil {
				progress.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if progress != nil {
			progress.Error(err)
		}
		return cli.NewCommandError("replay", err)
	}
	if progress != nil {
		progress.Finish()
	}

	a.logger.InfoContext(ctx, "replay complete",
		"streams", len(args),
		"signals", total.Load(),
		"intents", a.sup.Len(),
	)

	if !replayFlags.noSave {
		if _, err := a.store.Checkpoint(ctx, a.sup); err != nil {
			return cli.NewCommandError("replay", fmt.Errorf("checkpoint: %w", err))
		}
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), summaryTable(summaries))
}

func replayStream(ctx context.Context, a *app, path string, batchSize int) (streamSummary, error) {
	sum := streamSummary{Stream: filepath.Base(path)}
	if path == "-" {
		return sum, fmt.Errorf("replay reads files, not standard input")
	}

	in, err := openInput(path, nil)
	if err != nil {
		return sum, err
	}
	defer in.Close()

	n, err := readBatches(ctx, in, batchSize, func(batch []supervisor.Signal) error {
		bctx := logging.WithBatchID(ctx, uuid.NewString())
		for _, act := range a.sup.Ingest(bctx, a.currentBuilder(), batch) {
			sum.Actions++
			if act.Escalation != arbiter.EscalationNone {
				sum.Escalated++
			}
		}
		sum.Batches++
		return nil
	})
	sum.Signals = n
	return sum, err
}
