package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/cli"
	"nsc-hq/arbiter/pkg/supervisor"
	"nsc-hq/arbiter/pkg/telemetry/logging"
)

var ingestFlags struct {
	input         string
	batchSize     int
	format        string
	escalatedOnly bool
	noSave        bool
	watch         bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest signals and print escalation actions",
	Long: `Ingest newline-delimited JSON signals in batches and print one action
per intent per batch.

Each line is a signal object:
  {"intent_id":"i1","source_id":"llm","origin":"decoder",
   "scalars":{"entropy":2.9,"cosine":0.8},"text":"..."}

The newest stored snapshot generation is recovered before ingesting and a
new generation is saved afterwards, so hysteresis carries across runs when
the store is persistent (store.backend: sqlite).

Examples:
  # Ingest a file and print a table
  arbiter ingest --input signals.jsonl

  # Read from stdin, print only escalated intents as CSV
  tail -f signals.jsonl | arbiter ingest --escalated-only --format csv

  # Reload thresholds whenever the config file changes
  arbiter ingest -c arbiter.yaml --watch --input -`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestFlags.input, "input", "i", "-", "signals file (JSON lines, - for stdin)")
	ingestCmd.Flags().IntVar(&ingestFlags.batchSize, "batch-size", 0, "signals per batch (uses config if not specified)")
	ingestCmd.Flags().StringVar(&ingestFlags.format, "format", "text", "output format: text, json, csv")
	ingestCmd.Flags().BoolVar(&ingestFlags.escalatedOnly, "escalated-only", false, "print only escalated actions")
	ingestCmd.Flags().BoolVar(&ingestFlags.noSave, "no-save", false, "do not save a snapshot generation")
	ingestCmd.Flags().BoolVar(&ingestFlags.watch, "watch", false, "reload the config file on change")
}

func runIngest(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(ingestFlags.format)
	if err != nil {
		return err
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
		return cli.NewCommandError("ingest", fmt.Errorf("recover: %w", err))
	}
	if err := a.startPruner(ctx); err != nil {
		return cli.NewCommandError("ingest", err)
	}
	if ingestFlags.watch && cfgFile != "" {
		a.watchConfig(ctx, cfgFile)
	}

	batchSize := a.cfg.Supervisor.BatchSize
	if ingestFlags.batchSize > 0 {
		batchSize = ingestFlags.batchSize
	}

	in, err := openInput(ingestFlags.input, cmd.InOrStdin())
	if err != nil {
		return cli.NewCommandError("ingest", err)
	}
	defer in.Close()

	actions := make([]supervisor.Action, 0)
	batches := 0
	n, err := readBatches(ctx, in, batchSize, func(batch []supervisor.Signal) error {
		bctx := logging.WithBatchID(ctx, uuid.NewString())
		for _, act := range a.sup.Ingest(bctx, a.currentBuilder(), batch) {
			if ingestFlags.escalatedOnly && act.Escalation == arbiter.EscalationNone {
				continue
			}
			actions = append(actions, act)
		}
		batches++
		return nil
	})
	if err != nil {
		return cli.NewCommandError("ingest", err)
	}

	a.logger.InfoContext(ctx, "ingest complete",
		"signals", n,
		"batches", batches,
		"intents", a.sup.Len(),
	)

	if !ingestFlags.noSave {
		gen, err := a.store.Checkpoint(ctx, a.sup)
		if err != nil {
			return cli.NewCommandError("ingest", fmt.Errorf("checkpoint: %w", err))
		}
		a.logger.InfoContext(logging.WithNamespace(ctx, gen.Namespace), "snapshot saved",
			"generation", gen.ID.String(),
			"entries", gen.Entries,
		)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), actionTable(actions))
}
