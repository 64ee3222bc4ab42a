package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nsc-hq/arbiter/pkg/cli"
	"nsc-hq/arbiter/pkg/snapshot"
	"nsc-hq/arbiter/pkg/store"
	"nsc-hq/arbiter/pkg/supervisor"
)

var snapshotFlags struct {
	output     string
	input      string
	generation string
	intents    []string
	merge      bool
	keep       int
	format     string
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage ARB1 hysteresis snapshots",
	Long: `Export, import and inspect ARB1 snapshots of supervisor hysteresis
state, and manage the generations kept in the configured store.

Subcommands:
  export   - Write a stored generation to an ARB1 file
  import   - Restore an ARB1 file and save it as a new generation
  inspect  - Decode and print an ARB1 file or stored generation
  list     - List stored generations, newest first
  prune    - Delete all but the newest generations

Examples:
  # Export the newest generation
  arbiter snapshot export --output state.arb

  # Merge a file into the newest generation
  arbiter snapshot import --input state.arb --merge

  # Show the entries of a file as CSV
  arbiter snapshot inspect state.arb --format csv`,
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored generation as an ARB1 file",
	Long: `Load a stored generation (the newest unless --generation is given) into
a supervisor and export it. With --intents only the listed intents are
exported; ids without state are skipped.`,
	RunE: exportSnapshot,
}

var snapshotImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an ARB1 file as a new generation",
	Long: `Decode an ARB1 file and save it as a new generation. The whole file is
validated first; a malformed file changes nothing.

Without --merge the file replaces the stored state. With --merge it is
applied over the newest generation: intents in the file overwrite, others
are kept.`,
	RunE: importSnapshot,
}

var snapshotInspectCmd = &cobra.Command{
	Use:   "inspect [FILE]",
	Short: "Decode and print a snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE:  inspectSnapshot,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored generations",
	RunE:  listSnapshots,
}

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old generations",
	RunE:  pruneSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotExportCmd, snapshotImportCmd, snapshotInspectCmd, snapshotListCmd, snapshotPruneCmd)

	snapshotExportCmd.Flags().StringVarP(&snapshotFlags.output, "output", "o", "-", "output file (- for stdout)")
	snapshotExportCmd.Flags().StringVar(&snapshotFlags.generation, "generation", "", "generation id (default: newest)")
	snapshotExportCmd.Flags().StringSliceVar(&snapshotFlags.intents, "intents", nil, "export only these intent ids")

	snapshotImportCmd.Flags().StringVarP(&snapshotFlags.input, "input", "i", "-", "input file (- for stdin)")
	snapshotImportCmd.Flags().BoolVar(&snapshotFlags.merge, "merge", false, "merge over the newest generation")

	snapshotInspectCmd.Flags().StringVar(&snapshotFlags.generation, "generation", "", "inspect a stored generation instead of a file")
	snapshotInspectCmd.Flags().StringVar(&snapshotFlags.format, "format", "text", "output format: text, json, csv")

	snapshotListCmd.Flags().StringVar(&snapshotFlags.format, "format", "text", "output format: text, json, csv")

	snapshotPruneCmd.Flags().IntVar(&snapshotFlags.keep, "keep", 0, "generations to keep (uses config if not specified)")
}

// withApp runs fn with a freshly built app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	err = fn(ctx, a)
	if cerr := a.Close(context.Background()); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func parseGeneration(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid generation id %q: %w", s, err)
	}
	return id, nil
}

func exportSnapshot(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if snapshotFlags.generation == "" {
			if _, _, err := a.store.Recover(ctx, a.sup, false); err != nil {
				return cli.NewCommandError("snapshot export", err)
			}
		} else {
			id, err := parseGeneration(snapshotFlags.generation)
			if err != nil {
				return err
			}
			_, snap, err := a.store.Load(ctx, id)
			if err != nil {
				return cli.NewCommandError("snapshot export", err)
			}
			a.sup.Restore(ctx, snap)
		}

		var snap supervisor.Snapshot
		if len(snapshotFlags.intents) > 0 {
			snap = a.sup.ExportIntents(ctx, snapshotFlags.intents)
		} else {
			snap = a.sup.Export(ctx)
		}

		w, closeOut, err := openOutput(snapshotFlags.output, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		n, err := snapshot.Write(w, snap)
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		if err != nil {
			return cli.NewCommandError("snapshot export", err)
		}

		a.logger.InfoContext(ctx, "snapshot exported",
			"output", snapshotFlags.output,
			"entries", snap.Len(),
			"bytes", n,
		)
		return nil
	})
}

func importSnapshot(cmd *cobra.Command, args []string) error {
	in, err := openInput(snapshotFlags.input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.Close()

	snap, err := snapshot.Read(in)
	if err != nil {
		return cli.NewCommandError("snapshot import", err)
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		var stats supervisor.RestoreStats
		if snapshotFlags.merge {
			if err := a.recover(ctx); err != nil {
				return cli.NewCommandError("snapshot import", err)
			}
			stats = a.sup.RestoreMerge(ctx, snap)
		} else {
			stats = a.sup.Restore(ctx, snap)
		}

		gen, err := a.store.Checkpoint(ctx, a.sup)
		if err != nil {
			return cli.NewCommandError("snapshot import", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Generation: %s\n", gen.ID)
		fmt.Fprintf(out, "Applied: %d\n", stats.Applied)
		fmt.Fprintf(out, "Overwritten: %d\n", stats.Overwritten)
		fmt.Fprintf(out, "Entries: %d\n", gen.Entries)
		return nil
	})
}

// inspectResult is a decoded snapshot with its header.
type inspectResult struct {
	Head   snapshot.Header           `json:"header"`
	States []supervisor.IntentState `json:"states"`
}

func (r inspectResult) Header() []string { return stateTable(r.States).Header() }
func (r inspectResult) Rows() [][]string { return stateTable(r.States).Rows() }

func inspectSnapshot(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(snapshotFlags.format)
	if err != nil {
		return err
	}

	var data []byte
	if snapshotFlags.generation != "" {
		id, err := parseGeneration(snapshotFlags.generation)
		if err != nil {
			return err
		}
		err = withApp(cmd, func(ctx context.Context, a *app) error {
			_, data, err = a.store.LoadRaw(ctx, id)
			return err
		})
		if err != nil {
			return cli.NewCommandError("snapshot inspect", err)
		}
	} else {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		in, err := openInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		data, err = io.ReadAll(in)
		in.Close()
		if err != nil {
			return cli.NewCommandError("snapshot inspect", err)
		}
	}

	head, err := snapshot.ReadHeader(data)
	if err != nil {
		return cli.NewCommandError("snapshot inspect", err)
	}
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return cli.NewCommandError("snapshot inspect", err)
	}

	result := inspectResult{Head: head, States: snap.States}
	if result.States == nil {
		result.States = []supervisor.IntentState{}
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "Magic: %#08x\n", head.Magic)
		fmt.Fprintf(out, "Version: %d\n", head.Version)
		fmt.Fprintf(out, "Entries: %d\n", head.Count)
		fmt.Fprintf(out, "Size: %d bytes\n", len(data))
		if len(result.States) == 0 {
			return nil
		}
		fmt.Fprintln(out)
	}
	return cli.NewFormatter(format).FormatTo(out, result)
}

type generationTable []store.Generation

func (t generationTable) Header() []string {
	return []string{"id", "seq", "created_at", "entries", "size"}
}

func (t generationTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, g := range t {
		rows = append(rows, []string{
			g.ID.String(),
			strconv.FormatInt(g.Seq, 10),
			g.CreatedAt.Format(time.RFC3339),
			strconv.Itoa(g.Entries),
			strconv.Itoa(g.Size),
		})
	}
	return rows
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(snapshotFlags.format)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		gens, err := a.store.List(ctx)
		if err != nil {
			return cli.NewCommandError("snapshot list", err)
		}
		if gens == nil {
			gens = []store.Generation{}
		}
		if format == cli.FormatText && len(gens) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No generations in namespace %q.\n", a.store.Namespace())
			return nil
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), generationTable(gens))
	})
}

func pruneSnapshots(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		keep := a.cfg.Store.KeepGenerations
		if cmd.Flags().Changed("keep") {
			keep = snapshotFlags.keep
		}
		if keep <= 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Retention disabled (keep <= 0); nothing pruned.")
			return nil
		}

		n, err := store.NewPruner(a.store, keep).Prune(ctx)
		if err != nil {
			return cli.NewCommandError("snapshot prune", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d generation(s), keeping %d.\n", n, keep)
		return nil
	})
}

// openOutput opens path for writing; "-" is w. The returned func closes
// the file.
func openOutput(path string, w io.Writer) (io.Writer, func() error, error) {
	if path == "-" || strings.TrimSpace(path) == "" {
		return w, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, f.Close, nil
}
