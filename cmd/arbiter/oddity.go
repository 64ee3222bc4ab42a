package main

import (
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/cli"
	"nsc-hq/arbiter/pkg/supervisor"
)

var oddityFlags struct {
	input  string
	format string
}

var oddityCmd = &cobra.Command{
	Use:   "oddity",
	Short: "Score how unusual each intent's evidence is",
	Long: `Read signals, group the resulting evidence by intent and score each
intent against the configured persona baselines (oddity.baselines and
oddity.params). Source profiles are applied first, as in ingest.

Scores are in [0, 1] and purely informational: no hysteresis state is read
or written, and the score never affects escalation.

Examples:
  arbiter oddity --input signals.jsonl -c arbiter.yaml`,
	RunE: runOddity,
}

func init() {
	rootCmd.AddCommand(oddityCmd)

	oddityCmd.Flags().StringVarP(&oddityFlags.input, "input", "i", "-", "signals file (JSON lines, - for stdin)")
	oddityCmd.Flags().StringVar(&oddityFlags.format, "format", "text", "output format: text, json, csv")
}

// oddityScore is the score of one intent.
type oddityScore struct {
	IntentID string  `json:"intent_id"`
	Evidence int     `json:"evidence"`
	Oddity   float32 `json:"oddity"`
}

type oddityTable []oddityScore

func (t oddityTable) Header() []string { return []string{"intent_id", "evidence", "oddity"} }

func (t oddityTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{s.IntentID, strconv.Itoa(s.Evidence), formatFloat(s.Oddity)})
	}
	return rows
}

func runOddity(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(oddityFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	in, err := openInput(oddityFlags.input, cmd.InOrStdin())
	if err != nil {
		return cli.NewCommandError("oddity", err)
	}
	defer in.Close()

	builder := cfg.Builder.NewBuilder()
	views := make(map[string]*arbiter.EvidenceView)
	_, err = readBatches(cmd.Context(), in, cfg.Supervisor.BatchSize, func(batch []supervisor.Signal) error {
		for _, ev := range supervisor.BuildBatch(builder, batch) {
			v, ok := views[ev.IntentID]
			if !ok {
				v = arbiter.NewEvidenceView(ev.IntentID)
				views[ev.IntentID] = v
			}
			v.Push(ev)
		}
		return nil
	})
	if err != nil {
		return cli.NewCommandError("oddity", err)
	}

	profiles := cfg.Supervisor.Profiles()
	scores := make(oddityTable, 0, len(views))
	for _, id := range slices.Sorted(maps.Keys(views)) {
		v := views[id]
		if profiles != nil {
			arbiter.ApplySourceProfiles(v, profiles)
		}
		scores = append(scores, oddityScore{
			IntentID: id,
			Evidence: v.Len(),
			Oddity:   arbiter.ComputeOddity(v, cfg.Oddity.Baselines, cfg.Oddity.Params),
		})
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), scores)
}
