package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// execute runs the root command with args and returns what it wrote to
// stdout. Flags are reset to their defaults first.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// testEnv holds a config file pointing at a SQLite store in a temp dir.
type testEnv struct {
	dir     string
	config  string
	metrics string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:     dir,
		config:  filepath.Join(dir, "arbiter.yaml"),
		metrics: filepath.Join(dir, "arbiter.prom"),
	}

	cfg := `
store:
  backend: sqlite
  namespace: test
  prune_schedule: ""
  sqlite:
    path: ` + filepath.Join(dir, "db", "arbiter.db") + `
telemetry:
  logging:
    level: error
  metrics:
    textfile_path: ` + env.metrics + `
`
	if err := os.WriteFile(env.config, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// stallingSignals makes intent "a" escalate on entropy and bump its stall
// counter, and keeps intent "b" clean.
const stallingSignals = `{"intent_id":"a","source_id":"llm","origin":"decoder","scalars":{"entropy":3.0,"cosine":0.9},"text":""}
{"intent_id":"b","source_id":"llm","origin":"decoder","scalars":{"entropy":1.0,"cosine":0.9}}
`

func TestIngest_PersistsHysteresisAcrossRuns(t *testing.T) {
	env := newTestEnv(t)
	input := writeFile(t, env.dir, "signals.jsonl", stallingSignals)

	for run := 1; run <= 2; run++ {
		out, err := execute(t, "", "ingest", "-c", env.config, "--input", input, "--format", "json")
		if err != nil {
			t.Fatalf("run %d: ingest error = %v", run, err)
		}

		var actions []struct {
			IntentID   string `json:"intent_id"`
			Escalation string `json:"escalation"`
		}
		if err := json.Unmarshal([]byte(out), &actions); err != nil {
			t.Fatalf("run %d: invalid JSON %q: %v", run, out, err)
		}
		if len(actions) != 2 || actions[0].Escalation != "critique_pass" || actions[1].Escalation != "none" {
			t.Fatalf("run %d: actions = %+v", run, actions)
		}
	}

	// The textfile is rewritten by every command; this one is from the
	// second ingest.
	metrics, err := os.ReadFile(env.metrics)
	if err != nil {
		t.Fatalf("metrics textfile not written: %v", err)
	}
	if !strings.Contains(string(metrics), "arbiter_supervisor_batches_total 1") {
		t.Errorf("metrics textfile missing batch counter:\n%s", metrics)
	}

	out, err := execute(t, "", "snapshot", "list", "-c", env.config, "--format", "csv")
	if err != nil {
		t.Fatalf("snapshot list error = %v", err)
	}
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Errorf("snapshot list printed %d lines, want header + 2 generations:\n%s", lines, out)
	}

	exported := filepath.Join(env.dir, "state.arb")
	if _, err := execute(t, "", "snapshot", "export", "-c", env.config, "--output", exported); err != nil {
		t.Fatalf("snapshot export error = %v", err)
	}

	out, err = execute(t, "", "snapshot", "inspect", exported, "--format", "csv")
	if err != nil {
		t.Fatalf("snapshot inspect error = %v", err)
	}
	want := "intent_id,hyst_rep,hyst_stall\na,0,2\nb,0,0\n"
	if out != want {
		t.Errorf("inspect = %q, want %q", out, want)
	}
}

func TestIngest_EscalatedOnlyFromStdin(t *testing.T) {
	out, err := execute(t, stallingSignals, "ingest", "--escalated-only", "--no-save", "--format", "csv")
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "a,critique_pass,3.0000,0.9000,") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.HasSuffix(lines[1], ",false,true,false,-") {
		t.Errorf("freeze flags not rendered: %q", lines[1])
	}
}

func TestIngest_BadInput(t *testing.T) {
	_, err := execute(t, `{"intent_id":`, "ingest", "--no-save")
	if err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if !strings.Contains(err.Error(), "command ingest failed") {
		t.Errorf("error = %v", err)
	}
}

func TestSnapshotImport_ReplaceAndMerge(t *testing.T) {
	env := newTestEnv(t)
	input := writeFile(t, env.dir, "signals.jsonl", stallingSignals)

	if _, err := execute(t, "", "ingest", "-c", env.config, "--input", input); err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	exported := filepath.Join(env.dir, "a.arb")
	if _, err := execute(t, "", "snapshot", "export", "-c", env.config, "--intents", "a,missing", "--output", exported); err != nil {
		t.Fatalf("export error = %v", err)
	}

	out, err := execute(t, "", "snapshot", "import", "-c", env.config, "--input", exported, "--merge")
	if err != nil {
		t.Fatalf("merge import error = %v", err)
	}
	if !strings.Contains(out, "Applied: 1\n") || !strings.Contains(out, "Overwritten: 1\n") || !strings.Contains(out, "Entries: 2\n") {
		t.Errorf("merge import output:\n%s", out)
	}

	out, err = execute(t, "", "snapshot", "import", "-c", env.config, "--input", exported)
	if err != nil {
		t.Fatalf("replace import error = %v", err)
	}
	if !strings.Contains(out, "Applied: 1\n") || !strings.Contains(out, "Entries: 1\n") {
		t.Errorf("replace import output:\n%s", out)
	}

	out, err = execute(t, "", "snapshot", "prune", "-c", env.config, "--keep", "1")
	if err != nil {
		t.Fatalf("prune error = %v", err)
	}
	if !strings.Contains(out, "Pruned 2 generation(s)") {
		t.Errorf("prune output: %q", out)
	}
}

func TestSnapshotImport_RejectsCorruptFile(t *testing.T) {
	env := newTestEnv(t)
	bad := writeFile(t, env.dir, "bad.arb", "XXXX\x01\x00\x00\x00\x00\x00\x00\x00")

	if _, err := execute(t, "", "snapshot", "import", "-c", env.config, "--input", bad); err == nil {
		t.Fatal("expected bad magic error")
	}

	out, err := execute(t, "", "snapshot", "list", "-c", env.config)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "No generations") {
		t.Errorf("corrupt import saved a generation:\n%s", out)
	}
}

func TestSnapshotInspect_Text(t *testing.T) {
	// ARB1 header with one entry: "x" rep 2 stall 0.
	data := "ARB1" + "\x01\x00\x00\x00" + "\x01\x00\x00\x00" +
		"\x01\x00\x00\x00" + "x" + "\x02\x00\x00\x00" + "\x00\x00\x00\x00"

	out, err := execute(t, data, "snapshot", "inspect")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{"Magic: 0x31425241", "Version: 1", "Entries: 1", "Size: 25 bytes", "x          2         0"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestReplay_ParallelStreams(t *testing.T) {
	dir := t.TempDir()
	s1 := writeFile(t, dir, "one.jsonl", stallingSignals)
	s2 := writeFile(t, dir, "two.jsonl",
		`{"intent_id":"c","source_id":"stt","origin":"asr","scalars":{"entropy":0.5,"cosine":0.2}}`+"\n")

	out, err := execute(t, "", "replay", "--parallel", "2", "--no-save", "--format", "json", s1, s2)
	if err != nil {
		t.Fatalf("replay error = %v", err)
	}

	var summaries []streamSummary
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	want := []streamSummary{
		{Stream: "one.jsonl", Signals: 2, Batches: 1, Actions: 2, Escalated: 1},
		{Stream: "two.jsonl", Signals: 1, Batches: 1, Actions: 1, Escalated: 1},
	}
	if len(summaries) != len(want) {
		t.Fatalf("summaries = %+v", summaries)
	}
	for i := range want {
		if summaries[i] != want[i] {
			t.Errorf("summary %d = %+v, want %+v", i, summaries[i], want[i])
		}
	}
}

func TestReplay_MissingFile(t *testing.T) {
	_, err := execute(t, "", "replay", "--no-save", filepath.Join(t.TempDir(), "nope.jsonl"))
	if err == nil || !strings.Contains(err.Error(), "nope.jsonl") {
		t.Errorf("error = %v", err)
	}
}

func TestFreezeCommand(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"ai tell from args", "", []string{"freeze", "--format", "csv", "As an AI,", "I cannot"}, "rep_3p,stall,ai_tell\nfalse,false,true\n"},
		{"empty stdin stalls", "   ", []string{"freeze", "--format", "csv"}, "rep_3p,stall,ai_tell\nfalse,true,false\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("freeze error = %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestOddityCommand(t *testing.T) {
	out, err := execute(t, stallingSignals, "oddity", "--format", "json")
	if err != nil {
		t.Fatalf("oddity error = %v", err)
	}

	var scores []oddityScore
	if err := json.Unmarshal([]byte(out), &scores); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(scores) != 2 || scores[0].IntentID != "a" || scores[1].IntentID != "b" {
		t.Fatalf("scores = %+v", scores)
	}
	for _, s := range scores {
		if s.Evidence != 1 || s.Oddity < 0 || s.Oddity > 1 {
			t.Errorf("score = %+v", s)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()

	good := writeFile(t, dir, "good.yaml", "supervisor:\n  shards: 4\n")
	out, err := execute(t, "", "validate", "-c", good, "--show")
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "Configuration is valid") || !strings.Contains(out, "shards: 4") {
		t.Errorf("validate output:\n%s", out)
	}

	bad := writeFile(t, dir, "bad.yaml", "supervisor:\n  shards: -1\nstore:\n  backend: etcd\n")
	out, err = execute(t, "", "validate", "-c", bad)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(out, "2 validation error(s)") || !strings.Contains(out, "supervisor.shards") || !strings.Contains(out, "store.backend") {
		t.Errorf("validate output:\n%s", out)
	}
}

func TestHealthCommand(t *testing.T) {
	env := newTestEnv(t)
	input := writeFile(t, env.dir, "signals.jsonl", stallingSignals)
	if _, err := execute(t, "", "ingest", "-c", env.config, "--input", input); err != nil {
		t.Fatalf("ingest error = %v", err)
	}

	out, err := execute(t, "", "health", "-c", env.config, "--format", "csv")
	if err != nil {
		t.Fatalf("health error = %v\n%s", err, out)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	var got []string
	for _, line := range lines[1:] {
		fields := strings.Split(line, ",")
		got = append(got, fields[0]+"="+fields[1])
	}
	want := []string{"config=ok", "snapshot=ok", "store=ok", "supervisor=ok"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("health rows = %v, want %v", got, want)
	}
}
