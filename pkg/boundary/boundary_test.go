package boundary

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/snapshot"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func event(intent string, entropy float32) Event {
	return Event{
		IntentID: []byte(intent),
		SourceID: []byte("llm"),
		Origin:   []byte("ffi"),
		Scalars: []ScalarKV{
			{Key: []byte("entropy"), Val: entropy},
			{Key: []byte("cosine"), Val: 0.9},
		},
	}
}

func TestVersion(t *testing.T) {
	if Version() != 1 {
		t.Errorf("Version() = %d, want 1", Version())
	}
}

func TestConfigRecord(t *testing.T) {
	rec := DefaultConfigRecord()
	if rec.ForcedRuleHits != -1 {
		t.Errorf("ForcedRuleHits = %d, want -1", rec.ForcedRuleHits)
	}
	if rec.TauE != 2.2 || rec.TauS != 0.76 || rec.TauRep != 1 || rec.TauStall != 1 || rec.TauGate != 2.0 {
		t.Errorf("DefaultConfigRecord() = %+v", rec)
	}

	if diff := cmp.Diff(arbiter.DefaultConfig(), rec.Config()); diff != "" {
		t.Errorf("Config() mismatch (-want +got):\n%s", diff)
	}

	rec.ForcedRuleHits = 4
	rec.HystDisable = 1
	cfg := rec.Config()
	if cfg.ForcedRuleHits == nil || *cfg.ForcedRuleHits != 4 || !cfg.HystDisable {
		t.Errorf("Config() = %+v, want forced hits 4 and hysteresis disabled", cfg)
	}

	rec.ForcedRuleHits = -7
	if rec.Config().ForcedRuleHits != nil {
		t.Error("negative ForcedRuleHits did not map to none")
	}

	if got := ConfigRecordFrom(arbiter.DefaultConfig().WithForcedRuleHits(1 << 31)); got.ForcedRuleHits != 1<<31-1 {
		t.Errorf("ForcedRuleHits = %d, want clamped to MaxInt32", got.ForcedRuleHits)
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := newTestRegistry()
	h := r.New(0, DefaultConfigRecord())

	if h == NilHandle {
		t.Fatal("New() returned the nil handle")
	}
	sup, ok := r.Supervisor(h)
	if !ok || sup.ShardCount() != 1 {
		t.Fatalf("Supervisor() = %v, %v; want one shard", sup, ok)
	}

	parsed, err := ParseHandle(h.String())
	if err != nil || parsed != h {
		t.Errorf("ParseHandle(%q) = %v, %v", h.String(), parsed, err)
	}

	if got := r.Free(h); got != StatusOK {
		t.Errorf("Free() = %v, want ok", got)
	}
	if got := r.Free(h); got != StatusInvalidHandle {
		t.Errorf("second Free() = %v, want invalid handle", got)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_InvalidHandle(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	if _, st := r.Ingest(ctx, NilHandle, []Event{event("a", 3)}); st != StatusInvalidHandle {
		t.Errorf("Ingest() status = %v", st)
	}
	if _, st := r.Snapshot(ctx, NilHandle); st != StatusInvalidHandle {
		t.Errorf("Snapshot() status = %v", st)
	}
	if res := r.Restore(ctx, NilHandle, nil, false); res.Code != StatusInvalidHandle {
		t.Errorf("Restore() code = %v", res.Code)
	}
}

func TestRegistry_Ingest(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	h := r.New(4, DefaultConfigRecord())

	stalled := event("b", 3)
	stalled.Text = []byte("as an AI I would rather not")
	emptyText := event("c", 3)
	emptyText.Text = []byte{}
	badID := event("x", 3)
	badID.IntentID = []byte{0xff}
	nullSource := event("y", 3)
	nullSource.SourceID = nil

	actions, st := r.Ingest(ctx, h, []Event{event("a", 1), stalled, emptyText, badID, nullSource})
	if st != StatusOK {
		t.Fatalf("Ingest() status = %v", st)
	}

	want := []ActionRecord{
		{IntentID: "a", Escalation: 0, AvgEntropy: 1, CosineSim: 0.9},
		{IntentID: "b", Escalation: 1, AvgEntropy: 3, CosineSim: 0.9, FFAITell: 1},
		{IntentID: "c", Escalation: 1, AvgEntropy: 3, CosineSim: 0.9},
	}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("Ingest() mismatch (-want +got):\n%s", diff)
	}

	sup, _ := r.Supervisor(h)
	if st, _ := sup.State("c"); !st.IsZero() {
		t.Errorf("State(c) = %+v, empty text must not count as a stall", st)
	}

	if out, st := r.Ingest(ctx, h, nil); out != nil || st != StatusOK {
		t.Errorf("Ingest(nil) = %v, %v", out, st)
	}
}

func TestRegistry_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	src := r.New(3, DefaultConfigRecord())

	a := event("a", 3)
	a.Text = []byte("   ")
	r.Ingest(ctx, src, []Event{a, event("b", 3)})

	data, st := r.Snapshot(ctx, src)
	if st != StatusOK {
		t.Fatalf("Snapshot() status = %v", st)
	}

	t.Run("replace", func(t *testing.T) {
		dst := r.New(5, DefaultConfigRecord())
		r.Ingest(ctx, dst, []Event{event("a", 3), event("zzz", 3)})

		res := r.Restore(ctx, dst, data, false)
		if res != (RestoreResult{Applied: 2, Overwritten: 0, Code: StatusOK}) {
			t.Errorf("Restore() = %+v", res)
		}

		sup, _ := r.Supervisor(dst)
		if _, ok := sup.State("zzz"); ok {
			t.Error("replace restore kept an intent missing from the snapshot")
		}
		if st, _ := sup.State("a"); st.HystStall != 1 {
			t.Errorf("State(a) = %+v, want HystStall 1", st)
		}
	})

	t.Run("merge", func(t *testing.T) {
		dst := r.New(5, DefaultConfigRecord())
		r.Ingest(ctx, dst, []Event{event("a", 3), event("zzz", 3)})

		res := r.Restore(ctx, dst, data, true)
		if res != (RestoreResult{Applied: 2, Overwritten: 1, Code: StatusOK}) {
			t.Errorf("Restore() = %+v", res)
		}

		sup, _ := r.Supervisor(dst)
		if _, ok := sup.State("zzz"); !ok {
			t.Error("merge restore dropped an intent missing from the snapshot")
		}
	})
}

func TestRegistry_RestoreRejectsWithoutMutating(t *testing.T) {
	ctx := context.Background()
	le := binary.LittleEndian

	good := le.AppendUint32(nil, snapshot.Magic)
	good = le.AppendUint32(good, snapshot.Version)
	withCount := func(n uint32) []byte { return le.AppendUint32(append([]byte(nil), good...), n) }

	tests := []struct {
		name string
		data []byte
		want Status
	}{
		{"empty", nil, StatusTruncatedHeader},
		{"short header", good, StatusTruncatedHeader},
		{"bad magic", le.AppendUint32(le.AppendUint32(le.AppendUint32(nil, 1), 1), 0), StatusBadMagic},
		{"bad version", le.AppendUint32(le.AppendUint32(le.AppendUint32(nil, snapshot.Magic), 3), 0), StatusUnsupportedVersion},
		{"length truncated", withCount(1), StatusEntryLengthTruncated},
		{"id overrun", le.AppendUint32(withCount(1), 50), StatusEntryIDOverrun},
		{"invalid utf-8", append(le.AppendUint32(withCount(1), 1), 0xc0), StatusEntryInvalidUTF8},
		{"rep truncated", append(le.AppendUint32(withCount(1), 1), 'q'), StatusEntryRepTruncated},
		{"stall truncated", le.AppendUint32(append(le.AppendUint32(withCount(1), 1), 'q'), 1), StatusEntryStallTruncated},
		{
			"second entry malformed",
			le.AppendUint32(le.AppendUint32(le.AppendUint32(append(le.AppendUint32(withCount(2), 1), 'q'), 1), 1), 9),
			StatusEntryIDOverrun,
		},
	}

	for _, tt := range tests {
		for _, merge := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/merge=%v", tt.name, merge), func(t *testing.T) {
				r := newTestRegistry()
				h := r.New(2, DefaultConfigRecord())
				stalled := event("keep", 3)
				stalled.Text = []byte("   x")
				r.Ingest(ctx, h, []Event{stalled})
				sup, _ := r.Supervisor(h)
				before := sup.Export(ctx)

				res := r.Restore(ctx, h, tt.data, merge)
				if res != (RestoreResult{Code: tt.want}) {
					t.Errorf("Restore() = %+v, want code %v and zero counts", res, tt.want)
				}
				if diff := cmp.Diff(before, sup.Export(ctx)); diff != "" {
					t.Errorf("state mutated by a rejected restore (-before +after):\n%s", diff)
				}
			})
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{snapshot.ErrTruncatedHeader, StatusTruncatedHeader},
		{fmt.Errorf("wrapped: %w", snapshot.ErrBadMagic), StatusBadMagic},
		{snapshot.ErrUnsupportedVersion, StatusUnsupportedVersion},
		{&snapshot.EntryError{Kind: snapshot.KindStallTruncated}, StatusEntryStallTruncated},
		{fmt.Errorf("%w: 5000000000 entries", snapshot.ErrTooLarge), StatusEncodeFailed},
		{errors.New("something else"), StatusTruncatedHeader},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	for s := StatusOK; s >= StatusEncodeFailed; s-- {
		want := s <= -3 && s >= -7
		if s.MalformedEntry() != want {
			t.Errorf("%v.MalformedEntry() = %v, want %v", s, s.MalformedEntry(), want)
		}
	}
	if StatusBadMagic.String() != "bad magic" || StatusEncodeFailed.String() != "encode failed" || Status(-42).String() != "status(-42)" {
		t.Error("String() mismatch")
	}
}
