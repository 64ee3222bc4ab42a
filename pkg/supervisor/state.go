package supervisor

import (
	"context"
	"iter"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nsc-hq/arbiter/pkg/arbiter"
)

// Restore modes, used as metric labels and log fields.
const (
	ModeReplace = "replace"
	ModeMerge   = "merge"
)

// IntentState pairs an intent id with its hysteresis counters.
type IntentState struct {
	IntentID string                  `json:"intent_id"`
	State    arbiter.HysteresisState `json:"state"`
}

// Snapshot is an ordered list of intent states, sorted by intent id when
// produced by an export.
type Snapshot struct {
	States []IntentState `json:"states"`
}

// Len returns the number of entries.
func (s Snapshot) Len() int {
	return len(s.States)
}

// All yields every entry in order.
func (s Snapshot) All() iter.Seq2[string, arbiter.HysteresisState] {
	return func(yield func(string, arbiter.HysteresisState) bool) {
		for _, e := range s.States {
			if !yield(e.IntentID, e.State) {
				return
			}
		}
	}
}

// RestoreStats reports what a restore wrote.
type RestoreStats struct {
	// Applied counts every entry written, including overwrites.
	Applied int `json:"applied"`

	// Overwritten counts the subset of Applied that replaced existing state.
	Overwritten int `json:"overwritten"`
}

// Inserted returns the entries that landed in a previously empty slot.
func (r RestoreStats) Inserted() int {
	return r.Applied - r.Overwritten
}

// Export returns every intent's state sorted by intent id.
func (s *Supervisor) Export(ctx context.Context) Snapshot {
	return s.ExportFiltered(ctx, nil)
}

// ExportFiltered returns the states for which keep returns true, sorted by
// intent id. A nil keep selects every intent. keep runs under the shard
// lock and must not call back into the supervisor.
func (s *Supervisor) ExportFiltered(ctx context.Context, keep func(intentID string, st arbiter.HysteresisState) bool) Snapshot {
	_, span := s.tracer.Start(ctx, "supervisor.Export")
	defer span.End()

	var out []IntentState
	for _, sh := range s.shards {
		out = sh.collect(keep, out)
	}
	slices.SortFunc(out, func(a, b IntentState) int {
		return strings.Compare(a.IntentID, b.IntentID)
	})

	span.SetAttributes(attribute.Int("arbiter.entries", len(out)))
	return Snapshot{States: out}
}

// ExportIntents returns the states of the listed intents that are tracked.
func (s *Supervisor) ExportIntents(ctx context.Context, intentIDs []string) Snapshot {
	want := make(map[string]struct{}, len(intentIDs))
	for _, id := range intentIDs {
		want[id] = struct{}{}
	}
	return s.ExportFiltered(ctx, func(id string, _ arbiter.HysteresisState) bool {
		_, ok := want[id]
		return ok
	})
}

func (sh *shard) collect(keep func(string, arbiter.HysteresisState) bool, out []IntentState) []IntentState {
	sh.acquire()
	defer sh.release()

	for id, st := range sh.states {
		if keep == nil || keep(id, st) {
			out = append(out, IntentState{IntentID: id, State: st})
		}
	}
	return out
}

// Restore replaces all supervisor state with snap. Every shard is cleared
// in index order before any entry is inserted, including shards that
// receive no entries. An Ingest running concurrently may observe the
// cleared shards before their entries arrive, but never pre-restore
// state alongside restored entries.
func (s *Supervisor) Restore(ctx context.Context, snap Snapshot) RestoreStats {
	return s.ImportState(ctx, snap.All())
}

// RestoreMerge writes the entries of snap over existing state, leaving
// intents absent from snap untouched.
func (s *Supervisor) RestoreMerge(ctx context.Context, snap Snapshot) RestoreStats {
	return s.ImportStateMerge(ctx, snap.All())
}

// ImportState is Restore for an arbitrary entry sequence. The sequence is
// fully consumed before any shard is touched. Repeated ids are applied in
// order, the later entry overwriting the earlier one.
func (s *Supervisor) ImportState(ctx context.Context, entries iter.Seq2[string, arbiter.HysteresisState]) RestoreStats {
	return s.importEntries(ctx, ModeReplace, entries)
}

// ImportStateMerge is RestoreMerge for an arbitrary entry sequence.
func (s *Supervisor) ImportStateMerge(ctx context.Context, entries iter.Seq2[string, arbiter.HysteresisState]) RestoreStats {
	return s.importEntries(ctx, ModeMerge, entries)
}

func (s *Supervisor) importEntries(ctx context.Context, mode string, entries iter.Seq2[string, arbiter.HysteresisState]) RestoreStats {
	ctx, span := s.tracer.Start(ctx, "supervisor.Import",
		trace.WithAttributes(attribute.String("arbiter.mode", mode)))
	defer span.End()

	buckets := make([][]IntentState, len(s.shards))
	for id, st := range entries {
		idx := ShardIndex(id, len(s.shards))
		buckets[idx] = append(buckets[idx], IntentState{IntentID: id, State: st})
	}

	if mode == ModeReplace {
		for _, sh := range s.shards {
			sh.clear()
		}
	}

	var stats RestoreStats
	for idx, sh := range s.shards {
		sh.apply(buckets[idx], &stats)
	}

	span.SetAttributes(
		attribute.Int("arbiter.applied", stats.Applied),
		attribute.Int("arbiter.overwritten", stats.Overwritten),
	)
	s.metrics.RecordRestore(mode, stats)
	s.logger.InfoContext(ctx, "state imported",
		"mode", mode,
		"applied", stats.Applied,
		"overwritten", stats.Overwritten,
	)
	return stats
}

func (sh *shard) clear() {
	sh.acquire()
	defer sh.release()
	sh.states = make(map[string]arbiter.HysteresisState)
}

func (sh *shard) apply(entries []IntentState, stats *RestoreStats) {
	if len(entries) == 0 {
		return
	}
	sh.acquire()
	defer sh.release()

	for _, e := range entries {
		if _, ok := sh.states[e.IntentID]; ok {
			stats.Overwritten++
		}
		stats.Applied++
		sh.states[e.IntentID] = e.State
	}
}
