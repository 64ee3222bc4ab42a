package supervisor

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"nsc-hq/arbiter/pkg/arbiter"
)

const tracerName = "nsc-hq/arbiter/pkg/supervisor"

// Action is the per-intent result of one ingested batch.
type Action struct {
	IntentID    string              `json:"intent_id"`
	Escalation  arbiter.Escalation  `json:"escalation"`
	Uncertainty arbiter.Uncertainty `json:"uncertainty"`

	// FreezeFlags is nil when no signal for the intent carried text.
	FreezeFlags *arbiter.FreezeFlags `json:"freeze_flags,omitempty"`

	// Oddity is set only when oddity scoring is configured. It is never
	// read by the decision path.
	Oddity *float32 `json:"oddity,omitempty"`
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for ingest and snapshot spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Supervisor) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithSourceProfiles enables per-source weight clamping.
func WithSourceProfiles(profiles arbiter.SourceProfiles) Option {
	return func(s *Supervisor) {
		s.profiles = maps.Clone(profiles)
	}
}

// WithOddity enables auxiliary oddity scoring on every Action.
func WithOddity(baselines arbiter.PersonaBaselines, params arbiter.OddityParams) Option {
	return func(s *Supervisor) {
		s.oddity = &oddityScorer{baselines: baselines, params: params}
	}
}

type oddityScorer struct {
	baselines arbiter.PersonaBaselines
	params    arbiter.OddityParams
}

// Supervisor holds hysteresis state for many intents, partitioned into
// shards by a stable hash of the intent id. It is safe for concurrent use.
type Supervisor struct {
	shards []*shard

	// mu guards the decision settings below. Shard state is guarded by
	// each shard's own lock.
	mu        sync.RWMutex
	cfg       arbiter.Config
	overrides map[string]arbiter.Config
	profiles  arbiter.SourceProfiles
	oddity    *oddityScorer

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// New creates a supervisor with shardCount shards (clamped to at least 1)
// and cfg as the global decision config.
func New(shardCount int, cfg arbiter.Config, opts ...Option) *Supervisor {
	if shardCount < 1 {
		shardCount = 1
	}

	s := &Supervisor{
		shards:    make([]*shard, shardCount),
		cfg:       cfg.Clone(),
		overrides: make(map[string]arbiter.Config),
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer(tracerName),
	}
	for i := range s.shards {
		s.shards[i] = newShard(i)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "supervisor")

	return s
}

// ShardCount returns the number of shards.
func (s *Supervisor) ShardCount() int {
	return len(s.shards)
}

// Config returns a copy of the global decision config.
func (s *Supervisor) Config() arbiter.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// SetConfig replaces the global decision config. Intents with an override
// keep using it.
func (s *Supervisor) SetConfig(cfg arbiter.Config) {
	s.mu.Lock()
	s.cfg = cfg.Clone()
	s.mu.Unlock()
}

// SetConfigOverride makes intentID use cfg instead of the global config.
func (s *Supervisor) SetConfigOverride(intentID string, cfg arbiter.Config) {
	s.mu.Lock()
	s.overrides[intentID] = cfg.Clone()
	s.mu.Unlock()
}

// ClearConfigOverride removes the override for intentID, if any.
func (s *Supervisor) ClearConfigOverride(intentID string) {
	s.mu.Lock()
	delete(s.overrides, intentID)
	s.mu.Unlock()
}

// ReplaceConfigOverrides swaps the whole override table for overrides.
func (s *Supervisor) ReplaceConfigOverrides(overrides map[string]arbiter.Config) {
	next := make(map[string]arbiter.Config, len(overrides))
	for id, cfg := range overrides {
		next[id] = cfg.Clone()
	}
	s.mu.Lock()
	s.overrides = next
	s.mu.Unlock()
}

// SetSourceProfiles replaces the source profile table. A nil table
// disables weight clamping.
func (s *Supervisor) SetSourceProfiles(profiles arbiter.SourceProfiles) {
	s.mu.Lock()
	s.profiles = maps.Clone(profiles)
	s.mu.Unlock()
}

// ClearSourceProfiles disables weight clamping.
func (s *Supervisor) ClearSourceProfiles() {
	s.SetSourceProfiles(nil)
}

// SetOddity enables auxiliary oddity scoring.
func (s *Supervisor) SetOddity(baselines arbiter.PersonaBaselines, params arbiter.OddityParams) {
	s.mu.Lock()
	s.oddity = &oddityScorer{baselines: baselines, params: params}
	s.mu.Unlock()
}

// ClearOddity disables oddity scoring.
func (s *Supervisor) ClearOddity() {
	s.mu.Lock()
	s.oddity = nil
	s.mu.Unlock()
}

// settings is an immutable view of the decision settings for one batch.
type settings struct {
	configs  map[string]arbiter.Config
	profiles arbiter.SourceProfiles
	oddity   *oddityScorer
}

func (s *Supervisor) snapshotSettings(intentIDs []string) settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make(map[string]arbiter.Config, len(intentIDs))
	for _, id := range intentIDs {
		if o, ok := s.overrides[id]; ok {
			configs[id] = o.Clone()
		} else {
			configs[id] = s.cfg.Clone()
		}
	}
	return settings{
		configs:  configs,
		profiles: s.profiles,
		oddity:   s.oddity,
	}
}

// Ingest processes one batch of signals and returns one Action per intent
// that received evidence, sorted by intent id.
//
// Each shard is locked once per batch and intents within a shard are
// processed in ascending id order, so the result and the resulting state
// depend only on the prior state and the batch contents. Intents that only
// carried text in this batch have no evidence and are left untouched.
//
// A panic raised while a shard lock is held poisons that shard; later
// calls touching it panic with ErrShardPoisoned.
func (s *Supervisor) Ingest(ctx context.Context, builder Builder, signals []Signal) []Action {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "supervisor.Ingest",
		trace.WithAttributes(attribute.Int("arbiter.signals", len(signals))))
	defer span.End()

	evidence := BuildBatch(builder, signals)

	views := make(map[string]*arbiter.EvidenceView)
	for _, ev := range evidence {
		v, ok := views[ev.IntentID]
		if !ok {
			v = arbiter.NewEvidenceView(ev.IntentID)
			views[ev.IntentID] = v
		}
		v.Push(ev)
	}

	flags := make(map[string]arbiter.FreezeFlags)
	for i := range signals {
		if signals[i].Text == nil {
			continue
		}
		id := signals[i].IntentID
		flags[id] = flags[id].Or(arbiter.DetectFreeze(*signals[i].Text))
	}

	intentIDs := slices.Sorted(maps.Keys(views))
	set := s.snapshotSettings(intentIDs)

	if set.profiles != nil {
		for _, v := range views {
			arbiter.ApplySourceProfiles(v, set.profiles)
		}
	}

	byShard := make([][]string, len(s.shards))
	for _, id := range intentIDs {
		idx := ShardIndex(id, len(s.shards))
		byShard[idx] = append(byShard[idx], id)
	}

	actions := make([]Action, 0, len(intentIDs))
	for idx, ids := range byShard {
		if len(ids) == 0 {
			continue
		}
		actions = s.processShard(s.shards[idx], ids, views, flags, &set, actions)
	}

	slices.SortFunc(actions, func(a, b Action) int {
		return strings.Compare(a.IntentID, b.IntentID)
	})

	escalated := 0
	for i := range actions {
		if actions[i].Escalation != arbiter.EscalationNone {
			escalated++
		}
		s.metrics.RecordAction(&actions[i])
	}
	s.metrics.RecordBatch(len(signals), len(evidence), time.Since(start))

	span.SetAttributes(
		attribute.Int("arbiter.evidence", len(evidence)),
		attribute.Int("arbiter.actions", len(actions)),
		attribute.Int("arbiter.escalated", escalated),
	)
	s.logger.DebugContext(ctx, "batch ingested",
		"signals", len(signals),
		"evidence", len(evidence),
		"actions", len(actions),
		"escalated", escalated,
	)

	return actions
}

func (s *Supervisor) processShard(
	sh *shard,
	ids []string,
	views map[string]*arbiter.EvidenceView,
	flags map[string]arbiter.FreezeFlags,
	set *settings,
	out []Action,
) []Action {
	sh.acquire()
	defer sh.release()

	for _, id := range ids {
		view := views[id]
		cfg := set.configs[id]

		var ff *arbiter.FreezeFlags
		if f, ok := flags[id]; ok {
			ff = &f
		}

		state := sh.states[id]
		outcome := arbiter.Evaluate(view, ff, &cfg, &state)
		sh.states[id] = state

		action := Action{
			IntentID:    id,
			Escalation:  outcome.Escalation,
			Uncertainty: outcome.Uncertainty,
			FreezeFlags: ff,
		}
		if set.oddity != nil {
			score := arbiter.ComputeOddity(view, set.oddity.baselines, set.oddity.params)
			action.Oddity = &score
		}
		out = append(out, action)
	}
	return out
}

// State returns the hysteresis state for intentID.
func (s *Supervisor) State(intentID string) (arbiter.HysteresisState, bool) {
	sh := s.shards[ShardIndex(intentID, len(s.shards))]
	sh.acquire()
	defer sh.release()

	st, ok := sh.states[intentID]
	return st, ok
}

// Len returns the number of tracked intents.
func (s *Supervisor) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.count()
	}
	return n
}

func (sh *shard) count() int {
	sh.acquire()
	defer sh.release()
	return len(sh.states)
}

// RemoveIntent drops the state for intentID and reports whether it existed.
func (s *Supervisor) RemoveIntent(intentID string) bool {
	sh := s.shards[ShardIndex(intentID, len(s.shards))]
	sh.acquire()
	defer sh.release()

	if _, ok := sh.states[intentID]; !ok {
		return false
	}
	delete(sh.states, intentID)
	return true
}

// PoisonedShards returns the indexes of shards poisoned by an earlier panic.
// Unlike the other methods it does not panic on a poisoned shard.
func (s *Supervisor) PoisonedShards() []int {
	var out []int
	for _, sh := range s.shards {
		if sh.isPoisoned() {
			out = append(out, sh.index)
		}
	}
	return out
}
