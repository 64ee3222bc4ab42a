package boundary

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"nsc-hq/arbiter/pkg/snapshot"
	"nsc-hq/arbiter/pkg/supervisor"
)

// Handle identifies a supervisor owned by a Registry. The zero Handle is
// never issued and behaves like a null pointer.
type Handle uuid.UUID

// NilHandle is the zero Handle.
var NilHandle = Handle(uuid.Nil)

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// ParseHandle parses the string form of a Handle.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilHandle, err
	}
	return Handle(id), nil
}

type instance struct {
	sup     *supervisor.Supervisor
	builder supervisor.Builder
}

// Registry owns supervisors on behalf of foreign callers and exposes them
// through handles and flat records. It is safe for concurrent use; calls
// on the same handle serialize per shard inside the supervisor.
type Registry struct {
	mu        sync.RWMutex
	instances map[Handle]*instance

	logger  *slog.Logger
	options []supervisor.Option
}

// NewRegistry creates an empty registry. opts are applied to every
// supervisor it creates, so a single Metrics value can be shared.
func NewRegistry(logger *slog.Logger, opts ...supervisor.Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		instances: make(map[Handle]*instance),
		logger:    logger.With("component", "boundary"),
		options:   append([]supervisor.Option{supervisor.WithLogger(logger)}, opts...),
	}
}

// New creates a supervisor with shards clamped to at least 1.
func (r *Registry) New(shards int, cfg ConfigRecord) Handle {
	sup := supervisor.New(max(shards, 1), cfg.Config(), r.options...)
	h := Handle(uuid.New())

	r.mu.Lock()
	r.instances[h] = &instance{sup: sup, builder: supervisor.NewBasicBuilder()}
	r.mu.Unlock()

	r.logger.Debug("supervisor created", "handle", h.String(), "shards", sup.ShardCount())
	return h
}

// Free releases h. Freeing an unknown handle is a no-op returning
// StatusInvalidHandle.
func (r *Registry) Free(h Handle) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[h]; !ok {
		return StatusInvalidHandle
	}
	delete(r.instances, h)
	return StatusOK
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Supervisor returns the supervisor behind h.
func (r *Registry) Supervisor(h Handle) (*supervisor.Supervisor, bool) {
	inst, ok := r.lookup(h)
	if !ok {
		return nil, false
	}
	return inst.sup, true
}

func (r *Registry) lookup(h Handle) (*instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[h]
	return inst, ok
}

// Ingest converts events to signals and runs one batch. Events whose ids
// are null or not valid UTF-8 are skipped. An unknown handle or an empty
// event list returns no actions.
func (r *Registry) Ingest(ctx context.Context, h Handle, events []Event) ([]ActionRecord, Status) {
	inst, ok := r.lookup(h)
	if !ok {
		return nil, StatusInvalidHandle
	}
	if len(events) == 0 {
		return nil, StatusOK
	}

	signals := make([]supervisor.Signal, 0, len(events))
	for i := range events {
		if sig, ok := events[i].toSignal(); ok {
			signals = append(signals, sig)
		}
	}
	if skipped := len(events) - len(signals); skipped > 0 {
		r.logger.WarnContext(ctx, "skipped unusable events", "handle", h.String(), "skipped", skipped)
	}

	actions := inst.sup.Ingest(ctx, inst.builder, signals)
	out := make([]ActionRecord, len(actions))
	for i := range actions {
		out[i] = actionRecord(&actions[i])
	}
	return out, StatusOK
}

// Snapshot encodes the full state behind h in the ARB1 format.
func (r *Registry) Snapshot(ctx context.Context, h Handle) ([]byte, Status) {
	inst, ok := r.lookup(h)
	if !ok {
		return nil, StatusInvalidHandle
	}
	data, err := snapshot.Marshal(inst.sup.Export(ctx))
	if err != nil {
		r.logger.ErrorContext(ctx, "snapshot encode failed", "handle", h.String(), "error", err)
		return nil, StatusOf(err)
	}
	return data, StatusOK
}

// Restore decodes data and applies it to the supervisor behind h, replacing
// all state, or merging over it when merge is set. The input is fully
// validated first; on any failure nothing is applied and the counts are 0.
func (r *Registry) Restore(ctx context.Context, h Handle, data []byte, merge bool) RestoreResult {
	inst, ok := r.lookup(h)
	if !ok {
		return RestoreResult{Code: StatusInvalidHandle}
	}

	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		code := StatusOf(err)
		r.logger.WarnContext(ctx, "snapshot rejected",
			"handle", h.String(),
			"code", int32(code),
			"error", err,
		)
		return RestoreResult{Code: code}
	}

	var stats supervisor.RestoreStats
	if merge {
		stats = inst.sup.RestoreMerge(ctx, snap)
	} else {
		stats = inst.sup.Restore(ctx, snap)
	}
	return RestoreResult{
		Applied:     saturate(stats.Applied),
		Overwritten: saturate(stats.Overwritten),
		Code:        StatusOK,
	}
}

func saturate(n int) uint32 {
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}
