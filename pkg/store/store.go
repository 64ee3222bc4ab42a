package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nsc-hq/arbiter/pkg/config"
	"nsc-hq/arbiter/pkg/snapshot"
	"nsc-hq/arbiter/pkg/supervisor"
)

// Store saves and loads supervisor snapshots in the ARB1 format for one
// namespace. Nothing is persisted unless Checkpoint or Save is called.
type Store struct {
	backend     Backend
	backendName string
	namespace   string
	logger      *slog.Logger
	baseLogger  *slog.Logger
	metrics     *Metrics
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records operations on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New wraps backend for namespace.
func New(backend Backend, namespace string, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		backendName: backendName(backend),
		namespace:   namespace,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseLogger = s.logger
	s.logger = s.logger.With("component", "store", "namespace", namespace)
	return s
}

// Open creates the backend selected by cfg and wraps it.
func Open(cfg *config.StoreConfig, opts ...Option) (*Store, error) {
	s := New(nil, cfg.Namespace, opts...)

	switch cfg.Backend {
	case "memory", "":
		s.backend = NewMemoryBackend()
	case "sqlite":
		b, err := NewSQLiteBackend(SQLiteConfig{
			Driver:       cfg.SQLite.Driver,
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		}, s.baseLogger)
		if err != nil {
			return nil, err
		}
		s.backend = b
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	s.backendName = backendName(s.backend)
	return s, nil
}

func backendName(b Backend) string {
	switch b.(type) {
	case *MemoryBackend:
		return "memory"
	case *SQLiteBackend:
		return "sqlite"
	default:
		return "custom"
	}
}

// Namespace returns the namespace this store reads and writes.
func (s *Store) Namespace() string {
	return s.namespace
}

// Checkpoint exports the full state of sup and saves it as a new
// generation.
func (s *Store) Checkpoint(ctx context.Context, sup *supervisor.Supervisor) (Generation, error) {
	return s.Save(ctx, sup.Export(ctx))
}

// Save encodes snap and stores it as a new generation.
func (s *Store) Save(ctx context.Context, snap supervisor.Snapshot) (gen Generation, err error) {
	start := time.Now()
	defer func() { s.metrics.recordOp(s.backendName, "save", start, err) }()

	data, err := snapshot.Marshal(snap)
	if err != nil {
		return Generation{}, err
	}

	gen, err = s.backend.Save(ctx, Generation{
		ID:        uuid.New(),
		Namespace: s.namespace,
		CreatedAt: s.now().UTC(),
		Entries:   snap.Len(),
		Size:      len(data),
	}, data)
	if err != nil {
		return Generation{}, err
	}

	s.metrics.recordSave(gen)
	s.logger.InfoContext(ctx, "snapshot saved",
		"generation", gen.ID.String(),
		"seq", gen.Seq,
		"entries", gen.Entries,
		"bytes", gen.Size,
	)
	return gen, nil
}

// Latest loads and decodes the newest generation.
func (s *Store) Latest(ctx context.Context) (gen Generation, snap supervisor.Snapshot, err error) {
	start := time.Now()
	defer func() { s.metrics.recordOp(s.backendName, "latest", start, err) }()

	gen, data, err := s.backend.Latest(ctx, s.namespace)
	if err != nil {
		return Generation{}, supervisor.Snapshot{}, err
	}
	return s.decode(gen, data)
}

// Load loads and decodes the generation with the given id.
func (s *Store) Load(ctx context.Context, id uuid.UUID) (gen Generation, snap supervisor.Snapshot, err error) {
	start := time.Now()
	defer func() { s.metrics.recordOp(s.backendName, "load", start, err) }()

	gen, data, err := s.backend.Load(ctx, id)
	if err != nil {
		return Generation{}, supervisor.Snapshot{}, err
	}
	return s.decode(gen, data)
}

// LoadRaw returns the encoded bytes of a generation without decoding them.
func (s *Store) LoadRaw(ctx context.Context, id uuid.UUID) (Generation, []byte, error) {
	return s.backend.Load(ctx, id)
}

func (s *Store) decode(gen Generation, data []byte) (Generation, supervisor.Snapshot, error) {
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return Generation{}, supervisor.Snapshot{}, fmt.Errorf("generation %s: %w", gen.ID, err)
	}
	return gen, snap, nil
}

// Recover restores sup from the newest generation, replacing its state or
// merging over it. Returns ErrNotFound when nothing has been saved.
func (s *Store) Recover(ctx context.Context, sup *supervisor.Supervisor, merge bool) (Generation, supervisor.RestoreStats, error) {
	gen, snap, err := s.Latest(ctx)
	if err != nil {
		return Generation{}, supervisor.RestoreStats{}, err
	}

	var stats supervisor.RestoreStats
	if merge {
		stats = sup.RestoreMerge(ctx, snap)
	} else {
		stats = sup.Restore(ctx, snap)
	}

	s.logger.InfoContext(ctx, "supervisor recovered",
		"generation", gen.ID.String(),
		"merge", merge,
		"applied", stats.Applied,
		"overwritten", stats.Overwritten,
	)
	return gen, stats, nil
}

// List returns the stored generations, newest first.
func (s *Store) List(ctx context.Context) (gens []Generation, err error) {
	start := time.Now()
	defer func() { s.metrics.recordOp(s.backendName, "list", start, err) }()

	return s.backend.List(ctx, s.namespace)
}

// Prune deletes all but the newest keep generations.
func (s *Store) Prune(ctx context.Context, keep int) (n int, err error) {
	start := time.Now()
	defer func() { s.metrics.recordOp(s.backendName, "prune", start, err) }()

	n, err = s.backend.Prune(ctx, s.namespace, keep)
	if err != nil {
		return 0, err
	}
	s.metrics.recordPruned(n)
	return n, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
