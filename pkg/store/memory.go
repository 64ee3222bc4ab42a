package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

type memoryRecord struct {
	gen  Generation
	data []byte
}

// MemoryBackend implements Backend using in-memory storage.
// All data is lost when the process exits.
type MemoryBackend struct {
	mu         sync.RWMutex
	seq        int64
	namespaces map[string][]*memoryRecord // oldest first
	byID       map[uuid.UUID]*memoryRecord
	closed     bool
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		namespaces: make(map[string][]*memoryRecord),
		byID:       make(map[uuid.UUID]*memoryRecord),
	}
}

// Save stores a copy of data.
func (m *MemoryBackend) Save(ctx context.Context, gen Generation, data []byte) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, NewStorageError("memory", "save", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Generation{}, NewStorageError("memory", "save", ErrClosed)
	}

	m.seq++
	gen.Seq = m.seq
	rec := &memoryRecord{gen: gen, data: slices.Clone(data)}
	m.namespaces[gen.Namespace] = append(m.namespaces[gen.Namespace], rec)
	m.byID[gen.ID] = rec
	return gen, nil
}

// Latest returns the newest generation in namespace.
func (m *MemoryBackend) Latest(ctx context.Context, namespace string) (Generation, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Generation{}, nil, NewStorageError("memory", "latest", ErrClosed)
	}

	recs := m.namespaces[namespace]
	if len(recs) == 0 {
		return Generation{}, nil, ErrNotFound
	}
	rec := recs[len(recs)-1]
	return rec.gen, slices.Clone(rec.data), nil
}

// Load returns the generation with the given id.
func (m *MemoryBackend) Load(ctx context.Context, id uuid.UUID) (Generation, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Generation{}, nil, NewStorageError("memory", "load", ErrClosed)
	}

	rec, ok := m.byID[id]
	if !ok {
		return Generation{}, nil, ErrNotFound
	}
	return rec.gen, slices.Clone(rec.data), nil
}

// List returns the generations in namespace, newest first.
func (m *MemoryBackend) List(ctx context.Context, namespace string) ([]Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, NewStorageError("memory", "list", ErrClosed)
	}

	recs := m.namespaces[namespace]
	out := make([]Generation, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		out = append(out, recs[i].gen)
	}
	return out, nil
}

// Prune keeps the newest keep generations in namespace.
func (m *MemoryBackend) Prune(ctx context.Context, namespace string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, NewStorageError("memory", "prune", ErrClosed)
	}

	recs := m.namespaces[namespace]
	if len(recs) <= keep {
		return 0, nil
	}

	drop := len(recs) - keep
	for _, rec := range recs[:drop] {
		delete(m.byID, rec.gen.ID)
	}
	m.namespaces[namespace] = slices.Clone(recs[drop:])
	return drop, nil
}

// Close releases all stored data.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.namespaces = nil
	m.byID = nil
	return nil
}
