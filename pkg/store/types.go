package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Backend persists encoded snapshot generations.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Save stores data as a new generation. The backend assigns Seq and
	// returns the completed Generation.
	Save(ctx context.Context, gen Generation, data []byte) (Generation, error)

	// Latest returns the newest generation in namespace. Returns
	// ErrNotFound when the namespace is empty.
	Latest(ctx context.Context, namespace string) (Generation, []byte, error)

	// Load returns a generation by id. Returns ErrNotFound if it does not
	// exist.
	Load(ctx context.Context, id uuid.UUID) (Generation, []byte, error)

	// List returns the generations in namespace, newest first.
	List(ctx context.Context, namespace string) ([]Generation, error)

	// Prune deletes all but the newest keep generations in namespace and
	// returns how many were deleted. keep <= 0 deletes nothing.
	Prune(ctx context.Context, namespace string, keep int) (int, error)

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// Generation describes one stored snapshot.
type Generation struct {
	// ID is the generation identifier.
	ID uuid.UUID `json:"id"`

	// Seq orders generations within a backend. Larger is newer.
	Seq int64 `json:"seq"`

	// Namespace groups generations belonging to one supervisor.
	Namespace string `json:"namespace"`

	// CreatedAt is when the generation was saved.
	CreatedAt time.Time `json:"created_at"`

	// Entries is the number of intents in the snapshot.
	Entries int `json:"entries"`

	// Size is the encoded size in bytes.
	Size int `json:"size"`
}
