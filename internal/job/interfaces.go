package job

import (
	"context"
	"time"
)

// Store persists job records, keyed by job id. Implementations own the
// atomicity guarantee: Create and UpdateFields must be safe under
// concurrent callers (gateway handlers plus out-of-process workers)
// without any external locking.
type Store interface {
	// Create persists a new record. Returns ErrAlreadyExists if the id
	// is already present.
	Create(ctx context.Context, j Job) error
	// Get fetches a record by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (Job, error)
	// UpdateFields applies a field-level partial update to one record,
	// never a whole-record replace. Returns ErrNotFound if absent.
	UpdateFields(ctx context.Context, id string, fields Fields) error
	// ListByStatusBefore returns jobs in the given status whose updatedAt
	// is older than cutoff. Used by the reconciliation sweep.
	ListByStatusBefore(ctx context.Context, status Status, cutoff time.Time) ([]Job, error)
	// Close releases store resources.
	Close() error
}

// Queue carries accepted job descriptors to the worker population.
// Delivery is at-least-once; consumers must write status transitions
// defensively because duplicates are possible.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	Close() error
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
