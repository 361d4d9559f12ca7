package storage

import (
	"context"

	"authpool-go/internal/profile"
)

// Backend is the persistence surface for the shared profile pool: snapshot
// reads for advisory queries, full-snapshot writes, the locked
// read-modify-write path every mutation must take, and access to the raw
// persisted bytes for diagnostics.
type Backend interface {
	// Load decodes the current persisted snapshot. A missing store decodes
	// as an empty pool, not an error.
	Load(ctx context.Context) (*profile.AuthProfileStore, error)

	// Save persists a full snapshot.
	Save(ctx context.Context, store *profile.AuthProfileStore) error

	// WithLock acquires the exclusive store lock, reloads the latest
	// persisted state, applies mutate and persists the result unless mutate
	// returned a nil store. Errors from mutate or the lock/persist layer
	// propagate unchanged.
	WithLock(ctx context.Context, mutate func(*profile.AuthProfileStore) (*profile.AuthProfileStore, error)) error

	// Raw returns the persisted snapshot verbatim, before any decoding.
	Raw(ctx context.Context) ([]byte, error)
}
