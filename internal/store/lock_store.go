// internal/store/lock_store.go
package store

import (
	"context"
	"time"
)

// LockStore provides durable storage of edit locks keyed by (document, section)
type LockStore interface {
	// Load returns the current lock set of a document
	Load(ctx context.Context, documentID int64) (LockSet, error)

	// Save upserts a record by (document, section)
	Save(ctx context.Context, rec LockRecord) error

	// Remove deletes the lock on one section of a document
	Remove(ctx context.Context, documentID int64, section int) error

	// RemoveAll deletes every lock of a document
	RemoveAll(ctx context.Context, documentID int64) error

	// RemoveByUser deletes every lock owned by userID across all documents
	RemoveByUser(ctx context.Context, userID int64) error

	// Update runs fn as one atomic read-decide-write unit on a document.
	// fn may be invoked more than once when a concurrent writer wins the race.
	Update(ctx context.Context, documentID int64, fn func(tx *Tx) error) error

	// RemoveExpired deletes every lock acquired before the cutoff and returns how many went
	RemoveExpired(ctx context.Context, before time.Time) (int, error)

	// Close releases resources held by the store
	Close()

	// GetConfig returns the current store configuration
	GetConfig() StoreConfig
}
