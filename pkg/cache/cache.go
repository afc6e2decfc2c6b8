// Package cache implements the TTL'd metadata cache.
//
// Values are serialized as JSON. The cache is a performance layer only:
// consumers must tolerate cold misses and must never depend on cached data
// for correctness. Deletes are coalesced into batches per operation type;
// enqueued keys become invisible to readers immediately, so invalidation
// is observable before the batch flushes.
package cache

import (
	"context"
	"time"
)

// Default tuning values.
const (
	// DefaultTTL is the entry lifetime when the caller doesn't override it.
	DefaultTTL = 30 * time.Minute

	// DefaultMaxDeleteBatch flushes a delete batch when it reaches this size.
	DefaultMaxDeleteBatch = 100

	// DefaultDeleteCooldown flushes a delete batch this long after its first
	// enqueue, whichever of size and cooldown comes first.
	DefaultDeleteCooldown = 50 * time.Millisecond

	// DefaultSweepInterval is how often expired entries are reclaimed.
	DefaultSweepInterval = time.Minute
)

// Cache is the key-value surface used by the file service and indexer.
type Cache interface {
	// Get decodes the cached value into out and reports whether the key was
	// present. Expired entries, pending deletes, and decode failures all
	// read as absent; decode failures never propagate.
	Get(ctx context.Context, key string, out any) bool

	// Set stores the value under the key with the default TTL. Writes to
	// the same key are single-flighted through a lazily created per-key
	// mutex.
	Set(ctx context.Context, key string, value any) error

	// SetWithTTL stores the value with an explicit lifetime.
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete enqueues the keys for removal, coalesced by operation type.
	// The batch flushes at max size or after the cooldown, whichever comes
	// first. Enqueued keys read as absent immediately.
	Delete(ctx context.Context, opType string, keys ...string)

	// RefreshTTL extends an existing key's lifetime and reports whether the
	// key was present. A missing key is never created.
	RefreshTTL(ctx context.Context, key string) bool

	// Close flushes pending deletes and stops background work.
	Close() error
}
