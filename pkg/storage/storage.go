// Package storage defines the chunk storage provider abstraction.
//
// A provider stores opaque chunk payloads addressed by chunk id and an
// opaque storage path of its own choosing. The engine is provider-agnostic:
// it persists whatever path put returned and presents it back on get,
// exists, and delete. Implementations live in the subpackages filesystem,
// badgerstore, and s3.
package storage

import "context"

// Provider is the capability set every chunk storage backend exposes.
//
// Contract:
//   - Put is atomic with respect to crash: the returned storage path is
//     never observable by Get or Exists unless the full payload is durable.
//   - Get returns bytes identical to those supplied to Put.
//   - Delete is idempotent: deleting a missing chunk returns (false, nil).
//   - Exists never fails for a well-formed id.
//
// Implementations may derive their own path from the chunk id when the
// given storage path is empty; callers must persist whatever Put returned.
type Provider interface {
	// ID is the unique lowercase provider id referenced by chunk records.
	ID() string

	// Type is the human-readable backend name.
	Type() string

	// Put stores the payload and returns the provider's storage path.
	Put(ctx context.Context, chunkID string, data []byte) (string, error)

	// Get returns the payload previously stored for the chunk.
	Get(ctx context.Context, chunkID, storagePath string) ([]byte, error)

	// Exists reports whether the chunk's payload is durable.
	Exists(ctx context.Context, chunkID, storagePath string) (bool, error)

	// Delete removes the payload. The bool reports whether bytes were
	// actually removed; a missing chunk is not an error.
	Delete(ctx context.Context, chunkID, storagePath string) (bool, error)

	// Close releases backend resources.
	Close() error
}
