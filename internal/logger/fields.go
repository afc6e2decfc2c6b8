package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that records can
// be aggregated and queried by correlation id, file id, or provider.
const (
	// ========================================================================
	// Correlation & Operation
	// ========================================================================
	KeyCorrelationID = "correlation_id" // UUID tagging one user-initiated operation
	KeyOperation     = "operation"      // Operation name: upload, download, merge, ...
	KeyEntity        = "entity"         // Primary entity id for the operation
	KeyOutcome       = "outcome"        // Operation outcome: ok, fail

	// ========================================================================
	// Files & Chunks
	// ========================================================================
	KeyFileID         = "file_id"         // File record identifier
	KeyFileName       = "file_name"       // Display name of the file
	KeyChunkID        = "chunk_id"        // Chunk identifier (<fileId>_<seq>)
	KeySequence       = "sequence"        // Chunk sequence number (0-based)
	KeyChunkCount     = "chunk_count"     // Number of chunks for a file
	KeySize           = "size"            // Uncompressed size in bytes
	KeyCompressedSize = "compressed_size" // Stored (possibly compressed) size
	KeyChecksum       = "checksum"        // SHA-256 hex digest
	KeyStatus         = "status"          // File/chunk lifecycle status

	// ========================================================================
	// Storage Providers
	// ========================================================================
	KeyProviderID   = "provider_id"   // Provider identifier (lowercase)
	KeyProviderType = "provider_type" // Human-readable provider type
	KeyStoragePath  = "storage_path"  // Opaque path returned by the provider
	KeyBucket       = "bucket"        // Remote bucket name
	KeyAttempt      = "attempt"       // Retry attempt number

	// ========================================================================
	// Filesystem & Indexing
	// ========================================================================
	KeyPath      = "path"      // Full file/directory path
	KeyParentID  = "parent_id" // Parent directory record id
	KeyRecursive = "recursive" // Recursive walk indicator

	// ========================================================================
	// Cache
	// ========================================================================
	KeyCacheKey = "cache_key" // Cache key
	KeyCacheHit = "cache_hit" // Cache hit indicator

	// ========================================================================
	// Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyCount      = "count"       // Generic count (entries, deletes, ...)
	KeyEventType  = "event_type"  // Event bus event type
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// CorrelationID returns a slog.Attr for a correlation id
func CorrelationID(id string) slog.Attr {
	return slog.String(KeyCorrelationID, id)
}

// Operation returns a slog.Attr for an operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// FileID returns a slog.Attr for a file record id
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// ChunkID returns a slog.Attr for a chunk id
func ChunkID(id string) slog.Attr {
	return slog.String(KeyChunkID, id)
}

// Sequence returns a slog.Attr for a chunk sequence number
func Sequence(seq int) slog.Attr {
	return slog.Int(KeySequence, seq)
}

// Size returns a slog.Attr for a byte size
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Checksum returns a slog.Attr for a SHA-256 hex digest
func Checksum(sum string) slog.Attr {
	return slog.String(KeyChecksum, sum)
}

// ProviderID returns a slog.Attr for a storage provider id
func ProviderID(id string) slog.Attr {
	return slog.String(KeyProviderID, id)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// CacheHit returns a slog.Attr for a cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}
