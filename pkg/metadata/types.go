// Package metadata defines the persisted document model for chunkvault:
// file records, chunk records, operation log records, and the store
// interfaces implemented by the BadgerDB backend.
package metadata

import (
	"fmt"
	"time"
)

// FileStatus is the lifecycle state of a file record.
type FileStatus string

const (
	// FileStatusPending marks a record created but not yet processed.
	FileStatusPending FileStatus = "pending"

	// FileStatusProcessing marks a record whose chunk pipeline is running.
	FileStatusProcessing FileStatus = "processing"

	// FileStatusCompleted marks a record whose chunks are all durable.
	// A completed record satisfies chunkCount == len(chunks(fileId)) and
	// its checksum equals the SHA-256 of the reassembled bytes.
	FileStatusCompleted FileStatus = "completed"

	// FileStatusError marks a record whose pipeline failed unrecoverably.
	FileStatusError FileStatus = "error"

	// FileStatusFailed is a terminal state set by external collaborators
	// (e.g. a forced delete that could not clean up every chunk).
	FileStatusFailed FileStatus = "failed"
)

// FileType distinguishes indexed directory entries from regular files.
type FileType string

const (
	FileTypeFile      FileType = "file"
	FileTypeDirectory FileType = "directory"
)

// TagDuplicate is attached by the directory indexer to every file record
// whose checksum is shared with at least one other record.
const TagDuplicate = "duplicate"

// FileRecord is the persisted document describing one ingested or indexed
// file.
type FileRecord struct {
	// ID is the opaque stable identity of the record.
	ID string `json:"id"`

	// Name is the display name (basename) of the file.
	Name string `json:"name"`

	// FullPath is the captured filesystem path (directory indexing only).
	FullPath string `json:"fullPath,omitempty"`

	// Size is the original uncompressed byte length.
	Size int64 `json:"size"`

	// ContentType is a content-type hint guessed from the extension.
	ContentType string `json:"contentType,omitempty"`

	// Extension is the lowercase file extension including the dot.
	Extension string `json:"extension,omitempty"`

	// Type marks the record as a file or directory entry.
	Type FileType `json:"type"`

	// Checksum is the SHA-256 hex digest of the original bytes.
	Checksum string `json:"checksum,omitempty"`

	// ChunkCount is the number of chunks the file was split into.
	ChunkCount int `json:"chunkCount"`

	// Status is the lifecycle state.
	Status FileStatus `json:"status"`

	// CorrelationID tags the operation that created the record.
	CorrelationID string `json:"correlationId,omitempty"`

	// ParentID links an indexed entry to its directory record.
	ParentID string `json:"parentId,omitempty"`

	// Tags carries free-form labels; the indexer adds "duplicate".
	Tags []string `json:"tags,omitempty"`

	// IsIndexed reports whether the indexer hashed the on-disk bytes.
	IsIndexed bool `json:"isIndexed,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasTag reports whether the record carries the given tag.
func (f *FileRecord) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a tag if not already present and reports whether the
// record changed.
func (f *FileRecord) AddTag(tag string) bool {
	if f.HasTag(tag) {
		return false
	}
	f.Tags = append(f.Tags, tag)
	return true
}

// ChunkStatus is the lifecycle state of a chunk record.
type ChunkStatus string

const (
	ChunkStatusPending ChunkStatus = "pending"
	ChunkStatusStored  ChunkStatus = "stored"
	ChunkStatusError   ChunkStatus = "error"
)

// ChunkRecord is the persisted document describing one stored chunk.
//
// Identity is "<fileId>_<sequenceNumber>". Sequence numbers for a file are
// 0-based and contiguous; the sum of Size over a file's chunks equals the
// file's byte length.
type ChunkRecord struct {
	// ID is "<fileId>_<sequenceNumber>".
	ID string `json:"id"`

	// FileID is the owning file record id.
	FileID string `json:"fileId"`

	// Sequence is the 0-based position of the chunk within its file.
	Sequence int `json:"sequence"`

	// Size is the declared uncompressed size of the chunk.
	Size int64 `json:"size"`

	// StoredSize is the size actually written to the provider. Equal to
	// Size when compression is disabled.
	StoredSize int64 `json:"storedSize"`

	// Checksum is the SHA-256 hex digest of the uncompressed bytes.
	Checksum string `json:"checksum"`

	// IsCompressed reports whether the stored bytes are gzip-wrapped.
	IsCompressed bool `json:"isCompressed"`

	// ProviderID references the storage provider holding the bytes.
	// Weak reference: a missing provider fails this chunk only.
	ProviderID string `json:"providerId"`

	// StoragePath is the opaque locator returned by the provider's put.
	// The (ProviderID, StoragePath) pair uniquely locates the bytes.
	StoragePath string `json:"storagePath"`

	Status        ChunkStatus `json:"status"`
	CorrelationID string      `json:"correlationId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChunkID builds the chunk record identity for a file and sequence number.
func ChunkID(fileID string, sequence int) string {
	return fmt.Sprintf("%s_%d", fileID, sequence)
}

// LogRecord is one entry in the TTL'd logs collection. Records expire after
// the configured horizon (default 30 days).
type LogRecord struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlationId"`
	Operation     string    `json:"operation"`
	Entity        string    `json:"entity,omitempty"`
	Outcome       string    `json:"outcome"`
	Message       string    `json:"message,omitempty"`
	DurationMs    float64   `json:"durationMs"`
	Timestamp     time.Time `json:"timestamp"`
}
