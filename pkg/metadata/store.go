package metadata

import (
	"context"
	"time"
)

// FileFilter narrows List results. Zero-value fields are ignored.
type FileFilter struct {
	// FullPath matches a single record by captured path.
	FullPath string

	// ParentID matches all children of a directory record.
	ParentID string

	// Type matches records of the given type.
	Type FileType

	// Checksum matches all records carrying the digest.
	Checksum string

	// Status matches records in the given lifecycle state.
	Status FileStatus
}

// FileStore is the files collection.
//
// Every operation takes the caller's context; the correlation id carried by
// the context is propagated to the store's telemetry hook. Add rejects
// existing ids; Replace rejects missing ids (no upsert).
type FileStore interface {
	// GetFile returns the record with the given id.
	GetFile(ctx context.Context, id string) (*FileRecord, error)

	// GetFileByPath returns the record captured at the given path.
	GetFileByPath(ctx context.Context, fullPath string) (*FileRecord, error)

	// ListFiles returns all records matching the filter, unordered.
	ListFiles(ctx context.Context, filter FileFilter) ([]*FileRecord, error)

	// AddFile inserts a new record. Fails with ErrAlreadyExists when the
	// id is taken.
	AddFile(ctx context.Context, record *FileRecord) error

	// ReplaceFile overwrites an existing record. Fails with ErrNotFound
	// when the id is absent.
	ReplaceFile(ctx context.Context, record *FileRecord) error

	// DeleteFile removes the record. Deleting a missing id is not an
	// error; the bool reports whether a record was removed.
	DeleteFile(ctx context.Context, id string) (bool, error)
}

// ChunkStore is the chunks collection.
type ChunkStore interface {
	// GetChunk returns the record with the given id.
	GetChunk(ctx context.Context, id string) (*ChunkRecord, error)

	// ListChunksByFile returns the file's chunks sorted by ascending
	// sequence number.
	ListChunksByFile(ctx context.Context, fileID string) ([]*ChunkRecord, error)

	// ListAllChunks returns every chunk record. Used only by the merge
	// compatibility path and by diagnostics.
	ListAllChunks(ctx context.Context) ([]*ChunkRecord, error)

	// ListChunksCreatedSince returns chunks created at or after the given
	// time, oldest first.
	ListChunksCreatedSince(ctx context.Context, since time.Time) ([]*ChunkRecord, error)

	// AddChunk inserts a new record. Fails with ErrAlreadyExists when
	// the id is taken.
	AddChunk(ctx context.Context, record *ChunkRecord) error

	// ReplaceChunk overwrites an existing record.
	ReplaceChunk(ctx context.Context, record *ChunkRecord) error

	// DeleteChunk removes one record; the bool reports whether a record
	// was removed.
	DeleteChunk(ctx context.Context, id string) (bool, error)

	// DeleteChunksByFile removes every chunk owned by the file and
	// returns the number removed.
	DeleteChunksByFile(ctx context.Context, fileID string) (int, error)
}

// LogStore is the optional TTL'd logs collection.
type LogStore interface {
	// AppendLog inserts a log record with the store's configured TTL.
	AppendLog(ctx context.Context, record *LogRecord) error

	// ListLogsByCorrelation returns the records tagged with the id,
	// oldest first.
	ListLogsByCorrelation(ctx context.Context, correlationID string) ([]*LogRecord, error)
}

// Store is the full metadata surface backed by one document database.
type Store interface {
	FileStore
	ChunkStore
	LogStore

	// Close releases the underlying database.
	Close() error
}

// Now returns the store timestamp for new and updated records. Split out
// so tests can compare truncated values consistently.
func Now() time.Time {
	return time.Now().UTC()
}
