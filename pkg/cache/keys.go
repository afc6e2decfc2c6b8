package cache

import "strings"

// Key kinds. The kind doubles as the delete operation type for coalescing
// and as the metrics label, so invalidations of the same shape batch
// together.
const (
	KindFile        = "file"
	KindChunk       = "chunk"
	KindFileChunks  = "file-chunks"
	KindDirChildren = "dir-children"
	KindVerdict     = "verdict"
)

// KeyFile builds the cache key for a file record.
func KeyFile(fileID string) string {
	return KindFile + ":" + fileID
}

// KeyChunk builds the cache key for a chunk record.
func KeyChunk(chunkID string) string {
	return KindChunk + ":" + chunkID
}

// KeyFileChunks builds the cache key for a file's ordered chunk list.
func KeyFileChunks(fileID string) string {
	return KindFileChunks + ":" + fileID
}

// KeyDirChildren builds the cache key for a directory's child list.
func KeyDirChildren(parentID string) string {
	return KindDirChildren + ":" + parentID
}

// KeyVerdict builds the cache key for a file's integrity verdict.
func KeyVerdict(fileID string) string {
	return KindVerdict + ":" + fileID
}

// Kind extracts the key kind from a full cache key.
func Kind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}
