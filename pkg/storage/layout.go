package storage

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// ChunkPrefix returns the two-character fan-out prefix for a chunk id.
// Hashing the fan-out bounds the entries per directory or key prefix.
// Ids shorter than two characters fall back to the first two hex chars of
// their MD5, so the layout stays defined for degenerate ids.
func ChunkPrefix(chunkID string) string {
	if len(chunkID) >= 2 {
		return chunkID[:2]
	}
	sum := md5.Sum([]byte(chunkID))
	return hex.EncodeToString(sum[:])[:2]
}

// SanitizeChunkID makes a chunk id safe for use inside an object key by
// replacing path separators with underscores.
func SanitizeChunkID(chunkID string) string {
	chunkID = strings.ReplaceAll(chunkID, "/", "_")
	return strings.ReplaceAll(chunkID, "\\", "_")
}
