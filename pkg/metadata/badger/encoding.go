package badger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so prefixed keys organize the collections
// into logical namespaces. Secondary indexes are key-only entries written in
// the same transaction as the document, which keeps them consistent without
// a separate index maintenance pass.
//
// Data Type              Prefix    Key Format                               Value
// ================================================================================
// File Document          "f:"      f:<id>                                   FileRecord (JSON)
// File Path Index        "fp:"     fp:<fullPath>                            id (bytes)
// File Parent Index      "fr:"     fr:<parentId>:<id>                       (empty)
// File Type Index        "ft:"     ft:<type>:<id>                           (empty)
// File Checksum Index    "fc:"     fc:<checksum>:<id>                       (empty)
// Chunk Document         "k:"      k:<chunkId>                              ChunkRecord (JSON)
// Chunk File Index       "kf:"     kf:<fileId>:<seq, 10-digit zero-pad>     chunkId (bytes)
// Chunk Provider Index   "kp:"     kp:<providerId>:<chunkId>                (empty)
// Chunk Created Index    "kc:"     kc:<unix-nanos, 19-digit zero-pad>:<chunkId>  (empty)
// Log Document           "lg:"     lg:<correlationId>:<id>                  LogRecord (JSON, TTL)
//
// The zero-padded sequence in the chunk file index makes a plain prefix scan
// return chunks in ascending sequence order; the zero-padded nanoseconds in
// the created index do the same for creation time.

const (
	prefixFile          = "f:"
	prefixFilePath      = "fp:"
	prefixFileParent    = "fr:"
	prefixFileType      = "ft:"
	prefixFileChecksum  = "fc:"
	prefixChunk         = "k:"
	prefixChunkFile     = "kf:"
	prefixChunkProvider = "kp:"
	prefixChunkCreated  = "kc:"
	prefixLog           = "lg:"
)

// ============================================================================
// Key Generation Functions
// ============================================================================

// keyFile generates a key for a file document: "f:<id>"
func keyFile(id string) []byte {
	return []byte(prefixFile + id)
}

// keyFilePath generates a key for the path index: "fp:<fullPath>"
func keyFilePath(fullPath string) []byte {
	return []byte(prefixFilePath + fullPath)
}

// keyFileParent generates a key for the parent index: "fr:<parentId>:<id>"
func keyFileParent(parentID, id string) []byte {
	return []byte(prefixFileParent + parentID + ":" + id)
}

// keyFileParentPrefix generates the scan prefix for a directory's children.
func keyFileParentPrefix(parentID string) []byte {
	return []byte(prefixFileParent + parentID + ":")
}

// keyFileType generates a key for the type index: "ft:<type>:<id>"
func keyFileType(t metadata.FileType, id string) []byte {
	return []byte(prefixFileType + string(t) + ":" + id)
}

// keyFileChecksum generates a key for the checksum index: "fc:<checksum>:<id>"
func keyFileChecksum(checksum, id string) []byte {
	return []byte(prefixFileChecksum + checksum + ":" + id)
}

// keyChunk generates a key for a chunk document: "k:<chunkId>"
func keyChunk(id string) []byte {
	return []byte(prefixChunk + id)
}

// keyChunkFile generates a key for the ordered per-file chunk index.
// The sequence is zero-padded so lexicographic order equals numeric order.
func keyChunkFile(fileID string, sequence int) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", prefixChunkFile, fileID, sequence))
}

// keyChunkFilePrefix generates the scan prefix for a file's chunks.
func keyChunkFilePrefix(fileID string) []byte {
	return []byte(prefixChunkFile + fileID + ":")
}

// keyChunkProvider generates a key for the provider index.
func keyChunkProvider(providerID, chunkID string) []byte {
	return []byte(prefixChunkProvider + providerID + ":" + chunkID)
}

// keyChunkCreated generates a key for the creation-time index. Zero-padded
// unix nanoseconds keep lexicographic order chronological.
func keyChunkCreated(createdAt time.Time, chunkID string) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", prefixChunkCreated, createdAt.UnixNano(), chunkID))
}

// keyChunkCreatedSeek generates the seek position for scans starting at the
// given time.
func keyChunkCreatedSeek(since time.Time) []byte {
	return []byte(fmt.Sprintf("%s%019d:", prefixChunkCreated, since.UnixNano()))
}

// keyLog generates a key for a log document: "lg:<correlationId>:<id>"
func keyLog(correlationID, id string) []byte {
	return []byte(prefixLog + correlationID + ":" + id)
}

// keyLogPrefix generates the scan prefix for a correlation's log records.
func keyLogPrefix(correlationID string) []byte {
	return []byte(prefixLog + correlationID + ":")
}

// ============================================================================
// JSON Encoding/Decoding
// ============================================================================

func encodeFileRecord(record *metadata.FileRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file record: %w", err)
	}
	return data, nil
}

func decodeFileRecord(data []byte) (*metadata.FileRecord, error) {
	var record metadata.FileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode file record: %w", err)
	}
	return &record, nil
}

func encodeChunkRecord(record *metadata.ChunkRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk record: %w", err)
	}
	return data, nil
}

func decodeChunkRecord(data []byte) (*metadata.ChunkRecord, error) {
	var record metadata.ChunkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode chunk record: %w", err)
	}
	return &record, nil
}

func encodeLogRecord(record *metadata.LogRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode log record: %w", err)
	}
	return data, nil
}

func decodeLogRecord(data []byte) (*metadata.LogRecord, error) {
	var record metadata.LogRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode log record: %w", err)
	}
	return &record, nil
}
