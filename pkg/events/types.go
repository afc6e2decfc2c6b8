package events

// Event type names. Dispatch is keyed on these, so a handler declares the
// one it consumes.
const (
	TypeChunkStored    = "ChunkStored"
	TypeFileProcessed  = "FileProcessed"
	TypeDirectoryScan  = "DirectoryScan"
	TypeFileDiscovered = "FileDiscovered"
)

// ChunkStored is published after a chunk's bytes are durable on its
// provider and its record is persisted.
type ChunkStored struct {
	Base

	ChunkID        string `json:"chunkId"`
	FileID         string `json:"fileId"`
	Sequence       int    `json:"sequence"`
	Size           int64  `json:"size"`
	CompressedSize int64  `json:"compressedSize"`
	Checksum       string `json:"checksum"`
	ProviderID     string `json:"providerId"`
}

// NewChunkStored creates a ChunkStored event.
func NewChunkStored(correlationID string) *ChunkStored {
	return &ChunkStored{Base: newBase(TypeChunkStored, correlationID)}
}

// FileProcessed is published once per successful upload, after the file
// record reaches its completed state.
type FileProcessed struct {
	Base

	FileID     string `json:"fileId"`
	FileName   string `json:"fileName"`
	FileSize   int64  `json:"fileSize"`
	Checksum   string `json:"checksum"`
	ChunkCount int    `json:"chunkCount"`
}

// NewFileProcessed creates a FileProcessed event.
func NewFileProcessed(correlationID string) *FileProcessed {
	return &FileProcessed{Base: newBase(TypeFileProcessed, correlationID)}
}

// DirectoryScan is published when the indexer finishes walking a tree.
type DirectoryScan struct {
	Base

	Path             string  `json:"path"`
	FileCount        int     `json:"fileCount"`
	DirectoryCount   int     `json:"directoryCount"`
	TotalSize        int64   `json:"totalSize"`
	ProcessedContent bool    `json:"processedContent"`
	Recursive        bool    `json:"recursive"`
	ElapsedMs        float64 `json:"elapsedMs"`
	ChunkCount       int     `json:"chunkCount"`
	ErrorCount       int     `json:"errorCount"`
}

// NewDirectoryScan creates a DirectoryScan event.
func NewDirectoryScan(correlationID string) *DirectoryScan {
	return &DirectoryScan{Base: newBase(TypeDirectoryScan, correlationID)}
}

// FileDiscovered is published for every file the indexer records.
type FileDiscovered struct {
	Base

	FileID       string   `json:"fileId"`
	FilePath     string   `json:"filePath"`
	FileName     string   `json:"fileName"`
	FileSize     int64    `json:"fileSize"`
	Extension    string   `json:"extension"`
	ContentType  string   `json:"contentType"`
	Checksum     string   `json:"checksum"`
	WasProcessed bool     `json:"wasProcessed"`
	ChunkCount   int      `json:"chunkCount"`
	Status       string   `json:"status"`
	ParentID     string   `json:"parentId"`
	Tags         []string `json:"tags"`
	ElapsedMs    float64  `json:"elapsedMs"`
}

// NewFileDiscovered creates a FileDiscovered event.
func NewFileDiscovered(correlationID string) *FileDiscovered {
	return &FileDiscovered{Base: newBase(TypeFileDiscovered, correlationID)}
}
