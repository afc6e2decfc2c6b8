package engine

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/chunkvault/chunkvault/pkg/bufpool"
)

// gzipLevel maps the 1-9 configuration setting onto the codec's three-way
// choice: low settings favor speed, high settings favor size, the middle
// band balances.
func gzipLevel(setting int) int {
	switch {
	case setting <= 3:
		return gzip.BestSpeed
	case setting >= 8:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

// compressChunk gzip-wraps the payload at the configured level.
func compressChunk(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) / 2)

	zw, err := gzip.NewWriterLevel(&buf, gzipLevel(level))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to compress chunk: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressTo streams the gzip payload into the sink with a pooled buffer.
func decompressTo(sink io.Writer, data []byte) (int64, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()

	buf := bufpool.Get(bufpool.DefaultMediumSize)
	defer bufpool.Put(buf)

	n, err := io.CopyBuffer(sink, zr, buf)
	if err != nil {
		return n, fmt.Errorf("failed to decompress chunk: %w", err)
	}
	return n, nil
}
