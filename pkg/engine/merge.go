package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/internal/telemetry"
	"github.com/chunkvault/chunkvault/pkg/metadata"
	"github.com/chunkvault/chunkvault/pkg/storage"
)

// Merge streams the file's chunks into the sink in sequence order. Chunks
// are fetched and written one at a time, so the sink sees bytes in original
// order without buffering the whole file.
//
// Merge does not re-verify chunk payloads against their stored checksums;
// use MergeAndVerify when the caller needs an integrity verdict.
func (e *Engine) Merge(ctx context.Context, fileID string, sink io.Writer) error {
	start := time.Now()
	chunks, written, err := e.merge(ctx, fileID, sink)
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.RecordMerge(chunks, written, time.Since(start), false)
	}
	return nil
}

// MergeAndVerify merges into a seekable sink and, when verify is set,
// re-reads the written region to recompute the whole-file SHA-256. It
// returns true only when the digest matches the file record's stored
// checksum. A mismatch is reported, never repaired.
func (e *Engine) MergeAndVerify(ctx context.Context, fileID string, sink io.ReadWriteSeeker, verify bool) (bool, error) {
	start := time.Now()

	p0, err := sink.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, fmt.Errorf("failed to record sink position: %w", err)
	}

	chunks, written, err := e.merge(ctx, fileID, sink)
	if err != nil {
		return false, err
	}

	verified := true
	if verify {
		record, err := e.store.GetFile(ctx, fileID)
		if err != nil {
			return false, err
		}

		if _, err := sink.Seek(p0, io.SeekStart); err != nil {
			return false, fmt.Errorf("failed to rewind sink for verification: %w", err)
		}
		actual, err := hashStream(ctx, io.LimitReader(sink, written))
		if err != nil {
			return false, err
		}
		if _, err := sink.Seek(p0+written, io.SeekStart); err != nil {
			return false, fmt.Errorf("failed to restore sink position: %w", err)
		}

		verified = strings.EqualFold(actual, record.Checksum)
		if !verified {
			logger.WarnCtx(ctx, "merged content failed checksum verification",
				logger.KeyFileID, fileID,
				"expected_checksum", record.Checksum,
				"actual_checksum", actual)
		}
	}

	if e.metrics != nil {
		e.metrics.RecordMerge(chunks, written, time.Since(start), verified)
	}
	return verified, nil
}

// merge is the shared reassembly loop. Returns the chunk count and bytes
// written to the sink.
func (e *Engine) merge(ctx context.Context, fileID string, sink io.Writer) (int, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanMerge)
	defer span.End()
	span.SetAttributes(telemetry.FileID(fileID))

	chunks, err := e.loadChunks(ctx, fileID)
	if err != nil {
		return 0, 0, err
	}

	// A gap in the sequence means a chunk record was lost; merging around
	// it would silently corrupt the output.
	for i, c := range chunks {
		if c.Sequence != i {
			return 0, 0, storage.NewInvariant(
				fmt.Sprintf("file %s chunk sequence gap: expected %d, found %d", fileID, i, c.Sequence))
		}
	}

	var written int64
	for _, c := range chunks {
		n, err := e.writeChunk(ctx, sink, c)
		if err != nil {
			return 0, written, err
		}
		written += n
	}

	span.SetAttributes(
		telemetry.ChunkCount(len(chunks)),
		telemetry.BytesWritten(written))
	logger.DebugCtx(ctx, "merge completed",
		logger.KeyFileID, fileID,
		logger.KeyChunkCount, len(chunks),
		logger.KeySize, written)
	return len(chunks), written, nil
}

// loadChunks returns the file's chunk records ordered by sequence. An empty
// ownership index falls back to a full scan filtered by the id prefix; that
// path only fires for records predating the index and is worth a warning.
func (e *Engine) loadChunks(ctx context.Context, fileID string) ([]*metadata.ChunkRecord, error) {
	chunks, err := e.store.ListChunksByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 0 {
		return chunks, nil
	}

	all, err := e.store.ListAllChunks(ctx)
	if err != nil {
		return nil, err
	}
	prefix := fileID + "_"
	for _, c := range all {
		if strings.HasPrefix(c.ID, prefix) {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return nil, metadata.NewNotFoundError(fileID, "chunks")
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Sequence < chunks[j].Sequence })
	logger.WarnCtx(ctx, "chunk ownership index empty, recovered chunks by id prefix",
		logger.KeyFileID, fileID,
		logger.KeyChunkCount, len(chunks),
		"suspect", true)
	return chunks, nil
}

// writeChunk fetches one chunk's bytes and streams them into the sink,
// inflating compressed payloads on the way through.
func (e *Engine) writeChunk(ctx context.Context, sink io.Writer, c *metadata.ChunkRecord) (int64, error) {
	provider, ok := e.providers.Get(c.ProviderID)
	if !ok {
		return 0, storage.NewBackendConfig(c.ProviderID, "provider not enabled for chunk "+c.ID, nil)
	}

	data, err := provider.Get(ctx, c.ID, c.StoragePath)
	if err != nil {
		return 0, fmt.Errorf("chunk %s fetch from %s failed: %w", c.ID, c.ProviderID, err)
	}

	if c.IsCompressed {
		return decompressTo(sink, data)
	}
	n, err := sink.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write chunk %s to sink: %w", c.ID, err)
	}
	return int64(n), nil
}
