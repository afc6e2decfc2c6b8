package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/internal/telemetry"
	"github.com/chunkvault/chunkvault/pkg/bufpool"
	"github.com/chunkvault/chunkvault/pkg/events"
	"github.com/chunkvault/chunkvault/pkg/metadata"
	"github.com/chunkvault/chunkvault/pkg/window"
)

// Split ingests the source as a new file: plans a chunk size, fans the
// ranges out over a bounded worker set, and transitions the record to
// completed only after every chunk is durable.
//
// A cancelled or failed split leaves the record in processing or error,
// never in completed with missing chunks.
func (e *Engine) Split(ctx context.Context, source io.Reader, fileID, fileName string) (*metadata.FileRecord, error) {
	w, err := window.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	if w.Size() == 0 {
		return nil, ErrEmptyInput
	}

	checksum, err := hashStream(ctx, w.SectionReader())
	if err != nil {
		return nil, err
	}

	if fileID == "" {
		fileID = uuid.NewString()
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	now := metadata.Now()
	record := &metadata.FileRecord{
		ID:            fileID,
		Name:          fileName,
		Size:          w.Size(),
		ContentType:   mime.TypeByExtension(ext),
		Extension:     ext,
		Type:          metadata.FileTypeFile,
		Checksum:      checksum,
		Status:        metadata.FileStatusProcessing,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.store.AddFile(ctx, record); err != nil {
		return nil, err
	}

	return e.runPipeline(ctx, w, record)
}

// SplitExisting re-ingests the source into an existing file record,
// replacing its chunks. Used when a captured file's content changed or a
// failed upload is retried under the same id.
func (e *Engine) SplitExisting(ctx context.Context, source io.Reader, fileID string) (*metadata.FileRecord, error) {
	record, err := e.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	w, err := window.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	if w.Size() == 0 {
		return nil, ErrEmptyInput
	}

	checksum, err := hashStream(ctx, w.SectionReader())
	if err != nil {
		return nil, err
	}

	// Evict the previous generation of chunks before re-splitting.
	oldChunks, err := e.store.ListChunksByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	e.deleteChunkBytes(ctx, oldChunks)
	if _, err := e.store.DeleteChunksByFile(ctx, fileID); err != nil {
		return nil, err
	}

	record.Size = w.Size()
	record.Checksum = checksum
	record.Status = metadata.FileStatusProcessing
	record.CorrelationID = logger.CorrelationIDFromContext(ctx)
	record.UpdatedAt = metadata.Now()
	if err := e.store.ReplaceFile(ctx, record); err != nil {
		return nil, err
	}

	return e.runPipeline(ctx, w, record)
}

// runPipeline executes steps shared by Split and SplitExisting: plan,
// fan out, wait, finalize the record, publish FileProcessed.
func (e *Engine) runPipeline(ctx context.Context, w *window.Window, record *metadata.FileRecord) (*metadata.FileRecord, error) {
	start := time.Now()
	size := w.Size()
	chunkSize := e.cfg.OptimalChunkSize(size)
	count := int((size + chunkSize - 1) / chunkSize)

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSplit)
	defer span.End()
	span.SetAttributes(
		telemetry.FileID(record.ID),
		telemetry.FileSize(size),
		telemetry.ChunkCount(count))

	record.ChunkCount = count
	record.UpdatedAt = metadata.Now()
	if err := e.store.ReplaceFile(ctx, record); err != nil {
		return nil, err
	}

	logger.DebugCtx(ctx, "split planned",
		logger.KeyFileID, record.ID,
		logger.KeySize, size,
		logger.KeyChunkCount, count)

	var storedTotal atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallelTasks)
	for i := 0; i < count; i++ {
		seq := i
		g.Go(func() error {
			return e.processChunk(gctx, w, record, seq, chunkSize, &storedTotal)
		})
	}

	if err := g.Wait(); err != nil {
		// The record ends in error even when the caller's context died;
		// a detached context keeps the status write alive.
		record.Status = metadata.FileStatusError
		record.UpdatedAt = metadata.Now()
		if replaceErr := e.store.ReplaceFile(context.WithoutCancel(ctx), record); replaceErr != nil {
			logger.ErrorCtx(ctx, "failed to mark file record as errored",
				logger.KeyFileID, record.ID,
				logger.KeyError, replaceErr.Error())
		}
		err = fmt.Errorf("split failed for file %s: %w", record.ID, err)
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	record.Status = metadata.FileStatusCompleted
	record.UpdatedAt = metadata.Now()
	if err := e.store.ReplaceFile(ctx, record); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordSplit(count, size, storedTotal.Load(), time.Since(start))
	}
	if e.bus != nil {
		event := events.NewFileProcessed(record.CorrelationID)
		event.FileID = record.ID
		event.FileName = record.Name
		event.FileSize = record.Size
		event.Checksum = record.Checksum
		event.ChunkCount = record.ChunkCount
		e.bus.Publish(ctx, event)
	}

	logger.InfoCtx(ctx, "split completed",
		logger.KeyFileID, record.ID,
		logger.KeySize, size,
		logger.KeyChunkCount, count,
		logger.DurationMs(float64(time.Since(start).Microseconds())/1000))
	return record, nil
}

// processChunk handles one sequence number: read the range, hash it,
// optionally compress, put, persist the record, publish ChunkStored.
func (e *Engine) processChunk(ctx context.Context, w *window.Window, record *metadata.FileRecord, seq int, chunkSize int64, storedTotal *atomic.Int64) error {
	offset := int64(seq) * chunkSize
	length := min(chunkSize, record.Size-offset)

	data, err := w.ReadRange(ctx, offset, length)
	if err != nil {
		e.recordChunkError("read")
		return err
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	stored := data
	compressed := false
	if e.cfg.CompressionEnabled {
		stored, err = compressChunk(data, e.cfg.CompressionLevel)
		if err != nil {
			e.recordChunkError("compress")
			return err
		}
		compressed = true
	}

	chunkID := metadata.ChunkID(record.ID, seq)
	provider := e.providers.ForSequence(seq)

	path, err := provider.Put(ctx, chunkID, stored)
	if err != nil {
		e.recordChunkError("put")
		return fmt.Errorf("chunk %s put on %s failed: %w", chunkID, provider.ID(), err)
	}

	now := metadata.Now()
	chunk := &metadata.ChunkRecord{
		ID:            chunkID,
		FileID:        record.ID,
		Sequence:      seq,
		Size:          length,
		StoredSize:    int64(len(stored)),
		Checksum:      checksum,
		IsCompressed:  compressed,
		ProviderID:    provider.ID(),
		StoragePath:   path,
		Status:        metadata.ChunkStatusStored,
		CorrelationID: record.CorrelationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.AddChunk(ctx, chunk); err != nil {
		e.recordChunkError("persist")
		return err
	}

	storedTotal.Add(int64(len(stored)))

	if e.bus != nil {
		event := events.NewChunkStored(record.CorrelationID)
		event.ChunkID = chunkID
		event.FileID = record.ID
		event.Sequence = seq
		event.Size = length
		event.CompressedSize = int64(len(stored))
		event.Checksum = checksum
		event.ProviderID = provider.ID()
		e.bus.Publish(ctx, event)
	}
	return nil
}

func (e *Engine) recordChunkError(stage string) {
	if e.metrics != nil {
		e.metrics.RecordChunkError(stage)
	}
}

// hashStream computes the SHA-256 hex digest of a reader with a pooled
// buffer, checking the context between buffers.
func hashStream(ctx context.Context, r io.Reader) (string, error) {
	h := sha256.New()
	buf := bufpool.Get(bufpool.DefaultLargeSize)
	defer bufpool.Put(buf)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("failed to hash source: %w", readErr)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
