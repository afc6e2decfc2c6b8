package engine

import (
	"context"
	"errors"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/events"
	"github.com/chunkvault/chunkvault/pkg/metadata"
	"github.com/chunkvault/chunkvault/pkg/metrics"
	"github.com/chunkvault/chunkvault/pkg/storage"
)

// ErrEmptyInput is returned by split for zero-length sources.
var ErrEmptyInput = errors.New("empty input rejected")

// Engine is the chunk pipeline. It owns no goroutines between calls; each
// split fans out its own bounded worker set.
type Engine struct {
	cfg       Config
	store     metadata.Store
	providers *storage.Registry
	bus       *events.Bus
	metrics   metrics.EngineMetrics
}

// New creates an engine. The event bus and metrics collector may be nil.
func New(cfg Config, store metadata.Store, providers *storage.Registry, bus *events.Bus, m metrics.EngineMetrics) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:       cfg,
		store:     store,
		providers: providers,
		bus:       bus,
		metrics:   m,
	}
}

// OptimalChunkSize exposes the planner for callers and diagnostics.
func (e *Engine) OptimalChunkSize(fileSize int64) int64 {
	return e.cfg.OptimalChunkSize(fileSize)
}

// Delete removes the file's chunk bytes, its chunk records, and the file
// record itself. Per-provider failures never block metadata cleanup; the
// bool reports whether every byte deletion succeeded. A missing file id
// returns (false, nil).
func (e *Engine) Delete(ctx context.Context, fileID string) (bool, error) {
	record, err := e.store.GetFile(ctx, fileID)
	if metadata.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	chunks, err := e.store.ListChunksByFile(ctx, fileID)
	if err != nil {
		return false, err
	}
	if len(chunks) == 0 && record.Type == metadata.FileTypeFile {
		// A stored file should own chunks; an empty list means the split
		// never ran or the records were lost.
		logger.WarnCtx(ctx, "file has no chunk records, deleting metadata only",
			logger.KeyFileID, fileID,
			logger.KeyPath, record.FullPath)
	}

	allOK := e.deleteChunkBytes(ctx, chunks)

	// Metadata cleanup runs regardless of partial byte failures, with a
	// detached context so a cancelled caller can't strand half a delete.
	cleanupCtx := context.WithoutCancel(ctx)
	deleted, err := e.store.DeleteChunksByFile(cleanupCtx, fileID)
	if err != nil {
		return false, err
	}
	if _, err := e.store.DeleteFile(cleanupCtx, fileID); err != nil {
		return false, err
	}

	if e.metrics != nil {
		e.metrics.RecordDelete(deleted)
	}
	outcome := "clean"
	if !allOK {
		outcome = "partial"
	}
	logger.InfoCtx(ctx, "file deleted",
		logger.KeyFileID, fileID,
		logger.KeyChunkCount, deleted,
		logger.KeyStatus, outcome)
	return allOK, nil
}

// deleteChunkBytes removes the stored bytes chunk by chunk, grouped per
// provider. Missing providers and failed deletes are logged and counted as
// partial failure for their chunk only.
func (e *Engine) deleteChunkBytes(ctx context.Context, chunks []*metadata.ChunkRecord) bool {
	byProvider := make(map[string][]*metadata.ChunkRecord)
	for _, c := range chunks {
		byProvider[c.ProviderID] = append(byProvider[c.ProviderID], c)
	}

	allOK := true
	for providerID, group := range byProvider {
		provider, ok := e.providers.Get(providerID)
		if !ok {
			logger.WarnCtx(ctx, "provider missing, chunk bytes orphaned",
				logger.KeyProviderID, providerID,
				logger.KeyCount, len(group))
			allOK = false
			continue
		}

		for _, c := range group {
			removed, err := provider.Delete(ctx, c.ID, c.StoragePath)
			if err != nil {
				logger.WarnCtx(ctx, "chunk byte deletion failed",
					logger.KeyProviderID, providerID,
					logger.KeyChunkID, c.ID,
					logger.KeyError, err.Error())
				allOK = false
				continue
			}
			if !removed {
				allOK = false
			}
		}
	}
	return allOK
}

// DeleteChunk evicts one chunk: bytes first, then the record. The record
// survives when the byte deletion errors, so a retry can find it.
func (e *Engine) DeleteChunk(ctx context.Context, chunkID string) (bool, error) {
	record, err := e.store.GetChunk(ctx, chunkID)
	if metadata.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	provider, ok := e.providers.Get(record.ProviderID)
	if !ok {
		return false, storage.NewBackendConfig(record.ProviderID, "provider not enabled for chunk "+chunkID, nil)
	}

	removed, err := provider.Delete(ctx, record.ID, record.StoragePath)
	if err != nil {
		return false, err
	}

	if _, err := e.store.DeleteChunk(ctx, chunkID); err != nil {
		return false, err
	}
	return removed, nil
}
