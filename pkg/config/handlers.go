package config

import (
	"context"
	"fmt"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/events"
	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// Event handlers bound at startup. Upload and scan completions leave an
// audit entry in the logs collection under the operation's correlation id,
// next to the operation records the scope sink writes.

// fileProcessedAudit records every completed upload.
type fileProcessedAudit struct {
	store metadata.Store
}

func (h *fileProcessedAudit) EventType() string { return events.TypeFileProcessed }

func (h *fileProcessedAudit) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.FileProcessed)
	if !ok {
		return fmt.Errorf("unexpected event %T on %s", event, h.EventType())
	}
	return h.store.AppendLog(ctx, &metadata.LogRecord{
		CorrelationID: e.CorrelationID(),
		Operation:     "event." + e.EventType(),
		Entity:        e.FileID,
		Outcome:       "ok",
		Message:       fmt.Sprintf("file %s stored as %d chunks (%d bytes)", e.FileName, e.ChunkCount, e.FileSize),
		Timestamp:     e.OccurredAt(),
	})
}

// directoryScanAudit records every finished index pass.
type directoryScanAudit struct {
	store metadata.Store
}

func (h *directoryScanAudit) EventType() string { return events.TypeDirectoryScan }

func (h *directoryScanAudit) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.DirectoryScan)
	if !ok {
		return fmt.Errorf("unexpected event %T on %s", event, h.EventType())
	}
	return h.store.AppendLog(ctx, &metadata.LogRecord{
		CorrelationID: e.CorrelationID(),
		Operation:     "event." + e.EventType(),
		Entity:        e.Path,
		Outcome:       "ok",
		Message: fmt.Sprintf("scanned %d files and %d directories (%d bytes, %d errors)",
			e.FileCount, e.DirectoryCount, e.TotalSize, e.ErrorCount),
		Timestamp: e.OccurredAt(),
	})
}

// chunkProgress surfaces per-chunk placement at debug level, so a stalled
// upload can be traced chunk by chunk without enabling tracing.
type chunkProgress struct{}

func (chunkProgress) EventType() string { return events.TypeChunkStored }

func (chunkProgress) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.ChunkStored)
	if !ok {
		return fmt.Errorf("unexpected event %T on ChunkStored", event)
	}
	logger.DebugCtx(ctx, "chunk placed",
		logger.KeyChunkID, e.ChunkID,
		logger.KeySequence, e.Sequence,
		logger.KeyProviderID, e.ProviderID,
		logger.KeySize, e.Size)
	return nil
}
