// Package service is the orchestration layer over the chunk engine, the
// metadata store, and the cache. Each public method establishes a
// correlation-scoped operation, so everything it touches logs and persists
// under one id.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/internal/telemetry"
	"github.com/chunkvault/chunkvault/pkg/cache"
	"github.com/chunkvault/chunkvault/pkg/engine"
	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// ErrFileNotReady is returned by download and verify when the record exists
// but its pipeline has not completed.
var ErrFileNotReady = errors.New("file is not in completed state")

// Default tuning values.
const (
	// DefaultVerifyConcurrency bounds simultaneous integrity verifications,
	// which hold decompression buffers.
	DefaultVerifyConcurrency = 4

	// DefaultVerdictTTL is how long a cached integrity verdict is trusted.
	DefaultVerdictTTL = 5 * time.Minute
)

// Config contains the service's tuning knobs.
type Config struct {
	// VerifyConcurrency bounds simultaneous verifications. Default 4.
	VerifyConcurrency int

	// VerdictTTL is the cached verdict lifetime. Default 5 minutes.
	VerdictTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.VerifyConcurrency <= 0 {
		c.VerifyConcurrency = DefaultVerifyConcurrency
	}
	if c.VerdictTTL <= 0 {
		c.VerdictTTL = DefaultVerdictTTL
	}
}

// Service exposes upload, download, delete, list, and verify.
type Service struct {
	cfg       Config
	engine    *engine.Engine
	store     metadata.Store
	cache     cache.Cache
	verifySem *semaphore.Weighted
}

// New creates the service. The cache may be nil, in which case every read
// goes to the store.
func New(cfg Config, eng *engine.Engine, store metadata.Store, c cache.Cache) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:       cfg,
		engine:    eng,
		store:     store,
		cache:     c,
		verifySem: semaphore.NewWeighted(int64(cfg.VerifyConcurrency)),
	}
}

// Upload ingests the file at the given path as a new record and returns it
// in completed state.
func (s *Service) Upload(ctx context.Context, filePath string) (record *metadata.FileRecord, err error) {
	ctx, scope := logger.BeginOperation(ctx, "upload", logger.KeyPath, filePath)
	defer scope.End()
	ctx, span := telemetry.StartFileSpan(ctx, "upload", "", telemetry.FilePath(filePath))
	defer span.End()
	defer func() {
		if err != nil {
			scope.Fail(err)
			telemetry.RecordError(ctx, err)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	record, err = s.engine.Split(ctx, f, "", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	scope.SetEntity(record.ID)
	span.SetAttributes(telemetry.FileID(record.ID), telemetry.ChunkCount(record.ChunkCount))

	s.cacheRecord(ctx, record)
	return record, nil
}

// UploadStream ingests an arbitrary byte source under the given display
// name. Used by callers that don't have a file on disk.
func (s *Service) UploadStream(ctx context.Context, source io.Reader, fileName string) (record *metadata.FileRecord, err error) {
	ctx, scope := logger.BeginOperation(ctx, "upload", logger.KeyFileName, fileName)
	defer scope.End()
	ctx, span := telemetry.StartFileSpan(ctx, "upload", "", telemetry.FileName(fileName))
	defer span.End()
	defer func() {
		if err != nil {
			scope.Fail(err)
			telemetry.RecordError(ctx, err)
		}
	}()

	record, err = s.engine.Split(ctx, source, "", fileName)
	if err != nil {
		return nil, err
	}
	scope.SetEntity(record.ID)
	span.SetAttributes(telemetry.FileID(record.ID), telemetry.ChunkCount(record.ChunkCount))

	s.cacheRecord(ctx, record)
	return record, nil
}

// Download reassembles the file into the sink. Records that are still
// processing or errored are refused with ErrFileNotReady.
func (s *Service) Download(ctx context.Context, fileID string, sink io.Writer) (err error) {
	ctx, scope := logger.BeginOperation(ctx, "download", logger.KeyFileID, fileID)
	scope.SetEntity(fileID)
	defer scope.End()
	ctx, span := telemetry.StartFileSpan(ctx, "download", fileID)
	defer span.End()
	defer func() {
		if err != nil {
			scope.Fail(err)
			telemetry.RecordError(ctx, err)
		}
	}()

	record, err := s.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if record.Status != metadata.FileStatusCompleted {
		return fmt.Errorf("file %s has status %q: %w", fileID, record.Status, ErrFileNotReady)
	}

	return s.engine.Merge(ctx, fileID, sink)
}

// Delete removes the file's chunks, records, and cache entries. The bool
// reports whether every stored byte was removed; a missing id returns
// (false, nil).
func (s *Service) Delete(ctx context.Context, fileID string) (ok bool, err error) {
	ctx, scope := logger.BeginOperation(ctx, "delete", logger.KeyFileID, fileID)
	scope.SetEntity(fileID)
	defer scope.End()
	ctx, span := telemetry.StartFileSpan(ctx, "delete", fileID)
	defer span.End()
	defer func() {
		if err != nil {
			scope.Fail(err)
			telemetry.RecordError(ctx, err)
		}
	}()

	ok, err = s.engine.Delete(ctx, fileID)
	if err != nil {
		return false, err
	}

	if s.cache != nil {
		s.cache.Delete(ctx, cache.KindFile,
			cache.KeyFile(fileID),
			cache.KeyFileChunks(fileID),
			cache.KeyVerdict(fileID))
	}
	return ok, nil
}

// GetFile returns the file record, serving from cache when possible.
func (s *Service) GetFile(ctx context.Context, fileID string) (*metadata.FileRecord, error) {
	if s.cache != nil {
		var cached metadata.FileRecord
		if s.cache.Get(ctx, cache.KeyFile(fileID), &cached) {
			logger.DebugCtx(ctx, "file record served from cache",
				logger.KeyFileID, fileID,
				logger.KeyCacheHit, true)
			return &cached, nil
		}
	}

	record, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, record)
	return record, nil
}

// List returns the file records matching the filter.
func (s *Service) List(ctx context.Context, filter metadata.FileFilter) ([]*metadata.FileRecord, error) {
	return s.store.ListFiles(ctx, filter)
}

func (s *Service) cacheRecord(ctx context.Context, record *metadata.FileRecord) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.KeyFile(record.ID), record); err != nil {
		logger.WarnCtx(ctx, "failed to cache file record",
			logger.KeyFileID, record.ID,
			logger.KeyError, err.Error())
	}
}
