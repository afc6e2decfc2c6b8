// Package indexer captures filesystem trees as file and directory records.
//
// An index pass records what exists on disk without moving any bytes
// through the chunk pipeline. Content processing is optional: when enabled
// the indexer hashes each file in place and stamps the record as indexed,
// which makes the duplicate pass meaningful.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/internal/telemetry"
	"github.com/chunkvault/chunkvault/pkg/bufpool"
	"github.com/chunkvault/chunkvault/pkg/cache"
	"github.com/chunkvault/chunkvault/pkg/events"
	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// Options select what one scan does.
type Options struct {
	// Recursive descends into subdirectories. Off, only the immediate
	// entries of the root are captured.
	Recursive bool

	// ProcessContent hashes each file's bytes and stamps IsIndexed.
	ProcessContent bool

	// Parallel fans file processing out over a bounded worker pool.
	Parallel bool

	// CheckDuplicates runs the duplicate-tagging pass after the walk.
	CheckDuplicates bool

	// Workers bounds the parallel pool. Default: logical CPU count.
	Workers int
}

// Result summarizes one scan.
type Result struct {
	Path           string
	FileCount      int
	DirectoryCount int
	TotalSize      int64
	ErrorCount     int
	DuplicateCount int
	Elapsed        time.Duration
}

// Indexer walks directories into the metadata store.
type Indexer struct {
	store metadata.Store
	cache cache.Cache
	bus   *events.Bus
}

// New creates an indexer. The cache and bus may be nil.
func New(store metadata.Store, c cache.Cache, bus *events.Bus) *Indexer {
	return &Indexer{store: store, cache: c, bus: bus}
}

// fileTask is one regular file waiting for processing, bound to its
// already-persisted parent directory record.
type fileTask struct {
	path     string
	parentID string
	info     os.FileInfo
}

// Scan walks the tree rooted at path and captures a record per entry.
// Directory records are created during the walk; file processing runs
// afterwards, in parallel when requested.
func (ix *Indexer) Scan(ctx context.Context, path string, opts Options) (result *Result, err error) {
	ctx, scope := logger.BeginOperation(ctx, "seek", logger.KeyPath, path, logger.KeyRecursive, opts.Recursive)
	defer scope.End()
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanScan)
	defer span.End()
	span.SetAttributes(telemetry.FilePath(path), telemetry.Recursive(opts.Recursive))
	defer func() {
		if err != nil {
			scope.Fail(err)
			telemetry.RecordError(ctx, err)
		}
		if result != nil {
			span.SetAttributes(
				telemetry.FileCount(result.FileCount),
				telemetry.DirCount(result.DirectoryCount))
		}
	}()

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	start := time.Now()

	root, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scan root: %w", err)
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", path)
	}

	result = &Result{Path: path}

	rootRecord, err := ix.ensureDirectory(ctx, path, "")
	if err != nil {
		return nil, err
	}
	result.DirectoryCount++

	tasks, err := ix.walk(ctx, path, rootRecord.ID, opts, result)
	if err != nil {
		return nil, err
	}

	if err := ix.processFiles(ctx, tasks, opts, result); err != nil {
		return nil, err
	}

	if opts.CheckDuplicates {
		dups, err := ix.tagDuplicates(ctx)
		if err != nil {
			return nil, err
		}
		result.DuplicateCount = dups
	}

	result.Elapsed = time.Since(start)

	if ix.bus != nil {
		event := events.NewDirectoryScan(logger.CorrelationIDFromContext(ctx))
		event.Path = path
		event.FileCount = result.FileCount
		event.DirectoryCount = result.DirectoryCount
		event.TotalSize = result.TotalSize
		event.ProcessedContent = opts.ProcessContent
		event.Recursive = opts.Recursive
		event.ElapsedMs = float64(result.Elapsed.Microseconds()) / 1000
		event.ErrorCount = result.ErrorCount
		ix.bus.Publish(ctx, event)
	}

	logger.InfoCtx(ctx, "directory scan finished",
		logger.KeyPath, path,
		logger.KeyCount, result.FileCount,
		logger.KeyRecursive, opts.Recursive,
		logger.DurationMs(float64(result.Elapsed.Microseconds())/1000))
	return result, nil
}

// walk captures directory records in-line and returns the file tasks.
// Unreadable entries are counted, logged, and skipped; they never abort
// the scan.
func (ix *Indexer) walk(ctx context.Context, root, rootID string, opts Options, result *Result) ([]fileTask, error) {
	var tasks []fileTask

	// Maps each captured directory path to its record id so children can
	// reference their parent.
	parents := map[string]string{root: rootID}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			logger.WarnCtx(ctx, "entry unreadable, skipped",
				logger.KeyPath, path,
				logger.KeyError, walkErr.Error())
			result.ErrorCount++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		parentID := parents[filepath.Dir(path)]

		if d.IsDir() {
			record, err := ix.ensureDirectory(ctx, path, parentID)
			if err != nil {
				return err
			}
			parents[path] = record.ID
			result.DirectoryCount++
			// Subdirectory entries are captured either way; descent is
			// what the recursive flag controls.
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			result.ErrorCount++
			return nil
		}
		tasks = append(tasks, fileTask{path: path, parentID: parentID, info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// processFiles runs the per-file capture, fanning out when parallel mode
// is on. Per-file failures are counted, not propagated.
func (ix *Indexer) processFiles(ctx context.Context, tasks []fileTask, opts Options, result *Result) error {
	workers := 1
	if opts.Parallel {
		workers = opts.Workers
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			size, err := ix.processFile(gctx, task, opts.ProcessContent)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.WarnCtx(gctx, "file capture failed",
					logger.KeyPath, task.path,
					logger.KeyError, err.Error())
				result.ErrorCount++
				return nil
			}
			result.FileCount++
			result.TotalSize += size
			return nil
		})
	}
	return g.Wait()
}

// processFile captures or refreshes one file record.
func (ix *Indexer) processFile(ctx context.Context, task fileTask, processContent bool) (int64, error) {
	start := time.Now()

	record, err := ix.ensureFile(ctx, task)
	if err != nil {
		return 0, err
	}

	if processContent {
		checksum, err := hashFile(ctx, task.path)
		if err != nil {
			return 0, err
		}
		record.Checksum = checksum
		record.IsIndexed = true
		record.UpdatedAt = metadata.Now()
		if err := ix.store.ReplaceFile(ctx, record); err != nil {
			return 0, err
		}
		ix.invalidateRecord(ctx, record.ID)
	}

	if ix.bus != nil {
		event := events.NewFileDiscovered(logger.CorrelationIDFromContext(ctx))
		event.FileID = record.ID
		event.FilePath = record.FullPath
		event.FileName = record.Name
		event.FileSize = record.Size
		event.Extension = record.Extension
		event.ContentType = record.ContentType
		event.Checksum = record.Checksum
		event.WasProcessed = processContent
		event.ChunkCount = record.ChunkCount
		event.Status = string(record.Status)
		event.ParentID = record.ParentID
		event.Tags = record.Tags
		event.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
		ix.bus.Publish(ctx, event)
	}
	return record.Size, nil
}

// ensureDirectory fetches or creates the record for a directory path.
func (ix *Indexer) ensureDirectory(ctx context.Context, path, parentID string) (*metadata.FileRecord, error) {
	record, err := ix.store.GetFileByPath(ctx, path)
	if err == nil {
		if record.ParentID != parentID {
			record.ParentID = parentID
			record.UpdatedAt = metadata.Now()
			if err := ix.store.ReplaceFile(ctx, record); err != nil {
				return nil, err
			}
			ix.invalidateRecord(ctx, record.ID)
		}
		return record, nil
	}
	if !metadata.IsNotFound(err) {
		return nil, err
	}

	now := metadata.Now()
	record = &metadata.FileRecord{
		ID:            uuid.NewString(),
		Name:          filepath.Base(path),
		FullPath:      path,
		Type:          metadata.FileTypeDirectory,
		Status:        metadata.FileStatusCompleted,
		ParentID:      parentID,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := ix.store.AddFile(ctx, record); err != nil {
		return nil, err
	}
	ix.invalidateChildren(ctx, parentID)
	return record, nil
}

// ensureFile fetches or creates the record for a regular file, refreshing
// size and placement on revisit.
func (ix *Indexer) ensureFile(ctx context.Context, task fileTask) (*metadata.FileRecord, error) {
	ext := strings.ToLower(filepath.Ext(task.path))

	record, err := ix.store.GetFileByPath(ctx, task.path)
	if err == nil {
		record.Size = task.info.Size()
		record.ParentID = task.parentID
		record.Extension = ext
		record.ContentType = mime.TypeByExtension(ext)
		record.UpdatedAt = metadata.Now()
		if err := ix.store.ReplaceFile(ctx, record); err != nil {
			return nil, err
		}
		ix.invalidateRecord(ctx, record.ID)
		return record, nil
	}
	if !metadata.IsNotFound(err) {
		return nil, err
	}

	now := metadata.Now()
	record = &metadata.FileRecord{
		ID:            uuid.NewString(),
		Name:          filepath.Base(task.path),
		FullPath:      task.path,
		Size:          task.info.Size(),
		ContentType:   mime.TypeByExtension(ext),
		Extension:     ext,
		Type:          metadata.FileTypeFile,
		Status:        metadata.FileStatusCompleted,
		ParentID:      task.parentID,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := ix.store.AddFile(ctx, record); err != nil {
		return nil, err
	}
	ix.invalidateChildren(ctx, task.parentID)
	return record, nil
}

// tagDuplicates groups file records by checksum and tags every member of
// a shared group. Tagging is the only mutation this pass performs.
func (ix *Indexer) tagDuplicates(ctx context.Context) (int, error) {
	files, err := ix.store.ListFiles(ctx, metadata.FileFilter{Type: metadata.FileTypeFile})
	if err != nil {
		return 0, err
	}

	byChecksum := make(map[string][]*metadata.FileRecord)
	for _, f := range files {
		if f.Checksum == "" {
			continue
		}
		byChecksum[f.Checksum] = append(byChecksum[f.Checksum], f)
	}

	tagged := 0
	for checksum, group := range byChecksum {
		if len(group) < 2 {
			continue
		}
		for _, f := range group {
			if !f.AddTag(metadata.TagDuplicate) {
				tagged++
				continue
			}
			f.UpdatedAt = metadata.Now()
			if err := ix.store.ReplaceFile(ctx, f); err != nil {
				return tagged, err
			}
			ix.invalidateRecord(ctx, f.ID)
			tagged++
		}
		logger.DebugCtx(ctx, "duplicate group tagged",
			logger.KeyChecksum, checksum,
			logger.KeyCount, len(group))
	}
	return tagged, nil
}

func (ix *Indexer) invalidateChildren(ctx context.Context, parentID string) {
	if ix.cache == nil || parentID == "" {
		return
	}
	ix.cache.Delete(ctx, cache.KindDirChildren, cache.KeyDirChildren(parentID))
}

// invalidateRecord evicts a file record's cache entry after the store copy
// changed; the next read by id must come from the store.
func (ix *Indexer) invalidateRecord(ctx context.Context, fileID string) {
	if ix.cache == nil {
		return
	}
	ix.cache.Delete(ctx, cache.KindFile, cache.KeyFile(fileID))
}

// hashFile streams one file through SHA-256 with a pooled buffer.
func hashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := bufpool.Get(bufpool.DefaultMediumSize)
	defer bufpool.Put(buf)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", readErr
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
