// Package filesystem provides a local-disk chunk storage provider.
//
// Chunks are stored as files under a two-character fan-out directory:
// <basePath>/<prefix>/<chunkId>.chunk. Writes go to a temp file in the
// target directory followed by an atomic rename, so a crash mid-put never
// leaves a readable partial chunk.
package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/metrics"
	"github.com/chunkvault/chunkvault/pkg/storage"
)

// DefaultProviderID is the registry id when config doesn't override it.
const DefaultProviderID = "filesystem"

// Config holds configuration for the filesystem provider.
type Config struct {
	// ProviderID overrides the registry id. Default: "filesystem".
	ProviderID string

	// BasePath is the root directory for chunk storage.
	BasePath string

	// DirMode is the permission mode for created directories.
	// Default: 0755.
	DirMode os.FileMode

	// FileMode is the permission mode for chunk files. Default: 0644.
	FileMode os.FileMode
}

// Provider is the local-disk implementation of storage.Provider.
//
// Thread Safety: safe for concurrent use; the filesystem provides per-path
// atomicity via rename.
type Provider struct {
	id       string
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
	metrics  metrics.StorageMetrics
}

// Compile-time check that Provider implements storage.Provider.
var _ storage.Provider = (*Provider)(nil)

// New creates the provider and its base directory. The metrics collector
// may be nil.
func New(cfg Config, m metrics.StorageMetrics) (*Provider, error) {
	id := cfg.ProviderID
	if id == "" {
		id = DefaultProviderID
	}
	if cfg.BasePath == "" {
		return nil, storage.NewBackendConfig(id, "base path is required", nil)
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}

	if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
		return nil, storage.NewBackendConfig(id, "failed to create base directory", err)
	}
	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, storage.NewBackendConfig(id, "failed to stat base directory", err)
	}
	if !info.IsDir() {
		return nil, storage.NewBackendConfig(id, "base path is not a directory", nil)
	}

	return &Provider{
		id:       id,
		basePath: cfg.BasePath,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
		metrics:  m,
	}, nil
}

// ID returns the provider id.
func (p *Provider) ID() string { return p.id }

// Type returns the human-readable backend name.
func (p *Provider) Type() string { return "Local Filesystem" }

// chunkPath builds the fan-out path for a chunk id.
func (p *Provider) chunkPath(chunkID string) string {
	return filepath.Join(p.basePath, storage.ChunkPrefix(chunkID), chunkID+".chunk")
}

// resolvePath prefers the persisted storage path and falls back to the
// derived layout for records that predate one.
func (p *Provider) resolvePath(chunkID, storagePath string) string {
	if storagePath != "" {
		return storagePath
	}
	return p.chunkPath(chunkID)
}

// Put writes the payload via temp file plus atomic rename and returns the
// absolute chunk path as the storage path.
func (p *Provider) Put(ctx context.Context, chunkID string, data []byte) (path string, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordOperation(p.id, "put", int64(len(data)), time.Since(start), err)
		}
	}()

	if err = ctx.Err(); err != nil {
		return "", err
	}

	path = p.chunkPath(chunkID)
	if err = os.MkdirAll(filepath.Dir(path), p.dirMode); err != nil {
		return "", storage.NewTransient(p.id, chunkID, "failed to create chunk directory", err)
	}

	// Temp file in the same directory so the rename never crosses a
	// filesystem boundary.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+chunkID+".*.tmp")
	if err != nil {
		return "", storage.NewTransient(p.id, chunkID, "failed to create temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", storage.NewTransient(p.id, chunkID, "failed to write chunk", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", storage.NewTransient(p.id, chunkID, "failed to sync chunk", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", storage.NewTransient(p.id, chunkID, "failed to close temp file", err)
	}
	if err = os.Chmod(tmpPath, p.fileMode); err != nil {
		os.Remove(tmpPath)
		return "", storage.NewTransient(p.id, chunkID, "failed to set chunk mode", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", storage.NewTransient(p.id, chunkID, "failed to finalize chunk", err)
	}

	logger.DebugCtx(ctx, "chunk written",
		logger.KeyProviderID, p.id,
		logger.KeyChunkID, chunkID,
		logger.KeySize, int64(len(data)),
		logger.KeyStoragePath, path)
	return path, nil
}

// Get reads the full chunk payload.
func (p *Provider) Get(ctx context.Context, chunkID, storagePath string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordOperation(p.id, "get", int64(len(data)), time.Since(start), err)
		}
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	data, err = os.ReadFile(p.resolvePath(chunkID, storagePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.NewNotFound(p.id, chunkID)
		}
		return nil, storage.NewTransient(p.id, chunkID, "failed to read chunk", err)
	}
	return data, nil
}

// Exists reports whether the chunk file is present.
func (p *Provider) Exists(ctx context.Context, chunkID, storagePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(p.resolvePath(chunkID, storagePath))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, storage.NewTransient(p.id, chunkID, "failed to stat chunk", err)
}

// Delete removes the chunk file. A missing file returns (false, nil).
func (p *Provider) Delete(ctx context.Context, chunkID, storagePath string) (deleted bool, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordOperation(p.id, "delete", 0, time.Since(start), err)
		}
	}()

	if err = ctx.Err(); err != nil {
		return false, err
	}

	err = os.Remove(p.resolvePath(chunkID, storagePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, storage.NewTransient(p.id, chunkID, "failed to delete chunk", err)
	}
	return true, nil
}

// Close is a no-op; the provider holds no open handles between calls.
func (p *Provider) Close() error {
	return nil
}
