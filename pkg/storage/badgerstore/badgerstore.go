// Package badgerstore provides a chunk storage provider backed by a
// BadgerDB bucket, in the manner of a database-resident object store.
//
// Each put allocates an opaque object id and writes the payload and a
// chunk-id index entry in one transaction, so the returned storage path is
// never observable before the payload is durable. The storage path is the
// object id; an empty storage path resolves through the index.
package badgerstore

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/metrics"
	"github.com/chunkvault/chunkvault/pkg/storage"
)

// DefaultProviderID is the registry id when config doesn't override it.
const DefaultProviderID = "objectstore"

const (
	prefixObject = "o:" // o:<objectId> → payload
	prefixChunk  = "c:" // c:<chunkId>  → objectId
)

// Config holds configuration for the Badger-backed provider.
type Config struct {
	// ProviderID overrides the registry id. Default: "objectstore".
	ProviderID string

	// Path is the bucket database directory. Ignored when InMemory is set.
	Path string

	// InMemory opens a non-persistent bucket. Used by tests.
	InMemory bool
}

// Provider is the BadgerDB implementation of storage.Provider.
type Provider struct {
	id      string
	db      *badger.DB
	metrics metrics.StorageMetrics
}

// Compile-time check that Provider implements storage.Provider.
var _ storage.Provider = (*Provider)(nil)

// New opens the bucket database. The metrics collector may be nil.
func New(cfg Config, m metrics.StorageMetrics) (*Provider, error) {
	id := cfg.ProviderID
	if id == "" {
		id = DefaultProviderID
	}
	if cfg.Path == "" && !cfg.InMemory {
		return nil, storage.NewBackendConfig(id, "bucket path is required", nil)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewBackendConfig(id, "failed to open bucket database", err)
	}

	return &Provider{id: id, db: db, metrics: m}, nil
}

// ID returns the provider id.
func (p *Provider) ID() string { return p.id }

// Type returns the human-readable backend name.
func (p *Provider) Type() string { return "Badger Object Store" }

func keyObject(objectID string) []byte { return []byte(prefixObject + objectID) }
func keyChunk(chunkID string) []byte   { return []byte(prefixChunk + chunkID) }

// resolveObjectID maps (chunkID, storagePath) to the object key. The
// storage path wins when present; otherwise the chunk index decides.
func (p *Provider) resolveObjectID(txn *badger.Txn, chunkID, storagePath string) (string, error) {
	if storagePath != "" {
		return storagePath, nil
	}

	item, err := txn.Get(keyChunk(chunkID))
	if err == badger.ErrKeyNotFound {
		return "", storage.NewNotFound(p.id, chunkID)
	}
	if err != nil {
		return "", storage.NewTransient(p.id, chunkID, "failed to resolve chunk index", err)
	}

	var objectID string
	err = item.Value(func(val []byte) error {
		objectID = string(val)
		return nil
	})
	if err != nil {
		return "", storage.NewTransient(p.id, chunkID, "failed to read chunk index", err)
	}
	return objectID, nil
}

// Put stores the payload under a fresh object id and returns that id.
func (p *Provider) Put(ctx context.Context, chunkID string, data []byte) (objectID string, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordOperation(p.id, "put", int64(len(data)), time.Since(start), err)
		}
	}()

	if err = ctx.Err(); err != nil {
		return "", err
	}

	objectID = uuid.NewString()
	err = p.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyObject(objectID), data); err != nil {
			return err
		}
		return txn.Set(keyChunk(chunkID), []byte(objectID))
	})
	if err != nil {
		return "", storage.NewTransient(p.id, chunkID, "failed to store object", err)
	}

	logger.DebugCtx(ctx, "chunk written",
		logger.KeyProviderID, p.id,
		logger.KeyChunkID, chunkID,
		logger.KeySize, int64(len(data)),
		logger.KeyStoragePath, objectID)
	return objectID, nil
}

// Get returns the payload for the chunk's object.
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

	err = p.db.View(func(txn *badger.Txn) error {
		objectID, resErr := p.resolveObjectID(txn, chunkID, storagePath)
		if resErr != nil {
			return resErr
		}

		item, getErr := txn.Get(keyObject(objectID))
		if getErr == badger.ErrKeyNotFound {
			return storage.NewNotFound(p.id, chunkID)
		}
		if getErr != nil {
			return storage.NewTransient(p.id, chunkID, "failed to read object", getErr)
		}

		data, getErr = item.ValueCopy(nil)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Exists reports whether the chunk's object is durable.
func (p *Provider) Exists(ctx context.Context, chunkID, storagePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	exists := false
	err := p.db.View(func(txn *badger.Txn) error {
		objectID, resErr := p.resolveObjectID(txn, chunkID, storagePath)
		if resErr != nil {
			if storage.IsNotFound(resErr) {
				return nil
			}
			return resErr
		}

		_, getErr := txn.Get(keyObject(objectID))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return storage.NewTransient(p.id, chunkID, "failed to stat object", getErr)
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Delete removes the object and its chunk index entry. A missing object
// returns (false, nil).
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

	err = p.db.Update(func(txn *badger.Txn) error {
		objectID, resErr := p.resolveObjectID(txn, chunkID, storagePath)
		if resErr != nil {
			if storage.IsNotFound(resErr) {
				return nil
			}
			return resErr
		}

		if _, getErr := txn.Get(keyObject(objectID)); getErr == badger.ErrKeyNotFound {
			return nil
		} else if getErr != nil {
			return storage.NewTransient(p.id, chunkID, "failed to stat object", getErr)
		}

		if delErr := txn.Delete(keyObject(objectID)); delErr != nil {
			return storage.NewTransient(p.id, chunkID, "failed to delete object", delErr)
		}
		if delErr := txn.Delete(keyChunk(chunkID)); delErr != nil {
			return storage.NewTransient(p.id, chunkID, "failed to delete chunk index", delErr)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Close releases the bucket database.
func (p *Provider) Close() error {
	return p.db.Close()
}
