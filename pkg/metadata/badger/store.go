// Package badger implements the chunkvault metadata store on BadgerDB.
//
// Files, chunks, and logs are persisted as JSON documents under prefixed
// keys. Secondary indexes are key-only entries maintained in the same
// transaction as the document write, so index and document never diverge.
package badger

import (
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// DefaultLogTTL is how long log records are retained before Badger expires
// them (spec default: 30 days).
const DefaultLogTTL = 30 * 24 * time.Hour

// Config contains configuration for the Badger-backed metadata store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory opens a non-persistent database. Used by tests and by the
	// one-shot CLI commands that only need scratch metadata.
	InMemory bool

	// LogTTL is the retention horizon for the logs collection.
	// Zero means DefaultLogTTL.
	LogTTL time.Duration

	// GCInterval is how often value-log garbage collection runs.
	// Zero disables the background GC goroutine.
	GCInterval time.Duration
}

// Store is the BadgerDB implementation of metadata.Store.
//
// Thread Safety: all methods are safe for concurrent use; Badger
// transactions provide per-key ordering (monotonic within a replace).
type Store struct {
	db     *badger.DB
	logTTL time.Duration

	stopGC chan struct{}
	doneGC chan struct{}
}

// Compile-time check that Store implements metadata.Store.
var _ metadata.Store = (*Store)(nil)

// Open creates or opens the metadata database.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	// Badger's default logger prints to stderr; route through ours.
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, metadata.NewIOError("failed to open metadata database", err)
	}

	logTTL := cfg.LogTTL
	if logTTL == 0 {
		logTTL = DefaultLogTTL
	}

	s := &Store{
		db:     db,
		logTTL: logTTL,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.gcLoop(cfg.GCInterval)
	}

	return s, nil
}

// Close stops background work and releases the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
	}
	return s.db.Close()
}

// gcLoop periodically reclaims value-log space. Badger requires the caller
// to drive GC; ErrNoRewrite just means there was nothing to collect.
func (s *Store) gcLoop(interval time.Duration) {
	defer close(s.doneGC)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if err != badger.ErrNoRewrite {
						logger.Warn("metadata value-log GC failed", logger.KeyError, err.Error())
					}
					break
				}
			}
		}
	}
}

// badgerLogger adapts Badger's internal logging to the structured logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any)   { logger.Errorf("badger: "+format, args...) }
func (badgerLogger) Warningf(format string, args ...any) { logger.Warnf("badger: "+format, args...) }
func (badgerLogger) Infof(format string, args ...any)    { logger.Debugf("badger: "+format, args...) }
func (badgerLogger) Debugf(format string, args ...any)   { logger.Debugf("badger: "+format, args...) }
