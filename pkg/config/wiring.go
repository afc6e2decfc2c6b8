package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/cache"
	"github.com/chunkvault/chunkvault/pkg/engine"
	"github.com/chunkvault/chunkvault/pkg/events"
	"github.com/chunkvault/chunkvault/pkg/indexer"
	"github.com/chunkvault/chunkvault/pkg/metadata"
	metadatabadger "github.com/chunkvault/chunkvault/pkg/metadata/badger"
	"github.com/chunkvault/chunkvault/pkg/metrics"
	"github.com/chunkvault/chunkvault/pkg/service"
	"github.com/chunkvault/chunkvault/pkg/storage"
	"github.com/chunkvault/chunkvault/pkg/storage/badgerstore"
	"github.com/chunkvault/chunkvault/pkg/storage/filesystem"
	"github.com/chunkvault/chunkvault/pkg/storage/s3"
)

// Runtime is the assembled process: every collaborator built from one
// configuration, with a single Close that tears them down in dependency
// order.
type Runtime struct {
	Store     metadata.Store
	Cache     cache.Cache
	Bus       *events.Bus
	Providers *storage.Registry
	Engine    *engine.Engine
	Service   *service.Service
	Indexer   *indexer.Indexer
}

// BuildRuntime assembles the full runtime from configuration. Callers own
// the returned runtime and must Close it.
func BuildRuntime(ctx context.Context, cfg *Config) (*Runtime, error) {
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	store, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	providers, err := BuildProviders(ctx, cfg.Providers, metrics.NewStorageMetrics())
	if err != nil {
		store.Close()
		return nil, err
	}

	c := NewCache(cfg.Cache, metrics.NewCacheMetrics())

	bus := events.NewBus()
	bound := bus.Bind(
		&fileProcessedAudit{store: store},
		&directoryScanAudit{store: store},
		chunkProgress{},
	)
	logger.Debug("event handlers bound", logger.KeyCount, bound)

	eng := BuildEngine(cfg, store, providers, bus)
	svc := BuildService(cfg, eng, store, c)
	ix := indexer.New(store, c, bus)

	// Completed operation scopes land in the store's TTL'd logs collection.
	// The sink runs after the operation's own context may be done, so the
	// write gets a short deadline of its own.
	logger.SetOperationSink(func(rec logger.OperationRecord) {
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := store.AppendLog(writeCtx, &metadata.LogRecord{
			CorrelationID: rec.CorrelationID,
			Operation:     rec.Operation,
			Entity:        rec.Entity,
			Outcome:       rec.Outcome,
			Message:       rec.Error,
			DurationMs:    rec.DurationMs,
			Timestamp:     rec.StartTime,
		})
		if err != nil {
			logger.Warn("failed to persist operation record",
				logger.KeyCorrelationID, rec.CorrelationID,
				logger.KeyError, err.Error())
		}
	})

	return &Runtime{
		Store:     store,
		Cache:     c,
		Bus:       bus,
		Providers: providers,
		Engine:    eng,
		Service:   svc,
		Indexer:   ix,
	}, nil
}

// Close flushes the cache and releases the providers and the store.
func (r *Runtime) Close() error {
	logger.SetOperationSink(nil)

	var errs []error
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if r.Providers != nil {
		if err := r.Providers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("providers: %w", err))
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// OpenStore opens the metadata document database.
func OpenStore(cfg StoreConfig) (*metadatabadger.Store, error) {
	return metadatabadger.Open(metadatabadger.Config{
		Path:       cfg.Path,
		LogTTL:     cfg.LogTTL,
		GCInterval: cfg.GCInterval,
	})
}

// NewCache creates the metadata cache from configuration.
func NewCache(cfg CacheConfig, m metrics.CacheMetrics) cache.Cache {
	return cache.NewMemory(cache.Config{
		DefaultTTL: time.Duration(cfg.DefaultExpiryInMinutes) * time.Minute,
	}, m)
}

// BuildProviders creates every enabled provider, in configured order. The
// order is load-bearing: it fixes round-robin chunk placement.
func BuildProviders(ctx context.Context, cfg ProvidersConfig, m metrics.StorageMetrics) (*storage.Registry, error) {
	providers := make([]storage.Provider, 0, len(cfg.Enabled))

	for _, id := range cfg.Enabled {
		switch id {
		case filesystem.DefaultProviderID:
			p, err := filesystem.New(filesystem.Config{
				BasePath: cfg.Filesystem.BasePath,
			}, m)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)

		case badgerstore.DefaultProviderID:
			p, err := badgerstore.New(badgerstore.Config{
				Path: cfg.ObjectStore.Path,
			}, m)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)

		case s3.DefaultProviderID:
			client, err := s3.NewClient(ctx,
				cfg.S3.Endpoint,
				cfg.S3.Region,
				cfg.S3.AccessKeyID,
				cfg.S3.SecretAccessKey,
				cfg.S3.ForcePathStyle)
			if err != nil {
				return nil, err
			}
			p, err := s3.New(ctx, s3.Config{
				Client:               client,
				Bucket:               cfg.S3.Bucket,
				KeyPrefix:            cfg.S3.KeyPrefix,
				ServerSideEncryption: cfg.S3.ServerSideEncryption,
			}, m)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)

		default:
			return nil, fmt.Errorf("unknown storage provider %q", id)
		}
	}

	registry, err := storage.NewRegistry(providers...)
	if err != nil {
		return nil, err
	}
	logger.Info("storage providers enabled",
		logger.KeyCount, registry.Len())
	return registry, nil
}

// BuildEngine creates the chunk engine from configuration.
func BuildEngine(cfg *Config, store metadata.Store, providers *storage.Registry, bus *events.Bus) *engine.Engine {
	return engine.New(engine.Config{
		MinChunkSize:       int64(cfg.Chunking.MinChunkSizeInBytes),
		MaxChunkSize:       int64(cfg.Chunking.MaxChunkSizeInBytes),
		DefaultChunkSize:   int64(cfg.Chunking.DefaultChunkSizeInBytes),
		CompressionEnabled: cfg.Chunking.CompressionEnabled,
		CompressionLevel:   cfg.Chunking.CompressionLevel,
		MaxParallelTasks:   cfg.Distribution.MaxParallelTasks,
	}, store, providers, bus, metrics.NewEngineMetrics())
}

// BuildService creates the file service from configuration.
func BuildService(cfg *Config, eng *engine.Engine, store metadata.Store, c cache.Cache) *service.Service {
	return service.New(service.Config{
		VerifyConcurrency: cfg.Distribution.VerifyConcurrency,
	}, eng, store, c)
}
