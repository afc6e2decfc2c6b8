package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/metrics"
)

// Config contains tuning for the in-process cache. Zero values fall back
// to the package defaults.
type Config struct {
	DefaultTTL     time.Duration
	MaxDeleteBatch int
	DeleteCooldown time.Duration
	SweepInterval  time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.MaxDeleteBatch <= 0 {
		c.MaxDeleteBatch = DefaultMaxDeleteBatch
	}
	if c.DeleteCooldown <= 0 {
		c.DeleteCooldown = DefaultDeleteCooldown
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is the in-process Cache implementation.
//
// Thread Safety: the entry map is guarded by an RWMutex; per-key write
// mutexes are created lazily in a sync.Map and never removed (the key
// space is bounded by the record population).
type Memory struct {
	cfg Config

	mu      sync.RWMutex
	entries map[string]entry

	// pending holds keys enqueued for deletion but not yet flushed.
	// Readers treat them as absent so invalidation is immediate even
	// though the map delete is batched.
	pending map[string]struct{}

	// batches groups enqueued keys by operation type.
	batchMu sync.Mutex
	batches map[string]*deleteBatch

	keyLocks sync.Map // key → *sync.Mutex

	metrics metrics.CacheMetrics

	stopSweep chan struct{}
	doneSweep chan struct{}
	closeOnce sync.Once
}

type deleteBatch struct {
	keys  []string
	timer *time.Timer
}

// Compile-time check that Memory implements Cache.
var _ Cache = (*Memory)(nil)

// NewMemory creates an in-process cache. The metrics collector may be nil.
func NewMemory(cfg Config, m metrics.CacheMetrics) *Memory {
	cfg.applyDefaults()

	c := &Memory{
		cfg:       cfg,
		entries:   make(map[string]entry),
		pending:   make(map[string]struct{}),
		batches:   make(map[string]*deleteBatch),
		metrics:   m,
		stopSweep: make(chan struct{}),
		doneSweep: make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get decodes the cached value into out and reports presence. Decode
// failures drop the entry and read as a miss; they never propagate.
func (c *Memory) Get(ctx context.Context, key string, out any) bool {
	start := time.Now()
	hit := c.get(key, out)
	if c.metrics != nil {
		c.metrics.RecordGet(Kind(key), hit, time.Since(start))
	}
	return hit
}

func (c *Memory) get(key string, out any) bool {
	c.mu.RLock()
	e, ok := c.entries[key]
	_, isPending := c.pending[key]
	c.mu.RUnlock()

	if !ok || isPending || time.Now().After(e.expiresAt) {
		return false
	}

	if err := json.Unmarshal(e.data, out); err != nil {
		logger.Debug("cache entry dropped: undecodable",
			logger.KeyCacheKey, key,
			logger.KeyError, err.Error())
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false
	}
	return true
}

// Set stores the value with the default TTL.
func (c *Memory) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.cfg.DefaultTTL)
}

// SetWithTTL stores the value with an explicit lifetime. Concurrent writers
// to the same key are serialized through the per-key mutex so a slow
// marshal cannot interleave with a faster one.
func (c *Memory) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	lock, _ := c.keyLocks.LoadOrStore(key, &sync.Mutex{})
	keyLock := lock.(*sync.Mutex)
	keyLock.Lock()
	defer keyLock.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[key] = entry{data: data, expiresAt: time.Now().Add(ttl)}
	delete(c.pending, key)
	count := len(c.entries)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordSet(Kind(key), time.Since(start))
		c.metrics.RecordEntries(count)
	}
	return nil
}

// Delete enqueues the keys for coalesced removal. The keys read as absent
// immediately; the map delete happens when the batch flushes.
func (c *Memory) Delete(ctx context.Context, opType string, keys ...string) {
	if len(keys) == 0 {
		return
	}

	c.mu.Lock()
	for _, key := range keys {
		c.pending[key] = struct{}{}
	}
	c.mu.Unlock()

	c.batchMu.Lock()
	b := c.batches[opType]
	if b == nil {
		b = &deleteBatch{}
		c.batches[opType] = b
	}
	b.keys = append(b.keys, keys...)

	switch {
	case len(b.keys) >= c.cfg.MaxDeleteBatch:
		if b.timer != nil {
			b.timer.Stop()
		}
		delete(c.batches, opType)
		c.batchMu.Unlock()
		c.flush(opType, b.keys)

	case b.timer == nil:
		b.timer = time.AfterFunc(c.cfg.DeleteCooldown, func() {
			c.flushOp(opType)
		})
		c.batchMu.Unlock()

	default:
		c.batchMu.Unlock()
	}
}

// flushOp detaches and flushes the batch for one operation type.
func (c *Memory) flushOp(opType string) {
	c.batchMu.Lock()
	b := c.batches[opType]
	if b == nil {
		c.batchMu.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	delete(c.batches, opType)
	c.batchMu.Unlock()

	c.flush(opType, b.keys)
}

func (c *Memory) flush(opType string, keys []string) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
		delete(c.pending, key)
	}
	count := len(c.entries)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordDeleteBatch(opType, len(keys))
		c.metrics.RecordEntries(count)
	}
}

// RefreshTTL extends an existing key's lifetime using the default TTL and
// reports whether the key was present. A missing or expired key is never
// created.
func (c *Memory) RefreshTTL(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if _, isPending := c.pending[key]; isPending {
		return false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return false
	}

	e.expiresAt = time.Now().Add(c.cfg.DefaultTTL)
	c.entries[key] = e
	return true
}

// Close flushes every pending delete batch and stops the sweeper.
func (c *Memory) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopSweep)
		<-c.doneSweep

		c.batchMu.Lock()
		batches := c.batches
		c.batches = make(map[string]*deleteBatch)
		c.batchMu.Unlock()

		for opType, b := range batches {
			if b.timer != nil {
				b.timer.Stop()
			}
			c.flush(opType, b.keys)
		}
	})
	return nil
}

// sweepLoop periodically reclaims expired entries so an idle cache doesn't
// hold dead data until the next read.
func (c *Memory) sweepLoop() {
	defer close(c.doneSweep)

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, key)
				}
			}
			count := len(c.entries)
			c.mu.Unlock()

			if c.metrics != nil {
				c.metrics.RecordEntries(count)
			}
		}
	}
}
