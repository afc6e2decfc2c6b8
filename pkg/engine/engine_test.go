package engine_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/engine"
	"github.com/chunkvault/chunkvault/pkg/events"
	"github.com/chunkvault/chunkvault/pkg/metadata"
	"github.com/chunkvault/chunkvault/pkg/metadata/badger"
	"github.com/chunkvault/chunkvault/pkg/storage"
	"github.com/chunkvault/chunkvault/pkg/storage/filesystem"
)

type harness struct {
	engine *engine.Engine
	store  *badger.Store
}

func newHarness(t *testing.T, cfg engine.Config, providerCount int) *harness {
	t.Helper()

	store, err := badger.Open(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := t.TempDir()
	providers := make([]storage.Provider, 0, providerCount)
	for i := 0; i < providerCount; i++ {
		id := "filesystem"
		if i > 0 {
			id = fmt.Sprintf("filesystem-%d", i)
		}
		p, err := filesystem.New(filesystem.Config{
			ProviderID: id,
			BasePath:   filepath.Join(base, id),
		}, nil)
		require.NoError(t, err)
		providers = append(providers, p)
	}

	registry, err := storage.NewRegistry(providers...)
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })

	return &harness{
		engine: engine.New(cfg, store, registry, events.NewBus(), nil),
		store:  store,
	}
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestSplitMergeRoundTrip(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)
	ctx := context.Background()

	data := randomBytes(t, 3<<20)
	record, err := h.engine.Split(ctx, bytes.NewReader(data), "file-rt", "movie.mp4")
	require.NoError(t, err)

	assert.Equal(t, metadata.FileStatusCompleted, record.Status)
	assert.Equal(t, int64(len(data)), record.Size)

	expected := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(expected[:]), record.Checksum)

	chunks, err := h.store.ListChunksByFile(ctx, "file-rt")
	require.NoError(t, err)
	require.Len(t, chunks, record.ChunkCount)

	// Sequences are 0-based and contiguous, and the sizes sum to the file.
	var total int64
	for i, c := range chunks {
		assert.Equal(t, i, c.Sequence)
		assert.Equal(t, metadata.ChunkID("file-rt", i), c.ID)
		total += c.Size
	}
	assert.Equal(t, record.Size, total)

	var sink bytes.Buffer
	require.NoError(t, h.engine.Merge(ctx, "file-rt", &sink))
	assert.Equal(t, data, sink.Bytes())
}

func TestSplitSmallFileWithCompression(t *testing.T) {
	h := newHarness(t, engine.Config{CompressionEnabled: true}, 1)
	ctx := context.Background()

	record, err := h.engine.Split(ctx, bytes.NewReader([]byte("hello\n")), "file-hello", "hello.txt")
	require.NoError(t, err)

	assert.Equal(t, 1, record.ChunkCount)
	assert.Equal(t, int64(6), record.Size)
	assert.Equal(t,
		"5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03",
		record.Checksum)

	chunks, err := h.store.ListChunksByFile(ctx, "file-hello")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsCompressed)
	assert.Equal(t, int64(6), chunks[0].Size)
	assert.Greater(t, chunks[0].StoredSize, int64(0))

	var sink bytes.Buffer
	require.NoError(t, h.engine.Merge(ctx, "file-hello", &sink))
	assert.Equal(t, "hello\n", sink.String())
}

func TestOptimalChunkSize(t *testing.T) {
	var cfg engine.Config

	cases := []struct {
		fileSize int64
		want     int64
	}{
		{16 << 10, 32 << 10},   // below the floor, clamped up
		{32 << 10, 32 << 10},   // exactly the floor
		{1 << 20, 1 << 20},     // mid-band target
		{100 << 20, 4 << 20},   // large files ride the 5 MiB row, capped at max
		{1 << 30, 4 << 20},     // capped by the default max
		{100 << 30, 4 << 20},   // huge files stay at the max
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cfg.OptimalChunkSize(tc.fileSize),
			"file size %d", tc.fileSize)
	}

	// The planner is non-decreasing in the file size.
	sizes := []int64{1, 16 << 10, 32 << 10, 100 << 10, 1 << 20, 5 << 20,
		10 << 20, 50 << 20, 100 << 20, 1 << 30, 10 << 30, 100 << 30}
	prev := int64(0)
	for _, size := range sizes {
		got := cfg.OptimalChunkSize(size)
		assert.GreaterOrEqual(t, got, prev, "file size %d", size)
		assert.GreaterOrEqual(t, got, int64(engine.DefaultMinChunkSize))
		assert.LessOrEqual(t, got, int64(engine.DefaultMaxChunkSize))
		prev = got
	}
}

func TestRoundRobinPlacement(t *testing.T) {
	h := newHarness(t, engine.Config{
		MinChunkSize: 64 << 10,
		MaxChunkSize: 64 << 10,
	}, 2)
	ctx := context.Background()

	// Three chunks across two providers: even sequences land on the first,
	// odd on the second.
	data := randomBytes(t, 3*(64<<10))
	_, err := h.engine.Split(ctx, bytes.NewReader(data), "file-rr", "spread.bin")
	require.NoError(t, err)

	chunks, err := h.store.ListChunksByFile(ctx, "file-rr")
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "filesystem", chunks[0].ProviderID)
	assert.Equal(t, "filesystem-1", chunks[1].ProviderID)
	assert.Equal(t, "filesystem", chunks[2].ProviderID)

	var sink bytes.Buffer
	require.NoError(t, h.engine.Merge(ctx, "file-rr", &sink))
	assert.Equal(t, data, sink.Bytes())
}

// gatedProvider wraps puts with a concurrency probe.
type gatedProvider struct {
	storage.Provider

	mu      sync.Mutex
	active  int
	highest int
}

func (g *gatedProvider) Put(ctx context.Context, chunkID string, data []byte) (string, error) {
	g.mu.Lock()
	g.active++
	if g.active > g.highest {
		g.highest = g.active
	}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()
	return g.Provider.Put(ctx, chunkID, data)
}

func TestSplitBoundsParallelism(t *testing.T) {
	store, err := badger.Open(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fs, err := filesystem.New(filesystem.Config{BasePath: t.TempDir()}, nil)
	require.NoError(t, err)
	gated := &gatedProvider{Provider: fs}

	registry, err := storage.NewRegistry(gated)
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })

	const limit = 2
	eng := engine.New(engine.Config{
		MinChunkSize:     32 << 10,
		MaxChunkSize:     32 << 10,
		MaxParallelTasks: limit,
	}, store, registry, nil, nil)

	// 32 chunks, workers capped at 2.
	data := randomBytes(t, 32*(32<<10))
	_, err = eng.Split(context.Background(), bytes.NewReader(data), "file-par", "big.bin")
	require.NoError(t, err)

	gated.mu.Lock()
	highest := gated.highest
	gated.mu.Unlock()
	assert.LessOrEqual(t, highest, limit)
}

func TestMergeAndVerifyDetectsCorruption(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)
	ctx := context.Background()

	data := randomBytes(t, 128 << 10)
	_, err := h.engine.Split(ctx, bytes.NewReader(data), "file-corrupt", "victim.bin")
	require.NoError(t, err)

	chunks, err := h.store.ListChunksByFile(ctx, "file-corrupt")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Flip bytes in the first stored chunk behind the provider's back.
	target := chunks[0].StoragePath
	stored, err := os.ReadFile(target)
	require.NoError(t, err)
	for i := range stored[:16] {
		stored[i] ^= 0xff
	}
	require.NoError(t, os.WriteFile(target, stored, 0o644))

	// Plain merge does not check payload integrity and still succeeds.
	var plain bytes.Buffer
	require.NoError(t, h.engine.Merge(ctx, "file-corrupt", &plain))
	assert.NotEqual(t, data, plain.Bytes())

	sink, err := os.CreateTemp(t.TempDir(), "merge-*")
	require.NoError(t, err)
	defer sink.Close()

	ok, err := h.engine.MergeAndVerify(ctx, "file-corrupt", sink, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeAndVerifyCleanFile(t *testing.T) {
	h := newHarness(t, engine.Config{CompressionEnabled: true}, 1)
	ctx := context.Background()

	data := randomBytes(t, 300 << 10)
	_, err := h.engine.Split(ctx, bytes.NewReader(data), "file-ok", "clean.bin")
	require.NoError(t, err)

	sink, err := os.CreateTemp(t.TempDir(), "merge-*")
	require.NoError(t, err)
	defer sink.Close()

	ok, err := h.engine.MergeAndVerify(ctx, "file-ok", sink, true)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = sink.Seek(0, 0)
	require.NoError(t, err)
	merged, err := os.ReadFile(sink.Name())
	require.NoError(t, err)
	assert.Equal(t, data, merged)
}

func TestMergeUnknownFile(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)

	var sink bytes.Buffer
	err := h.engine.Merge(context.Background(), "no-such-file", &sink)
	require.Error(t, err)
	assert.Zero(t, sink.Len())
}

func TestDeleteRemovesEverything(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)
	ctx := context.Background()

	data := randomBytes(t, 200 << 10)
	_, err := h.engine.Split(ctx, bytes.NewReader(data), "file-del", "gone.bin")
	require.NoError(t, err)

	chunks, err := h.store.ListChunksByFile(ctx, "file-del")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	ok, err := h.engine.Delete(ctx, "file-del")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.store.GetFile(ctx, "file-del")
	assert.True(t, metadata.IsNotFound(err))

	remaining, err := h.store.ListChunksByFile(ctx, "file-del")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Chunk bytes are gone from disk too.
	_, statErr := os.Stat(chunks[0].StoragePath)
	assert.True(t, os.IsNotExist(statErr))

	// Deleting again reports the id as unknown, not an error.
	ok, err = h.engine.Delete(ctx, "file-del")
	require.NoError(t, err)
	assert.False(t, ok)
}

// captureLogs redirects the global logger into a buffer for the duration of
// the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", "json", false)
	t.Cleanup(func() {
		logger.InitWithWriter(os.Stderr, "info", "text", false)
	})
	return &buf
}

func TestDeleteFileWithoutChunksWarns(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)
	ctx := context.Background()

	// A file record with no chunk records behind it, as left by a crashed
	// split or a hand-edited store.
	now := metadata.Now()
	require.NoError(t, h.store.AddFile(ctx, &metadata.FileRecord{
		ID:        "file-hollow",
		Name:      "hollow.bin",
		FullPath:  "/vault/hollow.bin",
		Type:      metadata.FileTypeFile,
		Status:    metadata.FileStatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	buf := captureLogs(t)
	ok, err := h.engine.Delete(ctx, "file-hollow")
	require.NoError(t, err)
	assert.True(t, ok, "metadata-only delete still succeeds")

	assert.Contains(t, buf.String(), "file has no chunk records")

	_, err = h.store.GetFile(ctx, "file-hollow")
	assert.True(t, metadata.IsNotFound(err))
}

func TestMergeFallbackScanMarksSuspect(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)
	ctx := context.Background()

	data := randomBytes(t, 100<<10)
	_, err := h.engine.Split(ctx, bytes.NewReader(data), "file-legacy", "old.bin")
	require.NoError(t, err)

	// Detach the chunks from the ownership index while keeping their ids
	// and stored bytes, mimicking records written before the index existed.
	chunks, err := h.store.ListChunksByFile(ctx, "file-legacy")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		detached := *c
		detached.FileID = "legacy-orphan"
		require.NoError(t, h.store.ReplaceChunk(ctx, &detached))
	}

	buf := captureLogs(t)
	var sink bytes.Buffer
	require.NoError(t, h.engine.Merge(ctx, "file-legacy", &sink))
	assert.Equal(t, data, sink.Bytes())

	logged := buf.String()
	assert.Contains(t, logged, "recovered chunks by id prefix")
	assert.Contains(t, logged, `"suspect":true`)
}

func TestDeleteUnknownFile(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)

	ok, err := h.engine.Delete(context.Background(), "never-existed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSplitRejectsEmptyInput(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)

	_, err := h.engine.Split(context.Background(), bytes.NewReader(nil), "file-empty", "empty.txt")
	require.ErrorIs(t, err, engine.ErrEmptyInput)
}

func TestSplitExistingReplacesChunks(t *testing.T) {
	h := newHarness(t, engine.Config{}, 1)
	ctx := context.Background()

	first := randomBytes(t, 150<<10)
	_, err := h.engine.Split(ctx, bytes.NewReader(first), "file-redo", "draft.bin")
	require.NoError(t, err)

	second := randomBytes(t, 90 << 10)
	record, err := h.engine.SplitExisting(ctx, bytes.NewReader(second), "file-redo")
	require.NoError(t, err)
	assert.Equal(t, int64(len(second)), record.Size)
	assert.Equal(t, metadata.FileStatusCompleted, record.Status)

	var sink bytes.Buffer
	require.NoError(t, h.engine.Merge(ctx, "file-redo", &sink))
	assert.Equal(t, second, sink.Bytes())
}

func TestSplitChunkCountMatchesPlan(t *testing.T) {
	h := newHarness(t, engine.Config{
		MinChunkSize: 64 << 10,
		MaxChunkSize: 64 << 10,
	}, 1)
	ctx := context.Background()

	// 5 full chunks plus a 1-byte tail.
	data := randomBytes(t, 5*(64<<10)+1)
	record, err := h.engine.Split(ctx, bytes.NewReader(data), "file-plan", "tail.bin")
	require.NoError(t, err)
	assert.Equal(t, 6, record.ChunkCount)

	chunks, err := h.store.ListChunksByFile(ctx, "file-plan")
	require.NoError(t, err)
	require.Len(t, chunks, 6)
	assert.Equal(t, int64(1), chunks[5].Size)
}
