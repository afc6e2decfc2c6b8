package service_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkvault/chunkvault/pkg/cache"
	"github.com/chunkvault/chunkvault/pkg/engine"
	"github.com/chunkvault/chunkvault/pkg/metadata"
	"github.com/chunkvault/chunkvault/pkg/metadata/badger"
	"github.com/chunkvault/chunkvault/pkg/service"
	"github.com/chunkvault/chunkvault/pkg/storage"
	"github.com/chunkvault/chunkvault/pkg/storage/filesystem"
)

type fixture struct {
	service *service.Service
	store   *badger.Store
	cache   cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := badger.Open(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fs, err := filesystem.New(filesystem.Config{BasePath: t.TempDir()}, nil)
	require.NoError(t, err)
	registry, err := storage.NewRegistry(fs)
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })

	c := cache.NewMemory(cache.Config{}, nil)
	t.Cleanup(func() { c.Close() })

	eng := engine.New(engine.Config{CompressionEnabled: true}, store, registry, nil, nil)
	return &fixture{
		service: service.New(service.Config{}, eng, store, c),
		store:   store,
		cache:   c,
	}
}

func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := randomBytes(t, 256<<10)
	path := writeTestFile(t, "payload.bin", data)

	record, err := f.service.Upload(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "payload.bin", record.Name)
	assert.Equal(t, metadata.FileStatusCompleted, record.Status)

	var sink bytes.Buffer
	require.NoError(t, f.service.Download(ctx, record.ID, &sink))
	assert.Equal(t, data, sink.Bytes())
}

func TestUploadStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.service.UploadStream(ctx, bytes.NewReader([]byte("hello\n")), "hello.txt")
	require.NoError(t, err)
	assert.Equal(t,
		"5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03",
		record.Checksum)
}

func TestUploadMissingFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.bin"))
	require.Error(t, err)
}

func TestDownloadRefusesIncompleteFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := metadata.Now()
	require.NoError(t, f.store.AddFile(ctx, &metadata.FileRecord{
		ID:        "file-stuck",
		Name:      "stuck.bin",
		Type:      metadata.FileTypeFile,
		Status:    metadata.FileStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	var sink bytes.Buffer
	err := f.service.Download(ctx, "file-stuck", &sink)
	require.ErrorIs(t, err, service.ErrFileNotReady)
	assert.Zero(t, sink.Len())
}

func TestGetFileServesFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := writeTestFile(t, "cached.bin", randomBytes(t, 64<<10))
	record, err := f.service.Upload(ctx, path)
	require.NoError(t, err)

	// Remove the backing record; the cached copy still answers.
	_, err = f.store.DeleteFile(ctx, record.ID)
	require.NoError(t, err)

	got, err := f.service.GetFile(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := writeTestFile(t, "doomed.bin", randomBytes(t, 64<<10))
	record, err := f.service.Upload(ctx, path)
	require.NoError(t, err)

	ok, err := f.service.Delete(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// The cached record is invalidated before the delete batch flushes.
	_, err = f.service.GetFile(ctx, record.ID)
	assert.True(t, metadata.IsNotFound(err))

	// Deleting an unknown id reports false without error.
	ok, err = f.service.Delete(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyCleanFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := writeTestFile(t, "clean.bin", randomBytes(t, 200<<10))
	record, err := f.service.Upload(ctx, path)
	require.NoError(t, err)

	verdict, err := f.service.Verify(ctx, record.ID, false)
	require.NoError(t, err)
	assert.True(t, verdict.Verified)
	assert.False(t, verdict.Deep)
	assert.Empty(t, verdict.BadChunks)
}

func TestVerifyDeepDetectsCorruptChunk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := writeTestFile(t, "victim.bin", randomBytes(t, 150<<10))
	record, err := f.service.Upload(ctx, path)
	require.NoError(t, err)

	chunks, err := f.store.ListChunksByFile(ctx, record.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Truncate the first stored chunk behind the provider's back.
	require.NoError(t, os.Truncate(chunks[0].StoragePath, 4))

	verdict, err := f.service.Verify(ctx, record.ID, true)
	require.NoError(t, err)
	assert.False(t, verdict.Verified)
	assert.Contains(t, verdict.BadChunks, chunks[0].ID)
}

func TestVerifyVerdictIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := writeTestFile(t, "hot.bin", randomBytes(t, 100<<10))
	record, err := f.service.Upload(ctx, path)
	require.NoError(t, err)

	first, err := f.service.Verify(ctx, record.ID, false)
	require.NoError(t, err)
	require.True(t, first.Verified)

	// Damage the stored bytes; the cached verdict still answers until its
	// TTL lapses.
	chunks, err := f.store.ListChunksByFile(ctx, record.ID)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(chunks[0].StoragePath, 0))

	second, err := f.service.Verify(ctx, record.ID, false)
	require.NoError(t, err)
	assert.True(t, second.Verified)
	assert.Equal(t, first.CheckedAt.Unix(), second.CheckedAt.Unix())
}

func TestVerifyDeepBypassesShallowVerdict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := writeTestFile(t, "probe.bin", randomBytes(t, 100<<10))
	record, err := f.service.Upload(ctx, path)
	require.NoError(t, err)

	shallow, err := f.service.Verify(ctx, record.ID, false)
	require.NoError(t, err)
	require.False(t, shallow.Deep)

	deep, err := f.service.Verify(ctx, record.ID, true)
	require.NoError(t, err)
	assert.True(t, deep.Deep)
	assert.True(t, deep.Verified)
}

func TestListByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := writeTestFile(t, "listed.bin", randomBytes(t, 64<<10))
	record, err := f.service.Upload(ctx, path)
	require.NoError(t, err)

	completed, err := f.service.List(ctx, metadata.FileFilter{Status: metadata.FileStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, record.ID, completed[0].ID)

	pending, err := f.service.List(ctx, metadata.FileFilter{Status: metadata.FileStatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}
