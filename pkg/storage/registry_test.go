package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkvault/chunkvault/pkg/storage"
)

// stubProvider is a minimal provider for registry tests.
type stubProvider struct {
	id     string
	closed bool
}

func (s *stubProvider) ID() string   { return s.id }
func (s *stubProvider) Type() string { return "Stub" }

func (s *stubProvider) Put(ctx context.Context, chunkID string, data []byte) (string, error) {
	return chunkID, nil
}

func (s *stubProvider) Get(ctx context.Context, chunkID, storagePath string) ([]byte, error) {
	return nil, storage.NewNotFound(s.id, chunkID)
}

func (s *stubProvider) Exists(ctx context.Context, chunkID, storagePath string) (bool, error) {
	return false, nil
}

func (s *stubProvider) Delete(ctx context.Context, chunkID, storagePath string) (bool, error) {
	return false, nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestRoundRobinFollowsConfiguredOrder(t *testing.T) {
	first := &stubProvider{id: "filesystem"}
	second := &stubProvider{id: "objectstore"}
	reg, err := storage.NewRegistry(first, second)
	require.NoError(t, err)

	// Chunks 0 and 2 on the first provider, chunk 1 on the second.
	assert.Equal(t, "filesystem", reg.ForSequence(0).ID())
	assert.Equal(t, "objectstore", reg.ForSequence(1).ID())
	assert.Equal(t, "filesystem", reg.ForSequence(2).ID())
	assert.Equal(t, "objectstore", reg.ForSequence(3).ID())
}

func TestRegistryLookup(t *testing.T) {
	reg, err := storage.NewRegistry(&stubProvider{id: "filesystem"})
	require.NoError(t, err)

	p, ok := reg.Get("filesystem")
	require.True(t, ok)
	assert.Equal(t, "filesystem", p.ID())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsEmptySet(t *testing.T) {
	_, err := storage.NewRegistry()
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	_, err := storage.NewRegistry(&stubProvider{id: "dup"}, &stubProvider{id: "dup"})
	assert.Error(t, err)
}

func TestRegistryRejectsUppercaseID(t *testing.T) {
	_, err := storage.NewRegistry(&stubProvider{id: "Filesystem"})
	assert.Error(t, err)
}

func TestRegistryCloseReachesAllProviders(t *testing.T) {
	first := &stubProvider{id: "a"}
	second := &stubProvider{id: "b"}
	reg, err := storage.NewRegistry(first, second)
	require.NoError(t, err)

	require.NoError(t, reg.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestChunkPrefix(t *testing.T) {
	assert.Equal(t, "fi", storage.ChunkPrefix("file-1_0"))
	assert.Equal(t, "ab", storage.ChunkPrefix("ab"))

	// Short ids hash into a stable two-char hex prefix.
	short := storage.ChunkPrefix("a")
	assert.Len(t, short, 2)
	assert.Equal(t, short, storage.ChunkPrefix("a"))
}

func TestSanitizeChunkID(t *testing.T) {
	assert.Equal(t, "a_b_c", storage.SanitizeChunkID(`a/b\c`))
	assert.Equal(t, "plain", storage.SanitizeChunkID("plain"))
}

func TestErrorKinds(t *testing.T) {
	notFound := storage.NewNotFound("filesystem", "f_0")
	kind, ok := storage.KindOf(notFound)
	require.True(t, ok)
	assert.Equal(t, storage.KindNotFound, kind)
	assert.True(t, storage.IsNotFound(notFound))
	assert.False(t, storage.IsTransient(notFound))

	transient := storage.NewTransient("s3", "f_1", "timeout", context.DeadlineExceeded)
	assert.True(t, storage.IsTransient(transient))

	kind, ok = storage.KindOf(context.Canceled)
	require.True(t, ok)
	assert.Equal(t, storage.KindCancelled, kind)
}
