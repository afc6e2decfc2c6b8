package badgerstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkvault/chunkvault/pkg/storage"
	"github.com/chunkvault/chunkvault/pkg/storage/badgerstore"
)

func newTestProvider(t *testing.T) *badgerstore.Provider {
	t.Helper()
	p, err := badgerstore.New(badgerstore.Config{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Close()
	})
	return p
}

func TestPutGetRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	payload := []byte("object payload")
	objectID, err := p.Put(ctx, "file-1_0", payload)
	require.NoError(t, err)
	require.NotEmpty(t, objectID)
	assert.NotEqual(t, "file-1_0", objectID, "storage path is an opaque object id")

	got, err := p.Get(ctx, "file-1_0", objectID)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestGetResolvesThroughIndex(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Put(ctx, "file-2_0", []byte("data"))
	require.NoError(t, err)

	got, err := p.Get(ctx, "file-2_0", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}

func TestGetMissingObject(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Get(context.Background(), "ghost_0", "")
	assert.True(t, storage.IsNotFound(err))
}

func TestExists(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	ok, err := p.Exists(ctx, "file-3_0", "")
	require.NoError(t, err)
	assert.False(t, ok)

	objectID, err := p.Put(ctx, "file-3_0", []byte("x"))
	require.NoError(t, err)

	ok, err = p.Exists(ctx, "file-3_0", objectID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteIdempotence(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	objectID, err := p.Put(ctx, "file-4_0", []byte("x"))
	require.NoError(t, err)

	deleted, err := p.Delete(ctx, "file-4_0", objectID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = p.Delete(ctx, "file-4_0", objectID)
	require.NoError(t, err)
	assert.False(t, deleted)

	ok, err := p.Exists(ctx, "file-4_0", "")
	require.NoError(t, err)
	assert.False(t, ok, "chunk index entry must go with the object")
}

func TestRePutReplacesObject(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	first, err := p.Put(ctx, "file-5_0", []byte("v1"))
	require.NoError(t, err)
	second, err := p.Put(ctx, "file-5_0", []byte("v2"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each put allocates a fresh object id")

	// Index-based resolution follows the latest put.
	got, err := p.Get(ctx, "file-5_0", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}
