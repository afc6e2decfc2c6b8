package indexer_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkvault/chunkvault/pkg/cache"
	"github.com/chunkvault/chunkvault/pkg/events"
	"github.com/chunkvault/chunkvault/pkg/indexer"
	"github.com/chunkvault/chunkvault/pkg/metadata"
	"github.com/chunkvault/chunkvault/pkg/metadata/badger"
)

func newTestStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.Open(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// buildTree lays out:
//
//	root/
//	  a.txt        ("alpha")
//	  b.txt        ("alpha")   duplicate content of a.txt
//	  sub/
//	    c.log      ("gamma")
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "c.log"), []byte("gamma"), 0o644))
	return root
}

func TestScanRecursive(t *testing.T) {
	store := newTestStore(t)
	ix := indexer.New(store, nil, nil)
	ctx := context.Background()

	root := buildTree(t)
	result, err := ix.Scan(ctx, root, indexer.Options{Recursive: true})
	require.NoError(t, err)

	assert.Equal(t, 3, result.FileCount)
	assert.Equal(t, 2, result.DirectoryCount) // root + sub
	assert.Equal(t, int64(15), result.TotalSize)
	assert.Zero(t, result.ErrorCount)

	// The nested file's record hangs off the sub directory record.
	sub, err := store.GetFileByPath(ctx, filepath.Join(root, "sub"))
	require.NoError(t, err)
	assert.Equal(t, metadata.FileTypeDirectory, sub.Type)

	c, err := store.GetFileByPath(ctx, filepath.Join(root, "sub", "c.log"))
	require.NoError(t, err)
	assert.Equal(t, sub.ID, c.ParentID)
	assert.Equal(t, metadata.FileTypeFile, c.Type)
	assert.Equal(t, int64(5), c.Size)
	assert.Equal(t, ".log", c.Extension)
	assert.False(t, c.IsIndexed)
	assert.Empty(t, c.Checksum)
}

func TestScanNonRecursiveCapturesButDoesNotDescend(t *testing.T) {
	store := newTestStore(t)
	ix := indexer.New(store, nil, nil)
	ctx := context.Background()

	root := buildTree(t)
	result, err := ix.Scan(ctx, root, indexer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FileCount)
	assert.Equal(t, 2, result.DirectoryCount)

	// sub itself is recorded, its contents are not.
	_, err = store.GetFileByPath(ctx, filepath.Join(root, "sub"))
	require.NoError(t, err)
	_, err = store.GetFileByPath(ctx, filepath.Join(root, "sub", "c.log"))
	assert.True(t, metadata.IsNotFound(err))
}

func TestScanProcessContentHashesFiles(t *testing.T) {
	store := newTestStore(t)
	ix := indexer.New(store, nil, nil)
	ctx := context.Background()

	root := buildTree(t)
	_, err := ix.Scan(ctx, root, indexer.Options{Recursive: true, ProcessContent: true})
	require.NoError(t, err)

	a, err := store.GetFileByPath(ctx, filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.True(t, a.IsIndexed)
	// SHA-256("alpha")
	assert.Equal(t,
		"8ed3f6ad685b959ead7022518e1af76cd816f8e8ec7ccdda1ed4018e8f2223f8",
		a.Checksum)
}

func TestScanTagsDuplicates(t *testing.T) {
	store := newTestStore(t)
	ix := indexer.New(store, nil, nil)
	ctx := context.Background()

	root := buildTree(t)
	result, err := ix.Scan(ctx, root, indexer.Options{
		Recursive:       true,
		ProcessContent:  true,
		CheckDuplicates: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.DuplicateCount)

	a, err := store.GetFileByPath(ctx, filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	b, err := store.GetFileByPath(ctx, filepath.Join(root, "b.txt"))
	require.NoError(t, err)
	c, err := store.GetFileByPath(ctx, filepath.Join(root, "sub", "c.log"))
	require.NoError(t, err)

	assert.True(t, a.HasTag(metadata.TagDuplicate))
	assert.True(t, b.HasTag(metadata.TagDuplicate))
	assert.False(t, c.HasTag(metadata.TagDuplicate))
}

func TestScanRevisitUpdatesInPlace(t *testing.T) {
	store := newTestStore(t)
	ix := indexer.New(store, nil, nil)
	ctx := context.Background()

	root := buildTree(t)
	_, err := ix.Scan(ctx, root, indexer.Options{Recursive: true})
	require.NoError(t, err)

	first, err := store.GetFileByPath(ctx, filepath.Join(root, "a.txt"))
	require.NoError(t, err)

	// Grow the file and rescan; the record keeps its id.
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha and more"), 0o644))
	_, err = ix.Scan(ctx, root, indexer.Options{Recursive: true})
	require.NoError(t, err)

	second, err := store.GetFileByPath(ctx, filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(14), second.Size)

	all, err := store.ListFiles(ctx, metadata.FileFilter{Type: metadata.FileTypeFile})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestScanParallelMatchesSequential(t *testing.T) {
	store := newTestStore(t)
	ix := indexer.New(store, nil, nil)
	ctx := context.Background()

	root := t.TempDir()
	for i := 0; i < 20; i++ {
		name := filepath.Join(root, string(rune('a'+i))+".dat")
		require.NoError(t, os.WriteFile(name, []byte{byte(i)}, 0o644))
	}

	result, err := ix.Scan(ctx, root, indexer.Options{Parallel: true, Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, 20, result.FileCount)
	assert.Equal(t, int64(20), result.TotalSize)
	assert.Zero(t, result.ErrorCount)
}

func TestScanPublishesEvents(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewBus()

	var mu sync.Mutex
	var discovered []string
	var scans int
	bus.Subscribe(events.HandlerFunc{
		Type: events.TypeFileDiscovered,
		Fn: func(ctx context.Context, e events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			discovered = append(discovered, e.(*events.FileDiscovered).FileName)
			return nil
		},
	})
	bus.Subscribe(events.HandlerFunc{
		Type: events.TypeDirectoryScan,
		Fn: func(ctx context.Context, e events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			scans++
			return nil
		},
	})

	ix := indexer.New(store, nil, bus)
	root := buildTree(t)
	_, err := ix.Scan(context.Background(), root, indexer.Options{Recursive: true})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, discovered, 3)
	assert.Equal(t, 1, scans)
}

func TestScanRejectsFileRoot(t *testing.T) {
	store := newTestStore(t)
	ix := indexer.New(store, nil, nil)

	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := ix.Scan(context.Background(), path, indexer.Options{})
	require.Error(t, err)
}

func TestScanEvictsCachedFileRecords(t *testing.T) {
	store := newTestStore(t)
	c := cache.NewMemory(cache.Config{}, nil)
	t.Cleanup(func() { c.Close() })
	ix := indexer.New(store, c, nil)
	ctx := context.Background()

	root := buildTree(t)
	_, err := ix.Scan(ctx, root, indexer.Options{Recursive: true})
	require.NoError(t, err)

	record, err := store.GetFileByPath(ctx, filepath.Join(root, "a.txt"))
	require.NoError(t, err)

	// A consumer caches the record by id, then the file grows on disk.
	require.NoError(t, c.Set(ctx, cache.KeyFile(record.ID), record))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha has grown"), 0o644))

	_, err = ix.Scan(ctx, root, indexer.Options{Recursive: true, ProcessContent: true})
	require.NoError(t, err)

	var cached metadata.FileRecord
	assert.False(t, c.Get(ctx, cache.KeyFile(record.ID), &cached),
		"record key must be evicted after the re-scan replaced the record")

	fresh, err := store.GetFile(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len("alpha has grown")), fresh.Size)
	assert.True(t, fresh.IsIndexed)
}

func TestDuplicateTaggingEvictsCachedRecords(t *testing.T) {
	store := newTestStore(t)
	c := cache.NewMemory(cache.Config{}, nil)
	t.Cleanup(func() { c.Close() })
	ix := indexer.New(store, c, nil)
	ctx := context.Background()

	root := buildTree(t)
	_, err := ix.Scan(ctx, root, indexer.Options{Recursive: true, ProcessContent: true})
	require.NoError(t, err)

	record, err := store.GetFileByPath(ctx, filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, cache.KeyFile(record.ID), record))

	// a.txt and b.txt share content, so the duplicate pass tags both.
	result, err := ix.Scan(ctx, root, indexer.Options{Recursive: true, ProcessContent: true, CheckDuplicates: true})
	require.NoError(t, err)
	require.Equal(t, 2, result.DuplicateCount)

	var cached metadata.FileRecord
	assert.False(t, c.Get(ctx, cache.KeyFile(record.ID), &cached))

	fresh, err := store.GetFile(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, fresh.HasTag(metadata.TagDuplicate))
}
