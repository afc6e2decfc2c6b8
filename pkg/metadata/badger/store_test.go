package badger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkvault/chunkvault/pkg/metadata"
	"github.com/chunkvault/chunkvault/pkg/metadata/badger"
)

func newTestStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.Open(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func testFile(id string) *metadata.FileRecord {
	now := metadata.Now()
	return &metadata.FileRecord{
		ID:        id,
		Name:      "report.pdf",
		FullPath:  "/docs/" + id + "/report.pdf",
		Size:      2048,
		Type:      metadata.FileTypeFile,
		Checksum:  "abc123",
		Status:    metadata.FileStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFileAddGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := testFile("file-1")
	require.NoError(t, store.AddFile(ctx, record))

	got, err := store.GetFile(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, record.Name, got.Name)
	assert.Equal(t, record.Checksum, got.Checksum)

	byPath, err := store.GetFileByPath(ctx, record.FullPath)
	require.NoError(t, err)
	assert.Equal(t, record.ID, byPath.ID)

	deleted, err := store.DeleteFile(ctx, "file-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.GetFile(ctx, "file-1")
	assert.True(t, metadata.IsNotFound(err))

	// Path index must go with the document.
	_, err = store.GetFileByPath(ctx, record.FullPath)
	assert.True(t, metadata.IsNotFound(err))
}

func TestFileAddRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddFile(ctx, testFile("dup")))
	err := store.AddFile(ctx, testFile("dup"))
	assert.True(t, metadata.IsAlreadyExists(err))
}

func TestFileReplaceRejectsMissing(t *testing.T) {
	store := newTestStore(t)

	err := store.ReplaceFile(context.Background(), testFile("ghost"))
	assert.True(t, metadata.IsNotFound(err))
}

func TestFileReplaceMovesIndexes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := testFile("moved")
	require.NoError(t, store.AddFile(ctx, record))

	oldPath := record.FullPath
	updated := *record
	updated.FullPath = "/archive/report.pdf"
	updated.Status = metadata.FileStatusCompleted
	require.NoError(t, store.ReplaceFile(ctx, &updated))

	_, err := store.GetFileByPath(ctx, oldPath)
	assert.True(t, metadata.IsNotFound(err), "stale path index must be removed")

	got, err := store.GetFileByPath(ctx, updated.FullPath)
	require.NoError(t, err)
	assert.Equal(t, metadata.FileStatusCompleted, got.Status)
}

func TestDeleteMissingFileIsNotAnError(t *testing.T) {
	store := newTestStore(t)

	deleted, err := store.DeleteFile(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListFilesByFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := testFile("dir-1")
	dir.Type = metadata.FileTypeDirectory
	dir.Checksum = ""
	require.NoError(t, store.AddFile(ctx, dir))

	for i := 0; i < 3; i++ {
		child := testFile(fmt.Sprintf("child-%d", i))
		child.ParentID = "dir-1"
		require.NoError(t, store.AddFile(ctx, child))
	}
	other := testFile("outsider")
	other.Checksum = "zzz999"
	require.NoError(t, store.AddFile(ctx, other))

	children, err := store.ListFiles(ctx, metadata.FileFilter{ParentID: "dir-1"})
	require.NoError(t, err)
	assert.Len(t, children, 3)

	dirs, err := store.ListFiles(ctx, metadata.FileFilter{Type: metadata.FileTypeDirectory})
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.Equal(t, "dir-1", dirs[0].ID)

	dupes, err := store.ListFiles(ctx, metadata.FileFilter{Checksum: "abc123"})
	require.NoError(t, err)
	assert.Len(t, dupes, 3)

	all, err := store.ListFiles(ctx, metadata.FileFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestChunkOrderingAndOwnership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Insert out of order, including a two-digit sequence to catch
	// lexicographic ordering bugs in the index key.
	for _, seq := range []int{10, 2, 0, 1} {
		record := &metadata.ChunkRecord{
			ID:       metadata.ChunkID("file-A", seq),
			FileID:   "file-A",
			Sequence: seq,
			Size:     1024,
			Checksum: fmt.Sprintf("sum-%d", seq),
			Status:   metadata.ChunkStatusStored,
		}
		require.NoError(t, store.AddChunk(ctx, record))
	}
	require.NoError(t, store.AddChunk(ctx, &metadata.ChunkRecord{
		ID:       metadata.ChunkID("file-B", 0),
		FileID:   "file-B",
		Sequence: 0,
	}))

	chunks, err := store.ListChunksByFile(ctx, "file-A")
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, want := range []int{0, 1, 2, 10} {
		assert.Equal(t, want, chunks[i].Sequence)
	}

	count, err := store.DeleteChunksByFile(ctx, "file-A")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	remaining, err := store.ListAllChunks(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "file-B", remaining[0].FileID)
}

func TestChunkCreatedIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	// Insert newest first to prove ordering comes from the index, not
	// from insertion order.
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, store.AddChunk(ctx, &metadata.ChunkRecord{
			ID:        metadata.ChunkID("file-T", i),
			FileID:    "file-T",
			Sequence:  i,
			Status:    metadata.ChunkStatusStored,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.ListChunksCreatedSince(ctx, base)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := range all {
		assert.Equal(t, i, all[i].Sequence, "records must come back oldest first")
	}

	recent, err := store.ListChunksCreatedSince(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 1, recent[0].Sequence)

	// Single delete drops the index entry with the document.
	deleted, err := store.DeleteChunk(ctx, metadata.ChunkID("file-T", 1))
	require.NoError(t, err)
	require.True(t, deleted)

	recent, err = store.ListChunksCreatedSince(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 2, recent[0].Sequence)

	// Bulk delete by owner clears the rest.
	_, err = store.DeleteChunksByFile(ctx, "file-T")
	require.NoError(t, err)

	all, err = store.ListChunksCreatedSince(ctx, base)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestChunkAddRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &metadata.ChunkRecord{ID: "f_0", FileID: "f", Sequence: 0}
	require.NoError(t, store.AddChunk(ctx, record))
	err := store.AddChunk(ctx, record)
	assert.True(t, metadata.IsAlreadyExists(err))
}

func TestDeleteChunksByFileWithNone(t *testing.T) {
	store := newTestStore(t)

	count, err := store.DeleteChunksByFile(context.Background(), "empty-file")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLogRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendLog(ctx, &metadata.LogRecord{
			CorrelationID: "corr-1",
			Operation:     "upload",
			Message:       fmt.Sprintf("step %d", i),
			Timestamp:     base.Add(time.Duration(2-i) * time.Second),
		}))
	}
	require.NoError(t, store.AppendLog(ctx, &metadata.LogRecord{
		CorrelationID: "corr-2",
		Operation:     "download",
	}))

	logs, err := store.ListLogsByCorrelation(ctx, "corr-1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	// Oldest first regardless of insertion order.
	assert.Equal(t, "step 2", logs[0].Message)
	assert.Equal(t, "step 0", logs[2].Message)
}

func TestCancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetFile(ctx, "any")
	assert.ErrorIs(t, err, context.Canceled)
}
