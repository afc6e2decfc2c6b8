package window_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkvault/chunkvault/pkg/window"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestFromReaderRoundTrip(t *testing.T) {
	ctx := context.Background()
	data := randomBytes(t, 256*1024)

	w, err := window.FromReader(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, int64(len(data)), w.Size())

	got, err := w.ReadRange(ctx, 0, w.Size())
	require.NoError(t, err)
	assert.Equal(t, data, got)

	mid, err := w.ReadRange(ctx, 1000, 4096)
	require.NoError(t, err)
	assert.Equal(t, data[1000:5096], mid)
}

func TestOpenPrefersSeekableFile(t *testing.T) {
	ctx := context.Background()
	data := randomBytes(t, 8192)

	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := window.Open(ctx, f)
	require.NoError(t, err)
	defer w.Close()

	got, err := w.ReadRange(ctx, 4096, 4096)
	require.NoError(t, err)
	assert.Equal(t, data[4096:], got)
}

func TestReadRangeBounds(t *testing.T) {
	ctx := context.Background()
	w, err := window.FromReader(ctx, bytes.NewReader([]byte("0123456789")))
	require.NoError(t, err)
	defer w.Close()

	_, err = w.ReadRange(ctx, 8, 4)
	assert.Error(t, err, "range past the end is invalid, not truncated")

	_, err = w.ReadRange(ctx, -1, 2)
	assert.Error(t, err)

	got, err := w.ReadRange(ctx, 8, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("89"), got)
}

func TestConcurrentDisjointReads(t *testing.T) {
	ctx := context.Background()
	data := randomBytes(t, 64*1024)

	w, err := window.FromReader(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	defer w.Close()

	const chunkSize = 4 * 1024
	var wg sync.WaitGroup
	errs := make([]error, len(data)/chunkSize)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := int64(i * chunkSize)
			got, readErr := w.ReadRange(ctx, offset, chunkSize)
			if readErr != nil {
				errs[i] = readErr
				return
			}
			if !bytes.Equal(got, data[offset:offset+chunkSize]) {
				errs[i] = assert.AnError
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "range %d", i)
	}
}

func TestCloseDeletesSpillFile(t *testing.T) {
	ctx := context.Background()
	w, err := window.FromReader(ctx, bytes.NewReader([]byte("spill me")))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	_, err = w.ReadRange(ctx, 0, 1)
	assert.ErrorIs(t, err, window.ErrClosed)
}

func TestCloseKeepsCallerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.bin")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := window.FromFile(f)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err, "windowing a caller-owned file must not delete it")
}

func TestCancelledSpill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := window.FromReader(ctx, bytes.NewReader(randomBytes(t, 1024)))
	assert.ErrorIs(t, err, context.Canceled)
}
