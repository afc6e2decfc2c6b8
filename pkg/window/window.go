// Package window provides random-access byte-range reads over an input
// source without loading it fully into memory.
//
// A seekable file is windowed in place. Any other source is materialized
// into a temporary file first; releasing the window deletes it. Range
// reads use ReadAt, so concurrent callers on disjoint ranges are safe.
package window

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/bufpool"
)

// ErrClosed is returned by reads on a released window.
var ErrClosed = errors.New("window is closed")

// Window exposes read(offset, length) over a fixed-size byte source.
type Window struct {
	file   *os.File
	size   int64
	temp   bool
	closed bool
}

// FromFile creates a window directly over an open file. The caller keeps
// ownership of the handle; Close does not close it.
func FromFile(f *os.File) (*Window, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat source file: %w", err)
	}
	return &Window{file: f, size: info.Size()}, nil
}

// FromReader materializes the source into a temporary file and windows
// that. The copy suspends per buffer, so a cancelled context stops it
// between buffers.
func FromReader(ctx context.Context, r io.Reader) (*Window, error) {
	tmp, err := os.CreateTemp("", "chunkvault-window-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create window spill file: %w", err)
	}

	size, err := copyWithContext(ctx, tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}

	logger.DebugCtx(ctx, "source spilled to window file",
		logger.KeyPath, tmp.Name(),
		logger.KeySize, size)
	return &Window{file: tmp, size: size, temp: true}, nil
}

// Open windows the source, spilling only when it is not a seekable file.
func Open(ctx context.Context, source io.Reader) (*Window, error) {
	if f, ok := source.(*os.File); ok {
		if _, err := f.Seek(0, io.SeekCurrent); err == nil {
			return FromFile(f)
		}
		// Not seekable (pipe, device); fall through to the spill path.
	}
	return FromReader(ctx, source)
}

// Size returns the source length in bytes.
func (w *Window) Size() int64 {
	return w.size
}

// SectionReader returns a fresh sequential reader over the whole window.
// It is backed by ReadAt, so it never disturbs concurrent range reads.
func (w *Window) SectionReader() *io.SectionReader {
	return io.NewSectionReader(w.file, 0, w.size)
}

// ReadRange returns the bytes in [offset, offset+length). Requests past
// the end of the source are invalid, not truncated.
func (w *Window) ReadRange(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.closed {
		return nil, ErrClosed
	}
	if offset < 0 || length < 0 || offset+length > w.size {
		return nil, fmt.Errorf("range [%d, %d) outside window of %d bytes", offset, offset+length, w.size)
	}

	buf := make([]byte, length)
	if _, err := w.file.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("failed to read window range: %w", err)
	}
	return buf, nil
}

// Close releases the window, deleting the temporary file when the source
// was spilled. Safe to call more than once.
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if !w.temp {
		return nil
	}
	name := w.file.Name()
	err := w.file.Close()
	if rmErr := os.Remove(name); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// copyWithContext copies with a pooled buffer, checking the context once
// per buffer so large spills cancel promptly.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := bufpool.Get(bufpool.DefaultLargeSize)
	defer bufpool.Put(buf)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, fmt.Errorf("failed to spill source: %w", writeErr)
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("failed to read source: %w", readErr)
		}
	}
}
