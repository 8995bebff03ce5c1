package lock

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/mwantia/docstore/data"
)

// Handle is an open read or write stream on a tracked file. Close must be
// called on every path; it releases the handle from its tracker exactly once.
type Handle struct {
	locks  *StreamLocks
	file   *os.File
	writer bool
	once   sync.Once
}

var (
	_ io.ReadCloser  = (*Handle)(nil)
	_ io.WriteCloser = (*Handle)(nil)
)

func newHandle(locks *StreamLocks, file *os.File, writer bool) *Handle {
	return &Handle{
		locks:  locks,
		file:   file,
		writer: writer,
	}
}

func (h *Handle) Read(p []byte) (int, error) {
	if h.writer {
		return 0, data.ErrInvalid
	}
	return h.file.Read(p)
}

func (h *Handle) Write(p []byte) (int, error) {
	if !h.writer {
		return 0, data.ErrInvalid
	}
	return h.file.Write(p)
}

// Size returns the current size of the underlying file.
func (h *Handle) Size() (int64, error) {
	info, err := h.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// IsWriter reports whether this is the exclusive write handle.
func (h *Handle) IsWriter() bool {
	return h.writer
}

func (h *Handle) Close() error {
	err := data.ErrClosed
	h.once.Do(func() {
		closeErr := h.file.Close()
		releaseErr := h.locks.release(h.writer)
		err = errors.Join(closeErr, releaseErr)
	})
	return err
}
