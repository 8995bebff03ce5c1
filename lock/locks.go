// Package lock tracks open stream handles per file path so that a file is
// never overwritten while it is read, never read while it is written and
// never unlinked while any handle is still open.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/docstore/data"
)

// Manager hands out one StreamLocks tracker per path.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*StreamLocks
}

func NewManager() *Manager {
	return &Manager{
		locks: make(map[string]*StreamLocks),
	}
}

// Get returns the tracker for path, creating it when none is registered.
func (m *Manager) Get(path string) *StreamLocks {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, exists := m.locks[path]; exists {
		return l
	}

	l := &StreamLocks{
		manager: m,
		path:    path,
	}
	m.locks[path] = l
	return l
}

// OpenHandles returns the number of handles open across all paths.
func (m *Manager) OpenHandles() int {
	m.mu.Lock()
	trackers := make([]*StreamLocks, 0, len(m.locks))
	for _, l := range m.locks {
		trackers = append(trackers, l)
	}
	m.mu.Unlock()

	total := 0
	for _, l := range trackers {
		total += l.OpenCount()
	}
	return total
}

// Reset forgets every idle tracker. Trackers with open handles stay registered.
// Takes m.mu before each l.mu, the same order as forget.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path, l := range m.locks {
		if l.isIdle() {
			delete(m.locks, path)
		}
	}
}

// forget unregisters l if it is still registered and idle.
// Lock order is always m.mu before l.mu; l.mu MUST NOT be held by the caller.
func (m *Manager) forget(l *StreamLocks) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.locks[l.path]; exists && current == l && l.isIdle() {
		delete(m.locks, l.path)
	}
}

// StreamLocks tracks the handles open on one path.
// States: unlocked, read-locked by n readers, write-locked by one writer.
type StreamLocks struct {
	mu      sync.Mutex
	manager *Manager

	path          string
	readers       int
	writer        bool
	pendingDelete bool
}

func (l *StreamLocks) Path() string {
	return l.path
}

// CanBeRead reports whether the file exists and no writer holds it.
func (l *StreamLocks) CanBeRead() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.canBeReadUnsafe()
}

// CanBeWritten reports whether no handle of any kind is open.
func (l *StreamLocks) CanBeWritten() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readers == 0 && !l.writer
}

// OpenCount returns the number of open handles.
func (l *StreamLocks) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer {
		return 1
	}
	return l.readers
}

// IsPendingDelete reports whether the file is marked for removal once the last handle closes.
func (l *StreamLocks) IsPendingDelete() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.pendingDelete
}

// OpenRead opens a shared read handle. Returns ErrInUse while a writer is
// open and ErrNotExist if the file is missing or marked for deletion.
func (l *StreamLocks) OpenRead() (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer {
		return nil, fmt.Errorf("%w: %s is open for writing", data.ErrInUse, l.path)
	}
	if l.pendingDelete {
		return nil, fmt.Errorf("%w: %s is marked for deletion", data.ErrNotExist, l.path)
	}

	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", data.ErrNotExist, l.path)
		}
		return nil, err
	}

	l.readers++
	return newHandle(l, file, false), nil
}

// OpenWrite opens the exclusive write handle, creating or truncating the file.
// Returns ErrInUse when any handle is already open.
func (l *StreamLocks) OpenWrite() (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer || l.readers > 0 {
		return nil, fmt.Errorf("%w: %s has open handles", data.ErrInUse, l.path)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	l.writer = true
	l.pendingDelete = false
	return newHandle(l, file, true), nil
}

// Delete removes the file. With open handles the removal is deferred until
// the last handle closes and deferred is true.
func (l *StreamLocks) Delete() (deferred bool, err error) {
	l.mu.Lock()
	if l.writer || l.readers > 0 {
		l.pendingDelete = true
		l.mu.Unlock()
		return true, nil
	}

	err = l.removeUnsafe()
	l.mu.Unlock()

	l.forget()
	return false, err
}

// release is called exactly once per handle from Handle.Close.
func (l *StreamLocks) release(writer bool) error {
	l.mu.Lock()

	if writer {
		l.writer = false
	} else if l.readers > 0 {
		l.readers--
	}

	if !l.pendingDelete || l.writer || l.readers > 0 {
		l.mu.Unlock()
		return nil
	}

	err := l.removeUnsafe()
	l.mu.Unlock()

	// the manager lock is only taken after l.mu is released
	l.forget()
	return err
}

func (l *StreamLocks) forget() {
	if l.manager != nil {
		l.manager.forget(l)
	}
}

// isIdle reports whether no handle is open and no removal is pending.
func (l *StreamLocks) isIdle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readers == 0 && !l.writer && !l.pendingDelete
}

// removeUnsafe MUST be called while holding l.mu.
func (l *StreamLocks) removeUnsafe() error {
	l.pendingDelete = false

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// canBeReadUnsafe MUST be called while holding l.mu.
func (l *StreamLocks) canBeReadUnsafe() bool {
	if l.writer || l.pendingDelete {
		return false
	}
	_, err := os.Stat(l.path)
	return err == nil
}
