// Package docstore implements a single-node, file-backed document store.
//
// Every file is persisted as content plus a JSON metadata sidecar. At startup
// the sidecars are loaded into an in-memory secondary index that answers
// filtered, faceted and paged queries without touching the disk. All
// operations take an access policy and never hold identity state themselves.
package docstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/index"
	"github.com/mwantia/docstore/lock"
	"github.com/mwantia/docstore/log"
)

const (
	publicFolder    = "public"
	protectedFolder = "protected"
)

// ChangeRecorder receives every successful mutation.
type ChangeRecorder interface {
	Record(ctx context.Context, change data.Change) error
}

// Indexer is the push interface of a full-text index kept eventually
// consistent with the store.
type Indexer interface {
	Index(ctx context.Context, states ...*data.FileState) error
	RemoveFromIndex(ctx context.Context, ids ...uuid.UUID) error
}

type Storage struct {
	// mu guards index and every sidecar/content operation that must stay consistent with it
	mu     sync.RWMutex
	root   string
	index  *index.Index
	locks  *lock.Manager
	closed bool

	log           *log.Logger
	maxInlineSize int64
	loadWorkers   int
	recorder      ChangeRecorder
	indexer       Indexer
}

// New creates a storage rooted at root. The root and its public and protected
// folders are created when missing. The index is empty until LoadEntries is called.
func New(root string, opts ...Option) (*Storage, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root '%s': %w", root, err)
	}

	for _, dir := range []string{abs, filepath.Join(abs, publicFolder), filepath.Join(abs, protectedFolder)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage folder '%s': %w", dir, err)
		}
	}

	return &Storage{
		root:          abs,
		index:         index.New(),
		locks:         lock.NewManager(),
		log:           options.Logger,
		maxInlineSize: options.MaxInlineSize,
		loadWorkers:   options.LoadWorkers,
		recorder:      options.Recorder,
		indexer:       options.Indexer,
	}, nil
}

// Root returns the absolute storage root.
func (s *Storage) Root() string {
	return s.root
}

// Stats returns entry counts per type and the number of open stream handles.
func (s *Storage) Stats() data.StorageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := data.StorageStats{
		Entries:     s.index.Len(),
		ByType:      make(map[data.FileType]int),
		OpenHandles: s.locks.OpenHandles(),
	}
	for _, fileType := range data.FileTypes() {
		if count := s.index.CountByType(fileType); count > 0 {
			stats.ByType[fileType] = count
		}
	}
	return stats
}

// Close drops the index and closes the change recorder when it is closable.
// Open stream handles stay valid until they are closed by their owners.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return data.ErrClosed
	}
	s.closed = true

	if open := s.locks.OpenHandles(); open > 0 {
		s.log.Warn("Closing storage with %d open stream handles", open)
	}
	s.index.Clear()
	s.locks.Reset()

	if closer, ok := s.recorder.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
