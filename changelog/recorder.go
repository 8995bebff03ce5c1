// Package changelog records every successful storage mutation and writes
// them as JSON-lines snapshot files. Each written snapshot is announced to
// the configured adapters, which forward it to external audit trails.
// Adapters are a side channel: their failures are logged and never affect
// the storage.
package changelog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/log"
)

const snapshotExtension = ".jsonl"

// Snapshot describes one written change log file.
type Snapshot struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Changes int       `json:"changes"`
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
}

// Adapter is notified with every written snapshot.
type Adapter interface {
	Name() string
	Notify(ctx context.Context, snapshot Snapshot) error
	Close() error
}

type Recorder struct {
	mu       sync.Mutex
	dir      string
	every    int
	sequence int
	pending  []data.Change
	closed   bool

	adapters []Adapter
	notify   conc.WaitGroup
	log      *log.Logger
}

// New creates a recorder writing a snapshot to dir every `every` changes.
// every <= 0 writes snapshots on Flush and Close only.
func New(dir string, every int, logger *log.Logger, adapters ...Adapter) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create change log folder '%s': %w", dir, err)
	}

	if logger == nil {
		logger = log.Discard()
	}

	return &Recorder{
		dir:      dir,
		every:    every,
		pending:  make([]data.Change, 0),
		adapters: adapters,
		log:      logger,
	}, nil
}

// Record appends change and writes a snapshot once enough changes are pending.
func (r *Recorder) Record(ctx context.Context, change data.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return data.ErrClosed
	}

	r.pending = append(r.pending, change)
	if r.every > 0 && len(r.pending) >= r.every {
		_, err := r.flushUnsafe(ctx)
		return err
	}
	return nil
}

// Pending returns the number of changes not yet written.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// Flush writes all pending changes. Returns nil without error when nothing is pending.
func (r *Recorder) Flush(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, data.ErrClosed
	}
	return r.flushUnsafe(ctx)
}

// Wait blocks until every adapter notification has finished.
func (r *Recorder) Wait() {
	r.notify.Wait()
}

// Close writes pending changes, waits for the adapters and closes them.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return data.ErrClosed
	}

	_, err := r.flushUnsafe(context.Background())
	r.closed = true
	r.mu.Unlock()

	r.notify.Wait()

	errs := &data.Errors{}
	errs.Add(err)
	for _, adapter := range r.adapters {
		if err := adapter.Close(); err != nil {
			errs.Add(fmt.Errorf("failed to close adapter '%s': %w", adapter.Name(), err))
		}
	}
	return errs.Errors()
}

// flushUnsafe MUST be called while holding r.mu.
func (r *Recorder) flushUnsafe(ctx context.Context) (*Snapshot, error) {
	if len(r.pending) == 0 {
		return nil, nil
	}

	r.sequence++
	snapshot := Snapshot{
		Name:    fmt.Sprintf("changes-%s-%06d%s", time.Now().UTC().Format("20060102T150405.000000000Z"), r.sequence, snapshotExtension),
		Changes: len(r.pending),
		First:   r.pending[0].Time,
		Last:    r.pending[len(r.pending)-1].Time,
	}
	snapshot.Path = filepath.Join(r.dir, snapshot.Name)

	if err := writeSnapshot(snapshot.Path, r.pending); err != nil {
		return nil, err
	}
	r.pending = r.pending[:0]

	r.log.Debug("Wrote change log snapshot '%s' with %d changes", snapshot.Name, snapshot.Changes)

	notifyCtx := context.WithoutCancel(ctx)
	for _, adapter := range r.adapters {
		r.notify.Go(func() {
			if err := adapter.Notify(notifyCtx, snapshot); err != nil {
				r.log.Warn("Adapter '%s' failed to handle snapshot '%s': %v", adapter.Name(), snapshot.Name, err)
			}
		})
	}

	return &snapshot, nil
}

func writeSnapshot(path string, changes []data.Change) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(w)
	for _, change := range changes {
		if err := encoder.Encode(change); err != nil {
			tmp.Close()
			return err
		}
	}

	if err := errors.Join(w.Flush(), tmp.Sync()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// ReadSnapshot decodes the changes of a snapshot file.
func ReadSnapshot(path string) ([]data.Change, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	changes := make([]data.Change, 0)
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var change data.Change
		if err := decoder.Decode(&change); err != nil {
			return nil, fmt.Errorf("%w: malformed snapshot '%s': %v", data.ErrInvalid, path, err)
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// Snapshots lists the snapshot files in dir, oldest first.
func Snapshots(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "changes-*"+snapshotExtension))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
