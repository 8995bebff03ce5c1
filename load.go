package docstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/index"
)

// LoadEntries rebuilds the index from every metadata sidecar below the root.
// Sidecars are loaded in parallel; every broken file is reported in one
// aggregate error wrapping ErrLoadFailed. On failure the current index is kept.
func (s *Storage) LoadEntries(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return data.ErrClosed
	}

	start := time.Now()

	if err := s.checkWritableUnsafe(); err != nil {
		return err
	}

	paths, err := s.findMetadataFiles()
	if err != nil {
		return fmt.Errorf("%w: %w", data.ErrLoadFailed, err)
	}

	p := pool.NewWithResults[*index.Entry]().
		WithContext(ctx).
		WithMaxGoroutines(s.loadWorkers)

	for _, path := range paths {
		p.Go(func(ctx context.Context) (*index.Entry, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return s.loadEntry(path)
		})
	}

	entries, err := p.Wait()

	errs := &data.Errors{}
	errs.Add(err)

	idx := index.New()
	for _, entry := range entries {
		if _, exists := idx.Get(entry.Metadata.Id); exists {
			errs.Add(fmt.Errorf("%w: duplicate file id %s", data.ErrInvalid, entry.Metadata.Id))
			continue
		}
		idx.Put(entry)
	}

	for _, id := range idx.Orphans() {
		entry, _ := idx.Get(id)
		errs.Add(fmt.Errorf("%w: %s references %s", data.ErrParentNotExist, id, entry.Metadata.ParentFile))
	}

	if errs.Len() > 0 {
		s.log.Error("Loading entries failed with %d errors, keeping previous index", errs.Len())
		return fmt.Errorf("%w: %w", data.ErrLoadFailed, errs.Errors())
	}

	s.index = idx
	s.log.Info("Loaded %d entries in %s", idx.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}

// checkWritableUnsafe probes the root and its public and protected folders.
// MUST be called while holding s.mu.
func (s *Storage) checkWritableUnsafe() error {
	errs := &data.Errors{}

	for _, dir := range []string{s.root, filepath.Join(s.root, publicFolder), filepath.Join(s.root, protectedFolder)} {
		probe, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			errs.Add(fmt.Errorf("storage folder '%s' is not writable: %w", dir, err))
			continue
		}
		probe.Close()
		os.Remove(probe.Name())
	}

	if errs.Len() > 0 {
		return fmt.Errorf("%w: %w", data.ErrLoadFailed, errs.Errors())
	}
	return nil
}

func (s *Storage) findMetadataFiles() ([]string, error) {
	paths := make([]string, 0)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), metadataExtension) {
			paths = append(paths, path)
		}
		return nil
	})

	return paths, err
}

// loadEntry reads one sidecar and verifies the content file it describes.
func (s *Storage) loadEntry(path string) (*index.Entry, error) {
	md, err := readMetadata(path)
	if err != nil {
		return nil, err
	}
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}

	if expected := s.metadataPath(md.Id); expected != path {
		return nil, fmt.Errorf("%w: metadata '%s' does not match id %s", data.ErrInvalid, path, md.Id)
	}
	if err := checkReadWrite(path); err != nil {
		return nil, fmt.Errorf("%w: metadata '%s': %w", data.ErrInvalid, path, err)
	}

	contentPath := s.contentPath(md)
	if err := checkReadWrite(contentPath); err != nil {
		return nil, fmt.Errorf("%w: content of %s: %w", data.ErrInvalid, md.Id, err)
	}

	return &index.Entry{
		Path:     contentPath,
		Metadata: md,
		Locks:    s.locks.Get(contentPath),
	}, nil
}

func checkReadWrite(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	return f.Close()
}
