package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mwantia/docstore/acl"
	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/index"
	"github.com/mwantia/docstore/lock"
)

// InsertFile stores content together with md. Modify access is required on
// the new metadata and, when the id already exists, on the existing one.
// Fails with ErrExist when the file exists and enableOverwrite is false and
// with ErrInUse when the file has open stream handles.
func (s *Storage) InsertFile(ctx context.Context, content string, md *data.FileMetadata, enableOverwrite bool, policy acl.Policy) error {
	s.mu.Lock()

	entry, previous, err := s.prepareWriteUnsafe(md, enableOverwrite, policyOrDeny(policy), "insert")
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if err := s.writeMetadata(entry.Metadata); err != nil {
		s.mu.Unlock()
		return err
	}

	if err := writeContent(entry.Locks, content); err != nil {
		s.rollbackMetadataUnsafe(entry, previous)
		s.mu.Unlock()
		return fmt.Errorf("failed to write content of %s: %w", entry.Metadata.Id, err)
	}

	s.relocatedUnsafe(entry, previous)
	s.index.Put(entry)

	action := data.ChangeInsert
	if previous != nil {
		action = data.ChangeUpdate
	}
	change := s.change(action, entry)
	state := &data.FileState{Metadata: entry.Metadata.Clone(), Content: &content}
	s.mu.Unlock()

	s.log.Info("Stored file %s at '%s'", entry.Metadata.Id, change.Path)
	s.publish(ctx, []data.Change{change}, []*data.FileState{state}, nil)
	return nil
}

// OpenWriteStream registers md and returns the exclusive write handle for its
// content. The checks are those of InsertFile; ErrInUse is returned when the
// file already has open handles. The caller must close the stream.
func (s *Storage) OpenWriteStream(ctx context.Context, md *data.FileMetadata, enableOverwrite bool, policy acl.Policy) (io.WriteCloser, error) {
	s.mu.Lock()

	entry, previous, err := s.prepareWriteUnsafe(md, enableOverwrite, policyOrDeny(policy), "open write stream")
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	handle, err := entry.Locks.OpenWrite()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if err := s.writeMetadata(entry.Metadata); err != nil {
		handle.Close()
		s.mu.Unlock()
		return nil, err
	}

	s.relocatedUnsafe(entry, previous)
	s.index.Put(entry)

	change := s.change(data.ChangeStream, entry)
	s.mu.Unlock()

	s.log.Info("Opened write stream for file %s at '%s'", entry.Metadata.Id, change.Path)
	return &writeStream{
		Handle: handle,
		onClose: func() {
			md := s.currentMetadata(entry)
			if md == nil {
				s.log.Debug("Skipping publish of %s, the file was removed or replaced while streaming", entry.Metadata.Id)
				return
			}
			state := &data.FileState{Metadata: md}
			s.publish(context.WithoutCancel(ctx), []data.Change{change}, []*data.FileState{state}, nil)
		},
	}, nil
}

// currentMetadata returns a copy of the indexed metadata while entry still
// owns its content tracker, otherwise nil.
func (s *Storage) currentMetadata(entry *index.Entry) *data.FileMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	current, exists := s.index.Get(entry.Metadata.Id)
	if !exists || current.Locks != entry.Locks {
		return nil
	}
	return current.Metadata.Clone()
}

// UpdateMetadata replaces the metadata of an existing file. When the new
// metadata moves the content to another folder the content is copied to the
// new path and the old path is removed, deferred while readers are open.
func (s *Storage) UpdateMetadata(ctx context.Context, md *data.FileMetadata, policy acl.Policy) error {
	policy = policyOrDeny(policy)

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return data.ErrClosed
	}

	if md == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: metadata is nil", data.ErrInvalid)
	}

	previous, exists := s.index.Get(md.Id)
	if !exists {
		s.mu.Unlock()
		return data.NotExist(md.Id)
	}

	md = md.Clone()
	if md.Created.IsZero() {
		md.Created = previous.Metadata.Created
	}
	if md.LastModified.IsZero() {
		md.LastModified = time.Now().UTC()
	}

	if err := s.validateUnsafe(md); err != nil {
		s.mu.Unlock()
		return err
	}
	if !policy.HasModifyAccessToFile(md) || !policy.HasModifyAccessToFile(previous.Metadata) {
		s.mu.Unlock()
		return data.Unauthorized("update metadata", md.Id)
	}

	entry := &index.Entry{
		Path:     s.contentPath(md),
		Metadata: md,
		Locks:    previous.Locks,
	}

	if entry.Path != previous.Path {
		locks, err := s.moveContentUnsafe(previous, entry.Path)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		entry.Locks = locks
	}

	if err := s.writeMetadata(md); err != nil {
		if entry.Path != previous.Path {
			entry.Locks.Delete()
		}
		s.mu.Unlock()
		return err
	}

	s.relocatedUnsafe(entry, previous)
	s.index.Put(entry)

	change := s.change(data.ChangeUpdate, entry)
	state := &data.FileState{Metadata: md.Clone()}
	s.mu.Unlock()

	s.log.Info("Updated metadata of file %s", md.Id)
	s.publish(ctx, []data.Change{change}, []*data.FileState{state}, nil)
	return nil
}

// DeleteFile removes id and every transitive dependent. Delete access is
// checked on the whole subtree first; when any file is denied nothing is removed.
func (s *Storage) DeleteFile(ctx context.Context, id uuid.UUID, policy acl.Policy) error {
	policy = policyOrDeny(policy)

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return data.ErrClosed
	}

	root, exists := s.index.Get(id)
	if !exists {
		s.mu.Unlock()
		return data.NotExist(id)
	}

	subtree := s.subtreeUnsafe(root)
	for _, entry := range subtree {
		if !policy.HasDeleteAccessToFile(entry.Metadata) {
			s.mu.Unlock()
			return data.Unauthorized("delete", entry.Metadata.Id)
		}
	}

	changes := make([]data.Change, 0, len(subtree))
	removed := make([]uuid.UUID, 0, len(subtree))
	for _, entry := range subtree {
		if err := s.deleteEntryUnsafe(entry); err != nil {
			s.mu.Unlock()
			s.publish(ctx, changes, nil, removed)
			return err
		}
		changes = append(changes, s.change(data.ChangeDelete, entry))
		removed = append(removed, entry.Metadata.Id)
	}
	s.mu.Unlock()

	s.log.Info("Deleted file %s with %d dependents", id, len(subtree)-1)
	s.publish(ctx, changes, nil, removed)
	return nil
}

// prepareWriteUnsafe runs every check shared by InsertFile and OpenWriteStream
// and returns the entry to store together with the entry it replaces.
// MUST be called while holding s.mu for writing.
func (s *Storage) prepareWriteUnsafe(md *data.FileMetadata, enableOverwrite bool, policy acl.Policy, operation string) (*index.Entry, *index.Entry, error) {
	if s.closed {
		return nil, nil, data.ErrClosed
	}
	if md == nil {
		return nil, nil, fmt.Errorf("%w: metadata is nil", data.ErrInvalid)
	}

	md = md.Clone()
	if md.Created.IsZero() {
		md.Created = time.Now().UTC()
	}
	if md.LastModified.IsZero() {
		md.LastModified = md.Created
	}

	if err := s.validateUnsafe(md); err != nil {
		return nil, nil, err
	}
	if !policy.HasModifyAccessToFile(md) {
		return nil, nil, data.Unauthorized(operation, md.Id)
	}

	entry := &index.Entry{
		Path:     s.contentPath(md),
		Metadata: md,
	}

	previous, exists := s.index.Get(md.Id)
	if exists {
		if !policy.HasModifyAccessToFile(previous.Metadata) {
			return nil, nil, data.Unauthorized(operation, md.Id)
		}
		if !enableOverwrite {
			return nil, nil, fmt.Errorf("%w: %s", data.ErrExist, md.Id)
		}
		if !previous.Locks.CanBeWritten() {
			return nil, nil, fmt.Errorf("%w: %s has open stream handles", data.ErrInUse, md.Id)
		}
	}

	entry.Locks = s.locks.Get(entry.Path)
	if entry.Locks.IsPendingDelete() {
		return nil, nil, fmt.Errorf("%w: '%s' is still open and pending removal", data.ErrInUse, s.relative(entry.Path))
	}
	if !exists && !enableOverwrite {
		if fileExists(entry.Path) || fileExists(s.metadataPath(md.Id)) {
			return nil, nil, fmt.Errorf("%w: %s exists on disk", data.ErrExist, md.Id)
		}
	}
	if !entry.Locks.CanBeWritten() {
		return nil, nil, fmt.Errorf("%w: '%s' has open stream handles", data.ErrInUse, s.relative(entry.Path))
	}

	return entry, previous, nil
}

// validateUnsafe MUST be called while holding s.mu.
func (s *Storage) validateUnsafe(md *data.FileMetadata) error {
	if err := md.Validate(); err != nil {
		return err
	}
	return s.checkParentUnsafe(md)
}

// moveContentUnsafe copies the content of previous to path and removes the
// old content. The old file must be fully readable.
// MUST be called while holding s.mu for writing.
func (s *Storage) moveContentUnsafe(previous *index.Entry, path string) (*lock.StreamLocks, error) {
	if !previous.Locks.CanBeRead() {
		return nil, fmt.Errorf("%w: %s is not readable for relocation", data.ErrInUse, previous.Metadata.Id)
	}

	target := s.locks.Get(path)
	if !target.CanBeWritten() {
		return nil, fmt.Errorf("%w: '%s' has open stream handles", data.ErrInUse, s.relative(path))
	}

	r, err := previous.Locks.OpenRead()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	w, err := target.OpenWrite()
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		target.Delete()
		return nil, fmt.Errorf("failed to relocate content of %s: %w", previous.Metadata.Id, err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	s.log.Debug("Relocated content of %s from '%s' to '%s'",
		previous.Metadata.Id, s.relative(previous.Path), s.relative(path))
	return target, nil
}

// relocatedUnsafe removes the old content once the entry moved to a new path.
// MUST be called while holding s.mu for writing.
func (s *Storage) relocatedUnsafe(entry, previous *index.Entry) {
	if previous == nil || previous.Path == entry.Path {
		return
	}

	deferred, err := previous.Locks.Delete()
	if err != nil {
		s.log.Warn("Failed to remove old content '%s' of %s: %v", s.relative(previous.Path), entry.Metadata.Id, err)
		return
	}
	if deferred {
		s.log.Warn("Removal of old content '%s' deferred until open handles are closed", s.relative(previous.Path))
	}
}

// rollbackMetadataUnsafe restores the sidecar after a failed content write.
// MUST be called while holding s.mu for writing.
func (s *Storage) rollbackMetadataUnsafe(entry, previous *index.Entry) {
	var err error
	if previous != nil {
		err = s.writeMetadata(previous.Metadata)
	} else {
		err = s.removeMetadata(entry.Metadata.Id)
	}
	if err != nil {
		s.log.Error("Failed to roll back metadata of %s: %v", entry.Metadata.Id, err)
	}
}

// deleteEntryUnsafe removes sidecar, content and index entry of one file.
// MUST be called while holding s.mu for writing.
func (s *Storage) deleteEntryUnsafe(entry *index.Entry) error {
	if err := s.removeMetadata(entry.Metadata.Id); err != nil {
		return err
	}

	deferred, err := entry.Locks.Delete()
	if err != nil {
		return fmt.Errorf("failed to remove content of %s: %w", entry.Metadata.Id, err)
	}
	if deferred {
		s.log.Warn("Removal of '%s' deferred until open handles are closed", s.relative(entry.Path))
	}

	s.index.Remove(entry.Metadata.Id)
	return nil
}

func (s *Storage) change(action data.ChangeAction, entry *index.Entry) data.Change {
	return data.Change{
		Time:      time.Now().UTC(),
		Action:    action,
		Id:        entry.Metadata.Id,
		Type:      entry.Metadata.Type,
		Publisher: entry.Metadata.Publisher,
		Path:      s.relative(entry.Path),
	}
}

// publish forwards mutations to the change recorder and the full-text index.
// Failures are logged only.
func (s *Storage) publish(ctx context.Context, changes []data.Change, indexed []*data.FileState, removed []uuid.UUID) {
	if s.recorder != nil {
		for _, change := range changes {
			if err := s.recorder.Record(ctx, change); err != nil {
				s.log.Warn("Failed to record %s of %s: %v", change.Action, change.Id, err)
			}
		}
	}

	if s.indexer == nil {
		return
	}
	if len(indexed) > 0 {
		if err := s.indexer.Index(ctx, indexed...); err != nil {
			s.log.Warn("Failed to update full-text index: %v", err)
		}
	}
	if len(removed) > 0 {
		if err := s.indexer.RemoveFromIndex(ctx, removed...); err != nil {
			s.log.Warn("Failed to remove %d files from full-text index: %v", len(removed), err)
		}
	}
}

func writeContent(locks *lock.StreamLocks, content string) error {
	w, err := locks.OpenWrite()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, content); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// writeStream notifies the storage once the content has been written.
type writeStream struct {
	*lock.Handle
	onClose func()
}

func (w *writeStream) Close() error {
	if err := w.Handle.Close(); err != nil {
		return err
	}
	w.onClose()
	return nil
}
