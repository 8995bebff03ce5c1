package docstore

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/mwantia/docstore/acl"
	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/index"
)

// GetFileStates returns one page of the files matching q that are readable
// under policy, the unpaged total count and the requested facet histograms.
// Empty results are not an error.
func (s *Storage) GetFileStates(ctx context.Context, q *data.FileStorageQuery, policy acl.Policy) (*data.FileStorageResponse, error) {
	if q == nil {
		q = &data.FileStorageQuery{}
	}
	policy = policyOrDeny(policy)

	sorter, err := newSorter(q.OrderDefinitions, q.Language)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.relevantEntriesUnsafe(q, policy, "")
	if q.IsRelevanceByIds() {
		sortByIds(entries, q.OnlyIds, entryMetadata)
	} else {
		sortMetadata(entries, sorter, entryMetadata)
	}

	response := &data.FileStorageResponse{
		Files:      make([]*data.FileState, 0),
		TotalCount: len(entries),
		Facets:     s.facetsUnsafe(q, policy),
	}

	for _, entry := range page(entries, q.SkipResults, q.MaxResults) {
		state, err := s.fileStateUnsafe(entry, policy, q.IncludeDependentFiles)
		if err != nil {
			return nil, err
		}
		response.Files = append(response.Files, state)
	}

	s.log.Debug("Query matched %d files, returning %d", response.TotalCount, len(response.Files))
	return response, nil
}

// GetFileMetadata returns a copy of the metadata of id, or nil when the file
// does not exist or is not readable under policy.
func (s *Storage) GetFileMetadata(ctx context.Context, id uuid.UUID, policy acl.Policy) *data.FileMetadata {
	policy = policyOrDeny(policy)

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.index.Get(id)
	if !exists || !policy.HasReadAccessToFile(entry.Metadata) {
		return nil
	}
	return entry.Metadata.Clone()
}

// GetFileState returns metadata and content of id. Absent and forbidden files
// both yield nil without error.
func (s *Storage) GetFileState(ctx context.Context, id uuid.UUID, policy acl.Policy) (*data.FileState, error) {
	policy = policyOrDeny(policy)

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.index.Get(id)
	if !exists || !policy.HasReadAccessToFile(entry.Metadata) {
		return nil, nil
	}
	return s.fileStateUnsafe(entry, policy, false)
}

// OpenReadStream opens a shared read handle on the content of id. Returns nil
// without error when the file is absent, forbidden or held by a writer.
// The caller must close the returned stream.
func (s *Storage) OpenReadStream(ctx context.Context, id uuid.UUID, policy acl.Policy) (io.ReadCloser, error) {
	policy = policyOrDeny(policy)

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.index.Get(id)
	if !exists || !policy.HasReadAccessToFile(entry.Metadata) {
		return nil, nil
	}

	handle, err := entry.Locks.OpenRead()
	if err != nil {
		if errors.Is(err, data.ErrInUse) || errors.Is(err, data.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return handle, nil
}

func entryMetadata(entry *index.Entry) *data.FileMetadata {
	return entry.Metadata
}
