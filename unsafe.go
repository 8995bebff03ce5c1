package docstore

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"

	"github.com/mwantia/docstore/acl"
	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/index"
)

// policyOrDeny treats a missing policy as one granting nothing.
func policyOrDeny(policy acl.Policy) acl.Policy {
	if policy == nil {
		return acl.DenyAll{}
	}
	return policy
}

// visible reports whether the per-entry filters accept md.
func visible(md *data.FileMetadata, q *data.FileStorageQuery, policy acl.Policy) bool {
	if q.OnlyPublished && !md.IsPublished() {
		return false
	}
	return policy.HasReadAccessToFile(md)
}

// relevantEntriesUnsafe applies the set filters of q and then the per-entry
// policy and published filters. skipFacet is passed through to the index.
// MUST be called while holding s.mu.
func (s *Storage) relevantEntriesUnsafe(q *data.FileStorageQuery, policy acl.Policy, skipFacet string) []*index.Entry {
	entries := make([]*index.Entry, 0)
	s.index.Each(s.index.Select(q, skipFacet), func(entry *index.Entry) bool {
		if visible(entry.Metadata, q, policy) {
			entries = append(entries, entry)
		}
		return true
	})
	return entries
}

// facetsUnsafe counts every requested facet over the entries matching all
// other filters. Each entry counts once per distinct value.
// MUST be called while holding s.mu.
func (s *Storage) facetsUnsafe(q *data.FileStorageQuery, policy acl.Policy) []data.Facet {
	if len(q.RequiredFacets) == 0 {
		return nil
	}

	facets := make([]data.Facet, 0, len(q.RequiredFacets))
	for _, key := range q.RequiredFacets {
		facet := data.Facet{
			Id:     key,
			Values: make(map[string]int),
		}
		for _, entry := range s.relevantEntriesUnsafe(q, policy, key) {
			countValues(facet.Values, entry.Metadata.Values(key))
		}
		facets = append(facets, facet)
	}
	return facets
}

func countValues(counts map[string]int, values []string) {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		counts[value]++
	}
}

// fileStateUnsafe builds the state of entry. Dependents are hydrated one
// level deep and filtered by policy.
// MUST be called while holding s.mu.
func (s *Storage) fileStateUnsafe(entry *index.Entry, policy acl.Policy, includeDependents bool) (*data.FileState, error) {
	content, err := s.readContentUnsafe(entry)
	if err != nil {
		return nil, err
	}

	state := &data.FileState{
		Metadata: entry.Metadata.Clone(),
		Content:  content,
	}

	if includeDependents {
		for _, dependent := range s.index.Dependents(entry.Metadata.Id) {
			if !policy.HasReadAccessToFile(dependent.Metadata) {
				continue
			}
			child, err := s.fileStateUnsafe(dependent, policy, false)
			if err != nil {
				return nil, err
			}
			state.DependentFiles = append(state.DependentFiles, child)
		}
	}

	return state, nil
}

// readContentUnsafe returns nil content when the file exceeds the inline
// ceiling or is currently not readable.
// MUST be called while holding s.mu.
func (s *Storage) readContentUnsafe(entry *index.Entry) (*string, error) {
	if !entry.Locks.CanBeRead() {
		return nil, nil
	}

	handle, err := entry.Locks.OpenRead()
	if err != nil {
		if errors.Is(err, data.ErrInUse) || errors.Is(err, data.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer handle.Close()

	if s.maxInlineSize > 0 {
		size, err := handle.Size()
		if err != nil {
			return nil, err
		}
		if size > s.maxInlineSize {
			return nil, nil
		}
	}

	b, err := io.ReadAll(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to read content of %s: %w", entry.Metadata.Id, err)
	}

	content := string(b)
	return &content, nil
}

// checkParentUnsafe verifies that the parent of md is indexed and that the
// parent chain does not lead back to md.
// MUST be called while holding s.mu.
func (s *Storage) checkParentUnsafe(md *data.FileMetadata) error {
	if md.ParentFile == nil {
		return nil
	}

	visited := make(map[uuid.UUID]struct{})
	current := *md.ParentFile
	for {
		if current == md.Id {
			return fmt.Errorf("%w: parent chain of %s forms a cycle", data.ErrInvalid, md.Id)
		}
		if _, seen := visited[current]; seen {
			return fmt.Errorf("%w: parent chain of %s forms a cycle", data.ErrInvalid, md.Id)
		}
		visited[current] = struct{}{}

		parent, exists := s.index.Get(current)
		if !exists {
			if current == *md.ParentFile {
				return fmt.Errorf("%w: %s", data.ErrParentNotExist, current)
			}
			return nil
		}
		if parent.Metadata.ParentFile == nil {
			return nil
		}
		current = *parent.Metadata.ParentFile
	}
}

// subtreeUnsafe returns id and all of its transitive dependents, leaves first.
// MUST be called while holding s.mu.
func (s *Storage) subtreeUnsafe(entry *index.Entry) []*index.Entry {
	result := make([]*index.Entry, 0)
	visited := make(map[uuid.UUID]struct{})

	var walk func(e *index.Entry)
	walk = func(e *index.Entry) {
		if _, seen := visited[e.Metadata.Id]; seen {
			return
		}
		visited[e.Metadata.Id] = struct{}{}

		for _, dependent := range s.index.Dependents(e.Metadata.Id) {
			walk(dependent)
		}
		result = append(result, e)
	}
	walk(entry)

	return slices.Clip(result)
}
