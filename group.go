package docstore

import (
	"context"
	"slices"

	"github.com/mwantia/docstore/acl"
	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/index"
)

// GetFileStatesByPublisher groups dataset registrations by publisher.
//
// One pass over the datasets matching the additional filters of q counts
// datasets and required facet values per publisher. The publisher
// registrations matching q then receive these counts by publisher key.
// Groups are ordered by dataset count and name unless q carries its own
// ordering, in which case relevance means dataset count. Results are not
// paged when q carries a free-text query.
func (s *Storage) GetFileStatesByPublisher(ctx context.Context, q *data.FileStorageQuery, policy acl.Policy) (*data.FileStorageGroupResponse, error) {
	if q == nil {
		q = &data.FileStorageQuery{}
	}
	policy = policyOrDeny(policy)

	orders := q.OrderDefinitions
	if len(orders) == 0 {
		orders = []data.OrderDefinition{
			{Property: data.OrderByRelevance, ReverseOrder: true},
			{Property: data.OrderByName},
		}
	}
	sorter, err := newSorter(orders, q.Language)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	datasets := &data.FileStorageQuery{
		OnlyTypes:         []data.FileType{data.FileTypeDatasetRegistration},
		AdditionalFilters: q.AdditionalFilters,
		OnlyPublished:     q.OnlyPublished,
	}

	counts := make(map[string]int)
	histograms := make(map[string]map[string]map[string]int)
	for _, entry := range s.relevantEntriesUnsafe(datasets, policy, "") {
		publisher := entry.Metadata.Publisher
		if publisher == "" {
			continue
		}
		counts[publisher]++

		if len(q.RequiredFacets) == 0 {
			continue
		}
		facets, exists := histograms[publisher]
		if !exists {
			facets = make(map[string]map[string]int, len(q.RequiredFacets))
			for _, key := range q.RequiredFacets {
				facets[key] = make(map[string]int)
			}
			histograms[publisher] = facets
		}
		for _, key := range q.RequiredFacets {
			countValues(facets[key], entry.Metadata.Values(key))
		}
	}

	publishers := q.Clone()
	publishers.OnlyTypes = []data.FileType{data.FileTypePublisherRegistration}
	publishers.AdditionalFilters = nil

	entries := s.relevantEntriesUnsafe(publishers, policy, "")
	if len(q.AdditionalFilters) > 0 {
		entries = slices.DeleteFunc(entries, func(entry *index.Entry) bool {
			return counts[entry.Metadata.Publisher] == 0
		})
	}

	if q.IsRelevanceByIds() {
		sortByIds(entries, q.OnlyIds, entryMetadata)
	} else {
		sorter.relevance = func(md *data.FileMetadata) int {
			return counts[md.Publisher]
		}
		sortMetadata(entries, sorter, entryMetadata)
	}

	response := &data.FileStorageGroupResponse{
		Groups:     make([]*data.FileStorageGroup, 0),
		TotalCount: len(entries),
	}

	if q.QueryText == "" {
		entries = page(entries, q.SkipResults, q.MaxResults)
	}

	for _, entry := range entries {
		state, err := s.fileStateUnsafe(entry, policy, q.IncludeDependentFiles)
		if err != nil {
			return nil, err
		}

		group := &data.FileStorageGroup{
			PublisherId:        entry.Metadata.Publisher,
			PublisherFileState: state,
			Count:              counts[entry.Metadata.Publisher],
		}
		if len(q.RequiredFacets) > 0 {
			group.Facets = histograms[entry.Metadata.Publisher]
			if group.Facets == nil {
				group.Facets = emptyHistograms(q.RequiredFacets)
			}
		}
		response.Groups = append(response.Groups, group)
	}

	return response, nil
}

func emptyHistograms(keys []string) map[string]map[string]int {
	facets := make(map[string]map[string]int, len(keys))
	for _, key := range keys {
		facets[key] = make(map[string]int)
	}
	return facets
}
