package index

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"

	"github.com/mwantia/docstore/data"
)

// Select returns the ordinals matching every filter dimension of q.
// Within a dimension the per-value sets are unioned, across dimensions they
// are intersected, starting from the full set when no dimension is active.
// ExcludeIds is subtracted last.
//
// skipFacet names a facet whose own filter is ignored; it is used to compute
// facet counts "as if this filter were not applied". Pass "" to apply all.
//
// Access policy and OnlyPublished are not evaluated here.
func (idx *Index) Select(q *data.FileStorageQuery, skipFacet string) *roaring.Bitmap {
	dimensions := make([]*roaring.Bitmap, 0, 6)

	if q.OnlyPublishers != nil && skipFacet != data.FacetPublishers {
		dimensions = append(dimensions, idx.union(kindPublisher, "", q.OnlyPublishers))
	}
	if q.OnlyTypes != nil {
		values := make([]string, 0, len(q.OnlyTypes))
		for _, fileType := range q.OnlyTypes {
			values = append(values, fileType.String())
		}
		dimensions = append(dimensions, idx.union(kindType, "", values))
	}
	if q.OnlyLanguages != nil {
		dimensions = append(dimensions, idx.union(kindLanguage, "", q.OnlyLanguages))
	}
	if q.ParentFile != nil {
		dimensions = append(dimensions, idx.union(kindParent, "", []string{q.ParentFile.String()}))
	}
	if q.OnlyIds != nil {
		dimensions = append(dimensions, idx.ordinalSet(q.OnlyIds))
	}
	for key, values := range q.AdditionalFilters {
		if key == skipFacet {
			continue
		}
		if key == data.FacetPublishers {
			dimensions = append(dimensions, idx.union(kindPublisher, "", values))
			continue
		}
		dimensions = append(dimensions, idx.union(kindFacet, key, values))
	}

	var result *roaring.Bitmap
	if len(dimensions) == 0 {
		result = idx.all.Clone()
	} else {
		result = roaring.FastAnd(dimensions...)
	}

	if len(q.ExcludeIds) > 0 {
		result.AndNot(idx.ordinalSet(q.ExcludeIds))
	}
	return result
}

func (idx *Index) ordinalSet(ids []uuid.UUID) *roaring.Bitmap {
	bm := roaring.New()
	for _, id := range ids {
		if ord, exists := idx.ordinals.Get(id.String()); exists {
			bm.Add(ord)
		}
	}
	return bm
}

func (idx *Index) union(k kind, key string, values []string) *roaring.Bitmap {
	sets := make([]*roaring.Bitmap, 0, len(values))
	for _, value := range values {
		if bm, exists := idx.postings[term{kind: k, key: key, value: value}]; exists {
			sets = append(sets, bm)
		}
	}
	if len(sets) == 0 {
		return roaring.New()
	}
	return roaring.FastOr(sets...)
}
