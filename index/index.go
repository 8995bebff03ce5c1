// Package index holds the in-memory secondary index of the storage engine.
//
// Every entry receives a small ordinal; each filterable dimension keeps a
// roaring bitmap of ordinals per value so query filters reduce to bitmap
// unions and intersections. The index is derived data and can be rebuilt
// from the metadata sidecars at any time.
//
// The index is not safe for concurrent use. The storage engine guards it
// with its reader/writer lock; every method MUST be called while holding
// that lock (read lock for lookups, write lock for mutations).
package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/lock"
)

// Entry pairs the on-disk content path of a file with its metadata and lock tracker.
type Entry struct {
	Path     string
	Metadata *data.FileMetadata
	Locks    *lock.StreamLocks
}

type kind uint8

const (
	kindPublisher kind = iota
	kindType
	kindLanguage
	kindParent
	kindFacet
)

// term addresses one posting list: a dimension, an optional facet key and a value.
type term struct {
	kind  kind
	key   string
	value string
}

type Index struct {
	// Layer 1: id -> ordinal, ordered by id for deterministic scans
	ordinals *btree.Map[string, uint32]
	// Layer 2: ordinal -> entry
	entries map[uint32]*Entry
	// Layer 3: master set and posting lists
	all      *roaring.Bitmap
	postings map[term]*roaring.Bitmap

	next uint32
}

func New() *Index {
	return &Index{
		ordinals: btree.NewMap[string, uint32](0),
		entries:  make(map[uint32]*Entry),
		all:      roaring.New(),
		postings: make(map[term]*roaring.Bitmap),
	}
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Clear drops every entry and posting list.
func (idx *Index) Clear() {
	idx.ordinals = btree.NewMap[string, uint32](0)
	idx.entries = make(map[uint32]*Entry)
	idx.all = roaring.New()
	idx.postings = make(map[term]*roaring.Bitmap)
	idx.next = 0
}

// Contains reports whether id is indexed.
func (idx *Index) Contains(id uuid.UUID) bool {
	_, exists := idx.ordinals.Get(id.String())
	return exists
}

// Get returns the entry of id.
func (idx *Index) Get(id uuid.UUID) (*Entry, bool) {
	ord, exists := idx.ordinals.Get(id.String())
	if !exists {
		return nil, false
	}
	return idx.entries[ord], true
}

// Put inserts or replaces the entry for its metadata id. All posting lists
// of a replaced entry are updated in the same call. Returns the replaced entry.
func (idx *Index) Put(entry *Entry) *Entry {
	key := entry.Metadata.Id.String()

	ord, exists := idx.ordinals.Get(key)
	var previous *Entry
	if exists {
		previous = idx.entries[ord]
		idx.unlink(ord, previous.Metadata)
	} else {
		ord = idx.next
		idx.next++
		idx.ordinals.Set(key, ord)
	}

	idx.entries[ord] = entry
	idx.all.Add(ord)
	idx.link(ord, entry.Metadata)

	return previous
}

// Remove drops id from the index and returns its entry.
func (idx *Index) Remove(id uuid.UUID) (*Entry, bool) {
	ord, exists := idx.ordinals.Delete(id.String())
	if !exists {
		return nil, false
	}

	entry := idx.entries[ord]
	idx.unlink(ord, entry.Metadata)
	idx.all.Remove(ord)
	delete(idx.entries, ord)

	return entry, true
}

// Dependents returns the entries whose ParentFile is id, ordered by id.
func (idx *Index) Dependents(id uuid.UUID) []*Entry {
	bm, exists := idx.postings[term{kind: kindParent, value: id.String()}]
	if !exists {
		return nil
	}
	return idx.Resolve(bm)
}

// CountByType returns the number of entries of the given type.
func (idx *Index) CountByType(fileType data.FileType) int {
	bm, exists := idx.postings[term{kind: kindType, value: fileType.String()}]
	if !exists {
		return 0
	}
	return int(bm.GetCardinality())
}

// Scan calls fn for every entry ordered by id until fn returns false.
func (idx *Index) Scan(fn func(entry *Entry) bool) {
	idx.ordinals.Scan(func(_ string, ord uint32) bool {
		return fn(idx.entries[ord])
	})
}

// Each calls fn for every entry in bm in ordinal order until fn returns false.
func (idx *Index) Each(bm *roaring.Bitmap, fn func(entry *Entry) bool) {
	it := bm.Iterator()
	for it.HasNext() {
		entry, exists := idx.entries[it.Next()]
		if !exists {
			continue
		}
		if !fn(entry) {
			return
		}
	}
}

// Resolve maps a set of ordinals to entries, ordered by id.
func (idx *Index) Resolve(bm *roaring.Bitmap) []*Entry {
	entries := make([]*Entry, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		if entry, exists := idx.entries[it.Next()]; exists {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Metadata.Id.String() < entries[j].Metadata.Id.String()
	})
	return entries
}

// Orphans returns the ids of entries whose ParentFile is not indexed.
func (idx *Index) Orphans() []uuid.UUID {
	orphans := make([]uuid.UUID, 0)
	idx.Scan(func(entry *Entry) bool {
		if parent := entry.Metadata.ParentFile; parent != nil && !idx.Contains(*parent) {
			orphans = append(orphans, entry.Metadata.Id)
		}
		return true
	})
	return orphans
}

func (idx *Index) terms(meta *data.FileMetadata) []term {
	terms := []term{
		{kind: kindType, value: meta.Type.String()},
	}
	if meta.HasPublisher() {
		terms = append(terms, term{kind: kindPublisher, value: meta.Publisher})
	}
	if meta.ParentFile != nil {
		terms = append(terms, term{kind: kindParent, value: meta.ParentFile.String()})
	}
	for _, lang := range meta.Languages() {
		terms = append(terms, term{kind: kindLanguage, value: lang})
	}
	for key, values := range meta.AdditionalValues {
		for _, value := range values {
			terms = append(terms, term{kind: kindFacet, key: key, value: value})
		}
	}
	return terms
}

func (idx *Index) link(ord uint32, meta *data.FileMetadata) {
	for _, t := range idx.terms(meta) {
		bm, exists := idx.postings[t]
		if !exists {
			bm = roaring.New()
			idx.postings[t] = bm
		}
		bm.Add(ord)
	}
}

func (idx *Index) unlink(ord uint32, meta *data.FileMetadata) {
	for _, t := range idx.terms(meta) {
		bm, exists := idx.postings[t]
		if !exists {
			continue
		}
		bm.Remove(ord)
		if bm.IsEmpty() {
			delete(idx.postings, t)
		}
	}
}
