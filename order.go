package docstore

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mwantia/docstore/data"
)

// defaultOrder is used when a query carries no order definitions.
var defaultOrder = []data.OrderDefinition{
	{Property: data.OrderByLastModified, ReverseOrder: true},
}

// sorter compares metadata along a list of order definitions. Ties left by
// every definition are broken by id.
type sorter struct {
	orders   []data.OrderDefinition
	language string
	collator *collate.Collator
	// relevance ranks entries for OrderByRelevance; LastModified is used when nil.
	relevance func(md *data.FileMetadata) int
}

func newSorter(orders []data.OrderDefinition, lang string) (*sorter, error) {
	if len(orders) == 0 {
		orders = defaultOrder
	}

	for _, order := range orders {
		if !order.Property.IsValid() {
			return nil, fmt.Errorf("%w: %s", data.ErrUnsupportedOrder, order.Property)
		}
	}

	tag := language.Und
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			tag = parsed
		}
	}

	return &sorter{
		orders:   orders,
		language: lang,
		collator: collate.New(tag, collate.IgnoreCase),
	}, nil
}

func (s *sorter) compare(a, b *data.FileMetadata) int {
	for _, order := range s.orders {
		var c int
		switch order.Property {
		case data.OrderByCreated:
			c = a.Created.Compare(b.Created)
		case data.OrderByLastModified:
			c = a.LastModified.Compare(b.LastModified)
		case data.OrderByName:
			c = s.collator.CompareString(a.GetName(s.language), b.GetName(s.language))
		case data.OrderByRelevance:
			if s.relevance != nil {
				c = cmp.Compare(s.relevance(a), s.relevance(b))
			} else {
				c = a.LastModified.Compare(b.LastModified)
			}
		}

		if order.ReverseOrder {
			c = -c
		}
		if c != 0 {
			return c
		}
	}

	return cmp.Compare(a.Id.String(), b.Id.String())
}

func sortMetadata[T any](items []T, s *sorter, metadata func(T) *data.FileMetadata) {
	slices.SortStableFunc(items, func(a, b T) int {
		return s.compare(metadata(a), metadata(b))
	})
}

// sortByIds orders items along ids; items not listed go last.
func sortByIds[T any](items []T, ids []uuid.UUID, metadata func(T) *data.FileMetadata) {
	positions := make(map[uuid.UUID]int, len(ids))
	for i, id := range ids {
		if _, exists := positions[id]; !exists {
			positions[id] = i
		}
	}

	position := func(item T) int {
		if p, exists := positions[metadata(item).Id]; exists {
			return p
		}
		return len(ids)
	}

	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(position(a), position(b))
	})
}

// page applies skip and take; take <= 0 returns everything after skip.
func page[T any](items []T, skip, take int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return items[:0]
	}
	items = items[skip:]
	if take > 0 && take < len(items) {
		items = items[:take]
	}
	return items
}
