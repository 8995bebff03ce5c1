package data

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FacetPublishers is the reserved facet key counting files per publisher.
const FacetPublishers = "publishers"

// OrderProperty selects the value a query result is sorted by.
type OrderProperty int

const (
	OrderByCreated OrderProperty = iota
	OrderByLastModified
	OrderByName
	OrderByRelevance
)

var orderPropertyNames = map[OrderProperty]string{
	OrderByCreated:      "created",
	OrderByLastModified: "last_modified",
	OrderByName:         "name",
	OrderByRelevance:    "relevance",
}

func (p OrderProperty) String() string {
	if name, ok := orderPropertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("OrderProperty(%d)", int(p))
}

// IsValid reports whether p is one of the declared order properties.
func (p OrderProperty) IsValid() bool {
	_, ok := orderPropertyNames[p]
	return ok
}

// ParseOrderProperty resolves an order property name, case-insensitive.
func ParseOrderProperty(name string) (OrderProperty, error) {
	for p, n := range orderPropertyNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: '%s'", ErrUnsupportedOrder, name)
}

func (p OrderProperty) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *OrderProperty) UnmarshalText(b []byte) error {
	parsed, err := ParseOrderProperty(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// OrderDefinition is one sort clause; later clauses break ties of earlier ones.
type OrderDefinition struct {
	Property     OrderProperty `json:"property"`
	ReverseOrder bool          `json:"reverse_order"`
}

// FileStorageQuery selects, orders and pages files. A nil slice means
// "no filter on this dimension"; an empty non-nil slice matches nothing.
type FileStorageQuery struct {
	OnlyTypes         []FileType          `json:"only_types,omitempty"`
	OnlyPublishers    []string            `json:"only_publishers,omitempty"`
	OnlyIds           []uuid.UUID         `json:"only_ids,omitempty"`
	ExcludeIds        []uuid.UUID         `json:"exclude_ids,omitempty"`
	OnlyLanguages     []string            `json:"only_languages,omitempty"`
	ParentFile        *uuid.UUID          `json:"parent_file,omitempty"`
	AdditionalFilters map[string][]string `json:"additional_filters,omitempty"`
	RequiredFacets    []string            `json:"required_facets,omitempty"`

	OnlyPublished bool   `json:"only_published"`
	QueryText     string `json:"query_text,omitempty"`
	Language      string `json:"language,omitempty"`

	OrderDefinitions []OrderDefinition `json:"order_definitions,omitempty"`

	SkipResults int `json:"skip_results"`
	// MaxResults limits the page size; zero or negative means unlimited.
	MaxResults int `json:"max_results"`

	IncludeDependentFiles bool `json:"include_dependent_files"`
}

// Clone returns a copy that can be modified without affecting q.
func (q *FileStorageQuery) Clone() *FileStorageQuery {
	c := *q
	c.OnlyTypes = cloneSlice(q.OnlyTypes)
	c.OnlyPublishers = cloneSlice(q.OnlyPublishers)
	c.OnlyIds = cloneSlice(q.OnlyIds)
	c.ExcludeIds = cloneSlice(q.ExcludeIds)
	c.OnlyLanguages = cloneSlice(q.OnlyLanguages)
	c.RequiredFacets = cloneSlice(q.RequiredFacets)
	c.OrderDefinitions = cloneSlice(q.OrderDefinitions)
	if q.ParentFile != nil {
		parent := *q.ParentFile
		c.ParentFile = &parent
	}
	if q.AdditionalFilters != nil {
		c.AdditionalFilters = make(map[string][]string, len(q.AdditionalFilters))
		for key, values := range q.AdditionalFilters {
			c.AdditionalFilters[key] = cloneSlice(values)
		}
	}
	return &c
}

// IsRelevanceByIds reports whether results must follow the order of OnlyIds.
func (q *FileStorageQuery) IsRelevanceByIds() bool {
	return q.OnlyIds != nil &&
		len(q.OrderDefinitions) == 1 &&
		q.OrderDefinitions[0].Property == OrderByRelevance &&
		!q.OrderDefinitions[0].ReverseOrder
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// Facet is the value histogram of one facet key.
type Facet struct {
	Id     string         `json:"id"`
	Values map[string]int `json:"values"`
}

// FileStorageResponse is one page of query results.
type FileStorageResponse struct {
	Files      []*FileState `json:"files"`
	TotalCount int          `json:"total_count"`
	Facets     []Facet      `json:"facets,omitempty"`
}

// FileStorageGroup aggregates the datasets of one publisher.
type FileStorageGroup struct {
	PublisherId        string     `json:"publisher_id"`
	PublisherFileState *FileState `json:"publisher_file_state,omitempty"`
	Count              int        `json:"count"`
	// Facets holds per-publisher histograms for every required facet.
	Facets map[string]map[string]int `json:"facets,omitempty"`
}

// FileStorageGroupResponse is the publisher aggregation view.
type FileStorageGroupResponse struct {
	Groups     []*FileStorageGroup `json:"groups"`
	TotalCount int                 `json:"total_count"`
}
