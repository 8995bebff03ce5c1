package data

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// FileMetadata describes one stored file. It is persisted as the
// sidecar of the file and is the source every index structure is derived from.
type FileMetadata struct {
	Id          uuid.UUID  `json:"id" validate:"required"`
	Type        FileType   `json:"type"`
	ParentFile  *uuid.UUID `json:"parent_file,omitempty"`
	Publisher   string     `json:"publisher,omitempty"`
	IsPublic    bool       `json:"is_public"`
	IsHarvested bool       `json:"is_harvested"`

	// Name maps a language code to the display name in that language.
	Name map[string]string `json:"name,omitempty" validate:"dive,keys,required,endkeys"`
	// AdditionalValues holds facet values keyed by facet name, e.g. "themes".
	AdditionalValues map[string][]string `json:"additional_values,omitempty" validate:"dive,keys,required,endkeys"`

	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

// NewFileMetadata creates metadata with a fresh id and both timestamps set to now.
func NewFileMetadata(fileType FileType, publisher string) *FileMetadata {
	now := time.Now().UTC()
	return &FileMetadata{
		Id:               uuid.New(),
		Type:             fileType,
		Publisher:        publisher,
		Name:             make(map[string]string),
		AdditionalValues: make(map[string][]string),
		Created:          now,
		LastModified:     now,
	}
}

// Validate checks the structural invariants that do not depend on other files.
func (m *FileMetadata) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: metadata is nil", ErrInvalid)
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: unknown file type %d", ErrInvalid, int(m.Type))
	}
	if m.ParentFile != nil && *m.ParentFile == m.Id {
		return fmt.Errorf("%w: file %s references itself as parent", ErrInvalid, m.Id)
	}
	return nil
}

// HasPublisher reports whether the file is owned by a publisher.
func (m *FileMetadata) HasPublisher() bool {
	return m.Publisher != ""
}

// IsPublished reports whether the file is visible to anonymous readers.
func (m *FileMetadata) IsPublished() bool {
	return m.IsPublic
}

// GetName returns the display name in the requested language. When no name
// exists in that language the first non-empty name by language code is used.
func (m *FileMetadata) GetName(language string) string {
	if name := m.Name[language]; name != "" {
		return name
	}

	languages := slices.Collect(maps.Keys(m.Name))
	sort.Strings(languages)
	for _, lang := range languages {
		if name := m.Name[lang]; name != "" {
			return name
		}
	}
	return ""
}

// Languages returns the language codes having a non-empty name.
func (m *FileMetadata) Languages() []string {
	languages := make([]string, 0, len(m.Name))
	for lang, name := range m.Name {
		if name != "" {
			languages = append(languages, lang)
		}
	}
	sort.Strings(languages)
	return languages
}

// Values returns the facet values stored under key. The "publishers"
// facet resolves to the publisher of the file.
func (m *FileMetadata) Values(key string) []string {
	if key == FacetPublishers {
		if m.HasPublisher() {
			return []string{m.Publisher}
		}
		return nil
	}
	return m.AdditionalValues[key]
}

// Clone returns a deep copy so callers can never mutate indexed metadata.
func (m *FileMetadata) Clone() *FileMetadata {
	if m == nil {
		return nil
	}

	c := *m
	if m.ParentFile != nil {
		parent := *m.ParentFile
		c.ParentFile = &parent
	}
	if m.Name != nil {
		c.Name = maps.Clone(m.Name)
	}
	if m.AdditionalValues != nil {
		c.AdditionalValues = make(map[string][]string, len(m.AdditionalValues))
		for key, values := range m.AdditionalValues {
			c.AdditionalValues[key] = slices.Clone(values)
		}
	}
	return &c
}
