package data

import (
	"fmt"
	"strings"
	"unicode"
)

// FileType identifies the category of a stored file.
type FileType int

// File type constants. The zero value is the generic type.
const (
	FileTypeUnknown FileType = iota
	FileTypeDatasetRegistration
	FileTypeDistributionRegistration
	FileTypeLocalCatalogRegistration
	FileTypePublisherRegistration
	FileTypeCodelist
)

var fileTypeNames = map[FileType]string{
	FileTypeUnknown:                  "Unknown",
	FileTypeDatasetRegistration:      "DatasetRegistration",
	FileTypeDistributionRegistration: "DistributionRegistration",
	FileTypeLocalCatalogRegistration: "LocalCatalogRegistration",
	FileTypePublisherRegistration:    "PublisherRegistration",
	FileTypeCodelist:                 "Codelist",
}

// FileTypes returns every known file type in declaration order.
func FileTypes() []FileType {
	return []FileType{
		FileTypeUnknown,
		FileTypeDatasetRegistration,
		FileTypeDistributionRegistration,
		FileTypeLocalCatalogRegistration,
		FileTypePublisherRegistration,
		FileTypeCodelist,
	}
}

func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FileType(%d)", int(t))
}

// IsValid reports whether t is one of the declared file types.
func (t FileType) IsValid() bool {
	_, ok := fileTypeNames[t]
	return ok
}

// IsStructured reports whether files of this type hold RDF/turtle content
// and are therefore eligible for the public tree.
func (t FileType) IsStructured() bool {
	switch t {
	case FileTypeDatasetRegistration,
		FileTypeDistributionRegistration,
		FileTypeLocalCatalogRegistration,
		FileTypePublisherRegistration,
		FileTypeCodelist:
		return true
	}
	return false
}

// SubFolder returns the snake_case folder name used in the public tree.
func (t FileType) SubFolder() string {
	var b strings.Builder
	for i, r := range t.String() {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseFileType resolves a type name, case-insensitive.
func ParseFileType(name string) (FileType, error) {
	for t, n := range fileTypeNames {
		if strings.EqualFold(n, name) || strings.EqualFold(t.SubFolder(), name) {
			return t, nil
		}
	}
	return FileTypeUnknown, fmt.Errorf("%w: unknown file type '%s'", ErrInvalid, name)
}

func (t FileType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: unknown file type %d", ErrInvalid, int(t))
	}
	return []byte(t.String()), nil
}

func (t *FileType) UnmarshalText(b []byte) error {
	parsed, err := ParseFileType(string(b))
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}
