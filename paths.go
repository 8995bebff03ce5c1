package docstore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mwantia/docstore/data"
)

const metadataExtension = ".metadata"

// idHex returns the 32 lowercase hex characters used as file name.
func idHex(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}

// IsPublicPath reports whether the content of md belongs in the public tree:
// public, of a structured type and not harvested from elsewhere.
func IsPublicPath(md *data.FileMetadata) bool {
	return md.IsPublic && md.Type.IsStructured() && !md.IsHarvested
}

func (s *Storage) contentPath(md *data.FileMetadata) string {
	if IsPublicPath(md) {
		return filepath.Join(s.root, publicFolder, md.Type.SubFolder(), idHex(md.Id)+".ttl")
	}
	return filepath.Join(s.root, protectedFolder, idHex(md.Id))
}

func (s *Storage) metadataPath(id uuid.UUID) string {
	return filepath.Join(s.root, protectedFolder, idHex(id)+metadataExtension)
}

// relative returns path relative to the storage root for logs and change records.
func (s *Storage) relative(path string) string {
	if rel, err := filepath.Rel(s.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// writeMetadata replaces the sidecar of md atomically.
func (s *Storage) writeMetadata(md *data.FileMetadata) error {
	path := s.metadataPath(md.Id)

	b, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata of %s: %w", md.Id, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create metadata of %s: %w", md.Id, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write metadata of %s: %w", md.Id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync metadata of %s: %w", md.Id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metadata of %s: %w", md.Id, err)
	}

	return os.Rename(tmp.Name(), path)
}

func (s *Storage) removeMetadata(id uuid.UUID) error {
	if err := os.Remove(s.metadataPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove metadata of %s: %w", id, err)
	}
	return nil
}

func readMetadata(path string) (*data.FileMetadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var md data.FileMetadata
	if err := json.Unmarshal(b, &md); err != nil {
		return nil, fmt.Errorf("%w: malformed metadata '%s': %v", data.ErrInvalid, path, err)
	}

	if md.Name == nil {
		md.Name = make(map[string]string)
	}
	if md.AdditionalValues == nil {
		md.AdditionalValues = make(map[string][]string)
	}
	return &md, nil
}
