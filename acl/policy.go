// Package acl contains the access policies evaluated by the storage engine.
// A policy is supplied per call; the engine holds no identity state.
package acl

import "github.com/mwantia/docstore/data"

// Policy decides per file whether the caller may read, modify or delete it.
// Implementations must be pure and safe for concurrent use.
type Policy interface {
	HasReadAccessToFile(meta *data.FileMetadata) bool

	HasModifyAccessToFile(meta *data.FileMetadata) bool

	HasDeleteAccessToFile(meta *data.FileMetadata) bool
}

// AllowAll grants every permission. Intended for operators and tests.
type AllowAll struct{}

func (AllowAll) HasReadAccessToFile(*data.FileMetadata) bool   { return true }
func (AllowAll) HasModifyAccessToFile(*data.FileMetadata) bool { return true }
func (AllowAll) HasDeleteAccessToFile(*data.FileMetadata) bool { return true }

// DenyAll refuses every permission.
type DenyAll struct{}

func (DenyAll) HasReadAccessToFile(*data.FileMetadata) bool   { return false }
func (DenyAll) HasModifyAccessToFile(*data.FileMetadata) bool { return false }
func (DenyAll) HasDeleteAccessToFile(*data.FileMetadata) bool { return false }

// PublicOnly lets anonymous callers read public files and nothing else.
type PublicOnly struct{}

func (PublicOnly) HasReadAccessToFile(meta *data.FileMetadata) bool {
	return meta != nil && meta.IsPublic
}

func (PublicOnly) HasModifyAccessToFile(*data.FileMetadata) bool { return false }
func (PublicOnly) HasDeleteAccessToFile(*data.FileMetadata) bool { return false }

// Publisher scopes access to the files of one publisher. Reading is
// allowed for public files or matching publishers; modification and
// deletion require an exact, non-empty publisher match.
type Publisher struct {
	Publisher string
}

// NewPublisher returns a policy for the given publisher key.
func NewPublisher(publisher string) *Publisher {
	return &Publisher{Publisher: publisher}
}

func (p *Publisher) HasReadAccessToFile(meta *data.FileMetadata) bool {
	if meta == nil {
		return false
	}
	return meta.IsPublic || p.owns(meta)
}

func (p *Publisher) HasModifyAccessToFile(meta *data.FileMetadata) bool {
	return meta != nil && p.owns(meta)
}

func (p *Publisher) HasDeleteAccessToFile(meta *data.FileMetadata) bool {
	return p.HasModifyAccessToFile(meta)
}

// owns never matches an empty publisher on either side.
func (p *Publisher) owns(meta *data.FileMetadata) bool {
	return p.Publisher != "" && meta.HasPublisher() && meta.Publisher == p.Publisher
}

// Funcs adapts plain functions to a Policy. A nil Read or Modify denies;
// a nil Delete falls back to Modify.
type Funcs struct {
	Read   func(*data.FileMetadata) bool
	Modify func(*data.FileMetadata) bool
	Delete func(*data.FileMetadata) bool
}

func (f Funcs) HasReadAccessToFile(meta *data.FileMetadata) bool {
	return f.Read != nil && f.Read(meta)
}

func (f Funcs) HasModifyAccessToFile(meta *data.FileMetadata) bool {
	return f.Modify != nil && f.Modify(meta)
}

func (f Funcs) HasDeleteAccessToFile(meta *data.FileMetadata) bool {
	if f.Delete == nil {
		return f.HasModifyAccessToFile(meta)
	}
	return f.Delete(meta)
}
