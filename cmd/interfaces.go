package cmd

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/mwantia/docstore/acl"
	"github.com/mwantia/docstore/data"
)

// API is the part of the storage used by admin commands.
type API interface {
	// LoadEntries rebuilds the index from the metadata sidecars on disk.
	LoadEntries(ctx context.Context) error

	// GetFileStates returns one page of files matching the query.
	GetFileStates(ctx context.Context, q *data.FileStorageQuery, policy acl.Policy) (*data.FileStorageResponse, error)

	// GetFileMetadata returns the metadata of id, or nil when absent or forbidden.
	GetFileMetadata(ctx context.Context, id uuid.UUID, policy acl.Policy) *data.FileMetadata

	// GetFileState returns metadata and inline content of id, or nil when absent or forbidden.
	GetFileState(ctx context.Context, id uuid.UUID, policy acl.Policy) (*data.FileState, error)

	// OpenReadStream opens the content of id, or returns nil when absent, forbidden or locked.
	OpenReadStream(ctx context.Context, id uuid.UUID, policy acl.Policy) (io.ReadCloser, error)

	// DeleteFile removes id together with all of its dependents.
	DeleteFile(ctx context.Context, id uuid.UUID, policy acl.Policy) error

	// Stats returns entry counts and open handles.
	Stats() data.StorageStats
}

// Searcher resolves the free-text part of a query into ranked ids.
type Searcher interface {
	Translate(ctx context.Context, q *data.FileStorageQuery) (*data.FileStorageQuery, error)
}

// Command represents an executable admin command.
type Command interface {
	// Name returns the command identifier
	Name() string

	// Description returns human-readable help text
	Description() string

	// Usage returns a usage string for help (e.g. "ls --type dataset_registration")
	Usage() string

	// Execute runs the command with parsed arguments
	// The writer parameter is where command output should be written
	// Returns exit code (0 = success) and error message
	Execute(ctx context.Context, api API, args *CommandArgs, writer io.Writer) (int, error)

	// GetFlags returns the flag set for this command (this is optional)
	GetFlags() *CommandFlagSet
}
