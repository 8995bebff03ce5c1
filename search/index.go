// Package search maintains a full-text index over stored files on SQLite FTS5.
//
// The index is derived data. It is kept eventually consistent by pushing
// file states after every mutation (Index, RemoveFromIndex) and can be
// rebuilt from the store at any time. Queries return ids ranked by bm25,
// which Translate turns into an id-ordered storage query.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/mwantia/docstore/acl"
	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/log"
)

// rebuildBatchSize is the page size used when re-deriving the index from a source.
const rebuildBatchSize = 256

// Source provides the file states an index is rebuilt from.
type Source interface {
	GetFileStates(ctx context.Context, q *data.FileStorageQuery, policy acl.Policy) (*data.FileStorageResponse, error)
}

// Index is a full-text index with one row per file and name language.
type Index struct {
	mu  sync.RWMutex
	db  *sql.DB
	log *log.Logger
}

// Open opens or creates the index at path. The path can be ":memory:".
func Open(path string, logger *log.Logger) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if path == ":memory:" {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	idx := &Index{
		db:  db,
		log: logger,
	}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return idx, nil
}

func (idx *Index) initSchema() error {
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS docstore_fts USING fts5(
		id UNINDEXED,
		language UNINDEXED,
		name,
		publisher,
		facets,
		tokenize = 'unicode61 remove_diacritics 2'
	);
	`

	_, err := idx.db.Exec(schema)
	return err
}

func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	return idx.db.Close()
}

// Index replaces the rows of every given state.
func (idx *Index) Index(ctx context.Context, states ...*data.FileState) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, state := range states {
		if state == nil || state.Metadata == nil {
			continue
		}
		if err := indexUnsafe(ctx, tx, state.Metadata); err != nil {
			return fmt.Errorf("failed to index %s: %w", state.Metadata.Id, err)
		}
	}

	return tx.Commit()
}

// RemoveFromIndex drops every row of the given ids.
func (idx *Index) RemoveFromIndex(ctx context.Context, ids ...uuid.UUID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM docstore_fts WHERE id = ?", id.String()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Count returns the number of distinct indexed files.
func (idx *Index) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var count int
	err := idx.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT id) FROM docstore_fts").Scan(&count)
	return count, err
}

// Rebuild clears the index and re-derives it from every file of source.
func (idx *Index) Rebuild(ctx context.Context, source Source) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM docstore_fts"); err != nil {
		return 0, err
	}

	total := 0
	for {
		response, err := source.GetFileStates(ctx, &data.FileStorageQuery{
			OrderDefinitions: []data.OrderDefinition{{Property: data.OrderByCreated}},
			SkipResults:      total,
			MaxResults:       rebuildBatchSize,
		}, acl.AllowAll{})
		if err != nil {
			return 0, err
		}

		for _, state := range response.Files {
			if err := indexUnsafe(ctx, tx, state.Metadata); err != nil {
				return 0, fmt.Errorf("failed to index %s: %w", state.Metadata.Id, err)
			}
		}
		total += len(response.Files)

		if len(response.Files) < rebuildBatchSize || total >= response.TotalCount {
			break
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	idx.log.Info("Rebuilt full-text index with %d files", total)
	return total, nil
}

// indexUnsafe MUST be called within a transaction holding idx.mu.
func indexUnsafe(ctx context.Context, tx *sql.Tx, md *data.FileMetadata) error {
	id := md.Id.String()
	if _, err := tx.ExecContext(ctx, "DELETE FROM docstore_fts WHERE id = ?", id); err != nil {
		return err
	}

	facets := facetText(md)

	languages := md.Languages()
	if len(languages) == 0 {
		languages = []string{""}
	}

	for _, language := range languages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO docstore_fts (id, language, name, publisher, facets)
			VALUES (?, ?, ?, ?, ?)
		`, id, language, md.Name[language], md.Publisher, facets); err != nil {
			return err
		}
	}
	return nil
}

func facetText(md *data.FileMetadata) string {
	keys := make([]string, 0, len(md.AdditionalValues))
	for key := range md.AdditionalValues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make([]string, 0)
	for _, key := range keys {
		values = append(values, md.AdditionalValues[key]...)
	}
	return strings.Join(values, " ")
}
