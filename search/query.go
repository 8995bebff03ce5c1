package search

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/mwantia/docstore/data"
)

// Search returns the ids matching text, best match first. Rows named in
// language rank before rows in other languages. limit <= 0 returns all.
func (idx *Index) Search(ctx context.Context, text, language string, limit int) ([]uuid.UUID, error) {
	expr := matchExpression(text)
	if expr == "" {
		return []uuid.UUID{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, bm25(docstore_fts, 0.0, 0.0, 10.0, 2.0, 1.0) AS rank
		FROM docstore_fts
		WHERE docstore_fts MATCH ?
		ORDER BY (language = ?) DESC, rank
	`, expr, language)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var raw string
		var rank float64
		if err := rows.Scan(&raw, &rank); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			idx.log.Warn("Skipping malformed id '%s' in full-text index", raw)
			continue
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)

		if limit > 0 && len(ids) >= limit {
			break
		}
	}

	return ids, rows.Err()
}

// Translate resolves the QueryText of q into an ordered OnlyIds list.
// Without explicit ordering the result follows the search ranking.
// Queries without text are returned unchanged.
func (idx *Index) Translate(ctx context.Context, q *data.FileStorageQuery) (*data.FileStorageQuery, error) {
	if q == nil || strings.TrimSpace(q.QueryText) == "" {
		return q, nil
	}

	ids, err := idx.Search(ctx, q.QueryText, q.Language, 0)
	if err != nil {
		return nil, err
	}

	translated := q.Clone()
	if q.OnlyIds != nil {
		ids = slices.DeleteFunc(ids, func(id uuid.UUID) bool {
			return !slices.Contains(q.OnlyIds, id)
		})
	}
	translated.OnlyIds = ids

	if len(translated.OrderDefinitions) == 0 {
		translated.OrderDefinitions = []data.OrderDefinition{{Property: data.OrderByRelevance}}
	}
	return translated, nil
}

// matchExpression turns free text into an FTS5 expression of quoted prefix
// terms that must all match.
func matchExpression(text string) string {
	terms := make([]string, 0)
	for _, field := range strings.Fields(text) {
		field = strings.Trim(field, `"*`)
		if field == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(field, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}
