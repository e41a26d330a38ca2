package storage

import (
	"fmt"
	"strings"
)

// Hit is one full-text match in a saved workspace.
type Hit struct {
	Kind    string `json:"kind"` // "element" or "document"
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Search runs an FTS5 query over element names and notes and over document
// titles and content. Element hits come first, best rank first.
func (w *WorkspaceStore) Search(query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var hits []Hit
	rows, err := w.db.Query(
		`SELECT e.id, e.name, snippet(elements_fts, 1, '[', ']', '…', 12)
		 FROM elements_fts
		 JOIN elements e ON e.rowid = elements_fts.rowid
		 WHERE elements_fts MATCH ?
		 ORDER BY rank LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search elements fts: %w", err)
	}
	for rows.Next() {
		h := Hit{Kind: "element"}
		if err := rows.Scan(&h.ID, &h.Title, &h.Snippet); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan element hit: %w", err)
		}
		hits = append(hits, h)
	}
	rows.Close()

	rows, err = w.db.Query(
		`SELECT d.id, d.title, snippet(documents_fts, 1, '[', ']', '…', 12)
		 FROM documents_fts
		 JOIN documents d ON d.rowid = documents_fts.rowid
		 WHERE documents_fts MATCH ?
		 ORDER BY rank LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search documents fts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		h := Hit{Kind: "document"}
		if err := rows.Scan(&h.ID, &h.Title, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan document hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
