package store

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/codeix/internal/types"
)

// SymbolHit is one ranked symbol search result.
type SymbolHit struct {
	types.Symbol
	Score float64
}

// FileHit is one ranked file search result.
type FileHit struct {
	types.FileRecord
	Score float64
}

// TextHit is one ranked text search result.
type TextHit struct {
	types.Text
	Score float64
}

// Filter narrows FTS results by symbol kind and visibility. Path globs
// and pagination are applied by the query layer after per-mount merge.
type Filter struct {
	Kinds      []string
	Visibility string
}

func kindClause(col string, kinds []string, args *[]interface{}) string {
	if len(kinds) == 0 {
		return ""
	}
	placeholders := make([]string, len(kinds))
	for i, k := range kinds {
		placeholders[i] = "?"
		*args = append(*args, k)
	}
	return fmt.Sprintf(" AND %s IN (%s)", col, strings.Join(placeholders, ", "))
}

// SearchSymbols runs an FTS query over the symbol index. Column
// weights rank exact name matches ahead of body-token matches.
// SQLite's bm25() is smaller-is-better; scores are negated so callers
// see descending positives.
func (s *Store) SearchSymbols(query string, f Filter) ([]SymbolHit, error) {
	match, err := TranslateQuery(query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := []interface{}{match}
	q := `SELECT s.file, s.name, s.kind, s.line0, s.line1, s.parent, s.sig, s.alias, s.visibility, s.tokens,
	             bm25(symbols_fts, 10.0, 5.0, 4.0, 2.0, 1.0) AS rank
	      FROM symbols_fts
	      JOIN symbols s ON s.id = symbols_fts.rowid
	      WHERE symbols_fts MATCH ?`
	q += kindClause("s.kind", f.Kinds, &args)
	if f.Visibility != "" {
		q += " AND s.visibility = ?"
		args = append(args, f.Visibility)
	}
	q += ` ORDER BY rank, s.file, s.line0 LIMIT ?`
	args = append(args, hitCap)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SymbolHit
	for rows.Next() {
		var h SymbolHit
		var rank float64
		if err := rows.Scan(&h.File, &h.Name, &h.Kind, &h.Line[0], &h.Line[1],
			&h.Parent, &h.Sig, &h.Alias, &h.Visibility, &h.Tokens, &rank); err != nil {
			return nil, err
		}
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchFiles runs an FTS query over path segments, language, title and
// description.
func (s *Store) SearchFiles(query string) ([]FileHit, error) {
	match, err := TranslateQuery(query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT f.path, f.lang, f.hash, f.lines, f.title, f.description,
		        bm25(files_fts, 6.0, 3.0, 2.0, 1.0) AS rank
		 FROM files_fts
		 JOIN files f ON f.rowid = files_fts.rowid
		 WHERE files_fts MATCH ?
		 ORDER BY rank, f.path LIMIT ?`, match, hitCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []FileHit
	for rows.Next() {
		var h FileHit
		var langCol *string
		var rank float64
		if err := rows.Scan(&h.Path, &langCol, &h.Hash, &h.Lines, &h.Title, &h.Description, &rank); err != nil {
			return nil, err
		}
		h.Lang = langCol
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchTexts runs an FTS query over text bodies.
func (s *Store) SearchTexts(query string, f Filter) ([]TextHit, error) {
	match, err := TranslateQuery(query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := []interface{}{match}
	q := `SELECT t.file, t.kind, t.line0, t.line1, t.body, t.parent,
	             bm25(texts_fts) AS rank
	      FROM texts_fts
	      JOIN texts t ON t.id = texts_fts.rowid
	      WHERE texts_fts MATCH ?`
	q += kindClause("t.kind", f.Kinds, &args)
	q += ` ORDER BY rank, t.file, t.line0 LIMIT ?`
	args = append(args, hitCap)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []TextHit
	for rows.Next() {
		// The embedded field is named Text, like the body column it
		// carries, so scan through a local.
		var txt types.Text
		var rank float64
		if err := rows.Scan(&txt.File, &txt.Kind, &txt.Line[0], &txt.Line[1], &txt.Text, &txt.Parent, &rank); err != nil {
			return nil, err
		}
		hits = append(hits, TextHit{Text: txt, Score: -rank})
	}
	return hits, rows.Err()
}
