// Package store is the in-memory search core: relational tables for
// files, symbols, texts and refs plus FTS5 indexes with weighted BM25
// ranking. One store serves one mount and is fully reconstructible
// from the on-disk JSONL.
package store

import (
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	_ "modernc.org/sqlite"

	"github.com/standardbeagle/codeix/internal/codec"
	"github.com/standardbeagle/codeix/internal/types"
)

// hitCap bounds one FTS query's candidate set before the query layer
// applies path filters and pagination.
const hitCap = 1000

// Store wraps a single-connection in-memory SQLite database. The
// reader-writer lock gives queries concurrent access while file
// replacement holds the writer side briefly.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

const schema = `
CREATE TABLE files (
    path        TEXT PRIMARY KEY,
    lang        TEXT,
    hash        TEXT NOT NULL,
    lines       INTEGER NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE symbols (
    id         INTEGER PRIMARY KEY,
    file       TEXT NOT NULL,
    name       TEXT NOT NULL,
    base       TEXT NOT NULL,
    kind       TEXT NOT NULL,
    line0      INTEGER NOT NULL,
    line1      INTEGER NOT NULL,
    seq        INTEGER NOT NULL,
    parent     TEXT NOT NULL DEFAULT '',
    sig        TEXT NOT NULL DEFAULT '',
    alias      TEXT NOT NULL DEFAULT '',
    visibility TEXT NOT NULL DEFAULT '',
    tokens     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX symbols_by_file ON symbols(file, line0, seq);
CREATE INDEX symbols_by_name ON symbols(name);
CREATE INDEX symbols_by_base ON symbols(base);
CREATE TABLE texts (
    id     INTEGER PRIMARY KEY,
    file   TEXT NOT NULL,
    kind   TEXT NOT NULL,
    line0  INTEGER NOT NULL,
    line1  INTEGER NOT NULL,
    seq    INTEGER NOT NULL,
    body   TEXT NOT NULL,
    parent TEXT NOT NULL DEFAULT ''
);
CREATE INDEX texts_by_file ON texts(file, line0, seq);
CREATE TABLE refs (
    id     INTEGER PRIMARY KEY,
    file   TEXT NOT NULL,
    sym    TEXT NOT NULL DEFAULT '',
    target TEXT NOT NULL,
    base   TEXT NOT NULL,
    kind   TEXT NOT NULL,
    line   INTEGER NOT NULL
);
CREATE INDEX refs_by_file ON refs(file, line);
CREATE INDEX refs_by_target ON refs(target);
CREATE INDEX refs_by_base ON refs(base);
CREATE INDEX refs_by_sym ON refs(sym);
CREATE VIRTUAL TABLE symbols_fts USING fts5(name, parent, kind, sig, tokens);
CREATE VIRTUAL TABLE files_fts USING fts5(path, lang, title, description);
CREATE VIRTUAL TABLE texts_fts USING fts5(body);
`

// Open creates an empty store.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// One connection: each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func baseName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ReplaceFile swaps all rows for one file in a single transaction, so
// concurrent readers see the pre-state or the post-state, never a
// partial replacement.
func (s *Store) ReplaceFile(rec types.FileRecord, symbols []types.Symbol, texts []types.Text, refs []types.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteFileTx(tx, rec.Path); err != nil {
		return err
	}

	res, err := tx.Exec(
		`INSERT INTO files (path, lang, hash, lines, title, description) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Path, nullable(rec.LangTag()), rec.Hash, rec.Lines, rec.Title, rec.Description,
	)
	if err != nil {
		return err
	}
	fileRowID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO files_fts (rowid, path, lang, title, description) VALUES (?, ?, ?, ?, ?)`,
		fileRowID, rec.Path, rec.LangTag(), rec.Title, rec.Description,
	); err != nil {
		return err
	}

	for seq, sym := range symbols {
		res, err := tx.Exec(
			`INSERT INTO symbols (file, name, base, kind, line0, line1, seq, parent, sig, alias, visibility, tokens)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Path, sym.Name, baseName(sym.Name), sym.Kind, sym.Line[0], sym.Line[1], seq,
			sym.Parent, sym.Sig, sym.Alias, sym.Visibility, sym.Tokens,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO symbols_fts (rowid, name, parent, kind, sig, tokens) VALUES (?, ?, ?, ?, ?, ?)`,
			id, ftsNameDoc(sym.Name), ftsNameDoc(sym.Parent), sym.Kind, sym.Sig, ftsTokensDoc(sym.Tokens),
		); err != nil {
			return err
		}
	}

	for seq, txt := range texts {
		res, err := tx.Exec(
			`INSERT INTO texts (file, kind, line0, line1, seq, body, parent) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Path, txt.Kind, txt.Line[0], txt.Line[1], seq, txt.Text, txt.Parent,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO texts_fts (rowid, body) VALUES (?, ?)`, id, txt.Text); err != nil {
			return err
		}
	}

	for _, ref := range refs {
		if _, err := tx.Exec(
			`INSERT INTO refs (file, sym, target, base, kind, line) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Path, ref.Sym, ref.Target, baseName(ref.Target), ref.Kind, ref.Line,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RemoveFile drops every row for path.
func (s *Store) RemoveFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteFileTx(tx, path); err != nil {
		return err
	}
	return tx.Commit()
}

// RemovePrefix drops rows for every file under dir, returning how many
// files went away.
func (s *Store) RemovePrefix(dir string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT path FROM files WHERE path = ? OR path LIKE ?`, dir, dir+"/%")
	if err != nil {
		return 0, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		paths = append(paths, p)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, p := range paths {
		if err := deleteFileTx(tx, p); err != nil {
			return 0, err
		}
	}
	return len(paths), tx.Commit()
}

func deleteFileTx(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(
		`DELETE FROM symbols_fts WHERE rowid IN (SELECT id FROM symbols WHERE file = ?)`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM texts_fts WHERE rowid IN (SELECT id FROM texts WHERE file = ?)`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM files_fts WHERE rowid IN (SELECT rowid FROM files WHERE path = ?)`, path); err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM symbols WHERE file = ?`,
		`DELETE FROM texts WHERE file = ?`,
		`DELETE FROM refs WHERE file = ?`,
		`DELETE FROM files WHERE path = ?`,
	} {
		if _, err := tx.Exec(stmt, path); err != nil {
			return err
		}
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// FileHash returns the stored hash for change detection.
func (s *Store) FileHash(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var h string
	err := s.db.QueryRow(`SELECT hash FROM files WHERE path = ?`, path).Scan(&h)
	if err != nil {
		return "", false
	}
	return h, true
}

// Paths returns all tracked paths in sorted order.
func (s *Store) Paths() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Languages returns the distinct language tags present.
func (s *Store) Languages() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT lang FROM files WHERE lang IS NOT NULL ORDER BY lang`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

// SymbolNames returns distinct symbol names, for spell-correction of
// missed queries.
func (s *Store) SymbolNames(limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT name FROM symbols ORDER BY name LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// FileCount returns the number of tracked files.
func (s *Store) FileCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

// LoadIndex bulk-loads an on-disk index, replacing file by file.
func (s *Store) LoadIndex(idx *codec.Index) error {
	symsByFile := map[string][]types.Symbol{}
	for _, sym := range idx.Symbols {
		symsByFile[sym.File] = append(symsByFile[sym.File], sym)
	}
	textsByFile := map[string][]types.Text{}
	for _, txt := range idx.Texts {
		textsByFile[txt.File] = append(textsByFile[txt.File], txt)
	}
	refsByFile := map[string][]types.Ref{}
	for _, ref := range idx.Refs {
		refsByFile[ref.File] = append(refsByFile[ref.File], ref)
	}
	for _, rec := range idx.Files {
		if err := s.ReplaceFile(rec, symsByFile[rec.Path], textsByFile[rec.Path], refsByFile[rec.Path]); err != nil {
			return err
		}
	}
	return nil
}

// Dump reads every table back in canonical on-disk order.
func (s *Store) Dump() (*codec.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := &codec.Index{}

	rows, err := s.db.Query(
		`SELECT path, lang, hash, lines, title, description FROM files ORDER BY path`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var rec types.FileRecord
		var langCol sql.NullString
		if err := rows.Scan(&rec.Path, &langCol, &rec.Hash, &rec.Lines, &rec.Title, &rec.Description); err != nil {
			rows.Close()
			return nil, err
		}
		if langCol.Valid {
			rec.Lang = &langCol.String
		}
		idx.Files = append(idx.Files, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(
		`SELECT file, name, kind, line0, line1, parent, sig, alias, visibility, tokens
		 FROM symbols ORDER BY file, line0, seq`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var sym types.Symbol
		if err := rows.Scan(&sym.File, &sym.Name, &sym.Kind, &sym.Line[0], &sym.Line[1],
			&sym.Parent, &sym.Sig, &sym.Alias, &sym.Visibility, &sym.Tokens); err != nil {
			rows.Close()
			return nil, err
		}
		idx.Symbols = append(idx.Symbols, sym)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(
		`SELECT file, kind, line0, line1, body, parent FROM texts ORDER BY file, line0, seq`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var txt types.Text
		if err := rows.Scan(&txt.File, &txt.Kind, &txt.Line[0], &txt.Line[1], &txt.Text, &txt.Parent); err != nil {
			rows.Close()
			return nil, err
		}
		idx.Texts = append(idx.Texts, txt)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(
		`SELECT file, sym, target, kind, line FROM refs ORDER BY file, line, id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var ref types.Ref
		if err := rows.Scan(&ref.File, &ref.Sym, &ref.Target, &ref.Kind, &ref.Line); err != nil {
			rows.Close()
			return nil, err
		}
		idx.Refs = append(idx.Refs, ref)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	return idx, nil
}

// FileSymbols returns the symbols of files matching a path or glob,
// ordered by first line.
func (s *Store) FileSymbols(pathOrGlob string) ([]types.Symbol, error) {
	paths, err := s.matchPaths(pathOrGlob)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Symbol
	for _, p := range paths {
		rows, err := s.db.Query(
			`SELECT file, name, kind, line0, line1, parent, sig, alias, visibility, tokens
			 FROM symbols WHERE file = ? ORDER BY line0, seq`, p)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var sym types.Symbol
			if err := rows.Scan(&sym.File, &sym.Name, &sym.Kind, &sym.Line[0], &sym.Line[1],
				&sym.Parent, &sym.Sig, &sym.Alias, &sym.Visibility, &sym.Tokens); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, sym)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Children returns the direct children of parent within file.
func (s *Store) Children(file, parent string) ([]types.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT file, name, kind, line0, line1, parent, sig, alias, visibility, tokens
		 FROM symbols WHERE file = ? AND parent = ? ORDER BY line0, seq`, file, parent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Symbol
	for rows.Next() {
		var sym types.Symbol
		if err := rows.Scan(&sym.File, &sym.Name, &sym.Kind, &sym.Line[0], &sym.Line[1],
			&sym.Parent, &sym.Sig, &sym.Alias, &sym.Visibility, &sym.Tokens); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// matchPaths resolves a path-or-glob argument against tracked paths.
func (s *Store) matchPaths(pathOrGlob string) ([]string, error) {
	if !strings.ContainsAny(pathOrGlob, "*?[{") {
		return []string{pathOrGlob}, nil
	}
	all, err := s.Paths()
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, p := range all {
		if ok, _ := doublestar.Match(pathOrGlob, p); ok {
			matched = append(matched, p)
		}
	}
	sort.Strings(matched)
	return matched, nil
}
