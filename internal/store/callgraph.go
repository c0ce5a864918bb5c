package store

import (
	"github.com/standardbeagle/codeix/internal/types"
)

// CallSite is one reference row joined with the symbol definition on
// the other end of the edge: the enclosing caller for Callers, the
// matching definition for Callees. Def is nil when no definition is
// known (external or unindexed names).
type CallSite struct {
	Ref types.Ref
	Def *types.Symbol
}

// Callers returns references whose target matches name, by full dotted
// name or by base segment, joined with the definition of each
// reference's enclosing symbol. kind filters the reference kind when
// non-empty.
func (s *Store) Callers(name, kind string) ([]CallSite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := []interface{}{name, baseName(name)}
	q := `SELECT file, sym, target, kind, line FROM refs WHERE (target = ? OR base = ?)`
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY file, line, id`

	sites, err := s.queryRefs(q, args)
	if err != nil {
		return nil, err
	}

	// Attach the caller's own definition from the same file.
	for i := range sites {
		if sites[i].Ref.Sym == "" {
			continue
		}
		sites[i].Def = s.lookupSymbol(
			`SELECT file, name, kind, line0, line1, parent, sig, alias, visibility, tokens
			 FROM symbols WHERE file = ? AND name = ? ORDER BY id LIMIT 1`,
			sites[i].Ref.File, sites[i].Ref.Sym)
	}
	return sites, nil
}

// Callees mirrors Callers: references made from within caller, joined
// with the definitions their targets resolve to by name.
func (s *Store) Callees(caller, kind string) ([]CallSite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := []interface{}{caller, "%." + caller}
	q := `SELECT file, sym, target, kind, line FROM refs WHERE (sym = ? OR sym LIKE ?)`
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY file, line, id`

	sites, err := s.queryRefs(q, args)
	if err != nil {
		return nil, err
	}

	for i := range sites {
		target := sites[i].Ref.Target
		sites[i].Def = s.lookupSymbol(
			`SELECT file, name, kind, line0, line1, parent, sig, alias, visibility, tokens
			 FROM symbols WHERE name = ? OR base = ? ORDER BY id LIMIT 1`,
			target, baseName(target))
	}
	return sites, nil
}

func (s *Store) queryRefs(q string, args []interface{}) ([]CallSite, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []CallSite
	for rows.Next() {
		var site CallSite
		if err := rows.Scan(&site.Ref.File, &site.Ref.Sym, &site.Ref.Target,
			&site.Ref.Kind, &site.Ref.Line); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) lookupSymbol(q string, args ...interface{}) *types.Symbol {
	var sym types.Symbol
	err := s.db.QueryRow(q, args...).Scan(&sym.File, &sym.Name, &sym.Kind,
		&sym.Line[0], &sym.Line[1], &sym.Parent, &sym.Sig, &sym.Alias,
		&sym.Visibility, &sym.Tokens)
	if err != nil {
		return nil
	}
	return &sym
}
