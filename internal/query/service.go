// Package query implements the typed tool surface over the mount
// table: discovery, weighted search, structural lookup and the call
// graph.
package query

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	xerrors "github.com/standardbeagle/codeix/internal/errors"
	"github.com/standardbeagle/codeix/internal/mounttable"
	"github.com/standardbeagle/codeix/internal/types"
)

const (
	defaultLimit        = 10
	defaultSnippetLines = 10
	snippetCacheSize    = 128
)

// Service answers tool calls. It holds only read access to the mounts
// plus an LRU of file contents for snippet extraction, keyed by
// (path, hash) so stale entries fall out when a file reindexes.
type Service struct {
	table *mounttable.Table
	cache *lru.Cache[uint64, []string]
}

// New creates a service over a mount table.
func New(table *mounttable.Table) (*Service, error) {
	cache, err := lru.New[uint64, []string](snippetCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{table: table, cache: cache}, nil
}

// FlushIndex forces a synchronous flush; it returns once disk is up to
// date.
func (s *Service) FlushIndex() error {
	return s.table.FlushAll()
}

// GetFileSymbols returns the symbols of files matching a path or glob,
// ordered by first line, across the routed mounts.
func (s *Service) GetFileSymbols(p FileSymbolsParams) ([]SymbolRow, error) {
	if p.File == "" {
		return nil, xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery, "file is required")
	}
	entries, err := s.table.Route(p.Project)
	if err != nil {
		return nil, err
	}

	var rows []SymbolRow
	for _, e := range entries {
		syms, err := e.Mount.Store().FileSymbols(p.File)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			rows = append(rows, SymbolRow{Project: e.Rel, Symbol: sym})
		}
	}
	return rows, nil
}

// GetChildren returns the direct children of parent within file.
func (s *Service) GetChildren(p ChildrenParams) ([]SymbolRow, error) {
	if p.File == "" || p.Parent == "" {
		return nil, xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery, "file and parent are required")
	}
	entries, err := s.table.Route(p.Project)
	if err != nil {
		return nil, err
	}

	var rows []SymbolRow
	for _, e := range entries {
		syms, err := e.Mount.Store().Children(p.File, p.Parent)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			rows = append(rows, SymbolRow{Project: e.Rel, Symbol: sym})
		}
	}
	return rows, nil
}

// GetCallers returns reference sites targeting name.
func (s *Service) GetCallers(p CallersParams) ([]CallRow, error) {
	if p.Name == "" {
		return nil, xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery, "name is required")
	}
	entries, err := s.table.Route(p.Project)
	if err != nil {
		return nil, err
	}

	var rows []CallRow
	for _, e := range entries {
		sites, err := e.Mount.Store().Callers(p.Name, p.Kind)
		if err != nil {
			return nil, err
		}
		for _, site := range sites {
			rows = append(rows, CallRow{Project: e.Rel, Ref: site.Ref, Def: site.Def})
		}
	}
	return rows, nil
}

// GetCallees mirrors GetCallers for references made from caller.
func (s *Service) GetCallees(p CalleesParams) ([]CallRow, error) {
	if p.Caller == "" {
		return nil, xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery, "caller is required")
	}
	entries, err := s.table.Route(p.Project)
	if err != nil {
		return nil, err
	}

	var rows []CallRow
	for _, e := range entries {
		sites, err := e.Mount.Store().Callees(p.Caller, p.Kind)
		if err != nil {
			return nil, err
		}
		for _, site := range sites {
			rows = append(rows, CallRow{Project: e.Rel, Ref: site.Ref, Def: site.Def})
		}
	}
	return rows, nil
}

// sourceLines loads a file's lines through the snippet cache.
func (s *Service) sourceLines(mountRoot, rel, hash string) []string {
	key := xxhash.Sum64String(rel + "\x00" + hash)
	if lines, ok := s.cache.Get(key); ok {
		return lines
	}
	data, err := os.ReadFile(filepath.Join(mountRoot, filepath.FromSlash(rel)))
	if err != nil {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	s.cache.Add(key, lines)
	return lines
}

// snippet reads snippetLines of source centred on the hit, bounded by
// the symbol range when one is known. 0 disables, -1 returns the whole
// symbol body.
func (s *Service) snippet(mountRoot, rel, hash string, hit types.LineRange, bounds *types.LineRange, snippetLines int) string {
	if snippetLines == 0 {
		return ""
	}
	lines := s.sourceLines(mountRoot, rel, hash)
	if len(lines) == 0 {
		return ""
	}

	start, end := hit[0], hit[1]
	if snippetLines < 0 {
		if bounds != nil {
			start, end = bounds[0], bounds[1]
		}
	} else {
		center := hit[0]
		start = center - snippetLines/2
		end = start + snippetLines - 1
		if bounds != nil {
			if start < bounds[0] {
				start = bounds[0]
			}
			if end > bounds[1] {
				end = bounds[1]
			}
		}
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
