package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codeix/internal/codec"
	"github.com/standardbeagle/codeix/internal/types"
)

func langPtr(s string) *string { return &s }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedScenarioA(t *testing.T, s *Store) {
	t.Helper()
	rec := types.FileRecord{Path: "src/a.py", Lang: langPtr("python"), Hash: "aabbccdd00112233", Lines: 4}
	symbols := []types.Symbol{
		{File: "src/a.py", Name: "os", Kind: "import", Line: types.LineRange{1, 1}},
		{File: "src/a.py", Name: "f", Kind: "function", Line: types.LineRange{2, 4},
			Sig: "def f(x: int) -> int", Visibility: "public"},
	}
	texts := []types.Text{
		{File: "src/a.py", Kind: "docstring", Line: types.LineRange{3, 3}, Text: "doc", Parent: "f"},
	}
	refs := []types.Ref{
		{File: "src/a.py", Target: "os", Kind: "import", Line: 1},
	}
	require.NoError(t, s.ReplaceFile(rec, symbols, texts, refs))
}

func TestSearchSymbols_ScenarioE(t *testing.T) {
	s := newTestStore(t)
	seedScenarioA(t, s)

	hits, err := s.SearchSymbols("os", Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "os", hits[0].Name)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.Equal(t, types.LineRange{1, 1}, hits[0].Line)
}

func TestSearchSymbols_NameOutranksTokens(t *testing.T) {
	s := newTestStore(t)
	rec := types.FileRecord{Path: "a.js", Lang: langPtr("javascript"), Hash: "0000000000000001", Lines: 10}
	symbols := []types.Symbol{
		{File: "a.js", Name: "usesQueue", Kind: "function", Line: types.LineRange{1, 3}, Tokens: "queue push pop"},
		{File: "a.js", Name: "queue", Kind: "function", Line: types.LineRange{5, 8}},
	}
	require.NoError(t, s.ReplaceFile(rec, symbols, nil, nil))

	hits, err := s.SearchSymbols("queue", Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "queue", hits[0].Name, "name matches outrank token-bag matches")
}

func TestSearchSymbols_KindAndVisibilityFilters(t *testing.T) {
	s := newTestStore(t)
	rec := types.FileRecord{Path: "m.py", Lang: langPtr("python"), Hash: "0000000000000002", Lines: 10}
	symbols := []types.Symbol{
		{File: "m.py", Name: "load", Kind: "function", Line: types.LineRange{1, 2}, Visibility: "public"},
		{File: "m.py", Name: "Loader", Kind: "class", Line: types.LineRange{4, 9}, Visibility: "public"},
		{File: "m.py", Name: "Loader.load", Kind: "method", Line: types.LineRange{5, 6},
			Parent: "Loader", Visibility: "internal"},
	}
	require.NoError(t, s.ReplaceFile(rec, symbols, nil, nil))

	hits, err := s.SearchSymbols("load", Filter{Kinds: []string{"method"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Loader.load", hits[0].Name)

	hits, err = s.SearchSymbols("load", Filter{Visibility: "public"})
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, "public", h.Visibility)
	}
}

func TestSearchQueryGrammar(t *testing.T) {
	s := newTestStore(t)
	rec := types.FileRecord{Path: "g.go", Lang: langPtr("go"), Hash: "0000000000000003", Lines: 20}
	symbols := []types.Symbol{
		{File: "g.go", Name: "ParseConfig", Kind: "function", Line: types.LineRange{1, 3}},
		{File: "g.go", Name: "WriteConfig", Kind: "function", Line: types.LineRange{5, 7}},
		{File: "g.go", Name: "ParseFlags", Kind: "function", Line: types.LineRange{9, 11}},
	}
	require.NoError(t, s.ReplaceFile(rec, symbols, nil, nil))

	names := func(hits []SymbolHit) []string {
		var out []string
		for _, h := range hits {
			out = append(out, h.Name)
		}
		return out
	}

	// Implicit AND.
	hits, err := s.SearchSymbols("parse config", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ParseConfig"}, names(hits))

	// OR, both spellings.
	hits, err = s.SearchSymbols("flags OR write", Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"WriteConfig", "ParseFlags"}, names(hits))

	hits, err = s.SearchSymbols("flags | write", Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"WriteConfig", "ParseFlags"}, names(hits))

	// Prefix.
	hits, err = s.SearchSymbols("pars*", Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ParseConfig", "ParseFlags"}, names(hits))

	// Exclusion.
	hits, err = s.SearchSymbols("config -write", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ParseConfig"}, names(hits))

	// Invalid: nothing positive.
	_, err = s.SearchSymbols("-config", Filter{})
	assert.Error(t, err)
	_, err = s.SearchSymbols("   ", Filter{})
	assert.Error(t, err)
}

func TestSearchFilesAndTexts(t *testing.T) {
	s := newTestStore(t)
	seedScenarioA(t, s)
	rec := types.FileRecord{Path: "docs/guide.md", Lang: langPtr("markdown"), Hash: "0000000000000004",
		Lines: 12, Title: "User Guide", Description: "How to operate the indexer"}
	texts := []types.Text{
		{File: "docs/guide.md", Kind: "sample", Line: types.LineRange{5, 9}, Text: "codeix build", Parent: "User Guide"},
	}
	require.NoError(t, s.ReplaceFile(rec, nil, texts, nil))

	fileHits, err := s.SearchFiles("guide")
	require.NoError(t, err)
	require.Len(t, fileHits, 1)
	assert.Equal(t, "docs/guide.md", fileHits[0].Path)

	textHits, err := s.SearchTexts("codeix", Filter{})
	require.NoError(t, err)
	require.Len(t, textHits, 1)
	assert.Equal(t, "sample", textHits[0].Kind)
}

func TestReplaceFile_DeleteThenInsert(t *testing.T) {
	s := newTestStore(t)
	seedScenarioA(t, s)

	// Replace with new content: old rows must be gone.
	rec := types.FileRecord{Path: "src/a.py", Lang: langPtr("python"), Hash: "1122334455667788", Lines: 2}
	symbols := []types.Symbol{
		{File: "src/a.py", Name: "g", Kind: "function", Line: types.LineRange{1, 2}},
	}
	require.NoError(t, s.ReplaceFile(rec, symbols, nil, nil))

	hits, err := s.SearchSymbols("f", Filter{})
	require.NoError(t, err)
	assert.Empty(t, hits, "replaced rows must not match")

	hits, err = s.SearchSymbols("g", Filter{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	h, ok := s.FileHash("src/a.py")
	require.True(t, ok)
	assert.Equal(t, "1122334455667788", h)
}

func TestRemoveFileAndPrefix(t *testing.T) {
	s := newTestStore(t)
	seedScenarioA(t, s)
	rec := types.FileRecord{Path: "src/sub/b.py", Lang: langPtr("python"), Hash: "0000000000000005", Lines: 1}
	require.NoError(t, s.ReplaceFile(rec, []types.Symbol{
		{File: "src/sub/b.py", Name: "h", Kind: "function", Line: types.LineRange{1, 1}},
	}, nil, nil))

	require.NoError(t, s.RemoveFile("src/a.py"))
	_, ok := s.FileHash("src/a.py")
	assert.False(t, ok)

	removed, err := s.RemovePrefix("src")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	n, err := s.FileCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDumpLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedScenarioA(t, s)

	dump, err := s.Dump()
	require.NoError(t, err)
	dump.Manifest = types.Manifest{Version: types.SpecVersion, Name: "x", Root: ".", Languages: []string{"python"}}

	s2 := newTestStore(t)
	require.NoError(t, s2.LoadIndex(dump))

	dump2, err := s2.Dump()
	require.NoError(t, err)
	assert.Equal(t, dump.Files, dump2.Files)
	assert.Equal(t, dump.Symbols, dump2.Symbols)
	assert.Equal(t, dump.Texts, dump2.Texts)
	assert.Equal(t, dump.Refs, dump2.Refs)
}

func TestCallers(t *testing.T) {
	s := newTestStore(t)
	recA := types.FileRecord{Path: "a.py", Lang: langPtr("python"), Hash: "000000000000000a", Lines: 10}
	require.NoError(t, s.ReplaceFile(recA, []types.Symbol{
		{File: "a.py", Name: "util", Kind: "module", Line: types.LineRange{1, 10}},
		{File: "a.py", Name: "util.fetch", Kind: "function", Line: types.LineRange{2, 5}, Parent: "util"},
	}, nil, nil))

	recB := types.FileRecord{Path: "b.py", Lang: langPtr("python"), Hash: "000000000000000b", Lines: 8}
	require.NoError(t, s.ReplaceFile(recB, []types.Symbol{
		{File: "b.py", Name: "main", Kind: "function", Line: types.LineRange{1, 8}},
	}, nil, []types.Ref{
		{File: "b.py", Sym: "main", Target: "util.fetch", Kind: "call", Line: 3},
		{File: "b.py", Sym: "main", Target: "fetch", Kind: "call", Line: 5},
	}))

	// Full dotted name and bare base name both match.
	sites, err := s.Callers("util.fetch", "")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	for _, site := range sites {
		require.NotNil(t, site.Def)
		assert.Equal(t, "main", site.Def.Name)
	}

	sites, err = s.Callers("fetch", "call")
	require.NoError(t, err)
	assert.Len(t, sites, 2)
}

func TestCallees(t *testing.T) {
	s := newTestStore(t)
	rec := types.FileRecord{Path: "b.py", Lang: langPtr("python"), Hash: "000000000000000c", Lines: 8}
	require.NoError(t, s.ReplaceFile(rec, []types.Symbol{
		{File: "b.py", Name: "main", Kind: "function", Line: types.LineRange{1, 8}},
		{File: "b.py", Name: "helper", Kind: "function", Line: types.LineRange{9, 12}},
	}, nil, []types.Ref{
		{File: "b.py", Sym: "main", Target: "helper", Kind: "call", Line: 3},
		{File: "b.py", Sym: "main", Target: "os.path.join", Kind: "call", Line: 4},
	}))

	sites, err := s.Callees("main", "")
	require.NoError(t, err)
	require.Len(t, sites, 2)

	assert.Equal(t, "helper", sites[0].Ref.Target)
	require.NotNil(t, sites[0].Def, "local definition resolves")
	assert.Nil(t, sites[1].Def, "external call has no definition")
}

func TestFileSymbolsAndChildren(t *testing.T) {
	s := newTestStore(t)
	rec := types.FileRecord{Path: "src/m.py", Lang: langPtr("python"), Hash: "000000000000000d", Lines: 20}
	require.NoError(t, s.ReplaceFile(rec, []types.Symbol{
		{File: "src/m.py", Name: "Config", Kind: "class", Line: types.LineRange{1, 15}},
		{File: "src/m.py", Name: "Config.load", Kind: "method", Line: types.LineRange{2, 6}, Parent: "Config"},
		{File: "src/m.py", Name: "Config.save", Kind: "method", Line: types.LineRange{8, 12}, Parent: "Config"},
		{File: "src/m.py", Name: "top", Kind: "function", Line: types.LineRange{17, 19}},
	}, nil, nil))

	syms, err := s.FileSymbols("src/m.py")
	require.NoError(t, err)
	require.Len(t, syms, 4)
	assert.Equal(t, "Config", syms[0].Name, "ordered by first line")

	globbed, err := s.FileSymbols("src/*.py")
	require.NoError(t, err)
	assert.Len(t, globbed, 4)

	kids, err := s.Children("src/m.py", "Config")
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, "Config.load", kids[0].Name)
	assert.Equal(t, "Config.save", kids[1].Name)
}

func TestLoadIndexFromCodec(t *testing.T) {
	idx := &codec.Index{
		Files: []types.FileRecord{
			{Path: "x.go", Lang: langPtr("go"), Hash: "00000000000000aa", Lines: 3},
		},
		Symbols: []types.Symbol{
			{File: "x.go", Name: "X", Kind: "function", Line: types.LineRange{1, 3}},
		},
	}
	s := newTestStore(t)
	require.NoError(t, s.LoadIndex(idx))

	hits, err := s.SearchSymbols("X", Filter{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
