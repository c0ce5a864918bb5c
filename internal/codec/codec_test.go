package codec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/standardbeagle/codeix/internal/errors"
	"github.com/standardbeagle/codeix/internal/types"
)

func langPtr(s string) *string { return &s }

func sampleIndex() *Index {
	return &Index{
		Manifest: types.Manifest{
			Version:   types.SpecVersion,
			Name:      "demo",
			Root:      ".",
			Languages: []string{"go", "python"},
		},
		Files: []types.FileRecord{
			{Path: "src/b.py", Lang: langPtr("python"), Hash: "00112233aabbccdd", Lines: 4},
			{Path: "src/a.py", Lang: langPtr("python"), Hash: "ffeeddccbbaa9988", Lines: 10},
			{Path: "README.txt", Lang: nil, Hash: "0123456789abcdef", Lines: 2},
		},
		Symbols: []types.Symbol{
			{File: "src/b.py", Name: "g", Kind: "function", Line: types.LineRange{3, 4}},
			{File: "src/a.py", Name: "f", Kind: "function", Line: types.LineRange{2, 4}, Sig: "def f(x: int) -> int", Visibility: "public"},
			{File: "src/a.py", Name: "os", Kind: "import", Line: types.LineRange{1, 1}},
		},
		Texts: []types.Text{
			{File: "src/a.py", Kind: "docstring", Line: types.LineRange{3, 3}, Text: "doc", Parent: "f"},
		},
		Refs: []types.Ref{
			{File: "src/a.py", Target: "os", Kind: "import", Line: 1},
		},
	}
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Write(root, sampleIndex()))

	loaded, err := Load(root)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	want := sampleIndex()
	Canonicalize(want)
	assert.Equal(t, want.Files, loaded.Files)
	assert.Equal(t, want.Symbols, loaded.Symbols)
	assert.Equal(t, want.Texts, loaded.Texts)
	assert.Equal(t, want.Refs, loaded.Refs)
	assert.Equal(t, want.Manifest, loaded.Manifest)
}

func TestWrite_Deterministic(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	require.NoError(t, Write(rootA, sampleIndex()))
	require.NoError(t, Write(rootB, sampleIndex()))

	for _, name := range []string{"files.jsonl", "symbols.jsonl", "texts.jsonl", "refs.jsonl", "index.json"} {
		a, err := os.ReadFile(filepath.Join(Dir(rootA), name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(Dir(rootB), name))
		require.NoError(t, err)
		assert.Equal(t, a, b, "%s must be byte-identical", name)
	}
}

func TestWrite_SortAndShape(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Write(root, sampleIndex()))

	files, err := os.ReadFile(filepath.Join(Dir(root), "files.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(files), "\n"), "\n")
	require.Len(t, lines, 3)

	// Strictly path-sorted.
	assert.True(t, strings.Contains(lines[0], `"path":"README.txt"`))
	assert.True(t, strings.Contains(lines[1], `"path":"src/a.py"`))
	assert.True(t, strings.Contains(lines[2], `"path":"src/b.py"`))

	// lang is explicitly null for unknown languages, never omitted.
	assert.Contains(t, lines[0], `"lang":null`)

	symbols, err := os.ReadFile(filepath.Join(Dir(root), "symbols.jsonl"))
	require.NoError(t, err)
	symLines := strings.Split(strings.TrimRight(string(symbols), "\n"), "\n")
	require.Len(t, symLines, 3)
	assert.Contains(t, symLines[0], `"name":"os"`, "src/a.py line 1 first")
	assert.Contains(t, symLines[1], `"name":"f"`)
	assert.Contains(t, symLines[2], `"name":"g"`)

	// Optional fields are omitted, not null.
	assert.NotContains(t, symLines[0], `"parent"`)
	assert.NotContains(t, symLines[0], `"sig"`)

	// No trailing newline issues: every line is one JSON object, LF only.
	assert.False(t, strings.Contains(string(symbols), "\r"))
	assert.True(t, strings.HasSuffix(string(symbols), "\n"))
}

func TestLoad_MissingIndexIsNil(t *testing.T) {
	idx, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestLoad_SchemaMismatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(Dir(root), 0o755))
	manifest := `{"version":"2.0","name":"x","root":".","languages":[]}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(Dir(root), "index.json"), []byte(manifest), 0o644))

	_, err := Load(root)
	require.Error(t, err)
	var schemaErr *xerrors.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestLoad_MinorVersionAccepted(t *testing.T) {
	root := t.TempDir()
	idx := sampleIndex()
	idx.Manifest.Version = "1.3"
	require.NoError(t, Write(root, idx))

	loaded, err := Load(root)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "1.3", loaded.Manifest.Version)
}

func TestLoad_UnknownFieldsIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Write(root, sampleIndex()))

	// A future minor writer added a field; readers must ignore it.
	path := filepath.Join(Dir(root), "files.jsonl")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	patched := strings.Replace(string(data), `"lines":2`, `"lines":2,"future":true`, 1)
	require.NoError(t, os.WriteFile(path, []byte(patched), 0o644))

	loaded, err := Load(root)
	require.NoError(t, err)
	require.Len(t, loaded.Files, 3)
}

func TestWrite_NoTempFilesLeft(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Write(root, sampleIndex()))

	entries, err := os.ReadDir(Dir(root))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}
