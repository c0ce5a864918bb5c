package mounttable

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func mkRepo(t *testing.T, root string, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel), ".git"), 0o755))
}

func TestTable_RootRepo(t *testing.T) {
	root := t.TempDir()
	mkRepo(t, root, ".")
	writeTree(t, root, map[string]string{"a.py": "def a():\n    pass\n"})

	tbl, err := Open(root, Options{})
	require.NoError(t, err)
	defer tbl.CloseAll(context.Background())

	entries := tbl.Mounts()
	require.Len(t, entries, 1)
	assert.Equal(t, ".", entries[0].Rel)

	n, err := entries[0].Mount.Store().FileCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTable_ContainerRootWithChildren(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"stray.py":        "def stray():\n    pass\n",
		"repos/one/a.py":  "def a():\n    pass\n",
		"repos/two/b.py":  "def b():\n    pass\n",
	})
	mkRepo(t, root, "repos/one")
	mkRepo(t, root, "repos/two")

	tbl, err := Open(root, Options{})
	require.NoError(t, err)
	defer tbl.CloseAll(context.Background())

	entries := tbl.Mounts()
	require.Len(t, entries, 3)
	assert.Equal(t, ".", entries[0].Rel)
	assert.Equal(t, "repos/one", entries[1].Rel)
	assert.Equal(t, "repos/two", entries[2].Rel)

	// The container root indexes nothing itself.
	n, err := entries[0].Mount.Store().FileCount()
	require.NoError(t, err)
	assert.Zero(t, n, "container mounts hold zero files")

	n, err = entries[1].Mount.Store().FileCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTable_NestedChildNotDoubleIndexed(t *testing.T) {
	root := t.TempDir()
	mkRepo(t, root, ".")
	writeTree(t, root, map[string]string{
		"top.py":           "def top():\n    pass\n",
		"vendorlib/in.py":  "def inner():\n    pass\n",
	})
	mkRepo(t, root, "vendorlib")

	tbl, err := Open(root, Options{})
	require.NoError(t, err)
	defer tbl.CloseAll(context.Background())

	entries := tbl.Mounts()
	require.Len(t, entries, 2)

	rootPaths, err := entries[0].Mount.Store().Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"top.py"}, rootPaths, "parent skips the child subtree")

	childPaths, err := entries[1].Mount.Store().Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"in.py"}, childPaths, "child paths are relative to the child root")
}

func TestTable_Route(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"repos/one/a.py": "def a():\n    pass\n"})
	mkRepo(t, root, "repos/one")

	tbl, err := Open(root, Options{})
	require.NoError(t, err)
	defer tbl.CloseAll(context.Background())

	all, err := tbl.Route("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := tbl.Route("repos/one")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "repos/one", one[0].Rel)

	_, err = tbl.Route("repos/missing")
	assert.Error(t, err)
}

func TestTable_FlushAllWritesEveryMount(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"repos/one/a.py": "def a():\n    pass\n"})
	mkRepo(t, root, "repos/one")

	tbl, err := Open(root, Options{})
	require.NoError(t, err)
	defer tbl.CloseAll(context.Background())

	require.NoError(t, tbl.FlushAll())
	_, err = os.Stat(filepath.Join(root, "repos", "one", ".codeindex", "files.jsonl"))
	assert.NoError(t, err)
}
