package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBuild_WritesIndexAndSummarizes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"),
		[]byte("def a():\n    pass\n"), 0o644))

	require.NoError(t, runBuild(root))

	_, err := os.Stat(filepath.Join(root, ".codeindex", "index.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, ".codeindex", "files.jsonl"))
	assert.NoError(t, err)
}

func TestSummaryLine(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, "indexed 3 files, skipped 1, failed 0", summaryLine(3, 1, 0))

	t.Setenv("NO_COLOR", "")
	colored := summaryLine(0, 0, 2)
	assert.Contains(t, colored, "failed 2")
	assert.Contains(t, colored, "\x1b[31m", "failures colour the summary red")
}
