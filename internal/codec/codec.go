// Package codec reads and writes the .codeindex on-disk contract:
// three JSONL tables, a refs sidecar and the index.json manifest, with
// canonical ordering so identical input produces identical bytes.
package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	xerrors "github.com/standardbeagle/codeix/internal/errors"
	"github.com/standardbeagle/codeix/internal/types"
)

// DirName is the index directory committed beside the source.
const DirName = ".codeindex"

// LockName is the advisory lock file inside DirName.
const LockName = ".lock"

const (
	filesName    = "files.jsonl"
	symbolsName  = "symbols.jsonl"
	textsName    = "texts.jsonl"
	refsName     = "refs.jsonl"
	manifestName = "index.json"
)

// maxLineBytes bounds one JSONL line on read.
const maxLineBytes = 16 << 20

// Index is the full on-disk state of one mount.
type Index struct {
	Manifest types.Manifest
	Files    []types.FileRecord
	Symbols  []types.Symbol
	Texts    []types.Text
	Refs     []types.Ref
}

// Dir returns the index directory for a mount root.
func Dir(root string) string {
	return filepath.Join(root, DirName)
}

// Canonicalize sorts all tables into their on-disk order: files by
// path; symbols, texts and refs by (file, first line), ties keeping
// extractor emission order.
func Canonicalize(idx *Index) {
	sort.SliceStable(idx.Files, func(i, j int) bool {
		return idx.Files[i].Path < idx.Files[j].Path
	})
	sort.SliceStable(idx.Symbols, func(i, j int) bool {
		if idx.Symbols[i].File != idx.Symbols[j].File {
			return idx.Symbols[i].File < idx.Symbols[j].File
		}
		return idx.Symbols[i].Line[0] < idx.Symbols[j].Line[0]
	})
	sort.SliceStable(idx.Texts, func(i, j int) bool {
		if idx.Texts[i].File != idx.Texts[j].File {
			return idx.Texts[i].File < idx.Texts[j].File
		}
		return idx.Texts[i].Line[0] < idx.Texts[j].Line[0]
	})
	sort.SliceStable(idx.Refs, func(i, j int) bool {
		if idx.Refs[i].File != idx.Refs[j].File {
			return idx.Refs[i].File < idx.Refs[j].File
		}
		return idx.Refs[i].Line < idx.Refs[j].Line
	})
}

// Write serializes the index under root atomically: each file goes to a
// .tmp sibling then renames into place, and the manifest lands last so
// a torn write never presents a manifest ahead of its tables.
func Write(root string, idx *Index) error {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	Canonicalize(idx)

	if err := writeJSONL(filepath.Join(dir, filesName), len(idx.Files), func(enc *json.Encoder, i int) error {
		return enc.Encode(&idx.Files[i])
	}); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, symbolsName), len(idx.Symbols), func(enc *json.Encoder, i int) error {
		return enc.Encode(&idx.Symbols[i])
	}); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, textsName), len(idx.Texts), func(enc *json.Encoder, i int) error {
		return enc.Encode(&idx.Texts[i])
	}); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, refsName), len(idx.Refs), func(enc *json.Encoder, i int) error {
		return enc.Encode(&idx.Refs[i])
	}); err != nil {
		return err
	}

	if err := writeGitignore(dir); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&idx.Manifest); err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, manifestName), buf.Bytes())
}

func writeJSONL(path string, n int, encode func(*json.Encoder, int) error) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := 0; i < n; i++ {
		if err := encode(enc, i); err != nil {
			return err
		}
	}
	return atomicWrite(path, buf.Bytes())
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// writeGitignore keeps the lock and temp files out of version control.
func writeGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(".lock\n*.tmp\n"), 0o644)
}

// Exists reports whether root carries an index manifest.
func Exists(root string) bool {
	_, err := os.Stat(filepath.Join(Dir(root), manifestName))
	return err == nil
}

// Load reads the index under root. Returns (nil, nil) when no manifest
// exists, and a SchemaError when the format major is unsupported.
func Load(root string) (*Index, error) {
	dir := Dir(root)
	manifestPath := filepath.Join(dir, manifestName)

	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	idx := &Index{}
	if err := json.Unmarshal(data, &idx.Manifest); err != nil {
		return nil, &xerrors.SchemaError{Path: manifestPath, Found: "?", Message: err.Error()}
	}
	if major := strings.SplitN(idx.Manifest.Version, ".", 2)[0]; major != "1" {
		return nil, &xerrors.SchemaError{
			Path:    manifestPath,
			Found:   idx.Manifest.Version,
			Message: "this build reads format major 1",
		}
	}

	if err := readJSONL(filepath.Join(dir, filesName), func(line []byte) error {
		var rec types.FileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		idx.Files = append(idx.Files, rec)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := readJSONL(filepath.Join(dir, symbolsName), func(line []byte) error {
		var rec types.Symbol
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		idx.Symbols = append(idx.Symbols, rec)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := readJSONL(filepath.Join(dir, textsName), func(line []byte) error {
		var rec types.Text
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		idx.Texts = append(idx.Texts, rec)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := readJSONL(filepath.Join(dir, refsName), func(line []byte) error {
		var rec types.Ref
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		idx.Refs = append(idx.Refs, rec)
		return nil
	}); err != nil {
		return nil, err
	}

	return idx, nil
}

// readJSONL feeds each non-empty line to fn. A missing file is not an
// error: the refs sidecar is optional for older writers.
func readJSONL(path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return scanner.Err()
}
