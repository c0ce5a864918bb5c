// Package extract turns (language, source bytes) into symbols, texts and
// references using tree-sitter tag queries, with goldmark for Markdown
// and a chroma-based lexical fallback for languages without a grammar.
package extract

import (
	"bytes"
	"fmt"

	"github.com/standardbeagle/codeix/internal/lang"
	"github.com/standardbeagle/codeix/internal/types"
)

// maxDepth bounds AST traversal; deeper subtrees are skipped so
// pathological nesting cannot overflow the stack.
const maxDepth = 64

// maxTokens caps the identifier bag attached to one symbol.
const maxTokens = 64

// Result is everything extracted from one file. File fields on the
// records are left empty; the mount fills them in.
type Result struct {
	Symbols []types.Symbol
	Texts   []types.Text
	Refs    []types.Ref
	Lines   int
	// Title and Description feed the files.jsonl optional fields
	// (Markdown H1 + first paragraph, Python module docstring).
	Title       string
	Description string
}

// Extract dispatches on the language tag. A nil error with empty slices
// means the file parsed but contained nothing extractable; an error
// means the parse failed and the caller records the file with no rows.
func Extract(tag string, src []byte) (*Result, error) {
	switch {
	case tag == lang.Markdown:
		return extractMarkdown(src)
	case lang.Composite(tag):
		return extractComposite(tag, src)
	case grammarFor(tag) != nil:
		return extractTree(tag, src)
	case tag == lang.Ruby || tag == lang.Shell:
		return extractLexical(tag, src)
	default:
		// Tracked but not parsed (json, yaml, toml): line count only.
		return &Result{Lines: CountLines(src)}, nil
	}
}

// extractComposite runs the script-region preprocessor and shifts the
// emitted line numbers back into the original file.
func extractComposite(tag string, src []byte) (*Result, error) {
	out := &Result{Lines: CountLines(src)}

	for _, region := range lang.ScriptRegions(tag, src) {
		res, err := extractTree(region.Lang, region.Source)
		if err != nil {
			return nil, fmt.Errorf("script region at line %d: %w", region.LineOffset+1, err)
		}
		off := region.LineOffset
		for _, s := range res.Symbols {
			s.Line[0] += off
			s.Line[1] += off
			out.Symbols = append(out.Symbols, s)
		}
		for _, t := range res.Texts {
			t.Line[0] += off
			t.Line[1] += off
			out.Texts = append(out.Texts, t)
		}
		for _, r := range res.Refs {
			r.Line += off
			out.Refs = append(out.Refs, r)
		}
	}
	return out, nil
}

// CountLines returns the 1-based line count of src; a missing trailing
// newline still counts its partial last line.
func CountLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := bytes.Count(src, []byte{'\n'})
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}
