package extract

import (
	"sort"
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codeix/internal/lang"
	"github.com/standardbeagle/codeix/internal/types"
)

// buildTexts assembles comment, docstring and string entries, applying
// the trivia filter and attaching enclosing symbols.
func buildTexts(tag string, out *Result, decls []*decl, comments, strs, imports []span, src []byte) {
	consumed := make(map[int]struct{})

	// Python docstrings: a string expression statement heading a module,
	// function or class body.
	if tag == lang.Python {
		for i, sp := range strs {
			kind, parentDecl, isModule := pythonDocstring(sp.node, decls)
			if kind == "" {
				continue
			}
			consumed[i] = struct{}{}
			text := cleanString(sp.text)
			if trivialText(text) {
				continue
			}
			entry := types.Text{
				Kind: types.TextDocstring,
				Line: types.LineRange{sp.line0, sp.line1},
				Text: text,
			}
			if parentDecl != nil {
				entry.Parent = parentDecl.dotted
			}
			out.Texts = append(out.Texts, entry)
			if isModule && out.Description == "" {
				out.Description = text
			}
		}
	}

	for i, sp := range strs {
		if _, ok := consumed[i]; ok {
			continue
		}
		if insideAny(imports, sp.startByte) {
			continue
		}
		text := cleanString(sp.text)
		if trivialText(text) {
			continue
		}
		entry := types.Text{
			Kind: types.TextString,
			Line: types.LineRange{sp.line0, sp.line1},
			Text: text,
		}
		if encl := enclosingDecl(decls, sp.startByte); encl != nil {
			entry.Parent = encl.dotted
		}
		out.Texts = append(out.Texts, entry)
	}

	for _, c := range mergeComments(comments) {
		if c.line0 == 1 && strings.HasPrefix(c.text, "#!") {
			continue // shebang
		}
		kind := types.TextComment
		if docComment(c.text) {
			kind = types.TextDocstring
		}
		text := cleanComment(c.text)
		if trivialText(text) {
			continue
		}
		entry := types.Text{
			Kind: kind,
			Line: types.LineRange{c.line0, c.line1},
			Text: text,
		}
		if kind == types.TextDocstring {
			if next := followingDecl(decls, c.line1); next != nil {
				entry.Parent = next.dotted
			}
		}
		if entry.Parent == "" {
			if encl := enclosingDecl(decls, c.startByte); encl != nil {
				entry.Parent = encl.dotted
			}
		}
		out.Texts = append(out.Texts, entry)
	}
}

// pythonDocstring reports whether a string node is the first statement
// of a module, function or class body.
func pythonDocstring(node tree_sitter.Node, decls []*decl) (kind string, parent *decl, isModule bool) {
	stmt := node.Parent()
	if stmt == nil || stmt.Kind() != "expression_statement" {
		return "", nil, false
	}
	body := stmt.Parent()
	if body == nil {
		return "", nil, false
	}

	first := body.NamedChild(0)
	if first == nil || first.StartByte() != stmt.StartByte() {
		return "", nil, false
	}

	switch body.Kind() {
	case "module":
		return types.TextDocstring, nil, true
	case "block":
		def := body.Parent()
		if def == nil {
			return "", nil, false
		}
		switch def.Kind() {
		case "function_definition", "class_definition":
			return types.TextDocstring, declAt(decls, int(def.StartByte())), false
		}
	}
	return "", nil, false
}

func declAt(decls []*decl, startByte int) *decl {
	for _, d := range decls {
		if d.startByte == startByte {
			return d
		}
	}
	return nil
}

// followingDecl finds the declaration a doc comment documents: the
// nearest one starting within two lines below the comment.
func followingDecl(decls []*decl, afterLine int) *decl {
	var best *decl
	for _, d := range decls {
		if d.skip || d.line0 <= afterLine || d.line0 > afterLine+2 {
			continue
		}
		if best == nil || d.line0 < best.line0 {
			best = d
		}
	}
	return best
}

func insideAny(spans []span, pos int) bool {
	for _, sp := range spans {
		if sp.startByte <= pos && pos < sp.endByte {
			return true
		}
	}
	return false
}

// mergeComments joins runs of adjacent single-line comments of the same
// style into one entry.
func mergeComments(comments []span) []span {
	if len(comments) == 0 {
		return nil
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].startByte < comments[j].startByte
	})

	var merged []span
	cur := comments[0]
	for _, c := range comments[1:] {
		sameRun := c.line0 == cur.line1+1 &&
			lineComment(c.text) && lineComment(cur.text) &&
			docComment(c.text) == docComment(cur.text)
		if sameRun {
			cur.text += "\n" + c.text
			cur.line1 = c.line1
			cur.endByte = c.endByte
			continue
		}
		merged = append(merged, cur)
		cur = c
	}
	return append(merged, cur)
}

func lineComment(s string) bool {
	return strings.HasPrefix(s, "//") || strings.HasPrefix(s, "#")
}

func docComment(s string) bool {
	return strings.HasPrefix(s, "///") || strings.HasPrefix(s, "//!") ||
		strings.HasPrefix(s, "/**")
}

// cleanComment strips comment markers per line and rejoins with \n.
func cleanComment(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"///", "//!", "//", "#"} {
			if strings.HasPrefix(line, prefix) {
				line = line[len(prefix):]
				break
			}
		}
		line = strings.TrimPrefix(line, "/**")
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimPrefix(strings.TrimSpace(line), "* ")
		if line == "*" {
			line = ""
		}
		lines[i] = strings.TrimSpace(line)
	}
	// Drop blank leading/trailing lines left by block markers.
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// cleanString strips literal prefixes and quotes.
func cleanString(s string) string {
	s = strings.TrimSpace(s)
	for len(s) > 0 {
		c := s[0]
		if (c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') && len(s) > 1 &&
			(s[1] == '"' || s[1] == '\'' || s[1] == '`' ||
				(s[1] >= 'a' && s[1] <= 'z') || (s[1] >= 'A' && s[1] <= 'Z')) {
			// Literal prefixes like r"", b"", f"", rb"".
			s = s[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, "'''", `"`, "'", "`"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			s = s[len(q) : len(s)-len(q)]
			break
		}
	}
	return strings.TrimSpace(s)
}

// trivialText filters entries with no prose value.
func trivialText(s string) bool {
	if len(s) < 2 || s == "use strict" {
		return true
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
