package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codeix/internal/debug"
	"github.com/standardbeagle/codeix/internal/lang"
	"github.com/standardbeagle/codeix/internal/types"
)

// decl is one captured declaration before nesting resolution.
type decl struct {
	kind      string
	name      string
	startByte int
	endByte   int
	nameStart int
	nameEnd   int
	line0     int
	line1     int
	node      tree_sitter.Node
	exported  bool
	dotted    string
	parentDot string
	skip      bool
}

// span is a captured comment, string, call or type reference site.
type span struct {
	startByte int
	endByte   int
	line0     int
	line1     int
	text      string
	node      tree_sitter.Node
}

func nodeText(n *tree_sitter.Node, src []byte) string {
	start, end := int(n.StartByte()), int(n.EndByte())
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return string(src[start:end])
}

func newSpan(n tree_sitter.Node, src []byte) span {
	return span{
		startByte: int(n.StartByte()),
		endByte:   int(n.EndByte()),
		line0:     int(n.StartPosition().Row) + 1,
		line1:     int(n.EndPosition().Row) + 1,
		text:      nodeText(&n, src),
		node:      n,
	}
}

// extractTree runs the language's tag query and assembles the result.
func extractTree(tag string, src []byte) (*Result, error) {
	g := grammarFor(tag)
	if g == nil {
		return nil, fmt.Errorf("no grammar for language %q", tag)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(g.language); err != nil {
		return nil, fmt.Errorf("set language %q: %w", tag, err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %q", tag)
	}
	defer tree.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(g.query, tree.RootNode(), src)

	var (
		decls    []*decl
		comments []span
		strs     []span
		calls    []span
		imports  []span
		includes []span
		typerefs []span
	)

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		var main *tree_sitter.QueryCapture
		var nameNode *tree_sitter.Node
		for i := range match.Captures {
			c := &match.Captures[i]
			capName := g.captures[c.Index]
			if strings.ContainsRune(capName, '.') {
				if strings.HasSuffix(capName, ".name") {
					nameNode = &c.Node
				}
				continue
			}
			main = c
		}
		if main == nil {
			continue
		}

		capName := g.captures[main.Index]
		switch capName {
		case "comment":
			comments = append(comments, newSpan(main.Node, src))
		case "string":
			strs = append(strs, newSpan(main.Node, src))
		case "call":
			if nameNode != nil {
				s := newSpan(main.Node, src)
				s.text = nodeText(nameNode, src)
				calls = append(calls, s)
			}
		case "import":
			imports = append(imports, newSpan(main.Node, src))
		case "include":
			includes = append(includes, newSpan(main.Node, src))
		case "typeref":
			typerefs = append(typerefs, newSpan(main.Node, src))
		default:
			d := buildDecl(tag, capName, main.Node, nameNode, src)
			if d != nil {
				decls = append(decls, d)
			}
		}
	}

	nest(decls)
	pyAll := pythonAll(tag, src)

	out := &Result{Lines: CountLines(src)}

	// Import statements become symbols and refs together.
	refKind := types.RefImport
	for _, sp := range imports {
		for _, ent := range parseImports(tag, sp.text) {
			out.Symbols = append(out.Symbols, types.Symbol{
				Name:  ent.name,
				Kind:  types.KindImport,
				Line:  types.LineRange{sp.line0, sp.line1},
				Alias: ent.alias,
			})
			out.Refs = append(out.Refs, types.Ref{
				Target: ent.target,
				Kind:   refKind,
				Line:   sp.line0,
			})
		}
	}
	for _, sp := range includes {
		if target := includeTarget(sp.text); target != "" {
			out.Symbols = append(out.Symbols, types.Symbol{
				Name: target,
				Kind: types.KindImport,
				Line: types.LineRange{sp.line0, sp.line1},
			})
			out.Refs = append(out.Refs, types.Ref{
				Target: target,
				Kind:   types.RefInclude,
				Line:   sp.line0,
			})
		}
	}

	// Declarations.
	var identifiers []span
	if g.tokenBag {
		root := tree.RootNode()
		collectIdentifiers(*root, src, 0, &identifiers)
	}
	for _, d := range decls {
		if d.skip {
			continue
		}
		sym := types.Symbol{
			Name:       d.dotted,
			Kind:       d.kind,
			Line:       types.LineRange{d.line0, d.line1},
			Parent:     d.parentDot,
			Visibility: declVisibility(tag, d, src, pyAll),
			Sig:        buildSig(d, src),
		}
		if g.tokenBag {
			sym.Tokens = tokenBag(d, identifiers)
		}
		out.Symbols = append(out.Symbols, sym)
	}

	// Texts.
	buildTexts(tag, out, decls, comments, strs, imports, src)

	// Call references.
	for _, c := range calls {
		target := normalizeTarget(c.text)
		if target == "" {
			continue
		}
		ref := types.Ref{Target: target, Kind: types.RefCall, Line: c.line0}
		if encl := enclosingDecl(decls, c.startByte); encl != nil {
			ref.Sym = encl.dotted
		}
		out.Refs = append(out.Refs, ref)
	}

	// Type references, skipping the declaration name sites themselves.
	seenType := make(map[string]struct{})
	for _, tr := range typerefs {
		if isDeclName(decls, tr.startByte, tr.endByte) {
			continue
		}
		key := fmt.Sprintf("%d:%s", tr.line0, tr.text)
		if _, dup := seenType[key]; dup {
			continue
		}
		seenType[key] = struct{}{}
		ref := types.Ref{Target: tr.text, Kind: types.RefType, Line: tr.line0}
		if encl := enclosingDecl(decls, tr.startByte); encl != nil {
			ref.Sym = encl.dotted
		}
		out.Refs = append(out.Refs, ref)
	}

	sortResult(out)
	return out, nil
}

// buildDecl resolves a declaration capture into a decl, handling the
// captures that need node inspection rather than a plain .name.
func buildDecl(tag, capName string, node tree_sitter.Node, nameNode *tree_sitter.Node, src []byte) *decl {
	d := &decl{
		kind:      capName,
		startByte: int(node.StartByte()),
		endByte:   int(node.EndByte()),
		line0:     int(node.StartPosition().Row) + 1,
		line1:     int(node.EndPosition().Row) + 1,
		node:      node,
	}

	if nameNode != nil {
		d.name = nodeText(nameNode, src)
		d.nameStart = int(nameNode.StartByte())
		d.nameEnd = int(nameNode.EndByte())
	}

	switch capName {
	case "impl":
		// Rust impl blocks take their name from the implemented type.
		if t := node.ChildByFieldName("type"); t != nil {
			d.name = nodeText(t, src)
		}
		d.kind = types.KindImpl
	case "type":
		// Go type declarations: struct, interface or alias by shape.
		d.kind = goTypeKind(&node)
	case "variable":
		if tag == lang.JavaScript || tag == lang.TypeScript {
			d.kind = jsVariableKind(&node, src)
		}
	}

	if d.name == "" {
		return nil
	}

	if tag == lang.JavaScript || tag == lang.TypeScript {
		d.exported = hasExportAncestor(&node)
	}
	return d
}

// goTypeKind inspects a type_declaration for its underlying shape.
func goTypeKind(node *tree_sitter.Node) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() != "type_spec" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			switch child.Child(j).Kind() {
			case "struct_type":
				return types.KindStruct
			case "interface_type":
				return types.KindInterface
			}
		}
	}
	return types.KindTypeAlias
}

// jsVariableKind refines variable_declarator captures: function values
// are functions, const declarations are constants.
func jsVariableKind(node *tree_sitter.Node, src []byte) string {
	if v := node.ChildByFieldName("value"); v != nil {
		switch v.Kind() {
		case "arrow_function", "function_expression", "function", "generator_function":
			return types.KindFunction
		}
	}
	if parent := node.Parent(); parent != nil && parent.Kind() == "lexical_declaration" {
		if strings.HasPrefix(nodeText(parent, src), "const") {
			return types.KindConstant
		}
	}
	return types.KindVariable
}

func hasExportAncestor(node *tree_sitter.Node) bool {
	p := node.Parent()
	for i := 0; p != nil && i < 3; i++ {
		if p.Kind() == "export_statement" {
			return true
		}
		p = p.Parent()
	}
	return false
}

// nest computes dotted names and parents by byte-range containment,
// and reclassifies functions inside containers as methods.
func nest(decls []*decl) {
	sort.SliceStable(decls, func(i, j int) bool {
		if decls[i].startByte != decls[j].startByte {
			return decls[i].startByte < decls[j].startByte
		}
		return decls[i].endByte > decls[j].endByte
	})

	var stack []*decl
	for _, d := range decls {
		for len(stack) > 0 && stack[len(stack)-1].endByte <= d.startByte {
			stack = stack[:len(stack)-1]
		}
		if len(stack) >= maxDepth {
			debug.Logf("extract: skipping %q, nesting depth exceeds %d", d.name, maxDepth)
			d.skip = true
			continue
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			d.parentDot = parent.dotted
			d.dotted = parent.dotted + "." + d.name
			if d.kind == types.KindFunction {
				switch parent.kind {
				case types.KindClass, types.KindInterface, types.KindImpl, "trait":
					d.kind = types.KindMethod
				}
			}
		} else {
			d.dotted = d.name
		}
		stack = append(stack, d)
	}
}

// enclosingDecl returns the innermost declaration containing pos.
func enclosingDecl(decls []*decl, pos int) *decl {
	var best *decl
	for _, d := range decls {
		if d.skip {
			continue
		}
		if d.startByte <= pos && pos < d.endByte {
			if best == nil || d.startByte >= best.startByte {
				best = d
			}
		}
	}
	return best
}

func isDeclName(decls []*decl, start, end int) bool {
	for _, d := range decls {
		if d.nameStart == start && d.nameEnd == end {
			return true
		}
	}
	return false
}

var allAssignRe = regexp.MustCompile(`(?m)^__all__\s*=\s*[\[(]([^\])]*)[\])]`)
var allNameRe = regexp.MustCompile(`["']([^"']+)["']`)

// pythonAll parses a module-level __all__ list, the first authority for
// Python visibility.
func pythonAll(tag string, src []byte) map[string]bool {
	if tag != lang.Python {
		return nil
	}
	m := allAssignRe.FindSubmatch(src)
	if m == nil {
		return nil
	}
	names := make(map[string]bool)
	for _, g := range allNameRe.FindAllSubmatch(m[1], -1) {
		names[string(g[1])] = true
	}
	return names
}

// declVisibility applies the per-language visibility rules.
func declVisibility(tag string, d *decl, src []byte, pyAll map[string]bool) string {
	switch tag {
	case lang.Rust:
		for i := uint(0); i < d.node.ChildCount(); i++ {
			ch := d.node.Child(i)
			if ch.Kind() == "visibility_modifier" {
				if strings.ContainsRune(nodeText(ch, src), '(') {
					return types.VisInternal
				}
				return types.VisPublic
			}
		}
		return types.VisPrivate

	case lang.Python:
		base := d.name
		if pyAll != nil && pyAll[base] {
			return types.VisPublic
		}
		switch {
		case strings.HasPrefix(base, "__") && strings.HasSuffix(base, "__"):
			// Dunders are interface, not name-mangled internals.
			return types.VisPublic
		case strings.HasPrefix(base, "__"):
			return types.VisPrivate
		case strings.HasPrefix(base, "_"):
			return types.VisInternal
		}
		return types.VisPublic

	case lang.TypeScript, lang.JavaScript:
		if d.exported {
			return types.VisPublic
		}
		return ""

	case lang.Go:
		r, _ := utf8.DecodeRuneInString(d.name)
		if unicode.IsUpper(r) {
			return types.VisPublic
		}
		return types.VisInternal

	case lang.Java:
		return modifierVisibility(&d.node, src, "modifiers")
	case lang.CSharp:
		return modifierVisibility(&d.node, src, "modifier")
	}
	return ""
}

// modifierVisibility maps explicit Java/C# modifier keywords; absent
// modifiers record nothing.
func modifierVisibility(node *tree_sitter.Node, src []byte, kind string) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		ch := node.Child(i)
		if ch.Kind() != kind {
			continue
		}
		t := nodeText(ch, src)
		switch {
		case strings.Contains(t, "public"):
			return types.VisPublic
		case strings.Contains(t, "private"):
			return types.VisPrivate
		case strings.Contains(t, "protected"), strings.Contains(t, "internal"):
			return types.VisInternal
		}
	}
	return ""
}

// buildSig takes the declaration text up to its body, first line only.
func buildSig(d *decl, src []byte) string {
	switch d.kind {
	case types.KindFunction, types.KindMethod, types.KindClass,
		types.KindStruct, types.KindInterface, types.KindEnum:
	default:
		return ""
	}

	end := d.endByte
	if body := d.node.ChildByFieldName("body"); body != nil {
		end = int(body.StartByte())
	}
	text := string(src[d.startByte:min(end, len(src))])
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "{")
	text = strings.TrimSuffix(text, ":")
	return strings.TrimSpace(text)
}

var identifierKinds = map[string]struct{}{
	"identifier":                    {},
	"field_identifier":              {},
	"property_identifier":           {},
	"type_identifier":               {},
	"namespace_identifier":          {},
	"shorthand_property_identifier": {},
	"name":                          {},
}

// collectIdentifiers gathers identifier leaves for the tokens bag.
// Traversal depth is bounded; deeper subtrees are skipped.
func collectIdentifiers(node tree_sitter.Node, src []byte, depth int, out *[]span) {
	if depth > maxDepth {
		debug.Logf("extract: identifier walk depth exceeds %d, skipping subtree", maxDepth)
		return
	}
	if _, ok := identifierKinds[node.Kind()]; ok {
		*out = append(*out, newSpan(node, src))
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		collectIdentifiers(*node.Child(i), src, depth+1, out)
	}
}

// tokenBag joins the distinct identifiers inside a symbol's body,
// excluding the symbol's own name.
func tokenBag(d *decl, identifiers []span) string {
	switch d.kind {
	case types.KindFunction, types.KindMethod, types.KindClass,
		types.KindStruct, types.KindInterface:
	default:
		return ""
	}

	start, end := d.startByte, d.endByte
	if body := d.node.ChildByFieldName("body"); body != nil {
		start = int(body.StartByte())
		end = int(body.EndByte())
	}

	seen := make(map[string]struct{})
	var bag []string
	for _, id := range identifiers {
		if id.startByte < start || id.endByte > end {
			continue
		}
		if id.text == d.name {
			continue
		}
		if _, dup := seen[id.text]; dup {
			continue
		}
		seen[id.text] = struct{}{}
		bag = append(bag, id.text)
		if len(bag) >= maxTokens {
			break
		}
	}
	return strings.Join(bag, " ")
}

// normalizeTarget rewrites language path separators to the dotted form
// used for reference matching.
func normalizeTarget(s string) string {
	s = strings.ReplaceAll(s, "::", ".")
	s = strings.ReplaceAll(s, "->", ".")
	s = strings.ReplaceAll(s, "?.", ".")
	return strings.TrimSpace(s)
}

// sortResult orders rows the way the codec will serialize them: by
// start line, preserving extractor emission order within a line.
func sortResult(out *Result) {
	sort.SliceStable(out.Symbols, func(i, j int) bool {
		return out.Symbols[i].Line[0] < out.Symbols[j].Line[0]
	})
	sort.SliceStable(out.Texts, func(i, j int) bool {
		return out.Texts[i].Line[0] < out.Texts[j].Line[0]
	})
	sort.SliceStable(out.Refs, func(i, j int) bool {
		return out.Refs[i].Line < out.Refs[j].Line
	})
}
