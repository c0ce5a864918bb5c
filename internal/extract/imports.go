package extract

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/codeix/internal/lang"
)

// importEntry is one imported binding parsed out of an import
// statement's source text.
type importEntry struct {
	name   string // dotted module or binding name recorded as the symbol
	alias  string
	target string // module path recorded on the reference
}

// parseImports splits an import statement into entries. Parsing is
// textual: the statement node's shape varies per grammar, its surface
// syntax does not.
func parseImports(tag, text string) []importEntry {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))

	switch tag {
	case lang.Python:
		return parsePythonImport(text)
	case lang.Go:
		return parseGoImport(text)
	case lang.JavaScript, lang.TypeScript:
		return parseJSImport(text)
	case lang.Rust:
		return parseRustUse(text)
	case lang.Java:
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "import"), " static"))
		name = strings.TrimSpace(name)
		if name == "" {
			return nil
		}
		return []importEntry{{name: name, target: name}}
	case lang.CSharp:
		return parseCSharpUsing(text)
	case lang.PHP:
		return parsePHPUse(text)
	}
	return nil
}

func parsePythonImport(text string) []importEntry {
	if rest, ok := strings.CutPrefix(text, "from "); ok {
		parts := strings.SplitN(rest, " import ", 2)
		if len(parts) != 2 {
			return nil
		}
		module := strings.TrimSpace(parts[0])
		var entries []importEntry
		for _, item := range strings.Split(strings.Trim(parts[1], "()"), ",") {
			name, alias := splitAs(item, " as ")
			if name == "" || name == "*" {
				continue
			}
			entries = append(entries, importEntry{name: name, alias: alias, target: module})
		}
		return entries
	}

	if rest, ok := strings.CutPrefix(text, "import "); ok {
		var entries []importEntry
		for _, item := range strings.Split(rest, ",") {
			path, alias := splitAs(item, " as ")
			if path == "" {
				continue
			}
			entries = append(entries, importEntry{name: path, alias: alias, target: path})
		}
		return entries
	}
	return nil
}

// parseGoImport handles a single import_spec: `alias "path"`, `_ "path"`
// or `"path"`.
func parseGoImport(text string) []importEntry {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	path := strings.Trim(fields[len(fields)-1], "`\"")
	if path == "" {
		return nil
	}
	ent := importEntry{name: path, target: path}
	if len(fields) > 1 {
		ent.alias = fields[0]
	}
	return []importEntry{ent}
}

var (
	jsModuleRe  = regexp.MustCompile(`["']([^"']+)["']`)
	jsStarAsRe  = regexp.MustCompile(`import\s+\*\s+as\s+([A-Za-z_$][\w$]*)`)
	jsDefaultRe = regexp.MustCompile(`^import\s+([A-Za-z_$][\w$]*)\s*[,\s]`)
)

func parseJSImport(text string) []importEntry {
	m := jsModuleRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	ent := importEntry{name: m[1], target: m[1]}
	if star := jsStarAsRe.FindStringSubmatch(text); star != nil {
		ent.alias = star[1]
	} else if def := jsDefaultRe.FindStringSubmatch(text); def != nil {
		ent.alias = def[1]
	}
	return []importEntry{ent}
}

func parseRustUse(text string) []importEntry {
	body, ok := strings.CutPrefix(text, "use ")
	if !ok {
		return nil
	}
	body, alias := splitAs(body, " as ")
	if i := strings.IndexByte(body, '{'); i >= 0 {
		body = strings.TrimSuffix(strings.TrimSpace(body[:i]), "::")
	}
	name := normalizeTarget(body)
	if name == "" {
		return nil
	}
	return []importEntry{{name: name, alias: alias, target: name}}
}

func parseCSharpUsing(text string) []importEntry {
	body, ok := strings.CutPrefix(text, "using ")
	if !ok {
		return nil
	}
	body = strings.TrimPrefix(body, "static ")
	if eq := strings.Index(body, "="); eq >= 0 {
		alias := strings.TrimSpace(body[:eq])
		name := strings.TrimSpace(body[eq+1:])
		return []importEntry{{name: name, alias: alias, target: name}}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	return []importEntry{{name: body, target: body}}
}

func parsePHPUse(text string) []importEntry {
	body, ok := strings.CutPrefix(text, "use ")
	if !ok {
		return nil
	}
	var entries []importEntry
	for _, item := range strings.Split(body, ",") {
		name, alias := splitAs(item, " as ")
		name = strings.Trim(name, "\\")
		if name == "" {
			continue
		}
		name = strings.ReplaceAll(name, "\\", ".")
		entries = append(entries, importEntry{name: name, alias: alias, target: name})
	}
	return entries
}

func splitAs(item, sep string) (name, alias string) {
	item = strings.TrimSpace(item)
	if i := strings.Index(item, sep); i >= 0 {
		return strings.TrimSpace(item[:i]), strings.TrimSpace(item[i+len(sep):])
	}
	return item, ""
}

var includeRe = regexp.MustCompile(`[<"]([^>"]+)[>"]`)

// includeTarget pulls the header name out of a #include line.
func includeTarget(text string) string {
	if m := includeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
