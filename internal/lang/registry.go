// Package lang maps file extensions to language tags and splits
// composite formats into script regions for the extractors.
package lang

import (
	"path/filepath"
	"strings"
)

// Language tags. Tags are lowercase and stable; they appear verbatim in
// files.jsonl.
const (
	Python     = "python"
	Go         = "go"
	Rust       = "rust"
	JavaScript = "javascript"
	TypeScript = "typescript"
	Java       = "java"
	CSharp     = "csharp"
	C          = "c"
	CPP        = "cpp"
	PHP        = "php"
	Zig        = "zig"
	Ruby       = "ruby"
	Markdown   = "markdown"
	Shell      = "shell"
	JSON       = "json"
	YAML       = "yaml"
	TOML       = "toml"
	HTML       = "html"
	Vue        = "vue"
	Svelte     = "svelte"
	Astro      = "astro"
)

var byExtension = map[string]string{
	".py":       Python,
	".go":       Go,
	".rs":       Rust,
	".js":       JavaScript,
	".mjs":      JavaScript,
	".cjs":      JavaScript,
	".jsx":      JavaScript,
	".ts":       TypeScript,
	".mts":      TypeScript,
	".cts":      TypeScript,
	".tsx":      TypeScript,
	".java":     Java,
	".cs":       CSharp,
	".c":        C,
	".h":        C,
	".cpp":      CPP,
	".cc":       CPP,
	".cxx":      CPP,
	".hpp":      CPP,
	".hh":       CPP,
	".php":      PHP,
	".phtml":    PHP,
	".zig":      Zig,
	".rb":       Ruby,
	".md":       Markdown,
	".markdown": Markdown,
	".sh":       Shell,
	".bash":     Shell,
	".json":     JSON,
	".yaml":     YAML,
	".yml":      YAML,
	".toml":     TOML,
	".html":     HTML,
	".htm":      HTML,
	".vue":      Vue,
	".svelte":   Svelte,
	".astro":    Astro,
}

// Detect returns the language tag for a path, or "" when the extension
// is not tracked.
func Detect(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return byExtension[ext]
}

// Indexable reports whether files with this tag carry extractable
// content. Untagged files are recorded in files.jsonl but not parsed.
func Indexable(tag string) bool {
	switch tag {
	case "", JSON, YAML, TOML:
		return false
	}
	return true
}

// Composite reports whether the tag needs the preprocessor to locate
// embedded script regions before extraction.
func Composite(tag string) bool {
	switch tag {
	case HTML, Vue, Svelte, Astro:
		return true
	}
	return false
}
