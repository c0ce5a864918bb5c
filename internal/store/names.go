package store

import (
	"strings"
	"unicode"
)

// splitIdentifier breaks a symbol name into searchable words across
// camelCase, snake_case and dotted boundaries: "HTMLParser.load_all"
// yields [html, parser, load, all].
func splitIdentifier(name string) []string {
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r):
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			prevUpper := i > 0 && unicode.IsUpper(runes[i-1])
			if prevLower || (prevUpper && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// ftsNameDoc appends an identifier's split words to the raw name so
// word-level queries match camelCase symbols while exact-name matches
// keep the shortest document.
func ftsNameDoc(name string) string {
	words := splitIdentifier(name)
	if len(words) <= 1 {
		return name
	}
	return name + " " + strings.Join(words, " ")
}

// ftsTokensDoc expands a space-joined token bag the same way.
func ftsTokensDoc(tokens string) string {
	if tokens == "" {
		return ""
	}
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(tokens) {
		out = append(out, tok)
		for _, w := range splitIdentifier(tok) {
			if w == strings.ToLower(tok) {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}
