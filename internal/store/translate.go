package store

import (
	"strings"
	"unicode"

	xerrors "github.com/standardbeagle/codeix/internal/errors"
)

// TranslateQuery rewrites the user query grammar into FTS5 MATCH
// syntax: adjacent terms AND together, `OR` and `|` alternate, a
// trailing `*` requests prefix matching, `-term` excludes, and quoted
// phrases pass through. Terms are quoted so reserved FTS words stay
// literal.
func TranslateQuery(q string) (string, error) {
	tokens := lexQuery(q)
	if len(tokens) == 0 {
		return "", xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery, "empty query")
	}

	var expr strings.Builder
	var negs []string
	pendingOr := false
	terms := 0

	for _, tok := range tokens {
		if tok == "|" || strings.EqualFold(tok, "OR") {
			pendingOr = true
			continue
		}

		if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			negs = append(negs, renderTerm(tok[1:]))
			continue
		}

		term := renderTerm(tok)
		if term == "" {
			continue
		}
		if terms > 0 {
			if pendingOr {
				expr.WriteString(" OR ")
			} else {
				expr.WriteString(" AND ")
			}
		}
		expr.WriteString(term)
		terms++
		pendingOr = false
	}

	if terms == 0 {
		return "", xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery,
			"query %q has no positive terms", q)
	}

	out := "(" + expr.String() + ")"
	for _, n := range negs {
		out += " NOT " + n
	}
	return out, nil
}

// lexQuery splits into words, quoted phrases and pipe operators.
func lexQuery(q string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range q {
		switch {
		case r == '"':
			if inQuote {
				tokens = append(tokens, `"`+cur.String()+`"`)
				cur.Reset()
				inQuote = false
			} else {
				flush()
				inQuote = true
			}
		case inQuote:
			cur.WriteRune(r)
		case r == '|':
			flush()
			tokens = append(tokens, "|")
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// renderTerm quotes one term for FTS5, keeping phrase quoting and the
// prefix star outside the quotes.
func renderTerm(tok string) string {
	if strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2 {
		tok = tok[1 : len(tok)-1]
		if strings.TrimSpace(tok) == "" {
			return ""
		}
		return `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}

	prefix := strings.HasSuffix(tok, "*")
	tok = strings.TrimSuffix(tok, "*")
	if tok == "" {
		return ""
	}
	out := `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	if prefix {
		out += "*"
	}
	return out
}
