package query

import (
	"fmt"
	"strings"
)

// FormatText renders a search result as a compact human listing, one
// hit per block.
func FormatText(res *SearchResult) string {
	if len(res.Results) == 0 {
		if res.Suggestion != "" {
			return fmt.Sprintf("no results; did you mean %q?", res.Suggestion)
		}
		return "no results"
	}

	var sb strings.Builder
	for _, h := range res.Results {
		switch {
		case h.Symbol != nil:
			sb.WriteString(fmt.Sprintf("%.2f  %s:%d  %s %s",
				h.Score, h.File, h.Symbol.Line[0], h.Symbol.Kind, h.Symbol.Name))
			if h.Symbol.Sig != "" {
				sb.WriteString("  " + h.Symbol.Sig)
			}
		case h.FileRec != nil:
			sb.WriteString(fmt.Sprintf("%.2f  %s  (%s, %d lines)",
				h.Score, h.File, h.FileRec.LangTag(), h.FileRec.Lines))
		case h.Text != nil:
			sb.WriteString(fmt.Sprintf("%.2f  %s:%d  %s: %s",
				h.Score, h.File, h.Text.Line[0], h.Text.Kind, firstLine(h.Text.Text)))
		}
		if h.Project != "." && h.Project != "" {
			sb.WriteString("  [" + h.Project + "]")
		}
		sb.WriteByte('\n')
		if h.Snippet != "" {
			for _, line := range strings.Split(h.Snippet, "\n") {
				sb.WriteString("    " + line + "\n")
			}
		}
	}
	sb.WriteString(fmt.Sprintf("%d of %d results\n", len(res.Results), res.Total))
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
