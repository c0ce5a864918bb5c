package lang

import (
	"regexp"
	"strings"
)

// ScriptRegion is one embedded script body lifted out of a composite
// file. LineOffset is added to extractor line numbers to map them back
// to the original file (0 when the script starts at line 1).
type ScriptRegion struct {
	LineOffset int
	Source     []byte
	Lang       string
}

var (
	scriptOpenRe  = regexp.MustCompile(`(?is)<script\b([^>]*)>`)
	scriptCloseRe = regexp.MustCompile(`(?i)</script\s*>`)
	langAttrRe    = regexp.MustCompile(`(?i)\blang\s*=\s*["']?(ts|typescript)["']?`)
)

// ScriptRegions splits a composite file into extractable script bodies.
// HTML, Vue and Svelte contribute <script> elements; Astro additionally
// contributes the frontmatter between the leading --- fences, which is
// always TypeScript.
func ScriptRegions(tag string, src []byte) []ScriptRegion {
	var regions []ScriptRegion

	text := string(src)
	rest := text
	consumed := 0

	if tag == Astro {
		if fm, after, ok := astroFrontmatter(text); ok {
			regions = append(regions, ScriptRegion{
				LineOffset: 1, // frontmatter body starts after the opening fence line
				Source:     []byte(fm),
				Lang:       TypeScript,
			})
			rest = after
			consumed = len(text) - len(after)
		}
	}

	for {
		open := scriptOpenRe.FindStringSubmatchIndex(rest)
		if open == nil {
			break
		}
		attrs := rest[open[2]:open[3]]
		bodyStart := open[1]

		closeIdx := scriptCloseRe.FindStringIndex(rest[bodyStart:])
		if closeIdx == nil {
			break
		}
		body := rest[bodyStart : bodyStart+closeIdx[0]]

		scriptLang := JavaScript
		if langAttrRe.MatchString(attrs) {
			scriptLang = TypeScript
		}

		// Lines before the body within the original source.
		offset := strings.Count(text[:consumed+bodyStart], "\n")
		if len(body) > 0 && body[0] == '\n' {
			body = body[1:]
			offset++
		}

		if strings.TrimSpace(body) != "" {
			regions = append(regions, ScriptRegion{
				LineOffset: offset,
				Source:     []byte(body),
				Lang:       scriptLang,
			})
		}

		advance := bodyStart + closeIdx[1]
		rest = rest[advance:]
		consumed += advance
	}

	return regions
}

// astroFrontmatter extracts the --- fenced block heading an Astro file.
func astroFrontmatter(text string) (fm, rest string, ok bool) {
	if !strings.HasPrefix(text, "---") {
		return "", text, false
	}
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return "", text, false
	}
	body := text[nl+1:]
	end := strings.Index(body, "\n---")
	if end < 0 {
		return "", text, false
	}
	after := body[end:]
	if i := strings.IndexByte(after[1:], '\n'); i >= 0 {
		after = after[i+2:]
	} else {
		after = ""
	}
	return body[:end], after, true
}
