package query

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	xerrors "github.com/standardbeagle/codeix/internal/errors"
	"github.com/standardbeagle/codeix/internal/mounttable"
	"github.com/standardbeagle/codeix/internal/store"
	"github.com/standardbeagle/codeix/internal/types"
)

var allScopes = []string{"symbol", "file", "text"}

// Search runs a weighted full-text query across the routed mounts.
// Scores are bucketed per scope and normalized by the scope maximum
// before interleaving, since raw BM25 values are not comparable across
// entity kinds.
func (s *Service) Search(p SearchParams) (*SearchResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery, "query is required")
	}

	scopes := []string(p.Scope)
	if len(scopes) == 0 {
		scopes = allScopes
	}
	for _, sc := range scopes {
		switch sc {
		case "symbol", "file", "text":
		default:
			return nil, xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery, "unknown scope %q", sc)
		}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	snippetLines := defaultSnippetLines
	if p.SnippetLines != nil {
		snippetLines = *p.SnippetLines
	}

	entries, err := s.table.Route(p.Project)
	if err != nil {
		return nil, err
	}

	var merged []SearchHit
	for _, sc := range scopes {
		bucket, err := s.searchScope(sc, p, entries)
		if err != nil {
			return nil, err
		}
		normalize(bucket)
		merged = append(merged, bucket...)
	}

	if p.Path != "" {
		merged = filterByPath(merged, p.Path)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].norm != merged[j].norm {
			return merged[i].norm > merged[j].norm
		}
		if merged[i].File != merged[j].File {
			return merged[i].File < merged[j].File
		}
		return merged[i].line0 < merged[j].line0
	})

	total := len(merged)
	result := &SearchResult{Total: total}

	if total == 0 {
		result.Suggestion = s.suggest(p, scopes, entries)
		result.Results = []SearchHit{}
		return result, nil
	}

	start := p.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	page := merged[start:end]

	for i := range page {
		s.attachSnippet(&page[i], entries, snippetLines)
	}
	result.Results = page
	return result, nil
}

// searchScope gathers one scope's hits across the mounts.
func (s *Service) searchScope(scope string, p SearchParams, entries []mounttable.Entry) ([]SearchHit, error) {
	filter := store.Filter{Kinds: []string(p.Kind), Visibility: p.Visibility}
	var hits []SearchHit

	for _, e := range entries {
		st := e.Mount.Store()
		switch scope {
		case "symbol":
			found, err := st.SearchSymbols(p.Query, filter)
			if err != nil {
				return nil, err
			}
			for i := range found {
				h := found[i]
				sym := h.Symbol
				hits = append(hits, SearchHit{
					Scope: "symbol", Project: e.Rel, File: sym.File,
					Score: h.Score, Symbol: &sym, line0: sym.Line[0],
				})
			}
		case "file":
			found, err := st.SearchFiles(p.Query)
			if err != nil {
				return nil, err
			}
			for i := range found {
				h := found[i]
				rec := h.FileRecord
				hits = append(hits, SearchHit{
					Scope: "file", Project: e.Rel, File: rec.Path,
					Score: h.Score, FileRec: &rec, line0: 1,
				})
			}
		case "text":
			found, err := st.SearchTexts(p.Query, store.Filter{})
			if err != nil {
				return nil, err
			}
			for i := range found {
				h := found[i]
				txt := h.Text
				hits = append(hits, SearchHit{
					Scope: "text", Project: e.Rel, File: txt.File,
					Score: h.Score, Text: &txt, line0: txt.Line[0],
				})
			}
		}
	}
	return hits, nil
}

// normalize maps a bucket's scores onto (0, 1] by the bucket maximum.
func normalize(bucket []SearchHit) {
	var max float64
	for _, h := range bucket {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		for i := range bucket {
			bucket[i].norm = 0
		}
		return
	}
	for i := range bucket {
		bucket[i].norm = bucket[i].Score / max
	}
}

func filterByPath(hits []SearchHit, glob string) []SearchHit {
	var out []SearchHit
	for _, h := range hits {
		if ok, _ := doublestar.Match(glob, h.File); ok {
			out = append(out, h)
		}
	}
	return out
}

// attachSnippet reads source context for symbol and text hits.
func (s *Service) attachSnippet(h *SearchHit, entries []mounttable.Entry, snippetLines int) {
	if snippetLines == 0 || h.FileRec != nil {
		return
	}
	var root, hash string
	for _, e := range entries {
		if e.Rel == h.Project {
			root = e.Mount.Root
			if fh, ok := e.Mount.Store().FileHash(h.File); ok {
				hash = fh
			}
			break
		}
	}
	if root == "" {
		return
	}

	switch {
	case h.Symbol != nil:
		bounds := h.Symbol.Line
		h.Snippet = s.snippet(root, h.File, hash, types.LineRange{bounds[0], bounds[0]}, &bounds, snippetLines)
	case h.Text != nil:
		h.Snippet = s.snippet(root, h.File, hash, h.Text.Line, nil, snippetLines)
	}
}

// suggest handles the zero-hit case: a near-miss symbol name by edit
// distance, or a stemmed retry for text queries.
func (s *Service) suggest(p SearchParams, scopes []string, entries []mounttable.Entry) string {
	wantsSymbols := false
	wantsTexts := false
	for _, sc := range scopes {
		switch sc {
		case "symbol":
			wantsSymbols = true
		case "text":
			wantsTexts = true
		}
	}

	if wantsSymbols {
		var names []string
		for _, e := range entries {
			more, err := e.Mount.Store().SymbolNames(2000)
			if err == nil {
				names = append(names, more...)
			}
		}
		if len(names) > 0 {
			term := strings.Fields(p.Query)[0]
			if match, err := edlib.FuzzySearchThreshold(term, names, 0.7, edlib.Levenshtein); err == nil && match != "" && match != term {
				return match
			}
		}
	}

	if wantsTexts {
		stemmed := stemQuery(p.Query)
		if stemmed != p.Query {
			for _, e := range entries {
				hits, err := e.Mount.Store().SearchTexts(stemmed, store.Filter{})
				if err == nil && len(hits) > 0 {
					return stemmed
				}
			}
		}
	}
	return ""
}

// stemQuery porter-stems each plain term, leaving operators and
// phrases alone.
func stemQuery(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		if strings.ContainsAny(f, `"*|-`) || strings.EqualFold(f, "OR") {
			continue
		}
		fields[i] = porter2.Stem(f)
	}
	return strings.Join(fields, " ")
}
