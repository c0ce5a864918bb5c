package query

import (
	"encoding/json"

	"github.com/standardbeagle/codeix/internal/types"
)

// StringList accepts either a JSON string or an array of strings, so
// callers can write "kind": "function" as well as ["function","method"].
type StringList []string

// UnmarshalJSON implements the lenient decode.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = []string{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// SearchParams drive the search tool.
type SearchParams struct {
	Query        string     `json:"query"`
	Scope        StringList `json:"scope,omitempty"`
	Kind         StringList `json:"kind,omitempty"`
	Path         string     `json:"path,omitempty"`
	Project      string     `json:"project,omitempty"`
	Visibility   string     `json:"visibility,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
	SnippetLines *int       `json:"snippet_lines,omitempty"`
	Format       string     `json:"format,omitempty"`
}

// ExploreParams drive the explore tool.
type ExploreParams struct {
	Path       string `json:"path,omitempty"`
	Project    string `json:"project,omitempty"`
	MaxEntries int    `json:"max_entries,omitempty"`
}

// FileSymbolsParams drive get_file_symbols.
type FileSymbolsParams struct {
	File    string `json:"file"`
	Project string `json:"project,omitempty"`
}

// ChildrenParams drive get_children.
type ChildrenParams struct {
	File    string `json:"file"`
	Parent  string `json:"parent"`
	Project string `json:"project,omitempty"`
}

// CallersParams drive get_callers.
type CallersParams struct {
	Name    string `json:"name"`
	Kind    string `json:"kind,omitempty"`
	Project string `json:"project,omitempty"`
}

// CalleesParams drive get_callees.
type CalleesParams struct {
	Caller  string `json:"caller"`
	Kind    string `json:"kind,omitempty"`
	Project string `json:"project,omitempty"`
}

// SearchHit is one ranked result row.
type SearchHit struct {
	Scope   string            `json:"scope"`
	Project string            `json:"project"`
	File    string            `json:"file"`
	Score   float64           `json:"score"`
	Symbol  *types.Symbol     `json:"symbol,omitempty"`
	FileRec *types.FileRecord `json:"file_info,omitempty"`
	Text    *types.Text       `json:"text,omitempty"`
	Snippet string            `json:"snippet,omitempty"`

	// internal ordering keys
	line0 int
	norm  float64
}

// SearchResult is the search tool response.
type SearchResult struct {
	Results    []SearchHit `json:"results"`
	Total      int         `json:"total"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// SymbolRow qualifies a symbol with its project.
type SymbolRow struct {
	Project string `json:"project"`
	types.Symbol
}

// CallRow is one call-graph edge.
type CallRow struct {
	Project string        `json:"project"`
	Ref     types.Ref     `json:"ref"`
	Def     *types.Symbol `json:"def,omitempty"`
}

// ProjectTree is one mount's slice of the explore response.
type ProjectTree struct {
	Project     string   `json:"project"`
	Name        string   `json:"name"`
	Languages   []string `json:"languages"`
	Subprojects []string `json:"subprojects,omitempty"`
	ReadOnly    bool     `json:"read_only,omitempty"`
	Tree        []string `json:"tree"`
}

// ExploreResult is the explore tool response.
type ExploreResult struct {
	Projects []ProjectTree `json:"projects"`
}
