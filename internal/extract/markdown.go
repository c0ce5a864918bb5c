package extract

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/standardbeagle/codeix/internal/types"
)

// extractMarkdown turns headings into section symbols and fenced code
// blocks into sample texts. Sections nest by heading level; a section
// spans from its heading to the next heading of the same or shallower
// level.
func extractMarkdown(src []byte) (*Result, error) {
	out := &Result{Lines: CountLines(src)}
	lineAt := newLineTable(src)

	doc := goldmark.New().Parser().Parse(gtext.NewReader(src))

	type openSection struct {
		level int
		idx   int // index into out.Symbols
		name  string
	}
	var stack []openSection

	closeTo := func(level, endLine int) {
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			top := stack[len(stack)-1]
			if endLine > out.Symbols[top.idx].Line[0] {
				out.Symbols[top.idx].Line[1] = endLine
			}
			stack = stack[:len(stack)-1]
		}
	}
	currentSection := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1].name
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			name := strings.TrimSpace(mdText(v, src))
			if name == "" || v.Lines().Len() == 0 {
				return ast.WalkSkipChildren, nil
			}
			line := lineAt(v.Lines().At(0).Start)
			closeTo(v.Level, line-1)
			out.Symbols = append(out.Symbols, types.Symbol{
				Name:   name,
				Kind:   types.KindSection,
				Line:   types.LineRange{line, line},
				Parent: currentSection(),
			})
			stack = append(stack, openSection{v.Level, len(out.Symbols) - 1, name})
			if v.Level == 1 && out.Title == "" {
				out.Title = name
			}
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			lines := v.Lines()
			if lines.Len() == 0 {
				return ast.WalkContinue, nil
			}
			var sb strings.Builder
			for i := 0; i < lines.Len(); i++ {
				sb.Write(lines.At(i).Value(src))
			}
			body := strings.TrimRight(sb.String(), "\n")
			if trivialText(body) {
				return ast.WalkContinue, nil
			}
			start := lineAt(lines.At(0).Start)
			end := lineAt(lines.At(lines.Len() - 1).Stop - 1)
			out.Texts = append(out.Texts, types.Text{
				Kind:   types.TextSample,
				Line:   types.LineRange{start - 1, end + 1}, // include the fences
				Text:   body,
				Parent: currentSection(),
			})
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			if out.Description == "" && v.Lines().Len() > 0 {
				var sb strings.Builder
				for i := 0; i < v.Lines().Len(); i++ {
					if i > 0 {
						sb.WriteByte('\n')
					}
					sb.Write(v.Lines().At(i).Value(src))
				}
				out.Description = strings.TrimSpace(sb.String())
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	closeTo(1, out.Lines)
	sortResult(out)
	return out, nil
}

// mdText collects the plain text under a node.
func mdText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				sb.Write(t.Segment.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

// newLineTable maps byte offsets to 1-based line numbers.
func newLineTable(src []byte) func(int) int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return func(off int) int {
		return sort.Search(len(starts), func(i int) bool { return starts[i] > off })
	}
}
