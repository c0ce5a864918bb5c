package extract

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/standardbeagle/codeix/internal/lang"
	"github.com/standardbeagle/codeix/internal/types"
)

// chromaName maps our language tags onto chroma lexer names.
var chromaName = map[string]string{
	lang.Ruby:  "ruby",
	lang.Shell: "bash",
}

var (
	rubyDefRe    = regexp.MustCompile(`^(\s*)def\s+(self\.)?([A-Za-z_][\w?!=]*)`)
	rubyClassRe  = regexp.MustCompile(`^(\s*)(class|module)\s+([A-Z][\w:]*)`)
	rubyEndRe    = regexp.MustCompile(`^(\s*)end\s*$`)
	shellFuncRe  = regexp.MustCompile(`^\s*(?:function\s+)?([A-Za-z_][\w]*)\s*\(\)\s*\{?`)
	shellFnKwRe  = regexp.MustCompile(`^\s*function\s+([A-Za-z_][\w]*)\s*\{`)
)

// extractLexical handles languages without a tree-sitter grammar: a
// chroma token stream supplies comments, strings and the identifier
// bag; a light line scan supplies the declaration skeleton.
func extractLexical(tag string, src []byte) (*Result, error) {
	out := &Result{Lines: CountLines(src)}

	var symbols []types.Symbol
	switch tag {
	case lang.Ruby:
		symbols = scanRubySymbols(src)
	case lang.Shell:
		symbols = scanShellSymbols(src)
	}

	identsByLine := map[int][]string{}
	lexer := lexers.Get(chromaName[tag])
	if lexer != nil {
		iter, err := lexer.Tokenise(nil, string(src))
		if err == nil {
			line := 1
			for tok := iter(); tok != chroma.EOF; tok = iter() {
				switch {
				case tok.Type.InCategory(chroma.Comment):
					appendCommentText(out, tok.Value, line, symbols)
				case tok.Type.InCategory(chroma.LiteralString):
					text := cleanString(tok.Value)
					if !trivialText(text) {
						end := line + strings.Count(tok.Value, "\n")
						out.Texts = append(out.Texts, types.Text{
							Kind:   types.TextString,
							Line:   types.LineRange{line, end},
							Text:   text,
							Parent: symbolAtLine(symbols, line),
						})
					}
				case tok.Type.InCategory(chroma.Name):
					identsByLine[line] = append(identsByLine[line], tok.Value)
				}
				line += strings.Count(tok.Value, "\n")
			}
		}
	}

	// Attach the identifier bag per symbol body (Ruby carries tokens
	// per the recall contract; shell does not).
	if tag == lang.Ruby {
		for i := range symbols {
			s := &symbols[i]
			seen := map[string]struct{}{}
			var bag []string
			for ln := s.Line[0]; ln <= s.Line[1] && len(bag) < maxTokens; ln++ {
				for _, id := range identsByLine[ln] {
					if id == s.BaseName() {
						continue
					}
					if _, dup := seen[id]; dup {
						continue
					}
					seen[id] = struct{}{}
					bag = append(bag, id)
					if len(bag) >= maxTokens {
						break
					}
				}
			}
			s.Tokens = strings.Join(bag, " ")
		}
	}

	out.Symbols = append(out.Symbols, symbols...)
	sortResult(out)
	return out, nil
}

func appendCommentText(out *Result, raw string, line int, symbols []types.Symbol) {
	if line == 1 && strings.HasPrefix(raw, "#!") {
		return
	}
	text := cleanComment(strings.TrimRight(raw, "\n"))
	if trivialText(text) {
		return
	}
	end := line + strings.Count(strings.TrimRight(raw, "\n"), "\n")
	out.Texts = append(out.Texts, types.Text{
		Kind:   types.TextComment,
		Line:   types.LineRange{line, end},
		Text:   text,
		Parent: symbolAtLine(symbols, line),
	})
}

func symbolAtLine(symbols []types.Symbol, line int) string {
	best := ""
	bestStart := -1
	for _, s := range symbols {
		if s.Line[0] <= line && line <= s.Line[1] && s.Line[0] > bestStart {
			best = s.Name
			bestStart = s.Line[0]
		}
	}
	return best
}

type rubyScope struct {
	indent int
	name   string
	symIdx int
}

// scanRubySymbols walks def/class/module lines, nesting by indentation
// and closing scopes on matching `end` lines.
func scanRubySymbols(src []byte) []types.Symbol {
	lines := strings.Split(string(src), "\n")
	var symbols []types.Symbol
	var stack []rubyScope

	dotted := func(name string) (full, parent string) {
		if len(stack) == 0 {
			return name, ""
		}
		top := stack[len(stack)-1]
		return top.name + "." + name, top.name
	}

	for i, line := range lines {
		ln := i + 1

		if m := rubyEndRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
				top := stack[len(stack)-1]
				symbols[top.symIdx].Line[1] = ln
				stack = stack[:len(stack)-1]
			}
			continue
		}

		if m := rubyClassRe.FindStringSubmatch(line); m != nil {
			kind := types.KindClass
			if m[2] == "module" {
				kind = types.KindModule
			}
			name := strings.ReplaceAll(m[3], "::", ".")
			full, parent := dotted(name)
			symbols = append(symbols, types.Symbol{
				Name:   full,
				Kind:   kind,
				Line:   types.LineRange{ln, ln},
				Parent: parent,
				Sig:    strings.TrimSpace(line),
			})
			stack = append(stack, rubyScope{len(m[1]), full, len(symbols) - 1})
			continue
		}

		if m := rubyDefRe.FindStringSubmatch(line); m != nil {
			kind := types.KindFunction
			if len(stack) > 0 {
				kind = types.KindMethod
			}
			full, parent := dotted(m[3])
			symbols = append(symbols, types.Symbol{
				Name:   full,
				Kind:   kind,
				Line:   types.LineRange{ln, ln},
				Parent: parent,
				Sig:    strings.TrimSpace(line),
			})
			stack = append(stack, rubyScope{len(m[1]), full, len(symbols) - 1})
		}
	}

	// Unclosed scopes run to EOF.
	for _, sc := range stack {
		symbols[sc.symIdx].Line[1] = len(lines)
	}
	return symbols
}

func scanShellSymbols(src []byte) []types.Symbol {
	lines := strings.Split(string(src), "\n")
	var symbols []types.Symbol
	for i, line := range lines {
		name := ""
		if m := shellFuncRe.FindStringSubmatch(line); m != nil {
			name = m[1]
		} else if m := shellFnKwRe.FindStringSubmatch(line); m != nil {
			name = m[1]
		}
		if name == "" {
			continue
		}
		end := i + 1
		for j := i + 1; j < len(lines); j++ {
			if strings.HasPrefix(lines[j], "}") {
				end = j + 1
				break
			}
		}
		symbols = append(symbols, types.Symbol{
			Name: name,
			Kind: types.KindFunction,
			Line: types.LineRange{i + 1, end},
			Sig:  strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "{")),
		})
	}
	return symbols
}
