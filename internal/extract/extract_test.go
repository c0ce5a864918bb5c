package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codeix/internal/lang"
	"github.com/standardbeagle/codeix/internal/types"
)

func findSymbol(symbols []types.Symbol, name string) *types.Symbol {
	for i := range symbols {
		if symbols[i].Name == name {
			return &symbols[i]
		}
	}
	return nil
}

func TestExtract_PythonBasics(t *testing.T) {
	src := []byte("import os\ndef f(x: int) -> int:\n    \"\"\"doc\"\"\"\n    return x+1\n")

	res, err := Extract(lang.Python, src)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Lines)

	osImp := findSymbol(res.Symbols, "os")
	require.NotNil(t, osImp)
	assert.Equal(t, types.KindImport, osImp.Kind)
	assert.Equal(t, types.LineRange{1, 1}, osImp.Line)

	f := findSymbol(res.Symbols, "f")
	require.NotNil(t, f)
	assert.Equal(t, types.KindFunction, f.Kind)
	assert.Equal(t, types.LineRange{2, 4}, f.Line)
	assert.Equal(t, "def f(x: int) -> int", f.Sig)
	assert.Equal(t, types.VisPublic, f.Visibility)

	var doc *types.Text
	for i := range res.Texts {
		if res.Texts[i].Kind == types.TextDocstring {
			doc = &res.Texts[i]
		}
	}
	require.NotNil(t, doc)
	assert.Equal(t, "doc", doc.Text)
	assert.Equal(t, "f", doc.Parent)

	var imp *types.Ref
	for i := range res.Refs {
		if res.Refs[i].Kind == types.RefImport {
			imp = &res.Refs[i]
		}
	}
	require.NotNil(t, imp)
	assert.Equal(t, "os", imp.Target)
}

func TestExtract_PythonNestingAndVisibility(t *testing.T) {
	src := []byte(strings.Join([]string{
		"class Config:",
		"    def __init__(self):",
		"        self.x = 1",
		"    def _load(self):",
		"        pass",
		"",
		"def _helper():",
		"    pass",
		"",
		"def __secret():",
		"    pass",
		"",
	}, "\n"))

	res, err := Extract(lang.Python, src)
	require.NoError(t, err)

	init := findSymbol(res.Symbols, "Config.__init__")
	require.NotNil(t, init, "nested method gets a dotted name")
	assert.Equal(t, types.KindMethod, init.Kind)
	assert.Equal(t, "Config", init.Parent)

	load := findSymbol(res.Symbols, "Config._load")
	require.NotNil(t, load)
	assert.Equal(t, types.VisInternal, load.Visibility)

	helper := findSymbol(res.Symbols, "_helper")
	require.NotNil(t, helper)
	assert.Equal(t, types.VisInternal, helper.Visibility)

	secret := findSymbol(res.Symbols, "__secret")
	require.NotNil(t, secret)
	assert.Equal(t, types.VisPrivate, secret.Visibility)

	// Parent invariant: every parent names a symbol in the same result.
	for _, s := range res.Symbols {
		if s.Parent != "" {
			assert.NotNil(t, findSymbol(res.Symbols, s.Parent), "parent %q of %q", s.Parent, s.Name)
		}
	}
}

func TestExtract_PythonAllOverridesPrefix(t *testing.T) {
	src := []byte("__all__ = [\"_exported\"]\n\ndef _exported():\n    pass\n\ndef also_public():\n    pass\n")

	res, err := Extract(lang.Python, src)
	require.NoError(t, err)

	exp := findSymbol(res.Symbols, "_exported")
	require.NotNil(t, exp)
	assert.Equal(t, types.VisPublic, exp.Visibility, "__all__ wins over the underscore rule")
}

func TestExtract_PythonCallRefs(t *testing.T) {
	src := []byte("import os\ndef g():\n    os.path.join(\"ab\", \"cd\")\n    helper()\n")

	res, err := Extract(lang.Python, src)
	require.NoError(t, err)

	var targets []string
	for _, r := range res.Refs {
		if r.Kind == types.RefCall {
			targets = append(targets, r.Target)
			assert.Equal(t, "g", r.Sym, "caller is the enclosing symbol")
		}
	}
	assert.Contains(t, targets, "os.path.join")
	assert.Contains(t, targets, "helper")
}

func TestExtract_GoSymbols(t *testing.T) {
	src := []byte(strings.Join([]string{
		"package demo",
		"",
		"import stdfmt \"fmt\"",
		"",
		"// Point is a 2D point.",
		"type Point struct {",
		"	X, Y int",
		"}",
		"",
		"type Reader interface {",
		"	Read() error",
		"}",
		"",
		"func Render(p Point) string {",
		"	return stdfmt.Sprint(p)",
		"}",
		"",
		"func helper() {}",
		"",
	}, "\n"))

	res, err := Extract(lang.Go, src)
	require.NoError(t, err)

	point := findSymbol(res.Symbols, "Point")
	require.NotNil(t, point)
	assert.Equal(t, types.KindStruct, point.Kind)
	assert.Equal(t, types.VisPublic, point.Visibility)

	reader := findSymbol(res.Symbols, "Reader")
	require.NotNil(t, reader)
	assert.Equal(t, types.KindInterface, reader.Kind)

	helper := findSymbol(res.Symbols, "helper")
	require.NotNil(t, helper)
	assert.Equal(t, types.VisInternal, helper.Visibility)

	imp := findSymbol(res.Symbols, "fmt")
	require.NotNil(t, imp)
	assert.Equal(t, types.KindImport, imp.Kind)
	assert.Equal(t, "stdfmt", imp.Alias)

	var comment *types.Text
	for i := range res.Texts {
		if res.Texts[i].Kind == types.TextComment {
			comment = &res.Texts[i]
			break
		}
	}
	require.NotNil(t, comment)
	assert.Equal(t, "Point is a 2D point.", comment.Text)
}

func TestExtract_TypeScriptExportConst(t *testing.T) {
	src := []byte("export const x = 1\n")

	res, err := Extract(lang.TypeScript, src)
	require.NoError(t, err)

	x := findSymbol(res.Symbols, "x")
	require.NotNil(t, x)
	assert.Equal(t, types.KindConstant, x.Kind)
	assert.Equal(t, types.LineRange{1, 1}, x.Line)
	assert.Equal(t, types.VisPublic, x.Visibility)
}

func TestExtract_VueScriptRegionLineOffsets(t *testing.T) {
	src := []byte("<template>\n  <div/>\n</template>\n<script lang=\"ts\">\nexport const x = 1\n</script>\n")

	res, err := Extract(lang.Vue, src)
	require.NoError(t, err)

	x := findSymbol(res.Symbols, "x")
	require.NotNil(t, x)
	assert.Equal(t, types.KindConstant, x.Kind)
	assert.Equal(t, types.LineRange{5, 5}, x.Line, "line numbers map back to the original file")
}

func TestExtract_RustVisibility(t *testing.T) {
	src := []byte(strings.Join([]string{
		"pub fn public_fn() {}",
		"pub(crate) fn crate_fn() {}",
		"fn private_fn() {}",
		"pub struct Thing { pub field: u32 }",
		"",
	}, "\n"))

	res, err := Extract(lang.Rust, src)
	require.NoError(t, err)

	assert.Equal(t, types.VisPublic, findSymbol(res.Symbols, "public_fn").Visibility)
	assert.Equal(t, types.VisInternal, findSymbol(res.Symbols, "crate_fn").Visibility)
	assert.Equal(t, types.VisPrivate, findSymbol(res.Symbols, "private_fn").Visibility)
	assert.Equal(t, types.KindStruct, findSymbol(res.Symbols, "Thing").Kind)
}

func TestExtract_CPointerReturnIsFunction(t *testing.T) {
	src := []byte("char *dup(const char *s) {\n    return 0;\n}\n")

	res, err := Extract(lang.C, src)
	require.NoError(t, err)

	dup := findSymbol(res.Symbols, "dup")
	require.NotNil(t, dup)
	assert.Equal(t, types.KindFunction, dup.Kind)
}

func TestExtract_TokensBag(t *testing.T) {
	src := []byte("function worker() {\n  const queue = makeQueue();\n  drain(queue);\n}\n")

	res, err := Extract(lang.JavaScript, src)
	require.NoError(t, err)

	w := findSymbol(res.Symbols, "worker")
	require.NotNil(t, w)
	for _, tok := range []string{"queue", "makeQueue", "drain"} {
		assert.Contains(t, w.Tokens, tok)
	}
	assert.NotContains(t, strings.Fields(w.Tokens), "worker", "own name excluded")
}

func TestExtract_DeepNestingIsBounded(t *testing.T) {
	// 1,000 nested functions must not overflow; symbols beyond the
	// depth bound are dropped, shallower ones survive.
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		sb.WriteString(strings.Repeat(" ", i))
		sb.WriteString("def fn():\n")
	}
	src := []byte(sb.String())

	res, err := Extract(lang.Python, src)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Symbols), maxDepth)
}

func TestExtract_TrivialTextsFiltered(t *testing.T) {
	src := []byte("\"use strict\"\nconst a = \"x\"\nconst b = \"---\"\nconst c = \"meaningful text\"\n")

	res, err := Extract(lang.JavaScript, src)
	require.NoError(t, err)

	var bodies []string
	for _, txt := range res.Texts {
		bodies = append(bodies, txt.Text)
	}
	assert.NotContains(t, bodies, "use strict")
	assert.NotContains(t, bodies, "x")
	assert.NotContains(t, bodies, "---")
	assert.Contains(t, bodies, "meaningful text")
}

func TestExtract_UnknownLanguageCountsLines(t *testing.T) {
	res, err := Extract("", []byte("a\nb\nc"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Lines)
	assert.Empty(t, res.Symbols)
}

func TestParseImports(t *testing.T) {
	tests := []struct {
		lang   string
		text   string
		name   string
		alias  string
		target string
	}{
		{lang.Python, "import os.path", "os.path", "", "os.path"},
		{lang.Python, "import numpy as np", "numpy", "np", "numpy"},
		{lang.Python, "from collections import OrderedDict as OD", "OrderedDict", "OD", "collections"},
		{lang.Go, `xj "encoding/json"`, "encoding/json", "xj", "encoding/json"},
		{lang.Go, `"fmt"`, "fmt", "", "fmt"},
		{lang.TypeScript, `import { useState } from "react";`, "react", "", "react"},
		{lang.TypeScript, `import * as path from "node:path";`, "node:path", "path", "node:path"},
		{lang.Rust, "use std::collections::HashMap;", "std.collections.HashMap", "", "std.collections.HashMap"},
		{lang.Rust, "use serde_json as sj;", "serde_json", "sj", "serde_json"},
		{lang.Java, "import java.util.List;", "java.util.List", "", "java.util.List"},
		{lang.CSharp, "using System.Linq;", "System.Linq", "", "System.Linq"},
		{lang.CSharp, "using IO = System.IO;", "System.IO", "IO", "System.IO"},
		{lang.PHP, `use App\Models\User as U;`, "App.Models.User", "U", "App.Models.User"},
	}

	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.text, func(t *testing.T) {
			entries := parseImports(tt.lang, tt.text)
			require.NotEmpty(t, entries)
			assert.Equal(t, tt.name, entries[0].name)
			assert.Equal(t, tt.alias, entries[0].alias)
			assert.Equal(t, tt.target, entries[0].target)
		})
	}
}

func TestIncludeTarget(t *testing.T) {
	assert.Equal(t, "stdio.h", includeTarget("#include <stdio.h>"))
	assert.Equal(t, "util/log.h", includeTarget(`#include "util/log.h"`))
	assert.Equal(t, "", includeTarget("#include"))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(nil))
	assert.Equal(t, 1, CountLines([]byte("x")))
	assert.Equal(t, 1, CountLines([]byte("x\n")))
	assert.Equal(t, 2, CountLines([]byte("x\ny")))
	assert.Equal(t, 2, CountLines([]byte("x\ny\n")))
}
