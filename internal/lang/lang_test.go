package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"src/a.py", Python},
		{"main.go", Go},
		{"lib.rs", Rust},
		{"app.TSX", TypeScript},
		{"x.mjs", JavaScript},
		{"Program.cs", CSharp},
		{"util.h", C},
		{"util.hpp", CPP},
		{"README.md", Markdown},
		{"page.vue", Vue},
		{"comp.svelte", Svelte},
		{"index.astro", Astro},
		{"Makefile", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Detect(tt.path), tt.path)
	}
}

func TestIndexable(t *testing.T) {
	assert.True(t, Indexable(Python))
	assert.True(t, Indexable(Markdown))
	assert.False(t, Indexable(""))
	assert.False(t, Indexable(JSON))
	assert.False(t, Indexable(YAML))
}

func TestScriptRegions_VueTypeScript(t *testing.T) {
	src := []byte("<template>\n  <div/>\n</template>\n<script lang=\"ts\">\nexport const x = 1\n</script>\n")

	regions := ScriptRegions(Vue, src)
	require.Len(t, regions, 1)
	assert.Equal(t, TypeScript, regions[0].Lang)
	assert.Equal(t, "export const x = 1\n", string(regions[0].Source))
	// The script body begins on source line 5; a symbol on region line 1
	// must map to 1 + offset = 5.
	assert.Equal(t, 4, regions[0].LineOffset)
}

func TestScriptRegions_PlainScriptIsJavaScript(t *testing.T) {
	src := []byte("<html><body>\n<script>\nfunction f() {}\n</script>\n</body></html>\n")

	regions := ScriptRegions(HTML, src)
	require.Len(t, regions, 1)
	assert.Equal(t, JavaScript, regions[0].Lang)
	assert.Equal(t, 2, regions[0].LineOffset)
}

func TestScriptRegions_MultipleScripts(t *testing.T) {
	src := []byte("<script>\nvar a = 1\n</script>\n<p>x</p>\n<script lang='ts'>\nconst b = 2\n</script>\n")

	regions := ScriptRegions(HTML, src)
	require.Len(t, regions, 2)
	assert.Equal(t, JavaScript, regions[0].Lang)
	assert.Equal(t, TypeScript, regions[1].Lang)
	assert.Equal(t, 1, regions[0].LineOffset)
	assert.Equal(t, 5, regions[1].LineOffset)
}

func TestScriptRegions_AstroFrontmatter(t *testing.T) {
	src := []byte("---\nconst title = \"Hi\"\n---\n<h1>{title}</h1>\n<script>\nconsole.log(1)\n</script>\n")

	regions := ScriptRegions(Astro, src)
	require.Len(t, regions, 2)
	assert.Equal(t, TypeScript, regions[0].Lang)
	assert.Equal(t, "const title = \"Hi\"", string(regions[0].Source))
	assert.Equal(t, 1, regions[0].LineOffset)
	assert.Equal(t, JavaScript, regions[1].Lang)
}

func TestScriptRegions_UnterminatedScript(t *testing.T) {
	src := []byte("<script>\nlet x = 1\n")
	assert.Empty(t, ScriptRegions(HTML, src))
}
