package extract

import (
	"sync"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/codeix/internal/lang"
)

// grammar binds one language's tree-sitter grammar and its tag query.
type grammar struct {
	language *tree_sitter.Language
	query    *tree_sitter.Query
	captures []string
	// tokenBag enables the identifier-bag pass for this language.
	tokenBag bool
}

var (
	grammarsOnce sync.Once
	grammars     map[string]*grammar
)

// grammarFor returns the grammar for a language tag, or nil when the
// language has no tree-sitter binding (Markdown, Ruby and shell go
// through other extractors).
func grammarFor(tag string) *grammar {
	grammarsOnce.Do(initGrammars)
	return grammars[tag]
}

func register(tag string, langPtr *tree_sitter.Language, queryStr string, tokenBag bool) {
	query, _ := tree_sitter.NewQuery(langPtr, queryStr)
	// The tree-sitter Go binding can return a typed nil error, so the
	// query pointer is the reliable signal.
	if query == nil {
		return
	}
	grammars[tag] = &grammar{
		language: langPtr,
		query:    query,
		captures: query.CaptureNames(),
		tokenBag: tokenBag,
	}
}

func initGrammars() {
	grammars = make(map[string]*grammar)

	register(lang.Python, tree_sitter.NewLanguage(tree_sitter_python.Language()), `
        (class_definition name: (identifier) @class.name) @class
        (function_definition name: (identifier) @function.name) @function
        (import_statement) @import
        (import_from_statement) @import
        (comment) @comment
        (string) @string
        (call function: (identifier) @call.name) @call
        (call function: (attribute) @call.name) @call
    `, false)

	register(lang.Go, tree_sitter.NewLanguage(tree_sitter_go.Language()), `
        (function_declaration name: (identifier) @function.name) @function
        (method_declaration name: (field_identifier) @method.name) @method
        (type_declaration (type_spec name: (type_identifier) @type.name)) @type
        (const_declaration (const_spec name: (identifier) @constant.name)) @constant
        (var_declaration (var_spec name: (identifier) @variable.name)) @variable
        (import_spec) @import
        (comment) @comment
        (interpreted_string_literal) @string
        (raw_string_literal) @string
        (call_expression function: (identifier) @call.name) @call
        (call_expression function: (selector_expression) @call.name) @call
        (type_identifier) @typeref
    `, false)

	register(lang.Rust, tree_sitter.NewLanguage(tree_sitter_rust.Language()), `
        (function_item name: (identifier) @function.name) @function
        (struct_item name: (type_identifier) @struct.name) @struct
        (enum_item name: (type_identifier) @enum.name) @enum
        (trait_item name: (type_identifier) @interface.name) @interface
        (type_item name: (type_identifier) @type_alias.name) @type_alias
        (const_item name: (identifier) @constant.name) @constant
        (static_item name: (identifier) @variable.name) @variable
        (mod_item name: (identifier) @module.name) @module
        (impl_item) @impl
        (use_declaration) @import
        (line_comment) @comment
        (block_comment) @comment
        (string_literal) @string
        (call_expression function: (identifier) @call.name) @call
        (call_expression function: (scoped_identifier) @call.name) @call
        (call_expression function: (field_expression) @call.name) @call
        (macro_invocation macro: (identifier) @call.name) @call
    `, false)

	jsQuery := `
        (function_declaration name: (identifier) @function.name) @function
        (generator_function_declaration name: (identifier) @function.name) @function
        (method_definition name: (property_identifier) @method.name) @method
        (class_declaration name: (identifier) @class.name) @class
        (variable_declarator name: (identifier) @variable.name) @variable
        (import_statement) @import
        (comment) @comment
        (string) @string
        (template_string) @string
        (call_expression function: (identifier) @call.name) @call
        (call_expression function: (member_expression) @call.name) @call
    `
	register(lang.JavaScript, tree_sitter.NewLanguage(tree_sitter_javascript.Language()), jsQuery, true)

	register(lang.TypeScript, tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()), jsQuery+`
        (interface_declaration name: (type_identifier) @interface.name) @interface
        (type_alias_declaration name: (type_identifier) @type_alias.name) @type_alias
        (enum_declaration name: (identifier) @enum.name) @enum
        (type_identifier) @typeref
    `, true)

	register(lang.Java, tree_sitter.NewLanguage(tree_sitter_java.Language()), `
        (class_declaration name: (identifier) @class.name) @class
        (record_declaration name: (identifier) @class.name) @class
        (interface_declaration name: (identifier) @interface.name) @interface
        (enum_declaration name: (identifier) @enum.name) @enum
        (method_declaration name: (identifier) @method.name) @method
        (constructor_declaration name: (identifier) @method.name) @method
        (field_declaration declarator: (variable_declarator name: (identifier) @property.name)) @property
        (import_declaration) @import
        (line_comment) @comment
        (block_comment) @comment
        (string_literal) @string
        (method_invocation name: (identifier) @call.name) @call
        (type_identifier) @typeref
    `, true)

	register(lang.CSharp, tree_sitter.NewLanguage(tree_sitter_csharp.Language()), `
        (class_declaration name: (identifier) @class.name) @class
        (record_declaration name: (identifier) @class.name) @class
        (interface_declaration name: (identifier) @interface.name) @interface
        (struct_declaration name: (identifier) @struct.name) @struct
        (enum_declaration name: (identifier) @enum.name) @enum
        (method_declaration name: (identifier) @method.name) @method
        (constructor_declaration name: (identifier) @method.name) @method
        (property_declaration name: (identifier) @property.name) @property
        (namespace_declaration name: (qualified_name) @module.name) @module
        (namespace_declaration name: (identifier) @module.name) @module
        (using_directive) @import
        (comment) @comment
        (string_literal) @string
        (invocation_expression (identifier) @call.name) @call
        (invocation_expression (member_access_expression) @call.name) @call
    `, true)

	// C and C++ share the C++ grammar; the C subset parses cleanly and
	// pointer-returning functions keep their function classification.
	cppLang := tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	cppQuery := `
        (function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function
        (function_definition declarator: (pointer_declarator declarator: (function_declarator declarator: (identifier) @function.name))) @function
        (function_definition declarator: (function_declarator declarator: (field_identifier) @method.name)) @method
        (class_specifier name: (type_identifier) @class.name) @class
        (struct_specifier name: (type_identifier) @struct.name) @struct
        (enum_specifier name: (type_identifier) @enum.name) @enum
        (type_definition declarator: (type_identifier) @type_alias.name) @type_alias
        (namespace_definition name: (namespace_identifier) @module.name) @module
        (preproc_include) @include
        (comment) @comment
        (string_literal) @string
        (call_expression function: (identifier) @call.name) @call
        (call_expression function: (field_expression) @call.name) @call
    `
	register(lang.C, cppLang, cppQuery, true)
	register(lang.CPP, cppLang, cppQuery, true)

	register(lang.PHP, tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()), `
        (class_declaration name: (name) @class.name) @class
        (interface_declaration name: (name) @interface.name) @interface
        (trait_declaration name: (name) @trait.name) @trait
        (enum_declaration name: (name) @enum.name) @enum
        (function_definition name: (name) @function.name) @function
        (method_declaration name: (name) @method.name) @method
        (namespace_definition name: (namespace_name) @module.name) @module
        (namespace_use_declaration) @import
        (comment) @comment
        (string) @string
        (function_call_expression function: (name) @call.name) @call
        (member_call_expression name: (name) @call.name) @call
    `, false)

	register(lang.Zig, tree_sitter.NewLanguage(tree_sitter_zig.Language()), `
        (function_declaration (identifier) @function.name) @function
        (variable_declaration
          (identifier) @struct.name
          (struct_declaration) @struct)
        (variable_declaration
          (identifier) @struct.name
          (union_declaration) @struct)
    `, false)
}
