// Package parse implements C2: the incremental, multi-language parser
// (spec §4.2). The tree-sitter registry shape — lazily initialized
// per-extension parsers and precompiled queries guarded by a mutex —
// is grounded on the teacher's internal/parser/parser.go and
// parser_language_setup.go.
package parse

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// langSpec describes one registered language: its extensions, its
// grammar constructor, the main capture query, and an optional
// heritage query used only for EXTENDS/IMPLEMENTS extraction.
type langSpec struct {
	name        string
	extensions  []string
	language    func() *tree_sitter.Language
	query       string
	heritage    string // empty if the language has no heritage concept wired
}

func languageSpecs() []langSpec {
	return []langSpec{
		{
			name:       "go",
			extensions: []string{".go"},
			language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_go.Language()) },
			query: `
				(function_declaration name: (identifier) @function.name) @function
				(method_declaration name: (field_identifier) @method.name) @method
				(type_declaration (type_spec name: (type_identifier) @type.name)) @type
				(var_declaration (var_spec name: (identifier) @variable.name)) @variable
				(import_spec path: (interpreted_string_literal) @import.path) @import
			`,
		},
		{
			name:       "javascript",
			extensions: []string{".js", ".jsx", ".mjs"},
			language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_javascript.Language()) },
			query: `
				(function_declaration name: (identifier) @function.name) @function
				(generator_function_declaration name: (identifier) @function.name) @function
				(variable_declarator name: (identifier) @function.name value: [(arrow_function) (function_expression)]) @function
				(method_definition name: (property_identifier) @method.name) @method
				(class_declaration name: (identifier) @class.name) @class
				(variable_declarator name: (identifier) @variable.name value: (_) @variable.value) @variable
				(import_statement source: (string) @import.source) @import
				(decorator (identifier) @decorator.name) @decorator
				(call_expression function: (identifier) @call.name) @call
			`,
			heritage: `(class_declaration (class_heritage (extends_clause value: (_) @heritage.extends)))`,
		},
		{
			name:       "typescript",
			extensions: []string{".ts", ".tsx"},
			language: func() *tree_sitter.Language {
				return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
			},
			query: `
				(function_declaration name: (identifier) @function.name) @function
				(method_definition name: (property_identifier) @method.name) @method
				(class_declaration name: (type_identifier) @class.name) @class
				(interface_declaration name: (type_identifier) @interface.name) @interface
				(type_alias_declaration name: (type_identifier) @type.name) @type
				(variable_declarator name: (identifier) @variable.name value: (_) @variable.value) @variable
				(import_statement source: (string) @import.source) @import
				(decorator (identifier) @decorator.name) @decorator
				(call_expression function: (identifier) @call.name) @call
			`,
			heritage: `(class_declaration (class_heritage (extends_clause value: (_) @heritage.extends) (implements_clause (type_identifier) @heritage.implements)))`,
		},
		{
			name:       "python",
			extensions: []string{".py"},
			language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_python.Language()) },
			query: `
				(function_definition name: (identifier) @function.name) @function
				(class_definition name: (identifier) @class.name) @class
				(assignment left: (identifier) @variable.name) @variable
				(import_statement) @import
				(import_from_statement) @import
				(call function: (identifier) @call.name) @call
			`,
			heritage: `(class_definition superclasses: (argument_list (identifier) @heritage.extends))`,
		},
		{
			name:       "java",
			extensions: []string{".java"},
			language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_java.Language()) },
			query: `
				(method_declaration name: (identifier) @method.name) @method
				(class_declaration name: (identifier) @class.name) @class
				(interface_declaration name: (identifier) @interface.name) @interface
				(field_declaration declarator: (variable_declarator name: (identifier) @variable.name)) @variable
				(import_declaration) @import
			`,
			heritage: `(class_declaration superclass: (superclass (type_identifier) @heritage.extends) interfaces: (super_interfaces (type_list (type_identifier) @heritage.implements)))`,
		},
		{
			name:       "rust",
			extensions: []string{".rs"},
			language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_rust.Language()) },
			query: `
				(function_item name: (identifier) @function.name) @function
				(struct_item name: (type_identifier) @class.name) @class
				(trait_item name: (type_identifier) @interface.name) @interface
				(type_item name: (type_identifier) @type.name) @type
				(use_declaration) @import
			`,
			heritage: `(impl_item trait: (type_identifier) @heritage.implements type: (type_identifier) @impl.subject)`,
		},
		{
			name:       "php",
			extensions: []string{".php"},
			language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()) },
			query: `
				(function_definition name: (name) @function.name) @function
				(method_declaration name: (name) @method.name) @method
				(class_declaration name: (name) @class.name) @class
				(interface_declaration name: (name) @interface.name) @interface
				(namespace_use_declaration) @import
			`,
			heritage: `(class_declaration (base_clause (name) @heritage.extends) (class_interface_clause (name) @heritage.implements))`,
		},
		{
			name:       "csharp",
			extensions: []string{".cs"},
			language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_csharp.Language()) },
			query: `
				(method_declaration name: (identifier) @method.name) @method
				(class_declaration name: (identifier) @class.name) @class
				(interface_declaration name: (identifier) @interface.name) @interface
				(struct_declaration name: (identifier) @class.name) @class
				(property_declaration name: (identifier) @variable.name) @variable
				(using_directive) @import
			`,
			heritage: `(class_declaration (base_list (identifier) @heritage.extends))`,
		},
		{
			name:       "zig",
			extensions: []string{".zig"},
			language:   func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_zig.Language()) },
			query: `
				(function_declaration name: (identifier) @function.name) @function
				(variable_declaration name: (identifier) @variable.name) @variable
			`,
		},
	}
}

// compiledLang is one fully-prepared language entry: a parser instance
// plus its precompiled queries. Parser instances are not safe for
// concurrent Parse calls, so extractFile holds the entry's mu for the
// whole parse and query walk of one file.
type compiledLang struct {
	name           string
	language       *tree_sitter.Language
	parser         *tree_sitter.Parser
	query          *tree_sitter.Query
	heritage       *tree_sitter.Query
	mu             sync.Mutex
}

// Registry lazily compiles tree-sitter grammars and queries on first
// use per extension, then reuses them — mirrors the teacher's
// lazyInit/initialized bookkeeping in TreeSitterParser.
type Registry struct {
	mu        sync.RWMutex
	byExt     map[string]*compiledLang
	lazyInit  map[string]func() *compiledLang
	compiled  map[string]*compiledLang
}

// NewRegistry builds a registry with every known extension mapped to
// a lazy initializer; nothing is compiled until first use.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:    make(map[string]*compiledLang),
		lazyInit: make(map[string]func() *compiledLang),
		compiled: make(map[string]*compiledLang),
	}
	for _, spec := range languageSpecs() {
		spec := spec
		init := func() *compiledLang {
			return compileLang(spec)
		}
		for _, ext := range spec.extensions {
			r.lazyInit[ext] = init
		}
	}
	return r
}

func compileLang(spec langSpec) *compiledLang {
	lang := spec.language()
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(lang); err != nil {
		return nil
	}
	cl := &compiledLang{name: spec.name, language: lang, parser: parser}
	if q, err := tree_sitter.NewQuery(lang, spec.query); err == nil && q != nil {
		cl.query = q
	}
	if spec.heritage != "" {
		if q, err := tree_sitter.NewQuery(lang, spec.heritage); err == nil && q != nil {
			cl.heritage = q
		}
	}
	return cl
}

// ForExt returns the compiled language for a file extension (e.g.
// ".go"), compiling it on first use. Returns nil, false for unknown
// extensions.
func (r *Registry) ForExt(ext string) (*compiledLang, bool) {
	r.mu.RLock()
	if cl, ok := r.compiled[ext]; ok {
		r.mu.RUnlock()
		return cl, cl != nil
	}
	init, known := r.lazyInit[ext]
	r.mu.RUnlock()
	if !known {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cl, ok := r.compiled[ext]; ok {
		return cl, cl != nil
	}
	cl := init()
	r.compiled[ext] = cl
	return cl, cl != nil
}
