package chunk

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageConfig describes how to locate top-level structural boundaries
// in a language's AST.
type languageConfig struct {
	name string

	// Node types mapped to the structural chunk type they produce.
	symbolTypes map[string]ChunkType

	// nameChildTypes are child node types that carry the symbol name,
	// tried in order.
	nameChildTypes []string
}

// languageRegistry holds the structural configuration per code language.
// It is built once per Chunker; there is no package-level shared state.
type languageRegistry struct {
	configs     map[string]*languageConfig
	tsLanguages map[string]*sitter.Language
}

func newLanguageRegistry() *languageRegistry {
	r := &languageRegistry{
		configs:     make(map[string]*languageConfig),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerPython()
	r.registerJavaScript()
	r.registerTypeScript()
	return r
}

func (r *languageRegistry) config(language string) (*languageConfig, bool) {
	cfg, ok := r.configs[language]
	return cfg, ok
}

func (r *languageRegistry) treeSitterLanguage(language string) (*sitter.Language, bool) {
	lang, ok := r.tsLanguages[language]
	return lang, ok
}

func (r *languageRegistry) register(cfg *languageConfig, tsLang *sitter.Language) {
	r.configs[cfg.name] = cfg
	r.tsLanguages[cfg.name] = tsLang
}

func (r *languageRegistry) registerGo() {
	r.register(&languageConfig{
		name: "go",
		symbolTypes: map[string]ChunkType{
			"function_declaration": TypeFunction,
			"method_declaration":   TypeMethod,
			"type_declaration":     TypeTypeDecl,
		},
		nameChildTypes: []string{"identifier", "field_identifier", "type_identifier", "type_spec"},
	}, golang.GetLanguage())
}

func (r *languageRegistry) registerPython() {
	r.register(&languageConfig{
		name: "python",
		symbolTypes: map[string]ChunkType{
			"function_definition": TypeFunction,
			"class_definition":    TypeClass,
		},
		nameChildTypes: []string{"identifier"},
	}, python.GetLanguage())
}

func (r *languageRegistry) registerJavaScript() {
	jsConfig := &languageConfig{
		name: "javascript",
		symbolTypes: map[string]ChunkType{
			"function_declaration": TypeFunction,
			"class_declaration":    TypeClass,
			"method_definition":    TypeMethod,
		},
		nameChildTypes: []string{"identifier", "property_identifier"},
	}
	r.register(jsConfig, javascript.GetLanguage())

	// JSX uses the same grammar.
	jsxConfig := *jsConfig
	jsxConfig.name = "jsx"
	r.register(&jsxConfig, javascript.GetLanguage())
}

func (r *languageRegistry) registerTypeScript() {
	tsConfig := &languageConfig{
		name: "typescript",
		symbolTypes: map[string]ChunkType{
			"function_declaration":   TypeFunction,
			"class_declaration":      TypeClass,
			"method_definition":      TypeMethod,
			"interface_declaration":  TypeTypeDecl,
			"type_alias_declaration": TypeTypeDecl,
		},
		nameChildTypes: []string{"identifier", "type_identifier", "property_identifier"},
	}
	r.register(tsConfig, typescript.GetLanguage())

	tsxConfig := *tsConfig
	tsxConfig.name = "tsx"
	r.register(&tsxConfig, tsx.GetLanguage())
}
