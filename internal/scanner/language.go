package scanner

import (
	"path/filepath"
	"strings"
)

// extToLanguage maps file extensions to language tags. The tag is what the
// chunker's strategy table is keyed by.
var extToLanguage = map[string]string{
	".go":       "go",
	".py":       "python",
	".js":       "javascript",
	".mjs":      "javascript",
	".jsx":      "jsx",
	".ts":       "typescript",
	".tsx":      "tsx",
	".md":       "markdown",
	".markdown": "markdown",
	".rst":      "text",
	".txt":      "text",
	".yaml":     "yaml",
	".yml":      "yaml",
	".json":     "json",
	".toml":     "toml",
	".sh":       "shell",
	".sql":      "sql",
	".html":     "html",
	".css":      "css",
}

// codeLanguages are languages with a structural (AST) chunking strategy.
var codeLanguages = map[string]bool{
	"go":         true,
	"python":     true,
	"javascript": true,
	"jsx":        true,
	"typescript": true,
	"tsx":        true,
}

// DetectLanguage returns the language tag for a path, or "text" when the
// extension is unknown.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extToLanguage[ext]; ok {
		return lang
	}
	return "text"
}

// DetectContentType classifies a language tag for strategy selection.
func DetectContentType(language string) ContentType {
	switch {
	case language == "markdown":
		return ContentTypeMarkdown
	case codeLanguages[language]:
		return ContentTypeCode
	default:
		return ContentTypeText
	}
}
