package index

import (
	"regexp"
	"strings"
	"unicode"
)

// wordPattern matches alphanumeric runs, keeping underscores so
// snake_case identifiers survive the first pass intact.
var wordPattern = regexp.MustCompile(`[a-zA-Z0-9_]+`)

var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "of": {}, "on": {}, "and": {},
	"an": {}, "to": {}, "in": {}, "for": {}, "with": {}, "as": {},
	"by": {}, "be": {}, "this": {}, "that": {}, "it": {}, "from": {},
	"or": {}, "are": {}, "was": {}, "were": {}, "not": {},
}

// Tokenize splits text with code-aware rules: camelCase, PascalCase and
// snake_case identifiers are broken into their parts, everything is
// lowercased, and stop words and single characters are dropped.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range wordPattern.FindAllString(text, -1) {
		for _, part := range splitIdentifier(word) {
			lower := strings.ToLower(part)
			if len(lower) < 2 {
				continue
			}
			if _, stop := stopWords[lower]; stop {
				continue
			}
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

func splitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

// splitCamelCase breaks camelCase and PascalCase runs, keeping acronyms
// together: "parseHTTPRequest" becomes ["parse", "HTTP", "Request"].
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
