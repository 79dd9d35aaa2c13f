package parser

import (
	"microscope/internal/engine/lexer"
	"strings"
	"unicode"
)

// Separator is the namespace separator.
const Separator = `\`

// significant drops comments and tags so that scans can look at neighbours
// without skipping trivia every time.
func significant(tokens []lexer.Token) []lexer.Token {
	out := make([]lexer.Token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.IsSignificant() {
			out = append(out, tok)
		}
	}
	return out
}

// TrimSeparators removes leading and trailing namespace separators.
func TrimSeparators(name string) string {
	return strings.Trim(strings.TrimSpace(name), Separator)
}

// IsQualified reports whether name contains a namespace separator.
func IsQualified(name string) bool {
	return strings.Contains(name, Separator)
}

// ShortName returns the last segment of a qualified name.
func ShortName(name string) string {
	name = TrimSeparators(name)
	if idx := strings.LastIndex(name, Separator); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func firstSegment(name string) (string, string) {
	if idx := strings.Index(name, Separator); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return name, ""
}

func isCapitalized(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsUpper(rune(name[0]))
}

// pseudoTypes are names that never refer to a declared symbol.
var pseudoTypes = map[string]bool{
	"self": true, "static": true, "parent": true,
	"true": true, "false": true, "null": true,
	"int": true, "integer": true, "float": true, "double": true, "string": true,
	"bool": true, "boolean": true, "array": true, "iterable": true, "object": true,
	"mixed": true, "void": true, "never": true, "callable": true, "resource": true,
}

// IsPseudoType reports whether name is a reserved type or constant name.
func IsPseudoType(name string) bool {
	return pseudoTypes[strings.ToLower(name)]
}

func appendUnique(values []string, seen map[string]bool, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return values
	}
	if seen[value] {
		return values
	}
	seen[value] = true
	return append(values, value)
}
