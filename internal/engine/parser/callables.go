package parser

import (
	"microscope/internal/engine/lexer"
	"strings"
)

// CallableSeparator splits the class and method halves of a callable string.
const CallableSeparator = "@"

// ScanCallables returns the "Class@method" string literals in tokens. Literals
// with zero or several "@", and those whose class half has no namespace
// separator, are skipped. With onlyAbsolute set, the literal must also start
// with a separator.
func ScanCallables(tokens []lexer.Token, onlyAbsolute bool) []CallableReference {
	var refs []CallableReference
	for _, tok := range tokens {
		if tok.Kind != lexer.KindString {
			continue
		}
		ref, ok := ParseCallable(tok.Value, onlyAbsolute)
		if !ok {
			continue
		}
		ref.Line = tok.Line
		refs = append(refs, ref)
	}
	return refs
}

// ParseCallable splits a decoded string body into a callable reference.
func ParseCallable(body string, onlyAbsolute bool) (CallableReference, bool) {
	if strings.Count(body, CallableSeparator) != 1 {
		return CallableReference{}, false
	}
	if onlyAbsolute && !strings.HasPrefix(body, Separator) {
		return CallableReference{}, false
	}
	class, method, _ := strings.Cut(body, CallableSeparator)
	if !IsQualified(class) || method == "" {
		return CallableReference{}, false
	}
	if strings.ContainsAny(class, " \t\n") || strings.ContainsAny(method, " \t\n") {
		return CallableReference{}, false
	}
	return CallableReference{
		ClassName:  TrimSeparators(class),
		MethodName: method,
		Literal:    body,
	}, true
}
