package parser

import (
	"microscope/internal/engine/lexer"
)

// scopeTracker follows brace depth while ignoring the braces of bracketed
// namespace blocks, so that "file scope" also covers namespace { ... } bodies.
type scopeTracker struct {
	stack            []bool
	depth            int
	pendingNamespace bool
}

func (s *scopeTracker) observe(tok lexer.Token) {
	switch {
	case tok.Kind == lexer.KindNamespace && s.depth == 0:
		s.pendingNamespace = true
	case tok.IsPunct(";"):
		s.pendingNamespace = false
	case tok.IsPunct("{"):
		s.stack = append(s.stack, s.pendingNamespace)
		if !s.pendingNamespace {
			s.depth++
		}
		s.pendingNamespace = false
	case tok.IsPunct("}"):
		if len(s.stack) == 0 {
			return
		}
		isNamespace := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		if !isNamespace && s.depth > 0 {
			s.depth--
		}
	}
}

func (s *scopeTracker) atFileScope() bool {
	return s.depth == 0
}

// ExtractImports returns every file-scope use statement in source order.
// Closure "use (...)" clauses and trait uses inside class bodies are skipped.
func ExtractImports(tokens []lexer.Token) []ImportStatement {
	sig := significant(tokens)
	var imports []ImportStatement
	var scope scopeTracker

	for i := 0; i < len(sig); i++ {
		tok := sig[i]
		if tok.Kind == lexer.KindUse && scope.atFileScope() && !isClosureUse(sig, i) {
			parsed, end := parseUseStatement(sig, i)
			imports = append(imports, parsed...)
			i = end
			continue
		}
		scope.observe(tok)
	}
	return imports
}

func isClosureUse(sig []lexer.Token, i int) bool {
	return i+1 < len(sig) && sig[i+1].IsPunct("(")
}

// parseUseStatement parses the statement starting at the use keyword at i and
// returns the imports and the index of the terminating token.
func parseUseStatement(sig []lexer.Token, i int) ([]ImportStatement, int) {
	var imports []ImportStatement
	j := i + 1
	kind := importKindAt(sig, j)
	if kind != ImportClass {
		j++
	}

	for j < len(sig) {
		tok := sig[j]
		if tok.IsPunct(";") {
			return imports, j
		}
		if tok.Kind != lexer.KindIdentifier {
			j++
			continue
		}

		name := TrimSeparators(tok.Text)
		if j+2 < len(sig) && sig[j+1].IsPunct(Separator) && sig[j+2].IsPunct("{") {
			group, end := parseGroupUse(sig, j+3, name, kind)
			imports = append(imports, group...)
			j = end + 1
			continue
		}

		imp := ImportStatement{Name: name, Alias: ShortName(name), Kind: kind, Line: tok.Line}
		j++
		if j+1 < len(sig) && sig[j].Kind == lexer.KindAs {
			imp.Alias = sig[j+1].Text
			j += 2
		}
		imports = append(imports, imp)
	}
	return imports, len(sig) - 1
}

// parseGroupUse parses the items of "use Prefix\{A, function b, C as D}"
// starting right after the opening brace. It returns the index of the closing brace.
func parseGroupUse(sig []lexer.Token, j int, prefix string, kind ImportKind) ([]ImportStatement, int) {
	var imports []ImportStatement
	for j < len(sig) {
		tok := sig[j]
		if tok.IsPunct("}") {
			return imports, j
		}
		if tok.Kind != lexer.KindIdentifier {
			j++
			continue
		}
		itemKind := kind
		if k := importKindAt(sig, j-1); k != ImportClass {
			itemKind = k
		}
		name := prefix + Separator + TrimSeparators(tok.Text)
		imp := ImportStatement{Name: name, Alias: ShortName(name), Kind: itemKind, Line: tok.Line}
		j++
		if j+1 < len(sig) && sig[j].Kind == lexer.KindAs {
			imp.Alias = sig[j+1].Text
			j += 2
		}
		imports = append(imports, imp)
	}
	return imports, len(sig) - 1
}

func importKindAt(sig []lexer.Token, j int) ImportKind {
	if j >= len(sig) {
		return ImportClass
	}
	switch sig[j].Kind {
	case lexer.KindFunction:
		return ImportFunction
	case lexer.KindConst:
		return ImportConst
	}
	return ImportClass
}
