package namespace

import (
	"fmt"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/engine/lexer"
	"microscope/internal/engine/parser"
	"microscope/internal/shared/util"
	"strings"
)

const bladeSuffix = ".blade.php"

// Policy decides which files the namespace pass leaves alone.
type Policy struct {
	// MigrationDirs are directories whose files keep whatever namespace they declare.
	MigrationDirs []string
	// ReservedParents are base type short names (e.g. "Migration") that exempt a class.
	ReservedParents []string
}

// Skip returns a reason when filePath or its declaration is exempt.
func (p Policy) Skip(filePath string, decl parser.DeclarationInfo) (string, bool) {
	file := NormalizePath(filePath)
	if strings.HasSuffix(strings.ToLower(file), bladeSuffix) {
		return "blade template", true
	}
	for _, dir := range p.MigrationDirs {
		if dir != "" && util.HasPathPrefix(file, dir) {
			return "migration directory", true
		}
	}
	if !decl.HasType() {
		return "no type declaration", true
	}
	parent := parser.ShortName(decl.Parent)
	for _, reserved := range p.ReservedParents {
		if parent != "" && parent == reserved {
			return "reserved parent " + reserved, true
		}
	}
	return "", false
}

// Result is the outcome of checking one file against the mappings.
type Result struct {
	Expected    Expected
	Declared    string
	Diagnostics []diagnostic.Diagnostic
	// Fix rewrites or inserts the namespace statement; nil when no fix applies.
	Fix *diagnostic.Fix
}

// Consistent reports whether the file matched its location in every dimension.
func (r Result) Consistent() bool {
	return len(r.Diagnostics) == 0
}

// Check compares the declared namespace and type name with the ones implied by
// filePath. ok is false when the file lies outside every mapping or declares
// no type. The namespace mismatch carries a fix; a type/file name mismatch is
// reported as an error without one.
func Check(filePath string, decl parser.DeclarationInfo, tokens []lexer.Token, mappings []Mapping) (Result, bool) {
	if !decl.HasType() {
		return Result{}, false
	}
	expected, ok := ComputeExpected(filePath, mappings)
	if !ok {
		return Result{}, false
	}

	res := Result{
		Expected: expected,
		Declared: parser.TrimSeparators(decl.Namespace),
	}

	if res.Declared != expected.Namespace {
		fix := ComputeFix(filePath, tokens, expected.Namespace)
		line := decl.NamespaceLine
		if line == 0 {
			line = decl.TypeLine
		}
		d := diagnostic.Diagnostic{
			Kind:     diagnostic.NamespaceMismatch,
			Severity: diagnostic.SeverityWarning,
			FilePath: filePath,
			Line:     line,
			Symbol:   expected.Namespace,
			Detail:   mismatchDetail(res.Declared, expected.Namespace),
			Fix:      fix,
		}
		res.Diagnostics = append(res.Diagnostics, d)
		res.Fix = fix
	}

	if decl.TypeName != expected.TypeName {
		res.Diagnostics = append(res.Diagnostics, diagnostic.Diagnostic{
			Kind:     diagnostic.NamespaceMismatch,
			Severity: diagnostic.SeverityError,
			FilePath: filePath,
			Line:     decl.TypeLine,
			Symbol:   expected.FullName(),
			Detail:   fmt.Sprintf("%s %s does not match file name %s", decl.Kind, decl.TypeName, expected.TypeName),
		})
	}
	return res, true
}

func mismatchDetail(declared, expected string) string {
	if declared == "" {
		return fmt.Sprintf("missing namespace, expected %s", expected)
	}
	if expected == "" {
		return fmt.Sprintf("namespace %s declared outside any namespace root", declared)
	}
	return fmt.Sprintf("namespace %s should be %s", declared, expected)
}

// Statement describes an existing namespace statement on a single line.
type Statement struct {
	Line       int
	Name       string
	Terminator string
}

// Text renders the statement as it is written in canonical form.
func (s Statement) Text() string {
	return "namespace " + s.Name + s.Terminator
}

// FindStatement locates the first namespace statement. ok is false when there
// is none or when it spans several lines.
func FindStatement(tokens []lexer.Token) (Statement, bool) {
	for i, tok := range tokens {
		if tok.Kind != lexer.KindNamespace {
			continue
		}
		stmt := Statement{Line: tok.Line}
		for j := i + 1; j < len(tokens); j++ {
			t := tokens[j]
			if !t.IsSignificant() {
				continue
			}
			if t.Kind == lexer.KindIdentifier {
				if t.Line != stmt.Line {
					return Statement{}, false
				}
				stmt.Name += t.Text
				continue
			}
			if t.IsPunct(";") || t.IsPunct("{") {
				if t.Line != stmt.Line {
					return Statement{}, false
				}
				stmt.Terminator = t.Text
				if t.Text == "{" {
					stmt.Terminator = " {"
				}
				return stmt, true
			}
			return Statement{}, false
		}
		return Statement{}, false
	}
	return Statement{}, false
}

// ComputeFix builds the instruction that makes the file declare expected.
// An existing statement is replaced in place; otherwise the statement is
// inserted after the open tag or after a leading declare(...) statement, on a
// line of its own unless code follows on the same line.
func ComputeFix(filePath string, tokens []lexer.Token, expected string) *diagnostic.Fix {
	if stmt, ok := FindStatement(tokens); ok {
		if expected == "" {
			return nil
		}
		next := Statement{Line: stmt.Line, Name: expected, Terminator: stmt.Terminator}
		return &diagnostic.Fix{
			FilePath: filePath,
			Line:     stmt.Line,
			OldText:  stmt.Text(),
			NewText:  next.Text(),
		}
	}
	for _, tok := range tokens {
		if tok.Kind == lexer.KindNamespace {
			// present but not fixable on a single line
			return nil
		}
	}
	if expected == "" {
		return nil
	}

	stmt := Statement{Name: expected, Terminator: ";"}.Text()
	anchor, follow, ok := insertionPoint(tokens)
	if !ok {
		return nil
	}
	if follow == nil || follow.Line != anchor.Line {
		return &diagnostic.Fix{FilePath: filePath, Line: anchor.Line, NewText: stmt, Insert: true}
	}

	// Code continues on the anchor's line, so the statement is spliced in
	// right after the anchor instead of on a line of its own.
	text := strings.TrimSpace(anchor.Text)
	if anchor.IsPunct(";") && semicolonBefore(tokens, anchor) {
		return nil
	}
	return &diagnostic.Fix{
		FilePath: filePath,
		Line:     anchor.Line,
		OldText:  text,
		NewText:  text + " " + stmt,
	}
}

// insertionPoint finds the token a missing namespace statement must follow:
// the open tag, or the ";" closing a leading declare(...). follow is the
// first significant token after it, nil at end of file.
func insertionPoint(tokens []lexer.Token) (anchor, follow *lexer.Token, ok bool) {
	if len(tokens) == 0 {
		return nil, nil, false
	}
	anchor = &tokens[0]
	inDeclare := false
	for i := range tokens {
		tok := &tokens[i]
		if !tok.IsSignificant() {
			continue
		}
		switch {
		case inDeclare:
			if tok.IsPunct(";") {
				anchor = tok
				inDeclare = false
			}
		case tok.IsKeyword("declare"):
			inDeclare = true
		default:
			return anchor, tok, true
		}
	}
	return anchor, nil, true
}

// semicolonBefore reports whether the anchor's line holds another ";" before
// it, in which case the first match on the line is not the anchor.
func semicolonBefore(tokens []lexer.Token, anchor *lexer.Token) bool {
	for i := range tokens {
		tok := &tokens[i]
		if tok == anchor {
			return false
		}
		if tok.Line == anchor.Line && strings.Contains(tok.Text, ";") {
			return true
		}
	}
	return false
}
