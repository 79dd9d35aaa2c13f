package parser

import (
	"microscope/internal/engine/lexer"
	"strconv"
	"strings"
	"unicode"
)

type opener int

const (
	openOther opener = iota
	openParams
	openCatch
	openAttribute
)

// refContext is the structure ClassifyPosition needs about the whole file:
// which brackets open parameter lists, which tokens belong to namespace/import
// statements and which belong to class-body trait uses.
type refContext struct {
	sig []lexer.Token
	// enclosing[i] is the index of the innermost open bracket around token i, -1 at top level
	enclosing []int
	openers   map[int]opener
	// paramClosers holds the ")" indices that close a parameter or closure-use list
	paramClosers map[int]bool
	statement    []bool
	traitUse     []bool
	headerList   []Position
	insteadof    []bool
}

func newRefContext(sig []lexer.Token) *refContext {
	c := &refContext{
		sig:          sig,
		enclosing:    make([]int, len(sig)),
		openers:      make(map[int]opener),
		paramClosers: make(map[int]bool),
		statement:    make([]bool, len(sig)),
		traitUse:     make([]bool, len(sig)),
		headerList:   make([]Position, len(sig)),
		insteadof:    make([]bool, len(sig)),
	}
	c.matchBrackets()
	c.markStatements()
	return c
}

func (c *refContext) matchBrackets() {
	var stack []int
	top := func() int {
		if len(stack) == 0 {
			return -1
		}
		return stack[len(stack)-1]
	}
	for i, tok := range c.sig {
		switch {
		case tok.IsPunct("("), tok.IsPunct("["), tok.IsPunct("{"), tok.IsPunct("#["):
			c.enclosing[i] = top()
			c.openers[i] = c.classifyOpener(i)
			stack = append(stack, i)
		case tok.IsPunct(")"), tok.IsPunct("]"), tok.IsPunct("}"):
			if len(stack) > 0 {
				open := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if c.openers[open] == openParams && tok.IsPunct(")") {
					c.paramClosers[i] = true
				}
			}
			c.enclosing[i] = top()
		default:
			c.enclosing[i] = top()
		}
	}
}

func (c *refContext) classifyOpener(i int) opener {
	tok := c.sig[i]
	if tok.IsPunct("#[") {
		return openAttribute
	}
	if !tok.IsPunct("(") || i == 0 {
		return openOther
	}
	prev := c.sig[i-1]
	switch prev.Kind {
	case lexer.KindFunction, lexer.KindFn:
		return openParams
	case lexer.KindCatch:
		return openCatch
	case lexer.KindUse:
		// closure use list; its ")" may be followed by a return type
		return openParams
	case lexer.KindIdentifier, lexer.KindKeyword:
		// function name(...) and function &name(...); reserved words are legal method names
		if i >= 2 && c.sig[i-2].Kind == lexer.KindFunction {
			return openParams
		}
		if i >= 3 && c.sig[i-2].IsPunct("&") && c.sig[i-3].Kind == lexer.KindFunction {
			return openParams
		}
	}
	return openOther
}

// markStatements flags tokens of namespace statements, file-scope imports,
// class-body trait uses, extends/implements lists and insteadof lists.
func (c *refContext) markStatements() {
	var scope scopeTracker
	for i := 0; i < len(c.sig); i++ {
		tok := c.sig[i]
		switch {
		case tok.Kind == lexer.KindNamespace:
			i = c.markUntil(i, c.statement, false)
			scope.pendingNamespace = c.sig[i].IsPunct("{")
		case tok.Kind == lexer.KindUse && !isClosureUse(c.sig, i):
			if scope.atFileScope() {
				i = c.markUntil(i, c.statement, true)
			} else {
				i = c.markUntil(i, c.traitUse, false)
			}
		case tok.Kind == lexer.KindExtends || tok.Kind == lexer.KindImplements:
			pos := PosExtends
			if tok.Kind == lexer.KindImplements {
				pos = PosImplements
			}
			for j := i + 1; j < len(c.sig); j++ {
				t := c.sig[j]
				if t.IsPunct("{") || t.Kind == lexer.KindImplements || t.Kind == lexer.KindExtends {
					break
				}
				c.headerList[j] = pos
			}
		case tok.Kind == lexer.KindInsteadof:
			for j := i + 1; j < len(c.sig) && !c.sig[j].IsPunct(";") && !c.sig[j].IsPunct("}"); j++ {
				c.insteadof[j] = true
			}
		}
		scope.observe(c.sig[i])
	}
}

// markUntil flags tokens from i up to the statement end and returns the index
// of the terminating ";" or "{". Group imports keep going through their braces.
func (c *refContext) markUntil(i int, marks []bool, allowGroup bool) int {
	j := i
	for ; j < len(c.sig); j++ {
		marks[j] = true
		t := c.sig[j]
		if t.IsPunct(";") {
			return j
		}
		if t.IsPunct("{") {
			if allowGroup && j > 0 && c.sig[j-1].IsPunct(Separator) {
				for j < len(c.sig) && !c.sig[j].IsPunct("}") {
					marks[j] = true
					j++
				}
				if j < len(c.sig) {
					marks[j] = true
				}
				continue
			}
			marks[j] = false
			return j
		}
	}
	return len(c.sig) - 1
}

// ClassifyPosition decides whether the identifier at index i of the significant
// token stream is a symbol reference and in which syntactic slot it sits.
//
// Qualified names are references anywhere except member names, declarations,
// namespace statements and imports. Bare names must be capitalized and sit
// after new, instanceof, extends, implements, insteadof or "#[", before "::",
// in a type position or in a class-body trait use. Pseudo-types never count.
//
// Each call rebuilds the bracket and statement tables for sig, so it costs
// O(len(sig)). It is meant for single lookups in tests and debugging;
// ExtractReferences builds the tables once per file.
func ClassifyPosition(sig []lexer.Token, i int) (Position, bool) {
	return newRefContext(sig).classify(i)
}

func (c *refContext) classify(i int) (Position, bool) {
	tok := c.sig[i]
	if tok.Kind != lexer.KindIdentifier || c.statement[i] {
		return "", false
	}
	name := TrimSeparators(tok.Text)
	if name == "" || IsPseudoType(name) {
		return "", false
	}

	var prev, next lexer.Token
	if i > 0 {
		prev = c.sig[i-1]
	}
	if i+1 < len(c.sig) {
		next = c.sig[i+1]
	}

	switch {
	case prev.IsPunct("->"), prev.IsPunct("?->"), prev.IsPunct("::"):
		return "", false
	case prev.Kind == lexer.KindFunction, prev.Kind == lexer.KindConst, prev.Kind == lexer.KindAs,
		prev.Kind == lexer.KindClass, prev.Kind == lexer.KindInterface, prev.Kind == lexer.KindTrait:
		return "", false
	case prev.IsKeyword("goto"):
		return "", false
	case prev.Kind == lexer.KindIdentifier && strings.EqualFold(prev.Text, "enum"):
		return "", false
	}

	qualified := IsQualified(tok.Text)
	if c.isAttributeName(i, prev) {
		if !qualified && !isCapitalized(name) {
			return "", false
		}
		return PosAttribute, true
	}
	if !qualified && next.IsPunct("(") && prev.Kind != lexer.KindNew {
		return "", false
	}
	if !qualified && next.IsPunct(":") {
		return "", false
	}

	if pos, ok := c.slot(i, prev, next); ok {
		if !qualified && !isCapitalized(ShortName(name)) {
			return "", false
		}
		return pos, true
	}
	if !qualified {
		return "", false
	}
	if !next.IsPunct("(") && looksLikeConstant(ShortName(name)) {
		return "", false
	}
	return PosQualified, true
}

// slot reports the explicit syntactic position of the name at i, if any.
func (c *refContext) slot(i int, prev, next lexer.Token) (Position, bool) {
	switch {
	case prev.Kind == lexer.KindNew:
		return PosNew, true
	case prev.Kind == lexer.KindInstanceof:
		return PosInstanceof, true
	case c.insteadof[i]:
		return PosInsteadof, true
	case c.headerList[i] != "":
		return c.headerList[i], true
	case next.IsPunct("::"):
		return PosStatic, true
	case c.traitUse[i]:
		return PosTraitUse, true
	}
	if enc := c.enclosing[i]; enc >= 0 && c.openers[enc] == openCatch {
		return PosTypeHint, true
	}
	return c.typeSlot(i)
}

func (c *refContext) isAttributeName(i int, prev lexer.Token) bool {
	enc := c.enclosing[i]
	if enc < 0 || c.openers[enc] != openAttribute {
		return false
	}
	return prev.IsPunct("#[") || prev.IsPunct(",")
}

// typeSlot recognizes parameter, property and return type declarations.
func (c *refContext) typeSlot(i int) (Position, bool) {
	start := i
	for start > 0 && c.isTypePart(start-1) {
		start--
	}
	end := i
	for end+1 < len(c.sig) && c.isTypePart(end+1) {
		end++
	}
	if start == 0 {
		return "", false
	}
	before := c.sig[start-1]

	if before.IsPunct(":") && start >= 2 && c.paramClosers[start-2] {
		return PosReturnType, true
	}

	if end+1 >= len(c.sig) {
		return "", false
	}
	after := c.sig[end+1]
	if after.IsPunct("&") && end+2 < len(c.sig) {
		after = c.sig[end+2]
	}
	if after.Kind != lexer.KindVariable && !after.IsPunct("...") {
		return "", false
	}
	if isModifier(before) {
		return PosTypeHint, true
	}
	if before.IsPunct("(") || before.IsPunct(",") || before.IsPunct("]") {
		enc := c.enclosing[start-1]
		if before.IsPunct("(") {
			enc = start - 1
		}
		if enc >= 0 && c.openers[enc] == openParams {
			return PosTypeHint, true
		}
	}
	return "", false
}

func (c *refContext) isTypePart(j int) bool {
	tok := c.sig[j]
	switch {
	case tok.Kind == lexer.KindIdentifier:
		return true
	case tok.IsPunct("|"), tok.IsPunct("?"):
		return true
	case tok.IsPunct("&"):
		// "&$x" and "&...$x" are by-reference markers, not intersections
		return j+1 < len(c.sig) && c.sig[j+1].Kind == lexer.KindIdentifier
	case tok.IsKeyword("array"), tok.IsKeyword("callable"), tok.IsKeyword("static"):
		return !isModifierContext(c.sig, j)
	}
	return false
}

// isModifierContext is true for "static" used as a modifier rather than a type.
func isModifierContext(sig []lexer.Token, j int) bool {
	if !sig[j].IsKeyword("static") || j+1 >= len(sig) {
		return false
	}
	next := sig[j+1]
	return next.Kind == lexer.KindFunction || next.Kind == lexer.KindFn || isModifier(next) ||
		next.Kind == lexer.KindVariable || next.Kind == lexer.KindIdentifier || next.IsPunct("?")
}

func isModifier(tok lexer.Token) bool {
	switch strings.ToLower(tok.Text) {
	case "public", "protected", "private", "readonly", "var", "static", "final", "abstract":
		return true
	}
	return false
}

// looksLikeConstant matches UPPER_CASE names such as \PHP_EOL.
func looksLikeConstant(name string) bool {
	hasUpper := false
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper && len(name) > 1
}

// ResolveName expands a name as written in the source against the file's
// namespace and class imports. covered is true when the name is exactly an
// import alias, which the import check already handles.
func ResolveName(raw, namespace string, imports []ImportStatement) (name string, covered bool) {
	if strings.HasPrefix(raw, Separator) {
		return TrimSeparators(raw), false
	}
	trimmed := TrimSeparators(raw)
	first, rest := firstSegment(trimmed)
	if strings.EqualFold(first, "namespace") && rest != "" {
		return joinName(namespace, rest), false
	}
	for _, imp := range imports {
		if imp.Kind != ImportClass || !strings.EqualFold(imp.Alias, first) {
			continue
		}
		if rest == "" {
			return imp.Name, true
		}
		return imp.Name + Separator + rest, false
	}
	return joinName(namespace, trimmed), false
}

func joinName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + Separator + name
}

// ExtractReferences returns the names in the body that need an existence check.
// Names covered by an import alias and the file's own type are left out;
// duplicates on the same line are reported once.
func ExtractReferences(tokens []lexer.Token, decl DeclarationInfo, imports []ImportStatement) []SymbolReference {
	sig := significant(tokens)
	ctx := newRefContext(sig)
	own := decl.FullName()
	seen := make(map[string]bool)

	var refs []SymbolReference
	for i, tok := range sig {
		if tok.Kind != lexer.KindIdentifier {
			continue
		}
		pos, ok := ctx.classify(i)
		if !ok {
			continue
		}
		name, covered := ResolveName(tok.Text, decl.Namespace, imports)
		if covered || name == "" {
			continue
		}
		if own != "" && strings.EqualFold(name, own) {
			continue
		}
		key := strings.ToLower(name) + "#" + strconv.Itoa(tok.Line)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, SymbolReference{RawName: tok.Text, Name: name, Line: tok.Line, Position: pos})
	}
	return refs
}
