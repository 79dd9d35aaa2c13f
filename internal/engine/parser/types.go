package parser

import "microscope/internal/engine/lexer"

// File is the structured model extracted from a single source file.
type File struct {
	Path        string
	Declaration DeclarationInfo
	Imports     []ImportStatement
	References  []SymbolReference
	Callables   []CallableReference
	Tokens      []lexer.Token
}

// Options selects the optional scans of Analyze.
type Options struct {
	Callables    bool
	OnlyAbsolute bool
}

// Analyze runs the reference extractors over an already tokenized file whose
// declaration is known.
func Analyze(path string, tokens []lexer.Token, decl DeclarationInfo, opts Options) *File {
	f := &File{Path: path, Declaration: decl, Tokens: tokens}
	f.Imports = ExtractImports(tokens)
	f.References = ExtractReferences(tokens, decl, f.Imports)
	if opts.Callables {
		f.Callables = ScanCallables(tokens, opts.OnlyAbsolute)
	}
	return f
}

// FullTypeName returns the namespaced name of the declared type, or "" when the
// file declares no type.
func (f *File) FullTypeName() string {
	return f.Declaration.FullName()
}

type DeclarationKind int

const (
	KindNone DeclarationKind = iota
	KindClass
	KindInterface
	KindTrait
)

func (k DeclarationKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	}
	return "none"
}

// DeclarationInfo describes the first namespace and the first type declared in
// a file. Kind is KindNone exactly when TypeName is empty.
type DeclarationInfo struct {
	Namespace  string
	TypeName   string
	Kind       DeclarationKind
	Parent     string
	Interfaces []string
	// NamespaceLine is the line of the namespace statement, 0 when absent.
	NamespaceLine int
	TypeLine      int
}

// HasType reports whether a class, interface or trait was found.
func (d DeclarationInfo) HasType() bool {
	return d.Kind != KindNone && d.TypeName != ""
}

// FullName joins namespace and type name.
func (d DeclarationInfo) FullName() string {
	if d.TypeName == "" {
		return ""
	}
	if d.Namespace == "" {
		return d.TypeName
	}
	return d.Namespace + `\` + d.TypeName
}

type ImportKind string

const (
	ImportClass    ImportKind = "class"
	ImportFunction ImportKind = "function"
	ImportConst    ImportKind = "const"
)

// ImportStatement is a single imported name from a file-scope use statement.
type ImportStatement struct {
	Name  string // Fully qualified, without leading separator
	Alias string
	Kind  ImportKind
	Line  int
}

// Position records the syntactic slot a reference was found in.
type Position string

const (
	PosQualified  Position = "qualified"
	PosNew        Position = "new"
	PosInstanceof Position = "instanceof"
	PosExtends    Position = "extends"
	PosImplements Position = "implements"
	PosStatic     Position = "static_access"
	PosTypeHint   Position = "type_hint"
	PosReturnType Position = "return_type"
	PosTraitUse   Position = "trait_use"
	PosInsteadof  Position = "insteadof"
	PosAttribute  Position = "attribute"
)

// SymbolReference is a name used in the body that no import covers.
type SymbolReference struct {
	RawName  string // As written in the source
	Name     string // Resolved against imports/namespace, separators trimmed
	Line     int
	Position Position
}

// CallableReference is a "Class@method" string literal.
type CallableReference struct {
	ClassName  string
	MethodName string
	Literal    string
	Line       int
}
