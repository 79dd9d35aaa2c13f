// Package index builds the project symbol table that the existence checks
// query: every class, interface, trait, enum and function declared under the
// configured roots, with enough inheritance data to answer method lookups.
package index

import (
	"context"
	"fmt"
	"microscope/internal/engine/lexer"
	"microscope/internal/engine/parser"
	"microscope/internal/engine/resolver"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
)

// Collector extracts declarations from one source file. It is safe for
// concurrent use; each call gets its own tree-sitter parser.
type Collector struct{}

func NewCollector() *Collector {
	return &Collector{}
}

type collectState struct {
	path    string
	src     []byte
	imports []parser.ImportStatement
	out     []resolver.Symbol
}

// Collect parses src and returns the symbols it declares. Names are fully
// qualified; parents, interfaces and traits are resolved against the file's
// imports the same way references are.
func (c *Collector) Collect(ctx context.Context, path string, src []byte) ([]resolver.Symbol, error) {
	if !lexer.HasOpenTag(src) {
		return nil, nil
	}

	p := sitter.NewParser()
	p.SetLanguage(php.GetLanguage())
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}

	var imports []parser.ImportStatement
	if tokens, err := lexer.Tokenize(src); err == nil {
		imports = parser.ExtractImports(tokens)
	}

	st := &collectState{path: path, src: src, imports: imports}
	st.walk(root, "")
	return st.out, nil
}

// walk visits the statements of a program or block. A statement-form
// namespace applies to the siblings that follow it; a bracketed one only to
// its body.
func (st *collectState) walk(node *sitter.Node, namespace string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "namespace_definition":
			name := ""
			if n := child.ChildByFieldName("name"); n != nil {
				name = parser.TrimSeparators(n.Content(st.src))
			}
			if body := child.ChildByFieldName("body"); body != nil {
				st.walk(body, name)
				continue
			}
			namespace = name
		case "class_declaration":
			st.addType(child, namespace, resolver.SymbolClass)
		case "interface_declaration":
			st.addType(child, namespace, resolver.SymbolInterface)
		case "trait_declaration":
			st.addType(child, namespace, resolver.SymbolTrait)
		case "enum_declaration":
			st.addType(child, namespace, resolver.SymbolEnum)
		case "function_definition":
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			st.out = append(st.out, resolver.Symbol{
				Name: qualify(namespace, name.Content(st.src)),
				Kind: resolver.SymbolFunction,
				File: st.path,
				Line: int(child.StartPoint().Row) + 1,
			})
		case "method_declaration", "anonymous_function_creation_expression", "arrow_function":
			// Bodies of callables never declare file-level symbols we track.
		default:
			st.walk(child, namespace)
		}
	}
}

func (st *collectState) addType(node *sitter.Node, namespace string, kind resolver.SymbolKind) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	sym := resolver.Symbol{
		Name: qualify(namespace, name.Content(st.src)),
		Kind: kind,
		File: st.path,
		Line: int(node.StartPoint().Row) + 1,
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "base_clause":
			bases := st.names(child, namespace)
			if kind == resolver.SymbolInterface {
				// interface A extends B, C
				sym.Interfaces = append(sym.Interfaces, bases...)
			} else if len(bases) > 0 {
				sym.Parent = bases[0]
			}
		case "class_interface_clause":
			sym.Interfaces = append(sym.Interfaces, st.names(child, namespace)...)
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if member == nil {
				continue
			}
			switch member.Type() {
			case "method_declaration":
				if n := member.ChildByFieldName("name"); n != nil {
					sym.Methods = append(sym.Methods, n.Content(st.src))
				}
			case "use_declaration":
				sym.Traits = append(sym.Traits, st.names(member, namespace)...)
			}
		}
	}

	st.out = append(st.out, sym)
}

// names resolves the name and qualified_name children of a clause.
func (st *collectState) names(node *sitter.Node, namespace string) []string {
	var out []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if t := child.Type(); t != "name" && t != "qualified_name" {
			continue
		}
		raw := strings.TrimSpace(child.Content(st.src))
		if raw == "" {
			continue
		}
		name, _ := parser.ResolveName(raw, namespace, st.imports)
		out = append(out, name)
	}
	return out
}

func qualify(namespace, name string) string {
	name = strings.TrimSpace(name)
	if namespace == "" {
		return name
	}
	return namespace + parser.Separator + name
}
