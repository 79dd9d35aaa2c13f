package resolver

import (
	"context"
	"sort"
	"sync"
)

type SymbolKind string

const (
	SymbolClass     SymbolKind = "class"
	SymbolInterface SymbolKind = "interface"
	SymbolTrait     SymbolKind = "trait"
	SymbolEnum      SymbolKind = "enum"
	SymbolFunction  SymbolKind = "function"
)

// IsType reports whether the kind is answered by Resolves.
func (k SymbolKind) IsType() bool {
	return k != SymbolFunction
}

// Symbol is one declaration known to an Index. Names are fully qualified
// without a leading separator.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Parent     string
	Interfaces []string
	Traits     []string
	Methods    []string
	File       string
	Line       int
}

// Index is an in-memory symbol table keyed case-insensitively, the way the
// language itself treats class and function names.
type Index struct {
	mu        sync.RWMutex
	types     map[string]Symbol
	functions map[string]Symbol
	methods   map[string]map[string]bool
}

func NewIndex() *Index {
	return &Index{
		types:     make(map[string]Symbol),
		functions: make(map[string]Symbol),
		methods:   make(map[string]map[string]bool),
	}
}

// Add registers sym, replacing an earlier declaration with the same name.
func (ix *Index) Add(sym Symbol) {
	key := Key(sym.Name)
	if key == "" {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !sym.Kind.IsType() {
		ix.functions[key] = sym
		return
	}
	ix.types[key] = sym
	set := make(map[string]bool, len(sym.Methods))
	for _, m := range sym.Methods {
		set[Key(m)] = true
	}
	ix.methods[key] = set
}

// RemoveFile drops every symbol declared in path.
func (ix *Index) RemoveFile(path string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed := 0
	for key, sym := range ix.types {
		if sym.File == path {
			delete(ix.types, key)
			delete(ix.methods, key)
			removed++
		}
	}
	for key, sym := range ix.functions {
		if sym.File == path {
			delete(ix.functions, key)
			removed++
		}
	}
	return removed
}

// Lookup returns the type declaration for name.
func (ix *Index) Lookup(name string) (Symbol, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	sym, ok := ix.types[Key(name)]
	return sym, ok
}

func (ix *Index) Resolves(_ context.Context, name string) (bool, error) {
	_, ok := ix.Lookup(name)
	return ok, nil
}

func (ix *Index) FunctionExists(_ context.Context, name string) (bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.functions[Key(name)]
	return ok, nil
}

// MethodExists looks for method on class and everything it inherits from:
// parent chain, used traits and implemented interfaces.
func (ix *Index) MethodExists(_ context.Context, class, method string) (bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	want := Key(method)
	seen := make(map[string]bool)
	queue := []string{Key(class)}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if ix.methods[key][want] {
			return true, nil
		}
		sym, ok := ix.types[key]
		if !ok {
			continue
		}
		queue = append(queue, Key(sym.Parent))
		for _, t := range sym.Traits {
			queue = append(queue, Key(t))
		}
		for _, i := range sym.Interfaces {
			queue = append(queue, Key(i))
		}
	}
	return false, nil
}

// Len returns the number of known types and functions.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.types) + len(ix.functions)
}

// Symbols returns all symbols sorted by name.
func (ix *Index) Symbols() []Symbol {
	ix.mu.RLock()
	out := make([]Symbol, 0, len(ix.types)+len(ix.functions))
	for _, sym := range ix.types {
		out = append(out, sym)
	}
	for _, sym := range ix.functions {
		out = append(out, sym)
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
