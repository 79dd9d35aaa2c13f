package resolver

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed builtins/classes.txt
var builtinClassesData string

//go:embed builtins/functions.txt
var builtinFunctionsData string

// Builtins knows the types and functions shipped with the runtime. It has no
// method tables, so MethodExists always answers false and leaves the decision
// to the next oracle in a Chain.
type Builtins struct {
	types     map[string]bool
	functions map[string]bool
}

// NewBuiltins loads the embedded symbol lists plus any extra names.
func NewBuiltins(extraTypes, extraFunctions []string) *Builtins {
	b := &Builtins{
		types:     make(map[string]bool),
		functions: make(map[string]bool),
	}
	for _, line := range strings.Split(builtinClassesData, "\n") {
		registerBuiltinLine(b.types, line)
	}
	for _, line := range strings.Split(builtinFunctionsData, "\n") {
		registerBuiltinLine(b.functions, line)
	}
	for _, name := range extraTypes {
		registerBuiltinLine(b.types, name)
	}
	for _, name := range extraFunctions {
		registerBuiltinLine(b.functions, name)
	}
	return b
}

func registerBuiltinLine(set map[string]bool, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	set[Key(line)] = true
}

func (b *Builtins) Resolves(_ context.Context, name string) (bool, error) {
	return b.types[Key(name)], nil
}

func (b *Builtins) FunctionExists(_ context.Context, name string) (bool, error) {
	return b.functions[Key(name)], nil
}

func (b *Builtins) MethodExists(context.Context, string, string) (bool, error) {
	return false, nil
}
