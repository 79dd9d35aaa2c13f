// Package resolver answers "does this symbol exist" for the checks and turns
// negative answers into diagnostics.
package resolver

import (
	"context"
	"errors"
	"strings"
)

// Oracle is the existence query surface. Implementations must be safe for
// concurrent use; the checks never mutate them.
type Oracle interface {
	// Resolves reports whether a class, interface, trait or enum exists.
	Resolves(ctx context.Context, name string) (bool, error)
	FunctionExists(ctx context.Context, name string) (bool, error)
	MethodExists(ctx context.Context, class, method string) (bool, error)
}

// ErrNoOracle is returned by an empty Chain.
var ErrNoOracle = errors.New("no symbol oracle configured")

// Key normalizes a symbol name for lookups: separators trimmed, lower case.
func Key(name string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(name), `\`))
}

// Chain asks each oracle in order; the first positive answer wins and the
// first error aborts the query.
type Chain []Oracle

func (c Chain) Resolves(ctx context.Context, name string) (bool, error) {
	return c.first(func(o Oracle) (bool, error) { return o.Resolves(ctx, name) })
}

func (c Chain) FunctionExists(ctx context.Context, name string) (bool, error) {
	return c.first(func(o Oracle) (bool, error) { return o.FunctionExists(ctx, name) })
}

func (c Chain) MethodExists(ctx context.Context, class, method string) (bool, error) {
	return c.first(func(o Oracle) (bool, error) { return o.MethodExists(ctx, class, method) })
}

func (c Chain) first(query func(Oracle) (bool, error)) (bool, error) {
	if len(c) == 0 {
		return false, ErrNoOracle
	}
	for _, o := range c {
		ok, err := query(o)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
