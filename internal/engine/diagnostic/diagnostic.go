// Package diagnostic holds the records produced by the checks and consumed by
// reporters.
package diagnostic

import (
	"fmt"
	"sort"
)

type Kind string

const (
	UnresolvedClass          Kind = "UnresolvedClass"
	UnresolvedImport         Kind = "UnresolvedImport"
	UnresolvedCallableClass  Kind = "UnresolvedCallableClass"
	UnresolvedCallableMethod Kind = "UnresolvedCallableMethod"
	NamespaceMismatch        Kind = "NamespaceMismatch"
)

// Kinds lists every kind in reporting order.
var Kinds = []Kind{
	UnresolvedImport,
	UnresolvedClass,
	UnresolvedCallableClass,
	UnresolvedCallableMethod,
	NamespaceMismatch,
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a single user-visible finding.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	FilePath string
	Line     int
	// Symbol is the queried name (class, Class@method, or expected namespace).
	Symbol string
	Detail string
	// Fix is set for namespace mismatches that can be rewritten.
	Fix *Fix
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.FilePath, d.Line, d.Kind, d.Detail)
}

// Fix is a rewrite instruction for a single line of a file. With Insert set,
// NewText is inserted as a new line after Line instead of replacing it.
type Fix struct {
	FilePath string
	Line     int
	OldText  string
	NewText  string
	Insert   bool
}

// Rule returns the identifier used for the kind in machine-readable reports.
func (k Kind) Rule() string {
	switch k {
	case UnresolvedClass:
		return "unresolved-class"
	case UnresolvedImport:
		return "unresolved-import"
	case UnresolvedCallableClass:
		return "unresolved-callable-class"
	case UnresolvedCallableMethod:
		return "unresolved-callable-method"
	case NamespaceMismatch:
		return "namespace-mismatch"
	}
	return "unknown"
}

// Sort orders diagnostics by file, line and kind for stable output.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Symbol < b.Symbol
	})
}
