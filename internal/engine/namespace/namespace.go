// Package namespace computes the namespace a file must declare from its
// location under a configured source root, and the fix when it does not.
package namespace

import (
	"microscope/internal/engine/parser"
	"path"
	"strings"
)

// Mapping binds a source directory to the namespace prefix of its files.
type Mapping struct {
	SourceRoot    string
	RootNamespace string
}

// Expected is the namespace and type name implied by a file's location.
type Expected struct {
	Namespace string
	TypeName  string
	Mapping   Mapping
}

// FullName joins the expected namespace and type name.
func (e Expected) FullName() string {
	if e.Namespace == "" {
		return e.TypeName
	}
	return e.Namespace + parser.Separator + e.TypeName
}

// NormalizePath converts both separator styles to "/" and cleans the result.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// ComputeExpected picks the mapping whose source root is the longest prefix of
// filePath (matching whole path segments only) and derives the namespace from
// the remaining directories. ok is false when no mapping applies.
func ComputeExpected(filePath string, mappings []Mapping) (Expected, bool) {
	file := NormalizePath(filePath)
	best := -1
	bestRoot := ""
	for i, m := range mappings {
		root := NormalizePath(m.SourceRoot)
		if root == "" {
			continue
		}
		prefix := root
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		if !strings.HasPrefix(file, prefix) {
			continue
		}
		if len(prefix) > len(bestRoot) {
			best = i
			bestRoot = prefix
		}
	}
	if best < 0 {
		return Expected{}, false
	}

	rel := strings.TrimPrefix(file, bestRoot)
	segments := strings.Split(rel, "/")
	last := segments[len(segments)-1]
	typeName := strings.TrimSuffix(last, path.Ext(last))
	if typeName == "" {
		return Expected{}, false
	}

	parts := make([]string, 0, len(segments))
	if root := parser.TrimSeparators(mappings[best].RootNamespace); root != "" {
		parts = append(parts, root)
	}
	for _, dir := range segments[:len(segments)-1] {
		if dir != "" {
			parts = append(parts, dir)
		}
	}

	return Expected{
		Namespace: strings.Join(parts, parser.Separator),
		TypeName:  typeName,
		Mapping:   mappings[best],
	}, true
}
