package helpers

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[]{}")
}

// ValidateGlob checks a name pattern as the scanner compiles it.
func ValidateGlob(pattern string) error {
	if _, err := glob.Compile(pattern); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return nil
}

// ValidateDoublestar checks a path pattern with ** support.
func ValidateDoublestar(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid pattern %q", pattern)
	}
	return nil
}

// CleanRoot normalizes a source root for comparison.
func CleanRoot(root string) string {
	root = strings.ReplaceAll(strings.TrimSpace(root), `\`, "/")
	if root == "" {
		return ""
	}
	return path.Clean(root)
}
