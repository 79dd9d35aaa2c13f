package util

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// NormalizePatternPath turns a user supplied path into the slash separated,
// cleaned form globs are matched against. The current directory becomes "".
func NormalizePatternPath(s string) string {
	s = path.Clean(strings.ReplaceAll(strings.TrimSpace(s), "\\", "/"))
	if s == "." {
		return ""
	}
	return s
}

// HasPathPrefix reports whether file is dir or lies below it. Both sides are
// normalized first, so separators and "./" do not matter.
func HasPathPrefix(file, dir string) bool {
	file, dir = NormalizePatternPath(file), NormalizePatternPath(dir)
	if file == dir {
		return true
	}
	if dir == "" {
		return false
	}
	rest, ok := strings.CutPrefix(file, dir)
	return ok && (strings.HasPrefix(rest, "/") || strings.HasSuffix(dir, "/"))
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

// WriteFileWithDirs creates parent directories (0755) and writes the file with perm.
func WriteFileWithDirs(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, perm)
}

// WriteFileAtomic replaces path with data through a temporary file in the same
// directory, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
