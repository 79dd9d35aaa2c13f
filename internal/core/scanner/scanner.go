// Package scanner discovers the source files a run analyzes.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

const (
	SourceExt   = ".php"
	TemplateExt = ".blade.php"
)

type Options struct {
	// ExcludeDirs and ExcludeFiles are matched against base names.
	ExcludeDirs  []string
	ExcludeFiles []string
	// Include, when set, keeps only files whose path relative to the scan
	// root matches one of these doublestar patterns.
	Include []string
}

type Scanner struct {
	roots     []string
	dirGlobs  []glob.Glob
	fileGlobs []glob.Glob
	include   []string
}

func New(roots []string, opts Options) (*Scanner, error) {
	dirGlobs, err := CompileGlobs(opts.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := CompileGlobs(opts.ExcludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}
	for _, p := range opts.Include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	return &Scanner{
		roots:     UniqueRoots(roots),
		dirGlobs:  dirGlobs,
		fileGlobs: fileGlobs,
		include:   opts.Include,
	}, nil
}

func CompileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// UniqueRoots cleans roots and drops duplicates, comparing absolute forms but
// keeping the spelling first given.
func UniqueRoots(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		normalized := filepath.Clean(p)
		key := normalized
		if abs, err := filepath.Abs(normalized); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		roots = append(roots, normalized)
	}
	return roots
}

// IsTemplate reports whether path is a view template rather than a class file.
func IsTemplate(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), TemplateExt)
}

// IsSource reports whether path has the source extension.
func IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), SourceExt)
}

// Scan walks every root and returns the candidate files, sorted. A root that
// is a file is returned as is when it passes the filters.
func (s *Scanner) Scan(ctx context.Context) ([]string, error) {
	var files []string
	for _, root := range s.roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("scan root %s: %w", root, err)
		}
		if !info.IsDir() {
			if s.acceptFile(root, filepath.Base(root)) {
				files = append(files, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if d.IsDir() {
				if path != root && s.excludedDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if s.acceptFile(path, filepath.ToSlash(rel)) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) excludedDir(name string) bool {
	for _, g := range s.dirGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (s *Scanner) acceptFile(path, rel string) bool {
	if !IsSource(path) || IsTemplate(path) {
		return false
	}
	base := filepath.Base(path)
	for _, g := range s.fileGlobs {
		if g.Match(base) {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, pattern := range s.include {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Accepts reports whether a single path, e.g. from a file watcher, would be
// part of a scan: it must pass the file filters and no directory between it
// and its scan root may be excluded.
func (s *Scanner) Accepts(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range s.roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, absPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			continue
		}
		dirs := strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/")
		excluded := false
		for _, dir := range dirs {
			if dir != "." && s.excludedDir(dir) {
				excluded = true
				break
			}
		}
		if !excluded && s.acceptFile(path, filepath.ToSlash(rel)) {
			return true
		}
	}
	return false
}
