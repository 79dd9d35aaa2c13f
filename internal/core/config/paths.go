package config

import (
	"os"
	"path/filepath"
	"strings"
)

// rootMarkers identify the top of a PHP project, checked in this order in
// every directory on the way up.
var rootMarkers = [...]string{DefaultFile, "composer.json", ".git"}

// ResolveRelative anchors value at base unless it is already absolute. An
// empty value yields base itself.
func ResolveRelative(base, value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		value = base
	case !filepath.IsAbs(value):
		value = filepath.Join(base, value)
	}
	return filepath.Clean(value)
}

func hasRootMarker(dir string) bool {
	for _, marker := range rootMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// nearestRoot climbs from start to the filesystem root and returns the first
// directory holding a marker.
func nearestRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		if hasRootMarker(dir) {
			return dir, true
		}
		up := filepath.Dir(dir)
		if up == dir {
			return "", false
		}
		dir = up
	}
}

// DetectProjectRoot returns the project containing the first candidate that
// lies in one. The working directory is the fallback.
func DetectProjectRoot(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if root, ok := nearestRoot(candidate); ok {
			return root, nil
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

// FindFile returns the configuration file of the project containing dir, or
// "" when there is none.
func FindFile(dir string) string {
	root, err := DetectProjectRoot([]string{dir})
	if err != nil {
		return ""
	}
	path := filepath.Join(root, DefaultFile)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
