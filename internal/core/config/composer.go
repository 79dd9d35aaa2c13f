package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"microscope/internal/engine/namespace"
	"microscope/internal/shared/util"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type composerAutoload struct {
	PSR4 map[string]json.RawMessage `json:"psr-4"`
}

type composerFile struct {
	Autoload    composerAutoload `json:"autoload"`
	AutoloadDev composerAutoload `json:"autoload-dev"`
}

// ReadComposerMappings extracts the psr-4 autoload entries of a composer.json
// document. Directories are resolved against baseDir. A prefix may map to a
// single directory or a list.
func ReadComposerMappings(data []byte, baseDir string, dev bool) ([]namespace.Mapping, error) {
	var doc composerFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode composer.json: %w", err)
	}

	var out []namespace.Mapping
	add := func(psr4 map[string]json.RawMessage) error {
		for _, prefix := range util.SortedStringKeys(psr4) {
			dirs, err := composerDirs(psr4[prefix])
			if err != nil {
				return fmt.Errorf("psr-4 %q: %w", prefix, err)
			}
			for _, dir := range dirs {
				out = append(out, namespace.Mapping{
					SourceRoot:    namespace.NormalizePath(path.Join(filepath.ToSlash(baseDir), dir)),
					RootNamespace: strings.Trim(prefix, `\`),
				})
			}
		}
		return nil
	}

	if err := add(doc.Autoload.PSR4); err != nil {
		return nil, err
	}
	if dev {
		if err := add(doc.AutoloadDev.PSR4); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func composerDirs(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("expected a directory or a list of directories")
	}
	return many, nil
}

// Mappings returns the explicit namespace mappings followed by those found in
// composer.json.
func (c *Config) Mappings() ([]namespace.Mapping, error) {
	out := make([]namespace.Mapping, 0, len(c.Namespaces))
	for _, ns := range c.Namespaces {
		out = append(out, namespace.Mapping{
			SourceRoot:    namespace.NormalizePath(ns.SourceRoot),
			RootNamespace: ns.RootNamespace,
		})
	}
	if c.Composer.Disabled {
		return out, nil
	}

	file := c.Composer.File
	explicit := file != ""
	if !explicit {
		file = "composer.json"
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	fromComposer, err := ReadComposerMappings(data, filepath.Dir(file), c.Composer.Dev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return append(out, fromComposer...), nil
}
