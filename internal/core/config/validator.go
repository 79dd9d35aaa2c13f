package config

import (
	"fmt"
	"microscope/internal/core/config/helpers"
	"strings"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateNamespaces(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Namespaces))
	for i, ns := range cfg.Namespaces {
		ref := fmt.Sprintf("namespaces[%d]", i)
		if ns.SourceRoot == "" {
			return fmt.Errorf("%s.source_root must not be empty", ref)
		}
		if strings.Contains(ns.RootNamespace, `\\`) {
			return fmt.Errorf("%s.root_namespace %q contains an empty segment", ref, ns.RootNamespace)
		}
		key := helpers.CleanRoot(ns.SourceRoot)
		if seen[key] {
			return fmt.Errorf("duplicate namespace source_root %q", ns.SourceRoot)
		}
		seen[key] = true
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for _, pattern := range cfg.Exclude.Dirs {
		if err := helpers.ValidateGlob(pattern); err != nil {
			return fmt.Errorf("exclude.dirs: %w", err)
		}
	}
	for _, pattern := range cfg.Exclude.Files {
		if err := helpers.ValidateGlob(pattern); err != nil {
			return fmt.Errorf("exclude.files: %w", err)
		}
	}
	for _, pattern := range cfg.Exclude.Include {
		if err := helpers.ValidateDoublestar(pattern); err != nil {
			return fmt.Errorf("exclude.include: %w", err)
		}
	}
	for _, dir := range cfg.Exclude.MigrationDirs {
		if helpers.HasWildcard(dir) {
			return fmt.Errorf("exclude.migration_dirs entry %q must be a plain directory", dir)
		}
	}
	return nil
}

func validateCheck(cfg *Config) error {
	if cfg.Check.Workers > 256 {
		return fmt.Errorf("check.workers must be <= 256, got %d", cfg.Check.Workers)
	}
	if cfg.Check.AutoFix && !cfg.Check.NamespacesEnabled() {
		return fmt.Errorf("check.auto_fix requires check.namespaces")
	}
	return nil
}

func validateOracle(cfg *Config) error {
	if cfg.Oracle.CacheSize < 0 {
		return fmt.Errorf("oracle.cache_size must be >= 0, got %d", cfg.Oracle.CacheSize)
	}
	if cfg.Oracle.MaxQueriesPerSecond < 0 {
		return fmt.Errorf("oracle.max_queries_per_second must be >= 0")
	}
	for _, pattern := range cfg.Oracle.IndexInclude {
		if err := helpers.ValidateDoublestar(pattern); err != nil {
			return fmt.Errorf("oracle.index_include: %w", err)
		}
	}
	for _, pattern := range cfg.Oracle.IndexExclude {
		if err := helpers.ValidateDoublestar(pattern); err != nil {
			return fmt.Errorf("oracle.index_exclude: %w", err)
		}
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Format {
	case FormatText, FormatJSON, FormatSARIF:
		return nil
	}
	return fmt.Errorf("output.format must be one of: text, json, sarif; got %q", cfg.Output.Format)
}
