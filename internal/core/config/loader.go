package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes a TOML document, applies defaults and validates the result.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}
	return finish(&cfg)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg, _ := finish(&Config{})
	return cfg
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	normalize(cfg)

	if err := validateVersion(cfg); err != nil {
		return nil, err
	}
	if err := validateNamespaces(cfg); err != nil {
		return nil, err
	}
	if err := validateExclude(cfg); err != nil {
		return nil, err
	}
	if err := validateCheck(cfg); err != nil {
		return nil, err
	}
	if err := validateOracle(cfg); err != nil {
		return nil, err
	}
	if err := validateOutput(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.ScanPaths) == 0 {
		cfg.ScanPaths = []string{"."}
	}

	if cfg.Exclude.Dirs == nil {
		cfg.Exclude.Dirs = []string{"vendor", "node_modules", ".git"}
	}
	if cfg.Exclude.MigrationDirs == nil {
		cfg.Exclude.MigrationDirs = []string{"database/migrations"}
	}

	if cfg.Check.Workers <= 0 {
		cfg.Check.Workers = runtime.NumCPU()
	}
	if cfg.Check.ReservedParents == nil {
		cfg.Check.ReservedParents = []string{"Migration"}
	}

	// The symbol index covers dependencies too, so vendor is indexed even
	// though it is never checked.
	if len(cfg.Oracle.IndexPaths) == 0 {
		cfg.Oracle.IndexPaths = append(append([]string(nil), cfg.ScanPaths...), "vendor")
	}
	if len(cfg.Oracle.IndexInclude) == 0 {
		cfg.Oracle.IndexInclude = []string{"**/*.php"}
	}
	if cfg.Oracle.IndexExclude == nil {
		cfg.Oracle.IndexExclude = []string{"**/node_modules/**", "**/.git/**", "**/*.blade.php"}
	}
	if cfg.Oracle.CacheSize == 0 {
		cfg.Oracle.CacheSize = 4096
	}
	if cfg.Oracle.Burst <= 0 {
		cfg.Oracle.Burst = 1
	}

	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = FormatText
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "microscope"
	}
}

func normalize(cfg *Config) {
	cfg.ScanPaths = trimAll(cfg.ScanPaths)
	for i := range cfg.Namespaces {
		ns := &cfg.Namespaces[i]
		ns.SourceRoot = strings.TrimSpace(ns.SourceRoot)
		ns.RootNamespace = strings.Trim(strings.TrimSpace(ns.RootNamespace), `\`)
	}
	cfg.Composer.File = strings.TrimSpace(cfg.Composer.File)
	cfg.Exclude.Dirs = trimAll(cfg.Exclude.Dirs)
	cfg.Exclude.Files = trimAll(cfg.Exclude.Files)
	cfg.Exclude.MigrationDirs = trimAll(cfg.Exclude.MigrationDirs)
	cfg.Exclude.Include = trimAll(cfg.Exclude.Include)
	cfg.Check.ReservedParents = trimAll(cfg.Check.ReservedParents)
	cfg.Oracle.IndexPaths = trimAll(cfg.Oracle.IndexPaths)
	cfg.Oracle.SQLitePath = strings.TrimSpace(cfg.Oracle.SQLitePath)
	cfg.Oracle.Manifest = strings.TrimSpace(cfg.Oracle.Manifest)
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	cfg.Output.Path = strings.TrimSpace(cfg.Output.Path)
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
