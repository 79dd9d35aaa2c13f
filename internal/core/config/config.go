package config

import (
	"time"
)

// DefaultFile is the configuration file looked up in the project root.
const DefaultFile = "microscope.toml"

type Config struct {
	Version       int           `toml:"version"`
	ScanPaths     []string      `toml:"scan_paths"`
	Namespaces    []Namespace   `toml:"namespaces"`
	Composer      Composer      `toml:"composer"`
	Exclude       Exclude       `toml:"exclude"`
	Check         Check         `toml:"check"`
	Oracle        Oracle        `toml:"oracle"`
	Output        Output        `toml:"output"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

// Namespace is an explicit source root to namespace mapping. Mappings from
// composer.json are added after these.
type Namespace struct {
	SourceRoot    string `toml:"source_root"`
	RootNamespace string `toml:"root_namespace"`
}

type Composer struct {
	// File defaults to composer.json in the working directory; a missing
	// default file is not an error.
	File     string `toml:"file"`
	Dev      bool   `toml:"dev"`
	Disabled bool   `toml:"disabled"`
}

type Exclude struct {
	Dirs          []string `toml:"dirs"`
	Files         []string `toml:"files"`
	MigrationDirs []string `toml:"migration_dirs"`
	// Include narrows scanning to files matching one of these doublestar
	// patterns, relative to the scan root.
	Include []string `toml:"include"`
}

type Check struct {
	References            *bool    `toml:"references"`
	Callables             *bool    `toml:"callables"`
	Namespaces            *bool    `toml:"namespaces"`
	OnlyAbsoluteCallables bool     `toml:"only_absolute_callables"`
	AutoFix               bool     `toml:"auto_fix"`
	Workers               int      `toml:"workers"`
	ReservedParents       []string `toml:"reserved_parents"`
}

type Oracle struct {
	IndexPaths          []string `toml:"index_paths"`
	IndexInclude        []string `toml:"index_include"`
	IndexExclude        []string `toml:"index_exclude"`
	SQLitePath          string   `toml:"sqlite_path"`
	Manifest            string   `toml:"manifest"`
	CacheSize           int      `toml:"cache_size"`
	MaxQueriesPerSecond float64  `toml:"max_queries_per_second"`
	Burst               int      `toml:"burst"`
	Builtins            *bool    `toml:"builtins"`
	ExtraClasses        []string `toml:"extra_classes"`
	ExtraFunctions      []string `toml:"extra_functions"`
}

type Output struct {
	Format string `toml:"format"`
	Path   string `toml:"path"`
	Color  *bool  `toml:"color"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

func (c Check) ReferencesEnabled() bool { return enabled(c.References) }
func (c Check) CallablesEnabled() bool  { return enabled(c.Callables) }
func (c Check) NamespacesEnabled() bool { return enabled(c.Namespaces) }
func (o Oracle) BuiltinsEnabled() bool  { return enabled(o.Builtins) }
func (o Output) ColorEnabled() bool     { return enabled(o.Color) }

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

func boolPtr(v bool) *bool {
	return &v
}
