package resolver

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML document a host application can export to describe
// the symbols it has loaded, e.g.
//
//	types:
//	  App\Jobs\SendMail:
//	    kind: class
//	    parent: App\Jobs\Job
//	    methods: [handle, failed]
//	functions: [app, config]
type Manifest struct {
	Types     map[string]ManifestType `yaml:"types"`
	Functions []string                `yaml:"functions"`
}

type ManifestType struct {
	Kind       SymbolKind `yaml:"kind,omitempty"`
	Parent     string     `yaml:"parent,omitempty"`
	Interfaces []string   `yaml:"interfaces,omitempty"`
	Traits     []string   `yaml:"traits,omitempty"`
	Methods    []string   `yaml:"methods,omitempty"`
}

// ReadManifest decodes a manifest into a fresh Index.
func ReadManifest(r io.Reader) (*Index, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	ix := NewIndex()
	for name, t := range m.Types {
		kind := t.Kind
		if kind == "" {
			kind = SymbolClass
		}
		if !kind.IsType() {
			return nil, fmt.Errorf("manifest type %s: kind %q is not a type", name, kind)
		}
		ix.Add(Symbol{
			Name:       name,
			Kind:       kind,
			Parent:     t.Parent,
			Interfaces: t.Interfaces,
			Traits:     t.Traits,
			Methods:    t.Methods,
		})
	}
	for _, fn := range m.Functions {
		ix.Add(Symbol{Name: fn, Kind: SymbolFunction})
	}
	return ix, nil
}

// LoadManifest reads the manifest at path.
func LoadManifest(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ReadManifest(f)
}

// WriteManifest encodes every symbol of ix as a manifest.
func WriteManifest(w io.Writer, ix *Index) error {
	m := Manifest{Types: make(map[string]ManifestType)}
	for _, sym := range ix.Symbols() {
		if !sym.Kind.IsType() {
			m.Functions = append(m.Functions, sym.Name)
			continue
		}
		methods := append([]string(nil), sym.Methods...)
		sort.Strings(methods)
		m.Types[sym.Name] = ManifestType{
			Kind:       sym.Kind,
			Parent:     sym.Parent,
			Interfaces: sym.Interfaces,
			Traits:     sym.Traits,
			Methods:    methods,
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}
