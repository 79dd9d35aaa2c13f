package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"microscope/internal/engine/resolver"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// DefaultInclude matches every source file below a root.
var DefaultInclude = []string{"**/*.php"}

type Options struct {
	Roots   []string
	Include []string
	Exclude []string
	Workers int
	// OnFile is called once per indexed file, from worker goroutines.
	OnFile func(path string)
}

// Stats summarizes one Build.
type Stats struct {
	Files   int
	Symbols int
	Failed  int
}

type Builder struct {
	opts      Options
	collector *Collector
}

func NewBuilder(opts Options) *Builder {
	if len(opts.Include) == 0 {
		opts.Include = DefaultInclude
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		roots = append(roots, filepath.Clean(root))
	}
	opts.Roots = roots
	return &Builder{opts: opts, collector: NewCollector()}
}

// Owns reports whether path belongs to the index, i.e. lies below a root and
// passes the include and exclude patterns. The returned path is the absolute
// form the index records.
func (b *Builder) Owns(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for _, root := range b.opts.Roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		rel = filepath.ToSlash(rel)
		if b.excludedDir(rel) {
			continue
		}
		if b.included(rel) && !b.excluded(rel) {
			return abs, true
		}
	}
	return "", false
}

func (b *Builder) excludedDir(rel string) bool {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if b.excluded(strings.Join(parts[:i], "/") + "/") {
			return true
		}
	}
	return false
}

// Files lists the paths Build would index, sorted.
func (b *Builder) Files() ([]string, error) {
	var files []string
	for _, root := range b.opts.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if rel != "." && b.excluded(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}
			if b.included(rel) && !b.excluded(rel) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (b *Builder) included(rel string) bool {
	return matchAny(b.opts.Include, rel)
}

func (b *Builder) excluded(rel string) bool {
	return matchAny(b.opts.Exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Build indexes every matching file under the roots. Files that cannot be read
// or parsed are counted and skipped; only cancellation aborts the build.
func (b *Builder) Build(ctx context.Context) (*resolver.Index, Stats, error) {
	files, err := b.Files()
	if err != nil {
		return nil, Stats{}, err
	}

	ix := resolver.NewIndex()
	var (
		mu    sync.Mutex
		stats = Stats{Files: len(files)}
	)

	g := new(errgroup.Group)
	g.SetLimit(b.opts.Workers)
	for _, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			syms, err := b.indexFile(ctx, ix, path)
			if b.opts.OnFile != nil {
				b.opts.OnFile(path)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				slog.Debug("index file failed", "path", path, "error", err)
				return nil
			}
			stats.Symbols += len(syms)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	return ix, stats, nil
}

// Update re-indexes a single file in place and returns the symbols it now
// declares. A file that no longer exists is only removed.
func (b *Builder) Update(ctx context.Context, ix *resolver.Index, path string) ([]resolver.Symbol, error) {
	ix.RemoveFile(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return b.indexFile(ctx, ix, path)
}

func (b *Builder) indexFile(ctx context.Context, ix *resolver.Index, path string) ([]resolver.Symbol, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	syms, err := b.collector.Collect(ctx, path, src)
	if err != nil {
		return nil, err
	}
	for _, sym := range syms {
		ix.Add(sym)
	}
	return syms, nil
}
