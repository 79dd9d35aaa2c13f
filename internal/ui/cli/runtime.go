package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"microscope/internal/core/app"
	"microscope/internal/core/config"
	"microscope/internal/core/fixer"
	"microscope/internal/core/ports"
	"microscope/internal/core/scanner"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/engine/index"
	"microscope/internal/engine/namespace"
	"microscope/internal/engine/resolver"
	"microscope/internal/shared/observability"
	"microscope/internal/ui/report"
	"os"
	"path/filepath"
	"time"
)

type runtimeOptions struct {
	Paths []string
	// NeedOracle is false for namespace-only runs.
	NeedOracle bool
	// InMemory forces an in-memory index even when a SQLite store exists,
	// so watch mode can update it file by file.
	InMemory     bool
	RebuildIndex bool
	AutoFix      bool
	DryRun       bool
}

// runtime is everything one command invocation needs.
type runtime struct {
	cfg       *config.Config
	scanner   *scanner.Scanner
	oracle    resolver.Oracle
	cache     *resolver.Cached
	index     *resolver.Index
	builder   *index.Builder
	store     *index.Store
	collector *report.Collector
	app       *app.App
	indexBar  *progress
	closers   []func() error
}

func newRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	sc, err := scanner.New(opts.Paths, scanner.Options{
		ExcludeDirs:  cfg.Exclude.Dirs,
		ExcludeFiles: cfg.Exclude.Files,
		Include:      cfg.Exclude.Include,
	})
	if err != nil {
		return nil, err
	}
	rt.scanner = sc

	mappings, err := cfg.Mappings()
	if err != nil {
		return nil, err
	}
	if cfg.Check.NamespacesEnabled() && len(mappings) == 0 {
		slog.Warn("no namespace mappings configured; namespace checks report nothing")
	}

	rt.oracle = resolver.Chain{}
	if opts.NeedOracle {
		if err := rt.buildOracle(ctx, opts); err != nil {
			rt.Close()
			return nil, err
		}
	}

	var applier ports.FixApplier
	if opts.AutoFix {
		rewriter := fixer.NewRewriter()
		rewriter.DryRun = opts.DryRun
		applier = rewriter
	}
	rt.collector = report.NewCollector(applier)
	rt.collector.OnReport = func(d diagnostic.Diagnostic) {
		slog.Debug("diagnostic", "kind", d.Kind, "file", d.FilePath, "line", d.Line, "symbol", d.Symbol)
	}

	rt.app = app.New(rt.oracle, rt.collector, app.Options{
		Mappings: mappings,
		Policy: namespace.Policy{
			MigrationDirs:   cfg.Exclude.MigrationDirs,
			ReservedParents: cfg.Check.ReservedParents,
		},
		Workers:               cfg.Check.Workers,
		Callables:             cfg.Check.CallablesEnabled(),
		OnlyAbsoluteCallables: cfg.Check.OnlyAbsoluteCallables,
		AutoFix:               opts.AutoFix,
	})
	return rt, nil
}

// buildOracle assembles builtins, the host manifest and the project index
// into one cached oracle. A populated SQLite store answers directly unless a
// rebuild or an in-memory index is requested.
func (rt *runtime) buildOracle(ctx context.Context, opts runtimeOptions) error {
	cfg := rt.cfg
	var chain resolver.Chain

	if cfg.Oracle.BuiltinsEnabled() {
		chain = append(chain, resolver.NewBuiltins(cfg.Oracle.ExtraClasses, cfg.Oracle.ExtraFunctions))
	}
	if cfg.Oracle.Manifest != "" {
		manifest, err := resolver.LoadManifest(cfg.Oracle.Manifest)
		if err != nil {
			return err
		}
		slog.Debug("loaded symbol manifest", "path", cfg.Oracle.Manifest, "symbols", manifest.Len())
		chain = append(chain, manifest)
	}

	rt.builder = index.NewBuilder(index.Options{
		Roots:   existingPaths(cfg.Oracle.IndexPaths),
		Include: cfg.Oracle.IndexInclude,
		Exclude: cfg.Oracle.IndexExclude,
		Workers: cfg.Check.Workers,
		OnFile:  rt.indexed,
	})

	project, err := rt.projectOracle(ctx, opts)
	if err != nil {
		return err
	}
	chain = append(chain, project)

	var oracle resolver.Oracle = resolver.NewInstrumented(chain)
	if cfg.Oracle.MaxQueriesPerSecond > 0 {
		oracle = resolver.NewThrottled(oracle, cfg.Oracle.MaxQueriesPerSecond, cfg.Oracle.Burst)
	}
	rt.cache = resolver.NewCached(oracle, cfg.Oracle.CacheSize)
	rt.oracle = rt.cache
	return nil
}

func (rt *runtime) projectOracle(ctx context.Context, opts runtimeOptions) (resolver.Oracle, error) {
	path := rt.cfg.Oracle.SQLitePath
	if path != "" {
		store, err := index.OpenStore(path, projectRoot)
		if err != nil {
			return nil, err
		}
		rt.store = store
		rt.closers = append(rt.closers, store.Close)

		if !opts.RebuildIndex {
			n, err := store.Len(ctx)
			if err != nil {
				return nil, err
			}
			if n > 0 && !opts.InMemory {
				slog.Debug("answering from stored symbol index", "path", path, "symbols", n)
				observability.IndexSymbols.Set(float64(n))
				return store, nil
			}
			if n > 0 {
				ix, err := store.Load(ctx)
				if err != nil {
					return nil, err
				}
				rt.index = ix
				observability.IndexSymbols.Set(float64(ix.Len()))
				return ix, nil
			}
		}
	}

	ix, err := rt.buildIndex(ctx)
	if err != nil {
		return nil, err
	}
	if rt.store != nil {
		if err := rt.store.Sync(ctx, ix); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

func (rt *runtime) buildIndex(ctx context.Context) (*resolver.Index, error) {
	if files, err := rt.builder.Files(); err == nil {
		rt.indexBar = newProgress(len(files), "Indexing")
	}
	started := time.Now()
	ix, stats, err := rt.builder.Build(ctx)
	if rt.indexBar != nil {
		rt.indexBar.finish()
		rt.indexBar = nil
	}
	if err != nil {
		return nil, fmt.Errorf("build symbol index: %w", err)
	}
	observability.IndexBuildDuration.Observe(time.Since(started).Seconds())
	observability.IndexSymbols.Set(float64(stats.Symbols))
	slog.Info("symbol index built", "files", stats.Files, "symbols", stats.Symbols, "failed", stats.Failed, "duration", time.Since(started))
	rt.index = ix
	return ix, nil
}

func (rt *runtime) indexed(string) {
	if bar := rt.indexBar; bar != nil {
		bar.tick()
	}
}

// refreshIndex re-indexes changed files and forgets cached answers.
func (rt *runtime) refreshIndex(ctx context.Context, paths []string) {
	if rt.index == nil || rt.builder == nil {
		return
	}
	for _, changed := range paths {
		path, ok := rt.builder.Owns(changed)
		if !ok {
			continue
		}
		syms, err := rt.builder.Update(ctx, rt.index, path)
		if err != nil {
			slog.Warn("failed to re-index file", "path", path, "error", err)
			continue
		}
		if rt.store == nil {
			continue
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			err = rt.store.DeleteFile(ctx, path)
		} else {
			err = rt.store.UpsertFile(ctx, path, syms)
		}
		if err != nil {
			slog.Warn("failed to persist symbols", "path", path, "error", err)
		}
	}
	if rt.cache != nil {
		rt.cache.Purge()
	}
	observability.IndexSymbols.Set(float64(rt.index.Len()))
}

// symbolCount reports the project index size, preferring the in-memory
// index over the store.
func (rt *runtime) symbolCount(ctx context.Context) (int, error) {
	switch {
	case rt.index != nil:
		return rt.index.Len(), nil
	case rt.store != nil:
		return rt.store.Len(ctx)
	default:
		return 0, nil
	}
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	rt.closers = nil
}

func existingPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}
