// Package app runs the analysis passes over a set of candidate files.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"microscope/internal/core/errors"
	"microscope/internal/core/ports"
	"microscope/internal/engine/namespace"
	"microscope/internal/engine/resolver"
	"microscope/internal/shared/observability"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Mappings []namespace.Mapping
	Policy   namespace.Policy
	// Workers bounds the files analyzed at once; <= 0 means one per CPU.
	Workers               int
	Callables             bool
	OnlyAbsoluteCallables bool
	AutoFix               bool
}

type App struct {
	opts     Options
	checker  *resolver.Checker
	reporter ports.Reporter
	events   ports.EventSink

	mu       sync.RWMutex
	mappings []namespace.Mapping
	policy   namespace.Policy
}

func New(oracle ports.SymbolOracle, reporter ports.Reporter, opts Options) *App {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &App{
		opts:     opts,
		checker:  resolver.NewChecker(oracle),
		reporter: reporter,
		mappings: absMappings(opts.Mappings),
		policy: namespace.Policy{
			MigrationDirs:   absPaths(opts.Policy.MigrationDirs),
			ReservedParents: opts.Policy.ReservedParents,
		},
	}
}

// SetMappings replaces the namespace mappings, e.g. after composer.json
// changed. Passes already running keep the mappings they started with.
func (a *App) SetMappings(mappings []namespace.Mapping) {
	abs := absMappings(mappings)
	a.mu.Lock()
	a.mappings = abs
	a.mu.Unlock()
}

func (a *App) namespaceRules() ([]namespace.Mapping, namespace.Policy) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mappings, a.policy
}

// SetEventSink installs the progress observer. Call before a pass starts.
func (a *App) SetEventSink(sink ports.EventSink) {
	a.events = sink
}

func (a *App) emit(e ports.Event) {
	if a.events != nil {
		a.events.Emit(e)
	}
}

// Run executes the references pass and then the namespace pass, so no
// namespace rewrite happens before every file has been read for references.
func (a *App) Run(ctx context.Context, files []string) (RunResult, error) {
	started := time.Now()
	refs, err := a.CheckReferences(ctx, files)
	if err != nil {
		return RunResult{}, err
	}
	ns, err := a.CheckNamespaces(ctx, files)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		ID:       refs.ID,
		Started:  started,
		Duration: time.Since(started),
		Files:    merge(refs.Files, ns.Files),
	}, nil
}

// CheckReferences runs the symbol existence pass over files.
func (a *App) CheckReferences(ctx context.Context, files []string) (RunResult, error) {
	return a.runPass(ctx, PassReferences, files, a.referencesFile)
}

// CheckNamespaces runs the namespace pass over files, applying fixes when
// auto-fix is enabled.
func (a *App) CheckNamespaces(ctx context.Context, files []string) (RunResult, error) {
	return a.runPass(ctx, PassNamespaces, files, a.namespaceFile)
}

type fileFunc func(ctx context.Context, path string) FileResult

func (a *App) runPass(ctx context.Context, pass string, files []string, fn fileFunc) (RunResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app."+pass, trace.WithAttributes(
		attribute.Int("files", len(files)),
		attribute.Int("workers", a.opts.Workers),
	))
	defer span.End()

	started := time.Now()
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fileStart := time.Now()
			res := fn(gctx, path)
			results[i] = res

			observability.FileDuration.WithLabelValues(pass).Observe(time.Since(fileStart).Seconds())
			observability.FilesProcessedTotal.WithLabelValues(pass, string(res.State)).Inc()
			for _, d := range res.Diagnostics {
				a.reporter.Report(d)
				observability.DiagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
			}
			a.emit(ports.Event{Kind: ports.FileTapped, Pass: pass, Path: path})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return RunResult{}, fmt.Errorf("%s pass: %w", pass, err)
	}

	elapsed := time.Since(started)
	observability.PassDuration.WithLabelValues(pass).Observe(elapsed.Seconds())

	run := RunResult{
		ID:       uuid.NewString(),
		Started:  started,
		Duration: elapsed,
		Files:    results,
	}
	counts := run.Counts()
	span.SetAttributes(
		attribute.Int("done", counts[StateDone]),
		attribute.Int("skipped", counts[StateSkipped]),
	)
	slog.Debug("pass finished", "pass", pass, "files", len(files), "skipped", counts[StateSkipped], "duration", elapsed)
	return run, nil
}

// logSkip logs expected skips quietly and real failures as warnings.
func logSkip(pass, path string, err error) {
	if errors.IsSkip(err) {
		slog.Debug("skipping file", "pass", pass, "path", path, "reason", err)
		return
	}
	slog.Warn("file analysis failed", "pass", pass, "path", path, "error", err)
}

func absMappings(mappings []namespace.Mapping) []namespace.Mapping {
	out := make([]namespace.Mapping, 0, len(mappings))
	for _, m := range mappings {
		m.SourceRoot = absPath(m.SourceRoot)
		out = append(out, m)
	}
	return out
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, absPath(p))
	}
	return out
}

func absPath(p string) string {
	if p == "" {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return namespace.NormalizePath(p)
	}
	return namespace.NormalizePath(abs)
}
