package app

import (
	"context"
	"log/slog"
	"microscope/internal/core/ports"
	"microscope/internal/engine/namespace"
	"microscope/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (a *App) namespaceFile(ctx context.Context, path string) FileResult {
	ctx, span := observability.Tracer.Start(ctx, "app.namespaceFile", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	res := FileResult{Path: path, State: StateUnanalyzed}
	tokens, decl, ok := readDeclaration(PassNamespaces, path, &res)
	if !ok {
		return res
	}

	// Mappings and policy dirs are absolute, so compare on the absolute path
	// and report on the path as given.
	abs := absPath(path)
	mappings, policy := a.namespaceRules()
	if reason, skip := policy.Skip(abs, decl); skip {
		slog.Debug("namespace check skipped", "path", path, "reason", reason)
		res.skipPolicy(reason)
		return res
	}

	checked, ok := namespace.Check(abs, decl, tokens, mappings)
	if !ok {
		res.advance(StateNamespaceChecked)
		res.advance(StateDone)
		return res
	}
	if checked.Fix != nil {
		checked.Fix.FilePath = path
	}
	for i := range checked.Diagnostics {
		checked.Diagnostics[i].FilePath = path
	}
	res.Diagnostics = checked.Diagnostics
	res.Fix = checked.Fix
	res.advance(StateNamespaceChecked)

	if a.opts.AutoFix && res.Fix != nil {
		a.applyFix(ctx, &res)
	}
	res.advance(StateDone)
	return res
}

func (a *App) applyFix(ctx context.Context, res *FileResult) {
	a.emit(ports.Event{Kind: ports.NamespaceFixing, Pass: PassNamespaces, Path: res.Path})
	err := a.reporter.ApplyNamespaceFix(ctx, *res.Fix)
	a.emit(ports.Event{Kind: ports.NamespaceFixed, Pass: PassNamespaces, Path: res.Path, Err: err})
	if err != nil {
		observability.NamespaceFixesTotal.WithLabelValues("failed").Inc()
		slog.Warn("namespace fix failed", "path", res.Path, "error", err)
		res.FixErr = err
		return
	}
	observability.NamespaceFixesTotal.WithLabelValues("applied").Inc()
	slog.Info("namespace fixed", "path", res.Path, "namespace", res.Fix.NewText)
	res.Fixed = true
}
