package app

import (
	"context"
	"microscope/internal/core/errors"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/engine/lexer"
	"microscope/internal/engine/parser"
	"microscope/internal/shared/observability"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// readDeclaration reads, tokenizes and extracts the declaration of path,
// advancing res as it goes. It returns false after marking res skipped.
func readDeclaration(pass, path string, res *FileResult) ([]lexer.Token, parser.DeclarationInfo, bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		err = errors.AddContext(errors.Wrap(err, errors.CodeIO, "read file"), errors.CtxPath, path)
		logSkip(pass, path, err)
		res.skip(err)
		return nil, parser.DeclarationInfo{}, false
	}

	tokens, err := lexer.Tokenize(src)
	if err != nil {
		err = errors.Wrap(err, errors.CodeNotSourceFile, "no open tag")
		logSkip(pass, path, err)
		res.skip(err)
		return nil, parser.DeclarationInfo{}, false
	}
	res.advance(StateTokenized)

	decl := parser.ExtractDeclaration(tokens)
	if !decl.HasType() {
		err := errors.New(errors.CodeNoTypeDeclaration, "file declares no type")
		logSkip(pass, path, err)
		res.skip(err)
		return nil, parser.DeclarationInfo{}, false
	}
	res.advance(StateDeclarationExtracted)
	return tokens, decl, true
}

func (a *App) referencesFile(ctx context.Context, path string) FileResult {
	ctx, span := observability.Tracer.Start(ctx, "app.referencesFile", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	res := FileResult{Path: path, State: StateUnanalyzed}
	tokens, decl, ok := readDeclaration(PassReferences, path, &res)
	if !ok {
		return res
	}

	file := parser.Analyze(path, tokens, decl, parser.Options{
		Callables:    a.opts.Callables,
		OnlyAbsolute: a.opts.OnlyAbsoluteCallables,
	})
	span.SetAttributes(attribute.String("type", file.FullTypeName()))
	res.advance(StateReferencesResolved)

	diags, err := a.checkExistence(ctx, file)
	if err != nil {
		err = errors.AddContext(errors.Wrap(err, errors.CodeOracle, "symbol oracle query failed"), errors.CtxPath, path)
		span.RecordError(err)
		logSkip(PassReferences, path, err)
		res.skip(err)
		return res
	}
	res.Diagnostics = diags
	res.advance(StateExistenceChecked)
	res.advance(StateDone)
	span.SetAttributes(attribute.Int("diagnostics", len(diags)))
	return res
}

func (a *App) checkExistence(ctx context.Context, file *parser.File) ([]diagnostic.Diagnostic, error) {
	var diags []diagnostic.Diagnostic
	found, err := a.checker.CheckImports(ctx, file.Path, file.Imports)
	if err != nil {
		return nil, err
	}
	diags = append(diags, found...)

	found, err = a.checker.CheckReferences(ctx, file.Path, file.References)
	if err != nil {
		return nil, err
	}
	diags = append(diags, found...)

	found, err = a.checker.CheckCallables(ctx, file.Path, file.Callables)
	if err != nil {
		return nil, err
	}
	return append(diags, found...), nil
}
