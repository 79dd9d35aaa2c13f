package resolver

import (
	"context"
	"fmt"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/engine/parser"
)

// Checker queries an Oracle for every extracted name and reports the ones that
// do not exist. A failed query aborts the file; it is never read as "missing".
type Checker struct {
	oracle Oracle
}

func NewChecker(oracle Oracle) *Checker {
	return &Checker{oracle: oracle}
}

// CheckImports reports one UnresolvedImport per import that does not resolve.
// Constant imports are not checked.
func (c *Checker) CheckImports(ctx context.Context, path string, imports []parser.ImportStatement) ([]diagnostic.Diagnostic, error) {
	var diags []diagnostic.Diagnostic
	for _, imp := range imports {
		var (
			ok   bool
			err  error
			what string
		)
		switch imp.Kind {
		case parser.ImportConst:
			continue
		case parser.ImportFunction:
			ok, err = c.oracle.FunctionExists(ctx, imp.Name)
			what = "function"
		default:
			ok, err = c.oracle.Resolves(ctx, imp.Name)
			what = "class"
		}
		if err != nil {
			return nil, fmt.Errorf("resolve import %s: %w", imp.Name, err)
		}
		if ok {
			continue
		}
		diags = append(diags, diagnostic.Diagnostic{
			Kind:     diagnostic.UnresolvedImport,
			Severity: diagnostic.SeverityError,
			FilePath: path,
			Line:     imp.Line,
			Symbol:   imp.Name,
			Detail:   fmt.Sprintf("imported %s %s does not exist", what, imp.Name),
		})
	}
	return diags, nil
}

// CheckReferences reports references that are neither a known type nor a
// known function.
func (c *Checker) CheckReferences(ctx context.Context, path string, refs []parser.SymbolReference) ([]diagnostic.Diagnostic, error) {
	var diags []diagnostic.Diagnostic
	for _, ref := range refs {
		ok, err := c.oracle.Resolves(ctx, ref.Name)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ref.Name, err)
		}
		if !ok {
			ok, err = c.oracle.FunctionExists(ctx, ref.Name)
			if err != nil {
				return nil, fmt.Errorf("resolve function %s: %w", ref.Name, err)
			}
		}
		if ok {
			continue
		}
		diags = append(diags, diagnostic.Diagnostic{
			Kind:     diagnostic.UnresolvedClass,
			Severity: diagnostic.SeverityError,
			FilePath: path,
			Line:     ref.Line,
			Symbol:   ref.Name,
			Detail:   fmt.Sprintf("%s (%s) does not exist", ref.Name, ref.Position),
		})
	}
	return diags, nil
}

// CheckCallables reports the class of a callable string when it is missing,
// and the method only when the class exists.
func (c *Checker) CheckCallables(ctx context.Context, path string, calls []parser.CallableReference) ([]diagnostic.Diagnostic, error) {
	var diags []diagnostic.Diagnostic
	for _, call := range calls {
		ok, err := c.oracle.Resolves(ctx, call.ClassName)
		if err != nil {
			return nil, fmt.Errorf("resolve callable class %s: %w", call.ClassName, err)
		}
		if !ok {
			diags = append(diags, diagnostic.Diagnostic{
				Kind:     diagnostic.UnresolvedCallableClass,
				Severity: diagnostic.SeverityError,
				FilePath: path,
				Line:     call.Line,
				Symbol:   call.ClassName,
				Detail:   fmt.Sprintf("class %s in %q does not exist", call.ClassName, call.Literal),
			})
			continue
		}

		ok, err = c.oracle.MethodExists(ctx, call.ClassName, call.MethodName)
		if err != nil {
			return nil, fmt.Errorf("resolve method %s@%s: %w", call.ClassName, call.MethodName, err)
		}
		if ok {
			continue
		}
		diags = append(diags, diagnostic.Diagnostic{
			Kind:     diagnostic.UnresolvedCallableMethod,
			Severity: diagnostic.SeverityError,
			FilePath: path,
			Line:     call.Line,
			Symbol:   call.ClassName + parser.CallableSeparator + call.MethodName,
			Detail:   fmt.Sprintf("method %s does not exist on %s", call.MethodName, call.ClassName),
		})
	}
	return diags, nil
}
