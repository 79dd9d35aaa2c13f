package resolver

import (
	"context"
	"microscope/internal/shared/observability"
)

// Instrumented counts the queries that reach inner by kind and outcome.
type Instrumented struct {
	inner Oracle
}

func NewInstrumented(inner Oracle) *Instrumented {
	return &Instrumented{inner: inner}
}

func (o *Instrumented) Resolves(ctx context.Context, name string) (bool, error) {
	ok, err := o.inner.Resolves(ctx, name)
	record("type", ok, err)
	return ok, err
}

func (o *Instrumented) FunctionExists(ctx context.Context, name string) (bool, error) {
	ok, err := o.inner.FunctionExists(ctx, name)
	record("function", ok, err)
	return ok, err
}

func (o *Instrumented) MethodExists(ctx context.Context, class, method string) (bool, error) {
	ok, err := o.inner.MethodExists(ctx, class, method)
	record("method", ok, err)
	return ok, err
}

func record(query string, ok bool, err error) {
	result := "missing"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "found"
	}
	observability.OracleQueriesTotal.WithLabelValues(query, result).Inc()
}
