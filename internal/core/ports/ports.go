package ports

import (
	"context"
	"microscope/internal/engine/diagnostic"
)

// SymbolOracle answers existence queries. Implementations must be safe for
// concurrent reads; an error means "unknown", never "missing".
type SymbolOracle interface {
	Resolves(ctx context.Context, name string) (bool, error)
	FunctionExists(ctx context.Context, name string) (bool, error)
	MethodExists(ctx context.Context, class, method string) (bool, error)
}

// Reporter receives diagnostics as files finish and applies namespace fixes
// when auto-fix is on. Report is called from worker goroutines.
type Reporter interface {
	Report(d diagnostic.Diagnostic)
	ApplyNamespaceFix(ctx context.Context, fix diagnostic.Fix) error
}

// FixApplier rewrites a file according to a fix instruction.
type FixApplier interface {
	Apply(ctx context.Context, fix diagnostic.Fix) error
}

// CandidateSource lists the files a pass should analyze.
type CandidateSource interface {
	Scan(ctx context.Context) ([]string, error)
}

type EventKind string

const (
	// FileTapped is emitted once per file a pass has finished with.
	FileTapped      EventKind = "file_tapped"
	NamespaceFixing EventKind = "namespace_fixing"
	NamespaceFixed  EventKind = "namespace_fixed"
)

type Event struct {
	Kind EventKind
	Pass string
	Path string
	// Err is set on NamespaceFixed when the rewrite failed.
	Err error
}

// EventSink observes progress. Emit is called from worker goroutines and
// must not block for long.
type EventSink interface {
	Emit(e Event)
}

// EventFunc adapts a function to EventSink.
type EventFunc func(Event)

func (f EventFunc) Emit(e Event) { f(e) }

// Events fans an event out to several sinks.
type Events []EventSink

func (s Events) Emit(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Emit(e)
		}
	}
}
