package app

import (
	"microscope/internal/core/errors"
	"microscope/internal/engine/diagnostic"
	"time"
)

// FileState tracks how far a single file got through a pass.
type FileState string

const (
	StateUnanalyzed           FileState = "unanalyzed"
	StateTokenized            FileState = "tokenized"
	StateDeclarationExtracted FileState = "declaration_extracted"
	StateReferencesResolved   FileState = "references_resolved"
	StateExistenceChecked     FileState = "existence_checked"
	StateNamespaceChecked     FileState = "namespace_checked"
	StateDone                 FileState = "done"
	StateSkipped              FileState = "skipped"
)

const (
	PassReferences = "references"
	PassNamespaces = "namespaces"
)

// FileResult is the outcome of one file in one pass.
type FileResult struct {
	Path  string
	State FileState
	// SkipReason and SkipCode are set when State is StateSkipped.
	SkipReason  string
	SkipCode    errors.ErrorCode
	Diagnostics []diagnostic.Diagnostic
	// Fix is the namespace rewrite computed for the file, if any.
	Fix *diagnostic.Fix
	// Fixed is true once Fix was applied without error.
	Fixed  bool
	FixErr error
}

func (r *FileResult) advance(state FileState) {
	if r.State != StateSkipped {
		r.State = state
	}
}

func (r *FileResult) skip(err error) {
	r.State = StateSkipped
	r.SkipCode = errors.CodeOf(err)
	r.SkipReason = err.Error()
	r.Diagnostics = nil
	r.Fix = nil
}

func (r *FileResult) skipPolicy(reason string) {
	r.State = StateSkipped
	r.SkipReason = reason
}

// RunResult collects the file results of one or more passes.
type RunResult struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Files    []FileResult
}

// Diagnostics returns every reported diagnostic in stable order.
func (r RunResult) Diagnostics() []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	for _, f := range r.Files {
		out = append(out, f.Diagnostics...)
	}
	diagnostic.Sort(out)
	return out
}

// Counts returns the number of files per final state.
func (r RunResult) Counts() map[FileState]int {
	counts := make(map[FileState]int)
	for _, f := range r.Files {
		counts[f.State]++
	}
	return counts
}

// Skipped returns the files that did not finish, keyed by path.
func (r RunResult) Skipped() map[string]errors.ErrorCode {
	out := make(map[string]errors.ErrorCode)
	for _, f := range r.Files {
		if f.State == StateSkipped {
			out[f.Path] = f.SkipCode
		}
	}
	return out
}

// Fixes returns the number of namespace rewrites applied and failed.
func (r RunResult) Fixes() (applied, failed int) {
	for _, f := range r.Files {
		switch {
		case f.Fixed:
			applied++
		case f.FixErr != nil:
			failed++
		}
	}
	return applied, failed
}

// Outstanding counts the diagnostics an applied fix did not settle.
func (r RunResult) Outstanding() int {
	n := 0
	for _, f := range r.Files {
		for _, d := range f.Diagnostics {
			if f.Fixed && d.Fix != nil {
				continue
			}
			n++
		}
	}
	return n
}

// merge folds the namespace pass results into the references pass results.
// Both slices are ordered by the same candidate list.
func merge(refs, ns []FileResult) []FileResult {
	out := make([]FileResult, len(refs))
	for i := range refs {
		r := refs[i]
		if i >= len(ns) {
			out[i] = r
			continue
		}
		n := ns[i]
		r.Diagnostics = append(r.Diagnostics, n.Diagnostics...)
		r.Fix, r.Fixed, r.FixErr = n.Fix, n.Fixed, n.FixErr
		if r.State != StateSkipped && n.State == StateSkipped && n.SkipCode != "" {
			r.State, r.SkipCode, r.SkipReason = n.State, n.SkipCode, n.SkipReason
		}
		out[i] = r
	}
	return out
}
