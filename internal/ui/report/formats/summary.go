// Package formats renders diagnostics as text, JSON or SARIF.
package formats

import (
	"microscope/internal/engine/diagnostic"
	"time"
)

// Summary describes the run a set of diagnostics came from.
type Summary struct {
	RunID        string
	Files        int
	Skipped      int
	FixesApplied int
	FixesFailed  int
	Duration     time.Duration
}

// countSeverities splits diags into errors and warnings.
func countSeverities(diags []diagnostic.Diagnostic) (errs, warnings int) {
	for _, d := range diags {
		if d.Severity == diagnostic.SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}
