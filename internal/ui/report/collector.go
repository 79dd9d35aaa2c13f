// Package report collects diagnostics from a run and renders them.
package report

import (
	"context"
	"microscope/internal/core/errors"
	"microscope/internal/core/ports"
	"microscope/internal/engine/diagnostic"
	"sync"
)

// Collector is the reporter used by the CLI. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	diags  []diagnostic.Diagnostic
	counts map[diagnostic.Kind]int
	fixer  ports.FixApplier
	// OnReport, when set, sees each diagnostic as it arrives.
	OnReport func(diagnostic.Diagnostic)
}

var _ ports.Reporter = (*Collector)(nil)

// NewCollector returns a collector that hands namespace fixes to fixer.
// With a nil fixer every fix request is refused.
func NewCollector(fixer ports.FixApplier) *Collector {
	return &Collector{
		counts: make(map[diagnostic.Kind]int),
		fixer:  fixer,
	}
}

func (c *Collector) Report(d diagnostic.Diagnostic) {
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.counts[d.Kind]++
	onReport := c.OnReport
	c.mu.Unlock()

	if onReport != nil {
		onReport(d)
	}
}

func (c *Collector) ApplyNamespaceFix(ctx context.Context, fix diagnostic.Fix) error {
	if c.fixer == nil {
		return errors.AddContext(errors.New(errors.CodeValidationError, "auto-fix is disabled"), errors.CtxPath, fix.FilePath)
	}
	return c.fixer.Apply(ctx, fix)
}

// Diagnostics returns a sorted copy of everything reported so far.
func (c *Collector) Diagnostics() []diagnostic.Diagnostic {
	c.mu.Lock()
	out := append([]diagnostic.Diagnostic(nil), c.diags...)
	c.mu.Unlock()
	diagnostic.Sort(out)
	return out
}

// Counts returns the number of diagnostics per kind.
func (c *Collector) Counts() map[diagnostic.Kind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[diagnostic.Kind]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diags)
}

// HasErrors reports whether any error-severity diagnostic was collected.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.diags {
		if d.Severity == diagnostic.SeverityError {
			return true
		}
	}
	return false
}

// Reset drops collected diagnostics, e.g. between watch iterations.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = nil
	c.counts = make(map[diagnostic.Kind]int)
}
