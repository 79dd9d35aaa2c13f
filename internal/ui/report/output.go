package report

import (
	"fmt"
	"io"
	"microscope/internal/core/app"
	"microscope/internal/core/config"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/shared/util"
	"microscope/internal/ui/report/formats"
)

type OutputOptions struct {
	Format string
	// Path, when set, receives the report instead of the writer.
	Path        string
	ProjectRoot string
	Color       bool
}

// SummaryOf condenses a run for the renderers.
func SummaryOf(run app.RunResult) formats.Summary {
	applied, failed := run.Fixes()
	return formats.Summary{
		RunID:        run.ID,
		Files:        len(run.Files),
		Skipped:      run.Counts()[app.StateSkipped],
		FixesApplied: applied,
		FixesFailed:  failed,
		Duration:     run.Duration,
	}
}

// Render produces the report bytes for one of the configured formats.
func Render(opts OutputOptions, summary formats.Summary, diags []diagnostic.Diagnostic) ([]byte, error) {
	switch opts.Format {
	case "", config.FormatText:
		return []byte(formats.GenerateText(opts.ProjectRoot, summary, diags, opts.Color)), nil
	case config.FormatJSON:
		return formats.GenerateJSON(opts.ProjectRoot, summary, diags)
	case config.FormatSARIF:
		return formats.GenerateSARIF(opts.ProjectRoot, summary, diags)
	default:
		return nil, fmt.Errorf("unsupported output format %q", opts.Format)
	}
}

// Write renders the report and sends it to opts.Path or, without one, to w.
func Write(w io.Writer, opts OutputOptions, summary formats.Summary, diags []diagnostic.Diagnostic) error {
	if opts.Path != "" {
		opts.Color = false
	}
	data, err := Render(opts, summary, diags)
	if err != nil {
		return err
	}
	if opts.Path != "" {
		if err := util.WriteFileWithDirs(opts.Path, data, 0o644); err != nil {
			return fmt.Errorf("write report %s: %w", opts.Path, err)
		}
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
