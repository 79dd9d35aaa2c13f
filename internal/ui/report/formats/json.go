package formats

import (
	"encoding/json"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/shared/version"
)

type jsonReport struct {
	Tool        string           `json:"tool"`
	Version     string           `json:"version"`
	RunID       string           `json:"run_id,omitempty"`
	Summary     jsonSummary      `json:"summary"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

type jsonSummary struct {
	Files        int            `json:"files"`
	Skipped      int            `json:"skipped"`
	Errors       int            `json:"errors"`
	Warnings     int            `json:"warnings"`
	ByKind       map[string]int `json:"by_kind"`
	FixesApplied int            `json:"fixes_applied"`
	FixesFailed  int            `json:"fixes_failed"`
	DurationMS   int64          `json:"duration_ms"`
}

type jsonDiagnostic struct {
	Kind     string   `json:"kind"`
	Rule     string   `json:"rule"`
	Severity string   `json:"severity"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Symbol   string   `json:"symbol,omitempty"`
	Message  string   `json:"message"`
	Fix      *jsonFix `json:"fix,omitempty"`
}

type jsonFix struct {
	Line    int    `json:"line"`
	OldText string `json:"old_text,omitempty"`
	NewText string `json:"new_text"`
	Insert  bool   `json:"insert,omitempty"`
}

// GenerateJSON renders diagnostics as an indented JSON document with paths
// relative to projectRoot.
func GenerateJSON(projectRoot string, summary Summary, diags []diagnostic.Diagnostic) ([]byte, error) {
	errs, warnings := countSeverities(diags)
	report := jsonReport{
		Tool:    version.Name,
		Version: version.Version,
		RunID:   summary.RunID,
		Summary: jsonSummary{
			Files:        summary.Files,
			Skipped:      summary.Skipped,
			Errors:       errs,
			Warnings:     warnings,
			ByKind:       make(map[string]int),
			FixesApplied: summary.FixesApplied,
			FixesFailed:  summary.FixesFailed,
			DurationMS:   summary.Duration.Milliseconds(),
		},
		Diagnostics: make([]jsonDiagnostic, 0, len(diags)),
	}

	for _, d := range diags {
		report.Summary.ByKind[string(d.Kind)]++
		out := jsonDiagnostic{
			Kind:     string(d.Kind),
			Rule:     d.Kind.Rule(),
			Severity: string(d.Severity),
			File:     relativeURI(projectRoot, d.FilePath),
			Line:     d.Line,
			Symbol:   d.Symbol,
			Message:  d.Detail,
		}
		if d.Fix != nil {
			out.Fix = &jsonFix{Line: d.Fix.Line, OldText: d.Fix.OldText, NewText: d.Fix.NewText, Insert: d.Fix.Insert}
		}
		report.Diagnostics = append(report.Diagnostics, out)
	}
	return json.MarshalIndent(report, "", "  ")
}
