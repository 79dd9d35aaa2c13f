package formats

import (
	"fmt"
	"microscope/internal/engine/diagnostic"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type textStyles struct {
	file    lipgloss.Style
	line    lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	rule    lipgloss.Style
	success lipgloss.Style
	status  lipgloss.Style
}

func newTextStyles(color bool) textStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return textStyles{plain, plain, plain, plain, plain, plain, plain}
	}
	return textStyles{
		file: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true),
		line: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true),
		rule: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true),
	}
}

// GenerateText renders diagnostics grouped by file, followed by a summary
// line. diags must already be sorted.
func GenerateText(projectRoot string, summary Summary, diags []diagnostic.Diagnostic, color bool) string {
	st := newTextStyles(color)
	var b strings.Builder

	currentFile := ""
	for _, d := range diags {
		file := relativeURI(projectRoot, d.FilePath)
		if file != currentFile {
			if currentFile != "" {
				b.WriteString("\n")
			}
			b.WriteString(st.file.Render(file))
			b.WriteString("\n")
			currentFile = file
		}

		sev := st.warning.Render(fmt.Sprintf("%-7s", d.Severity))
		if d.Severity == diagnostic.SeverityError {
			sev = st.err.Render(fmt.Sprintf("%-7s", d.Severity))
		}
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
			st.line.Render(fmt.Sprintf("%5d", d.Line)),
			sev,
			d.Detail,
			st.rule.Render(d.Kind.Rule()),
		)
		if d.Fix != nil {
			fmt.Fprintf(&b, "         %s\n", st.status.Render("fix: "+d.Fix.NewText))
		}
	}
	if len(diags) > 0 {
		b.WriteString("\n")
	}

	errs, warnings := countSeverities(diags)
	if len(diags) == 0 {
		b.WriteString(st.success.Render(fmt.Sprintf("No problems found in %d files", summary.Files)))
	} else {
		b.WriteString(fmt.Sprintf("%d problems (%d errors, %d warnings) in %d files",
			len(diags), errs, warnings, summary.Files))
	}
	var extra []string
	if summary.Skipped > 0 {
		extra = append(extra, fmt.Sprintf("%d skipped", summary.Skipped))
	}
	if summary.FixesApplied > 0 {
		extra = append(extra, fmt.Sprintf("%d fixed", summary.FixesApplied))
	}
	if summary.FixesFailed > 0 {
		extra = append(extra, fmt.Sprintf("%d fixes failed", summary.FixesFailed))
	}
	if len(extra) > 0 {
		b.WriteString(st.status.Render(" (" + strings.Join(extra, ", ") + ")"))
	}
	b.WriteString("\n")
	return b.String()
}
