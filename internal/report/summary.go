package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshdevyn/Runix-sub000/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Summary renders the console summary for a run. When styled is false (for
// non-terminal stdout) the output is plain text.
func Summary(report model.RunReport, styled bool) string {
	header := fmt.Sprintf("Feature: %s", report.Feature)
	passed := fmt.Sprintf("%d passed", report.Passed)
	failed := fmt.Sprintf("%d failed", report.Failed)
	elapsed := fmt.Sprintf("(%s)", report.Duration.Round(1_000_000)) // ms resolution

	if styled {
		header = headerStyle.Render(header)
		passed = passStyle.Render(passed)
		if report.Failed > 0 {
			failed = failStyle.Render(failed)
		}
		elapsed = dimStyle.Render(elapsed)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d steps: %s, %s %s\n", len(report.Results), passed, failed, elapsed)

	for _, res := range report.Results {
		if res.Success {
			continue
		}
		line := fmt.Sprintf("  FAIL %s %s: %s", res.Keyword, res.Step, res.Message)
		if styled {
			line = failStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}
