package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"deepdefender/internal/present"
)

type SummaryRow struct {
	Label string
	Value string
}

// MetricRows converts display metrics into summary rows.
func MetricRows(metrics []present.Metric) []SummaryRow {
	rows := make([]SummaryRow, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, SummaryRow{Label: m.Label, Value: m.Value})
	}
	return rows
}

// RenderSummary lays rows out as a two-column panel framed by rules. Labels
// are left aligned, values right aligned.
func RenderSummary(rows []SummaryRow) string {
	if len(rows) == 0 {
		return ""
	}

	labelWidth, valueWidth := 0, 0
	for _, row := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Label))
		valueWidth = max(valueWidth, lipgloss.Width(row.Value))
	}

	label := labelStyle.Width(labelWidth)
	value := valueStyle.Width(valueWidth).Align(lipgloss.Right)

	rule := dimStyle.Render(strings.Repeat("─", labelWidth+valueWidth+3))
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, rule)
	for _, row := range rows {
		lines = append(lines, label.Render(row.Label)+dimStyle.Render(" │ ")+value.Render(row.Value))
	}
	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}
