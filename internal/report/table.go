package report

import (
	"fmt"
	"time"

	"github.com/harunnryd/synccheck/internal/journal"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	passStyle   lipgloss.Style
	failStyle   lipgloss.Style
	borderStyle lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	green := lipgloss.Color("42")
	red := lipgloss.Color("196")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		passStyle: lipgloss.NewStyle().
			Foreground(green).
			Bold(true).
			Padding(0, 1),
		failStyle: lipgloss.NewStyle().
			Foreground(red).
			Bold(true).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

const outcomeCol = 1

func (f *TableFormatter) FormatRuns(records []journal.RunRecord) (string, error) {
	if len(records) == 0 {
		return "No runs recorded", nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case col == outcomeCol && row >= 0 && row < len(records):
				if records[row].Outcome == journal.OutcomePass {
					return f.passStyle
				}
				return f.failStyle
			default:
				return f.cellStyle
			}
		}).
		Headers("Scenario", "Outcome", "Category", "Duration", "Seed", "Run ID", "Error")

	for _, rec := range records {
		t.Row(
			rec.Scenario,
			string(rec.Outcome),
			rec.Category,
			rec.Duration().Round(time.Millisecond).String(),
			fmt.Sprintf("%d", rec.OrderSeed),
			rec.RunID,
			truncateString(rec.Error, 60),
		)
	}

	return t.String(), nil
}

func (f *TableFormatter) FormatScenarios(scenarios []ScenarioInfo) (string, error) {
	if len(scenarios) == 0 {
		return "No scenarios registered", nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return f.headerStyle
			}
			return f.cellStyle
		}).
		Headers("Scenario", "Description")

	for _, sc := range scenarios {
		t.Row(sc.Name, truncateString(sc.Description, 70))
	}

	return t.String(), nil
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
