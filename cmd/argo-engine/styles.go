package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/argo-engine/internal/types"
)

var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// LabelStyle for the left column of the summary.
	LabelStyle = lipgloss.NewStyle().Faint(true).Width(18)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	profitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// FormatPnl renders a signed amount in green or red.
func FormatPnl(v float64) string {
	s := fmt.Sprintf("%+.2f", v)

	switch {
	case v > 0:
		return profitStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	default:
		return s
	}
}

func row(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value)
}

// RenderSummary renders a trade summary as a bordered table.
func RenderSummary(summary types.TradeSummary) string {
	rows := []string{
		TitleStyle.Render(fmt.Sprintf("Backtest %s", summary.Symbol)),
		row("Run", summary.ID),
		row("Entries", fmt.Sprintf("%d", summary.Entries)),
		row("Profit triggers", fmt.Sprintf("%d", summary.ProfitTriggers)),
		row("Stop triggers", fmt.Sprintf("%d", summary.StopTriggers)),
		row("Success ratio", fmt.Sprintf("%.2f%%", summary.SuccessRatio*100)),
		row("Commissions", fmt.Sprintf("%.2f", summary.Commissions)),
	}

	for _, instrument := range slices.Sorted(maps.Keys(summary.RealizedPnL)) {
		rows = append(rows, row("PnL "+instrument, FormatPnl(summary.RealizedPnL[instrument])))
	}

	rows = append(rows, row("Balance", fmt.Sprintf("%.2f", summary.Balance)))

	return boxStyle.Render(strings.Join(rows, "\n"))
}
