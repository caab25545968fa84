package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func headerStyle() lipgloss.Style {
	return fg(CurrentTheme.Primary).Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(CurrentTheme.Muted)
}

func panelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(CurrentTheme.Muted).
		Padding(0, 1)
}

func labelStyle() lipgloss.Style    { return fg(CurrentTheme.Muted).Width(14) }
func valueStyle() lipgloss.Style    { return fg(CurrentTheme.Text) }
func selectedStyle() lipgloss.Style { return fg(CurrentTheme.Secondary).Bold(true) }
func helpStyle() lipgloss.Style     { return fg(CurrentTheme.Muted).Italic(true) }

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "RUNNING":
		return fg(CurrentTheme.High).Bold(true)
	case "PAUSED":
		return fg(CurrentTheme.Mid).Bold(true)
	}
	return fg(CurrentTheme.Low).Bold(true)
}

// ProgressBar renders fraction in [0, 1] as a bar of width cells.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(filled, width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	switch {
	case fraction > 0.8:
		return fg(CurrentTheme.High).Render(bar)
	case fraction > 0.4:
		return fg(CurrentTheme.Mid).Render(bar)
	}
	return fg(CurrentTheme.Low).Render(bar)
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders the last width values, scaled between their minimum
// and maximum.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat(" ", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for _, v := range values {
		norm := (v - lo) / span
		idx := int(norm * float64(len(sparkChars)-1))
		idx = max(0, min(idx, len(sparkChars)-1))
		c := string(sparkChars[idx])
		switch {
		case norm > 0.7:
			b.WriteString(fg(CurrentTheme.High).Render(c))
		case norm > 0.3:
			b.WriteString(fg(CurrentTheme.Mid).Render(c))
		default:
			b.WriteString(fg(CurrentTheme.Low).Render(c))
		}
	}
	b.WriteString(strings.Repeat(" ", width-len(values)))
	return b.String()
}
