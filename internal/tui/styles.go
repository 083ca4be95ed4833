// Package tui provides a live terminal dashboard for a stream analysis
// session.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for
// styling. It shows the overall health score, the per-dimension scores with
// their details, the current recommendations and the state of every worker.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Health colors carry meaning everywhere: green passes its
// threshold, amber is close, red is failing.
var (
	colorHeader = lipgloss.Color("#1D4ED8")
	colorAccent = lipgloss.Color("#22D3EE")

	colorGood = lipgloss.Color("#22C55E")
	colorWarn = lipgloss.Color("#EAB308")
	colorBad  = lipgloss.Color("#DC2626")
	colorBusy = lipgloss.Color("#60A5FA")

	colorFg     = lipgloss.Color("#F3F4F6")
	colorFgSoft = lipgloss.Color("#A1A1AA")
	colorFgDim  = lipgloss.Color("#71717A")
	colorRule   = lipgloss.Color("#3F3F46")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func strong(c lipgloss.Color) lipgloss.Style {
	return fg(c).Bold(true)
}

var (
	baseStyle  = fg(colorFg)
	mutedStyle = fg(colorFgSoft)
	dimStyle   = fg(colorFgDim)

	statusOK      = strong(colorGood)
	statusWarning = strong(colorWarn)
	statusError   = strong(colorBad)
	statusInfo    = strong(colorBusy)

	valueStyle     = strong(colorFg)
	valueGoodStyle = statusOK
	valueWarnStyle = statusWarning
	valueBadStyle  = statusError
	labelStyle     = mutedStyle.Width(20)

	gaugeEmptyStyle = fg(colorRule)

	tableRowEvenStyle = baseStyle
	tableRowOddStyle  = mutedStyle
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRule).
			Padding(0, 1)

	headerStyle = strong(colorFg).
			Background(colorHeader).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = strong(colorAccent).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorRule).
				MarginTop(1)

	tableHeaderStyle = strong(colorAccent).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorRule)

	footerStyle = mutedStyle.MarginTop(1)
)

// HealthStatus buckets the overall health score.
type HealthStatus int

const (
	HealthStatusHealthy HealthStatus = iota
	HealthStatusDegraded
	HealthStatusUnhealthy
)

// GetHealthStatus returns the status for an overall health score.
func GetHealthStatus(health float64) HealthStatus {
	switch {
	case health >= 0.8:
		return HealthStatusHealthy
	case health >= 0.6:
		return HealthStatusDegraded
	default:
		return HealthStatusUnhealthy
	}
}

// GetHealthStyle returns the style for a health status.
func GetHealthStyle(status HealthStatus) lipgloss.Style {
	switch status {
	case HealthStatusUnhealthy:
		return statusError
	case HealthStatusDegraded:
		return statusWarning
	default:
		return statusOK
	}
}

var healthNames = map[HealthStatus]string{
	HealthStatusHealthy:   "Healthy",
	HealthStatusDegraded:  "Degraded",
	HealthStatusUnhealthy: "Unhealthy",
}

// GetHealthLabel returns a styled label for the overall health score.
func GetHealthLabel(health float64) string {
	status := GetHealthStatus(health)
	return GetHealthStyle(status).Render("● " + healthNames[status])
}

// GetScoreStyle returns a style for a dimension score relative to the
// threshold below which a recommendation is raised.
func GetScoreStyle(score, threshold float64, available bool) lipgloss.Style {
	switch {
	case !available:
		return dimStyle
	case score >= threshold:
		return valueGoodStyle
	case score >= threshold/2:
		return valueWarnStyle
	default:
		return valueBadStyle
	}
}

// GetScoreLabel returns a styled score value, or "N/A" when unavailable.
func GetScoreLabel(score, threshold float64, available bool) string {
	return GetScoreStyle(score, threshold, available).Render(formatScoreValue(score, available))
}

func formatScoreValue(score float64, available bool) string {
	if !available {
		return "N/A"
	}
	return formatScore(score)
}

// GetWorkerStateStyle returns a style for a worker state name.
func GetWorkerStateStyle(state string) lipgloss.Style {
	switch state {
	case "polling":
		return statusInfo
	case "sleeping", "waiting":
		return statusOK
	case "stopped":
		return mutedStyle
	default:
		return statusWarning
	}
}

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderHealthGauge renders health in [0,1] as a bar of at least ten cells,
// colored by its health status and followed by the score.
func RenderHealthGauge(health float64, width int) string {
	width = max(width, 10)
	filled := min(max(int(health*float64(width)), 0), width)

	style := GetHealthStyle(GetHealthStatus(health))
	return style.Render(strings.Repeat("█", filled)) +
		gaugeEmptyStyle.Render(strings.Repeat("░", width-filled)) +
		" " + style.Render(formatScore(health))
}
