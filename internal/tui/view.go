package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/suite"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderHealth())

	if m.dashboard != nil {
		sections = append(sections, m.renderScores())
		sections = append(sections, m.renderDetails())
		sections = append(sections, m.renderRecommendations())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders the per-worker table.
func (m Model) renderDetailedView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderWorkerTable(),
		m.renderFooter(),
	)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" %s │ %s │ Workers: %d/%d │ Elapsed: %s ",
		m.tool,
		GetHealthLabel(m.Health()),
		m.ActiveWorkers(),
		len(m.workers),
		stats.FormatDuration(m.Elapsed()),
	)
	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Health
// =============================================================================

func (m Model) renderHealth() string {
	if m.dashboard == nil {
		return boxStyle.Width(m.width - 2).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				sectionHeaderStyle.Render("Stream Health"),
				dimStyle.Render("Waiting for the first analysis..."),
			),
		)
	}

	barWidth := max(m.width-30, 20)
	label := GetHealthStyle(GetHealthStatus(m.Health())).Render(formatScore(m.Health()))

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Stream Health"),
		RenderHealthGauge(m.Health(), barWidth),
		RenderKeyValue("Overall", label),
		RenderKeyValue("Session", truncate(m.dashboard.SessionID, m.width-26)),
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Dimension Scores
// =============================================================================

func (m Model) renderScores() string {
	d := m.dashboard
	rows := []string{
		renderScoreRow("Quality", d.QualityScore, suite.QualityThreshold, m.available(suite.DimensionQuality)),
		renderScoreRow("Latency", d.LatencyScore, suite.LatencyThreshold, m.available(suite.DimensionLatency)),
		renderScoreRow("Adaptation", d.AdaptationScore, suite.AdaptationThreshold, m.available(suite.DimensionAdaptation)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Dimension Scores")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

func (m Model) available(dimension string) bool {
	return m.dashboard != nil && !slices.Contains(m.dashboard.Unavailable, dimension)
}

func renderScoreRow(label string, score, threshold float64, available bool) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		lipgloss.NewStyle().Width(8).Render(GetScoreLabel(score, threshold, available)),
		mutedStyle.Render(fmt.Sprintf("  %s  (threshold %.1f)", renderHealthBar(score, 10, available), threshold)),
	)
}

// renderHealthBar draws a score as filled and empty circles.
func renderHealthBar(ratio float64, totalCircles int, available bool) string {
	if !available {
		return strings.Repeat("·", totalCircles)
	}
	filled := min(max(int(ratio*float64(totalCircles)), 0), totalCircles)
	return strings.Repeat("●", filled) + strings.Repeat("○", totalCircles-filled)
}

// =============================================================================
// Details
// =============================================================================

func (m Model) renderDetails() string {
	d := m.dashboard

	bitrate := "N/A"
	if d.AvgBitrate != nil {
		bitrate = stats.FormatBitrate(*d.AvgBitrate)
	}
	switches := "N/A"
	if d.SwitchingEvents != nil {
		switches = fmt.Sprintf("%d", *d.SwitchingEvents)
	}

	left := []string{
		RenderKeyValue("Avg bitrate", bitrate),
		RenderKeyValue("Avg SSIM", stats.FormatOptional(d.AvgSSIM, 3)),
	}
	right := []string{
		RenderKeyValue("Manifest latency", stats.FormatMillis(d.AvgLatencyMs)),
		RenderKeyValue("Stability", stats.FormatOptional(d.StabilityScore, 3)),
		RenderKeyValue("Switching events", switches),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Details"),
		renderTwoColumns(left, right, m.width),
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Recommendations
// =============================================================================

func (m Model) renderRecommendations() string {
	var rows []string
	if len(m.dashboard.Recommendations) == 0 {
		rows = append(rows, statusOK.Render("✓ No issues detected"))
	}
	for _, r := range m.dashboard.Recommendations {
		rows = append(rows, statusWarning.Render("⚠ ")+baseStyle.Render(r))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Recommendations")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Worker Table
// =============================================================================

func (m Model) renderWorkerTable() string {
	if len(m.workers) == 0 {
		return boxStyle.Width(m.width - 2).Render(
			dimStyle.Render("No workers running. Press 'd' to toggle."),
		)
	}

	header := tableHeaderStyle.Render(
		fmt.Sprintf("%-12s %-10s %8s %8s", "Worker", "State", "Polls", "Samples"),
	)

	rows := make([]string, 0, len(m.workers))
	for i, w := range m.workers {
		rowStyle := tableRowEvenStyle
		if i%2 == 1 {
			rowStyle = tableRowOddStyle
		}
		state := w.State.String()
		row := fmt.Sprintf("%-12s %s %8d %8d",
			w.Name,
			GetWorkerStateStyle(state).Width(10).Render(state),
			w.Polls,
			w.Samples,
		)
		rows = append(rows, rowStyle.Render(row))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{
			sectionHeaderStyle.Render("Workers"),
			header,
		}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"d: toggle workers",
		"r: refresh",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := dimStyle.Render("Manifest: " + truncate(m.manifestURL, m.width-60))
	if m.metricsAddr != "" {
		right += dimStyle.Render(" │ Metrics: " + m.metricsAddr)
	}

	padding := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}

// truncate shortens s to n characters with an ellipsis. n <= 10 leaves s
// unchanged.
func truncate(s string, n int) string {
	if len(s) > n && n > 10 {
		return s[:n-3] + "..."
	}
	return s
}

// =============================================================================
// Two-Column Layout Helper
// =============================================================================

// renderTwoColumns renders two columns side-by-side with a separator.
func renderTwoColumns(left, right []string, totalWidth int) string {
	separatorWidth := 3 // " │ "
	padding := 2        // Box padding
	availableWidth := totalWidth - separatorWidth - padding*2

	leftWidth := max(availableWidth/2, 20)

	leftContent := lipgloss.NewStyle().Width(leftWidth).Render(lipgloss.JoinVertical(lipgloss.Left, left...))
	rightContent := lipgloss.JoinVertical(lipgloss.Left, right...)

	separator := mutedStyle.Render(" │ ")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftContent, separator, rightContent)
}
