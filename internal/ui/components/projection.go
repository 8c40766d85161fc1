package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
	"github.com/j-veylop/antigravity-quota-history/internal/ui/styles"
)

const (
	rateWidth  = 10
	badgeWidth = 11
)

// ProjectionBadge returns the status badge text and its style.
func ProjectionBadge(status models.ProjectionStatus) (string, lipgloss.Style) {
	switch status {
	case models.ProjectionCritical:
		return "▲ CRITICAL", styles.ProjectionCriticalStyle
	case models.ProjectionWarning:
		return "▲ WARNING", styles.ProjectionWarningStyle
	case models.ProjectionSafe:
		return "● SAFE", styles.ProjectionSafeStyle
	default:
		return "? UNKNOWN", styles.ProjectionUnknownStyle
	}
}

// RenderProjections renders one line per entity: remaining bar, consumption
// rate, status badge and, when depletion comes first, the time left.
func RenderProjections(projs []models.EntityProjection, width int) string {
	if len(projs) == 0 {
		return styles.HelpStyle.Render("No history yet")
	}

	barWidth := width - rateWidth - badgeWidth - 2
	lines := make([]string, 0, len(projs))
	for i := range projs {
		p := &projs[i]
		label := p.AccountName + " " + p.ResourceName
		line := SimpleQuotaBar(p.CurrentPercent, label, resourceLabelWidth+8, barWidth)

		rateStyle := styles.HelpStyle
		switch p.Status {
		case models.ProjectionWarning:
			rateStyle = styles.WarningTextStyle
		case models.ProjectionCritical:
			rateStyle = styles.ErrorTextStyle
		}

		rate := ""
		if r := effectiveRate(p); r > 0 {
			rate = fmt.Sprintf("%.1f%%/hr", r)
		}
		badgeText, badgeStyle := ProjectionBadge(p.Status)

		line += " " + rateStyle.Width(rateWidth).Align(lipgloss.Right).Render(rate) +
			" " + badgeStyle.Width(badgeWidth).Align(lipgloss.Right).Render(badgeText)

		if p.WillDepleteBefore {
			line += " " + rateStyle.Render("(Depletes: "+formatHours(p.HoursLeft)+")")
		} else if p.TimeUntilReset > 0 {
			line += " " + styles.HelpStyle.Render(FormatResetIn(p.TimeUntilReset))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func effectiveRate(p *models.EntityProjection) float64 {
	if p.CycleRate > 0 {
		return p.CycleRate
	}
	return p.HistoricalRate
}

func formatHours(hours float64) string {
	if hours < 1 {
		return fmt.Sprintf("%dm", int(hours*60))
	}
	if hours < 24 {
		return fmt.Sprintf("%.1fh", hours)
	}
	return fmt.Sprintf("%.1fd", hours/24)
}
