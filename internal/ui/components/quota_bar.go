package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
	"github.com/j-veylop/antigravity-quota-history/internal/ui/styles"
)

const resourceLabelWidth = 18

// RenderGradientBar renders just the bar part with gradient colors.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * percent / 100)
	filled = min(max(filled, 0), width)

	var bar strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#ff6b6b", "#51cf66", t)
			bar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			bar.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}

	return bar.String()
}

// SimpleQuotaBar renders a label, a gradient bar and the percentage.
// The label is padded or truncated to labelWidth cells.
func SimpleQuotaBar(percent float64, label string, labelWidth, width int) string {
	percentWidth := 6
	barWidth := max(width-labelWidth-percentWidth-4, 5)

	label = ansi.Truncate(label, labelWidth, "…")
	label += strings.Repeat(" ", max(labelWidth-ansi.StringWidth(label), 0))

	labelStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Render(label)

	percentStr := styles.GetQuotaStyle(percent).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))

	return fmt.Sprintf("%s [%s] %s", labelStr, RenderGradientBar(percent, barWidth), percentStr)
}

// RenderAccountQuotas renders the last known quota of every account.
func RenderAccountQuotas(accounts []models.Account, width int, now time.Time) string {
	if len(accounts) == 0 {
		return styles.HelpStyle.Render("No accounts configured")
	}

	var sections []string
	for i := range accounts {
		acc := &accounts[i]

		header := styles.SubTitleStyle.Render(acc.Name())
		if acc.IsActive {
			header += " " + styles.TierProStyle.Render("●")
		}
		if acc.Quota != nil && acc.Quota.Tier != "" {
			header += " " + styles.GetTierStyle(acc.Quota.Tier).Render(acc.Quota.Tier)
		}

		lines := []string{header}
		if !acc.HasQuota() {
			lines = append(lines, styles.HelpStyle.Render("  never sampled"))
		} else {
			for j := range acc.Quota.Resources {
				rq := &acc.Quota.Resources[j]
				line := "  " + SimpleQuotaBar(rq.Percentage, rq.Name, resourceLabelWidth, width-14)
				if reset := rq.ResetTime(); !reset.IsZero() {
					line += " " + styles.HelpStyle.Render(FormatResetIn(reset.Sub(now)))
				}
				lines = append(lines, line)
			}
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// FormatResetIn formats the time until a reset, "reset" once it has passed.
func FormatResetIn(d time.Duration) string {
	if d <= 0 {
		return "reset"
	}
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
