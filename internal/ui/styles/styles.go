// Package styles defines the visual styling for terminal output.
package styles

import "github.com/charmbracelet/lipgloss"

// Color definitions for the Antigravity theme.
var (
	// Primary colors
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary)

// HelpStyle is the base style for secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// AxisStyle styles chart axis labels.
var AxisStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// TierProStyle styles paid tier indicators.
var TierProStyle = lipgloss.NewStyle().
	Foreground(Success).
	Bold(true)

// TierFreeStyle styles free tier indicators.
var TierFreeStyle = lipgloss.NewStyle().
	Foreground(Warning)

// TierUnknownStyle styles unknown tier indicators.
var TierUnknownStyle = lipgloss.NewStyle().
	Foreground(Subtle)

// QuotaHighStyle for high quota percentages (>50%).
var QuotaHighStyle = lipgloss.NewStyle().
	Foreground(Success)

// QuotaMediumStyle for medium quota percentages (20-50%).
var QuotaMediumStyle = lipgloss.NewStyle().
	Foreground(Warning)

// QuotaLowStyle for low quota percentages (<20%).
var QuotaLowStyle = lipgloss.NewStyle().
	Foreground(Error)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// GetQuotaStyle returns the appropriate style based on quota percentage.
func GetQuotaStyle(percent float64) lipgloss.Style {
	switch {
	case percent > 50:
		return QuotaHighStyle
	case percent > 20:
		return QuotaMediumStyle
	default:
		return QuotaLowStyle
	}
}

// GetTierStyle returns the appropriate style for a subscription tier.
func GetTierStyle(tier string) lipgloss.Style {
	switch tier {
	case "Ultra", "Pro", "Business", "Enterprise":
		return TierProStyle
	case "Free":
		return TierFreeStyle
	default:
		return TierUnknownStyle
	}
}

// WarningTextStyle for warnings.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

var ProjectionSafeStyle = lipgloss.NewStyle().
	Foreground(Success)

var ProjectionWarningStyle = lipgloss.NewStyle().
	Foreground(Warning).
	Bold(true)

var ProjectionCriticalStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true)

var ProjectionUnknownStyle = lipgloss.NewStyle().
	Foreground(Subtle)
