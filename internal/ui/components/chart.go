// Package components renders usage charts and quota summaries for the terminal.
package components

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
	"github.com/j-veylop/antigravity-quota-history/internal/ui/styles"
)

// MaxLegendLabel is the widest legend label before truncation.
const MaxLegendLabel = 32

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderChart renders the full chart: stacked bars, the totals line and the legend.
func RenderChart(data models.UsageChartData, width, height int, loc *time.Location) string {
	if len(data.Buckets) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	title := styles.TitleStyle.Render(fmt.Sprintf("Quota usage, last %s in %s buckets",
		formatMinutes(data.DisplayMinutes), formatMinutes(data.Interval)))

	sections := []string{
		title,
		RenderStackedBars(data, width, loc),
		"",
		RenderLineChart(BucketTotals(data), width, height, "consumed % per bucket"),
	}
	if legend := RenderLegend(Legend(data, MaxLegendLabel)); legend != "" {
		sections = append(sections, "", legend)
	}
	return strings.Join(sections, "\n")
}

// RenderStackedBars draws one horizontal bar per bucket, oldest first. Each
// item is a segment in its own colour; bar length is scaled to MaxUsage.
func RenderStackedBars(data models.UsageChartData, width int, loc *time.Location) string {
	if len(data.Buckets) == 0 {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}

	layout := labelLayout(data)
	labelWidth := len(layout)
	barWidth := max(width-labelWidth-10, 10)

	maxUsage := data.MaxUsage
	if maxUsage <= 0 {
		maxUsage = 1
	}

	lines := make([]string, 0, len(data.Buckets))
	for _, b := range data.Buckets {
		label := styles.AxisStyle.Render(time.Unix(b.StartTime, 0).In(loc).Format(layout))

		var bar strings.Builder
		var cum float64
		drawn := 0
		for _, it := range b.Items {
			cum += it.Usage
			end := min(int(math.Round(cum/maxUsage*float64(barWidth))), barWidth)
			if seg := end - drawn; seg > 0 {
				style := lipgloss.NewStyle().Foreground(lipgloss.Color(it.Color))
				bar.WriteString(style.Render(strings.Repeat("█", seg)))
				drawn = end
			}
		}

		lines = append(lines, fmt.Sprintf("%s │%s %s", label, bar.String(), formatUsage(b.Total())))
	}

	return strings.Join(lines, "\n")
}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// Ensure minimum dimensions
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// BucketTotals returns the summed usage of every bucket, oldest first.
func BucketTotals(data models.UsageChartData) []float64 {
	totals := make([]float64, len(data.Buckets))
	for i := range data.Buckets {
		totals[i] = data.Buckets[i].Total()
	}
	return totals
}

// Legend lists every entity that appears in the chart, ordered by group id.
// Labels wider than maxLabel cells are truncated.
func Legend(data models.UsageChartData, maxLabel int) []LegendItem {
	byGroup := make(map[string]LegendItem)
	for _, b := range data.Buckets {
		for _, it := range b.Items {
			if _, ok := byGroup[it.GroupID]; ok {
				continue
			}
			label := it.AccountName + " / " + it.ResourceName
			byGroup[it.GroupID] = LegendItem{
				Label: ansi.Truncate(label, maxLabel, "…"),
				Color: lipgloss.Color(it.Color),
			}
		}
	}

	groups := make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	slices.Sort(groups)

	items := make([]LegendItem, len(groups))
	for i, g := range groups {
		items[i] = byGroup[g]
	}
	return items
}

// RenderLegend creates a chart legend, one entry per line.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "\n")
}

func labelLayout(data models.UsageChartData) string {
	switch {
	case data.Interval >= 24*60:
		return "Jan 02"
	case data.DisplayMinutes > 24*60:
		return "Mon 15:04"
	default:
		return "15:04"
	}
}

func formatUsage(v float64) string {
	if v == 0 {
		return styles.HelpStyle.Render("0")
	}
	return fmt.Sprintf("%.1f", v)
}

func formatMinutes(m int64) string {
	d := time.Duration(m) * time.Minute
	switch {
	case m%(24*60) == 0:
		return fmt.Sprintf("%dd", m/(24*60))
	case m%60 == 0:
		return fmt.Sprintf("%dh", m/60)
	default:
		return strings.TrimSuffix(d.String(), "0s")
	}
}
