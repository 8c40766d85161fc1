package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

func TestProjectionBadge(t *testing.T) {
	tests := []struct {
		status models.ProjectionStatus
		want   string
	}{
		{models.ProjectionCritical, "CRITICAL"},
		{models.ProjectionWarning, "WARNING"},
		{models.ProjectionSafe, "SAFE"},
		{models.ProjectionUnknown, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got, _ := ProjectionBadge(tt.status); !strings.Contains(got, tt.want) {
			t.Errorf("ProjectionBadge(%s) = %q", tt.status, got)
		}
	}
}

func TestRenderProjections(t *testing.T) {
	if got := ansi.Strip(RenderProjections(nil, 80)); !strings.Contains(got, "No history") {
		t.Errorf("empty render = %q", got)
	}

	projs := []models.EntityProjection{
		{
			AccountName: "Work", ResourceName: "Claude", Status: models.ProjectionWarning,
			CurrentPercent: 30, CycleRate: 20, HoursLeft: 1.5, WillDepleteBefore: true,
		},
		{
			AccountName: "Home", ResourceName: "Gemini Pro", Status: models.ProjectionSafe,
			CurrentPercent: 90, HistoricalRate: 2, HoursLeft: 45, TimeUntilReset: 2 * time.Hour,
		},
	}
	got := ansi.Strip(RenderProjections(projs, 100))
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), got)
	}

	for _, want := range []string{"Work Claude", "20.0%/hr", "WARNING", "Depletes: 1.5h"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line 0 missing %q: %q", want, lines[0])
		}
	}
	for _, want := range []string{"Home Gemini Pro", "2.0%/hr", "SAFE", "2h00m"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("line 1 missing %q: %q", want, lines[1])
		}
	}
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0.5, "30m"},
		{1.5, "1.5h"},
		{48, "2.0d"},
	}
	for _, tt := range tests {
		if got := formatHours(tt.hours); got != tt.want {
			t.Errorf("formatHours(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}
