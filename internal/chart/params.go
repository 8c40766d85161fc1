// Package chart turns the irregular snapshot history into a fixed-resolution
// consumption chart aligned to wall-clock bucket boundaries.
package chart

import (
	"time"

	"github.com/j-veylop/antigravity-quota-history/internal/history"
)

// MaxDisplayMinutes is the widest window worth drawing: nothing older is retained.
const MaxDisplayMinutes = int64(history.Retention / time.Minute)

// Params selects the chart window and resolution.
// A BucketMinutes that does not divide DisplayMinutes truncates the bucket
// count by integer division; buckets still start at the window start, so the
// remainder at the newest end of the window is not drawn.
// DisplayMinutes is capped at MaxDisplayMinutes, the retention window: older
// buckets could only ever be empty, and the cap bounds the bucket count. The
// returned UsageChartData reports the effective window.
type Params struct {
	DisplayMinutes int64
	BucketMinutes  int64
}

// Normalize clamps misuse to the nearest sane value instead of failing.
func (p Params) Normalize() Params {
	if p.DisplayMinutes < 1 {
		p.DisplayMinutes = 1
	}
	if p.DisplayMinutes > MaxDisplayMinutes {
		p.DisplayMinutes = MaxDisplayMinutes
	}
	if p.BucketMinutes < 1 {
		p.BucketMinutes = 1
	}
	if p.BucketMinutes > p.DisplayMinutes {
		p.BucketMinutes = p.DisplayMinutes
	}
	return p
}

// BucketCount is the number of buckets the window holds.
func (p Params) BucketCount() int {
	return int(p.DisplayMinutes / p.BucketMinutes)
}

// Thresholds are the empirically tuned heuristics of the bucketizer.
type Thresholds struct {
	// ImplicitFullPercent is the remaining percentage treated as "untouched".
	ImplicitFullPercent float64
	// ImplicitResetHorizon: a full quota whose reset is closer than this has
	// already started its cycle, so it is in use even if the number has not moved.
	ImplicitResetHorizon time.Duration
	// SmoothLow and SmoothHigh gate the one-bucket lag correction.
	SmoothLow  float64
	SmoothHigh float64
	// NoiseFloor drops amounts too small to draw.
	NoiseFloor float64
	// MinMaxUsage keeps the chart scale away from zero.
	MinMaxUsage float64
	// DisableImplicitUse turns the lag correction off entirely.
	DisableImplicitUse bool
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ImplicitFullPercent:  99.9,
		ImplicitResetHorizon: 299 * time.Minute,
		SmoothLow:            0.5,
		SmoothHigh:           1.0,
		NoiseFloor:           0.001,
		MinMaxUsage:          1.0,
	}
}
