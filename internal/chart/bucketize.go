package chart

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

// Resource colours used by the chart.
const (
	ColorPro   = "#6366f1"
	ColorFlash = "#10b981"
	ColorOther = "#a855f7"
)

// UnknownAccount labels entities whose account can no longer be resolved.
const UnknownAccount = "Unknown"

// ResourceColor picks a stable colour from keywords in the resource name.
func ResourceColor(resource string) string {
	lower := strings.ToLower(resource)
	switch {
	case strings.Contains(lower, "pro"):
		return ColorPro
	case strings.Contains(lower, "flash"):
		return ColorFlash
	default:
		return ColorOther
	}
}

// Window returns the empty buckets covering the window that ends at the
// bucket boundary after now, oldest first.
func Window(now time.Time, params Params) []models.UsageBucket {
	params = params.Normalize()
	bucketSeconds := params.BucketMinutes * 60
	alignedEnd := (floorDiv(now.Unix(), bucketSeconds) + 1) * bucketSeconds
	start := alignedEnd - params.DisplayMinutes*60

	count := params.BucketCount()
	buckets := make([]models.UsageBucket, count)
	for i := range buckets {
		bStart := start + int64(i)*bucketSeconds
		buckets[i] = models.UsageBucket{
			StartTime: bStart,
			EndTime:   bStart + bucketSeconds,
			Items:     []models.BucketItem{},
		}
	}
	return buckets
}

// Consumed returns the quota used between two readings of one entity.
// r1 and r2 are the reported reset instants, nil when unknown. A change of
// reset instant means a reset happened in between, so everything missing
// from 100% was used after it.
func Consumed(val1, val2 float64, r1, r2 *int64) float64 {
	if r1 != nil && r2 != nil && *r1 != *r2 {
		return math.Max(0, 100-val2)
	}
	return math.Max(0, val1-val2)
}

// ImplicitUse reports whether a reading shows a full quota whose cycle has
// nonetheless started, meaning consumption happened but is not reflected yet.
func ImplicitUse(val float64, resetAt *int64, ts int64, th Thresholds) bool {
	if th.DisableImplicitUse || resetAt == nil || val < th.ImplicitFullPercent {
		return false
	}
	untilReset := *resetAt - ts
	return untilReset > 0 && untilReset < int64(th.ImplicitResetHorizon/time.Second)
}

// series is the per-bucket consumption of one entity.
type series struct {
	amounts  []float64
	implicit []bool
}

func newSeries(n int) *series {
	return &series{amounts: make([]float64, n), implicit: make([]bool, n)}
}

// distribute spreads consumed over the buckets in proportion to their
// overlap with [t1, t2).
func (s *series) distribute(buckets []models.UsageBucket, t1, t2 int64, consumed float64) {
	total := float64(t2 - t1)
	for i := range buckets {
		b := &buckets[i]
		overlap := min(t2, b.EndTime) - max(t1, b.StartTime)
		if overlap <= 0 {
			continue
		}
		s.amounts[i] += consumed * float64(overlap) / total
	}
}

// smooth moves half of a bucket back into the previous one when the previous
// bucket was in use but shows almost nothing: the "used now, recorded one
// bucket later" lag. It never reaches past the adjacent bucket.
func (s *series) smooth(th Thresholds) {
	for i := 0; i+1 < len(s.amounts); i++ {
		if !s.implicit[i] {
			continue
		}
		if s.amounts[i] < th.SmoothLow && s.amounts[i+1] > th.SmoothHigh {
			moved := s.amounts[i+1] / 2
			s.amounts[i] += moved
			s.amounts[i+1] -= moved
		}
	}
}

// Compute builds the chart for history at now. It is pure: the same inputs
// always give the same output and history is never modified.
func Compute(points []models.QuotaSnapshot, accounts []models.Account, params Params, now time.Time, th Thresholds) models.UsageChartData {
	params = params.Normalize()
	buckets := Window(now, params)
	bucketSeconds := params.BucketMinutes * 60

	var windowStart int64
	if len(buckets) > 0 {
		windowStart = buckets[0].StartTime
	}

	dist := make(map[string]*series)
	get := func(key string) *series {
		s, ok := dist[key]
		if !ok {
			s = newSeries(len(buckets))
			dist[key] = s
		}
		return s
	}

	for i := 0; i+1 < len(points); i++ {
		p1, p2 := &points[i], &points[i+1]
		t1, t2 := p1.Timestamp, p2.Timestamp
		if t2 <= t1 {
			continue
		}

		for _, key := range sortedKeys(p1.Usage) {
			val2, ok := p2.Usage[key]
			if !ok {
				continue
			}
			val1 := p1.Usage[key]
			r1 := LookupReset(p1, key)
			r2 := LookupReset(p2, key)

			consumed := Consumed(val1, val2, r1, r2)
			s := get(key)
			s.distribute(buckets, t1, t2, consumed)

			if ImplicitUse(val1, r1, t1, th) && t1 >= windowStart {
				idx := int((t1 - windowStart) / bucketSeconds)
				if idx < len(buckets) {
					s.implicit[idx] = true
				}
			}
		}
	}

	names := ResolveNames(points, accounts)

	for _, key := range sortedKeys(dist) {
		s := dist[key]
		s.smooth(th)

		ek, err := models.ParseEntityKey(key)
		if err != nil {
			continue
		}
		accountName, ok := names[ek.AccountID]
		if !ok {
			accountName = UnknownAccount
		}
		color := ResourceColor(ek.Resource)

		for idx, amount := range s.amounts {
			if amount <= th.NoiseFloor {
				continue
			}
			buckets[idx].Items = append(buckets[idx].Items, models.BucketItem{
				GroupID:      key,
				AccountName:  accountName,
				ResourceName: ek.Resource,
				Usage:        amount,
				Color:        color,
			})
		}
	}

	maxUsage := lo.Max(lo.Map(buckets, func(b models.UsageBucket, _ int) float64 {
		return b.Total()
	}))

	return models.UsageChartData{
		Buckets:        buckets,
		MaxUsage:       math.Max(maxUsage, th.MinMaxUsage),
		DisplayMinutes: params.DisplayMinutes,
		Interval:       params.BucketMinutes,
	}
}

// ResolveNames maps account ids to display names: live accounts first, then
// the earliest snapshot that recorded the account, so deleted accounts keep
// their names.
func ResolveNames(points []models.QuotaSnapshot, accounts []models.Account) map[string]string {
	names := make(map[string]string, len(accounts))
	for i := range accounts {
		names[accounts[i].ID] = accounts[i].Name()
	}
	for i := range points {
		for _, id := range sortedKeys(points[i].AccountNames) {
			if _, ok := names[id]; !ok {
				names[id] = points[i].AccountNames[id]
			}
		}
	}
	return names
}

// LookupReset returns the reset instant recorded for key, nil when unknown.
func LookupReset(p *models.QuotaSnapshot, key string) *int64 {
	if v, ok := p.ResetAt[key]; ok {
		return &v
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
