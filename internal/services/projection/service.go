// Package projection estimates, per entity, whether the remaining quota
// lasts until the next reset at the observed consumption rate.
package projection

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/antigravity-quota-history/internal/chart"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

const (
	lowConfThreshold = 6
	medConfThreshold = 24
)

// HistorySource provides retained snapshots, oldest first.
type HistorySource interface {
	Load(now time.Time) []models.QuotaSnapshot
}

// AccountLister provides the live accounts.
type AccountLister interface {
	List() []models.Account
}

// Service computes projections from the history store.
type Service struct {
	history  HistorySource
	accounts AccountLister
	now      func() time.Time
}

// New creates a projection service. accounts may be nil.
func New(history HistorySource, accounts AccountLister) *Service {
	return &Service{history: history, accounts: accounts, now: time.Now}
}

// Projections returns one projection per entity in the latest snapshot.
func (s *Service) Projections() []models.EntityProjection {
	now := s.now()
	var accounts []models.Account
	if s.accounts != nil {
		accounts = s.accounts.List()
	}
	return Compute(s.history.Load(now), accounts, now)
}

// rate accumulates consumption over observed time.
type rate struct {
	consumed float64
	seconds  int64
	pairs    int
}

func (r rate) perHour() float64 {
	if r.seconds <= 0 {
		return 0
	}
	return r.consumed / (float64(r.seconds) / 3600)
}

// Compute projects every entity of the newest snapshot. The cycle rate only
// uses readings taken since the entity's current reset instant was first
// reported; the historical rate uses the whole history. Output is ordered by
// group id.
func Compute(points []models.QuotaSnapshot, accounts []models.Account, now time.Time) []models.EntityProjection {
	if len(points) == 0 {
		return []models.EntityProjection{}
	}
	latest := &points[len(points)-1]

	cycle := make(map[string]*rate)
	all := make(map[string]*rate)
	for i := 0; i+1 < len(points); i++ {
		p1, p2 := &points[i], &points[i+1]
		dt := p2.Timestamp - p1.Timestamp
		if dt <= 0 {
			continue
		}
		for key, val2 := range p2.Usage {
			val1, ok := p1.Usage[key]
			if !ok {
				continue
			}
			r1, r2 := chart.LookupReset(p1, key), chart.LookupReset(p2, key)
			consumed := chart.Consumed(val1, val2, r1, r2)

			accumulate(all, key, consumed, dt)
			if sameCycle(r1, r2) && sameCycle(r2, chart.LookupReset(latest, key)) {
				accumulate(cycle, key, consumed, dt)
			}
		}
	}

	names := chart.ResolveNames(points, accounts)

	keys := lo.Keys(latest.Usage)
	slices.Sort(keys)

	out := make([]models.EntityProjection, 0, len(keys))
	for _, key := range keys {
		ek, err := models.ParseEntityKey(key)
		if err != nil {
			continue
		}
		name := lo.CoalesceOrEmpty(names[ek.AccountID], chart.UnknownAccount)

		var reset time.Time
		if r := chart.LookupReset(latest, key); r != nil {
			reset = time.Unix(*r, 0)
		}

		proj := project(latest.Usage[key], deref(cycle[key]), deref(all[key]), reset, now)
		proj.GroupID = key
		proj.AccountName = name
		proj.ResourceName = ek.Resource
		out = append(out, proj)
	}
	return out
}

func project(current float64, cycle, all rate, reset, now time.Time) models.EntityProjection {
	proj := models.EntityProjection{
		CurrentPercent: current,
		CycleRate:      cycle.perHour(),
		HistoricalRate: all.perHour(),
		ResetTime:      reset,
		DataPoints:     cycle.pairs,
		Status:         models.ProjectionUnknown,
		HoursLeft:      -1,
	}

	if !reset.IsZero() {
		proj.TimeUntilReset = max(reset.Sub(now), 0)
	}

	switch {
	case cycle.pairs < lowConfThreshold:
		proj.Confidence = "low"
	case cycle.pairs < medConfThreshold:
		proj.Confidence = "medium"
	default:
		proj.Confidence = "high"
	}

	effectiveRate := proj.CycleRate
	if effectiveRate <= 0 && proj.HistoricalRate > 0 {
		effectiveRate = proj.HistoricalRate
	}
	if effectiveRate <= 0 {
		if !reset.IsZero() {
			proj.Status = models.ProjectionSafe
		}
		return proj
	}

	proj.HoursLeft = current / effectiveRate
	if left := proj.HoursLeft * float64(time.Hour); left < math.MaxInt64 {
		proj.DepleteAt = now.Add(time.Duration(left))
	}

	if reset.IsZero() {
		return proj
	}

	proj.WillDepleteBefore = current < effectiveRate*proj.TimeUntilReset.Hours()
	switch {
	case !proj.WillDepleteBefore:
		proj.Status = models.ProjectionSafe
	case proj.HoursLeft < 1:
		proj.Status = models.ProjectionCritical
	default:
		proj.Status = models.ProjectionWarning
	}
	return proj
}

func accumulate(m map[string]*rate, key string, consumed float64, dt int64) {
	r, ok := m[key]
	if !ok {
		r = &rate{}
		m[key] = r
	}
	r.consumed += consumed
	r.seconds += dt
	r.pairs++
}

// sameCycle reports whether two readings share a reset instant. Unknown
// instants never match.
func sameCycle(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}

func deref(r *rate) rate {
	if r == nil {
		return rate{}
	}
	return *r
}
