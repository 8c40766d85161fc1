// Package scheduler drives periodic quota sampling: a wall-clock aligned base
// tick, a slower full refresh, and extra wakes around predicted resets.
package scheduler

import (
	"time"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

// Tuning holds the empirically tuned timing constants of the sampler.
type Tuning struct {
	// Tick is the base cadence, aligned to wall-clock minutes.
	Tick time.Duration
	// FullRefresh is the cadence at which every account is fetched and a
	// snapshot recorded.
	FullRefresh time.Duration
	// PreResetOffset is how long before a reset the extra wake happens.
	PreResetOffset time.Duration
	// NearResetWindow: an account whose reset is this close is fetched.
	NearResetWindow time.Duration
	// RecordWindowMin and RecordWindowMax bound the "last reading before
	// reset" window that forces a snapshot.
	RecordWindowMin time.Duration
	RecordWindowMax time.Duration
	// MinSleep keeps the loop from spinning.
	MinSleep time.Duration
	// FetchTimeout bounds a single account fetch.
	FetchTimeout time.Duration
}

// DefaultTuning returns the default timing constants.
func DefaultTuning() Tuning {
	return Tuning{
		Tick:            5 * time.Minute,
		FullRefresh:     30 * time.Minute,
		PreResetOffset:  30 * time.Second,
		NearResetWindow: 45 * time.Second,
		RecordWindowMin: 20 * time.Second,
		RecordWindowMax: 35 * time.Second,
		MinSleep:        time.Second,
		FetchTimeout:    5 * time.Second,
	}
}

// normalized fills zero fields from the defaults and keeps the minute based
// cadences at whole minutes.
func (t Tuning) normalized() Tuning {
	d := DefaultTuning()
	if t.Tick < time.Minute {
		t.Tick = d.Tick
	}
	if t.FullRefresh < time.Minute {
		t.FullRefresh = d.FullRefresh
	}
	if t.PreResetOffset <= 0 {
		t.PreResetOffset = d.PreResetOffset
	}
	if t.NearResetWindow <= 0 {
		t.NearResetWindow = d.NearResetWindow
	}
	if t.RecordWindowMin <= 0 {
		t.RecordWindowMin = d.RecordWindowMin
	}
	if t.RecordWindowMax <= 0 {
		t.RecordWindowMax = d.RecordWindowMax
	}
	if t.MinSleep <= 0 {
		t.MinSleep = d.MinSleep
	}
	if t.FetchTimeout <= 0 {
		t.FetchTimeout = d.FetchTimeout
	}
	return t
}

func (t Tuning) tickMinutes() int {
	return int(t.Tick / time.Minute)
}

func (t Tuning) fullMinutes() int {
	return int(t.FullRefresh / time.Minute)
}

// NextTick returns the first wall-clock instant after now whose minute is a
// multiple of the tick, in now's location.
func NextTick(now time.Time, tuning Tuning) time.Time {
	step := tuning.normalized().tickMinutes()
	base := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())
	return base.Add(time.Duration(step-now.Minute()%step) * time.Minute)
}

// NextWake returns when the loop should wake next. It starts from the next
// tick and pulls earlier to any pre-reset or exact reset instant that falls
// strictly between now and that tick. The bool reports whether the wake was
// pulled earlier, which marks the cycle as reset-triggered.
func NextWake(now time.Time, resets []time.Time, tuning Tuning) (time.Time, bool) {
	tuning = tuning.normalized()
	tick := NextTick(now, tuning)
	wake := tick

	for _, reset := range resets {
		for _, candidate := range []time.Time{reset.Add(-tuning.PreResetOffset), reset} {
			if candidate.After(now) && candidate.Before(wake) {
				wake = candidate
			}
		}
	}

	return wake, wake.Before(tick)
}

// ShouldAct reports whether a wake at the given instant runs a cycle: on a
// tick minute, or whenever the wake was reset-triggered.
func ShouldAct(wake time.Time, resetTriggered bool, tuning Tuning) bool {
	return resetTriggered || wake.Minute()%tuning.normalized().tickMinutes() == 0
}

// IsFullTick reports whether t falls on a full refresh minute.
func IsFullTick(t time.Time, tuning Tuning) bool {
	return t.Minute()%tuning.normalized().fullMinutes() == 0
}

// ShouldFetch decides whether acc is fetched this cycle: the active account,
// every account on a full tick, accounts never sampled, and accounts with a
// reset within the near-reset window of now.
func ShouldFetch(acc *models.Account, now time.Time, fullTick bool, tuning Tuning) bool {
	if acc.IsActive || fullTick || !acc.HasQuota() {
		return true
	}

	window := tuning.normalized().NearResetWindow
	for _, reset := range accountResets(acc) {
		if d := reset.Sub(now); d >= -window && d <= window {
			return true
		}
	}
	return false
}

// ShouldRecord decides whether the cycle appends a snapshot: on a full tick,
// or when any reset is inside the record window ahead of now.
func ShouldRecord(now time.Time, accounts []models.Account, fullTick bool, tuning Tuning) bool {
	if fullTick {
		return true
	}

	tuning = tuning.normalized()
	for _, reset := range Resets(accounts) {
		if d := reset.Sub(now); d >= tuning.RecordWindowMin && d <= tuning.RecordWindowMax {
			return true
		}
	}
	return false
}

// Resets returns the predicted reset instants of every resource.
func Resets(accounts []models.Account) []time.Time {
	var resets []time.Time
	for i := range accounts {
		resets = append(resets, accountResets(&accounts[i])...)
	}
	return resets
}

func accountResets(acc *models.Account) []time.Time {
	if acc.Quota == nil {
		return nil
	}
	resets := make([]time.Time, 0, len(acc.Quota.Resources))
	for i := range acc.Quota.Resources {
		if t := acc.Quota.Resources[i].ResetTime(); !t.IsZero() {
			resets = append(resets, t)
		}
	}
	return resets
}
