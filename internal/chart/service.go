package chart

import (
	"time"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

// HistorySource provides retained snapshots, oldest first.
type HistorySource interface {
	Load(now time.Time) []models.QuotaSnapshot
}

// AccountLister provides the live accounts used for name resolution.
type AccountLister interface {
	List() []models.Account
}

// Recorder counts chart computations.
type Recorder interface {
	RecordChartRequest()
}

// Service computes charts from the history store for callers.
type Service struct {
	history    HistorySource
	accounts   AccountLister
	metrics    Recorder
	now        func() time.Time
	thresholds Thresholds
}

// NewService creates a chart service. accounts and metrics may be nil.
func NewService(history HistorySource, accounts AccountLister, metrics Recorder, th Thresholds) *Service {
	return &Service{
		history:    history,
		accounts:   accounts,
		metrics:    metrics,
		now:        time.Now,
		thresholds: th,
	}
}

// Chart returns the chart for the window ending now. Bad parameters are
// clamped and an unreadable history yields an empty chart, so it never fails.
func (s *Service) Chart(displayMinutes, bucketMinutes int64) models.UsageChartData {
	if s.metrics != nil {
		s.metrics.RecordChartRequest()
	}

	now := s.now()
	var accounts []models.Account
	if s.accounts != nil {
		accounts = s.accounts.List()
	}

	params := Params{DisplayMinutes: displayMinutes, BucketMinutes: bucketMinutes}
	return Compute(s.history.Load(now), accounts, params, now, s.thresholds)
}

// History returns the retained raw snapshots.
func (s *Service) History() []models.QuotaSnapshot {
	return s.history.Load(s.now())
}
