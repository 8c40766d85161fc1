package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

var (
	// ErrNoAccounts is returned by a cycle that found nothing to sample.
	ErrNoAccounts = errors.New("no accounts configured")
	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("scheduler dependency missing")
)

// Cycle triggers, also used as metric labels.
const (
	TriggerInitial = "initial"
	TriggerTick    = "tick"
	TriggerFull    = "full"
	TriggerReset   = "reset"
)

// Directory is the account store. List returns copies; Save replaces the list.
type Directory interface {
	List() []models.Account
	Save(list []models.Account) error
}

// Source fetches the current quota of one account.
type Source interface {
	Fetch(ctx context.Context, acc models.Account) (*models.AccountQuota, error)
}

// Reconciler updates which account is active before each cycle.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// Recorder is the snapshot history.
type Recorder interface {
	Record(accounts []models.Account, now time.Time) error
	MergeExternal(bufferPath string, now time.Time) (int, error)
}

// Notifier observes the accounts after every cycle that fetched something.
type Notifier interface {
	Observe(accounts []models.Account)
}

// Metrics receives cycle statistics.
type Metrics interface {
	RecordCycle(trigger string)
	RecordFetch(outcome string)
	RecordSnapshot()
	RecordPersistError(store string)
	RecordMerged(count int)
	SetRemaining(accountID, resource string, percent float64)
}

// Clock abstracts time for tests. Sleep returns early with the context error
// when ctx is done.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config wires a Scheduler. Directory, Source and Recorder are required.
type Config struct {
	Directory  Directory
	Source     Source
	Recorder   Recorder
	Reconciler Reconciler
	Notifier   Notifier
	Metrics    Metrics
	Clock      Clock
	// BufferPath is the external snapshot buffer merged before each cycle.
	BufferPath string
	Tuning     Tuning
}

// Scheduler runs the sampling loop.
type Scheduler struct {
	dir        Directory
	source     Source
	recorder   Recorder
	reconciler Reconciler
	notifier   Notifier
	metrics    Metrics
	clock      Clock
	bufferPath string
	tuning     Tuning
}

// cycleState is the loop's only mutable state, owned by Run.
type cycleState struct {
	wake           time.Time
	resetTriggered bool
	force          bool
	cycles         int
}

// CycleResult summarizes one cycle.
type CycleResult struct {
	Trigger  string
	Fetched  int
	Failed   int
	Skipped  int
	Merged   int
	Recorded bool
}

// New creates a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Directory == nil || cfg.Source == nil || cfg.Recorder == nil {
		return nil, ErrMissingDependency
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	return &Scheduler{
		dir:        cfg.Directory,
		source:     cfg.Source,
		recorder:   cfg.Recorder,
		reconciler: cfg.Reconciler,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		clock:      cfg.Clock,
		bufferPath: cfg.BufferPath,
		tuning:     cfg.Tuning.normalized(),
	}, nil
}

// Tuning returns the effective timing constants.
func (s *Scheduler) Tuning() Tuning {
	return s.tuning
}

// Run fetches every account and records a snapshot, then loops until ctx is
// done. Cycle errors are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	st := &cycleState{wake: s.clock.Now(), force: true}
	s.runLogged(ctx, st)

	for {
		if ctx.Err() != nil {
			return nil
		}

		now := s.clock.Now()
		wake, resetTriggered := NextWake(now, Resets(s.dir.List()), s.tuning)
		sleep := max(wake.Sub(now), s.tuning.MinSleep)

		logger.Debug("sleeping", "until", wake, "reset_triggered", resetTriggered)
		if err := s.clock.Sleep(ctx, sleep); err != nil {
			return nil
		}

		st.wake = s.clock.Now()
		st.resetTriggered = resetTriggered
		st.force = false

		if !ShouldAct(st.wake, st.resetTriggered, s.tuning) {
			logger.Debug("spurious wake, skipping", "at", st.wake)
			continue
		}
		s.runLogged(ctx, st)
	}
}

// RunOnce runs one forced cycle: every account is fetched and a snapshot
// recorded regardless of the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) (CycleResult, error) {
	return s.runCycle(ctx, &cycleState{wake: s.clock.Now(), force: true})
}

// RunCycle runs the cycle for a wake at the given instant.
func (s *Scheduler) RunCycle(ctx context.Context, wake time.Time, resetTriggered bool) (CycleResult, error) {
	return s.runCycle(ctx, &cycleState{wake: wake, resetTriggered: resetTriggered})
}

func (s *Scheduler) runLogged(ctx context.Context, st *cycleState) {
	result, err := s.runCycle(ctx, st)
	if err != nil {
		logger.Warn("sampling cycle failed", "trigger", result.Trigger, "error", err)
		return
	}
	logger.Info("sampling cycle done",
		"trigger", result.Trigger,
		"fetched", result.Fetched,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"recorded", result.Recorded,
	)
}

func (s *Scheduler) runCycle(ctx context.Context, st *cycleState) (CycleResult, error) {
	st.cycles++
	fullTick := st.force || IsFullTick(st.wake, s.tuning)
	result := CycleResult{Trigger: trigger(st, fullTick)}
	if s.metrics != nil {
		s.metrics.RecordCycle(result.Trigger)
	}

	result.Merged = s.mergeBuffer()

	if s.reconciler != nil {
		if err := s.reconciler.Reconcile(ctx); err != nil {
			logger.Warn("identity reconciliation failed", "error", err)
		}
	}

	accounts := s.dir.List()
	if len(accounts) == 0 {
		return result, ErrNoAccounts
	}

	fetched := make(map[string]*models.AccountQuota)
	for i := range accounts {
		acc := &accounts[i]
		if !fullTick && !ShouldFetch(acc, st.wake, false, s.tuning) {
			result.Skipped++
			s.recordFetch("skipped")
			continue
		}

		q, err := s.fetch(ctx, acc)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			s.recordFetch("failure")
			logger.Warn("quota fetch failed", "account", acc.ID, "error", err)
			continue
		}
		result.Fetched++
		s.recordFetch("success")
		fetched[acc.ID] = q
	}

	var persistErr error
	if len(fetched) > 0 {
		accounts, persistErr = s.saveQuotas(fetched)
		if persistErr != nil {
			s.recordPersistError("accounts")
		}
		s.observe(accounts)
	}

	now := s.clock.Now()
	if fullTick || ShouldRecord(now, accounts, false, s.tuning) {
		if err := s.recorder.Record(accounts, now); err != nil {
			s.recordPersistError("history")
			return result, errors.Join(persistErr, fmt.Errorf("failed to record snapshot: %w", err))
		}
		result.Recorded = true
		if s.metrics != nil {
			s.metrics.RecordSnapshot()
		}
	}

	return result, persistErr
}

func (s *Scheduler) fetch(ctx context.Context, acc *models.Account) (*models.AccountQuota, error) {
	ctx, cancel := context.WithTimeout(ctx, s.tuning.FetchTimeout)
	defer cancel()

	q, err := s.source.Fetch(ctx, *acc)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errors.New("source returned no quota")
	}
	return q, nil
}

// saveQuotas writes fetched quota into the latest account list, so that
// identity changes made meanwhile are kept. Accounts removed meanwhile are
// dropped from the update.
func (s *Scheduler) saveQuotas(fetched map[string]*models.AccountQuota) ([]models.Account, error) {
	latest := s.dir.List()
	for i := range latest {
		if q, ok := fetched[latest[i].ID]; ok {
			latest[i].Quota = q
		}
	}

	if err := s.dir.Save(latest); err != nil {
		return latest, fmt.Errorf("failed to save accounts: %w", err)
	}
	return latest, nil
}

func (s *Scheduler) mergeBuffer() int {
	if s.bufferPath == "" {
		return 0
	}

	added, err := s.recorder.MergeExternal(s.bufferPath, s.clock.Now())
	if err != nil {
		logger.Warn("failed to merge external buffer", "path", s.bufferPath, "error", err)
		return 0
	}
	if added > 0 {
		logger.Info("merged external snapshots", "added", added)
		if s.metrics != nil {
			s.metrics.RecordMerged(added)
		}
	}
	return added
}

func (s *Scheduler) observe(accounts []models.Account) {
	if s.notifier != nil {
		s.notifier.Observe(accounts)
	}
	if s.metrics == nil {
		return
	}
	for i := range accounts {
		if accounts[i].Quota == nil {
			continue
		}
		for _, rq := range accounts[i].Quota.Resources {
			s.metrics.SetRemaining(accounts[i].ID, rq.Name, rq.Percentage)
		}
	}
}

func (s *Scheduler) recordFetch(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordFetch(outcome)
	}
}

func (s *Scheduler) recordPersistError(store string) {
	if s.metrics != nil {
		s.metrics.RecordPersistError(store)
	}
}

func trigger(st *cycleState, fullTick bool) string {
	switch {
	case st.force:
		return TriggerInitial
	case fullTick:
		return TriggerFull
	case st.resetTriggered:
		return TriggerReset
	default:
		return TriggerTick
	}
}
