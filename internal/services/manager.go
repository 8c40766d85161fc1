// Package services wires the account directory, quota source, history and
// sampler together.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/antigravity-quota-history/internal/chart"
	"github.com/j-veylop/antigravity-quota-history/internal/config"
	"github.com/j-veylop/antigravity-quota-history/internal/db"
	"github.com/j-veylop/antigravity-quota-history/internal/history"
	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/metrics"
	"github.com/j-veylop/antigravity-quota-history/internal/notify"
	"github.com/j-veylop/antigravity-quota-history/internal/reconcile"
	"github.com/j-veylop/antigravity-quota-history/internal/scheduler"
	"github.com/j-veylop/antigravity-quota-history/internal/server"
	"github.com/j-veylop/antigravity-quota-history/internal/services/accounts"
	"github.com/j-veylop/antigravity-quota-history/internal/services/projection"
	"github.com/j-veylop/antigravity-quota-history/internal/services/quota"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "agq"

// Manager owns every long-lived service.
type Manager struct {
	cfg         *config.Config
	accounts    *accounts.Service
	quota       *quota.Service
	history     *history.Store
	charts      *chart.Service
	projections *projection.Service
	metrics     *metrics.Metrics
	reconciler  *reconcile.Reconciler
	scheduler   *scheduler.Scheduler
	now         func() time.Time
	stopChan    chan struct{}
	closeOnce   sync.Once
}

// NewManager creates every service from cfg.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		cfg:      cfg,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	var err error
	m.accounts, err = accounts.New(cfg.AccountsPath)
	if err != nil {
		return nil, err
	}

	quotaConfig := quota.DefaultConfig()
	quotaConfig.ClientID = cfg.GoogleClientID
	quotaConfig.ClientSecret = cfg.GoogleClientSecret
	quotaConfig.Timeout = cfg.FetchTimeout
	m.quota = quota.New(quotaConfig)

	m.history = history.New(cfg.HistoryPath)
	m.metrics = metrics.NewMetrics(MetricsNamespace)

	thresholds := chart.DefaultThresholds()
	if cfg.ImplicitUseHorizon > 0 {
		thresholds.ImplicitResetHorizon = cfg.ImplicitUseHorizon
	}
	m.charts = chart.NewService(m.history, m.accounts, m.metrics, thresholds)
	m.projections = projection.New(m.history, m.accounts)

	schedCfg := scheduler.Config{
		Directory:  m.accounts,
		Source:     m.quota,
		Recorder:   m.history,
		Metrics:    m.metrics,
		BufferPath: cfg.BufferPath,
		Tuning: scheduler.Tuning{
			PreResetOffset:  cfg.PreResetOffset,
			NearResetWindow: cfg.NearResetWindow,
			FetchTimeout:    cfg.FetchTimeout,
		},
	}
	if cfg.IDEStateDBPath != "" {
		m.reconciler = reconcile.New(db.StateFile(cfg.IDEStateDBPath), m.quota, m.accounts)
		schedCfg.Reconciler = m.reconciler
	}
	if cfg.Notifications {
		schedCfg.Notifier = notify.New()
	}

	m.scheduler, err = scheduler.New(schedCfg)
	if err != nil {
		_ = m.accounts.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	m.accounts.OnChange(func() {
		logger.Info("accounts file changed, reloaded", "count", m.accounts.Count())
	})
	go m.routeEvents()

	return m, nil
}

// routeEvents logs account directory errors.
func (m *Manager) routeEvents() {
	events := m.accounts.Events()
	for {
		select {
		case event := <-events:
			switch event.Type {
			case accounts.EventError:
				logger.Warn("accounts service error", "error", event.Error)
			}
		case <-m.stopChan:
			return
		}
	}
}

// Run starts the sampler and, when addr is set, the HTTP server. It returns
// when ctx is done or either component fails.
func (m *Manager) Run(ctx context.Context, addr string) error {
	if err := m.cfg.RequireCredentials(); err != nil {
		logger.Warn("quota fetches for refresh-token accounts will fail", "error", err)
	}

	tuning := m.scheduler.Tuning()
	logger.Debug("sampler tuning",
		"pre_reset_offset", tuning.PreResetOffset,
		"near_reset_window", tuning.NearResetWindow,
		"fetch_timeout", tuning.FetchTimeout,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.scheduler.Run(ctx)
	})
	if addr != "" {
		srv := server.New(m.charts, m.metrics,
			server.WithChartDefaults(m.cfg.ChartDisplayMinutes, m.cfg.ChartBucketMinutes),
			server.WithProjections(m.projections))
		g.Go(func() error {
			return srv.Run(ctx, addr)
		})
	}
	return g.Wait()
}

// RunOnce runs one forced sampling cycle.
func (m *Manager) RunOnce(ctx context.Context) (scheduler.CycleResult, error) {
	return m.scheduler.RunOnce(ctx)
}

// Merge folds the external buffer at path into the history.
func (m *Manager) Merge(path string) (int, error) {
	if path == "" {
		path = m.cfg.BufferPath
	}
	return m.history.MergeExternal(path, m.now())
}

// Accounts returns the account directory.
func (m *Manager) Accounts() *accounts.Service {
	return m.accounts
}

// Quota returns the quota service.
func (m *Manager) Quota() *quota.Service {
	return m.quota
}

// History returns the snapshot store.
func (m *Manager) History() *history.Store {
	return m.history
}

// Charts returns the chart service.
func (m *Manager) Charts() *chart.Service {
	return m.charts
}

// Projections returns the depletion projection service.
func (m *Manager) Projections() *projection.Service {
	return m.projections
}

// Metrics returns the metrics registry.
func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

// Scheduler returns the sampler.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// Reconciler returns the identity reconciler, nil without an IDE state path.
func (m *Manager) Reconciler() *reconcile.Reconciler {
	return m.reconciler
}

// Close stops the manager and all its services.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopChan)
		err = m.accounts.Close()
	})
	return err
}
