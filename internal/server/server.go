// Package server exposes the chart and raw history over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/metrics"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

// Chart window defaults used when a query omits or garbles a parameter.
const (
	DefaultDisplayMinutes = 24 * 60
	DefaultBucketMinutes  = 30
)

const shutdownTimeout = 5 * time.Second

// ChartProvider computes charts and exposes the raw history.
type ChartProvider interface {
	Chart(displayMinutes, bucketMinutes int64) models.UsageChartData
	History() []models.QuotaSnapshot
}

// ProjectionProvider estimates depletion per entity.
type ProjectionProvider interface {
	Projections() []models.EntityProjection
}

// Server is the HTTP API server.
type Server struct {
	router         *gin.Engine
	charts         ChartProvider
	projections    ProjectionProvider
	metrics        *metrics.Metrics
	httpServer     *http.Server
	displayDefault int64
	bucketDefault  int64
}

// Option customizes a Server.
type Option func(*Server)

// WithChartDefaults overrides the window used when a query omits it.
func WithChartDefaults(displayMinutes, bucketMinutes int64) Option {
	return func(s *Server) {
		if displayMinutes > 0 {
			s.displayDefault = displayMinutes
		}
		if bucketMinutes > 0 {
			s.bucketDefault = bucketMinutes
		}
	}
}

// WithProjections serves /api/projections from p.
func WithProjections(p ProjectionProvider) Option {
	return func(s *Server) {
		s.projections = p
	}
}

// New creates a server. m may be nil, in which case /metrics is not served.
func New(charts ChartProvider, m *metrics.Metrics, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:         gin.New(),
		charts:         charts,
		metrics:        m,
		displayDefault: DefaultDisplayMinutes,
		bucketDefault:  DefaultBucketMinutes,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.HandleMethodNotAllowed = true
	s.router.Use(gin.Recovery())
	if m != nil {
		s.router.Use(metrics.Middleware(m))
	}

	s.setupRoutes()
	return s
}

// Router returns the gin router for testing purposes.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/chart", s.handleChart)
		api.GET("/history", s.handleHistory)
		if s.projections != nil {
			api.GET("/projections", s.handleProjections)
		}
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleChart(c *gin.Context) {
	display := queryInt(c, "display_minutes", s.displayDefault)
	bucket := queryInt(c, "bucket_minutes", s.bucketDefault)
	c.JSON(http.StatusOK, s.charts.Chart(display, bucket))
}

func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.charts.History())
}

func (s *Server) handleProjections(c *gin.Context) {
	c.JSON(http.StatusOK, s.projections.Projections())
}

// queryInt reads an integer query parameter. Missing or non-numeric values
// fall back to def; range problems are left to the chart's own clamping.
func queryInt(c *gin.Context, name string, def int64) int64 {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}
