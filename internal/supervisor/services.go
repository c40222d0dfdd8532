package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/models"
)

// HTTPServer is the part of *http.Server the HTTP service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService serves HTTP until its context is cancelled, then shuts down
// gracefully.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server. A non-positive timeout means 10s.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// Database is the part of db.Manager the health monitor drives.
type Database interface {
	Ping(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// HealthMonitor pings the database every interval and reconnects when the
// ping fails.
type HealthMonitor struct {
	db       Database
	interval time.Duration
}

// NewHealthMonitor returns a monitor. A non-positive interval means 30s.
func NewHealthMonitor(db Database, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{db: db, interval: interval}
}

// Serve implements suture.Service.
func (m *HealthMonitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *HealthMonitor) check(ctx context.Context) {
	err := m.db.Ping(ctx)
	if err == nil {
		return
	}
	log.WithError(err).Warn("Database health check failed")
	if err := m.db.Reconnect(ctx); err != nil {
		log.WithError(err).Error("Database reconnect failed")
		return
	}
	log.Info("Database connection restored")
}

func (m *HealthMonitor) String() string { return "db-health-monitor" }

// Sweeper is the part of ecochallenge.Service the sweep service drives.
type Sweeper interface {
	Sweep(ctx context.Context) (models.SweepResult, error)
}

// SweepService runs the eco-challenge sweep once at start and then every
// interval. Sweep errors are logged and retried on the next tick.
type SweepService struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewSweepService returns a SweepService. A non-positive interval means 1h.
func NewSweepService(sweeper Sweeper, interval time.Duration) *SweepService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweepService{sweeper: sweeper, interval: interval}
}

// Serve implements suture.Service.
func (s *SweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.sweeper.Sweep(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("Eco-challenge sweep failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SweepService) String() string { return "ecochallenge-sweeper" }
