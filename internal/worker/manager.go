package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Constants for worker configuration
const (
	DefaultPollInterval = 30 * time.Second
	RefreshTimeout      = 30 * time.Second
	refreshQueueSize    = 8
)

// Refresher re-reads token data from the ledger
type Refresher interface {
	RefreshInfo(ctx context.Context) error
}

// Manager orchestrates background workers for the token read model
type Manager struct {
	refresher Refresher
	interval  time.Duration
	logger    *zap.Logger

	monitor *Monitor

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewManager creates a new worker manager. A non-positive interval falls back
// to DefaultPollInterval.
func NewManager(refresher Refresher, interval time.Duration, logger *zap.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		refresher: refresher,
		interval:  interval,
		logger:    logger.Named("worker"),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.monitor = NewMonitor(m)

	return m
}

// Start starts all worker goroutines
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	m.logger.Info("Starting worker manager", zap.Duration("poll_interval", m.interval))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.monitor.Run(m.ctx)
	}()

	m.logger.Info("Worker manager started")
}

// RequestRefresh asks the monitor for an immediate token refresh. It never
// blocks; false means a refresh is already queued.
func (m *Manager) RequestRefresh() bool {
	return m.monitor.Request()
}

// Shutdown gracefully stops all workers
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.logger.Info("Shutting down worker manager")

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Workers stopped gracefully")
		return nil
	case <-time.After(timeout):
		m.logger.Warn("Worker shutdown timed out")
		return fmt.Errorf("worker shutdown timed out after %s", timeout)
	}
}
