package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Monitor periodically refreshes token info and serves on-demand refreshes
type Monitor struct {
	manager *Manager
	logger  *zap.Logger

	// Pending on-demand refresh requests
	requests chan struct{}
}

// NewMonitor creates a new token monitor
func NewMonitor(manager *Manager) *Monitor {
	return &Monitor{
		manager:  manager,
		logger:   manager.logger.Named("monitor"),
		requests: make(chan struct{}, refreshQueueSize),
	}
}

// Run starts the monitor polling loop
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("Monitor started", zap.Duration("poll_interval", m.manager.interval))

	ticker := time.NewTicker(m.manager.interval)
	defer ticker.Stop()

	// Initial poll
	m.poll(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor stopping")
			return
		case <-ticker.C:
			m.poll(ctx, "interval")
		case <-m.requests:
			m.poll(ctx, "request")
		}
	}
}

// Request queues an on-demand refresh without blocking
func (m *Monitor) Request() bool {
	select {
	case m.requests <- struct{}{}:
		return true
	default:
		m.logger.Warn("Refresh queue full, skipping request")
		return false
	}
}

// poll executes one refresh cycle
func (m *Monitor) poll(ctx context.Context, trigger string) {
	pollCtx, cancel := context.WithTimeout(ctx, RefreshTimeout)
	defer cancel()

	m.logger.Debug("Starting refresh cycle", zap.String("trigger", trigger))

	if err := m.manager.refresher.RefreshInfo(pollCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Error("Failed to refresh token info",
			zap.String("trigger", trigger),
			zap.Error(err))
	}
}
