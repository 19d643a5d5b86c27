package gate

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clearable is a display that can be cleared unless it changed since a given generation
type Clearable interface {
	Generation() uint64
	ClearIfCurrent(gen uint64) bool
}

// StatusTimer schedules clearing of the ephemeral display. It owns a single
// slot: arming again replaces the pending clear, so only the most recently
// armed timer takes effect.
type StatusTimer struct {
	mu     sync.Mutex
	target Clearable
	timer  *time.Timer
	seq    uint64
	logger *zap.Logger
}

// NewStatusTimer creates a timer that clears the given display
func NewStatusTimer(target Clearable, logger *zap.Logger) *StatusTimer {
	return &StatusTimer{
		target: target,
		logger: logger,
	}
}

// Arm schedules a clear after delay, replacing any pending one
func (t *StatusTimer) Arm(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	seq := t.seq
	gen := t.target.Generation()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(delay, func() {
		t.fire(seq, gen)
	})
}

func (t *StatusTimer) fire(seq, gen uint64) {
	t.mu.Lock()
	if seq != t.seq {
		// superseded by a later Arm
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	if t.target.ClearIfCurrent(gen) {
		t.logger.Debug("Display status cleared")
	} else {
		t.logger.Debug("Display changed since timer was armed, clear skipped")
	}
}
