package gate

import (
	"sync"

	"tokendesk/internal/models"
)

// Gate admits at most one in-flight ledger action and holds the ephemeral
// display status. Admission is global, not per action kind.
type Gate struct {
	mu    sync.Mutex
	state models.GateState

	// generation changes on every display update so a stale clear can be detected
	generation uint64
}

// NewGate creates an idle gate with no display status
func NewGate() *Gate {
	return &Gate{
		state: models.GateState{DisplayStatus: models.DisplayStatusNone},
	}
}

// TryAcquire admits the action if nothing is in flight. A denied request leaves
// the state untouched and is not queued.
func (g *Gate) TryAcquire(kind models.Action, pendingMessage string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Busy {
		return false
	}

	g.state = models.GateState{
		Busy:          true,
		ActiveKind:    kind,
		DisplayStatus: models.DisplayStatusPending,
		Message:       pendingMessage,
	}
	g.generation++
	return true
}

// Release ends the in-flight action with a final display status. The active
// kind is kept until the display is cleared.
func (g *Gate) Release(status models.DisplayStatus, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.Busy = false
	g.state.DisplayStatus = status
	g.state.Message = message
	g.generation++
}

// ShowError displays a local error without touching admission
func (g *Gate) ShowError(message string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.DisplayStatus = models.DisplayStatusError
	g.state.Message = message
	g.generation++
}

// IsBusyFor reports whether the given action should be disabled. Any kind
// reads the single global busy flag.
func (g *Gate) IsBusyFor(kind models.Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Busy
}

// Current returns a copy of the gate state
func (g *Gate) Current() models.GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Generation returns the current display generation
func (g *Gate) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

// ClearIfCurrent resets the display to none when nothing changed it since gen
// was observed. A display belonging to an in-flight action is never cleared.
func (g *Gate) ClearIfCurrent(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Busy || g.generation != gen {
		return false
	}

	g.state.ActiveKind = ""
	g.state.DisplayStatus = models.DisplayStatusNone
	g.state.Message = ""
	g.generation++
	return true
}
