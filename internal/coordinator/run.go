package coordinator

import (
	"context"
	"math/big"
	"sync"

	"tokendesk/internal/models"
)

// Outcome is the terminal result of an admitted action
type Outcome struct {
	Status    models.DisplayStatus
	Message   string
	Reference string   // empty when nothing reached the ledger
	Allowance *big.Int // set for a successful allowance check
}

// Run tracks one admitted action
type Run struct {
	ID     string
	Action models.Action

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newRun(id string, action models.Action) *Run {
	return &Run{
		ID:     id,
		Action: action,
		done:   make(chan struct{}),
	}
}

func (r *Run) finish(o Outcome) {
	r.once.Do(func() {
		r.outcome = o
		close(r.done)
	})
}

// Done is closed once the action resolved
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the action resolved or ctx is done
func (r *Run) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Outcome reports the terminal result. ok is false while the action is still running.
func (r *Run) Outcome() (Outcome, bool) {
	select {
	case <-r.done:
		return r.outcome, true
	default:
		return Outcome{}, false
	}
}
