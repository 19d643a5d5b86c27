package history

import (
	"errors"
	"fmt"
	"sync"

	"tokendesk/internal/models"
)

var (
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrNotFound           = errors.New("reference not found")
	ErrMissingReference   = errors.New("operation has no reference")
)

// Log is an append-only, insertion-ordered record of submitted operations.
// Entries are never removed; only status and message change after insertion.
type Log struct {
	mu      sync.RWMutex
	entries []models.Operation
	index   map[string]int // externalRef -> position
}

// NewLog creates an empty history log
func NewLog() *Log {
	return &Log{index: make(map[string]int)}
}

// Append records a new operation keyed by its external reference
func (l *Log) Append(op models.Operation) error {
	if op.ExternalRef == "" {
		return ErrMissingReference
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.index[op.ExternalRef]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, op.ExternalRef)
	}

	l.index[op.ExternalRef] = len(l.entries)
	l.entries = append(l.entries, op.Clone())
	return nil
}

// UpdateStatus overwrites status and message of an existing entry in place
func (l *Log) UpdateStatus(ref string, status models.OperationStatus, message string) (models.Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.index[ref]
	if !ok {
		return models.Operation{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	l.entries[pos].Status = status
	l.entries[pos].Message = message
	return l.entries[pos].Clone(), nil
}

// Get returns a copy of the entry with the given reference
func (l *Log) Get(ref string) (models.Operation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.index[ref]
	if !ok {
		return models.Operation{}, false
	}
	return l.entries[pos].Clone(), true
}

// List returns a snapshot of all entries in insertion order
func (l *Log) List() []models.Operation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Operation, len(l.entries))
	for i := range l.entries {
		out[i] = l.entries[i].Clone()
	}
	return out
}

// Len returns the number of recorded entries
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Stats summarizes entries per status
type Stats struct {
	Total   int
	Pending int
	Success int
	Error   int
}

// Stats counts entries per status
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Total: len(l.entries)}
	for i := range l.entries {
		switch l.entries[i].Status {
		case models.OperationStatusPending:
			s.Pending++
		case models.OperationStatusSuccess:
			s.Success++
		case models.OperationStatusError:
			s.Error++
		}
	}
	return s
}
