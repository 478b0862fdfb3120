package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is an in-memory Ledger for tests and local development.
// It enforces the same insert-if-absent semantics as Postgres.
type MemoryLedger struct {
	mu        sync.RWMutex
	decisions map[string]Decision
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{decisions: make(map[string]Decision)}
}

func (l *MemoryLedger) Record(_ context.Context, d Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.decisions[d.InteractionID]; exists {
		return nil // first recorded decision is permanent
	}
	l.decisions[d.InteractionID] = d
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, interactionID string) (*Decision, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.decisions[interactionID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}
