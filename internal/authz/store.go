package authz

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// PostgresDenialStore persists denials to the append-only
// capability_denials table.
type PostgresDenialStore struct {
	db *sql.DB
}

// NewPostgresDenialStore creates a denial store backed by the given pool.
func NewPostgresDenialStore(db *sql.DB) *PostgresDenialStore {
	return &PostgresDenialStore{db: db}
}

func (s *PostgresDenialStore) RecordDenial(ctx context.Context, d Denial) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capability_denials
			(id, persona_id, capability_key, envelope_hash, denial_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.PersonaID, d.CapabilityKey, d.EnvelopeHash, d.DenialReason, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("RecordDenial: %w", err)
	}
	return nil
}

// MemoryDenialStore is an in-memory DenialStore for tests and local
// development.
type MemoryDenialStore struct {
	mu      sync.Mutex
	denials []Denial
}

// NewMemoryDenialStore creates an empty in-memory denial store.
func NewMemoryDenialStore() *MemoryDenialStore {
	return &MemoryDenialStore{}
}

func (s *MemoryDenialStore) RecordDenial(_ context.Context, d Denial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denials = append(s.denials, d)
	return nil
}

// Denials returns a copy of everything recorded so far.
func (s *MemoryDenialStore) Denials() []Denial {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Denial, len(s.denials))
	copy(out, s.denials)
	return out
}
