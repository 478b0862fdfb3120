// Package ledger persists routing decisions append-only, keyed by the
// caller's interaction id, and replays past decisions against current
// model state to verify they are still reproducible.
package ledger

import (
	"context"
	"time"
)

// Decision is one append-only routing_decisions record. Once written for
// an interaction id it is never updated; a duplicate write is a no-op.
type Decision struct {
	InteractionID string    `json:"interaction_id"`
	CapabilityKey string    `json:"capability_key"`
	PersonaID     string    `json:"persona_id"`
	PolicyVersion int       `json:"policy_version"`
	ModelID       string    `json:"model_id"`
	ModelSlug     string    `json:"model_slug"`
	RoutingScore  float64   `json:"routing_score"`
	RoutingReason string    `json:"routing_reason"`
	Channel       string    `json:"channel"`
	CreatedAt     time.Time `json:"created_at"`
}

// Ledger is the append-only decision store. No update or delete exists.
type Ledger interface {
	// Record inserts the decision if the interaction id is unused.
	// A second write for the same id silently keeps the first decision.
	Record(ctx context.Context, d Decision) error

	// Get returns the stored decision, or nil if the id is unknown.
	Get(ctx context.Context, interactionID string) (*Decision, error)
}
