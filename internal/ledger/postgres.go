package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLedger stores decisions in the routing_decisions table. The
// primary key on interaction_id plus ON CONFLICT DO NOTHING gives
// insert-if-absent without any application-level locking: concurrent
// duplicate attempts race harmlessly and the first insert wins.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a ledger backed by the given pool.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Record(ctx context.Context, d Decision) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO routing_decisions
			(interaction_id, capability_key, persona_id, policy_version,
			 model_id, model_slug, routing_score, routing_reason, channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (interaction_id) DO NOTHING`,
		d.InteractionID, d.CapabilityKey, d.PersonaID, d.PolicyVersion,
		d.ModelID, d.ModelSlug, d.RoutingScore, d.RoutingReason, d.Channel, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, interactionID string) (*Decision, error) {
	var d Decision
	err := l.db.QueryRowContext(ctx, `
		SELECT interaction_id, capability_key, persona_id, policy_version,
		       model_id, model_slug, routing_score, routing_reason, channel, created_at
		FROM routing_decisions WHERE interaction_id = $1`, interactionID,
	).Scan(&d.InteractionID, &d.CapabilityKey, &d.PersonaID, &d.PolicyVersion,
		&d.ModelID, &d.ModelSlug, &d.RoutingScore, &d.RoutingReason, &d.Channel, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &d, nil
}
