package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/revenuelab/modelgate/internal/swrcache"
	"go.uber.org/zap"
)

// foreignKeyViolation is the Postgres error code raised by the RESTRICT
// constraint on capability_mappings.capability_id.
const foreignKeyViolation = "23503"

// uniqueViolation is the Postgres error code for duplicate capability keys.
const uniqueViolation = "23505"

// PostgresRegistry reads the capability catalog, model catalog and persona
// policies from Postgres. Policy lookups go through a TTL
// stale-while-revalidate cache since they sit on the hot authorize path.
type PostgresRegistry struct {
	db     *sql.DB
	cache  *swrcache.Cache[*PersonaPolicy]
	logger *zap.Logger
}

// PostgresRegistryConfig configures the PostgresRegistry.
type PostgresRegistryConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewPostgresRegistry creates a registry backed by the given pool.
func NewPostgresRegistry(cfg PostgresRegistryConfig) *PostgresRegistry {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &PostgresRegistry{
		db:     cfg.DB,
		cache:  swrcache.New[*PersonaPolicy](ttl),
		logger: cfg.Logger,
	}
}

// GetPolicy returns the latest policy version for a persona, or nil.
func (r *PostgresRegistry) GetPolicy(ctx context.Context, personaID string) (*PersonaPolicy, error) {
	res := r.cache.Get(personaID)
	if res.Hit {
		if res.NeedsRefresh {
			go r.refreshPolicy(personaID)
		}
		return res.Value, nil
	}

	p, err := r.fetchLatestPolicy(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("GetPolicy: %w", err)
	}
	r.cache.Set(personaID, p)
	return p, nil
}

// GetPolicyVersion returns a pinned policy version, bypassing the cache.
// Pinned reads serve replay and must not observe stale data.
func (r *PostgresRegistry) GetPolicyVersion(ctx context.Context, personaID string, version int) (*PersonaPolicy, error) {
	p, err := r.scanPolicy(r.db.QueryRowContext(ctx, `
		SELECT persona_id, version, allowed_capabilities, forbidden_capabilities,
		       max_cost_per_call, allowed_intents, forbidden_outputs, allowed_tools,
		       created_at
		FROM persona_policies
		WHERE persona_id = $1 AND version = $2`, personaID, version))
	if err != nil {
		return nil, fmt.Errorf("GetPolicyVersion: %w", err)
	}
	return p, nil
}

func (r *PostgresRegistry) fetchLatestPolicy(ctx context.Context, personaID string) (*PersonaPolicy, error) {
	return r.scanPolicy(r.db.QueryRowContext(ctx, `
		SELECT persona_id, version, allowed_capabilities, forbidden_capabilities,
		       max_cost_per_call, allowed_intents, forbidden_outputs, allowed_tools,
		       created_at
		FROM persona_policies
		WHERE persona_id = $1
		ORDER BY version DESC
		LIMIT 1`, personaID))
}

// scanPolicy scans one persona_policies row. The capability and tool sets
// are stored as JSONB arrays, mirroring how policy configuration documents
// arrive from the admin plane.
func (r *PostgresRegistry) scanPolicy(row *sql.Row) (*PersonaPolicy, error) {
	var p PersonaPolicy
	var maxCost sql.NullFloat64
	var allowed, forbidden, intents, outputs, tools []byte
	err := row.Scan(&p.PersonaID, &p.Version,
		&allowed, &forbidden, &maxCost, &intents, &outputs, &tools,
		&p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if maxCost.Valid {
		p.MaxCostPerCall = &maxCost.Float64
	}
	for _, col := range []struct {
		raw  []byte
		dest *[]string
	}{
		{allowed, &p.AllowedCapabilities},
		{forbidden, &p.ForbiddenCapabilities},
		{intents, &p.AllowedIntents},
		{outputs, &p.ForbiddenOutputs},
		{tools, &p.AllowedTools},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("scanPolicy: %w", err)
		}
	}
	return &p, nil
}

func (r *PostgresRegistry) refreshPolicy(personaID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := r.fetchLatestPolicy(ctx, personaID)
	if err != nil {
		r.logger.Warn("background policy refresh failed",
			zap.String("persona_id", personaID),
			zap.Error(err),
		)
		// Drop the stale entry so the next read retries. Leaving it in
		// place would serve the old policy forever: the entry's refresh
		// flag is already spent and nothing else re-arms it.
		r.cache.Delete(personaID)
		return
	}
	r.cache.Set(personaID, p)
}

// GetCapability returns the capability for a key, or nil if unknown.
func (r *PostgresRegistry) GetCapability(ctx context.Context, capabilityKey string) (*Capability, error) {
	var c Capability
	err := r.db.QueryRowContext(ctx, `
		SELECT id, key, display_name, COALESCE(description, ''), created_at
		FROM capabilities WHERE key = $1`, capabilityKey,
	).Scan(&c.ID, &c.Key, &c.DisplayName, &c.Description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetCapability: %w", err)
	}
	return &c, nil
}

// ModelsForCapability returns every model mapped to the capability.
func (r *PostgresRegistry) ModelsForCapability(ctx context.Context, capabilityKey string) ([]CandidateModel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.slug, m.unit_cost, m.quality_tier, m.is_active, m.is_eligible,
		       cm.priority
		FROM capabilities c
		JOIN capability_mappings cm ON cm.capability_id = c.id
		JOIN models m ON m.id = cm.model_id
		WHERE c.key = $1
		ORDER BY m.slug`, capabilityKey)
	if err != nil {
		return nil, fmt.Errorf("ModelsForCapability: %w", err)
	}
	defer rows.Close()

	var candidates []CandidateModel
	for rows.Next() {
		var cm CandidateModel
		if err := rows.Scan(&cm.ID, &cm.Slug, &cm.UnitCost, &cm.QualityTier,
			&cm.IsActive, &cm.IsEligible, &cm.Priority); err != nil {
			return nil, fmt.Errorf("ModelsForCapability: %w", err)
		}
		candidates = append(candidates, cm)
	}
	return candidates, rows.Err()
}

// ListCapabilities returns all capabilities ordered by key.
func (r *PostgresRegistry) ListCapabilities(ctx context.Context) ([]Capability, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, key, display_name, COALESCE(description, ''), created_at
		FROM capabilities ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("ListCapabilities: %w", err)
	}
	defer rows.Close()

	var caps []Capability
	for rows.Next() {
		var c Capability
		if err := rows.Scan(&c.ID, &c.Key, &c.DisplayName, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListCapabilities: %w", err)
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

// ListModels returns all catalog models ordered by slug.
func (r *PostgresRegistry) ListModels(ctx context.Context) ([]Model, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, unit_cost, quality_tier, is_active, is_eligible
		FROM models ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("ListModels: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.Slug, &m.UnitCost, &m.QualityTier,
			&m.IsActive, &m.IsEligible); err != nil {
			return nil, fmt.Errorf("ListModels: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// CreateCapability inserts a new capability. Duplicate keys fail with
// ErrDuplicateKey; keys are immutable so there is no update path.
func (r *PostgresRegistry) CreateCapability(ctx context.Context, key, displayName, description string) (*Capability, error) {
	var c Capability
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO capabilities (key, display_name, description)
		VALUES ($1, $2, $3)
		RETURNING id, key, display_name, COALESCE(description, ''), created_at`,
		key, displayName, description,
	).Scan(&c.ID, &c.Key, &c.DisplayName, &c.Description, &c.CreatedAt)
	if isPgError(err, uniqueViolation) {
		return nil, ErrDuplicateKey
	}
	if err != nil {
		return nil, fmt.Errorf("CreateCapability: %w", err)
	}
	return &c, nil
}

// DeleteCapability removes an unmapped capability. The RESTRICT foreign key
// on capability_mappings turns into ErrCapabilityInUse.
func (r *PostgresRegistry) DeleteCapability(ctx context.Context, capabilityKey string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM capabilities WHERE key = $1`, capabilityKey)
	if isPgError(err, foreignKeyViolation) {
		return ErrCapabilityInUse
	}
	if err != nil {
		return fmt.Errorf("DeleteCapability: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
