package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/revenuelab/modelgate/internal/swrcache"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// KeyStore abstracts DB queries for testability.
type KeyStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*serviceKeyRow, error)
}

type serviceKeyRow struct {
	ServiceID  string
	Name       string
	APIKeyHash string
}

// sqlKeyStore is the real implementation using *sql.DB.
type sqlKeyStore struct {
	db *sql.DB
}

func (s *sqlKeyStore) LookupByPrefix(ctx context.Context, prefix string) (*serviceKeyRow, error) {
	row := &serviceKeyRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash
		 FROM service_keys
		 WHERE api_key_prefix = $1`,
		prefix,
	).Scan(&row.ServiceID, &row.Name, &row.APIKeyHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidAPIKey // no key with this prefix — reject, don't fail open
		}
		return nil, fmt.Errorf("sqlKeyStore.LookupByPrefix: %w", err)
	}
	return row, nil
}

// PostgresAuthenticator validates service keys against the service_keys
// table. Uses a stale-while-revalidate cache to avoid DB + bcrypt on the
// hot path. Auth failures always return an error — no gate runs without
// valid auth.
type PostgresAuthenticator struct {
	store  KeyStore
	cache  *swrcache.Cache[*ServiceContext]
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  &sqlKeyStore{db: cfg.DB},
		cache:  swrcache.New[*ServiceContext](ttl),
		logger: cfg.Logger,
	}
}

// newPostgresAuthenticatorWithStore creates an authenticator with an
// injected store (for testing).
func newPostgresAuthenticatorWithStore(store KeyStore, cache *swrcache.Cache[*ServiceContext], logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Authenticate validates the service key against the database.
//
// Flow:
//  1. Cache lookup (stale-while-revalidate):
//     - Fresh hit: return immediately
//     - Stale hit: return stale context, spawn background refresh
//     - Miss: do full DB + bcrypt lookup synchronously
//  2. On DB error: return ErrAuthUnavailable, never a degraded context.
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, token string) (*ServiceContext, error) {
	if len(token) < 8 || token[:len(KeyPrefix)] != KeyPrefix {
		return nil, ErrInvalidAPIKey
	}

	result := a.cache.Get(token)
	if result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(token)
		}
		return result.Value, nil
	}

	service, err := a.lookupAndVerify(ctx, token)
	if err != nil {
		return a.handleLookupError(err)
	}

	a.cache.Set(token, service)
	return service, nil
}

// backgroundRefresh performs the DB + bcrypt lookup in a background
// goroutine. Errors are logged but don't affect the caller (they already
// got the stale value).
func (a *PostgresAuthenticator) backgroundRefresh(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	service, err := a.lookupAndVerify(ctx, token)
	if err != nil {
		a.logger.Warn("background auth cache refresh failed", zap.Error(err))
		// Drop the stale entry so the next stale read retries.
		a.cache.Delete(token)
		return
	}

	a.cache.Set(token, service)
}

// lookupAndVerify does the full DB prefix lookup + bcrypt verification.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, token string) (*ServiceContext, error) {
	// api_key_prefix is the first 8 chars (e.g. "mgk_abcd")
	prefix := token[:8]

	row, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(token)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	return &ServiceContext{
		ServiceID: row.ServiceID,
		Name:      row.Name,
	}, nil
}

// handleLookupError returns the appropriate error — no gate ever runs on
// an auth failure.
func (a *PostgresAuthenticator) handleLookupError(lookupErr error) (*ServiceContext, error) {
	if errors.Is(lookupErr, ErrInvalidAPIKey) {
		return nil, ErrInvalidAPIKey
	}

	a.logger.Warn("auth DB unreachable", zap.Error(lookupErr))
	return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}
