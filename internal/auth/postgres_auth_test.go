package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/revenuelab/modelgate/internal/swrcache"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// testAPIKey is the raw service key used in tests. Must start with "mgk_"
// and be >= 8 chars.
const testAPIKey = "mgk_test_valid_key_1234567890abcdef"

// testHash returns a bcrypt hash of testAPIKey using MinCost (fast for tests).
func testHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}
	return string(hash)
}

// mockStore implements KeyStore for testing.
type mockStore struct {
	row       *serviceKeyRow
	err       error
	callCount atomic.Int32
}

func (m *mockStore) LookupByPrefix(_ context.Context, _ string) (*serviceKeyRow, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.row, nil
}

func testAuthenticator(store KeyStore, ttl time.Duration) *PostgresAuthenticator {
	return newPostgresAuthenticatorWithStore(store, swrcache.New[*ServiceContext](ttl), zap.NewNop())
}

func TestAuthenticate_ValidKey(t *testing.T) {
	store := &mockStore{row: &serviceKeyRow{ServiceID: "svc-1", Name: "gateway", APIKeyHash: testHash(t)}}
	a := testAuthenticator(store, time.Minute)

	svc, err := a.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if svc.ServiceID != "svc-1" || svc.Name != "gateway" {
		t.Errorf("unexpected service context: %+v", svc)
	}
}

func TestAuthenticate_MalformedToken(t *testing.T) {
	store := &mockStore{}
	a := testAuthenticator(store, time.Minute)

	for _, token := range []string{"", "short", "bearer_something", "tsk_wrong_product_key"} {
		if _, err := a.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("token %q: expected ErrInvalidAPIKey, got %v", token, err)
		}
	}
	if store.callCount.Load() != 0 {
		t.Error("malformed tokens must be rejected before any DB lookup")
	}
}

func TestAuthenticate_WrongKeySamePrefix(t *testing.T) {
	store := &mockStore{row: &serviceKeyRow{ServiceID: "svc-1", Name: "gateway", APIKeyHash: testHash(t)}}
	a := testAuthenticator(store, time.Minute)

	// Same 8-char prefix as testAPIKey, different secret.
	wrong := testAPIKey[:8] + "_attacker_guess"
	if _, err := a.Authenticate(context.Background(), wrong); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey on bcrypt mismatch, got %v", err)
	}
}

func TestAuthenticate_UnknownPrefix(t *testing.T) {
	store := &mockStore{err: ErrInvalidAPIKey}
	a := testAuthenticator(store, time.Minute)

	if _, err := a.Authenticate(context.Background(), testAPIKey); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestAuthenticate_DBUnavailable(t *testing.T) {
	store := &mockStore{err: errors.New("connection refused")}
	a := testAuthenticator(store, time.Minute)

	_, err := a.Authenticate(context.Background(), testAPIKey)
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Errorf("expected ErrAuthUnavailable, got %v", err)
	}
}

func TestAuthenticate_CacheSkipsSecondLookup(t *testing.T) {
	store := &mockStore{row: &serviceKeyRow{ServiceID: "svc-1", Name: "gateway", APIKeyHash: testHash(t)}}
	a := testAuthenticator(store, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := a.Authenticate(context.Background(), testAPIKey); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if got := store.callCount.Load(); got != 1 {
		t.Errorf("expected 1 DB lookup with a warm cache, got %d", got)
	}
}

func TestAuthenticate_StaleCacheServesThenRefreshes(t *testing.T) {
	store := &mockStore{row: &serviceKeyRow{ServiceID: "svc-1", Name: "gateway", APIKeyHash: testHash(t)}}
	a := testAuthenticator(store, time.Millisecond)

	if _, err := a.Authenticate(context.Background(), testAPIKey); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	// Stale hit: served immediately from cache, refresh happens behind it.
	svc, err := a.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("stale read failed: %v", err)
	}
	if svc.ServiceID != "svc-1" {
		t.Errorf("stale read returned wrong context: %+v", svc)
	}

	// Give the background refresh a moment to land.
	deadline := time.Now().Add(time.Second)
	for store.callCount.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := store.callCount.Load(); got < 2 {
		t.Errorf("expected a background refresh lookup, got %d total lookups", got)
	}
}
