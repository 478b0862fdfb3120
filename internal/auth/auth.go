// Package auth validates service keys for the gate endpoints. This is
// service-to-service authentication only; the persona/tenant identity an
// envelope is built from is established upstream and arrives in headers.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingAPIKey   = errors.New("missing authorization header")
	ErrInvalidAPIKey   = errors.New("invalid service key")
	ErrAuthUnavailable = errors.New("authentication backend unavailable")
)

// KeyPrefix is the fixed prefix of every modelgate service key.
const KeyPrefix = "mgk_"

// ServiceContext holds the authenticated caller's configuration.
type ServiceContext struct {
	ServiceID string
	Name      string
}

// Authenticator validates a bearer token and returns the service context.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*ServiceContext, error)
}

// StaticAuthenticator is a development-only authenticator that accepts any
// mgk_ key without a database lookup.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*ServiceContext, error) {
	if len(token) < 8 || !strings.HasPrefix(token, KeyPrefix) {
		return nil, ErrInvalidAPIKey
	}
	return &ServiceContext{
		ServiceID: "static-" + token[:8],
		Name:      "static",
	}, nil
}
