// Package authz decides whether a persona may invoke a capability.
// The decision is a pure function of the persona's policy; every denial is
// persisted before the result returns, so the audit trail can never miss a
// refused invocation.
package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/revenuelab/modelgate/internal/registry"
	"go.uber.org/zap"
)

// Denial reasons. The blacklist overrides the whitelist, so a capability
// present in both sets denies with ReasonInForbidden.
const (
	ReasonNotInAllowed = "NOT_IN_ALLOWED"
	ReasonInForbidden  = "IN_FORBIDDEN"
)

// Decision is the result of an authorization check.
type Decision struct {
	Authorized   bool
	DenialReason string // empty when authorized
	DenialID     string // set when a denial was recorded
}

// Denial is one append-only capability_denials record.
type Denial struct {
	ID            string
	PersonaID     string
	CapabilityKey string
	EnvelopeHash  string
	DenialReason  string
	CreatedAt     time.Time
}

// DenialStore persists capability denials. Unlike the envelope audit
// stream this write is synchronous and must succeed before the denial is
// returned to the caller.
type DenialStore interface {
	RecordDenial(ctx context.Context, d Denial) error
}

// Authorizer evaluates persona policies against capability keys.
type Authorizer struct {
	policies registry.PolicySource
	denials  DenialStore
	logger   *zap.Logger
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(policies registry.PolicySource, denials DenialStore, logger *zap.Logger) *Authorizer {
	return &Authorizer{policies: policies, denials: denials, logger: logger}
}

// Authorize checks the persona's latest policy for the capability key.
// Order is fixed: blacklist first (absolute precedence), then whitelist
// membership (default-deny), then allow. The result never depends on model
// eligibility — that is the router's concern alone.
func (a *Authorizer) Authorize(ctx context.Context, personaID, capabilityKey, envelopeHash string) (Decision, error) {
	policy, err := a.policies.GetPolicy(ctx, personaID)
	if err != nil {
		return Decision{}, fmt.Errorf("Authorize: %w", err)
	}

	switch {
	case policy == nil:
		// A persona without a policy allows nothing.
		return a.deny(ctx, personaID, capabilityKey, envelopeHash, ReasonNotInAllowed)
	case policy.Forbids(capabilityKey):
		return a.deny(ctx, personaID, capabilityKey, envelopeHash, ReasonInForbidden)
	case !policy.Allows(capabilityKey):
		return a.deny(ctx, personaID, capabilityKey, envelopeHash, ReasonNotInAllowed)
	}

	return Decision{Authorized: true}, nil
}

// deny records the denial and returns it. A failed denial write fails the
// whole call: an unrecorded denial would defeat the audit guarantee.
func (a *Authorizer) deny(ctx context.Context, personaID, capabilityKey, envelopeHash, reason string) (Decision, error) {
	d := Denial{
		ID:            uuid.New().String(),
		PersonaID:     personaID,
		CapabilityKey: capabilityKey,
		EnvelopeHash:  envelopeHash,
		DenialReason:  reason,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.denials.RecordDenial(ctx, d); err != nil {
		return Decision{}, fmt.Errorf("Authorize: record denial: %w", err)
	}

	a.logger.Info("capability denied",
		zap.String("persona_id", personaID),
		zap.String("capability_key", capabilityKey),
		zap.String("denial_reason", reason),
		zap.String("denial_id", d.ID),
	)

	return Decision{DenialReason: reason, DenialID: d.ID}, nil
}
