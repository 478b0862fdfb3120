package registry

import (
	"context"
	"errors"
)

// ErrCapabilityInUse is returned when deleting a capability that still has
// at least one model mapping. Deletion is restricted, never cascaded, so a
// routing rule can never silently lose its target.
var ErrCapabilityInUse = errors.New("capability is referenced by a model mapping")

// ErrDuplicateKey is returned when creating a capability whose key exists.
var ErrDuplicateKey = errors.New("capability key already exists")

// PolicySource provides read access to persona policies.
type PolicySource interface {
	// GetPolicy returns the latest policy version for a persona,
	// or nil if the persona has no policy.
	GetPolicy(ctx context.Context, personaID string) (*PersonaPolicy, error)

	// GetPolicyVersion returns a pinned policy version for reproducible
	// replay, or nil if that version does not exist.
	GetPolicyVersion(ctx context.Context, personaID string, version int) (*PersonaPolicy, error)
}

// ModelSource provides read access to the capability and model catalog.
type ModelSource interface {
	// GetCapability returns the capability for a key, or nil if unknown.
	GetCapability(ctx context.Context, capabilityKey string) (*Capability, error)

	// ModelsForCapability returns every model mapped to the capability,
	// regardless of activity or eligibility. Filtering is the router's job.
	ModelsForCapability(ctx context.Context, capabilityKey string) ([]CandidateModel, error)
}

// Registry is the full read surface plus the two restricted admin
// operations this subsystem exposes (key creation and restricted delete).
type Registry interface {
	PolicySource
	ModelSource

	ListCapabilities(ctx context.Context) ([]Capability, error)
	ListModels(ctx context.Context) ([]Model, error)

	// CreateCapability inserts a new capability. Keys are immutable once
	// created; a duplicate key fails with ErrDuplicateKey.
	CreateCapability(ctx context.Context, key, displayName, description string) (*Capability, error)

	// DeleteCapability removes an unmapped capability. Fails with
	// ErrCapabilityInUse while any capability_mappings row references it.
	DeleteCapability(ctx context.Context, capabilityKey string) error
}
