package registry

import "time"

// Capability is an immutable, named unit of invocable AI functionality.
// The key is globally unique and never changes after creation.
type Capability struct {
	ID          string
	Key         string
	DisplayName string
	Description string
	CreatedAt   time.Time
}

// Model is a row from the models catalog. IsActive is the registration
// flag; IsEligible is the operational toggle and affects routing only.
type Model struct {
	ID          string
	Slug        string
	UnitCost    float64 // USD per 1k tokens
	QualityTier int     // 1 (cheapest) .. 4 (frontier)
	IsActive    bool
	IsEligible  bool
}

// CandidateModel is a model joined with its capability mapping.
type CandidateModel struct {
	Model
	Priority int // capability fit declared on the mapping, higher is better
}

// PersonaPolicy is one version of a persona's capability policy.
type PersonaPolicy struct {
	PersonaID             string
	Version               int
	AllowedCapabilities   []string
	ForbiddenCapabilities []string
	MaxCostPerCall        *float64 // nil = no per-call cost ceiling
	AllowedIntents        []string
	ForbiddenOutputs      []string
	AllowedTools          []string
	CreatedAt             time.Time
}

// Allows reports whether the capability key is in the whitelist.
func (p *PersonaPolicy) Allows(capabilityKey string) bool {
	return contains(p.AllowedCapabilities, capabilityKey)
}

// Forbids reports whether the capability key is in the blacklist.
// The blacklist always overrides the whitelist.
func (p *PersonaPolicy) Forbids(capabilityKey string) bool {
	return contains(p.ForbiddenCapabilities, capabilityKey)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
