package registry

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// StaticRegistry is an in-memory Registry for tests and local development.
// It enforces the same integrity rules as the Postgres implementation:
// unique immutable capability keys and restricted capability deletion.
type StaticRegistry struct {
	mu           sync.RWMutex
	capabilities map[string]*Capability      // by key
	models       map[string]*Model           // by id
	mappings     []CapabilityMapping
	policies     map[string][]*PersonaPolicy // by persona, ascending version
	nextID       int
}

// CapabilityMapping associates a capability with a backing model.
type CapabilityMapping struct {
	CapabilityID string
	ModelID      string
	Priority     int
}

// NewStaticRegistry creates an empty in-memory registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		capabilities: make(map[string]*Capability),
		models:       make(map[string]*Model),
		policies:     make(map[string][]*PersonaPolicy),
	}
}

func (r *StaticRegistry) GetPolicy(_ context.Context, personaID string) (*PersonaPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.policies[personaID]
	if len(versions) == 0 {
		return nil, nil
	}
	p := *versions[len(versions)-1]
	return &p, nil
}

func (r *StaticRegistry) GetPolicyVersion(_ context.Context, personaID string, version int) (*PersonaPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.policies[personaID] {
		if p.Version == version {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *StaticRegistry) GetCapability(_ context.Context, capabilityKey string) (*Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[capabilityKey]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *StaticRegistry) ModelsForCapability(_ context.Context, capabilityKey string) ([]CandidateModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[capabilityKey]
	if !ok {
		return nil, nil
	}
	var candidates []CandidateModel
	for _, m := range r.mappings {
		if m.CapabilityID != c.ID {
			continue
		}
		model, ok := r.models[m.ModelID]
		if !ok {
			continue
		}
		candidates = append(candidates, CandidateModel{Model: *model, Priority: m.Priority})
	}
	return candidates, nil
}

func (r *StaticRegistry) ListCapabilities(_ context.Context) ([]Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps := make([]Capability, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		caps = append(caps, *c)
	}
	return caps, nil
}

func (r *StaticRegistry) ListModels(_ context.Context) ([]Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, *m)
	}
	return models, nil
}

func (r *StaticRegistry) CreateCapability(_ context.Context, key, displayName, description string) (*Capability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.capabilities[key]; exists {
		return nil, ErrDuplicateKey
	}
	r.nextID++
	c := &Capability{
		ID:          "cap-" + key,
		Key:         key,
		DisplayName: displayName,
		Description: description,
		CreatedAt:   time.Now(),
	}
	r.capabilities[key] = c
	cp := *c
	return &cp, nil
}

func (r *StaticRegistry) DeleteCapability(_ context.Context, capabilityKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.capabilities[capabilityKey]
	if !ok {
		return sql.ErrNoRows
	}
	for _, m := range r.mappings {
		if m.CapabilityID == c.ID {
			return ErrCapabilityInUse
		}
	}
	delete(r.capabilities, capabilityKey)
	return nil
}

// --- Fixture mutators (test/dev setup, not part of the Registry surface) ---

// AddModel registers a model in the catalog.
func (r *StaticRegistry) AddModel(m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := m
	r.models[m.ID] = &cp
}

// MapCapability associates an existing capability key with a model id.
func (r *StaticRegistry) MapCapability(capabilityKey, modelID string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.capabilities[capabilityKey]
	if !ok {
		return
	}
	r.mappings = append(r.mappings, CapabilityMapping{
		CapabilityID: c.ID,
		ModelID:      modelID,
		Priority:     priority,
	})
}

// PutPolicy appends a policy version for a persona. Versions are expected
// to arrive in ascending order.
func (r *StaticRegistry) PutPolicy(p PersonaPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := p
	r.policies[p.PersonaID] = append(r.policies[p.PersonaID], &cp)
}

// SetEligible flips a model's operational eligibility toggle.
func (r *StaticRegistry) SetEligible(modelID string, eligible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[modelID]; ok {
		m.IsEligible = eligible
	}
}

// SetActive flips a model's registration flag.
func (r *StaticRegistry) SetActive(modelID string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[modelID]; ok {
		m.IsActive = active
	}
}
