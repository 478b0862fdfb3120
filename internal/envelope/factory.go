package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidPersona is returned when a non-canonical persona id arrives
// without an explicit allowed_tools override. There is no implicit grant
// for unknown personas.
var ErrInvalidPersona = errors.New("unknown persona requires explicit allowed_tools override")

// Request holds the caller-supplied identity and optional overrides an
// envelope is built from.
type Request struct {
	TenantID    string
	UserID      string
	PersonaID   string
	Vertical    string
	SubVertical string
	Region      string
	Overrides   *Overrides
}

// Overrides lets a caller narrow or (for custom personas) define the
// capability profile. Nil slices and nil scope pointers leave the base
// profile untouched.
type Overrides struct {
	AllowedIntents   []string       `json:"allowed_intents,omitempty"`
	ForbiddenOutputs []string       `json:"forbidden_outputs,omitempty"`
	AllowedTools     []string       `json:"allowed_tools,omitempty"`
	EvidenceScope    *EvidenceScope `json:"evidence_scope,omitempty"`
	MemoryScope      *MemoryScope   `json:"memory_scope,omitempty"`
	CostBudget       *CostBudget    `json:"cost_budget,omitempty"`
	LatencyBudget    *LatencyBudget `json:"latency_budget,omitempty"`
	EscalationRules  []string       `json:"escalation_rules,omitempty"`
	DisclaimerRules  []string       `json:"disclaimer_rules,omitempty"`
}

// overridesSchema validates the shape of a raw overrides document before
// it is decoded. Unknown fields are rejected so a typo cannot silently
// widen a custom persona's grant.
const overridesSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"allowed_intents":   {"type": "array", "items": {"type": "string"}},
		"forbidden_outputs": {"type": "array", "items": {"type": "string"}},
		"allowed_tools":     {"type": "array", "items": {"type": "string"}},
		"evidence_scope": {
			"type": "object",
			"properties": {
				"show_raw_evidence":     {"type": "boolean"},
				"show_provenance":       {"type": "boolean"},
				"max_evidence_age_days": {"type": "integer", "minimum": 0},
				"allowed_sources":       {"type": "array", "items": {"type": "string"}}
			}
		},
		"memory_scope": {
			"type": "object",
			"properties": {
				"max_days":        {"type": "integer", "minimum": 0},
				"stateless":       {"type": "boolean"},
				"summarized_only": {"type": "boolean"}
			}
		},
		"cost_budget": {
			"type": "object",
			"properties": {
				"max_tokens":   {"type": "integer", "minimum": 1},
				"max_cost_usd": {"type": "number", "minimum": 0},
				"model_tier":   {"type": "string", "enum": ["economy", "standard", "premium"]}
			}
		},
		"latency_budget": {
			"type": "object",
			"properties": {
				"p95_ms":     {"type": "integer", "minimum": 1},
				"timeout_ms": {"type": "integer", "minimum": 1}
			}
		},
		"escalation_rules": {"type": "array", "items": {"type": "string"}},
		"disclaimer_rules": {"type": "array", "items": {"type": "string"}}
	}
}`

var compiledOverridesSchema = mustCompileOverridesSchema()

func mustCompileOverridesSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(overridesSchema)))
	if err != nil {
		panic(fmt.Sprintf("overrides schema unmarshal: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("overrides.json", doc); err != nil {
		panic(fmt.Sprintf("overrides schema resource: %v", err))
	}
	sch, err := c.Compile("overrides.json")
	if err != nil {
		panic(fmt.Sprintf("overrides schema compile: %v", err))
	}
	return sch
}

// ParseOverrides validates a raw overrides document against the overrides
// schema and decodes it. Returns nil for an empty document.
func ParseOverrides(raw []byte) (*Overrides, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ParseOverrides: %w", err)
	}
	if err := compiledOverridesSchema.Validate(inst); err != nil {
		return nil, fmt.Errorf("ParseOverrides: %w", err)
	}
	var o Overrides
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("ParseOverrides: %w", err)
	}
	return &o, nil
}

// New builds a sealed envelope from the request. Canonical personas start
// from their registered profile; custom personas must supply a non-empty
// allowed_tools override or the build fails with ErrInvalidPersona.
// Construction is pure: no I/O, no side effects.
func New(req Request) (*Envelope, error) {
	profile, ok := canonicalProfiles[req.PersonaID]
	if !ok {
		if req.Overrides == nil || len(req.Overrides.AllowedTools) == 0 {
			return nil, ErrInvalidPersona
		}
		profile = minimalProfile
	}
	applyOverrides(&profile, req.Overrides)

	e := Envelope{
		EnvelopeVersion:  Version,
		TenantID:         req.TenantID,
		UserID:           req.UserID,
		PersonaID:        req.PersonaID,
		Vertical:         req.Vertical,
		SubVertical:      req.SubVertical,
		Region:           req.Region,
		AllowedIntents:   profile.AllowedIntents,
		ForbiddenOutputs: profile.ForbiddenOutputs,
		AllowedTools:     profile.AllowedTools,
		EvidenceScope:    profile.EvidenceScope,
		MemoryScope:      profile.MemoryScope,
		CostBudget:       profile.CostBudget,
		LatencyBudget:    profile.LatencyBudget,
		EscalationRules:  profile.EscalationRules,
		DisclaimerRules:  profile.DisclaimerRules,
		Timestamp:        time.Now().UTC().Format(TimestampFormat),
	}

	hash, err := computeHash(e)
	if err != nil {
		return nil, fmt.Errorf("envelope.New: %w", err)
	}
	e.ContentHash = hash
	return &e, nil
}

// applyOverrides merges caller overrides onto the base profile. Only
// supplied fields replace their base values.
func applyOverrides(p *Profile, o *Overrides) {
	if o == nil {
		return
	}
	if o.AllowedIntents != nil {
		p.AllowedIntents = o.AllowedIntents
	}
	if o.ForbiddenOutputs != nil {
		p.ForbiddenOutputs = o.ForbiddenOutputs
	}
	if o.AllowedTools != nil {
		p.AllowedTools = o.AllowedTools
	}
	if o.EvidenceScope != nil {
		p.EvidenceScope = *o.EvidenceScope
	}
	if o.MemoryScope != nil {
		p.MemoryScope = *o.MemoryScope
	}
	if o.CostBudget != nil {
		p.CostBudget = *o.CostBudget
	}
	if o.LatencyBudget != nil {
		p.LatencyBudget = *o.LatencyBudget
	}
	if o.EscalationRules != nil {
		p.EscalationRules = o.EscalationRules
	}
	if o.DisclaimerRules != nil {
		p.DisclaimerRules = o.DisclaimerRules
	}
}
