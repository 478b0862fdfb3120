// Package envelope builds and verifies the sealed authorization context
// that scopes every model invocation. An envelope is constructed once per
// request, hashed over a canonical encoding, and never modified afterwards;
// any downstream consumer can recompute the hash to prove the envelope is
// the one the gate issued.
package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Version is the current envelope schema version.
const Version = "1.2"

// EvidenceScope bounds what supporting evidence a response may surface.
type EvidenceScope struct {
	ShowRawEvidence    bool     `json:"show_raw_evidence"`
	ShowProvenance     bool     `json:"show_provenance"`
	MaxEvidenceAgeDays int      `json:"max_evidence_age_days"`
	AllowedSources     []string `json:"allowed_sources"`
}

// MemoryScope bounds what conversation memory an invocation may read.
type MemoryScope struct {
	MaxDays        int  `json:"max_days"`
	Stateless      bool `json:"stateless"`
	SummarizedOnly bool `json:"summarized_only"`
}

// CostBudget bounds token and dollar spend for one invocation.
type CostBudget struct {
	MaxTokens  int     `json:"max_tokens"`
	MaxCostUSD float64 `json:"max_cost_usd"`
	ModelTier  string  `json:"model_tier"`
}

// LatencyBudget bounds response latency for one invocation.
type LatencyBudget struct {
	P95Ms     int `json:"p95_ms"`
	TimeoutMs int `json:"timeout_ms"`
}

// Envelope is the sealed authorization context for one invocation request.
// All fields are structs and slices (no maps) so json.Marshal produces a
// deterministic field order, which the content hash depends on. Treat an
// Envelope as frozen from construction to the end of the request it serves.
type Envelope struct {
	EnvelopeVersion  string        `json:"envelope_version"`
	TenantID         string        `json:"tenant_id"`
	UserID           string        `json:"user_id"`
	PersonaID        string        `json:"persona_id"`
	Vertical         string        `json:"vertical"`
	SubVertical      string        `json:"sub_vertical"`
	Region           string        `json:"region"`
	AllowedIntents   []string      `json:"allowed_intents"`
	ForbiddenOutputs []string      `json:"forbidden_outputs"`
	AllowedTools     []string      `json:"allowed_tools"`
	EvidenceScope    EvidenceScope `json:"evidence_scope"`
	MemoryScope      MemoryScope   `json:"memory_scope"`
	CostBudget       CostBudget    `json:"cost_budget"`
	LatencyBudget    LatencyBudget `json:"latency_budget"`
	EscalationRules  []string      `json:"escalation_rules"`
	DisclaimerRules  []string      `json:"disclaimer_rules"`
	Timestamp        string        `json:"timestamp"`
	ContentHash      string        `json:"content_hash"`
}

// TimestampFormat is the layout used in envelope timestamps.
const TimestampFormat = time.RFC3339Nano

// computeHash returns the SHA-256 hex digest of the envelope's canonical
// JSON encoding with the content_hash field zeroed. Re-hashing identical
// content always reproduces the same value.
func computeHash(e Envelope) (string, error) {
	e.ContentHash = ""
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Rehash recomputes the content hash from the envelope's current content.
// Used by the validator to detect tampering.
func Rehash(e Envelope) (string, error) {
	return computeHash(e)
}
