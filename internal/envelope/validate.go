package envelope

import (
	"fmt"
	"time"
)

// ValidationResult reports which checks an envelope violated. Expected
// validation failures are data, not errors: the gate turns a non-empty
// Violations list into a 403, while an internal fault (hash computation
// failing) surfaces as an error from Validate.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// Validate checks schema completeness and hash integrity of an envelope.
func Validate(e *Envelope) (ValidationResult, error) {
	if e == nil {
		return ValidationResult{Violations: []string{"envelope is missing"}}, nil
	}

	var violations []string
	if e.EnvelopeVersion == "" {
		violations = append(violations, "envelope_version is required")
	}
	for _, f := range []struct{ name, value string }{
		{"tenant_id", e.TenantID},
		{"user_id", e.UserID},
		{"persona_id", e.PersonaID},
		{"vertical", e.Vertical},
		{"region", e.Region},
	} {
		if f.value == "" {
			violations = append(violations, f.name+" is required")
		}
	}
	if len(e.AllowedTools) == 0 {
		violations = append(violations, "allowed_tools must not be empty")
	}
	if e.CostBudget.MaxTokens <= 0 {
		violations = append(violations, "cost_budget.max_tokens must be positive")
	}
	if e.CostBudget.MaxCostUSD <= 0 {
		violations = append(violations, "cost_budget.max_cost_usd must be positive")
	}
	if e.LatencyBudget.TimeoutMs <= 0 {
		violations = append(violations, "latency_budget.timeout_ms must be positive")
	}
	if e.Timestamp == "" {
		violations = append(violations, "timestamp is required")
	} else if _, err := time.Parse(TimestampFormat, e.Timestamp); err != nil {
		violations = append(violations, "timestamp is not RFC 3339")
	}

	if e.ContentHash == "" {
		violations = append(violations, "content_hash is required")
	} else {
		recomputed, err := computeHash(*e)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("Validate: %w", err)
		}
		if recomputed != e.ContentHash {
			violations = append(violations, "content_hash does not match envelope content")
		}
	}

	return ValidationResult{Valid: len(violations) == 0, Violations: violations}, nil
}

// IsToolAllowed reports whether the tool appears in the envelope's
// allowed_tools set.
func IsToolAllowed(e *Envelope, tool string) bool {
	for _, t := range e.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// IsIntentAllowed reports whether the intent appears in allowed_intents.
// An empty allowed_intents set allows nothing.
func IsIntentAllowed(e *Envelope, intent string) bool {
	for _, i := range e.AllowedIntents {
		if i == intent {
			return true
		}
	}
	return false
}

// IsOutputForbidden reports whether the output class appears in
// forbidden_outputs.
func IsOutputForbidden(e *Envelope, output string) bool {
	for _, o := range e.ForbiddenOutputs {
		if o == output {
			return true
		}
	}
	return false
}

// BudgetCheck is the result of comparing an estimated spend against the
// envelope's cost budget.
type BudgetCheck struct {
	WithinBudget    bool    `json:"within_budget"`
	EstimatedTokens int     `json:"estimated_tokens"`
	MaxTokens       int     `json:"max_tokens"`
	EstimatedCost   float64 `json:"estimated_cost_usd"`
	MaxCostUSD      float64 `json:"max_cost_usd"`
}

// CheckCostBudget compares an estimated token count against the envelope's
// cost budget using the given per-1k-token unit cost.
func CheckCostBudget(e *Envelope, estimatedTokens int, unitCostPer1K float64) BudgetCheck {
	estimatedCost := float64(estimatedTokens) / 1000 * unitCostPer1K
	return BudgetCheck{
		WithinBudget:    estimatedTokens <= e.CostBudget.MaxTokens && estimatedCost <= e.CostBudget.MaxCostUSD,
		EstimatedTokens: estimatedTokens,
		MaxTokens:       e.CostBudget.MaxTokens,
		EstimatedCost:   estimatedCost,
		MaxCostUSD:      e.CostBudget.MaxCostUSD,
	}
}
