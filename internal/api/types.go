package api

import (
	"time"

	"github.com/revenuelab/modelgate/internal/envelope"
)

// Machine-readable error codes returned by the gates.
const (
	CodeEnvelopeMissing        = "ENVELOPE_MISSING"
	CodeEnvelopeInvalid        = "ENVELOPE_INVALID"
	CodeEnvelopeCreationFailed = "ENVELOPE_CREATION_FAILED"
	CodeToolNotAllowed         = "TOOL_NOT_ALLOWED"
	CodeCostBudgetExceeded     = "COST_BUDGET_EXCEEDED"
)

// ErrorDetail is the machine-readable error payload.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResp is the standard error response body.
type ErrorResp struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// --- POST /v1/gate/authorize ---

// AuthorizeRequest is the JSON body for POST /v1/gate/authorize.
type AuthorizeRequest struct {
	CapabilityKey string `json:"capability_key"`
}

// AuthorizeResponse mirrors the authorization interface.
type AuthorizeResponse struct {
	Authorized   bool   `json:"authorized"`
	DenialReason string `json:"denial_reason,omitempty"`
	DenialID     string `json:"denial_id,omitempty"`
}

// --- POST /v1/gate/route ---

// RouteRequest is the JSON body for POST /v1/gate/route.
type RouteRequest struct {
	CapabilityKey   string `json:"capability_key"`
	Channel         string `json:"channel"`
	InteractionID   string `json:"interaction_id"`
	EstimatedTokens int    `json:"estimated_tokens"`
}

// RouteResponse mirrors the routing interface.
type RouteResponse struct {
	Success                     bool    `json:"success"`
	ModelSlug                   string  `json:"model_slug,omitempty"`
	ModelID                     string  `json:"model_id,omitempty"`
	RoutingScore                float64 `json:"routing_score,omitempty"`
	RoutingReason               string  `json:"routing_reason,omitempty"`
	ModelsExcludedByBudget      *int    `json:"models_excluded_by_budget,omitempty"`
	ModelsExcludedByEligibility *int    `json:"models_excluded_by_eligibility,omitempty"`
	DenialReason                string  `json:"denial_reason,omitempty"`
	DenialID                    string  `json:"denial_id,omitempty"`
}

// --- GET /v1/gate/replay/{interaction_id} ---

// ReplayResponse mirrors the replay interface.
type ReplayResponse struct {
	ReplayPossible  bool   `json:"replay_possible"`
	ReplayDeviation bool   `json:"replay_deviation"`
	DeviationReason string `json:"deviation_reason,omitempty"`
	OriginalModelID string `json:"original_model_id"`
	ReplayModelID   string `json:"replay_model_id,omitempty"`
}

// --- Catalog reads ---

// CapabilityResp is one capability in GET /api/modelgate/capabilities.
type CapabilityResp struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ModelResp is one model in GET /api/modelgate/models.
type ModelResp struct {
	ID          string  `json:"id"`
	Slug        string  `json:"slug"`
	UnitCost    float64 `json:"unit_cost"`
	QualityTier int     `json:"quality_tier"`
	IsActive    bool    `json:"is_active"`
	IsEligible  bool    `json:"is_eligible"`
}

// DecisionResp is a stored routing decision.
type DecisionResp struct {
	InteractionID string    `json:"interaction_id"`
	CapabilityKey string    `json:"capability_key"`
	PersonaID     string    `json:"persona_id"`
	PolicyVersion int       `json:"policy_version"`
	ModelID       string    `json:"model_id"`
	ModelSlug     string    `json:"model_slug"`
	RoutingScore  float64   `json:"routing_score"`
	RoutingReason string    `json:"routing_reason"`
	Channel       string    `json:"channel"`
	CreatedAt     time.Time `json:"created_at"`
}

// --- Audit reads ---

// AuditEntryResp is one envelope audit record.
type AuditEntryResp struct {
	ContentHash     string    `json:"content_hash"`
	EnvelopeVersion string    `json:"envelope_version"`
	TenantID        string    `json:"tenant_id"`
	UserID          string    `json:"user_id"`
	PersonaID       string    `json:"persona_id"`
	Vertical        string    `json:"vertical"`
	SubVertical     string    `json:"sub_vertical,omitempty"`
	Region          string    `json:"region"`
	Endpoint        string    `json:"endpoint"`
	Method          string    `json:"method"`
	CorrelationID   string    `json:"correlation_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// AuditListResp is the paginated audit listing.
type AuditListResp struct {
	Entries  []AuditEntryResp `json:"entries"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// budgetDetails builds the details payload for COST_BUDGET_EXCEEDED.
func budgetDetails(check envelope.BudgetCheck) map[string]any {
	return map[string]any{
		"estimated_tokens":   check.EstimatedTokens,
		"max_tokens":         check.MaxTokens,
		"estimated_cost_usd": check.EstimatedCost,
		"max_cost_usd":       check.MaxCostUSD,
	}
}
