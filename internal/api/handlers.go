package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/revenuelab/modelgate/internal/auditlog"
	"github.com/revenuelab/modelgate/internal/ledger"
	"go.uber.org/zap"
)

// handleAuthorize implements POST /v1/gate/authorize.
// The envelope gate has already attached a validated envelope.
func (d *Dependencies) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	env := envelopeFromContext(r.Context())
	if env == nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "missing envelope context", nil)
		return
	}

	var req AuthorizeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if req.CapabilityKey == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "capability_key is required", nil)
		return
	}

	decision, err := d.Authorizer.Authorize(r.Context(), env.PersonaID, req.CapabilityKey, env.ContentHash)
	if err != nil {
		d.Logger.Error("authorize failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "authorization check failed", nil)
		return
	}

	status := http.StatusOK
	if !decision.Authorized {
		status = http.StatusForbidden
	}
	writeJSON(w, status, AuthorizeResponse{
		Authorized:   decision.Authorized,
		DenialReason: decision.DenialReason,
		DenialID:     decision.DenialID,
	})
}

// handleRoute implements POST /v1/gate/route.
// Gate order is fixed: envelope (middleware), then tool, then budget, then
// authorize, then select, then ledger. A denied capability never reaches
// the router.
func (d *Dependencies) handleRoute(w http.ResponseWriter, r *http.Request) {
	env := envelopeFromContext(r.Context())
	if env == nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "missing envelope context", nil)
		return
	}

	var req RouteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if req.CapabilityKey == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "capability_key is required", nil)
		return
	}
	if req.InteractionID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "interaction_id is required", nil)
		return
	}
	if req.Channel == "" {
		req.Channel = "api"
	}

	// Tool gate
	if !d.requireTool(w, env, req.CapabilityKey) {
		return
	}

	// Cost-budget gate: token ceiling first, cost ceiling again after a
	// model (and therefore a unit cost) is known.
	if req.EstimatedTokens > 0 && !d.requireBudget(w, env, req.EstimatedTokens, 0) {
		return
	}

	policy, err := d.Registry.GetPolicy(r.Context(), env.PersonaID)
	if err != nil {
		d.Logger.Error("policy lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "policy lookup failed", nil)
		return
	}

	decision, err := d.Authorizer.Authorize(r.Context(), env.PersonaID, req.CapabilityKey, env.ContentHash)
	if err != nil {
		d.Logger.Error("authorize failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "authorization check failed", nil)
		return
	}
	if !decision.Authorized {
		writeJSON(w, http.StatusForbidden, RouteResponse{
			DenialReason: decision.DenialReason,
			DenialID:     decision.DenialID,
		})
		return
	}

	sel, err := d.Router.SelectModel(r.Context(), req.CapabilityKey, policy, req.Channel)
	if err != nil {
		d.Logger.Error("model selection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "model selection failed", nil)
		return
	}
	if !sel.Success {
		writeJSON(w, http.StatusServiceUnavailable, RouteResponse{
			DenialReason:                sel.FailureReason,
			ModelsExcludedByBudget:      &sel.ExcludedByBudget,
			ModelsExcludedByEligibility: &sel.ExcludedByEligibility,
		})
		return
	}

	if req.EstimatedTokens > 0 && !d.requireBudget(w, env, req.EstimatedTokens, sel.UnitCost) {
		return
	}

	policyVersion := 0
	if policy != nil {
		policyVersion = policy.Version
	}
	if err := d.Ledger.Record(r.Context(), ledger.Decision{
		InteractionID: req.InteractionID,
		CapabilityKey: req.CapabilityKey,
		PersonaID:     env.PersonaID,
		PolicyVersion: policyVersion,
		ModelID:       sel.ModelID,
		ModelSlug:     sel.ModelSlug,
		RoutingScore:  sel.RoutingScore,
		RoutingReason: sel.RoutingReason,
		Channel:       req.Channel,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		d.Logger.Error("ledger write failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "decision could not be recorded", nil)
		return
	}

	writeJSON(w, http.StatusOK, RouteResponse{
		Success:       true,
		ModelSlug:     sel.ModelSlug,
		ModelID:       sel.ModelID,
		RoutingScore:  sel.RoutingScore,
		RoutingReason: sel.RoutingReason,
	})
}

// handleReplay implements GET /v1/gate/replay/{interaction_id}.
func (d *Dependencies) handleReplay(w http.ResponseWriter, r *http.Request) {
	interactionID := r.PathValue("interaction_id")
	if interactionID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "interaction_id is required", nil)
		return
	}

	result, err := d.Verifier.Replay(r.Context(), interactionID)
	if errors.Is(err, ledger.ErrDecisionNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no routing decision for interaction_id", nil)
		return
	}
	if err != nil {
		d.Logger.Error("replay failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "replay failed", nil)
		return
	}

	writeJSON(w, http.StatusOK, ReplayResponse{
		ReplayPossible:  result.ReplayPossible,
		ReplayDeviation: result.ReplayDeviation,
		DeviationReason: result.DeviationReason,
		OriginalModelID: result.OriginalModelID,
		ReplayModelID:   result.ReplayModelID,
	})
}

// handleListCapabilities implements GET /api/modelgate/capabilities.
func (d *Dependencies) handleListCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := d.Registry.ListCapabilities(r.Context())
	if err != nil {
		d.Logger.Error("list capabilities failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "listing failed", nil)
		return
	}

	resp := make([]CapabilityResp, 0, len(caps))
	for _, c := range caps {
		resp = append(resp, CapabilityResp{
			Key:         c.Key,
			DisplayName: c.DisplayName,
			Description: c.Description,
			CreatedAt:   c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListModels implements GET /api/modelgate/models.
func (d *Dependencies) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := d.Registry.ListModels(r.Context())
	if err != nil {
		d.Logger.Error("list models failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "listing failed", nil)
		return
	}

	resp := make([]ModelResp, 0, len(models))
	for _, m := range models {
		resp = append(resp, ModelResp{
			ID:          m.ID,
			Slug:        m.Slug,
			UnitCost:    m.UnitCost,
			QualityTier: m.QualityTier,
			IsActive:    m.IsActive,
			IsEligible:  m.IsEligible,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// auditListParams translates the query string into listing filters.
func auditListParams(q url.Values, tenantID string) auditlog.ListEntriesParams {
	params := auditlog.ListEntriesParams{TenantID: tenantID, Page: 1, PageSize: 50}

	if v := q.Get("persona_id"); v != "" {
		params.PersonaID = &v
	}
	if v := q.Get("user_id"); v != "" {
		params.UserID = &v
	}
	if v := q.Get("endpoint"); v != "" {
		params.Endpoint = &v
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			params.Page = n
		}
	}
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			params.PageSize = n
		}
	}
	return params
}

// handleGetDecision implements GET /api/modelgate/decisions/{interaction_id}.
func (d *Dependencies) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	interactionID := r.PathValue("interaction_id")
	decision, err := d.Ledger.Get(r.Context(), interactionID)
	if err != nil {
		d.Logger.Error("decision lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "lookup failed", nil)
		return
	}
	if decision == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no routing decision for interaction_id", nil)
		return
	}

	writeJSON(w, http.StatusOK, DecisionResp{
		InteractionID: decision.InteractionID,
		CapabilityKey: decision.CapabilityKey,
		PersonaID:     decision.PersonaID,
		PolicyVersion: decision.PolicyVersion,
		ModelID:       decision.ModelID,
		ModelSlug:     decision.ModelSlug,
		RoutingScore:  decision.RoutingScore,
		RoutingReason: decision.RoutingReason,
		Channel:       decision.Channel,
		CreatedAt:     decision.CreatedAt,
	})
}

// handleListAuditEntries implements GET /api/modelgate/audit/envelopes.
func (d *Dependencies) handleListAuditEntries(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeError(w, http.StatusServiceUnavailable, "AUDIT_UNAVAILABLE", "audit store is not configured", nil)
		return
	}

	q := r.URL.Query()
	tenantID := q.Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "tenant_id is required", nil)
		return
	}

	params := auditListParams(q, tenantID)
	entries, total, err := d.Reader.ListEntries(r.Context(), params)
	if err != nil {
		d.Logger.Error("audit listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "audit listing failed", nil)
		return
	}

	resp := AuditListResp{
		Entries:  make([]AuditEntryResp, 0, len(entries)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, AuditEntryResp{
			ContentHash:     e.ContentHash,
			EnvelopeVersion: e.EnvelopeVersion,
			TenantID:        e.TenantID,
			UserID:          e.UserID,
			PersonaID:       e.PersonaID,
			Vertical:        e.Vertical,
			SubVertical:     e.SubVertical,
			Region:          e.Region,
			Endpoint:        e.Endpoint,
			Method:          e.Method,
			CorrelationID:   e.CorrelationID,
			CreatedAt:       e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
