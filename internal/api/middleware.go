package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/revenuelab/modelgate/internal/auditlog"
	"github.com/revenuelab/modelgate/internal/envelope"
	"go.uber.org/zap"
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey int

const (
	envelopeCtxKey contextKey = iota
	serviceCtxKey
)

// envelopeFromContext extracts the sealed envelope from the request context.
func envelopeFromContext(ctx context.Context) *envelope.Envelope {
	v, _ := ctx.Value(envelopeCtxKey).(*envelope.Envelope)
	return v
}

// --- Auth middleware ---

// authMiddleware validates Bearer mgk_ service keys on gate endpoints.
func (d *Dependencies) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid Authorization header", nil)
			return
		}

		svc, err := d.Auth.Authenticate(r.Context(), token)
		if err != nil {
			d.Logger.Warn("service auth failed", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid service key", nil)
			return
		}

		ctx := context.WithValue(r.Context(), serviceCtxKey, svc)
		next(w, r.WithContext(ctx))
	}
}

// --- Envelope gate ---

// envelopeGate builds and validates the sealed envelope for the request,
// attaches it to the context, and fires a best-effort async audit write.
// Identity arrives in headers; a custom persona must also carry an
// X-Envelope-Overrides document with explicit allowed_tools.
func (d *Dependencies) envelopeGate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-ID")
		userID := r.Header.Get("X-User-ID")
		personaID := r.Header.Get("X-Persona-ID")
		if tenantID == "" || userID == "" || personaID == "" {
			writeError(w, http.StatusForbidden, CodeEnvelopeMissing,
				"X-Tenant-ID, X-User-ID and X-Persona-ID headers are required", nil)
			return
		}

		overrides, err := envelope.ParseOverrides([]byte(r.Header.Get("X-Envelope-Overrides")))
		if err != nil {
			writeError(w, http.StatusForbidden, CodeEnvelopeCreationFailed,
				"invalid envelope overrides", map[string]any{"error": err.Error()})
			return
		}

		env, err := envelope.New(envelope.Request{
			TenantID:    tenantID,
			UserID:      userID,
			PersonaID:   personaID,
			Vertical:    r.Header.Get("X-Vertical"),
			SubVertical: r.Header.Get("X-Sub-Vertical"),
			Region:      r.Header.Get("X-Region"),
			Overrides:   overrides,
		})
		if err == envelope.ErrInvalidPersona {
			writeError(w, http.StatusForbidden, CodeEnvelopeCreationFailed,
				"unknown persona requires explicit allowed_tools override",
				map[string]any{"reason": "INVALID_PERSONA", "persona_id": personaID})
			return
		}
		if err != nil {
			d.Logger.Error("envelope construction failed", zap.Error(err))
			writeError(w, http.StatusForbidden, CodeEnvelopeCreationFailed,
				"envelope construction failed", nil)
			return
		}

		result, err := envelope.Validate(env)
		if err != nil {
			d.Logger.Error("envelope validation fault", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "envelope validation fault", nil)
			return
		}
		if !result.Valid {
			writeError(w, http.StatusForbidden, CodeEnvelopeInvalid,
				"envelope failed validation", map[string]any{"violations": result.Violations})
			return
		}

		// Best-effort audit trace. Write never blocks, and a dropped entry
		// never affects the response.
		d.Auditor.Write(&auditlog.EnvelopeAuditEntry{
			ContentHash:     env.ContentHash,
			EnvelopeVersion: env.EnvelopeVersion,
			TenantID:        env.TenantID,
			UserID:          env.UserID,
			PersonaID:       env.PersonaID,
			Vertical:        env.Vertical,
			SubVertical:     env.SubVertical,
			Region:          env.Region,
			Endpoint:        r.URL.Path,
			Method:          r.Method,
			CorrelationID:   uuid.New().String(),
			CreatedAt:       time.Now().UTC(),
		})

		ctx := context.WithValue(r.Context(), envelopeCtxKey, env)
		next(w, r.WithContext(ctx))
	}
}

// --- Tool gate ---

// requireTool rejects the request with 403 TOOL_NOT_ALLOWED when the
// declared tool is absent from the envelope's allowed_tools. Returns true
// when the request may proceed.
func (d *Dependencies) requireTool(w http.ResponseWriter, env *envelope.Envelope, tool string) bool {
	if envelope.IsToolAllowed(env, tool) {
		return true
	}
	writeError(w, http.StatusForbidden, CodeToolNotAllowed,
		"tool is not allowed for this persona",
		map[string]any{"tool": tool, "allowed_tools": env.AllowedTools})
	return false
}

// --- Cost-budget gate ---

// requireBudget rejects the request with 429 COST_BUDGET_EXCEEDED when the
// estimated spend violates the envelope's cost budget. Returns true when
// the request may proceed.
func (d *Dependencies) requireBudget(w http.ResponseWriter, env *envelope.Envelope, estimatedTokens int, unitCostPer1K float64) bool {
	check := envelope.CheckCostBudget(env, estimatedTokens, unitCostPer1K)
	if check.WithinBudget {
		return true
	}
	writeError(w, http.StatusTooManyRequests, CodeCostBudgetExceeded,
		"estimated usage exceeds the envelope cost budget", budgetDetails(check))
	return false
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResp{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- CORS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Tenant-ID, X-User-ID, X-Persona-ID, X-Vertical, X-Sub-Vertical, X-Region, X-Envelope-Overrides")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
