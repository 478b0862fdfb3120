package api

import (
	"net/http"

	"github.com/revenuelab/modelgate/internal/auditlog"
	"github.com/revenuelab/modelgate/internal/auth"
	"github.com/revenuelab/modelgate/internal/authz"
	"github.com/revenuelab/modelgate/internal/ledger"
	"github.com/revenuelab/modelgate/internal/registry"
	"github.com/revenuelab/modelgate/internal/router"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Registry   registry.Registry
	Authorizer *authz.Authorizer
	Router     *router.Router
	Ledger     ledger.Ledger
	Verifier   *ledger.Verifier
	Auditor    auditlog.Writer
	Reader     *auditlog.Reader // nil if ClickHouse unavailable
	Auth       auth.Authenticator
	Logger     *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Gate endpoints (service-key auth + envelope gate)
	mux.HandleFunc("POST /v1/gate/authorize",
		deps.authMiddleware(deps.envelopeGate(deps.handleAuthorize)))
	mux.HandleFunc("POST /v1/gate/route",
		deps.authMiddleware(deps.envelopeGate(deps.handleRoute)))
	mux.HandleFunc("GET /v1/gate/replay/{interaction_id}",
		deps.authMiddleware(deps.handleReplay))

	// Catalog and decision reads (no auth — dashboard auth added later)
	mux.HandleFunc("GET /api/modelgate/capabilities", deps.handleListCapabilities)
	mux.HandleFunc("GET /api/modelgate/models", deps.handleListModels)
	mux.HandleFunc("GET /api/modelgate/decisions/{interaction_id}", deps.handleGetDecision)
	mux.HandleFunc("GET /api/modelgate/audit/envelopes", deps.handleListAuditEntries)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
