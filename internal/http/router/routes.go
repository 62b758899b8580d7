// Package router define las rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/agentgate/internal/app"
	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	httpx "github.com/dropDatabas3/agentgate/internal/http"
	"github.com/dropDatabas3/agentgate/internal/http/handlers"
	mw "github.com/dropDatabas3/agentgate/internal/http/middlewares"
)

// New arma el router completo: health, recursos firmados del marketplace y
// superficie administrativa. Cada ruta firmada declara sus scopes y, si
// aplica, su operación sensible.
func New(c *app.Container) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())

	// Health: ni firmado ni admin.
	r.Method(http.MethodGet, "/healthz", instrument("/healthz", handlers.NewHealthzHandler()))
	r.Method(http.MethodGet, "/readyz", instrument("/readyz", handlers.NewReadyzHandler(c)))

	// Recursos del marketplace detrás del pipeline de autenticación.
	r.Method(http.MethodPost, "/v1/deals", instrument("/v1/deals",
		mw.RequireSigned(c.Orch, "deal_create", repository.ScopeDealsCreate)(handlers.NewDealCreateHandler())))
	r.Method(http.MethodGet, "/v1/deals", instrument("/v1/deals",
		mw.RequireSigned(c.Orch, "", repository.ScopeDealsRead)(handlers.NewDealListHandler())))

	// Superficie administrativa: API key dedicada, nunca firmas de partner.
	admin := handlers.NewAdminHandler(c)
	adminKey := mw.RequireAdminKey(c.AdminKeyHash)
	r.Method(http.MethodPost, "/v1/admin/freeze", instrument("/v1/admin/freeze",
		adminKey(http.HandlerFunc(admin.Freeze))))
	r.Method(http.MethodPost, "/v1/admin/unfreeze", instrument("/v1/admin/unfreeze",
		adminKey(http.HandlerFunc(admin.Unfreeze))))
	r.Method(http.MethodPost, "/v1/admin/credentials/revoke", instrument("/v1/admin/credentials/revoke",
		adminKey(http.HandlerFunc(admin.RevokeCredential))))
	r.Method(http.MethodGet, "/v1/admin/audit", instrument("/v1/admin/audit",
		adminKey(http.HandlerFunc(admin.AuditTail))))

	return r
}

func instrument(pattern string, h http.Handler) http.Handler {
	return httpx.WithHTTPMetrics(pattern, h)
}
