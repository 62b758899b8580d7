package middlewares

import (
	"net/http"

	httpx "github.com/dropDatabas3/agentgate/internal/http"
	"github.com/dropDatabas3/agentgate/internal/observability/logger"
	"github.com/dropDatabas3/agentgate/internal/security/keyhash"
)

// HeaderAdminKey transporta la API key administrativa en texto plano; solo
// su hash argon2id vive en la configuración.
const HeaderAdminKey = "X-Admin-Api-Key"

// RequireAdminKey protege la superficie administrativa comparando la key
// presentada contra el hash PHC configurado. Sin hash configurado la
// superficie admin queda cerrada por completo.
func RequireAdminKey(phcHash string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if phcHash == "" {
				httpx.WriteError(w, http.StatusNotFound, "not_found", "recurso no encontrado", 1404)
				return
			}
			presented := r.Header.Get(HeaderAdminKey)
			if presented == "" || !keyhash.Verify(presented, phcHash) {
				logger.From(r.Context()).Warn("admin key rejected",
					logger.Origin(ClientIP(r)),
				)
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "credenciales administrativas inválidas", 1402)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
