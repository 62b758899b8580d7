package handlers

import (
	"net/http"
	"os"

	"github.com/dropDatabas3/agentgate/internal/app"
	httpx "github.com/dropDatabas3/agentgate/internal/http"
)

// NewHealthzHandler: liveness plano, sin tocar dependencias.
func NewHealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NewReadyzHandler verifica el backend de persistencia antes de declararse
// listo. El store en memoria no tiene ping y se considera siempre listo.
func NewReadyzHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if v := os.Getenv("SERVICE_VERSION"); v != "" {
			w.Header().Set("X-Service-Version", v)
		}
		if c.Ping != nil {
			if err := c.Ping(r.Context()); err != nil {
				httpx.WriteError(w, http.StatusServiceUnavailable, "db_unavailable", "database unavailable", 2001)
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
