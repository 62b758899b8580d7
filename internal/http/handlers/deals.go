package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	httpx "github.com/dropDatabas3/agentgate/internal/http"
	"github.com/dropDatabas3/agentgate/internal/http/middlewares"
)

// Los deals viven en el sistema downstream; acá solo demostramos que el
// request sobrevivió el pipeline completo y exponemos los hechos de auth
// que el backend recibiría.

type dealResponse struct {
	ID          string   `json:"id"`
	PrincipalID string   `json:"principal_id"`
	Title       string   `json:"title"`
	Scopes      []string `json:"granted_scopes"`
	CreatedAt   string   `json:"created_at"`
}

// NewDealCreateHandler: POST /v1/deals.
func NewDealCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac := middlewares.MustGetAuth(r.Context())

		var body struct {
			Title string `json:"title"`
		}
		if !httpx.ReadJSON(w, r, &body) {
			return
		}
		title := strings.TrimSpace(body.Title)
		if title == "" {
			httpx.WriteError(w, http.StatusBadRequest, "missing_fields", "title requerido", 1405)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, dealResponse{
			ID:          uuid.NewString(),
			PrincipalID: ac.PrincipalID,
			Title:       title,
			Scopes:      ac.GrantedScopes,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// NewDealListHandler: GET /v1/deals.
func NewDealListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac := middlewares.MustGetAuth(r.Context())
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"principal_id": ac.PrincipalID,
			"deals":        []dealResponse{},
		})
	}
}
