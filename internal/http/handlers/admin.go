package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/agentgate/internal/app"
	"github.com/dropDatabas3/agentgate/internal/auth/ratelimit"
	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	httpx "github.com/dropDatabas3/agentgate/internal/http"
	"github.com/dropDatabas3/agentgate/internal/observability/logger"
)

const maxAuditTail = 500

var validDimensions = map[string]ratelimit.Dimension{
	string(ratelimit.DimensionOrigin):     ratelimit.DimensionOrigin,
	string(ratelimit.DimensionCredential): ratelimit.DimensionCredential,
	string(ratelimit.DimensionOperation):  ratelimit.DimensionOperation,
}

type AdminHandler struct{ c *app.Container }

func NewAdminHandler(c *app.Container) *AdminHandler { return &AdminHandler{c: c} }

// Freeze: POST /v1/admin/freeze {dimension, key, duration_seconds}
func (h *AdminHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Dimension       string `json:"dimension"`
		Key             string `json:"key"`
		DurationSeconds int64  `json:"duration_seconds"`
	}
	if !httpx.ReadJSON(w, r, &body) {
		return
	}
	dim, key, ok := h.dimKey(w, body.Dimension, body.Key)
	if !ok {
		return
	}
	d := time.Duration(body.DurationSeconds) * time.Second
	if d <= 0 {
		d = 15 * time.Minute
	}
	if err := h.c.Limiter.Freeze(r.Context(), dim, key, d); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo aplicar el freeze", 1500)
		return
	}
	logger.From(r.Context()).Info("admin freeze",
		logger.Dimension(string(dim)),
		logger.Key(key),
		logger.Duration(d),
	)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"frozen":       true,
		"dimension":    string(dim),
		"key":          key,
		"frozen_until": time.Now().UTC().Add(d).Format(time.RFC3339),
	})
}

// Unfreeze: POST /v1/admin/unfreeze {dimension, key}
func (h *AdminHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Dimension string `json:"dimension"`
		Key       string `json:"key"`
	}
	if !httpx.ReadJSON(w, r, &body) {
		return
	}
	dim, key, ok := h.dimKey(w, body.Dimension, body.Key)
	if !ok {
		return
	}
	if err := h.c.Limiter.Unfreeze(r.Context(), dim, key); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo levantar el freeze", 1500)
		return
	}
	logger.From(r.Context()).Info("admin unfreeze",
		logger.Dimension(string(dim)),
		logger.Key(key),
	)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"frozen":    false,
		"dimension": string(dim),
		"key":       key,
	})
}

// RevokeCredential: POST /v1/admin/credentials/revoke {credential_id, key_id}
// key_id es opcional; con él invalidamos también el caché del resolver.
func (h *AdminHandler) RevokeCredential(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CredentialID string `json:"credential_id"`
		KeyID        string `json:"key_id"`
	}
	if !httpx.ReadJSON(w, r, &body) {
		return
	}
	credID := strings.TrimSpace(body.CredentialID)
	if credID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_fields", "credential_id requerido", 1405)
		return
	}
	if err := h.c.Credentials.Revoke(r.Context(), credID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "credencial no encontrada", 1404)
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo revocar", 1500)
		return
	}
	if keyID := strings.TrimSpace(body.KeyID); keyID != "" {
		h.c.Resolver.Invalidate(keyID)
	}
	logger.From(r.Context()).Info("credential revoked",
		logger.CredentialID(credID),
	)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"revoked": true, "credential_id": credID})
}

// AuditTail: GET /v1/admin/audit?n=100
func (h *AdminHandler) AuditTail(w http.ResponseWriter, r *http.Request) {
	n := 100
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_param", "n debe ser un entero positivo", 1405)
			return
		}
		n = v
	}
	if n > maxAuditTail {
		n = maxAuditTail
	}
	recs, err := h.c.AuditRepo.Tail(r.Context(), n)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo leer auditoría", 1500)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (h *AdminHandler) dimKey(w http.ResponseWriter, rawDim, rawKey string) (ratelimit.Dimension, string, bool) {
	dim, ok := validDimensions[strings.TrimSpace(rawDim)]
	key := strings.TrimSpace(rawKey)
	if !ok || key == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_param", "dimension y key requeridos; dimension es origin|credential|operation", 1405)
		return "", "", false
	}
	return dim, key, true
}
