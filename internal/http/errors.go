package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dropDatabas3/agentgate/internal/auth"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorCode        int    `json:"error_code,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
	RetryAfter       int    `json:"retry_after,omitempty"`
}

// Mapeo 1:1 y estable entre DenialReason y (status, error_code) del wire.
// Los clientes programan contra error_code, no contra el mensaje.
var denialWire = map[auth.DenialReason]struct {
	status int
	code   int
}{
	auth.ReasonMissingHeaders:   {http.StatusBadRequest, 1400},
	auth.ReasonTimestampInvalid: {http.StatusUnauthorized, 1401},
	auth.ReasonUnauthorized:     {http.StatusUnauthorized, 1402},
	auth.ReasonForbidden:        {http.StatusForbidden, 1403},
	auth.ReasonRateLimited:      {http.StatusTooManyRequests, 1429},
	auth.ReasonNonceReused:      {http.StatusUnauthorized, 1409},
	auth.ReasonSignatureInvalid: {http.StatusUnauthorized, 1406},
}

// WriteDenial serializa una denegación de autenticación.
// rate_limited agrega Retry-After; ninguna denegación de firma explica qué
// campo de la canonicalización falló.
func WriteDenial(w http.ResponseWriter, d *auth.Denial) {
	wire, ok := denialWire[d.Reason]
	if !ok {
		wire.status, wire.code = http.StatusUnauthorized, 1402
	}
	retrySecs := 0
	if d.RetryAfter > 0 {
		retrySecs = int(d.RetryAfter.Seconds() + 0.5)
		if retrySecs < 1 {
			retrySecs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(wire.status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            string(d.Reason),
		ErrorDescription: d.Message,
		ErrorCode:        wire.code,
		RequestID:        rid,
		RetryAfter:       retrySecs,
	})
}

// WriteError responde un error genérico con el envelope estándar.
func WriteError(w http.ResponseWriter, status int, code, desc string, errCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		ErrorCode:        errCode,
		RequestID:        rid,
	})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica JSON de forma tolerante (NO falla por campos
// desconocidos). Valida Content-Type y limita el body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json", 1102)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido", 1102)
		return false
	}
	return true
}
