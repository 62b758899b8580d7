package auth

import "time"

// DenialReason es el código estable de denegación, mapeado 1:1 al error code
// del wire para que los clientes distingan retryable de no-retryable sin
// parsear mensajes.
type DenialReason string

const (
	ReasonMissingHeaders   DenialReason = "missing_headers"
	ReasonTimestampInvalid DenialReason = "timestamp_invalid"
	ReasonUnauthorized     DenialReason = "unauthorized"
	ReasonForbidden        DenialReason = "forbidden"
	ReasonRateLimited      DenialReason = "rate_limited"
	ReasonNonceReused      DenialReason = "nonce_reused"
	ReasonSignatureInvalid DenialReason = "signature_invalid"
)

// Denial es el resultado tipado de una autenticación fallida.
// El orquestador nunca lanza panics ni propaga errores internos más allá de
// su boundary: todo modo de fallo es un valor de este tipo.
type Denial struct {
	Reason     DenialReason
	Message    string
	RetryAfter time.Duration // solo para rate_limited
}

// Los mensajes son deliberadamente opacos: una denegación de firma nunca
// revela qué campo de la canonicalización falló (anti oracle-guessing).
var denialMessages = map[DenialReason]string{
	ReasonMissingHeaders:   "required authentication headers are missing or malformed",
	ReasonTimestampInvalid: "request timestamp is outside the accepted window",
	ReasonUnauthorized:     "unknown or unusable credential",
	ReasonForbidden:        "credential lacks a required scope",
	ReasonRateLimited:      "rate limit exceeded",
	ReasonNonceReused:      "nonce already used",
	ReasonSignatureInvalid: "signature verification failed",
}

func newDenial(reason DenialReason) *Denial {
	return &Denial{Reason: reason, Message: denialMessages[reason]}
}

// Retryable reporta si el cliente puede reintentar el mismo request
// (con backoff) en vez de tratarlo como fallo definitivo.
func (d *Denial) Retryable() bool {
	return d.Reason == ReasonRateLimited || d.Reason == ReasonTimestampInvalid
}

// AuthContext es el contexto autenticado que recibe la lógica de negocio.
type AuthContext struct {
	PrincipalID   string
	CredentialID  string
	KeyID         string
	GrantedScopes []string
	RequestID     string
}
