package repository

import (
	"context"
	"time"
)

// Decision es el resultado de un intento de autenticación.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// AuditRecord es el registro append-only de un intento de autenticación.
// Nunca se muta después del insert. Captura los hechos parciales reunidos
// hasta el estado terminal (ej: principal resuelto aunque la denegación
// ocurra después) para forense.
type AuditRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	PrincipalID  string    `json:"principal_id,omitempty"`  // "" si nunca se resolvió
	CredentialID string    `json:"credential_id,omitempty"` // "" si nunca se resolvió
	KeyID        string    `json:"key_id,omitempty"`
	Origin       string    `json:"origin"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Operation    string    `json:"operation,omitempty"` // operación sensible declarada, si la hay
	Nonce        string    `json:"nonce,omitempty"`
	// ClockSkew es el skew computado contra el reloj del verificador.
	ClockSkew time.Duration `json:"clock_skew"`
	// SignatureValid solo es significativo si la verificación llegó a
	// ejecutarse (SignatureTried).
	SignatureValid bool     `json:"signature_valid"`
	SignatureTried bool     `json:"signature_tried"`
	Decision       Decision `json:"decision"`
	Reason         string   `json:"reason,omitempty"` // código de denial cuando Decision == deny
}

// AuditRepository define el sink durable de registros de auditoría.
type AuditRepository interface {
	// Append inserta un registro. El registro es inmutable desde ese momento.
	Append(ctx context.Context, rec *AuditRecord) error

	// Tail retorna los últimos n registros, más reciente primero.
	Tail(ctx context.Context, n int) ([]*AuditRecord, error)
}

// NonceRecord es una entrada del ledger de nonces: (principal, nonce) → first_seen.
type NonceRecord struct {
	PrincipalID string
	Nonce       string
	FirstSeenAt time.Time
}

// NonceRepository define el almacenamiento durable del ledger de nonces.
type NonceRepository interface {
	// Record intenta registrar (principalID, nonce) atómicamente.
	// Retorna true si la inserción ganó (nonce nunca visto), false si ya
	// existía. La constraint de unicidad del store es la única fuente de
	// verdad de "quién ganó"; nunca read-then-write.
	Record(ctx context.Context, principalID, nonce string, seenAt time.Time) (bool, error)

	// Recent retorna los registros vistos desde cutoff (para hidratar caches).
	Recent(ctx context.Context, cutoff time.Time) ([]NonceRecord, error)

	// Prune elimina registros anteriores a cutoff. Solo higiene de storage:
	// con retención default (0 = para siempre) nunca se invoca.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}
