package repository

import (
	"context"
	"crypto/ed25519"
	"time"
)

// CredentialStatus indica el estado de una credencial.
type CredentialStatus string

const (
	CredentialStatusActive  CredentialStatus = "active"
	CredentialStatusRevoked CredentialStatus = "revoked"
)

// ApprovalStatus indica el estado de aprobación de un principal.
// Es independiente del estado de sus credenciales: una credencial activa
// de un principal suspendido sigue sin poder autenticar.
type ApprovalStatus string

const (
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalSuspended ApprovalStatus = "suspended"
)

// CredentialKey es la variante etiquetada del material criptográfico.
// El dispatch por scheme es exhaustivo via type switch; no se infiere
// el esquema de qué headers llegaron.
type CredentialKey interface {
	Scheme() string
}

// MACKey es el secreto compartido del esquema simétrico (HMAC-SHA256).
type MACKey struct {
	// Secret nunca se loguea ni se compara por igualdad directa.
	Secret []byte
}

func (MACKey) Scheme() string { return "mac" }

// PublicKey es el material del esquema asimétrico legacy (Ed25519).
type PublicKey struct {
	Material ed25519.PublicKey
}

func (PublicKey) Scheme() string { return "public_key" }

// Credential es una credencial de API: un key_id opaco más material de firma,
// acotada a un conjunto de scopes.
//
// Lifecycle: se crea out-of-band en emisión; solo muta por revocación o por
// el touch de last_used. Nunca se borra, solo se voltea el status, para que
// los registros de auditoría históricos sigan siendo resolubles.
type Credential struct {
	ID          string
	PrincipalID string
	KeyID       string // opaco, único, ej: "ak_9f2c81d4b7a6"
	Key         CredentialKey
	Scopes      ScopeSet
	Status      CredentialStatus
	CreatedAt   time.Time
	LastUsedAt  *time.Time // advisory, no participa en la decisión
}

// Active reports whether the credential itself is usable.
func (c *Credential) Active() bool {
	return c != nil && c.Status == CredentialStatusActive
}

// Principal es la entidad dueña de una o más credenciales (agente o service account).
type Principal struct {
	ID             string
	Name           string
	ApprovalStatus ApprovalStatus
	CreatedAt      time.Time
}

// CredentialRepository define el acceso a credenciales.
type CredentialRepository interface {
	// FindByKeyID busca una credencial por su key_id exacto.
	// Retorna ErrNotFound si no existe.
	FindByKeyID(ctx context.Context, keyID string) (*Credential, error)

	// FindByKeyPrefix lista candidatas cuyo key_id empieza con prefix.
	// Los callers NUNCA aceptan un match solo por prefijo: cada candidata
	// se confirma con la verificación de firma de su propio esquema.
	FindByKeyPrefix(ctx context.Context, prefix string) ([]*Credential, error)

	// TouchLastUsed actualiza last_used_at (best-effort, fire-and-forget).
	TouchLastUsed(ctx context.Context, credentialID string) error

	// Revoke marca la credencial como revocada.
	Revoke(ctx context.Context, credentialID string) error
}

// PrincipalRepository define el acceso a principals.
type PrincipalRepository interface {
	// FindByID retorna ErrNotFound si el principal no existe.
	FindByID(ctx context.Context, id string) (*Principal, error)
}
