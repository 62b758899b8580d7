// Package credential resuelve key identifiers a credenciales activas.
package credential

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	"github.com/dropDatabas3/agentgate/internal/observability/logger"
	"github.com/dropDatabas3/agentgate/internal/validation"
)

const (
	// PrefixLen es el largo de la forma corta del key id: "ak_" + 8 hex.
	PrefixLen = 11

	cacheTTL     = 30 * time.Second
	cacheCleanup = 2 * time.Minute
	touchTimeout = 2 * time.Second
)

// Resolver busca credenciales por key_id completo o por su forma de prefijo
// reconocida. Una credencial revocada o un principal no aprobado resuelven
// como not-found para el caller: un solo camino de denegación en la capa de
// auditoría, distinguibles solo en logs.
type Resolver struct {
	creds      repository.CredentialRepository
	principals repository.PrincipalRepository
	cache      *gocache.Cache
	log        *zap.Logger
}

// NewResolver construye un Resolver con cache TTL sobre hits exactos.
func NewResolver(creds repository.CredentialRepository, principals repository.PrincipalRepository) *Resolver {
	return &Resolver{
		creds:      creds,
		principals: principals,
		cache:      gocache.New(cacheTTL, cacheCleanup),
		log:        logger.Named("credential"),
	}
}

// Resolve retorna las credenciales candidatas para keyID.
//
// Forma completa: a lo sumo una candidata. Forma corta (prefijo): puede haber
// varias; el caller las confirma una a una con la verificación de firma del
// esquema propio de cada una, nunca por igualdad de secreto ni por el prefijo
// solo.
//
// Retorna repository.ErrNotFound cuando ninguna candidata activa y aprobada
// existe.
func (r *Resolver) Resolve(ctx context.Context, keyID string) ([]*repository.Credential, error) {
	if !validation.ValidKeyID(keyID) {
		return nil, repository.ErrInvalidInput
	}

	if v, ok := r.cache.Get(keyID); ok {
		if cred, ok := v.(*repository.Credential); ok {
			return []*repository.Credential{cred}, nil
		}
	}

	cred, err := r.creds.FindByKeyID(ctx, keyID)
	switch {
	case err == nil:
		if !r.vet(ctx, cred) {
			return nil, repository.ErrNotFound
		}
		r.cache.SetDefault(keyID, cred)
		return []*repository.Credential{cred}, nil
	case errors.Is(err, repository.ErrNotFound):
		// puede ser la forma corta; seguimos abajo
	default:
		return nil, err
	}

	if len(keyID) != PrefixLen {
		return nil, repository.ErrNotFound
	}
	candidates, err := r.creds.FindByKeyPrefix(ctx, keyID)
	if err != nil {
		return nil, err
	}
	vetted := candidates[:0]
	for _, c := range candidates {
		if r.vet(ctx, c) {
			vetted = append(vetted, c)
		}
	}
	if len(vetted) == 0 {
		return nil, repository.ErrNotFound
	}
	return vetted, nil
}

// vet aplica los dos filtros terminales: status de la credencial y
// approval del principal dueño. Ambos se loguean distinto pero degradan
// al mismo not-found.
func (r *Resolver) vet(ctx context.Context, cred *repository.Credential) bool {
	if !cred.Active() {
		r.log.Debug("credential not active",
			logger.CredentialID(cred.ID),
			logger.String("status", string(cred.Status)))
		return false
	}
	p, err := r.principals.FindByID(ctx, cred.PrincipalID)
	if err != nil {
		r.log.Warn("principal lookup failed",
			logger.PrincipalID(cred.PrincipalID), logger.Err(err))
		return false
	}
	if p.ApprovalStatus != repository.ApprovalApproved {
		r.log.Debug("principal not approved",
			logger.PrincipalID(p.ID),
			logger.String("approval_status", string(p.ApprovalStatus)))
		return false
	}
	return true
}

// Touch actualiza last_used_at en background. Best-effort: no participa en la
// decisión y un fallo solo se loguea.
func (r *Resolver) Touch(credentialID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := r.creds.TouchLastUsed(ctx, credentialID); err != nil {
			r.log.Debug("touch last_used failed",
				logger.CredentialID(credentialID), logger.Err(err))
		}
	}()
}

// Invalidate elimina una entrada del cache (ej: tras revocar).
func (r *Resolver) Invalidate(keyID string) {
	r.cache.Delete(keyID)
}
