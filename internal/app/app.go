package app

import (
	"context"

	"github.com/dropDatabas3/agentgate/internal/audit"
	"github.com/dropDatabas3/agentgate/internal/auth"
	"github.com/dropDatabas3/agentgate/internal/auth/credential"
	"github.com/dropDatabas3/agentgate/internal/auth/nonce"
	"github.com/dropDatabas3/agentgate/internal/auth/ratelimit"
	"github.com/dropDatabas3/agentgate/internal/domain/repository"
)

// Container agrupa las dependencias ya armadas que los handlers comparten.
type Container struct {
	Credentials repository.CredentialRepository
	Principals  repository.PrincipalRepository
	Nonces      repository.NonceRepository
	AuditRepo   repository.AuditRepository

	Resolver *credential.Resolver
	Limiter  ratelimit.Limiter
	Ledger   *nonce.Ledger
	Auditor  *audit.Writer
	Orch     *auth.Orchestrator

	// AdminKeyHash es el hash PHC (argon2id) de la API key administrativa.
	// Vacío deshabilita la superficie admin.
	AdminKeyHash string

	// Ping verifica el backend de persistencia; nil cuando el store es
	// en memoria.
	Ping func(ctx context.Context) error
}
