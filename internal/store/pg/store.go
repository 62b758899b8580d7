// Package pg implementa los repositorios sobre PostgreSQL via pgx.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/agentgate/internal/observability/logger"
)

// Store agrupa el pool y expone los repositorios concretos.
type Store struct{ pool *pgxpool.Pool }

// Config es el tuning opcional del pool.
type Config struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// New abre el pool. El ping de arranque es non-blocking: la app puede
// arrancar aunque la DB esté temporalmente caída.
func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	log := logger.Named("pg")
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno para usos avanzados (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Ping verifica la conexión.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Credentials retorna el repositorio de credenciales/principals.
func (s *Store) Credentials() *CredentialRepo { return &CredentialRepo{pool: s.pool} }

// Nonces retorna el ledger durable de nonces.
func (s *Store) Nonces() *NonceRepo { return &NonceRepo{pool: s.pool} }

// Audit retorna el sink de auditoría.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{pool: s.pool} }
