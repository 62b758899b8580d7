package pg

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	"github.com/dropDatabas3/agentgate/internal/security/secretbox"
)

// maxPrefixCandidates acota el scan por prefijo: el resolver nunca necesita
// más candidatas que esto (un prefijo de 8 hex colisionando más de 16 veces
// indica un problema de emisión, no de lookup).
const maxPrefixCandidates = 16

// CredentialRepo implementa repository.CredentialRepository y
// repository.PrincipalRepository sobre PostgreSQL.
type CredentialRepo struct{ pool *pgxpool.Pool }

const credentialCols = `id, principal_id, key_id, scheme, secret_enc, public_key, scopes, status, created_at, last_used_at`

func scanCredential(row pgx.Row) (*repository.Credential, error) {
	var (
		c         repository.Credential
		scheme    string
		secretEnc *string
		publicKey *string
		scopes    []string
		lastUsed  *time.Time
	)
	if err := row.Scan(&c.ID, &c.PrincipalID, &c.KeyID, &scheme, &secretEnc, &publicKey, &scopes, &c.Status, &c.CreatedAt, &lastUsed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	c.Scopes = repository.ParseScopeSet(scopes)
	c.LastUsedAt = lastUsed

	switch scheme {
	case "mac":
		if secretEnc == nil {
			return nil, fmt.Errorf("credential %s: mac scheme without secret", c.ID)
		}
		// El secreto vive cifrado en reposo; se descifra al cargar.
		plain, err := secretbox.Decrypt(*secretEnc)
		if err != nil {
			return nil, fmt.Errorf("credential %s: decrypt secret: %w", c.ID, err)
		}
		c.Key = repository.MACKey{Secret: []byte(plain)}
	case "public_key":
		if publicKey == nil {
			return nil, fmt.Errorf("credential %s: public_key scheme without material", c.ID)
		}
		raw, err := base64.StdEncoding.DecodeString(*publicKey)
		if err != nil {
			return nil, fmt.Errorf("credential %s: decode public key: %w", c.ID, err)
		}
		c.Key = repository.PublicKey{Material: ed25519.PublicKey(raw)}
	default:
		return nil, fmt.Errorf("credential %s: unknown scheme %q", c.ID, scheme)
	}
	return &c, nil
}

// FindByKeyID implementa CredentialRepository.
func (r *CredentialRepo) FindByKeyID(ctx context.Context, keyID string) (*repository.Credential, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+credentialCols+` FROM credentials WHERE key_id = $1`, keyID)
	return scanCredential(row)
}

// FindByKeyPrefix implementa CredentialRepository.
func (r *CredentialRepo) FindByKeyPrefix(ctx context.Context, prefix string) ([]*repository.Credential, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+credentialCols+` FROM credentials
		  WHERE key_id LIKE $1 || '%' AND status = 'active'
		  ORDER BY created_at
		  LIMIT $2`, prefix, maxPrefixCandidates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*repository.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TouchLastUsed implementa CredentialRepository.
func (r *CredentialRepo) TouchLastUsed(ctx context.Context, credentialID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE credentials SET last_used_at = now() WHERE id = $1`, credentialID)
	return err
}

// Revoke implementa CredentialRepository. Nunca borra: solo voltea el status
// para que la auditoría histórica siga resolviendo la credencial.
func (r *CredentialRepo) Revoke(ctx context.Context, credentialID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE credentials SET status = 'revoked' WHERE id = $1`, credentialID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// FindByID implementa PrincipalRepository.
func (r *CredentialRepo) FindByID(ctx context.Context, id string) (*repository.Principal, error) {
	var p repository.Principal
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, approval_status, created_at FROM principals WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.ApprovalStatus, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
