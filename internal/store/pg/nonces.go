package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
)

// NonceRepo implementa repository.NonceRepository.
//
// La unique constraint (principal_id, nonce) más el insert con
// ON CONFLICT DO NOTHING son la única señal de "quién ganó": la DB
// serializa inserts concurrentes del mismo par sin locking propio.
type NonceRepo struct{ pool *pgxpool.Pool }

// Record implementa NonceRepository.
func (r *NonceRepo) Record(ctx context.Context, principalID, nonce string, seenAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO nonces (principal_id, nonce, first_seen_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (principal_id, nonce) DO NOTHING`,
		principalID, nonce, seenAt.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Recent implementa NonceRepository.
func (r *NonceRepo) Recent(ctx context.Context, cutoff time.Time) ([]repository.NonceRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT principal_id, nonce, first_seen_at FROM nonces WHERE first_seen_at >= $1`,
		cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.NonceRecord
	for rows.Next() {
		var rec repository.NonceRecord
		if err := rows.Scan(&rec.PrincipalID, &rec.Nonce, &rec.FirstSeenAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune implementa NonceRepository.
func (r *NonceRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM nonces WHERE first_seen_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
