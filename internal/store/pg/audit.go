package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
)

// AuditRepo implementa repository.AuditRepository. Append-only: no hay
// UPDATE ni DELETE sobre la tabla.
type AuditRepo struct{ pool *pgxpool.Pool }

// Append implementa AuditRepository.
func (r *AuditRepo) Append(ctx context.Context, rec *repository.AuditRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_records
		   (id, ts, request_id, principal_id, credential_id, key_id, origin,
		    method, path, operation, nonce, clock_skew_ms, signature_tried,
		    signature_valid, decision, reason)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		rec.ID, rec.Timestamp.UTC(), rec.RequestID,
		nullable(rec.PrincipalID), nullable(rec.CredentialID), nullable(rec.KeyID),
		rec.Origin, rec.Method, rec.Path, nullable(rec.Operation), nullable(rec.Nonce),
		rec.ClockSkew.Milliseconds(), rec.SignatureTried, rec.SignatureValid,
		string(rec.Decision), nullable(rec.Reason))
	return err
}

// Tail implementa AuditRepository.
func (r *AuditRepo) Tail(ctx context.Context, n int) ([]*repository.AuditRecord, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, ts, request_id, COALESCE(principal_id,''), COALESCE(credential_id,''),
		        COALESCE(key_id,''), origin, method, path, COALESCE(operation,''),
		        COALESCE(nonce,''), clock_skew_ms, signature_tried, signature_valid,
		        decision, COALESCE(reason,'')
		   FROM audit_records ORDER BY ts DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*repository.AuditRecord
	for rows.Next() {
		var (
			rec    repository.AuditRecord
			skewMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.RequestID, &rec.PrincipalID,
			&rec.CredentialID, &rec.KeyID, &rec.Origin, &rec.Method, &rec.Path,
			&rec.Operation, &rec.Nonce, &skewMs, &rec.SignatureTried,
			&rec.SignatureValid, &rec.Decision, &rec.Reason); err != nil {
			return nil, err
		}
		rec.ClockSkew = millis(skewMs)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
