// Package audit appends one immutable record per authentication decision.
//
// El sink es fail-open para observabilidad, no para seguridad: un timeout
// escribiendo auditoría se loguea y se descarta, nunca bloquea ni deniega
// el request. (El caso inverso — ledger/limiter — lo decide el orquestador.)
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	"github.com/dropDatabas3/agentgate/internal/observability/logger"
)

const defaultTimeout = 2 * time.Second

// Writer escribe registros de auditoría con timeout corto y contexto
// desacoplado del request (un disconnect del cliente no pierde el registro).
type Writer struct {
	repo    repository.AuditRepository
	timeout time.Duration
	log     *zap.Logger
}

// NewWriter construye un Writer sobre el repositorio dado.
func NewWriter(repo repository.AuditRepository) *Writer {
	return &Writer{
		repo:    repo,
		timeout: defaultTimeout,
		log:     logger.Named("audit"),
	}
}

// Append persiste el registro. Nunca retorna error al caller: los fallos se
// loguean con el registro completo para no perder el rastro forense.
func (w *Writer) Append(rec *repository.AuditRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.repo.Append(ctx, rec); err != nil {
		w.log.Warn("audit append failed",
			logger.Err(err),
			logger.RequestID(rec.RequestID),
			logger.PrincipalID(rec.PrincipalID),
			logger.Origin(rec.Origin),
			logger.Decision(string(rec.Decision)),
			logger.Reason(rec.Reason))
		return
	}

	w.log.Debug("auth decision",
		logger.RequestID(rec.RequestID),
		logger.Decision(string(rec.Decision)),
		logger.Reason(rec.Reason),
		logger.PrincipalID(rec.PrincipalID))
}
