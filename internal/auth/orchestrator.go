// Package auth compone la decisión end-to-end de autenticación para un
// request programático: headers → timestamp → credencial → scopes → rate
// limits (origin, credential, operation) → firma → nonce.
//
// Orden firma/nonce: la firma se verifica ANTES de consumir el nonce, así un
// retry legítimo con la firma corregida no queda envenenado como replay por
// un insert parcial.
package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/agentgate/internal/audit"
	"github.com/dropDatabas3/agentgate/internal/auth/credential"
	"github.com/dropDatabas3/agentgate/internal/auth/nonce"
	"github.com/dropDatabas3/agentgate/internal/auth/ratelimit"
	"github.com/dropDatabas3/agentgate/internal/auth/sign"
	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	"github.com/dropDatabas3/agentgate/internal/metrics"
	"github.com/dropDatabas3/agentgate/internal/observability/logger"
	"github.com/dropDatabas3/agentgate/internal/util"
	"github.com/dropDatabas3/agentgate/internal/validation"
)

// Headers de autenticación del request.
const (
	HeaderKeyID     = "X-Api-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

const (
	// MaxTimestampSkew es la tolerancia simétrica contra el reloj del
	// verificador. Se chequea antes de cualquier lookup.
	MaxTimestampSkew = 5 * time.Minute

	depTimeout = 2 * time.Second
)

// Input son los hechos del request que el middleware extrae para autenticar.
type Input struct {
	RequestID string
	Origin    string // dirección de red del caller
	Method    string
	Path      string
	RawQuery  string
	Operation string // operación sensible declarada por la ruta; "" si no aplica

	KeyID     string
	Timestamp string // header crudo
	Nonce     string
	Signature string
	Body      []byte
}

// Orchestrator compone resolver, limiter, ledger y auditoría.
// No tiene estado mutable compartido: corre una vez por request.
type Orchestrator struct {
	resolver *credential.Resolver
	limiter  ratelimit.Limiter
	ledger   *nonce.Ledger
	audit    *audit.Writer
	now      func() time.Time
	log      *zap.Logger
}

// NewOrchestrator arma el pipeline. nowFn nil usa time.Now.
func NewOrchestrator(resolver *credential.Resolver, limiter ratelimit.Limiter, ledger *nonce.Ledger, auditor *audit.Writer, nowFn func() time.Time) *Orchestrator {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Orchestrator{
		resolver: resolver,
		limiter:  limiter,
		ledger:   ledger,
		audit:    auditor,
		now:      nowFn,
		log:      logger.Named("auth"),
	}
}

// Authenticate ejecuta la cadena completa de checks. Escribe exactamente un
// registro de auditoría por intento, allow o deny, con los hechos parciales
// reunidos hasta el estado terminal.
func (o *Orchestrator) Authenticate(ctx context.Context, in Input, required ...repository.Scope) (*AuthContext, *Denial) {
	start := o.now()
	rec := &repository.AuditRecord{
		Timestamp: start.UTC(),
		RequestID: in.RequestID,
		Origin:    in.Origin,
		Method:    in.Method,
		Path:      in.Path,
		Operation: in.Operation,
		KeyID:     strings.TrimSpace(in.KeyID),
		Nonce:     strings.TrimSpace(in.Nonce),
	}
	defer func() {
		metrics.AuthDuration.Observe(float64(o.now().Sub(start).Microseconds()) / 1000.0)
		o.audit.Append(rec)
	}()

	deny := func(reason DenialReason) *Denial {
		rec.Decision = repository.DecisionDeny
		rec.Reason = string(reason)
		metrics.AuthDecisions.WithLabelValues("deny", string(reason)).Inc()
		return newDenial(reason)
	}

	// ── headers_extracted ──
	keyID := rec.KeyID
	nonceVal := rec.Nonce
	sigVal := strings.TrimSpace(in.Signature)
	tsRaw := strings.TrimSpace(in.Timestamp)
	if keyID == "" || nonceVal == "" || sigVal == "" || tsRaw == "" {
		return nil, deny(ReasonMissingHeaders)
	}
	if !validation.ValidNonce(nonceVal) {
		return nil, deny(ReasonMissingHeaders)
	}
	tsUnix, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return nil, deny(ReasonMissingHeaders)
	}

	// ── timestamp (antes de cualquier lookup) ──
	now := o.now().UTC()
	skew := now.Sub(time.Unix(tsUnix, 0).UTC())
	rec.ClockSkew = skew
	if skew > MaxTimestampSkew || skew < -MaxTimestampSkew {
		return nil, deny(ReasonTimestampInvalid)
	}

	// ── credential_resolved ──
	candidates, err := o.resolver.Resolve(ctx, keyID)
	if err != nil {
		// revoked, suspended principal, desconocido o malformado: un solo
		// camino de denegación (los detalles quedaron en los logs del resolver)
		o.noteFailure(in.Origin, keyID)
		return nil, deny(ReasonUnauthorized)
	}
	rec.PrincipalID = candidates[0].PrincipalID
	rec.CredentialID = candidates[0].ID

	// ── scope_checked ──
	eligible := candidates[:0]
	for _, c := range candidates {
		if ok, _ := c.Scopes.HasAll(required...); ok {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, deny(ReasonForbidden)
	}

	// ── rate_limited(origin) → rate_limited(credential) → [rate_limited(operation)] ──
	checks := []struct {
		dim ratelimit.Dimension
		key string
	}{
		{ratelimit.DimensionOrigin, in.Origin},
		{ratelimit.DimensionCredential, keyID},
	}
	if in.Operation != "" {
		checks = append(checks, struct {
			dim ratelimit.Dimension
			key string
		}{ratelimit.DimensionOperation, in.Operation})
	}
	for _, c := range checks {
		res, ok := o.consume(ctx, c.dim, c.key)
		if !ok {
			continue // limiter caído: fail-open, ya logueado y medido
		}
		if !res.Allowed {
			metrics.RateLimitRejections.WithLabelValues(string(c.dim), strconv.FormatBool(res.Frozen)).Inc()
			d := deny(ReasonRateLimited)
			d.RetryAfter = res.RetryAfter
			return nil, d
		}
	}

	// ── signature_verified ──
	sigReq := sign.Request{
		Method:    in.Method,
		Path:      in.Path,
		RawQuery:  in.RawQuery,
		Timestamp: tsUnix,
		Nonce:     nonceVal,
		Body:      in.Body,
	}
	rec.SignatureTried = true
	var matched *repository.Credential
	for _, c := range eligible {
		if sign.Verify(c.Key, sigReq, sigVal) {
			matched = c
			break
		}
	}
	if matched == nil {
		o.noteFailure(in.Origin, keyID)
		return nil, deny(ReasonSignatureInvalid)
	}
	rec.SignatureValid = true
	rec.PrincipalID = matched.PrincipalID
	rec.CredentialID = matched.ID

	// ── nonce_checked ──
	// Fail-closed: el ledger es el control de replay; si no responde, se
	// deniega (distinguible del replay real solo en logs).
	ledgerCtx, cancel := context.WithTimeout(ctx, depTimeout)
	won, err := o.ledger.Check(ledgerCtx, matched.PrincipalID, nonceVal, now)
	cancel()
	if err != nil {
		o.log.Error("nonce ledger unavailable, denying",
			logger.Err(err), logger.RequestID(in.RequestID))
		return nil, deny(ReasonNonceReused)
	}
	if !won {
		o.noteFailure(in.Origin, keyID)
		return nil, deny(ReasonNonceReused)
	}

	// ── allowed ──
	rec.Decision = repository.DecisionAllow
	metrics.AuthDecisions.WithLabelValues("allow", "").Inc()
	o.resolver.Touch(matched.ID)

	return &AuthContext{
		PrincipalID:   matched.PrincipalID,
		CredentialID:  matched.ID,
		KeyID:         matched.KeyID,
		GrantedScopes: matched.Scopes.Strings(),
		RequestID:     in.RequestID,
	}, nil
}

// consume consulta una dimensión del limiter con timeout corto.
// El segundo retorno es false cuando el limiter no está disponible: el
// caller admite el request (fail-open) — la disponibilidad del limiter no
// puede tumbar toda la API.
func (o *Orchestrator) consume(ctx context.Context, dim ratelimit.Dimension, key string) (ratelimit.Result, bool) {
	limCtx, cancel := context.WithTimeout(ctx, depTimeout)
	defer cancel()
	res, err := o.limiter.CheckAndConsume(limCtx, dim, key, 1)
	if err != nil {
		metrics.LimiterDegraded.Inc()
		o.log.Warn("rate limiter unreachable, admitting in degraded mode",
			logger.Dimension(string(dim)), logger.Key(maskForLog(dim, key)), logger.Err(err))
		return ratelimit.Result{}, false
	}
	return res, true
}

// maskForLog: las keys de la dimensión credential son key IDs; al log va
// solo el prefijo.
func maskForLog(dim ratelimit.Dimension, key string) string {
	if dim == ratelimit.DimensionCredential {
		return util.MaskKeyID(key)
	}
	return key
}

// noteFailure acumula fallos de autenticación en las dimensiones credential
// y origin; el limiter congela automáticamente al cruzar el umbral.
// Best-effort en background: no participa en la decisión del request actual.
func (o *Orchestrator) noteFailure(origin, keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), depTimeout)
		defer cancel()
		for _, c := range []struct {
			dim ratelimit.Dimension
			key string
		}{
			{ratelimit.DimensionCredential, keyID},
			{ratelimit.DimensionOrigin, origin},
		} {
			froze, err := o.limiter.NoteAuthFailure(ctx, c.dim, c.key)
			if err != nil {
				o.log.Debug("failure tracking unavailable", logger.Err(err))
				continue
			}
			if froze {
				metrics.AutoFreezes.WithLabelValues(string(c.dim)).Inc()
				o.log.Warn("automatic freeze triggered",
					logger.Dimension(string(c.dim)), logger.Key(maskForLog(c.dim, c.key)))
			}
		}
	}()
}
