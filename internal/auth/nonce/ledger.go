// Package nonce implements the per-principal replay ledger.
//
// Modelo de concurrencia: actores shardeados. Cada principal se rutea por
// hash a un shard con su propio mailbox; dos checks concurrentes del mismo
// principal se serializan en el mismo shard y a lo sumo uno gana. Principals
// distintos caen en shards distintos y avanzan en paralelo sin contención
// global.
//
// El store durable usa una constraint de unicidad (principal_id, nonce) y
// "insert succeeded" es la única señal de accept; nunca read-then-write.
package nonce

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	"github.com/dropDatabas3/agentgate/internal/observability/logger"
)

const (
	defaultShards       = 16
	defaultStoreTimeout = 2 * time.Second
	mailboxDepth        = 64
)

// ErrClosed se retorna cuando el ledger ya fue detenido.
var ErrClosed = errors.New("nonce ledger closed")

// Options configura el ledger.
type Options struct {
	// Shards es el número de actores. Default 16.
	Shards int
	// StoreTimeout acota cada round-trip al store. Default 2s.
	StoreTimeout time.Duration
	// Retention define cada cuánto se podan registros viejos.
	// 0 (default) = nunca: un nonce aceptado se rechaza para siempre.
	// Configurarla relaja la garantía de replay de "incondicional" a
	// "acotada en el tiempo".
	Retention time.Duration
}

type checkReq struct {
	principalID string
	nonce       string
	seenAt      time.Time
	reply       chan checkReply
}

type checkReply struct {
	won bool
	err error
}

// Ledger es el actor shardeado sobre el store durable de nonces.
type Ledger struct {
	store   repository.NonceRepository
	shards  []chan checkReq
	done    chan struct{}
	timeout time.Duration
	log     *zap.Logger
}

// NewLedger arranca los shards y, si Retention > 0, el goroutine de poda.
func NewLedger(store repository.NonceRepository, opts Options) *Ledger {
	n := opts.Shards
	if n <= 0 {
		n = defaultShards
	}
	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	l := &Ledger{
		store:   store,
		shards:  make([]chan checkReq, n),
		done:    make(chan struct{}),
		timeout: timeout,
		log:     logger.Named("nonce"),
	}
	for i := range l.shards {
		inbox := make(chan checkReq, mailboxDepth)
		l.shards[i] = inbox
		go l.runShard(inbox)
	}
	if opts.Retention > 0 {
		go l.runPruner(opts.Retention)
	}
	return l
}

// Check responde si (principalID, nonce) se acepta. Retorna true exactamente
// una vez por par, para siempre (con retención default).
//
// Un insert que ya se comiteó no se revierte aunque el caller cancele: la
// propiedad "nunca aceptar dos veces" vale independientemente de si la
// respuesta llegó a entregarse.
func (l *Ledger) Check(ctx context.Context, principalID, nonce string, seenAt time.Time) (bool, error) {
	req := checkReq{
		principalID: principalID,
		nonce:       nonce,
		seenAt:      seenAt,
		reply:       make(chan checkReply, 1),
	}
	inbox := l.shards[shardFor(principalID, len(l.shards))]
	select {
	case inbox <- req:
	case <-l.done:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.won, rep.err
	case <-ctx.Done():
		// El shard sigue procesando: si el insert comitea, queda comiteado.
		return false, ctx.Err()
	case <-l.done:
		// Shutdown con el request en vuelo: si la respuesta ya está, vale;
		// si no, fail-closed.
		select {
		case rep := <-req.reply:
			return rep.won, rep.err
		default:
			return false, ErrClosed
		}
	}
}

// Close detiene los shards. Checks en vuelo terminan su escritura.
func (l *Ledger) Close() {
	close(l.done)
}

func (l *Ledger) runShard(inbox chan checkReq) {
	for {
		select {
		case req := <-inbox:
			// Contexto desacoplado del caller: el commit no debe abortarse
			// por un disconnect del cliente.
			ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
			won, err := l.store.Record(ctx, req.principalID, req.nonce, req.seenAt)
			cancel()
			req.reply <- checkReply{won: won, err: err}
		case <-l.done:
			return
		}
	}
}

func (l *Ledger) runPruner(retention time.Duration) {
	// Se poda con un multiplicador de seguridad para que la poda nunca sea
	// observable dentro de la ventana de firma.
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := l.store.Prune(ctx, time.Now().Add(-2*retention))
			cancel()
			if err != nil {
				l.log.Warn("nonce prune failed", logger.Err(err))
			} else if n > 0 {
				l.log.Debug("nonce prune", zap.Int64("pruned", n))
			}
		case <-l.done:
			return
		}
	}
}

func shardFor(principalID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(principalID))
	return int(h.Sum32() % uint32(n))
}
