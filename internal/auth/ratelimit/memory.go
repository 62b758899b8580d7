package ratelimit

import (
	"context"
	"errors"
	"hash/fnv"
	"time"
)

const (
	memShards    = 16
	mailboxDepth = 128
)

// ErrClosed se retorna cuando el limiter ya fue detenido.
var ErrClosed = errors.New("rate limiter closed")

// entry es el estado de una (dimension, key) dentro de un shard.
// Solo lo toca el goroutine del shard: sin locks.
type entry struct {
	windowStart time.Time
	count       int64

	frozenUntil time.Time

	failWindowStart time.Time
	failCount       int64
}

type shard struct {
	inbox chan func(map[string]*entry)
}

// MemoryLimiter es la implementación de actores shardeados en memoria.
//
// Cada (dimension, key) se rutea por hash a un shard con mailbox propio;
// requests concurrentes sobre la misma clave se serializan en su shard y
// claves independientes avanzan en paralelo. Sin mutex global.
type MemoryLimiter struct {
	cfg    Config
	shards []shard
	done   chan struct{}
}

// NewMemoryLimiter arranca los shards.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg.normalize()
	m := &MemoryLimiter{
		cfg:    cfg,
		shards: make([]shard, memShards),
		done:   make(chan struct{}),
	}
	for i := range m.shards {
		s := shard{inbox: make(chan func(map[string]*entry), mailboxDepth)}
		m.shards[i] = s
		go func(s shard) {
			state := make(map[string]*entry)
			for {
				select {
				case op := <-s.inbox:
					op(state)
				case <-m.done:
					return
				}
			}
		}(s)
	}
	return m
}

// Close detiene los shards.
func (m *MemoryLimiter) Close() { close(m.done) }

// dispatch ejecuta op en el shard dueño de la clave y espera su resultado.
func (m *MemoryLimiter) dispatch(ctx context.Context, dim Dimension, key string, op func(e *entry, now time.Time) any) (any, error) {
	ck := compositeKey(dim, key)
	reply := make(chan any, 1)
	wrapped := func(state map[string]*entry) {
		e, ok := state[ck]
		if !ok {
			e = &entry{}
			state[ck] = e
		}
		reply <- op(e, m.cfg.Now())
	}
	s := m.shards[shardIndex(ck, len(m.shards))]
	select {
	case s.inbox <- wrapped:
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CheckAndConsume implementa Limiter.
func (m *MemoryLimiter) CheckAndConsume(ctx context.Context, dim Dimension, key string, cost int64) (Result, error) {
	limit, hasLimit := m.cfg.Limits[dim]
	if cost <= 0 {
		cost = 1
	}
	v, err := m.dispatch(ctx, dim, key, func(e *entry, now time.Time) any {
		if e.frozenUntil.After(now) {
			return Result{Allowed: false, Frozen: true, RetryAfter: e.frozenUntil.Sub(now)}
		}
		// Un freeze aplica aunque la dimensión no tenga budget configurado.
		if !hasLimit || limit.Max <= 0 {
			return Result{Allowed: true}
		}
		// Freeze expirado: el conteo normal se reanuda automáticamente.
		ws := bucketStart(now, limit.Window)
		if !e.windowStart.Equal(ws) {
			// Contadores de una ventana pasada nunca afectan otra ventana.
			e.windowStart = ws
			e.count = 0
		}
		if e.count+cost > limit.Max {
			return Result{
				Allowed:    false,
				Remaining:  max64(0, limit.Max-e.count),
				RetryAfter: ws.Add(limit.Window).Sub(now),
			}
		}
		e.count += cost
		return Result{Allowed: true, Remaining: limit.Max - e.count}
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// Freeze implementa Limiter.
func (m *MemoryLimiter) Freeze(ctx context.Context, dim Dimension, key string, d time.Duration) error {
	_, err := m.dispatch(ctx, dim, key, func(e *entry, now time.Time) any {
		until := now.Add(d)
		if until.After(e.frozenUntil) {
			e.frozenUntil = until
		}
		return nil
	})
	return err
}

// Unfreeze implementa Limiter.
func (m *MemoryLimiter) Unfreeze(ctx context.Context, dim Dimension, key string) error {
	_, err := m.dispatch(ctx, dim, key, func(e *entry, _ time.Time) any {
		e.frozenUntil = time.Time{}
		return nil
	})
	return err
}

// NoteAuthFailure implementa Limiter.
func (m *MemoryLimiter) NoteAuthFailure(ctx context.Context, dim Dimension, key string) (bool, error) {
	if m.cfg.FailureThreshold <= 0 {
		return false, nil
	}
	v, err := m.dispatch(ctx, dim, key, func(e *entry, now time.Time) any {
		ws := bucketStart(now, m.cfg.FailureWindow)
		if !e.failWindowStart.Equal(ws) {
			e.failWindowStart = ws
			e.failCount = 0
		}
		e.failCount++
		if e.failCount >= m.cfg.FailureThreshold && !e.frozenUntil.After(now) {
			e.frozenUntil = now.Add(m.cfg.FreezeDuration)
			e.failCount = 0
			return true
		}
		return false
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
