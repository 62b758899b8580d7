package ratelimit

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter: fixed window sobre Redis (INCR + EXPIRE).
//
// Redis serializa los INCR por sí solo, así que el incremento atómico del
// store es la única fuente de verdad de "quién consumió" — la variante (b)
// del modelo de concurrencia, útil cuando corren varias réplicas del gateway.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	cfg    Config
}

// NewRedisLimiter construye el limiter con el prefijo de keys dado.
func NewRedisLimiter(client *rdb.Client, prefix string, cfg Config) *RedisLimiter {
	if prefix == "" {
		prefix = "agw:"
	}
	cfg.normalize()
	return &RedisLimiter{client: client, prefix: prefix, cfg: cfg}
}

func (l *RedisLimiter) counterKey(dim Dimension, key string, winStart time.Time) string {
	return fmt.Sprintf("%srl:%s:%s:%d", l.prefix, dim, key, winStart.Unix())
}

func (l *RedisLimiter) freezeKey(dim Dimension, key string) string {
	return fmt.Sprintf("%sfrz:%s:%s", l.prefix, dim, key)
}

func (l *RedisLimiter) failureKey(dim Dimension, key string, winStart time.Time) string {
	return fmt.Sprintf("%saf:%s:%s:%d", l.prefix, dim, key, winStart.Unix())
}

// CheckAndConsume implementa Limiter.
func (l *RedisLimiter) CheckAndConsume(ctx context.Context, dim Dimension, key string, cost int64) (Result, error) {
	limit, hasLimit := l.cfg.Limits[dim]
	if cost <= 0 {
		cost = 1
	}

	// Freeze primero: anula el budget restante y aplica aunque la dimensión
	// no tenga budget configurado.
	frozenTTL, err := l.client.PTTL(ctx, l.freezeKey(dim, key)).Result()
	if err != nil {
		return Result{}, err
	}
	if frozenTTL > 0 {
		return Result{Allowed: false, Frozen: true, RetryAfter: frozenTTL}, nil
	}
	if !hasLimit || limit.Max <= 0 {
		return Result{Allowed: true}, nil
	}

	now := l.cfg.Now().UTC()
	winStart := bucketStart(now, limit.Window)
	counterKey := l.counterKey(dim, key, winStart)

	pipe := l.client.TxPipeline()
	incr := pipe.IncrBy(ctx, counterKey, cost)
	pipe.Expire(ctx, counterKey, limit.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	hits := incr.Val()
	if hits > limit.Max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: winStart.Add(limit.Window).Sub(now),
		}, nil
	}
	return Result{Allowed: true, Remaining: limit.Max - hits}, nil
}

// Freeze implementa Limiter.
func (l *RedisLimiter) Freeze(ctx context.Context, dim Dimension, key string, d time.Duration) error {
	return l.client.Set(ctx, l.freezeKey(dim, key), 1, d).Err()
}

// Unfreeze implementa Limiter.
func (l *RedisLimiter) Unfreeze(ctx context.Context, dim Dimension, key string) error {
	return l.client.Del(ctx, l.freezeKey(dim, key)).Err()
}

// NoteAuthFailure implementa Limiter.
func (l *RedisLimiter) NoteAuthFailure(ctx context.Context, dim Dimension, key string) (bool, error) {
	if l.cfg.FailureThreshold <= 0 {
		return false, nil
	}
	now := l.cfg.Now().UTC()
	winStart := bucketStart(now, l.cfg.FailureWindow)
	fk := l.failureKey(dim, key, winStart)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, fk)
	pipe.Expire(ctx, fk, l.cfg.FailureWindow+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if incr.Val() >= l.cfg.FailureThreshold {
		if err := l.Freeze(ctx, dim, key, l.cfg.FreezeDuration); err != nil {
			return false, err
		}
		_ = l.client.Del(ctx, fk).Err()
		return true, nil
	}
	return false, nil
}
