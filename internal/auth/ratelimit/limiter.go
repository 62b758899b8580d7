// Package ratelimit implements multi-dimension admission control with
// fixed-window counters and temporary freezes.
//
// Las dimensiones se combinan con semántica AND por el orquestador: un
// request debe pasar todas las que apliquen. Cada (dimension, key) se
// limita de forma independiente; un freeze sobre la clave anula el budget
// restante hasta que expira.
package ratelimit

import (
	"context"
	"time"
)

// Dimension es un eje independiente de rate limiting.
type Dimension string

const (
	// DimensionOrigin limita por dirección de red de origen.
	DimensionOrigin Dimension = "origin"
	// DimensionCredential limita por credencial (key_id).
	DimensionCredential Dimension = "credential"
	// DimensionOperation limita operaciones sensibles declaradas por el caller.
	DimensionOperation Dimension = "operation"
)

// Result es la respuesta de una consulta de admisión.
type Result struct {
	Allowed    bool
	Frozen     bool
	Remaining  int64
	RetryAfter time.Duration
}

// LimitConfig define el budget fixed-window de una dimensión.
type LimitConfig struct {
	Max    int64
	Window time.Duration
}

// Config agrupa los límites por dimensión y la política de auto-freeze.
type Config struct {
	Limits map[Dimension]LimitConfig

	// FailureThreshold: fallos de autenticación por clave dentro de
	// FailureWindow que disparan un freeze automático. 0 deshabilita.
	FailureThreshold int64
	FailureWindow    time.Duration
	FreezeDuration   time.Duration

	// Now permite inyectar el reloj en tests.
	Now func() time.Time
}

func (c *Config) normalize() {
	if c.FailureWindow <= 0 {
		c.FailureWindow = time.Hour
	}
	if c.FreezeDuration <= 0 {
		c.FreezeDuration = 15 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Limiter es el control de admisión consultado por el orquestador.
//
// La disponibilidad del limiter no puede volverse un single point of failure:
// ante error del store el orquestador trata el resultado como allowed
// (fail-open), logueado y medido aparte del allow normal.
type Limiter interface {
	// CheckAndConsume aplica el freeze vigente y luego el contador
	// fixed-window de la ventana actual, consumiendo cost si hay budget.
	CheckAndConsume(ctx context.Context, dim Dimension, key string, cost int64) (Result, error)

	// Freeze bloquea (dim, key) hasta now+d, ignorando el contador.
	Freeze(ctx context.Context, dim Dimension, key string, d time.Duration) error

	// Unfreeze levanta un freeze vigente (acción administrativa).
	Unfreeze(ctx context.Context, dim Dimension, key string) error

	// NoteAuthFailure acumula un fallo de autenticación para (dim, key) y
	// aplica el freeze automático al cruzar el umbral. Retorna true si este
	// fallo lo disparó.
	NoteAuthFailure(ctx context.Context, dim Dimension, key string) (bool, error)
}

func bucketStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func compositeKey(dim Dimension, key string) string {
	return string(dim) + "|" + key
}
