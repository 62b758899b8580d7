package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock avanza a mano; Truncate de la ventana lo hace determinístico.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(clk *fakeClock, max int64, window time.Duration) *MemoryLimiter {
	return NewMemoryLimiter(Config{
		Limits: map[Dimension]LimitConfig{
			DimensionOrigin: {Max: max, Window: window},
		},
		FailureThreshold: 3,
		FailureWindow:    time.Hour,
		FreezeDuration:   15 * time.Minute,
		Now:              clk.Now,
	})
}

func TestMemoryLimiter_BudgetWithinWindow(t *testing.T) {
	clk := newFakeClock()
	m := newTestLimiter(clk, 5, time.Minute)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := m.CheckAndConsume(ctx, DimensionOrigin, "10.0.0.1", 1)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d dentro del budget fue rechazada", i+1)
		}
	}

	res, err := m.CheckAndConsume(ctx, DimensionOrigin, "10.0.0.1", 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.Allowed {
		t.Fatalf("la sexta request debe rechazarse")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("RetryAfter fuera de rango: %v", res.RetryAfter)
	}

	// otra key, misma dimensión: budget independiente
	res, _ = m.CheckAndConsume(ctx, DimensionOrigin, "10.0.0.2", 1)
	if !res.Allowed {
		t.Fatalf("otra key no comparte budget")
	}
}

func TestMemoryLimiter_WindowRollover(t *testing.T) {
	clk := newFakeClock()
	m := newTestLimiter(clk, 2, time.Minute)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, _ := m.CheckAndConsume(ctx, DimensionOrigin, "k", 1); !res.Allowed {
			t.Fatalf("budget inicial agotado temprano")
		}
	}
	if res, _ := m.CheckAndConsume(ctx, DimensionOrigin, "k", 1); res.Allowed {
		t.Fatalf("sobre el budget debe rechazar")
	}

	// pasar a la siguiente ventana: contador en cero
	clk.Advance(time.Minute)
	res, _ := m.CheckAndConsume(ctx, DimensionOrigin, "k", 1)
	if !res.Allowed {
		t.Fatalf("la ventana nueva debe arrancar limpia")
	}
	if res.Remaining != 1 {
		t.Fatalf("remaining esperado 1, got %d", res.Remaining)
	}
}

func TestMemoryLimiter_FreezeOverridesBudget(t *testing.T) {
	clk := newFakeClock()
	m := newTestLimiter(clk, 100, time.Minute)
	defer m.Close()
	ctx := context.Background()

	if err := m.Freeze(ctx, DimensionOrigin, "k", 10*time.Minute); err != nil {
		t.Fatalf("Freeze err: %v", err)
	}

	res, _ := m.CheckAndConsume(ctx, DimensionOrigin, "k", 1)
	if res.Allowed || !res.Frozen {
		t.Fatalf("freeze vigente debe rechazar con Frozen=true: %+v", res)
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter del freeze debe ser positivo")
	}

	// expiración: el conteo se reanuda sin intervención
	clk.Advance(11 * time.Minute)
	res, _ = m.CheckAndConsume(ctx, DimensionOrigin, "k", 1)
	if !res.Allowed {
		t.Fatalf("freeze expirado debe dejar pasar")
	}
}

func TestMemoryLimiter_Unfreeze(t *testing.T) {
	clk := newFakeClock()
	m := newTestLimiter(clk, 100, time.Minute)
	defer m.Close()
	ctx := context.Background()

	_ = m.Freeze(ctx, DimensionOrigin, "k", time.Hour)
	if res, _ := m.CheckAndConsume(ctx, DimensionOrigin, "k", 1); res.Allowed {
		t.Fatalf("congelado debe rechazar")
	}
	if err := m.Unfreeze(ctx, DimensionOrigin, "k"); err != nil {
		t.Fatalf("Unfreeze err: %v", err)
	}
	if res, _ := m.CheckAndConsume(ctx, DimensionOrigin, "k", 1); !res.Allowed {
		t.Fatalf("unfreeze debe reabrir la key")
	}
}

func TestMemoryLimiter_NoteAuthFailureAutoFreeze(t *testing.T) {
	clk := newFakeClock()
	m := newTestLimiter(clk, 100, time.Minute) // threshold 3
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		froze, err := m.NoteAuthFailure(ctx, DimensionCredential, "ak_deadbeef")
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if froze {
			t.Fatalf("freeze antes del umbral (fallo %d)", i+1)
		}
	}
	froze, err := m.NoteAuthFailure(ctx, DimensionCredential, "ak_deadbeef")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !froze {
		t.Fatalf("el tercer fallo debe disparar el freeze")
	}

	res, _ := m.CheckAndConsume(ctx, DimensionCredential, "ak_deadbeef", 1)
	if res.Allowed {
		t.Fatalf("key auto-congelada debe rechazar")
	}

	// el freeze expira y el contador de fallos arrancó de cero
	clk.Advance(16 * time.Minute)
	if res, _ := m.CheckAndConsume(ctx, DimensionCredential, "ak_deadbeef", 1); !res.Allowed {
		t.Fatalf("freeze expirado debe dejar pasar")
	}
}

func TestMemoryLimiter_UnconfiguredDimensionAllows(t *testing.T) {
	clk := newFakeClock()
	m := newTestLimiter(clk, 1, time.Minute)
	defer m.Close()

	// operation no tiene límite configurado en este limiter
	for i := 0; i < 50; i++ {
		res, err := m.CheckAndConsume(context.Background(), DimensionOperation, "x", 1)
		if err != nil || !res.Allowed {
			t.Fatalf("dimensión sin límite debe permitir siempre")
		}
	}
}
