package nonce

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/agentgate/internal/store/memory"
)

func testNonce(i int) string {
	return strings.Repeat(fmt.Sprintf("%04x", i), 8) // 32 hex chars
}

func TestLedger_FirstUseWins_ReplayLoses(t *testing.T) {
	l := NewLedger(memory.New(), Options{})
	defer l.Close()

	ctx := context.Background()
	now := time.Now()

	won, err := l.Check(ctx, "p1", testNonce(1), now)
	if err != nil {
		t.Fatalf("Check err: %v", err)
	}
	if !won {
		t.Fatalf("primer uso debe ganar")
	}

	won, err = l.Check(ctx, "p1", testNonce(1), now.Add(time.Second))
	if err != nil {
		t.Fatalf("Check err: %v", err)
	}
	if won {
		t.Fatalf("replay debe perder")
	}
}

func TestLedger_NoncesAreScopedByPrincipal(t *testing.T) {
	l := NewLedger(memory.New(), Options{})
	defer l.Close()

	ctx := context.Background()
	now := time.Now()
	n := testNonce(7)

	if won, _ := l.Check(ctx, "p1", n, now); !won {
		t.Fatalf("p1 debe ganar su primer uso")
	}
	// mismo nonce, otro principal: independiente
	if won, _ := l.Check(ctx, "p2", n, now); !won {
		t.Fatalf("el mismo nonce bajo otro principal es otro registro")
	}
	if won, _ := l.Check(ctx, "p2", n, now); won {
		t.Fatalf("replay bajo p2 debe perder")
	}
}

func TestLedger_ConcurrentSameNonce_ExactlyOneWinner(t *testing.T) {
	l := NewLedger(memory.New(), Options{Shards: 4})
	defer l.Close()

	const callers = 64
	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			won, err := l.Check(context.Background(), "p1", testNonce(99), time.Now())
			if err != nil {
				t.Errorf("Check err: %v", err)
				return
			}
			if won {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("exactamente un caller debe ganar, ganaron %d", wins)
	}
}

func TestLedger_ConcurrentDistinctNonces_AllWin(t *testing.T) {
	l := NewLedger(memory.New(), Options{Shards: 8})
	defer l.Close()

	const callers = 32
	var wins int64
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won, err := l.Check(context.Background(), "p1", testNonce(i), time.Now())
			if err != nil {
				t.Errorf("Check err: %v", err)
				return
			}
			if won {
				atomic.AddInt64(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	if wins != callers {
		t.Fatalf("todos los nonces distintos deben ganar: %d/%d", wins, callers)
	}
}

func TestLedger_CheckAfterClose(t *testing.T) {
	l := NewLedger(memory.New(), Options{})
	l.Close()

	if _, err := l.Check(context.Background(), "p1", testNonce(3), time.Now()); err == nil {
		t.Fatalf("Check sobre ledger cerrado debe fallar")
	}
}
