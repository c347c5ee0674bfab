package queue

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Manager basics
// ---------------------------------------------------------------------------

func TestNewManager_Empty(t *testing.T) {
	m := NewManager()
	// No configs; Acquire/Release should always succeed.
	if err := m.Acquire(context.Background(), "any-queue"); err != nil {
		t.Fatalf("expected Acquire to succeed for unconfigured queue: %v", err)
	}
	m.Release("any-queue")
}

func TestNewManager_WithConfig(t *testing.T) {
	m := NewManager(Config{
		Name:      "emails",
		MaxActive: 2,
	})
	if m.ActiveCount("emails") != 0 {
		t.Fatal("expected 0 active jobs initially")
	}
}

// ---------------------------------------------------------------------------
// Claim eligibility
// ---------------------------------------------------------------------------

func TestManager_Eligible_FiltersSaturatedQueue(t *testing.T) {
	m := NewManager(Config{
		Name:      "emails",
		MaxActive: 2,
	})
	ctx := context.Background()

	queues := []string{"emails", "reports"}
	if got := m.Eligible(queues); !reflect.DeepEqual(got, queues) {
		t.Fatalf("Eligible = %v, want %v", got, queues)
	}

	_ = m.Acquire(ctx, "emails")
	_ = m.Acquire(ctx, "emails")

	// At MaxActive the queue drops out of the claim set.
	if got := m.Eligible(queues); !reflect.DeepEqual(got, []string{"reports"}) {
		t.Fatalf("Eligible = %v, want [reports]", got)
	}

	m.Release("emails")
	if got := m.Eligible(queues); !reflect.DeepEqual(got, queues) {
		t.Fatalf("Eligible after Release = %v, want %v", got, queues)
	}
}

func TestManager_Eligible_ReflectsRateTokens(t *testing.T) {
	m := NewManager(Config{
		Name:      "limited",
		RateLimit: 1.0, // 1 per second
		RateBurst: 1,
	})

	if got := m.Eligible([]string{"limited"}); len(got) != 1 {
		t.Fatalf("Eligible = %v, want [limited]", got)
	}

	// Consume the only token.
	if err := m.Acquire(context.Background(), "limited"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if got := m.Eligible([]string{"limited"}); len(got) != 0 {
		t.Fatalf("Eligible = %v, want empty while bucket is drained", got)
	}

	// Wait for token refill.
	time.Sleep(1100 * time.Millisecond)
	if got := m.Eligible([]string{"limited"}); len(got) != 1 {
		t.Fatalf("Eligible = %v, want [limited] after refill", got)
	}
}

func TestManager_Eligible_UnconfiguredAlwaysIncluded(t *testing.T) {
	m := NewManager(Config{
		Name:      "configured",
		MaxActive: 1,
	})
	_ = m.Acquire(context.Background(), "configured")

	got := m.Eligible([]string{"configured", "other"})
	if !reflect.DeepEqual(got, []string{"other"}) {
		t.Fatalf("Eligible = %v, want [other]", got)
	}
}

// ---------------------------------------------------------------------------
// Launch pacing
// ---------------------------------------------------------------------------

func TestManager_AcquireRelease_ActiveCount(t *testing.T) {
	m := NewManager(Config{
		Name:      "q",
		MaxActive: 5,
	})
	ctx := context.Background()

	for i := range 3 {
		if err := m.Acquire(ctx, "q"); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if m.ActiveCount("q") != 3 {
		t.Fatalf("expected 3 active, got %d", m.ActiveCount("q"))
	}

	m.Release("q")
	m.Release("q")
	if m.ActiveCount("q") != 1 {
		t.Fatalf("expected 1 active, got %d", m.ActiveCount("q"))
	}
}

func TestManager_Acquire_WaitsForToken(t *testing.T) {
	m := NewManager(Config{
		Name:      "paced",
		RateLimit: 10.0, // one token every 100ms
		RateBurst: 1,
	})
	ctx := context.Background()

	// Burst token makes the first launch immediate.
	if err := m.Acquire(ctx, "paced"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	start := time.Now()
	if err := m.Acquire(ctx, "paced"); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("second Acquire returned after %v, expected to wait for a token", elapsed)
	}
}

func TestManager_Acquire_ContextCancelled(t *testing.T) {
	m := NewManager(Config{
		Name:      "slow",
		RateLimit: 0.1, // one token every 10s
		RateBurst: 1,
	})

	// Drain the burst token.
	if err := m.Acquire(context.Background(), "slow"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := m.Acquire(ctx, "slow"); err == nil {
		t.Fatal("expected error from cancelled Acquire")
	}

	// The abandoned launch must not leak into the active count.
	if got := m.ActiveCount("slow"); got != 1 {
		t.Fatalf("expected 1 active after abandoned Acquire, got %d", got)
	}
}

func TestManager_Acquire_WaitsForSlot(t *testing.T) {
	m := NewManager(Config{
		Name:      "capped",
		MaxActive: 1,
	})
	ctx := context.Background()

	if err := m.Acquire(ctx, "capped"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	// A second launch waits for the slot instead of overdrawing the cap.
	acquired := make(chan error, 1)
	go func() { acquired <- m.Acquire(ctx, "capped") }()

	select {
	case err := <-acquired:
		t.Fatalf("second Acquire returned early (%v), want it to wait for the slot", err)
	case <-time.After(50 * time.Millisecond):
	}

	m.Release("capped")
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("second Acquire after Release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire never got the released slot")
	}

	// A cancelled slot wait abandons cleanly.
	cctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := m.Acquire(cctx, "capped"); err == nil {
		t.Fatal("expected error from cancelled slot wait")
	}
	if got := m.ActiveCount("capped"); got != 1 {
		t.Fatalf("expected 1 active after abandoned wait, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Dynamic reconfiguration
// ---------------------------------------------------------------------------

func TestManager_SetConfig(t *testing.T) {
	m := NewManager(Config{
		Name:      "dyn",
		MaxActive: 1,
	})
	ctx := context.Background()

	_ = m.Acquire(ctx, "dyn")
	if got := m.Eligible([]string{"dyn"}); len(got) != 0 {
		t.Fatal("should be saturated at MaxActive 1")
	}

	// Raise the limit dynamically.
	m.SetConfig(Config{
		Name:      "dyn",
		MaxActive: 3,
	})

	if got := m.Eligible([]string{"dyn"}); len(got) != 1 {
		t.Fatal("should be eligible after raising MaxActive")
	}
	// Active count survives reconfiguration.
	if m.ActiveCount("dyn") != 1 {
		t.Fatalf("expected 1 active after SetConfig, got %d", m.ActiveCount("dyn"))
	}
}

// ---------------------------------------------------------------------------
// Concurrency safety
// ---------------------------------------------------------------------------

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(Config{
		Name:      "concurrent",
		MaxActive: 50,
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Acquire(ctx, "concurrent"); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			// Simulate work.
			time.Sleep(time.Millisecond)
			m.Release("concurrent")
		}()
	}

	wg.Wait()

	// Active should be back to 0.
	if m.ActiveCount("concurrent") != 0 {
		t.Fatalf("expected 0 active after all goroutines, got %d", m.ActiveCount("concurrent"))
	}
}

func TestManager_ReleaseUnderflow(t *testing.T) {
	m := NewManager(Config{
		Name:      "q",
		MaxActive: 5,
	})

	// Release without Acquire should not go negative.
	m.Release("q")
	if m.ActiveCount("q") != 0 {
		t.Fatal("active count should not go below 0")
	}
}
