package politeness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLock_SerializesSameKey(t *testing.T) {
	// WHAT: Holders of the same key never overlap.
	// WHY: Two targets on one host must not be contacted in parallel.
	l := New()
	var (
		active, peak atomic.Int32
		wg           sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "github.com/acme/bot")
			if err != nil {
				t.Error(err)
				return
			}
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	if peak.Load() != 1 {
		t.Fatalf("peak concurrency = %d, want 1", peak.Load())
	}
	if l.Len() != 0 {
		t.Fatalf("entries left = %d", l.Len())
	}
}

func TestLock_DifferentKeysIndependent(t *testing.T) {
	l := New()
	unlockA, _ := l.Lock(context.Background(), "a.dev")
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b.dev")
	if err != nil {
		t.Fatalf("b.dev should not wait on a.dev: %v", err)
	}
	unlockB()
}

func TestLock_ContextCancel(t *testing.T) {
	l := New()
	unlock, _ := l.Lock(context.Background(), "a.dev")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "a.dev"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	unlock()
	unlock()
	if l.Len() != 0 {
		t.Fatalf("entries left = %d", l.Len())
	}
}
