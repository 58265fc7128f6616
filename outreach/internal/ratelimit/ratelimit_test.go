package ratelimit

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAssert_FixedWindow(t *testing.T) {
	// WHAT: max calls pass, max+1 fails, the window then resets.
	// WHY: Both the run guard and the public endpoint depend on these bounds.
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(WithClock(clk.now))

	for i := 0; i < 3; i++ {
		if err := l.Assert("optout", "1.2.3.4", 3, time.Minute); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	err := l.Assert("optout", "1.2.3.4", 3, time.Minute)
	var rlErr *Error
	if !errors.As(err, &rlErr) {
		t.Fatalf("4th call: got %v, want *Error", err)
	}
	if rlErr.Status != 429 || rlErr.Code != "RATE_LIMITED" {
		t.Fatalf("got status=%d code=%s", rlErr.Status, rlErr.Code)
	}
	if !errors.Is(err, ErrLimited) {
		t.Fatal("errors.Is(err, ErrLimited) should hold")
	}

	clk.advance(time.Minute)
	if err := l.Assert("optout", "1.2.3.4", 3, time.Minute); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestAssert_KeysAreIndependent(t *testing.T) {
	l := New()
	if err := l.Assert("a", "x", 1, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := l.Assert("a", "y", 1, time.Hour); err != nil {
		t.Fatalf("other identifier: %v", err)
	}
	if err := l.Assert("b", "x", 1, time.Hour); err != nil {
		t.Fatalf("other bucket: %v", err)
	}
	if err := l.Assert("a", "x", 1, time.Hour); err == nil {
		t.Fatal("same key should be limited")
	}
}

func TestReset(t *testing.T) {
	l := New()
	l.Assert("a", "x", 1, time.Hour)
	l.Reset()
	if l.Len() != 0 {
		t.Fatalf("len after reset: %d", l.Len())
	}
	if err := l.Assert("a", "x", 1, time.Hour); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}

func TestGC_DropsExpiredAtThreshold(t *testing.T) {
	// WHAT: Expired windows are swept once the table reaches the threshold.
	// WHY: Per-IP keys would otherwise grow without bound.
	clk := &fakeClock{t: time.Unix(0, 0)}
	l := New(WithClock(clk.now), WithGCThreshold(10))
	for i := 0; i < 10; i++ {
		l.Assert("ip", fmt.Sprint(i), 5, time.Second)
	}
	clk.advance(2 * time.Second)
	l.Assert("ip", "fresh", 5, time.Second)
	if got := l.Len(); got != 1 {
		t.Fatalf("len after gc: got %d, want 1", got)
	}
}

func TestError_RetryAfterSeconds(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for d, want := range cases {
		if got := (&Error{RetryAfter: d}).RetryAfterSeconds(); got != want {
			t.Errorf("RetryAfter %s: got %d, want %d", d, got, want)
		}
	}
}
