// Package ratelimit is the in-process fixed-window limiter shared by the
// recruitment run guard and the public opt-out endpoint.
//
// State lives in memory only and starts empty on every process start.
package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultGCThreshold is the table size at which Assert sweeps expired windows.
const DefaultGCThreshold = 5000

// ErrLimited matches every *Error with errors.Is.
var ErrLimited = errors.New("ratelimit: too many requests")

// Error is returned when a window is exhausted.
type Error struct {
	Status     int
	Code       string
	Key        string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("ratelimit: %s exceeded, retry in %s", e.Key, e.RetryAfter.Round(time.Second))
}

func (e *Error) Is(target error) bool { return target == ErrLimited }

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (e *Error) RetryAfterSeconds() int {
	s := int((e.RetryAfter + time.Second - 1) / time.Second)
	return max(s, 1)
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter counts calls per bucket:identifier in fixed windows.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	now         func() time.Time
	gcThreshold int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

// WithGCThreshold overrides DefaultGCThreshold.
func WithGCThreshold(n int) Option { return func(l *Limiter) { l.gcThreshold = n } }

// New creates an empty Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		buckets:     make(map[string]*bucket),
		now:         time.Now,
		gcThreshold: DefaultGCThreshold,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Assert records one call against bucket:identifier. The first call of a
// window opens it with count 1; once max calls were recorded in a live
// window, Assert returns *Error until the window expires.
func (l *Limiter) Assert(bucketName, identifier string, max int, window time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.buckets) >= l.gcThreshold {
		l.gc(now)
	}

	key := bucketName + ":" + identifier
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(window)}
		return nil
	}
	if b.count >= max {
		return &Error{
			Status:     http.StatusTooManyRequests,
			Code:       "RATE_LIMITED",
			Key:        key,
			RetryAfter: b.resetAt.Sub(now),
		}
	}
	b.count++
	return nil
}

// Reset drops every window.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.buckets = make(map[string]*bucket)
	l.mu.Unlock()
}

// Len returns the number of tracked windows, expired ones included.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) gc(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}
