package shield

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Limiter is the fixed-window counter behind RateLimit. The outreach
// service exposes its shared limiter through Service.Limiter.
type Limiter interface {
	Assert(bucket, identifier string, max int, window time.Duration) error
}

// retryAfter is implemented by limiter errors that know when the window
// reopens.
type retryAfter interface {
	error
	RetryAfterSeconds() int
}

// RateLimit returns middleware that allows max requests per client IP per
// window in the named bucket. Blocked requests get a 429 JSON error in the
// same envelope as the API handlers.
func RateLimit(l Limiter, bucket string, max int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ExtractIP(r)
			err := l.Assert(bucket, ip, max, window)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			GetLogger(r.Context()).Warn("shield: request rate limited", "bucket", bucket, "ip", ip)

			secs := int(window / time.Second)
			var ra retryAfter
			if errors.As(err, &ra) {
				secs = ra.RetryAfterSeconds()
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			if err := json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"code":    "RATE_LIMITED",
					"message": "Too many requests",
				},
			}); err != nil {
				slog.Debug("shield: write 429", "error", err)
			}
		})
	}
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
