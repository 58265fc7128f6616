// Package shield provides the HTTP middleware shared by the outreach API:
// security headers, body limits, request tracing and per-client rate limits.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack() {
//	    r.Use(mw)
//	}
//	r.With(shield.RateLimit(svc.Limiter(), "public", 60, time.Minute)).Post(...)
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultMaxBody caps JSON and form request bodies. CSV imports are larger
// and get their own limit at the route.
const DefaultMaxBody = 256 * 1024

// DefaultAPIStack returns the middleware every outreach route goes through.
// Order: HeadToGet, SecurityHeaders, MaxBody, TraceID.
func DefaultAPIStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(DefaultMaxBody),
		TraceID,
	}
}

// HeadToGet lets GET-only routes such as /health answer HEAD probes.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
