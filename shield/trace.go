package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/outreach/kit"
)

// TraceID tags each request with a random trace ID. The ID is stored with
// kit.WithTraceID, echoed as X-Trace-ID, and attached to a per-request logger
// stored under LoggerKey. The client IP is recorded with kit.WithRemoteIP.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := make([]byte, 8)
		rand.Read(id)
		traceID := hex.EncodeToString(id)
		ip := ExtractIP(r)

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithRemoteIP(ctx, ip)
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_ip", ip,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger retrieves the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
