package shield

import (
	"mime"
	"net/http"
)

// MaxBody limits request bodies sent as JSON or url-encoded forms. Other
// content types (multipart CSV uploads) pass through untouched.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			switch mt {
			case "application/json", "application/x-www-form-urlencoded":
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
