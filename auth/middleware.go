package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/hazyhaar/outreach/kit"
)

type claimsKey struct{}

// Middleware extracts a session token from the Authorization Bearer header
// or the session cookie. Valid claims are stored in the context and the
// subject is recorded with kit.WithActor. Missing or invalid tokens pass
// through untouched; RequireAdmin enforces.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, fromCookie := bearer(r), false
			if tokenStr == "" {
				if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
					tokenStr, fromCookie = c.Value, true
				}
			}
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ValidateToken(secret, tokenStr)
			if err != nil {
				if fromCookie {
					ClearTokenCookie(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = kit.WithActor(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

// GetClaims returns the session claims, or nil.
func GetClaims(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// RequireAdmin rejects requests without admin claims with a 401 JSON error.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := GetClaims(r.Context()); c == nil || c.Role != RoleAdmin {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
