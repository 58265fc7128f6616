package auth

import (
	"net/http"
	"time"
)

// CookieName holds the admin session token.
const CookieName = "outreach_session"

// SetTokenCookie writes the session token as an HttpOnly cookie scoped to
// the admin API.
func SetTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/api/v1/admin",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	})
}

// ClearTokenCookie removes the session cookie.
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/api/v1/admin",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
