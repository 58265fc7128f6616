package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// DefaultSessionTTL is the lifetime of an admin session token.
const DefaultSessionTTL = 12 * time.Hour

// LoginConfig configures LoginHandler.
type LoginConfig struct {
	PasswordHash string
	Secret       []byte
	TTL          time.Duration
	SecureCookie bool
	Now          func() time.Time
	Logger       *slog.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginHandler checks a JSON {username, password} body against the admin
// bcrypt hash and answers with a session token, also set as a cookie.
func LoginHandler(cfg LoginConfig) http.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAuthError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
		if err := CheckPassword(cfg.PasswordHash, req.Password); err != nil {
			cfg.Logger.Warn("auth: login rejected", "username", req.Username)
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
			return
		}

		subject := req.Username
		if subject == "" {
			subject = RoleAdmin
		}
		now := cfg.Now()
		claims := &Claims{Role: RoleAdmin}
		claims.Subject = subject
		token, err := GenerateToken(cfg.Secret, claims, now, cfg.TTL)
		if err != nil {
			cfg.Logger.Error("auth: issue token", "error", err)
			writeAuthError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not create session")
			return
		}
		SetTokenCookie(w, token, cfg.TTL, cfg.SecureCookie)
		cfg.Logger.Info("auth: admin login", "username", subject)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(loginResponse{Token: token, ExpiresAt: now.Add(cfg.TTL).UTC()})
	}
}

// LogoutHandler clears the session cookie.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	ClearTokenCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
