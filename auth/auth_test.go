package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hazyhaar/outreach/kit"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testHash(t *testing.T) string {
	t.Helper()
	h, err := HashPassword("hunter2-correct-horse")
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestToken_RoundTrip(t *testing.T) {
	now := time.Now()
	claims := &Claims{Role: RoleAdmin}
	claims.Subject = "ops"
	tok, err := GenerateToken(testSecret, claims, now, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ValidateToken(testSecret, tok)
	if err != nil {
		t.Fatal(err)
	}
	if got.Subject != "ops" || got.Role != RoleAdmin {
		t.Errorf("claims = %+v", got)
	}
}

func TestToken_Rejects(t *testing.T) {
	// WHAT: expired, wrongly signed and non-HS256 tokens are refused.
	// WHY: the admin API executes live outreach.
	expired, _ := GenerateToken(testSecret, &Claims{Role: RoleAdmin}, time.Now().Add(-2*time.Hour), time.Hour)
	if _, err := ValidateToken(testSecret, expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: %v", err)
	}

	other, _ := GenerateToken([]byte("ffffffffffffffffffffffffffffffff"), &Claims{Role: RoleAdmin}, time.Now(), time.Hour)
	if _, err := ValidateToken(testSecret, other); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: %v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := ValidateToken(testSecret, none); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("alg none: %v", err)
	}

	if _, err := GenerateToken([]byte("short"), &Claims{}, time.Now(), time.Hour); err == nil {
		t.Error("short secret accepted")
	}
}

func TestCheckPassword(t *testing.T) {
	h := testHash(t)
	if err := CheckPassword(h, "hunter2-correct-horse"); err != nil {
		t.Errorf("valid password: %v", err)
	}
	if err := CheckPassword(h, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if err := CheckPassword("", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("empty hash: %v", err)
	}
}

func TestLoginThenRequireAdmin(t *testing.T) {
	// WHAT: a successful login yields a token that opens RequireAdmin routes.
	login := LoginHandler(LoginConfig{PasswordHash: testHash(t), Secret: testSecret})

	w := httptest.NewRecorder()
	login(w, httptest.NewRequest("POST", "/api/v1/admin/login",
		strings.NewReader(`{"username":"ops","password":"hunter2-correct-horse"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login body %q: %v", w.Body.String(), err)
	}
	if len(w.Result().Cookies()) == 0 || w.Result().Cookies()[0].Name != CookieName {
		t.Error("session cookie not set")
	}

	var actor string
	protected := Middleware(testSecret)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = kit.GetActor(r.Context())
	})))

	req := httptest.NewRequest("GET", "/api/v1/admin/recruitment/status", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusOK || actor != "ops" {
		t.Errorf("authorized call: code %d actor %q", w.Code, actor)
	}

	w = httptest.NewRecorder()
	protected.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/admin/recruitment/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous call: %d", w.Code)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	login := LoginHandler(LoginConfig{PasswordHash: testHash(t), Secret: testSecret})
	w := httptest.NewRecorder()
	login(w, httptest.NewRequest("POST", "/api/v1/admin/login", strings.NewReader(`{"password":"nope"}`)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
