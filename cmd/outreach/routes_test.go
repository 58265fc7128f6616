package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/outreach/auth"
	"github.com/hazyhaar/outreach/dbopen"
	"github.com/hazyhaar/outreach/outreach"
)

const testPassword = "correct-horse-battery"

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithMigration(outreach.ApplySchema))
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &serverConfig{SessionSecret: "test-session-secret"}
	cfg.defaults()
	secret, err := cfg.jwtSecret()
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &server{
		svc:          outreach.New(db, &cfg.Config, outreach.WithLogger(logger)),
		secret:       secret,
		passwordHash: hash,
		logger:       logger,
	}
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func login(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := do(t, "POST", ts.URL+"/api/v1/admin/login", "",
		`{"username":"ops","password":"`+testPassword+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %v", resp.StatusCode, body)
	}
	tok, _ := body["token"].(string)
	if tok == "" {
		t.Fatalf("no token in %v", body)
	}
	return tok
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	c, _ := e["code"].(string)
	return c
}

func TestHealth(t *testing.T) {
	ts := testServer(t)
	resp, body := do(t, "GET", ts.URL+"/health", "", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Trace-ID") == "" || resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("shield headers missing")
	}
}

func TestAdmin_RequiresSession(t *testing.T) {
	// WHAT: admin routes answer 401 without a token and 200 with one.
	// WHY: the admin API can trigger live outreach.
	ts := testServer(t)
	resp, body := do(t, "GET", ts.URL+"/api/v1/admin/recruitment/status", "", "")
	if resp.StatusCode != http.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
		t.Fatalf("anonymous status: %d %v", resp.StatusCode, body)
	}

	tok := login(t, ts)
	resp, body = do(t, "GET", ts.URL+"/api/v1/admin/recruitment/status", tok, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %v", resp.StatusCode, body)
	}
	if _, ok := body["funnel"]; !ok {
		t.Errorf("status report missing funnel: %v", body)
	}
}

func TestPublicOptOut_Flow(t *testing.T) {
	// WHAT: a public opt-out shows up in check and in the admin list, and
	// can be removed by an admin.
	ts := testServer(t)
	resp, body := do(t, "POST", ts.URL+"/api/v1/recruitment/opt-out", "",
		`{"domain":"Example.COM","reason":"no thanks"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("opt-out: %d %v", resp.StatusCode, body)
	}
	if body["domain"] != "example.com" {
		t.Errorf("domain not normalized: %v", body)
	}

	_, body = do(t, "GET", ts.URL+"/api/v1/recruitment/opt-out/check?domain=example.com", "", "")
	if body["optedOut"] != true {
		t.Errorf("check: %v", body)
	}

	tok := login(t, ts)
	_, body = do(t, "GET", ts.URL+"/api/v1/admin/recruitment/opt-outs", tok, "")
	if body["count"] != float64(1) {
		t.Errorf("list: %v", body)
	}

	resp, _ = do(t, "DELETE", ts.URL+"/api/v1/admin/recruitment/opt-outs/example.com", tok, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete: %d", resp.StatusCode)
	}
	resp, body = do(t, "DELETE", ts.URL+"/api/v1/admin/recruitment/opt-outs/example.com", tok, "")
	if resp.StatusCode != http.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Errorf("second delete: %d %v", resp.StatusCode, body)
	}
}

func TestPublicOptOut_Validation(t *testing.T) {
	ts := testServer(t)
	resp, body := do(t, "POST", ts.URL+"/api/v1/recruitment/opt-out", "", `{"domain":"x"}`)
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "VALIDATION_ERROR" {
		t.Fatalf("expected 400, got %d %v", resp.StatusCode, body)
	}
	e := body["error"].(map[string]any)
	if details, _ := e["details"].([]any); len(details) != 1 {
		t.Errorf("details: %v", e["details"])
	}

	resp, body = do(t, "POST", ts.URL+"/api/v1/recruitment/opt-out", "", `{not json`)
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "VALIDATION_ERROR" {
		t.Errorf("malformed body: %d %v", resp.StatusCode, body)
	}
}

func TestPublicOptOut_RateLimited(t *testing.T) {
	// WHAT: the eleventh opt-out in a minute from one client gets 429.
	ts := testServer(t)
	var resp *http.Response
	var body map[string]any
	for i := range 11 {
		resp, body = do(t, "POST", ts.URL+"/api/v1/recruitment/opt-out", "",
			`{"domain":"site`+string(rune('a'+i))+`.example"}`)
	}
	if resp.StatusCode != http.StatusTooManyRequests || errorCode(body) != "RATE_LIMITED" {
		t.Fatalf("expected 429, got %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}

func TestPreview_Validation(t *testing.T) {
	ts := testServer(t)
	tok := login(t, ts)
	resp, body := do(t, "POST", ts.URL+"/api/v1/admin/recruitment/preview", tok, `{"agentIds":[]}`)
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "VALIDATION_ERROR" {
		t.Fatalf("expected 400, got %d %v", resp.StatusCode, body)
	}
}

func TestRecruit_UnknownTarget(t *testing.T) {
	ts := testServer(t)
	tok := login(t, ts)
	resp, body := do(t, "POST", ts.URL+"/api/v1/admin/recruitment/targets/tgt_missing/recruit", tok, "")
	if resp.StatusCode != http.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %v", resp.StatusCode, body)
	}
}

type retryAfterErr struct{}

func (retryAfterErr) Error() string          { return "limited" }
func (retryAfterErr) RetryAfterSeconds() int { return 42 }

func TestWriteErrorResult_KeepsPartialRun(t *testing.T) {
	// WHAT: A run stopped by a global cap answers 429 with Retry-After and
	// still carries what was already sent.
	// WHY: Execute, batch and pipeline runs may have contacted targets before
	// the cap hit; dropping the tally hides real sends from the operator.
	s := &server{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	err := &outreach.ServiceError{Status: http.StatusTooManyRequests, Code: "RATE_LIMITED",
		Message: "Hourly recruitment limit reached", Err: retryAfterErr{}}
	partial := &outreach.ExecuteResult{
		Results: []outreach.RecruitResult{{TargetID: "t1", Status: "DELIVERED"}},
		Summary: outreach.ExecuteSummary{Total: 1, Sent: 1, Delivered: 1},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/recruitment/execute", nil)
	s.writeErrorResult(rec, req, err, partial)

	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "42" {
		t.Fatalf("status = %d, Retry-After = %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	var body struct {
		Error  errorBody              `json:"error"`
		Result outreach.ExecuteResult `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "RATE_LIMITED" || body.Result.Summary.Sent != 1 || len(body.Result.Results) != 1 {
		t.Fatalf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	s.writeError(rec, req, err)
	var plain map[string]any
	json.NewDecoder(rec.Body).Decode(&plain)
	if _, ok := plain["result"]; ok {
		t.Errorf("plain error carries a result: %v", plain)
	}
}
