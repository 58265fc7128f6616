package classify

import (
	"encoding/json"
	"testing"
)

func TestAnalyze_DecisionTable(t *testing.T) {
	// WHAT: Every row of the decision table, in order.
	// WHY: Attempt statuses and opt-out cascades are driven by this output.
	tests := []struct {
		name   string
		body   string
		status int
		want   Intent
		conf   Confidence
	}{
		{"200 accepted", `{"status":"Accepted"}`, 200, Interested, High},
		{"201 welcome", `{"msg":"welcome aboard"}`, 201, Interested, High},
		{"202 plain", `{"ok":true}`, 202, Delivered, Medium},
		{"200 with stop word stays delivered", `{"msg":"stop"}`, 200, Delivered, Medium},
		{"403", `null`, 403, Declined, Medium},
		{"405", ``, 405, Declined, Medium},
		{"410 ignores body", `{"msg":"thanks"}`, 410, OptedOut, High},
		{"opt-out keyword on 400", `{"error":"Please UNSUBSCRIBE me"}`, 400, OptedOut, High},
		{"opt-out keyword no status", `{"text":"do not contact"}`, 0, OptedOut, High},
		{"404", `{"error":"nope"}`, 404, Failed, High},
		{"503", ``, 503, Failed, High},
		{"429", `{}`, 429, Failed, Medium},
		{"301", `{}`, 301, Unknown, Low},
		{"no status", ``, 0, Unknown, Low},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(json.RawMessage(tt.body), tt.status)
			if got.Intent != tt.want || got.Confidence != tt.conf {
				t.Fatalf("got %s/%s, want %s/%s", got.Intent, got.Confidence, tt.want, tt.conf)
			}
			if got.OptedOut != (tt.want == OptedOut) {
				t.Errorf("OptedOut flag: %v", got.OptedOut)
			}
			if got.Interested != (tt.want == Interested) {
				t.Errorf("Interested flag: %v", got.Interested)
			}
		})
	}
}

func TestHasInterest(t *testing.T) {
	if !HasInterest([]byte(`{"text":"Thank you!"}`)) {
		t.Error("expected interest")
	}
	if HasInterest([]byte(`{"text":"received"}`)) {
		t.Error("unexpected interest")
	}
}
