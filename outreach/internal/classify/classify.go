// Package classify maps a target's reply to a recruitment intent.
//
// Analyze is a fixed decision table, evaluated top to bottom:
//
//	status 200/201/202 + interest keyword  -> INTERESTED  HIGH
//	status 200/201/202                     -> DELIVERED   MEDIUM
//	status 403/405                         -> DECLINED    MEDIUM
//	status 410                             -> OPTED_OUT   HIGH
//	opt-out keyword (any status)           -> OPTED_OUT   HIGH
//	status 404 or >= 500                   -> FAILED      HIGH
//	status >= 400                          -> FAILED      MEDIUM
//	anything else                          -> UNKNOWN     LOW
//
// Keyword matching is a case-insensitive substring scan over the JSON text
// of the reply. It is English-only.
package classify

import (
	"encoding/json"
	"strings"
)

// Intent is the classified outcome of one contact attempt.
type Intent string

const (
	Interested Intent = "INTERESTED"
	Delivered  Intent = "DELIVERED"
	Declined   Intent = "DECLINED"
	OptedOut   Intent = "OPTED_OUT"
	Failed     Intent = "FAILED"
	Unknown    Intent = "UNKNOWN"
)

// Confidence grades how much the intent can be trusted.
type Confidence string

const (
	Low    Confidence = "LOW"
	Medium Confidence = "MEDIUM"
	High   Confidence = "HIGH"
)

// Analysis is the classifier output.
type Analysis struct {
	Intent     Intent     `json:"intent"`
	Confidence Confidence `json:"confidence"`
	Interested bool       `json:"interested"`
	OptedOut   bool       `json:"opted_out"`
}

// InterestSignals and OptOutSignals are the only keyword lists used
// anywhere in the module.
var (
	InterestSignals = []string{"registered", "accepted", "thanks", "thank you", "welcome"}
	OptOutSignals   = []string{"unsubscribe", "opt-out", "stop", "do not contact", "dont contact"}
)

// Analyze classifies a reply body and HTTP status (0 when none was received).
func Analyze(response json.RawMessage, status int) Analysis {
	body := strings.ToLower(string(response))

	switch {
	case status == 200 || status == 201 || status == 202:
		if containsAny(body, InterestSignals) {
			return Analysis{Intent: Interested, Confidence: High, Interested: true}
		}
		return Analysis{Intent: Delivered, Confidence: Medium}
	case status == 403 || status == 405:
		return Analysis{Intent: Declined, Confidence: Medium}
	case status == 410:
		return Analysis{Intent: OptedOut, Confidence: High, OptedOut: true}
	case containsAny(body, OptOutSignals):
		return Analysis{Intent: OptedOut, Confidence: High, OptedOut: true}
	case status == 404 || status >= 500:
		return Analysis{Intent: Failed, Confidence: High}
	case status >= 400:
		return Analysis{Intent: Failed, Confidence: Medium}
	}
	return Analysis{Intent: Unknown, Confidence: Low}
}

// HasInterest runs the interest keyword scan on an arbitrary reply body.
func HasInterest(body []byte) bool {
	return containsAny(strings.ToLower(string(body)), InterestSignals)
}

func containsAny(s string, terms []string) bool {
	if s == "" {
		return false
	}
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
