package store

import (
	"encoding/json"

	"github.com/hazyhaar/outreach/outreach/internal/sourcedata"
)

// TargetStatus is the catalog lifecycle of a target.
type TargetStatus string

const (
	TargetUnclaimed  TargetStatus = "UNCLAIMED"
	TargetContacted  TargetStatus = "CONTACTED"
	TargetInterested TargetStatus = "INTERESTED"
	TargetDeclined   TargetStatus = "DECLINED"
	TargetOptedOut   TargetStatus = "OPTED_OUT"
	TargetFailed     TargetStatus = "FAILED"
)

// Sticky reports whether the status can no longer change.
func (s TargetStatus) Sticky() bool {
	return s == TargetInterested || s == TargetDeclined || s == TargetOptedOut
}

// EligibleStatuses are the target statuses a recruitment run may pick up.
var EligibleStatuses = []TargetStatus{TargetUnclaimed, TargetContacted, TargetFailed}

// AttemptStatus is the recorded outcome of one channel attempt.
type AttemptStatus string

const (
	StatusPending    AttemptStatus = "PENDING"
	StatusSent       AttemptStatus = "SENT"
	StatusDelivered  AttemptStatus = "DELIVERED"
	StatusInterested AttemptStatus = "INTERESTED"
	StatusRegistered AttemptStatus = "REGISTERED"
	StatusDeclined   AttemptStatus = "DECLINED"
	StatusOptedOut   AttemptStatus = "OPTED_OUT"
	StatusFailed     AttemptStatus = "FAILED"
)

// OptOutMessage is stamped on attempts rewritten by an opt-out.
const OptOutMessage = "Domain opted out from automated recruitment"

// Target is one discovered entity in the catalog.
type Target struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Skills         []string         `json:"skills"`
	Category       string           `json:"category"`
	SourceURL      string           `json:"source_url"`
	SourcePlatform string           `json:"source_platform"`
	EndpointURL    string           `json:"endpoint_url,omitempty"`
	WebsiteURL     string           `json:"website_url,omitempty"`
	SourceData     sourcedata.Value `json:"source_data"`
	Status         TargetStatus     `json:"status"`
	ImportedAt     int64            `json:"imported_at"`
	UpdatedAt      int64            `json:"updated_at"`
}

// Protocols returns the lowercased protocol tags declared in SourceData.
func (t *Target) Protocols() []string {
	raw, _ := t.SourceData.Strings("protocols")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		out = append(out, toLower(p))
	}
	return out
}

// Attempt is the durable record of contacting a target through one channel.
// (TargetURL, Channel) is unique; re-attempts update the row in place.
type Attempt struct {
	ID              string          `json:"id"`
	TargetID        string          `json:"target_id"`
	TargetName      string          `json:"target_name"`
	TargetURL       string          `json:"target_url"`
	ContactURL      string          `json:"contact_url"`
	Channel         string          `json:"channel"`
	RequestPayload  json.RawMessage `json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	ResponseStatus  int             `json:"response_status,omitempty"`
	Status          AttemptStatus   `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	InviteToken     string          `json:"invite_token,omitempty"`
	Campaign        string          `json:"campaign"`
	AttemptNumber   int             `json:"attempt_number"`
	NextRetryAt     int64           `json:"next_retry_at,omitempty"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
}

// OptOut is one suppressed domain.
type OptOut struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Invite is a single-use registration token handed to a target.
type Invite struct {
	Token     string          `json:"token"`
	Campaign  string          `json:"campaign"`
	TargetID  string          `json:"target_id"`
	AgentName string          `json:"agent_name"`
	AgentData json.RawMessage `json:"agent_data,omitempty"`
	MaxUses   int             `json:"max_uses"`
	CreatedBy string          `json:"created_by"`
	CreatedAt int64           `json:"created_at"`
}

// CandidateFilter selects targets for a recruitment run.
type CandidateFilter struct {
	Statuses       []TargetStatus
	SourcePlatform string
	IDs            []string
	Limit          int
}

// ContactRef is the address pair of a past attempt.
type ContactRef struct {
	TargetURL  string
	ContactURL string
}

// Count is one row of a grouped count.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
