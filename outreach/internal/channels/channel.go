// Package channels provides the outbound contact executors: one per way of
// reaching a discovered agent (REST endpoint, agent card discovery, A2A,
// MCP tool call, GitHub issue, webhook ping, email API).
//
// Every executor performs a bounded number of HTTP round trips and reports
// the outcome as a Result. Executors never return errors: transport
// failures, malformed addresses and missing credentials all become
// Result{Success: false, Sent: false, Error: ...}.
//
//	client := channels.NewClient(channels.Config{})
//	reg := channels.NewRegistry(client, channels.GitHubConfig{Token: tok}, channels.EmailConfig{})
//	res := reg.Execute(ctx, channels.RESTEndpoint, "https://agent.dev/api", payload)
//
// Fallbacks are composition: MCP, WellKnown and Webhook hold a *REST and
// delegate to it.
package channels

import (
	"context"
	"encoding/json"
)

// Channel names one contact method. Values are persisted on attempt rows.
type Channel string

const (
	RESTEndpoint   Channel = "REST_ENDPOINT"
	WellKnownCheck Channel = "WELL_KNOWN_CHECK"
	A2AProtocol    Channel = "A2A_PROTOCOL"
	MCPInteraction Channel = "MCP_INTERACTION"
	GitHubIssue    Channel = "GITHUB_ISSUE"
	WebhookPing    Channel = "WEBHOOK_PING"
	EmailAPI       Channel = "EMAIL_API"
)

// All lists every channel, in declaration order.
var All = []Channel{RESTEndpoint, WellKnownCheck, A2AProtocol, MCPInteraction, GitHubIssue, WebhookPing, EmailAPI}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	for _, k := range All {
		if c == k {
			return true
		}
	}
	return false
}

const (
	// UserAgent identifies every outbound request. Receiving parties filter on it.
	UserAgent = "AgentLink-Recruiter/1.0"
	// MarkerHeader is set on REST and webhook deliveries.
	MarkerHeader = "X-AgentLink-Type"
	// MarkerValue is the MarkerHeader value.
	MarkerValue = "invitation"
	// DiscoveryPath is where agents publish their card.
	DiscoveryPath = "/.well-known/agent-card.json"
)

// Result is the uniform outcome of one executor call.
//
// Success means the remote side accepted the request (2xx) or, for probes,
// that the probe itself worked. Sent means an invitation actually left.
// A probe that found a card without a contact address is Success && !Sent.
// Suppressed marks a probe whose discovered contact address is on the
// opt-out registry; nothing was sent and no attempt should be recorded.
// Contact is the address the invitation went to when it differs from the
// one the executor was called with.
type Result struct {
	Success      bool            `json:"success"`
	Sent         bool            `json:"sent"`
	Status       int             `json:"status,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
	Error        string          `json:"error,omitempty"`
	Interested   bool            `json:"interested,omitempty"`
	OptOutSignal bool            `json:"optOutSignal,omitempty"`
	Suppressed   bool            `json:"suppressed,omitempty"`
	Contact      string          `json:"contact,omitempty"`
	Note         string          `json:"note,omitempty"`
}

// Delivered reports whether the walk over a strategy can stop.
func (r Result) Delivered() bool { return r.Success && r.Sent }

// Executor performs one contact attempt against address.
type Executor interface {
	Execute(ctx context.Context, address string, payload any) Result
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, address string, payload any) Result

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, address string, payload any) Result {
	return f(ctx, address, payload)
}

func failure(err error) Result {
	return Result{Success: false, Sent: false, Error: err.Error()}
}
