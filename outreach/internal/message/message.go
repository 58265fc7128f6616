// Package message renders the invitation payloads sent by each channel.
// Rendering is pure: no network, no storage.
package message

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/outreach/outreach/internal/channels"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://www.agent-l.ink"

const recruiterName = "AgentLink Recruiter"

var benefits = []string{
	"Get discovered by developers and other AI agents",
	"Build reputation with reviews and trust verification",
	"Enable agent-to-agent collaboration via our messaging API",
	"Free forever, open platform",
}

// Renderer builds invitation payloads and links for one public base URL.
type Renderer struct {
	baseURL string
	strict  *bluemonday.Policy
	now     func() time.Time
}

// NewRenderer creates a Renderer. An empty baseURL means DefaultBaseURL.
func NewRenderer(baseURL string) *Renderer {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Renderer{baseURL: baseURL, strict: bluemonday.StrictPolicy(), now: time.Now}
}

// Context is what every template needs.
type Context struct {
	Target      *store.Target
	InviteToken string
	Campaign    string
}

// BaseURL returns the public base URL.
func (r *Renderer) BaseURL() string { return r.baseURL }

// InviteURL is the registration link for token.
func (r *Renderer) InviteURL(token string) string { return r.baseURL + "/join/" + token }

// PolicyURL is the public recruitment policy page.
func (r *Renderer) PolicyURL() string { return r.baseURL + "/recruitment-policy" }

// OptOutPageURL is the human opt-out page.
func (r *Renderer) OptOutPageURL() string { return r.baseURL + "/opt-out" }

// OptOutAPIURL is the machine opt-out endpoint.
func (r *Renderer) OptOutAPIURL() string { return r.baseURL + "/api/v1/recruitment/opt-out" }

// Invitation is the JSON body sent to REST endpoints.
type Invitation struct {
	Type           string         `json:"type"`
	Version        string         `json:"version"`
	From           From           `json:"from"`
	Message        string         `json:"message"`
	Invitation     InvitationInfo `json:"invitation"`
	Benefits       []string       `json:"benefits"`
	Identification Identification `json:"identification"`
	OptOut         OptOutInfo     `json:"opt_out"`
}

// From identifies the sender.
type From struct {
	Name      string `json:"name"`
	Platform  string `json:"platform"`
	URL       string `json:"url"`
	PolicyURL string `json:"policy_url"`
}

// InvitationInfo carries the registration links and pre-filled profile.
type InvitationInfo struct {
	RegisterURL   string    `json:"register_url"`
	APIRegister   string    `json:"api_register"`
	Documentation string    `json:"documentation"`
	PreFilled     PreFilled `json:"pre_filled"`
	Campaign      string    `json:"campaign"`
}

// PreFilled is the profile the target would get on registration.
type PreFilled struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	Endpoint    *string  `json:"endpoint"`
}

// Identification states that the message is automated.
type Identification struct {
	Automated bool   `json:"automated"`
	Statement string `json:"statement"`
	UserAgent string `json:"user_agent"`
}

// OptOutInfo tells the receiver how to stop further contact.
type OptOutInfo struct {
	Page        string `json:"page"`
	URL         string `json:"url"`
	Instruction string `json:"instruction"`
}

// REST builds the REST (and webhook inner) invitation.
func (r *Renderer) REST(c Context) Invitation {
	t := c.Target
	var endpoint *string
	if t.EndpointURL != "" {
		e := t.EndpointURL
		endpoint = &e
	}
	return Invitation{
		Type:    "agentlink_invitation",
		Version: "1.0",
		From: From{
			Name:      recruiterName,
			Platform:  "AgentLink",
			URL:       r.baseURL,
			PolicyURL: r.PolicyURL(),
		},
		Message: "Hi! I am the AgentLink Recruiter. AgentLink is an open registry where AI agents get discovered by developers and other agents. " +
			"I noticed your agent at " + t.SourceURL + " and think it would be a great addition. Registration is free and takes about 30 seconds.",
		Invitation: InvitationInfo{
			RegisterURL:   r.InviteURL(c.InviteToken),
			APIRegister:   r.baseURL + "/api/v1/agents/register",
			Documentation: r.baseURL + "/docs",
			PreFilled: PreFilled{
				Name:        t.Name,
				Description: Description(t),
				Skills:      Skills(t),
				Endpoint:    endpoint,
			},
			Campaign: c.Campaign,
		},
		Benefits: benefits,
		Identification: Identification{
			Automated: true,
			Statement: "This is an automated message from AgentLink",
			UserAgent: channels.UserAgent,
		},
		OptOut: OptOutInfo{
			Page:        r.OptOutPageURL(),
			URL:         r.OptOutAPIURL(),
			Instruction: "To never be contacted again, POST your domain to the opt-out API.",
		},
	}
}

// A2ARequest is the JSON-RPC agent/discover invitation.
type A2ARequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  A2AParams `json:"params"`
}

// A2AParams is the agent/discover parameter object.
type A2AParams struct {
	From        A2AFrom `json:"from"`
	Intent      string  `json:"intent"`
	Message     string  `json:"message"`
	RegisterURL string  `json:"register_url"`
	PolicyURL   string  `json:"policy_url"`
	OptOutURL   string  `json:"opt_out_url"`
	Automated   bool    `json:"automated"`
}

// A2AFrom identifies the sender to A2A peers.
type A2AFrom struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Card string `json:"card"`
}

// A2A builds the agent-to-agent invitation.
func (r *Renderer) A2A(c Context) A2ARequest {
	invite := r.InviteURL(c.InviteToken)
	return A2ARequest{
		JSONRPC: "2.0",
		Method:  "agent/discover",
		Params: A2AParams{
			From: A2AFrom{
				Name: recruiterName,
				URL:  r.baseURL,
				Card: r.baseURL + channels.DiscoveryPath,
			},
			Intent: "invitation",
			Message: "AgentLink is an open AI agent registry. We would like to list " + c.Target.Name + ". " +
				"Registration: " + invite,
			RegisterURL: invite,
			PolicyURL:   r.PolicyURL(),
			OptOutURL:   r.OptOutAPIURL(),
			Automated:   true,
		},
	}
}

// WebhookEvent wraps the REST invitation in an event envelope.
type WebhookEvent struct {
	Event    string     `json:"event"`
	Campaign string     `json:"campaign"`
	SentAt   string     `json:"sent_at"`
	Payload  Invitation `json:"payload"`
}

// Webhook builds the webhook event.
func (r *Renderer) Webhook(c Context) WebhookEvent {
	return WebhookEvent{
		Event:    "agentlink.recruitment.invitation",
		Campaign: c.Campaign,
		SentAt:   r.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Payload:  r.REST(c),
	}
}

// GitHubIssue builds the issue title and Markdown body.
func (r *Renderer) GitHubIssue(c Context) channels.IssuePayload {
	t := c.Target
	name := r.strict.Sanitize(t.Name)
	invite := r.InviteURL(c.InviteToken)

	domain := t.SourcePlatform
	if u, err := url.Parse(t.SourceURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}

	skills := Skills(t)
	cleanSkills := make([]string, len(skills))
	for i, s := range skills {
		cleanSkills[i] = strings.ReplaceAll(s, `"`, "")
	}
	apiPayload, _ := json.Marshal(struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Skills      []string `json:"skills"`
	}{
		Name:        strings.ReplaceAll(t.Name, `"`, ""),
		Description: strings.NewReplacer(`"`, "", "'", "").Replace(Description(t)),
		Skills:      cleanSkills,
	})

	body := strings.Join([]string{
		"Hi!",
		"",
		fmt.Sprintf("I am the [AgentLink](%s) recruiter bot. AgentLink is an open platform where AI agents get discovered by developers and other agents.", r.baseURL),
		"",
		fmt.Sprintf("I noticed **%s** and think it would be a great fit for the registry.", name),
		"",
		"Registration takes about 30 seconds:",
		invite,
		"",
		"Or register via API:",
		"```bash",
		fmt.Sprintf("curl -X POST %s/api/v1/agents/register \\", r.baseURL),
		`  -H "Content-Type: application/json" \`,
		fmt.Sprintf("  -d '%s'", apiPayload),
		"```",
		"",
		"What you get:",
		"- Public profile page discoverable by search engines",
		"- Reviews and trust verification",
		"- Agent-to-agent messaging and connect APIs",
		"- MCP discoverability",
		"",
		fmt.Sprintf("Learn more: %s/docs", r.baseURL),
		"",
		"---",
		"This is an automated invitation from AgentLink.",
		"Recruitment policy: " + r.PolicyURL(),
		"Opt out page: " + r.OptOutPageURL(),
		fmt.Sprintf(`Opt out API: %s (body: { "domain": "%s" })`, r.OptOutAPIURL(), domain),
	}, "\n")

	return channels.IssuePayload{
		Title: fmt.Sprintf("List %s on AgentLink - the open AI agent registry", name),
		Body:  body,
	}
}

// Payload returns what the executor for method is sent.
func (r *Renderer) Payload(method channels.Channel, c Context) any {
	switch method {
	case channels.A2AProtocol:
		return r.A2A(c)
	case channels.GitHubIssue, channels.EmailAPI:
		return r.GitHubIssue(c)
	case channels.WebhookPing:
		return r.Webhook(c)
	default:
		return r.REST(c)
	}
}

// Rendered is a human-readable view of one invitation.
type Rendered struct {
	Method     channels.Channel `json:"method"`
	Subject    string           `json:"subject"`
	Body       string           `json:"body"`
	InviteLink string           `json:"inviteUrl"`
	Payload    any              `json:"payload"`
}

// Render produces the subject, body and invite link for method.
func (r *Renderer) Render(method channels.Channel, c Context) Rendered {
	payload := r.Payload(method, c)
	out := Rendered{
		Method:     method,
		InviteLink: r.InviteURL(c.InviteToken),
		Payload:    payload,
	}
	if issue, ok := payload.(channels.IssuePayload); ok {
		out.Subject = issue.Title
		out.Body = issue.Body
		return out
	}
	out.Subject = "AgentLink invitation via " + string(method)
	out.Body = PreviewText(method, payload)
	return out
}

// PreviewText is the method name followed by the indented JSON payload.
func PreviewText(method channels.Channel, payload any) string {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		b = []byte("null")
	}
	return string(method) + "\n" + string(b)
}

// Description returns the trimmed target description or a placeholder.
func Description(t *store.Target) string {
	if d := strings.TrimSpace(t.Description); d != "" {
		return d
	}
	return "Public AI agent discovered on " + t.SourcePlatform
}

// Skills returns up to five skills, or ["ai-assistant"].
func Skills(t *store.Target) []string {
	if len(t.Skills) == 0 {
		return []string{"ai-assistant"}
	}
	if len(t.Skills) > 5 {
		return t.Skills[:5]
	}
	return t.Skills
}
