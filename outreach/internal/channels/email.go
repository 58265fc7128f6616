package channels

import (
	"context"
	"net/http"
	"strings"
)

// EmailConfig configures the email API executor. All three fields are
// required; with any of them empty every send fails cleanly.
type EmailConfig struct {
	APIKey string
	From   string
	APIURL string
}

// Email sends the invitation through a transactional email HTTP API. The
// strategy resolver never selects it; it is reachable through the registry
// only.
type Email struct {
	client *Client
	config EmailConfig
}

// NewEmail creates the email executor.
func NewEmail(c *Client, cfg EmailConfig) *Email { return &Email{client: c, config: cfg} }

// Configured reports whether the API key, sender and API URL are set.
func (e *Email) Configured() bool {
	return e.config.APIKey != "" && e.config.From != "" && e.config.APIURL != ""
}

// Execute implements Executor. address is the recipient; a mailto: prefix
// is accepted.
func (e *Email) Execute(ctx context.Context, address string, payload any) Result {
	if !e.Configured() {
		return Result{Error: "EMAIL_API executor is not configured"}
	}
	to := strings.TrimPrefix(strings.TrimSpace(address), "mailto:")
	if to == "" || !strings.Contains(to, "@") {
		return Result{Error: "invalid email recipient"}
	}

	var subject, text string
	switch p := payload.(type) {
	case IssuePayload:
		subject, text = p.Title, p.Body
	case *IssuePayload:
		subject, text = p.Title, p.Body
	default:
		subject = "AgentLink invitation"
	}

	body := map[string]any{
		"from":    e.config.From,
		"to":      []string{to},
		"subject": subject,
	}
	if text != "" {
		body["text"] = text
	} else {
		body["data"] = payload
	}

	resp, err := e.client.do(ctx, request{
		Method: http.MethodPost,
		URL:    e.config.APIURL,
		Header: map[string]string{"Authorization": "Bearer " + e.config.APIKey},
		Body:   body,
	})
	if err != nil {
		return failure(&RequestError{Channel: EmailAPI, URL: e.config.APIURL, Cause: err})
	}
	return Result{
		Success:  resp.OK(),
		Sent:     resp.OK(),
		Status:   resp.Status,
		Response: e.client.decodeBody(resp),
	}
}
