package channels

import (
	"context"
	"net/http"

	"github.com/hazyhaar/outreach/outreach/internal/classify"
)

// REST POSTs the payload as JSON to the target endpoint.
type REST struct {
	client *Client
}

// NewREST creates the generic HTTP executor.
func NewREST(c *Client) *REST { return &REST{client: c} }

// Execute implements Executor.
func (e *REST) Execute(ctx context.Context, address string, payload any) Result {
	resp, err := e.client.do(ctx, request{
		Method: http.MethodPost,
		URL:    address,
		Header: map[string]string{MarkerHeader: MarkerValue},
		Body:   payload,
	})
	if err != nil {
		return failure(&RequestError{Channel: RESTEndpoint, URL: address, Cause: err})
	}
	body := e.client.decodeBody(resp)
	return Result{
		Success:    resp.OK(),
		Sent:       true,
		Status:     resp.Status,
		Response:   body,
		Interested: classify.HasInterest(body),
	}
}

// Webhook is a webhook-style ping. It is REST under a distinct, lower
// priority strategy entry.
type Webhook struct {
	rest *REST
}

// NewWebhook creates the webhook executor over rest.
func NewWebhook(rest *REST) *Webhook { return &Webhook{rest: rest} }

// Execute implements Executor.
func (e *Webhook) Execute(ctx context.Context, address string, payload any) Result {
	return e.rest.Execute(ctx, address, payload)
}

// A2A POSTs a JSON-RPC agent/discover invitation.
type A2A struct {
	client *Client
}

// NewA2A creates the agent-to-agent executor.
func NewA2A(c *Client) *A2A { return &A2A{client: c} }

// Execute implements Executor.
func (e *A2A) Execute(ctx context.Context, address string, payload any) Result {
	resp, err := e.client.do(ctx, request{Method: http.MethodPost, URL: address, Body: payload})
	if err != nil {
		return failure(&RequestError{Channel: A2AProtocol, URL: address, Cause: err})
	}
	return Result{
		Success:  resp.OK(),
		Sent:     true,
		Status:   resp.Status,
		Response: e.client.decodeBody(resp),
	}
}
