package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SuppressFunc reports whether address must not be contacted.
type SuppressFunc func(ctx context.Context, address string) bool

// WellKnown fetches an agent card and, when the card exposes a contact
// address, delivers the invitation there through REST.
type WellKnown struct {
	client *Client
	rest   *REST

	// Suppress, when set, is consulted with the contact address read from
	// the card before anything is sent to it.
	Suppress SuppressFunc
}

// NewWellKnown creates the discovery executor.
func NewWellKnown(c *Client, rest *REST) *WellKnown { return &WellKnown{client: c, rest: rest} }

// Execute implements Executor. address is the full card URL.
func (e *WellKnown) Execute(ctx context.Context, address string, payload any) Result {
	resp, err := e.client.do(ctx, request{
		Method:  http.MethodGet,
		URL:     address,
		Header:  map[string]string{"Accept": "application/json"},
		Timeout: e.client.config.ProbeTimeout,
	})
	if err != nil {
		return failure(&RequestError{Channel: WellKnownCheck, URL: address, Cause: err})
	}
	if !resp.OK() {
		return Result{Success: false, Sent: false, Status: resp.Status, Error: "No agent card found"}
	}

	card := json.RawMessage("null")
	if json.Valid(resp.Body) {
		card = json.RawMessage(resp.Body)
	}
	envelope, _ := sjson.SetRawBytes([]byte(`{}`), "agentCardData", card)

	contact := ContactAddress(card)
	if contact == "" {
		return Result{
			Success:  true,
			Sent:     false,
			Status:   http.StatusOK,
			Response: envelope,
			Note:     "Agent card found but no contact endpoint was exposed",
		}
	}

	if e.Suppress != nil && e.Suppress(ctx, contact) {
		envelope, _ = sjson.SetBytes(envelope, "contactUrl", contact)
		return Result{
			Success:    false,
			Sent:       false,
			Status:     http.StatusOK,
			Response:   envelope,
			Suppressed: true,
			Contact:    contact,
			Error:      "Contact address opted out from recruitment",
		}
	}

	res := e.rest.Execute(ctx, contact, payload)
	res.Contact = contact
	inner := res.Response
	if len(inner) == 0 {
		inner = json.RawMessage("null")
	}
	envelope, _ = sjson.SetRawBytes(envelope, "contactResponse", inner)
	res.Response = envelope
	return res
}

// ContactAddress reads the contact URL advertised by an agent card:
// contact_url, then message_url, then api.base_url + "/messages".
func ContactAddress(card []byte) string {
	if !gjson.ValidBytes(card) {
		return ""
	}
	root := gjson.ParseBytes(card)
	if !root.IsObject() {
		return ""
	}
	for _, path := range []string{"contact_url", "message_url"} {
		if v := root.Get(path); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			return v.Str
		}
	}
	if v := root.Get("api.base_url"); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
		return strings.TrimSuffix(v.Str, "/") + "/messages"
	}
	return ""
}
