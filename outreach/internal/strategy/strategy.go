// Package strategy turns a catalog target into the ordered list of channels
// to try.
package strategy

import (
	"sort"
	"strings"

	"github.com/hazyhaar/outreach/outreach/internal/channels"
	"github.com/hazyhaar/outreach/outreach/internal/hostkey"
	"github.com/hazyhaar/outreach/outreach/internal/store"
)

// Entry is one channel attempt in a strategy. Lower Priority is tried first.
type Entry struct {
	Method      channels.Channel `json:"method"`
	URL         string           `json:"url"`
	Priority    int              `json:"priority"`
	Description string           `json:"description"`
}

// Resolve computes the strategy for t. Malformed addresses are skipped; a
// target with no usable address yields an empty, non-nil slice.
func Resolve(t *store.Target) []Entry {
	out := []Entry{}
	add := func(e Entry) {
		for _, existing := range out {
			if existing.Method == e.Method && strings.EqualFold(existing.URL, e.URL) {
				return
			}
		}
		out = append(out, e)
	}

	if origin, ok := hostkey.Origin(t.EndpointURL); ok {
		endpoint := strings.TrimSpace(t.EndpointURL)
		protocols := t.Protocols()
		lower := strings.ToLower(endpoint)

		add(Entry{channels.WellKnownCheck, origin + channels.DiscoveryPath, 1, "Check for agent card and contact endpoint"})
		add(Entry{channels.RESTEndpoint, endpoint, 2, "Send JSON invitation to REST endpoint"})
		if strings.Contains(lower, "a2a") || contains(protocols, "a2a") {
			add(Entry{channels.A2AProtocol, endpoint, 3, "Send an A2A JSON-RPC invitation"})
		}
		if strings.Contains(lower, "mcp") || contains(protocols, "mcp") {
			add(Entry{channels.MCPInteraction, endpoint, 4, "Interact through MCP tools when available"})
		}
		add(Entry{channels.WebhookPing, endpoint, 7, "Fallback webhook-style ping"})
	}

	if t.SourcePlatform == "github" && hostkey.IsHTTPURL(t.SourceURL) {
		add(Entry{channels.GitHubIssue, strings.TrimSpace(t.SourceURL), 5, "Open a GitHub issue with a registration invite"})
	}

	if origin, ok := hostkey.Origin(t.WebsiteURL); ok {
		add(Entry{channels.WellKnownCheck, origin + channels.DiscoveryPath, 6, "Check website for an agent card"})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
