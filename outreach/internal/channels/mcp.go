package channels

import (
	"context"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
)

// PreferredTools are the MCP tool names that accept an inbound message.
var PreferredTools = []string{"receive_message", "contact", "contact_agent", "inbox.receive"}

// MCPSource is the "source" argument sent with every tool call.
const MCPSource = "agentlink-recruiter"

// MCP lists the endpoint's tools and calls the first message-accepting one.
// When the listing fails or offers no such tool, or the call itself fails,
// the payload goes through REST instead and that result is returned as is.
type MCP struct {
	client *Client
	rest   *REST
}

// NewMCP creates the tool-call executor.
func NewMCP(c *Client, rest *REST) *MCP { return &MCP{client: c, rest: rest} }

type toolCallRequest struct {
	JSONRPC string              `json:"jsonrpc"`
	Method  string              `json:"method"`
	Params  *mcp.CallToolParams `json:"params"`
}

// Execute implements Executor.
func (e *MCP) Execute(ctx context.Context, address string, payload any) Result {
	tool := e.findTool(ctx, address)
	if tool == "" {
		return e.rest.Execute(ctx, address, payload)
	}

	resp, err := e.client.do(ctx, request{
		Method: http.MethodPost,
		URL:    address,
		Body: toolCallRequest{
			JSONRPC: "2.0",
			Method:  "tools/call",
			Params: &mcp.CallToolParams{
				Name: tool,
				Arguments: map[string]any{
					"message": payload,
					"source":  MCPSource,
				},
			},
		},
	})
	if err != nil {
		return e.rest.Execute(ctx, address, payload)
	}
	return Result{
		Success:  resp.OK(),
		Sent:     true,
		Status:   resp.Status,
		Response: e.client.decodeBody(resp),
	}
}

// findTool returns the first preferred tool offered by the listing at
// address, or "".
func (e *MCP) findTool(ctx context.Context, address string) string {
	resp, err := e.client.do(ctx, request{
		Method:  http.MethodGet,
		URL:     address,
		Header:  map[string]string{"Accept": "application/json"},
		Timeout: e.client.config.ProbeTimeout,
	})
	if err != nil || !resp.OK() {
		return ""
	}
	for _, name := range ToolNames(e.client.decodeBody(resp)) {
		for _, p := range PreferredTools {
			if name == p {
				return name
			}
		}
	}
	return ""
}

// ToolNames extracts lowercased tool names from a listing shaped as
// {"tools":[{"name":...}]} or {"data":{"tools":[...]}}.
func ToolNames(listing []byte) []string {
	if !gjson.ValidBytes(listing) {
		return nil
	}
	root := gjson.ParseBytes(listing)
	tools := root.Get("tools")
	if !tools.Exists() || tools.Type == gjson.Null {
		tools = root.Get("data.tools")
	}
	if !tools.IsArray() {
		return nil
	}
	var names []string
	for _, t := range tools.Array() {
		if n := t.Get("name"); n.Type == gjson.String {
			names = append(names, strings.ToLower(n.Str))
		}
	}
	return names
}
