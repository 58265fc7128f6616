package outreach

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/outreach/kit"
)

// RegisterMCP registers the admin recruitment tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerDiscover(srv)
	s.registerQualify(srv)
	s.registerPreview(srv)
	s.registerExecute(srv)
	s.registerPipeline(srv)
	s.registerRecruit(srv)
	s.registerStatus(srv)
	s.registerListOptOuts(srv)
	s.registerAddOptOut(srv)
	s.registerRemoveOptOut(srv)
}

// registerTool exposes endpoint with call logging. Calls without a session
// subject are attributed to "mcp".
func (s *Service) registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	mw := kit.Chain(kit.DefaultActor("mcp"), kit.Logging(s.logger, tool.Name))
	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var (
	agentIDsProp = map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Imported agent IDs"}
	campaignProp = map[string]any{"type": "string", "description": "Campaign name"}
	domainProp   = map[string]any{"type": "string", "description": "Domain or URL"}
)

func (s *Service) registerDiscover(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_discover",
		Description: "Import new agents from Hugging Face Spaces and GitHub",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Discover(ctx)
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[struct{}])
}

func (s *Service) registerQualify(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_qualify",
		Description: "Score imported agents and list the ones worth contacting",
		InputSchema: inputSchema(map[string]any{
			"limit":    map[string]any{"type": "integer", "description": "Max candidates (1-300)"},
			"minScore": map[string]any{"type": "integer", "description": "Minimum score (-100 to 200)"},
		}, nil),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Qualify(ctx, *r.(*QualifyInput))
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[QualifyInput])
}

func (s *Service) registerPreview(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_preview",
		Description: "Render the invitation each agent would receive, issuing invite tokens",
		InputSchema: inputSchema(map[string]any{
			"agentIds": agentIDsProp,
			"campaign": campaignProp,
		}, []string{"agentIds", "campaign"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Preview(ctx, *r.(*TargetsInput))
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[TargetsInput])
}

func (s *Service) registerExecute(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_execute",
		Description: "Send invitations to the listed agents",
		InputSchema: inputSchema(map[string]any{
			"agentIds": agentIDsProp,
			"campaign": campaignProp,
		}, []string{"agentIds", "campaign"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Execute(ctx, *r.(*TargetsInput))
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[TargetsInput])
}

func (s *Service) registerPipeline(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_pipeline",
		Description: "Discover, qualify and preview agents, then send unless dryRun (default true)",
		InputSchema: inputSchema(map[string]any{
			"limit":    map[string]any{"type": "integer", "description": "Max agents (1-100)"},
			"dryRun":   map[string]any{"type": "boolean", "description": "Preview only (default true)"},
			"campaign": campaignProp,
		}, nil),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.RunPipeline(ctx, *r.(*PipelineInput))
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[PipelineInput])
}

func (s *Service) registerRecruit(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_batch",
		Description: "Recruit eligible agents, newest first",
		InputSchema: inputSchema(map[string]any{
			"source":           map[string]any{"type": "string", "description": "Source platform filter"},
			"limit":            map[string]any{"type": "integer", "description": "Max agents (1-200)"},
			"campaign":         campaignProp,
			"dryRun":           map[string]any{"type": "boolean", "description": "Preview only"},
			"contactMethods":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"importedAgentIds": agentIDsProp,
		}, nil),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.RunBatch(ctx, *r.(*BatchInput))
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[BatchInput])
}

func (s *Service) registerStatus(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_status",
		Description: "Recruitment attempt totals, funnel and latest results",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Status(ctx)
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[struct{}])
}

func (s *Service) registerListOptOuts(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_list_opt_outs",
		Description: "List domains that must not be contacted",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.ListOptOuts(ctx)
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[struct{}])
}

func (s *Service) registerAddOptOut(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recruitment_add_opt_out",
		Description: "Stop contacting a domain and mark its attempts OPTED_OUT",
		InputSchema: inputSchema(map[string]any{
			"domain": domainProp,
			"reason": map[string]any{"type": "string", "description": "Why the domain opted out"},
		}, []string{"domain"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.CreateOptOut(ctx, *r.(*OptOutInput))
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[OptOutInput])
}

func (s *Service) registerRemoveOptOut(srv *mcp.Server) {
	type req struct {
		Domain string `json:"domain"`
	}
	tool := &mcp.Tool{
		Name:        "recruitment_remove_opt_out",
		Description: "Remove a domain from the opt-out registry",
		InputSchema: inputSchema(map[string]any{"domain": domainProp}, []string{"domain"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		if err := s.RemoveOptOut(ctx, r.(*req).Domain); err != nil {
			return nil, err
		}
		return map[string]bool{"removed": true}, nil
	}
	s.registerTool(srv, tool, endpoint, kit.DecodeArgs[req])
}
