package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPublicTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_events",
			mcp.WithDescription("List published events of a tenant"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
			mcp.WithString("status", mcp.Description("active|ended|completed|cancelled")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 100")),
			mcp.WithNumber("offset", mcp.Description("Page offset, default 0")),
		),
		s.handleListEvents,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_event",
			mcp.WithDescription("Get one event with its options"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
		),
		s.handleGetEvent,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_result",
			mcp.WithDescription("Get winners, payouts and draw proof of a settled event"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
		),
		s.handleGetResult,
	)
}

func (s *Server) handleListEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID := strings.TrimSpace(request.GetString("tenant_id", ""))
	if tenantID == "" {
		return toolError("invalid_request", "tenant_id is required"), nil
	}
	limit, offset := clampPagination(request.GetInt("limit", defaultPageLimit), request.GetInt("offset", 0), maxPageLimit)
	resp, err := s.events.ListEvents(ctx, tenantID, request.GetString("status", ""), limit, offset, false)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.events.GetEvent(ctx, request.GetString("tenant_id", ""), request.GetString("event_id", ""), false)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.events.Result(ctx, request.GetString("tenant_id", ""), request.GetString("event_id", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
