package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	appevents "event-settlement/internal/app/events"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes the participant surface of the events service as MCP tools.
type Server struct {
	events *appevents.Service

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(events *appevents.Service) *Server {
	mcpSrv := server.NewMCPServer(
		"event-settlement",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		events:     events,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerPublicTools()
	s.registerParticipantTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"event://{tenant_id}/{event_id}/result",
			"event_result",
			mcp.WithTemplateDescription("Settlement result of a finished event"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := string(request.Params.URI)
			tenantID, eventID, ok := parseResultURI(raw)
			if !ok {
				return nil, nil
			}
			res, err := s.events.Result(ctx, tenantID, eventID)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(res)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

func parseResultURI(raw string) (string, string, bool) {
	if !strings.HasPrefix(raw, "event://") || !strings.HasSuffix(raw, "/result") {
		return "", "", false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(raw, "event://"), "/result")
	tenantID, eventID, ok := strings.Cut(rest, "/")
	if !ok || tenantID == "" || eventID == "" || strings.Contains(eventID, "/") {
		return "", "", false
	}
	return tenantID, eventID, true
}

// participant pulls the tenant and user every participant tool requires.
func participant(request mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	tenantID := strings.TrimSpace(request.GetString("tenant_id", ""))
	userID := strings.TrimSpace(request.GetString("user_id", ""))
	if tenantID == "" || userID == "" {
		return "", "", toolError("invalid_request", "tenant_id and user_id are required")
	}
	return tenantID, userID, nil
}
