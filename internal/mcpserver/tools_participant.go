package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerParticipantTools() {
	identity := []mcp.ToolOption{
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Participant id")),
	}
	tool := func(name, desc string, opts ...mcp.ToolOption) mcp.Tool {
		all := append([]mcp.ToolOption{mcp.WithDescription(desc)}, identity...)
		return mcp.NewTool(name, append(all, opts...)...)
	}

	s.mcpServer.AddTool(
		tool("join_event", "Join an event; wagers need option_id",
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
			mcp.WithString("option_id", mcp.Description("Option or slot id")),
		),
		s.handleJoin,
	)
	s.mcpServer.AddTool(
		tool("select_slot", "Pick or change a slot in a pot wager before committing",
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
			mcp.WithString("option_id", mcp.Required(), mcp.Description("Slot id")),
		),
		s.handleSelectSlot,
	)
	s.mcpServer.AddTool(
		tool("commit_entry", "Commit the entry fee for the selected slot",
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
		),
		s.handleCommit,
	)
	s.mcpServer.AddTool(
		tool("vote", "Cast or change a vote",
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
			mcp.WithString("option_id", mcp.Required(), mcp.Description("Option id")),
		),
		s.handleVote,
	)
	s.mcpServer.AddTool(
		tool("get_entry", "Get the caller's entry in an event",
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event id")),
		),
		s.handleGetEntry,
	)
	s.mcpServer.AddTool(
		tool("set_payout_address", "Register the wallet address winnings are sent to",
			mcp.WithString("address", mcp.Required(), mcp.Description("Wallet address")),
			mcp.WithString("network", mcp.Description("Ledger network")),
		),
		s.handleSetPayoutAddress,
	)
}

func (s *Server) handleJoin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, userID, errRes := participant(request)
	if errRes != nil {
		return errRes, nil
	}
	resp, err := s.events.Join(ctx, tenantID, request.GetString("event_id", ""), userID, request.GetString("option_id", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleSelectSlot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, userID, errRes := participant(request)
	if errRes != nil {
		return errRes, nil
	}
	resp, err := s.events.SelectSlot(ctx, tenantID, request.GetString("event_id", ""), userID, request.GetString("option_id", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleCommit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, userID, errRes := participant(request)
	if errRes != nil {
		return errRes, nil
	}
	resp, err := s.events.Commit(ctx, tenantID, request.GetString("event_id", ""), userID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleVote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, userID, errRes := participant(request)
	if errRes != nil {
		return errRes, nil
	}
	resp, err := s.events.Vote(ctx, tenantID, request.GetString("event_id", ""), userID, request.GetString("option_id", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, userID, errRes := participant(request)
	if errRes != nil {
		return errRes, nil
	}
	resp, err := s.events.GetEntry(ctx, tenantID, request.GetString("event_id", ""), userID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleSetPayoutAddress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, userID, errRes := participant(request)
	if errRes != nil {
		return errRes, nil
	}
	resp, err := s.events.SetPayoutAddress(ctx, tenantID, userID, request.GetString("address", ""), request.GetString("network", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
