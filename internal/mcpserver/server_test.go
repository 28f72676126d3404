package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	appevents "event-settlement/internal/app/events"
	"event-settlement/internal/ledger"
	"event-settlement/internal/settlement"
	"event-settlement/internal/store/memstore"
	"event-settlement/internal/treasury"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const tenant = "tenant-mcp"

type okLedger struct{}

func (okLedger) Transfer(_ context.Context, req ledger.TransferRequest) (string, error) {
	return "tx-" + req.IdempotencyKey, nil
}

func (okLedger) GetBalance(context.Context, string, string) (int64, error) { return 1_000, nil }

func newTestService(t *testing.T) *appevents.Service {
	t.Helper()
	repo := memstore.New()
	c, err := treasury.NewCipher(strings.Repeat("ef", 32))
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	eng := settlement.NewEngine(repo, nil, okLedger{}, c, nil, settlement.Options{})
	svc := appevents.NewService(repo, eng, okLedger{}, nil, c)
	if _, err := svc.UpsertTreasury(context.Background(), tenant, appevents.TreasuryInput{
		WalletAddress: "treasury", Secret: "s3cret", Network: "testnet",
	}); err != nil {
		t.Fatalf("treasury: %v", err)
	}
	return svc
}

func publishPot(t *testing.T, svc *appevents.Service) *appevents.EventView {
	t.Helper()
	ctx := context.Background()
	created, err := svc.CreateEvent(ctx, tenant, appevents.CreateEventInput{
		Kind: "wager", Mode: "pot", Title: "Slots", EntryFee: 10, MaxParticipants: 2, DurationSeconds: 600,
		Options: []appevents.OptionInput{{Label: "1"}, {Label: "2"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ev, err := svc.PublishEvent(ctx, tenant, created.EventID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return ev
}

func TestMCPServerToolsAndPotFlow(t *testing.T) {
	svc := newTestService(t)
	ev := publishPot(t, svc)

	httpSrv := httptest.NewServer(New(svc).Handler())
	defer httpSrv.Close()
	mcpClient, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	defer closeClient()

	assertToolNames(t, mustListTools(t, mcpClient),
		"list_events",
		"get_event",
		"get_result",
		"join_event",
		"select_slot",
		"commit_entry",
		"vote",
		"get_entry",
		"set_payout_address",
	)

	list := mustCallTool(t, mcpClient, "list_events", map[string]any{"tenant_id": tenant})
	if list.IsError {
		t.Fatalf("list_events: %v", list.StructuredContent)
	}
	items, _ := mapFromStructured(t, list)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}

	var last *mcp.CallToolResult
	for i, user := range []string{"p1", "p2"} {
		base := map[string]any{"tenant_id": tenant, "user_id": user, "event_id": ev.EventID}
		if res := mustCallTool(t, mcpClient, "set_payout_address", map[string]any{"tenant_id": tenant, "user_id": user, "address": "addr-" + user}); res.IsError {
			t.Fatalf("set_payout_address: %v", res.StructuredContent)
		}
		slot := map[string]any{"option_id": ev.Options[i].OptionID}
		for k, v := range base {
			slot[k] = v
		}
		if res := mustCallTool(t, mcpClient, "select_slot", slot); res.IsError {
			t.Fatalf("select_slot: %v", res.StructuredContent)
		}
		last = mustCallTool(t, mcpClient, "commit_entry", base)
		if last.IsError {
			t.Fatalf("commit_entry: %v", last.StructuredContent)
		}
	}

	settled, ok := mapFromStructured(t, last)["settlement"].(map[string]any)
	if !ok || asString(settled["status"]) != "completed" {
		t.Fatalf("expected capacity settlement, got %v", last.StructuredContent)
	}
	if pot := asFloat64(settled["pot"]); pot != 20 {
		t.Fatalf("pot = %v, want 20", pot)
	}

	result := mustCallTool(t, mcpClient, "get_result", map[string]any{"tenant_id": tenant, "event_id": ev.EventID})
	if result.IsError {
		t.Fatalf("get_result: %v", result.StructuredContent)
	}
	payload := mapFromStructured(t, result)
	if _, ok := payload["draw"].(map[string]any); !ok {
		t.Fatalf("wager result should carry a draw proof: %v", payload)
	}
}

func TestMCPServerToolErrors(t *testing.T) {
	svc := newTestService(t)
	ev := publishPot(t, svc)

	httpSrv := httptest.NewServer(New(svc).Handler())
	defer httpSrv.Close()
	mcpClient, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	defer closeClient()

	missing := mustCallTool(t, mcpClient, "join_event", map[string]any{"tenant_id": tenant, "event_id": ev.EventID})
	assertToolErrorCode(t, missing, "invalid_request")

	wrongKind := mustCallTool(t, mcpClient, "vote", map[string]any{
		"tenant_id": tenant, "user_id": "p1", "event_id": ev.EventID, "option_id": ev.Options[0].OptionID,
	})
	assertToolErrorCode(t, wrongKind, "wrong_event_kind")

	noAddress := mustCallTool(t, mcpClient, "select_slot", map[string]any{
		"tenant_id": tenant, "user_id": "p1", "event_id": ev.EventID, "option_id": ev.Options[0].OptionID,
	})
	if noAddress.IsError {
		t.Fatalf("select_slot: %v", noAddress.StructuredContent)
	}
	assertToolErrorCode(t, mustCallTool(t, mcpClient, "commit_entry", map[string]any{
		"tenant_id": tenant, "user_id": "p1", "event_id": ev.EventID,
	}), "no_payout_address")

	assertToolErrorCode(t, mustCallTool(t, mcpClient, "get_result", map[string]any{
		"tenant_id": tenant, "event_id": ev.EventID,
	}), "event_not_settled")

	assertToolErrorCode(t, mustCallTool(t, mcpClient, "get_event", map[string]any{
		"tenant_id": tenant, "event_id": "missing",
	}), "event_not_found")
}

func TestParseResultURI(t *testing.T) {
	tenantID, eventID, ok := parseResultURI("event://t1/e1/result")
	if !ok || tenantID != "t1" || eventID != "e1" {
		t.Fatalf("parse = %q %q %v", tenantID, eventID, ok)
	}
	for _, raw := range []string{"event://t1/result", "table://t1/e1/result", "event://t1/e1/x/result"} {
		if _, _, ok := parseResultURI(raw); ok {
			t.Fatalf("%q should not parse", raw)
		}
	}
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustListTools(t *testing.T, c *client.Client) []mcp.Tool {
	t.Helper()
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	return res.Tools
}

func assertToolNames(t *testing.T, tools []mcp.Tool, expected ...string) {
	t.Helper()
	got := make([]string, 0, len(tools))
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	sort.Strings(expected)
	if len(got) != len(expected) {
		t.Fatalf("tool count mismatch got=%v expected=%v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("tool list mismatch got=%v expected=%v", got, expected)
		}
	}
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call tool %s: %v", name, err)
	}
	return res
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, want string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error %q, got success: %v", want, res.StructuredContent)
	}
	payload := mapFromStructured(t, res)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("error payload missing 'error': %v", payload)
	}
	if got := asString(errObj["code"]); got != want {
		t.Fatalf("error code=%q want=%q payload=%v", got, want, payload)
	}
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat64(v any) float64 {
	f, _ := v.(float64)
	return f
}
