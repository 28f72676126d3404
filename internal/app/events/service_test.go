package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"event-settlement/internal/ledger"
	"event-settlement/internal/settlement"
	"event-settlement/internal/store"
	"event-settlement/internal/store/memstore"
	"event-settlement/internal/testutil"
	"event-settlement/internal/treasury"
)

const tenant = "tenant-a"

type stubLedger struct {
	mu        sync.Mutex
	balance   int64
	balErr    error
	transfers []ledger.TransferRequest
}

func (l *stubLedger) Transfer(_ context.Context, req ledger.TransferRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	req.FromSecret = append([]byte(nil), req.FromSecret...)
	l.transfers = append(l.transfers, req)
	return "tx-" + req.IdempotencyKey, nil
}

func (l *stubLedger) GetBalance(context.Context, string, string) (int64, error) {
	return l.balance, l.balErr
}

func newCipher(t *testing.T) *treasury.Cipher {
	t.Helper()
	c, err := treasury.NewCipher(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	return c
}

func newService(t *testing.T, repo store.Repository) (*Service, *stubLedger) {
	t.Helper()
	led := &stubLedger{balance: 1_000}
	c := newCipher(t)
	eng := settlement.NewEngine(repo, nil, led, c, nil, settlement.Options{})
	svc := NewService(repo, eng, led, nil, c)
	if _, err := svc.UpsertTreasury(context.Background(), tenant, TreasuryInput{
		WalletAddress: "treasury-wallet", Secret: "wallet-secret", Network: "testnet",
	}); err != nil {
		t.Fatalf("treasury: %v", err)
	}
	return svc, led
}

func publish(t *testing.T, svc *Service, in CreateEventInput) *EventView {
	t.Helper()
	ctx := context.Background()
	created, err := svc.CreateEvent(ctx, tenant, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != store.StatusDraft {
		t.Fatalf("status = %s, want draft", created.Status)
	}
	ev, err := svc.PublishEvent(ctx, tenant, created.EventID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return ev
}

func voteInput(max int) CreateEventInput {
	return CreateEventInput{
		Kind: "vote", Title: "Best photo", PrizeAmount: 90, MinParticipants: 1, MaxParticipants: max,
		DurationSeconds: 600, Options: []OptionInput{{Label: "A"}, {Label: "B"}},
	}
}

func potInput(max int) CreateEventInput {
	return CreateEventInput{
		Kind: "wager", Mode: "pot", Title: "Pick a slot", EntryFee: 10, MinParticipants: 1, MaxParticipants: max,
		DurationSeconds: 600, Options: []OptionInput{{Label: "X"}, {Label: "Y"}},
	}
}

func TestCreateEventValidation(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	tests := []struct {
		name string
		edit func(*CreateEventInput)
	}{
		{name: "missing title", edit: func(in *CreateEventInput) { in.Title = "" }},
		{name: "one option", edit: func(in *CreateEventInput) { in.Options = in.Options[:1] }},
		{name: "unknown kind", edit: func(in *CreateEventInput) { in.Kind = "raffle" }},
		{name: "house without prize", edit: func(in *CreateEventInput) { in.PrizeAmount = 0 }},
		{name: "pot vote", edit: func(in *CreateEventInput) { in.Mode = "pot"; in.PrizeAmount = 0; in.EntryFee = 5 }},
		{name: "max below min", edit: func(in *CreateEventInput) { in.MinParticipants = 5; in.MaxParticipants = 2 }},
		{name: "no way to close", edit: func(in *CreateEventInput) { in.DurationSeconds = 0; in.MaxParticipants = 0 }},
		{name: "bad currency", edit: func(in *CreateEventInput) { in.Currency = "dollars" }},
		{name: "prize too large", edit: func(in *CreateEventInput) { in.PrizeAmount = maxEventAmount + 1 }},
		{name: "entry fee too large", edit: func(in *CreateEventInput) {
			in.Kind, in.Mode, in.PrizeAmount, in.EntryFee = "wager", "pot", 0, maxEventAmount+1
		}},
		{name: "capacity too large", edit: func(in *CreateEventInput) { in.MaxParticipants = maxEventSize + 1 }},
		{name: "too many wager slots", edit: func(in *CreateEventInput) {
			in.Kind = "wager"
			in.Options = make([]OptionInput, 7)
			for i := range in.Options {
				in.Options[i].Label = "slot"
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := voteInput(0)
			tt.edit(&in)
			if _, err := svc.CreateEvent(context.Background(), tenant, in); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected invalid_request, got %v", err)
			}
		})
	}
}

func TestPublishRebasesDeadlineAndHidesSeed(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	ev := publish(t, svc, voteInput(0))
	if ev.Status != store.StatusActive || ev.Deadline == nil || ev.PublishedAt == nil {
		t.Fatalf("unexpected published event: %+v", ev)
	}
	if got := ev.Deadline.Sub(*ev.PublishedAt).Seconds(); got != 600 {
		t.Fatalf("deadline offset = %v, want 600s", got)
	}
	if ev.DrawSeedHash == "" || ev.DrawSeed != "" {
		t.Fatalf("seed must be committed but hidden: %+v", ev)
	}
	if _, err := svc.PublishEvent(context.Background(), tenant, ev.EventID); !errors.Is(err, ErrEventNotDraft) {
		t.Fatalf("second publish: %v", err)
	}
}

func TestDraftsHiddenFromParticipantsAndOtherTenants(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	created, err := svc.CreateEvent(context.Background(), tenant, voteInput(0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.GetEvent(context.Background(), tenant, created.EventID, false); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("participant saw draft: %v", err)
	}
	if _, err := svc.GetEvent(context.Background(), "tenant-b", created.EventID, true); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("other tenant saw event: %v", err)
	}
	list, err := svc.ListEvents(context.Background(), tenant, "", 0, 0, false)
	if err != nil || len(list.Items) != 0 {
		t.Fatalf("participant list = %+v err=%v", list, err)
	}
}

func TestVoteAutoJoinsAndCanChange(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	ev := publish(t, svc, voteInput(0))
	a, b := ev.Options[0].OptionID, ev.Options[1].OptionID
	ctx := context.Background()

	resp, err := svc.Vote(ctx, tenant, ev.EventID, "u1", a)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if resp.ParticipantCount != 1 || resp.Entry.ChosenOptionID != a {
		t.Fatalf("unexpected vote response: %+v", resp)
	}
	resp, err = svc.Vote(ctx, tenant, ev.EventID, "u1", b)
	if err != nil || resp.Entry.ChosenOptionID != b || resp.ParticipantCount != 1 {
		t.Fatalf("change vote: %+v err=%v", resp, err)
	}
	if _, err := svc.Vote(ctx, tenant, ev.EventID, "u1", "nope"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected invalid option, got %v", err)
	}
	if _, err := svc.Join(ctx, tenant, ev.EventID, "u1", ""); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected already joined, got %v", err)
	}
}

func TestCapacityTriggerSettlesOnLastJoin(t *testing.T) {
	svc, led := newService(t, memstore.New())
	ev := publish(t, svc, voteInput(3))
	a := ev.Options[0].OptionID
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		if _, err := svc.SetPayoutAddress(ctx, tenant, u, "addr-"+u, "testnet"); err != nil {
			t.Fatalf("address: %v", err)
		}
	}

	var last *EntryResponse
	for _, u := range []string{"u1", "u2", "u3"} {
		resp, err := svc.Vote(ctx, tenant, ev.EventID, u, a)
		if err != nil {
			t.Fatalf("vote %s: %v", u, err)
		}
		last = resp
	}
	if last.Settlement == nil || last.Settlement.Status != store.StatusCompleted {
		t.Fatalf("capacity trigger did not settle: %+v", last)
	}
	if len(led.transfers) != 3 {
		t.Fatalf("transfers = %d, want 3", len(led.transfers))
	}
	if string(led.transfers[0].FromSecret) != "wallet-secret" {
		t.Fatal("treasury secret did not round-trip through the sealer")
	}
	if _, err := svc.Vote(ctx, tenant, ev.EventID, "u4", a); !errors.Is(err, ErrEventNotActive) {
		t.Fatalf("join after settlement: %v", err)
	}
}

func TestPotCommitFlow(t *testing.T) {
	svc, led := newService(t, memstore.New())
	ev := publish(t, svc, potInput(0))
	x, y := ev.Options[0].OptionID, ev.Options[1].OptionID
	ctx := context.Background()

	resp, err := svc.Join(ctx, tenant, ev.EventID, "u1", x)
	if err != nil {
		t.Fatalf("select slot: %v", err)
	}
	if resp.ParticipantCount != 0 || resp.Entry.FeeState != store.FeeNone {
		t.Fatalf("slot selection must not count: %+v", resp)
	}
	if _, err := svc.SelectSlot(ctx, tenant, ev.EventID, "u1", y); err != nil {
		t.Fatalf("change slot: %v", err)
	}
	if _, err := svc.Commit(ctx, tenant, ev.EventID, "u1"); !errors.Is(err, ErrNoPayoutAddress) {
		t.Fatalf("commit without address: %v", err)
	}
	if _, err := svc.SetPayoutAddress(ctx, tenant, "u1", "addr-u1", "testnet"); err != nil {
		t.Fatalf("address: %v", err)
	}

	led.balance = 5
	if _, err := svc.Commit(ctx, tenant, ev.EventID, "u1"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	entry, err := svc.GetEntry(ctx, tenant, ev.EventID, "u1")
	if err != nil || entry.Entry.FeeState != store.FeeNone {
		t.Fatalf("failed commit must revert: %+v err=%v", entry, err)
	}

	led.balance = 10
	resp, err = svc.Commit(ctx, tenant, ev.EventID, "u1")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if resp.ParticipantCount != 1 || resp.Entry.FeeState != store.FeeCommitted || resp.Entry.CommittedAmount != 10 {
		t.Fatalf("unexpected commit: %+v", resp)
	}
	if _, err := svc.Commit(ctx, tenant, ev.EventID, "u1"); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("double commit: %v", err)
	}
	if _, err := svc.SelectSlot(ctx, tenant, ev.EventID, "u1", x); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("slot change after commit: %v", err)
	}
}

func TestCommitResumesAbandonedClaim(t *testing.T) {
	repo := memstore.New()
	svc, _ := newService(t, repo)
	ev := publish(t, svc, potInput(0))
	ctx := context.Background()
	for _, u := range []string{"u1", "u2"} {
		if _, err := svc.SetPayoutAddress(ctx, tenant, u, "addr-"+u, "testnet"); err != nil {
			t.Fatalf("address: %v", err)
		}
		if _, err := svc.Join(ctx, tenant, ev.EventID, u, ev.Options[0].OptionID); err != nil {
			t.Fatalf("select %s: %v", u, err)
		}
	}

	// u1's claim was left behind by a request that never finished.
	repo.SetClock(func() time.Time { return time.Now().Add(-10 * time.Minute) })
	if ok, err := repo.MarkEntryPending(ctx, ev.EventID, "u1", time.Time{}); err != nil || !ok {
		t.Fatalf("stale claim: ok=%v err=%v", ok, err)
	}
	repo.SetClock(time.Now)
	if ok, err := repo.MarkEntryPending(ctx, ev.EventID, "u2", time.Time{}); err != nil || !ok {
		t.Fatalf("live claim: ok=%v err=%v", ok, err)
	}

	resp, err := svc.Commit(ctx, tenant, ev.EventID, "u1")
	if err != nil {
		t.Fatalf("commit over abandoned claim: %v", err)
	}
	if resp.Entry.FeeState != store.FeeCommitted || resp.ParticipantCount != 1 {
		t.Fatalf("unexpected commit: %+v", resp)
	}
	if _, err := svc.Commit(ctx, tenant, ev.EventID, "u2"); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("in-flight claim must not be taken over, got %v", err)
	}
}

func TestCommitProceedsWhenBalanceUnavailable(t *testing.T) {
	svc, led := newService(t, memstore.New())
	ev := publish(t, svc, potInput(0))
	ctx := context.Background()
	led.balErr = errors.New("rpc down")
	if _, err := svc.SetPayoutAddress(ctx, tenant, "u1", "addr-u1", "testnet"); err != nil {
		t.Fatalf("address: %v", err)
	}
	if _, err := svc.Join(ctx, tenant, ev.EventID, "u1", ev.Options[0].OptionID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := svc.Commit(ctx, tenant, ev.EventID, "u1"); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestPotCommitCapacity(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	ev := publish(t, svc, potInput(1))
	ctx := context.Background()
	for _, u := range []string{"u1", "u2"} {
		if _, err := svc.SetPayoutAddress(ctx, tenant, u, "addr-"+u, "testnet"); err != nil {
			t.Fatalf("address: %v", err)
		}
		if _, err := svc.Join(ctx, tenant, ev.EventID, u, ev.Options[0].OptionID); err != nil {
			t.Fatalf("select %s: %v", u, err)
		}
	}
	resp, err := svc.Commit(ctx, tenant, ev.EventID, "u1")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if resp.Settlement == nil {
		t.Fatal("filling the event should settle it")
	}
	if _, err := svc.Commit(ctx, tenant, ev.EventID, "u2"); !errors.Is(err, ErrEventNotActive) {
		t.Fatalf("second commit: %v", err)
	}
}

func TestCancelDraftAndActive(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	ctx := context.Background()
	draft, err := svc.CreateEvent(ctx, tenant, voteInput(0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := svc.Cancel(ctx, tenant, draft.EventID)
	if err != nil || res.Status != store.StatusCancelled {
		t.Fatalf("cancel draft: %+v err=%v", res, err)
	}

	ev := publish(t, svc, voteInput(0))
	if _, err := svc.Vote(ctx, tenant, ev.EventID, "u1", ev.Options[0].OptionID); err != nil {
		t.Fatalf("vote: %v", err)
	}
	res, err = svc.Cancel(ctx, tenant, ev.EventID)
	if err != nil || res.Status != store.StatusCancelled {
		t.Fatalf("cancel active: %+v err=%v", res, err)
	}
	if _, err := svc.Cancel(ctx, tenant, ev.EventID); !errors.Is(err, ErrEventNotActive) {
		t.Fatalf("cancel twice: %v", err)
	}
}

func TestManualSettleReturnsStoredResultWhenAlreadySettled(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	ev := publish(t, svc, voteInput(0))
	ctx := context.Background()
	if _, err := svc.Vote(ctx, tenant, ev.EventID, "u1", ev.Options[0].OptionID); err != nil {
		t.Fatalf("vote: %v", err)
	}
	first, err := svc.Settle(ctx, tenant, ev.EventID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	again, err := svc.Settle(ctx, tenant, ev.EventID)
	if err != nil {
		t.Fatalf("settle again: %v", err)
	}
	if again.Status != first.Status || again.WinningOptionID != first.WinningOptionID || len(again.Payouts) != len(first.Payouts) {
		t.Fatalf("stored result differs: %+v vs %+v", again, first)
	}
	if again.Payouts[0].FailureReason != settlement.ReasonNoPayoutAddress {
		t.Fatalf("unexpected payout: %+v", again.Payouts[0])
	}
}

func TestFavoriteVisibleOnlyToAdmins(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	ev := publish(t, svc, voteInput(0))
	ctx := context.Background()
	b := ev.Options[1].OptionID
	if _, err := svc.SetFavorite(ctx, tenant, ev.EventID, b); err != nil {
		t.Fatalf("favorite: %v", err)
	}
	admin, err := svc.GetEvent(ctx, tenant, ev.EventID, true)
	if err != nil || admin.FavoriteOptionID != b {
		t.Fatalf("admin view: %+v err=%v", admin, err)
	}
	public, err := svc.GetEvent(ctx, tenant, ev.EventID, false)
	if err != nil || public.FavoriteOptionID != "" {
		t.Fatalf("public view leaked favorite: %+v err=%v", public, err)
	}
	if _, err := svc.SetFavorite(ctx, tenant, ev.EventID, "nope"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected invalid option, got %v", err)
	}
}

func TestTreasuryNeverExposesSecret(t *testing.T) {
	repo := memstore.New()
	svc, _ := newService(t, repo)
	ctx := context.Background()
	view, err := svc.GetTreasury(ctx, tenant)
	if err != nil || !view.HasSecret {
		t.Fatalf("treasury view: %+v err=%v", view, err)
	}
	stored, err := repo.GetTreasury(ctx, tenant)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.Contains(stored.EncryptedSecret, "wallet-secret") {
		t.Fatal("secret stored in plaintext")
	}
	// updating without a secret keeps the sealed one
	if _, err := svc.UpsertTreasury(ctx, tenant, TreasuryInput{WalletAddress: "w2", Network: "testnet", BudgetTotal: 500}); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := repo.GetTreasury(ctx, tenant)
	if again.EncryptedSecret != stored.EncryptedSecret || again.BudgetTotal != 500 {
		t.Fatalf("update lost secret or budget: %+v", again)
	}
	if err := repo.IncrementBudgetSpent(ctx, tenant, 40); err != nil {
		t.Fatalf("increment: %v", err)
	}
	reset, err := svc.ResetBudget(ctx, tenant)
	if err != nil || reset.BudgetSpent != 0 {
		t.Fatalf("reset: %+v err=%v", reset, err)
	}
	if _, err := svc.ResetBudget(ctx, "tenant-b"); !errors.Is(err, ErrTreasuryNotFound) {
		t.Fatalf("reset unknown tenant: %v", err)
	}
}

func TestPostgresCapacityTrigger(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	svc, led := newService(t, st)
	ev := publish(t, svc, voteInput(2))
	ctx := context.Background()
	for _, u := range []string{"u1", "u2"} {
		if _, err := svc.SetPayoutAddress(ctx, tenant, u, "addr-"+u, "testnet"); err != nil {
			t.Fatalf("address: %v", err)
		}
	}
	if _, err := svc.Vote(ctx, tenant, ev.EventID, "u1", ev.Options[0].OptionID); err != nil {
		t.Fatalf("vote u1: %v", err)
	}
	resp, err := svc.Vote(ctx, tenant, ev.EventID, "u2", ev.Options[0].OptionID)
	if err != nil {
		t.Fatalf("vote u2: %v", err)
	}
	if resp.Settlement == nil || len(resp.Settlement.Payouts) != 2 {
		t.Fatalf("unexpected settlement: %+v", resp.Settlement)
	}
	if len(led.transfers) != 2 {
		t.Fatalf("transfers = %d, want 2", len(led.transfers))
	}
	view, err := svc.GetTreasury(ctx, tenant)
	if err != nil || view.BudgetSpent != 90 {
		t.Fatalf("budget_spent: %+v err=%v", view, err)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrCapacityExceeded, 409, "capacity_exceeded"},
		{store.ErrCapacityExceeded, 409, "capacity_exceeded"},
		{ErrEventNotActive, 409, "event_not_active"},
		{ErrInsufficientFunds, 402, "insufficient_funds"},
		{ErrEventNotFound, 404, "event_not_found"},
		{settlement.ErrOracleUnavailable, 503, "oracle_unavailable"},
		{errors.New("boom"), 500, "internal_error"},
	}
	for _, tt := range tests {
		status, code := MapError(tt.err)
		if status != tt.status || code != tt.code {
			t.Fatalf("MapError(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}
