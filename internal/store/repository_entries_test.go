package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestJoinEventNeverOverbooks(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	ev, _ := mustCreateActiveEvent(t, st, ctx, KindVote, ModeHouse, 3)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		joined   int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: fmt.Sprintf("u%d", i), Counted: true})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				joined++
			case ErrCapacityExceeded:
				rejected++
			default:
				t.Errorf("join: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if joined != 3 || rejected != 7 {
		t.Fatalf("expected 3 joined / 7 rejected, got %d / %d", joined, rejected)
	}
	got, err := st.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.ParticipantCount != 3 {
		t.Fatalf("expected count 3, got %d", got.ParticipantCount)
	}
}

func TestJoinEventRejectsDuplicateUser(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	ev, _ := mustCreateActiveEvent(t, st, ctx, KindVote, ModeHouse, 0)
	if _, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u1", Counted: true}); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u1", Counted: true}); err != ErrAlreadyJoined {
		t.Fatalf("expected already joined, got %v", err)
	}
	got, err := st.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.ParticipantCount != 1 {
		t.Fatalf("duplicate join must roll back the count, got %d", got.ParticipantCount)
	}
}

func TestPotWagerCommitCountsOnlyOnCommit(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	ev, opts := mustCreateActiveEvent(t, st, ctx, KindWager, ModePot, 1)

	if _, count, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u1", OptionID: opts[0].ID}); err != nil || count != 0 {
		t.Fatalf("select slot: count=%d err=%v", count, err)
	}
	if _, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u2", OptionID: opts[1].ID}); err != nil {
		t.Fatalf("second select slot: %v", err)
	}

	ok, err := st.MarkEntryPending(ctx, ev.ID, "u1", time.Now().Add(-time.Minute))
	if err != nil || !ok {
		t.Fatalf("mark pending: ok=%v err=%v", ok, err)
	}
	count, err := st.CommitEntry(ctx, ev.ID, "u1", 10)
	if err != nil || count != 1 {
		t.Fatalf("commit: count=%d err=%v", count, err)
	}

	if ok, err := st.MarkEntryPending(ctx, ev.ID, "u2", time.Now().Add(-time.Minute)); err != nil || !ok {
		t.Fatalf("mark pending u2: ok=%v err=%v", ok, err)
	}
	if _, err := st.CommitEntry(ctx, ev.ID, "u2", 10); err != ErrCapacityExceeded {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}

	entry, err := st.GetEntry(ctx, ev.ID, "u1")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.FeeState != FeeCommitted || entry.CommittedAmount != 10 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestJoinFullEventTwiceReportsAlreadyJoined(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	ev, _ := mustCreateActiveEvent(t, st, ctx, KindVote, ModeHouse, 1)
	if _, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u1", Counted: true}); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u1", Counted: true}); err != ErrAlreadyJoined {
		t.Fatalf("expected already joined on a full event, got %v", err)
	}
	if _, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u2", Counted: true}); err != ErrCapacityExceeded {
		t.Fatalf("expected capacity exceeded for a new user, got %v", err)
	}
}

func TestSetEntryOptionWaitsForSettlementSwap(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	ev, opts := mustCreateActiveEvent(t, st, ctx, KindWager, ModePot, 0)
	if _, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u1", OptionID: opts[0].ID}); err != nil {
		t.Fatalf("select slot: %v", err)
	}

	// Hold the swap open so the slot change has to queue behind it.
	swap, err := st.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		t.Fatalf("begin swap: %v", err)
	}
	defer swap.Rollback(ctx)
	if _, err := swap.Exec(ctx, `UPDATE events SET status = 'ended', ended_at = now()
		WHERE event_id = $1 AND status = 'active'`, ev.ID); err != nil {
		t.Fatalf("swap: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- st.SetEntryOption(context.Background(), ev.ID, "u1", opts[1].ID)
	}()
	select {
	case err := <-done:
		t.Fatalf("slot change finished while the swap was open: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	if err := swap.Commit(ctx); err != nil {
		t.Fatalf("commit swap: %v", err)
	}
	if err := <-done; err != ErrEventNotActive {
		t.Fatalf("expected event not active after the swap, got %v", err)
	}

	entry, err := st.GetEntry(ctx, ev.ID, "u1")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.ChosenOptionID != opts[0].ID {
		t.Fatalf("late slot change was saved: %q", entry.ChosenOptionID)
	}
}

func TestMarkEntryPendingReclaimsAbandonedClaim(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	ev, opts := mustCreateActiveEvent(t, st, ctx, KindWager, ModePot, 0)
	if _, _, err := st.JoinEvent(ctx, JoinParams{EventID: ev.ID, UserID: "u1", OptionID: opts[0].ID}); err != nil {
		t.Fatalf("select slot: %v", err)
	}
	if ok, err := st.MarkEntryPending(ctx, ev.ID, "u1", time.Now().Add(-time.Minute)); err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if ok, err := st.MarkEntryPending(ctx, ev.ID, "u1", time.Now().Add(-time.Minute)); err != nil || ok {
		t.Fatalf("fresh claim must not be taken twice: ok=%v err=%v", ok, err)
	}
	if ok, err := st.MarkEntryPending(ctx, ev.ID, "u1", time.Now().Add(time.Minute)); err != nil || !ok {
		t.Fatalf("abandoned claim should be reclaimable: ok=%v err=%v", ok, err)
	}
	if _, err := st.CommitEntry(ctx, ev.ID, "u1", 10); err != nil {
		t.Fatalf("commit after reclaim: %v", err)
	}
	if ok, err := st.MarkEntryPending(ctx, ev.ID, "u1", time.Now().Add(time.Minute)); err != nil || ok {
		t.Fatalf("committed entry must not be reclaimed: ok=%v err=%v", ok, err)
	}
}
