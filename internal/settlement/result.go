package settlement

import (
	"context"

	"event-settlement/internal/payout"
	"event-settlement/internal/policy"
	"event-settlement/internal/store"
)

const resultPayoutLimit = 1000

// Result rebuilds the settlement outcome of a finished event from what was
// persisted. The draw proof is recomputed from the revealed seed.
func (e *Engine) Result(ctx context.Context, eventID string) (*Result, error) {
	ev, err := e.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.Status.Terminal() {
		return nil, ErrNotSettled
	}
	entries, err := e.repo.ListEntries(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	records, err := e.repo.ListPayouts(ctx, store.PayoutFilter{EventID: ev.ID}, resultPayoutLimit, 0)
	if err != nil {
		return nil, err
	}

	res := &Result{
		EventID:         ev.ID,
		Status:          ev.Status,
		WinningOptionID: ev.WinningOptionID,
		WinnerUserIDs:   []string{},
		Payouts:         make([]Payout, 0, len(records)),
		Rate:            ev.ConversionRate,
	}
	for _, en := range entries {
		if en.IsWinner {
			res.WinnerUserIDs = append(res.WinnerUserIDs, en.UserID)
		}
	}
	for _, p := range records {
		res.Payouts = append(res.Payouts, payoutFromRecord(p))
	}
	if ev.Mode == store.ModePot {
		if pot, err := payout.CommittedPot(entries); err == nil {
			res.Pot = pot
		}
		if ev.Status == store.StatusCompleted {
			res.HouseCut = payout.HouseCut(res.Pot)
		}
	}
	if ev.Kind == store.KindWager && ev.Status == store.StatusCompleted {
		options, err := e.repo.ListOptions(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		if d, err := (policy.WagerPolicy{}).DetermineWinners(*ev, options, nil); err == nil {
			res.Draw = d.Draw
		}
	}
	return res, nil
}
