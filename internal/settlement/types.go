package settlement

import (
	"errors"

	"event-settlement/internal/announce"
	"event-settlement/internal/policy"
	"event-settlement/internal/store"
)

var (
	ErrOracleUnavailable = errors.New("oracle_unavailable")
	ErrNotSettled        = errors.New("event_not_settled")
)

// Failure reasons recorded on payout rows.
const (
	ReasonNoPayoutAddress   = "no_payout_address"
	ReasonAmountTooSmall    = "amount_too_small"
	ReasonBudgetExceeded    = "budget_exceeded"
	ReasonNoTreasury        = "treasury_not_configured"
	ReasonSecretUnavailable = "treasury_secret_unavailable"
)

// Trigger names what asked for settlement. All triggers share one entry point.
type Trigger string

const (
	TriggerDeadline Trigger = "deadline"
	TriggerCapacity Trigger = "capacity"
	TriggerManual   Trigger = "manual"
	// TriggerCancel settles an active event straight to cancelled.
	TriggerCancel Trigger = "cancel"
)

type Payout struct {
	Recipient     string `json:"recipient"`
	Kind          string `json:"kind"`
	Amount        int64  `json:"amount"`
	Outcome       string `json:"outcome"`
	TransferID    string `json:"transfer_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type Result struct {
	EventID         string            `json:"event_id"`
	Status          store.EventStatus `json:"status"`
	WinningOptionID string            `json:"winning_option_id"`
	WinnerUserIDs   []string          `json:"winner_user_ids"`
	Payouts         []Payout          `json:"payouts"`
	Draw            *policy.DrawProof `json:"draw,omitempty"`
	Rate            string            `json:"rate,omitempty"`
	Pot             int64             `json:"pot,omitempty"`
	HouseCut        int64             `json:"house_cut,omitempty"`
}

func payoutFromRecord(p store.Payout) Payout {
	return Payout{
		Recipient:     p.RecipientUserID,
		Kind:          string(p.Kind),
		Amount:        p.Amount,
		Outcome:       string(p.Outcome),
		TransferID:    p.TransferID,
		FailureReason: p.FailureReason,
	}
}

func summaryFor(ev store.Event, options []store.Option, res Result) announce.Summary {
	lines := make([]announce.PayoutLine, 0, len(res.Payouts))
	for _, p := range res.Payouts {
		lines = append(lines, announce.PayoutLine{
			Recipient:     p.Recipient,
			Kind:          p.Kind,
			Amount:        p.Amount,
			Outcome:       p.Outcome,
			TransferID:    p.TransferID,
			FailureReason: p.FailureReason,
		})
	}
	label := ""
	for _, o := range options {
		if o.ID == res.WinningOptionID {
			label = o.Label
		}
	}
	s := announce.Summary{
		EventID:         ev.ID,
		TenantID:        ev.TenantID,
		Title:           ev.Title,
		Kind:            string(ev.Kind),
		Status:          string(res.Status),
		WinningOptionID: res.WinningOptionID,
		WinningLabel:    label,
		WinnerUserIDs:   res.WinnerUserIDs,
		Payouts:         lines,
	}
	if ev.SettledAt != nil {
		s.SettledAt = *ev.SettledAt
	}
	return s
}
