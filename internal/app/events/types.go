package events

import (
	"time"

	"event-settlement/internal/settlement"
	"event-settlement/internal/store"
)

type OptionInput struct {
	Label    string `json:"label"`
	ImageURL string `json:"image_url"`
}

type CreateEventInput struct {
	Kind            string        `json:"kind"`
	Mode            string        `json:"mode"`
	Title           string        `json:"title"`
	PrizeAmount     int64         `json:"prize_amount"`
	EntryFee        int64         `json:"entry_fee"`
	Currency        string        `json:"currency"`
	MinParticipants int           `json:"min_participants"`
	MaxParticipants int           `json:"max_participants"`
	DurationSeconds int64         `json:"duration_seconds"`
	Options         []OptionInput `json:"options"`
}

type TreasuryInput struct {
	WalletAddress string `json:"wallet_address"`
	Secret        string `json:"secret"`
	Network       string `json:"network"`
	BudgetTotal   int64  `json:"budget_total"`
}

type OptionView struct {
	OptionID     string `json:"option_id"`
	DisplayOrder int    `json:"display_order"`
	Label        string `json:"label"`
	ImageURL     string `json:"image_url,omitempty"`
	Votes        *int   `json:"votes,omitempty"`
}

type EventView struct {
	EventID          string            `json:"event_id"`
	TenantID         string            `json:"tenant_id"`
	Kind             store.EventKind   `json:"kind"`
	Mode             store.EventMode   `json:"mode"`
	Title            string            `json:"title"`
	PrizeAmount      int64             `json:"prize_amount"`
	EntryFee         int64             `json:"entry_fee"`
	Currency         string            `json:"currency"`
	MinParticipants  int               `json:"min_participants"`
	MaxParticipants  int               `json:"max_participants"`
	DurationSeconds  int64             `json:"duration_seconds"`
	Deadline         *time.Time        `json:"deadline,omitempty"`
	ParticipantCount int               `json:"participant_count"`
	Status           store.EventStatus `json:"status"`
	DrawSeedHash     string            `json:"draw_seed_hash,omitempty"`
	DrawSeed         string            `json:"draw_seed,omitempty"`
	FavoriteOptionID string            `json:"favorite_option_id,omitempty"`
	WinningOptionID  string            `json:"winning_option_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	PublishedAt      *time.Time        `json:"published_at,omitempty"`
	SettledAt        *time.Time        `json:"settled_at,omitempty"`
	Options          []OptionView      `json:"options,omitempty"`
}

type EventsResponse struct {
	Items  []EventView `json:"items"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type EntryView struct {
	EventID         string         `json:"event_id"`
	UserID          string         `json:"user_id"`
	ChosenOptionID  string         `json:"chosen_option_id,omitempty"`
	FeeState        store.FeeState `json:"fee_commitment_state"`
	CommittedAmount int64          `json:"committed_amount"`
	IsWinner        bool           `json:"is_winner"`
	JoinedAt        time.Time      `json:"joined_at"`
}

// EntryResponse is returned by participant actions. Settlement is set when
// the action filled the event and the capacity trigger settled it.
type EntryResponse struct {
	Entry            EntryView          `json:"entry"`
	ParticipantCount int                `json:"participant_count"`
	Settlement       *settlement.Result `json:"settlement,omitempty"`
}

type TreasuryView struct {
	TenantID      string    `json:"tenant_id"`
	WalletAddress string    `json:"wallet_address"`
	Network       string    `json:"network"`
	HasSecret     bool      `json:"has_secret"`
	BudgetTotal   int64     `json:"budget_total"`
	BudgetSpent   int64     `json:"budget_spent"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type PayoutAddressView struct {
	UserID    string    `json:"user_id"`
	Address   string    `json:"address"`
	Network   string    `json:"network"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PayoutView struct {
	PayoutID           string    `json:"payout_id"`
	EventID            string    `json:"event_id"`
	Kind               string    `json:"kind"`
	RecipientUserID    string    `json:"recipient_user_id"`
	RecipientAddress   string    `json:"recipient_address"`
	Amount             int64     `json:"amount"`
	CurrencyAtTransfer string    `json:"currency_at_transfer"`
	TransferID         string    `json:"transfer_id,omitempty"`
	Outcome            string    `json:"outcome"`
	FailureReason      string    `json:"failure_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type PayoutsResponse struct {
	Items  []PayoutView `json:"items"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func eventView(ev store.Event, options []store.Option, admin bool) EventView {
	v := EventView{
		EventID:          ev.ID,
		TenantID:         ev.TenantID,
		Kind:             ev.Kind,
		Mode:             ev.Mode,
		Title:            ev.Title,
		PrizeAmount:      ev.PrizeAmount,
		EntryFee:         ev.EntryFee,
		Currency:         ev.Currency,
		MinParticipants:  ev.MinParticipants,
		MaxParticipants:  ev.MaxParticipants,
		DurationSeconds:  ev.DurationSeconds,
		Deadline:         ev.Deadline,
		ParticipantCount: ev.ParticipantCount,
		Status:           ev.Status,
		DrawSeedHash:     ev.DrawSeedHash,
		WinningOptionID:  ev.WinningOptionID,
		CreatedAt:        ev.CreatedAt,
		PublishedAt:      ev.PublishedAt,
		SettledAt:        ev.SettledAt,
	}
	// the seed is only revealed once the draw can no longer change
	if ev.Status == store.StatusCompleted {
		v.DrawSeed = ev.DrawSeed
	}
	if admin {
		v.FavoriteOptionID = ev.FavoriteOptionID
	}
	for _, o := range options {
		v.Options = append(v.Options, OptionView{
			OptionID:     o.ID,
			DisplayOrder: o.DisplayOrder,
			Label:        o.Label,
			ImageURL:     o.ImageURL,
		})
	}
	return v
}

func entryView(e store.Entry) EntryView {
	return EntryView{
		EventID:         e.EventID,
		UserID:          e.UserID,
		ChosenOptionID:  e.ChosenOptionID,
		FeeState:        e.FeeState,
		CommittedAmount: e.CommittedAmount,
		IsWinner:        e.IsWinner,
		JoinedAt:        e.JoinedAt,
	}
}

func treasuryView(t store.Treasury) TreasuryView {
	return TreasuryView{
		TenantID:      t.TenantID,
		WalletAddress: t.WalletAddress,
		Network:       t.Network,
		HasSecret:     t.EncryptedSecret != "",
		BudgetTotal:   t.BudgetTotal,
		BudgetSpent:   t.BudgetSpent,
		UpdatedAt:     t.UpdatedAt,
	}
}

func payoutView(p store.Payout) PayoutView {
	return PayoutView{
		PayoutID:           p.ID,
		EventID:            p.EventID,
		Kind:               string(p.Kind),
		RecipientUserID:    p.RecipientUserID,
		RecipientAddress:   p.RecipientAddress,
		Amount:             p.Amount,
		CurrencyAtTransfer: p.CurrencyAtTransfer,
		TransferID:         p.TransferID,
		Outcome:            string(p.Outcome),
		FailureReason:      p.FailureReason,
		CreatedAt:          p.CreatedAt,
	}
}
