package store

import (
	"context"
	"time"
)

type EventFilter struct {
	TenantID string
	Status   EventStatus
}

type PayoutFilter struct {
	TenantID string
	EventID  string
	Outcome  PayoutOutcome
}

type JoinParams struct {
	EventID       string
	UserID        string
	OptionID      string
	PayoutAddress string
	// Counted entries take a capacity slot as part of the insert.
	Counted bool
}

type DueCursor struct {
	Deadline time.Time
	EventID  string
}

type SettlementOutcome struct {
	EventID         string
	Status          EventStatus
	WinningOptionID string
	ConversionRate  string
}

// Repository is the persistence boundary shared by the Postgres store and the
// in-memory store used in tests and local runs.
type Repository interface {
	CreateEvent(ctx context.Context, ev Event, options []Option) error
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	ListEvents(ctx context.Context, f EventFilter, limit, offset int) ([]Event, error)
	ListOptions(ctx context.Context, eventID string) ([]Option, error)
	PublishEvent(ctx context.Context, eventID string, publishedAt time.Time, seed, seedHash string) (*Event, error)
	SetFavorite(ctx context.Context, eventID, optionID string) error
	TransitionStatus(ctx context.Context, eventID string, from, to EventStatus) (bool, error)
	FinishSettlement(ctx context.Context, out SettlementOutcome) (bool, error)
	MarkWinners(ctx context.Context, eventID string, userIDs []string) error
	// ListDueEvents pages active events past their deadline in (deadline,
	// event_id) order, starting strictly after the cursor when one is given.
	ListDueEvents(ctx context.Context, now time.Time, after *DueCursor, limit int) ([]Event, error)
	ListStaleEnded(ctx context.Context, endedBefore time.Time, limit int) ([]Event, error)

	JoinEvent(ctx context.Context, p JoinParams) (*Entry, int, error)
	GetEntry(ctx context.Context, eventID, userID string) (*Entry, error)
	ListEntries(ctx context.Context, eventID string) ([]Entry, error)
	SetEntryOption(ctx context.Context, eventID, userID, optionID string) error
	// MarkEntryPending claims an entry for commitment. A pending claim made
	// before staleBefore is abandoned and may be claimed again.
	MarkEntryPending(ctx context.Context, eventID, userID string, staleBefore time.Time) (bool, error)
	RevertEntryPending(ctx context.Context, eventID, userID string) error
	CommitEntry(ctx context.Context, eventID, userID string, amount int64) (int, error)

	UpsertTreasury(ctx context.Context, t Treasury) error
	GetTreasury(ctx context.Context, tenantID string) (*Treasury, error)
	IncrementBudgetSpent(ctx context.Context, tenantID string, amount int64) error
	ResetBudgetSpent(ctx context.Context, tenantID string) error

	UpsertPayoutAddress(ctx context.Context, a PayoutAddress) error
	GetPayoutAddress(ctx context.Context, tenantID, userID string) (*PayoutAddress, error)

	InsertPayout(ctx context.Context, p Payout) (bool, error)
	ListPayouts(ctx context.Context, f PayoutFilter, limit, offset int) ([]Payout, error)
}
