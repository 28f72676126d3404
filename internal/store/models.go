package store

import "time"

type EventKind string

const (
	KindVote  EventKind = "vote"
	KindWager EventKind = "wager"
)

type EventMode string

const (
	ModeHouse EventMode = "house"
	ModePot   EventMode = "pot"
)

type EventStatus string

const (
	StatusDraft     EventStatus = "draft"
	StatusActive    EventStatus = "active"
	StatusEnded     EventStatus = "ended"
	StatusCancelled EventStatus = "cancelled"
	StatusCompleted EventStatus = "completed"
)

// Terminal reports whether the settlement engine will never touch the event again.
func (s EventStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type FeeState string

const (
	FeeNone      FeeState = "none"
	FeePending   FeeState = "pending"
	FeeCommitted FeeState = "committed"
)

type PayoutKind string

const (
	PayoutPrize  PayoutKind = "prize"
	PayoutRefund PayoutKind = "refund"
)

type PayoutOutcome string

const (
	OutcomeConfirmed PayoutOutcome = "confirmed"
	OutcomeFailed    PayoutOutcome = "failed"
)

// NativeCurrency marks amounts already denominated in ledger units.
const NativeCurrency = "NATIVE"

type Event struct {
	ID               string
	TenantID         string
	Kind             EventKind
	Mode             EventMode
	Title            string
	PrizeAmount      int64
	EntryFee         int64
	Currency         string
	MinParticipants  int
	MaxParticipants  int
	DurationSeconds  int64
	Deadline         *time.Time
	ParticipantCount int
	Status           EventStatus
	FavoriteOptionID string
	DrawSeed         string
	DrawSeedHash     string
	WinningOptionID  string
	ConversionRate   string
	CreatedAt        time.Time
	PublishedAt      *time.Time
	EndedAt          *time.Time
	SettledAt        *time.Time
}

// IsFiat reports whether amounts need an oracle rate before transfer.
func (e Event) IsFiat() bool {
	return e.Currency != "" && e.Currency != NativeCurrency
}

// CountsAtJoin reports whether joining alone occupies a capacity slot.
// Pot-mode wagers only count once the fee is committed.
func (e Event) CountsAtJoin() bool {
	return !(e.Kind == KindWager && e.Mode == ModePot)
}

type Option struct {
	ID           string
	EventID      string
	DisplayOrder int
	Label        string
	ImageURL     string
}

type Entry struct {
	EventID               string
	UserID                string
	ChosenOptionID        string
	FeeState              FeeState
	CommittedAmount       int64
	PayoutAddressSnapshot string
	IsWinner              bool
	JoinedAt              time.Time
	PendingAt             *time.Time
	CommittedAt           *time.Time
}

type Treasury struct {
	TenantID        string
	WalletAddress   string
	EncryptedSecret string
	Network         string
	BudgetTotal     int64
	BudgetSpent     int64
	UpdatedAt       time.Time
}

type PayoutAddress struct {
	TenantID  string
	UserID    string
	Address   string
	Network   string
	UpdatedAt time.Time
}

type Payout struct {
	ID                 string
	EventID            string
	Kind               PayoutKind
	RecipientUserID    string
	RecipientAddress   string
	Amount             int64
	CurrencyAtTransfer string
	TransferID         string
	Outcome            PayoutOutcome
	FailureReason      string
	CreatedAt          time.Time
}
