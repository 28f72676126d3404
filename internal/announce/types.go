package announce

import (
	"context"
	"time"
)

// Sink receives settlement results for rendering to participants. Delivery is
// best-effort; errors never change settlement state.
type Sink interface {
	PublishResult(ctx context.Context, eventID string, summary Summary) error
}

type PayoutLine struct {
	Recipient     string `json:"recipient"`
	Kind          string `json:"kind"`
	Amount        int64  `json:"amount"`
	Outcome       string `json:"outcome"`
	TransferID    string `json:"transfer_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type Summary struct {
	EventID         string       `json:"event_id"`
	TenantID        string       `json:"tenant_id"`
	Title           string       `json:"title"`
	Kind            string       `json:"kind"`
	Status          string       `json:"status"`
	WinningOptionID string       `json:"winning_option_id,omitempty"`
	WinningLabel    string       `json:"winning_label,omitempty"`
	WinnerUserIDs   []string     `json:"winner_user_ids"`
	Payouts         []PayoutLine `json:"payouts"`
	SettledAt       time.Time    `json:"settled_at"`
}

type Target struct {
	Platform        string   `json:"platform"`
	Endpoint        string   `json:"endpoint"`
	Secret          string   `json:"secret"`
	ScopeType       string   `json:"scope_type"`
	ScopeValue      string   `json:"scope_value"`
	StatusAllowlist []string `json:"status_allowlist"`
	Enabled         bool     `json:"enabled"`
}

type Config struct {
	Enabled             bool
	ConfigPath          string
	ConfigReload        time.Duration
	Targets             []Target
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

type MessageField struct {
	Name   string
	Value  string
	Inline bool
}

type FormattedMessage struct {
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []MessageField
}

type pushJob struct {
	Target    Target
	EventID   string
	Formatted FormattedMessage
	Attempt   int
}

func (j pushJob) key() string {
	return targetKey(j.Target)
}

func targetKey(t Target) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.ScopeType + "|" + t.ScopeValue
}
