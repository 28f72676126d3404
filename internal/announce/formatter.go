package announce

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	colorCompleted = 0x57F287
	colorPartial   = 0xFEE75C
	colorCancelled = 0xED4245

	shortIDLimit     = 10
	maxPayoutFields  = 10
	defaultFooter    = "event settlement"
	noWinnersMessage = "No entries matched the winning option."
)

func FormatSummary(s Summary) FormattedMessage {
	title := fallback(s.Title, shortID(s.EventID, shortIDLimit))
	msg := FormattedMessage{
		Timestamp: eventTimestamp(s.SettledAt),
		Footer:    defaultFooter,
	}
	fields := make([]MessageField, 0, maxPayoutFields+3)

	switch s.Status {
	case "cancelled":
		msg.Title = fmt.Sprintf("Cancelled · %s", title)
		msg.Content = "event cancelled"
		msg.Description = "Not enough participants. Committed fees are refunded."
		msg.Color = colorCancelled
	default:
		msg.Title = fmt.Sprintf("Results · %s", title)
		winner := fallback(s.WinningLabel, fallback(s.WinningOptionID, "-"))
		msg.Content = fmt.Sprintf("winning option %s", winner)
		msg.Description = fmt.Sprintf("Winning option: %s. Winners: %d.", winner, len(s.WinnerUserIDs))
		if len(s.WinnerUserIDs) == 0 {
			msg.Description = noWinnersMessage
		}
		msg.Color = colorCompleted
		if failedCount(s.Payouts) > 0 {
			msg.Color = colorPartial
		}
		fields = append(fields,
			MessageField{Name: "Winning option", Value: winner, Inline: true},
			MessageField{Name: "Winners", Value: strconv.Itoa(len(s.WinnerUserIDs)), Inline: true},
		)
	}

	for i, p := range s.Payouts {
		if i == maxPayoutFields {
			fields = append(fields, MessageField{Name: "More", Value: fmt.Sprintf("+%d payouts", len(s.Payouts)-maxPayoutFields)})
			break
		}
		fields = append(fields, MessageField{Name: shortID(p.Recipient, shortIDLimit), Value: payoutText(p), Inline: true})
	}
	msg.Fields = fields
	return msg
}

func payoutText(p PayoutLine) string {
	if p.Outcome == "confirmed" {
		return fmt.Sprintf("%d paid", p.Amount)
	}
	return fmt.Sprintf("%d failed (%s)", p.Amount, fallback(p.FailureReason, "unknown"))
}

func failedCount(lines []PayoutLine) int {
	n := 0
	for _, p := range lines {
		if p.Outcome != "confirmed" {
			n++
		}
	}
	return n
}

func shortID(v string, max int) string {
	v = strings.TrimSpace(v)
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max]
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}

func eventTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format(time.RFC3339)
}
