// Package policy decides which option wins an event and which entries share
// the prize. Each event kind has one Policy.
package policy

import (
	"errors"
	"fmt"

	"event-settlement/internal/store"
)

var (
	ErrUnknownKind  = errors.New("unknown_event_kind")
	ErrNoOptions    = errors.New("no_options")
	ErrMissingSeed  = errors.New("missing_draw_seed")
	ErrDrawMismatch = errors.New("draw_mismatch")
	ErrInvalidSeed  = errors.New("invalid_draw_seed")
)

type Decision struct {
	WinningOptionID string
	WinnerUserIDs   []string
	// Tally counts entries per option id; only entries with a chosen option appear.
	Tally map[string]int
	Draw  *DrawProof
}

type Policy interface {
	DetermineWinners(ev store.Event, options []store.Option, entries []store.Entry) (Decision, error)
}

func For(kind store.EventKind) (Policy, error) {
	switch kind {
	case store.KindVote:
		return VotePolicy{}, nil
	case store.KindWager:
		return WagerPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func tally(entries []store.Entry) map[string]int {
	out := map[string]int{}
	for _, e := range entries {
		if e.ChosenOptionID != "" {
			out[e.ChosenOptionID]++
		}
	}
	return out
}

// winnersFor keeps the order of entries, which is join order.
func winnersFor(optionID string, entries []store.Entry) []string {
	out := []string{}
	if optionID == "" {
		return out
	}
	for _, e := range entries {
		if e.ChosenOptionID == optionID {
			out = append(out, e.UserID)
		}
	}
	return out
}
