package policy

import "event-settlement/internal/store"

// VotePolicy picks the administrator favorite when one is set, otherwise the
// option with the most votes. Ties go to the lowest display_order, then the
// lowest option_id.
type VotePolicy struct{}

func (VotePolicy) DetermineWinners(ev store.Event, options []store.Option, entries []store.Entry) (Decision, error) {
	if len(options) == 0 {
		return Decision{}, ErrNoOptions
	}
	counts := tally(entries)
	winning := ""
	if ev.FavoriteOptionID != "" && hasOption(options, ev.FavoriteOptionID) {
		winning = ev.FavoriteOptionID
	} else {
		best := 0
		for _, o := range sortedOptions(options) {
			if c := counts[o.ID]; c > best {
				best = c
				winning = o.ID
			}
		}
	}
	return Decision{
		WinningOptionID: winning,
		WinnerUserIDs:   winnersFor(winning, entries),
		Tally:           counts,
	}, nil
}

func hasOption(options []store.Option, id string) bool {
	for _, o := range options {
		if o.ID == id {
			return true
		}
	}
	return false
}
