package memstore

import (
	"context"
	"sort"
	"time"

	"event-settlement/internal/store"
)

// takeSlot must be called with s.mu held.
func (s *Store) takeSlot(eventID string) (int, error) {
	ev, ok := s.events[eventID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if ev.Status != store.StatusActive {
		return 0, store.ErrEventNotActive
	}
	if ev.MaxParticipants > 0 && ev.ParticipantCount >= ev.MaxParticipants {
		return 0, store.ErrCapacityExceeded
	}
	ev.ParticipantCount++
	return ev.ParticipantCount, nil
}

func (s *Store) JoinEvent(_ context.Context, p store.JoinParams) (*store.Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[p.EventID]
	if !ok {
		return nil, 0, store.ErrNotFound
	}
	key := entryKey{eventID: p.EventID, userID: p.UserID}
	if _, exists := s.entries[key]; exists {
		return nil, 0, store.ErrAlreadyJoined
	}
	if ev.Status != store.StatusActive {
		return nil, 0, store.ErrEventNotActive
	}
	count := ev.ParticipantCount
	if p.Counted {
		var err error
		if count, err = s.takeSlot(p.EventID); err != nil {
			return nil, 0, err
		}
	}
	entry := &store.Entry{
		EventID:               p.EventID,
		UserID:                p.UserID,
		ChosenOptionID:        p.OptionID,
		FeeState:              store.FeeNone,
		PayoutAddressSnapshot: p.PayoutAddress,
		JoinedAt:              s.now(),
	}
	s.entries[key] = entry
	out := *entry
	return &out, count, nil
}

func (s *Store) GetEntry(_ context.Context, eventID, userID string) (*store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey{eventID: eventID, userID: userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (s *Store) ListEntries(_ context.Context, eventID string) ([]store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.Entry{}
	for k, e := range s.entries {
		if k.eventID == eventID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Store) SetEntryOption(_ context.Context, eventID, userID, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey{eventID: eventID, userID: userID}]
	if !ok {
		return store.ErrNotFound
	}
	if e.FeeState != store.FeeNone {
		return store.ErrInvalidState
	}
	if ev := s.events[eventID]; ev == nil || ev.Status != store.StatusActive {
		return store.ErrEventNotActive
	}
	e.ChosenOptionID = optionID
	return nil
}

func (s *Store) MarkEntryPending(_ context.Context, eventID, userID string, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey{eventID: eventID, userID: userID}]
	if !ok || e.ChosenOptionID == "" {
		return false, nil
	}
	switch e.FeeState {
	case store.FeeNone:
	case store.FeePending:
		if e.PendingAt != nil && !e.PendingAt.Before(staleBefore) {
			return false, nil
		}
	default:
		return false, nil
	}
	now := s.now()
	e.FeeState = store.FeePending
	e.PendingAt = &now
	return true, nil
}

func (s *Store) RevertEntryPending(_ context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[entryKey{eventID: eventID, userID: userID}]; ok && e.FeeState == store.FeePending {
		e.FeeState = store.FeeNone
		e.PendingAt = nil
	}
	return nil
}

func (s *Store) CommitEntry(_ context.Context, eventID, userID string, amount int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.events[eventID]; ok && ev.Status == store.StatusActive &&
		(ev.MaxParticipants == 0 || ev.ParticipantCount < ev.MaxParticipants) {
		e, ok := s.entries[entryKey{eventID: eventID, userID: userID}]
		if !ok || e.FeeState != store.FeePending {
			return 0, store.ErrInvalidState
		}
	}
	count, err := s.takeSlot(eventID)
	if err != nil {
		return 0, err
	}
	e := s.entries[entryKey{eventID: eventID, userID: userID}]
	now := s.now()
	e.FeeState = store.FeeCommitted
	e.CommittedAmount = amount
	e.CommittedAt = &now
	return count, nil
}
