// Package memstore is an in-process store.Repository. Every mutation runs under
// one mutex, which gives the same compare-and-swap and atomic counter
// guarantees the Postgres store gets from conditional UPDATEs.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"event-settlement/internal/store"
)

type entryKey struct {
	eventID string
	userID  string
}

type payoutKey struct {
	eventID string
	userID  string
	kind    store.PayoutKind
}

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	events    map[string]*store.Event
	options   map[string][]store.Option
	entries   map[entryKey]*store.Entry
	treasury  map[string]*store.Treasury
	addresses map[entryKey]*store.PayoutAddress
	payouts   []store.Payout
	payoutIdx map[payoutKey]struct{}
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		now:       time.Now,
		events:    map[string]*store.Event{},
		options:   map[string][]store.Option{},
		entries:   map[entryKey]*store.Entry{},
		treasury:  map[string]*store.Treasury{},
		addresses: map[entryKey]*store.PayoutAddress{},
		payoutIdx: map[payoutKey]struct{}{},
	}
}

// SetClock overrides the timestamp source used for created/joined/ended times.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) CreateEvent(_ context.Context, ev store.Event, options []store.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		return errors.New("duplicate event_id")
	}
	ev.Status = store.StatusDraft
	ev.ParticipantCount = 0
	ev.CreatedAt = s.now()
	s.events[ev.ID] = &ev
	opts := make([]store.Option, 0, len(options))
	for _, o := range options {
		o.EventID = ev.ID
		opts = append(opts, o)
	}
	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].DisplayOrder != opts[j].DisplayOrder {
			return opts[i].DisplayOrder < opts[j].DisplayOrder
		}
		return opts[i].ID < opts[j].ID
	})
	s.options[ev.ID] = opts
	return nil
}

func (s *Store) GetEvent(_ context.Context, eventID string) (*store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *ev
	return &out, nil
}

func (s *Store) ListEvents(_ context.Context, f store.EventFilter, limit, offset int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.Event{}
	for _, ev := range s.events {
		if f.TenantID != "" && ev.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && ev.Status != f.Status {
			continue
		}
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, offset), nil
}

func (s *Store) ListOptions(_ context.Context, eventID string) ([]store.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Option{}, s.options[eventID]...), nil
}

func (s *Store) PublishEvent(_ context.Context, eventID string, publishedAt time.Time, seed, seedHash string) (*store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if ev.Status != store.StatusDraft {
		return nil, store.ErrInvalidState
	}
	ev.Status = store.StatusActive
	ev.PublishedAt = &publishedAt
	ev.Deadline = nil
	if ev.DurationSeconds > 0 {
		deadline := publishedAt.Add(time.Duration(ev.DurationSeconds) * time.Second)
		ev.Deadline = &deadline
	}
	ev.DrawSeed = seed
	ev.DrawSeedHash = seedHash
	out := *ev
	return &out, nil
}

func (s *Store) SetFavorite(_ context.Context, eventID, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	if ev.Status != store.StatusDraft && ev.Status != store.StatusActive {
		return store.ErrInvalidState
	}
	ev.FavoriteOptionID = optionID
	return nil
}

func (s *Store) TransitionStatus(_ context.Context, eventID string, from, to store.EventStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.Status != from {
		return false, nil
	}
	ev.Status = to
	now := s.now()
	if to == store.StatusEnded {
		ev.EndedAt = &now
	}
	if to.Terminal() {
		ev.SettledAt = &now
	}
	return true, nil
}

func (s *Store) FinishSettlement(_ context.Context, out store.SettlementOutcome) (bool, error) {
	if !out.Status.Terminal() {
		return false, store.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[out.EventID]
	if !ok || ev.Status != store.StatusEnded {
		return false, nil
	}
	now := s.now()
	ev.Status = out.Status
	ev.WinningOptionID = out.WinningOptionID
	ev.ConversionRate = out.ConversionRate
	ev.SettledAt = &now
	return true, nil
}

func (s *Store) MarkWinners(_ context.Context, eventID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	winners := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		winners[id] = struct{}{}
	}
	for k, e := range s.entries {
		if k.eventID != eventID {
			continue
		}
		_, e.IsWinner = winners[k.userID]
	}
	return nil
}

func (s *Store) ListDueEvents(_ context.Context, now time.Time, after *store.DueCursor, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.Event{}
	for _, ev := range s.events {
		if ev.Status != store.StatusActive || ev.Deadline == nil || ev.Deadline.After(now) {
			continue
		}
		if after != nil && !dueAfter(*ev, *after) {
			continue
		}
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(*out[j].Deadline) {
			return out[i].Deadline.Before(*out[j].Deadline)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, 0), nil
}

func (s *Store) ListStaleEnded(_ context.Context, endedBefore time.Time, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.Event{}
	for _, ev := range s.events {
		if ev.Status == store.StatusEnded && ev.EndedAt != nil && !ev.EndedAt.After(endedBefore) {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndedAt.Equal(*out[j].EndedAt) {
			return out[i].EndedAt.Before(*out[j].EndedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, 0), nil
}

func dueAfter(ev store.Event, c store.DueCursor) bool {
	if !ev.Deadline.Equal(c.Deadline) {
		return ev.Deadline.After(c.Deadline)
	}
	return ev.ID > c.EventID
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
