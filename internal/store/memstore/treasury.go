package memstore

import (
	"context"
	"errors"

	"event-settlement/internal/store"
)

func (s *Store) UpsertTreasury(_ context.Context, t store.Treasury) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if cur, ok := s.treasury[t.TenantID]; ok {
		cur.WalletAddress = t.WalletAddress
		cur.EncryptedSecret = t.EncryptedSecret
		cur.Network = t.Network
		cur.BudgetTotal = t.BudgetTotal
		cur.UpdatedAt = now
		return nil
	}
	t.BudgetSpent = 0
	t.UpdatedAt = now
	s.treasury[t.TenantID] = &t
	return nil
}

func (s *Store) GetTreasury(_ context.Context, tenantID string) (*store.Treasury, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.treasury[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (s *Store) IncrementBudgetSpent(_ context.Context, tenantID string, amount int64) error {
	if amount < 0 {
		return errors.New("amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.treasury[tenantID]
	if !ok {
		return store.ErrNotFound
	}
	t.BudgetSpent += amount
	t.UpdatedAt = s.now()
	return nil
}

func (s *Store) ResetBudgetSpent(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.treasury[tenantID]
	if !ok {
		return store.ErrNotFound
	}
	t.BudgetSpent = 0
	t.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpsertPayoutAddress(_ context.Context, a store.PayoutAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.UpdatedAt = s.now()
	s.addresses[entryKey{eventID: a.TenantID, userID: a.UserID}] = &a
	return nil
}

func (s *Store) GetPayoutAddress(_ context.Context, tenantID, userID string) (*store.PayoutAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addresses[entryKey{eventID: tenantID, userID: userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (s *Store) InsertPayout(_ context.Context, p store.Payout) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := payoutKey{eventID: p.EventID, userID: p.RecipientUserID, kind: p.Kind}
	if _, exists := s.payoutIdx[key]; exists {
		return false, nil
	}
	if p.ID == "" {
		p.ID = store.NewID()
	}
	p.CreatedAt = s.now()
	s.payoutIdx[key] = struct{}{}
	s.payouts = append(s.payouts, p)
	return true, nil
}

func (s *Store) ListPayouts(_ context.Context, f store.PayoutFilter, limit, offset int) ([]store.Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.Payout{}
	for _, p := range s.payouts {
		if f.EventID != "" && p.EventID != f.EventID {
			continue
		}
		if f.Outcome != "" && p.Outcome != f.Outcome {
			continue
		}
		if f.TenantID != "" {
			ev, ok := s.events[p.EventID]
			if !ok || ev.TenantID != f.TenantID {
				continue
			}
		}
		out = append(out, p)
	}
	return page(out, limit, offset), nil
}
