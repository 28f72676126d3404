package events

import (
	"context"
	"errors"
	"strings"

	"event-settlement/internal/store"
	"event-settlement/internal/treasury"

	"github.com/rs/zerolog/log"
)

// UpsertTreasury stores the tenant wallet. The secret is sealed before it
// reaches the store; an empty secret keeps the one already on file.
func (s *Service) UpsertTreasury(ctx context.Context, tenantID string, in TreasuryInput) (*TreasuryView, error) {
	tenantID = strings.TrimSpace(tenantID)
	t := store.Treasury{
		TenantID:      tenantID,
		WalletAddress: strings.TrimSpace(in.WalletAddress),
		Network:       strings.TrimSpace(in.Network),
		BudgetTotal:   in.BudgetTotal,
	}
	if tenantID == "" || t.WalletAddress == "" || t.Network == "" || t.BudgetTotal < 0 {
		return nil, ErrInvalidRequest
	}
	if in.Secret != "" {
		if s.sealer == nil {
			return nil, ErrSealerUnavailable
		}
		plain := []byte(in.Secret)
		sealed, err := s.sealer.Encrypt(plain)
		treasury.Wipe(plain)
		if err != nil {
			return nil, err
		}
		t.EncryptedSecret = sealed
	} else {
		existing, err := s.repo.GetTreasury(ctx, tenantID)
		switch {
		case err == nil:
			t.EncryptedSecret = existing.EncryptedSecret
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	if err := s.repo.UpsertTreasury(ctx, t); err != nil {
		return nil, err
	}
	log.Info().Str("tenant_id", tenantID).Str("network", t.Network).Int64("budget_total", t.BudgetTotal).Bool("has_secret", t.EncryptedSecret != "").Msg("treasury_updated")
	return s.GetTreasury(ctx, tenantID)
}

func (s *Service) GetTreasury(ctx context.Context, tenantID string) (*TreasuryView, error) {
	t, err := s.repo.GetTreasury(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTreasuryNotFound
		}
		return nil, err
	}
	v := treasuryView(*t)
	return &v, nil
}

func (s *Service) ResetBudget(ctx context.Context, tenantID string) (*TreasuryView, error) {
	if err := s.repo.ResetBudgetSpent(ctx, tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTreasuryNotFound
		}
		return nil, err
	}
	log.Info().Str("tenant_id", tenantID).Msg("treasury_budget_reset")
	return s.GetTreasury(ctx, tenantID)
}

func (s *Service) SetPayoutAddress(ctx context.Context, tenantID, userID, address, network string) (*PayoutAddressView, error) {
	a := store.PayoutAddress{
		TenantID: strings.TrimSpace(tenantID),
		UserID:   strings.TrimSpace(userID),
		Address:  strings.TrimSpace(address),
		Network:  strings.TrimSpace(network),
	}
	if a.TenantID == "" || a.UserID == "" || a.Address == "" {
		return nil, ErrInvalidRequest
	}
	if err := s.repo.UpsertPayoutAddress(ctx, a); err != nil {
		return nil, err
	}
	return s.GetPayoutAddress(ctx, a.TenantID, a.UserID)
}

func (s *Service) GetPayoutAddress(ctx context.Context, tenantID, userID string) (*PayoutAddressView, error) {
	a, err := s.repo.GetPayoutAddress(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoPayoutAddress
		}
		return nil, err
	}
	return &PayoutAddressView{UserID: a.UserID, Address: a.Address, Network: a.Network, UpdatedAt: a.UpdatedAt}, nil
}
