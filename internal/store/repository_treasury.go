package store

import (
	"context"
	"errors"
)

// UpsertTreasury never touches budget_spent; only confirmed payouts and an
// explicit reset change it.
func (s *Store) UpsertTreasury(ctx context.Context, t Treasury) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO treasuries
		(tenant_id, wallet_address, encrypted_secret, network, budget_total)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			wallet_address = EXCLUDED.wallet_address,
			encrypted_secret = EXCLUDED.encrypted_secret,
			network = EXCLUDED.network,
			budget_total = EXCLUDED.budget_total,
			updated_at = now()`,
		t.TenantID, t.WalletAddress, t.EncryptedSecret, t.Network, t.BudgetTotal)
	return err
}

func (s *Store) GetTreasury(ctx context.Context, tenantID string) (*Treasury, error) {
	var t Treasury
	err := s.Pool.QueryRow(ctx, `SELECT tenant_id, wallet_address, encrypted_secret, network,
			budget_total, budget_spent, updated_at
		FROM treasuries WHERE tenant_id = $1`, tenantID).Scan(
		&t.TenantID, &t.WalletAddress, &t.EncryptedSecret, &t.Network, &t.BudgetTotal, &t.BudgetSpent, &t.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &t, nil
}

func (s *Store) IncrementBudgetSpent(ctx context.Context, tenantID string, amount int64) error {
	if amount < 0 {
		return errors.New("amount must be positive")
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE treasuries SET budget_spent = budget_spent + $2, updated_at = now()
		WHERE tenant_id = $1`, tenantID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ResetBudgetSpent(ctx context.Context, tenantID string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE treasuries SET budget_spent = 0, updated_at = now()
		WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpsertPayoutAddress(ctx context.Context, a PayoutAddress) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO payout_addresses (tenant_id, user_id, address, network)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			address = EXCLUDED.address, network = EXCLUDED.network, updated_at = now()`,
		a.TenantID, a.UserID, a.Address, a.Network)
	return err
}

func (s *Store) GetPayoutAddress(ctx context.Context, tenantID, userID string) (*PayoutAddress, error) {
	var a PayoutAddress
	err := s.Pool.QueryRow(ctx, `SELECT tenant_id, user_id, address, network, updated_at
		FROM payout_addresses WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID).Scan(
		&a.TenantID, &a.UserID, &a.Address, &a.Network, &a.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}
