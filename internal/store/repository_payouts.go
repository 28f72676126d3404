package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// InsertPayout appends an audit record. It reports false when a record for the
// same (event, recipient, kind) already exists.
func (s *Store) InsertPayout(ctx context.Context, p Payout) (bool, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	tag, err := s.Pool.Exec(ctx, `INSERT INTO payouts
		(payout_id, event_id, kind, recipient_user_id, recipient_address, amount,
		 currency_at_transfer, transfer_id, outcome, failure_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (event_id, recipient_user_id, kind) DO NOTHING`,
		p.ID, p.EventID, string(p.Kind), p.RecipientUserID, p.RecipientAddress, p.Amount,
		p.CurrencyAtTransfer, textParam(p.TransferID), string(p.Outcome), textParam(p.FailureReason))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListPayouts(ctx context.Context, f PayoutFilter, limit, offset int) ([]Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `SELECT p.payout_id, p.event_id, p.kind, p.recipient_user_id, p.recipient_address,
			p.amount, p.currency_at_transfer, p.transfer_id, p.outcome, p.failure_reason, p.created_at
		FROM payouts p JOIN events e ON e.event_id = p.event_id
		WHERE ($1::text = '' OR e.tenant_id = $1)
		  AND ($2::text = '' OR p.event_id = $2)
		  AND ($3::text = '' OR p.outcome = $3)
		ORDER BY p.created_at, p.payout_id
		LIMIT $4 OFFSET $5`, f.TenantID, f.EventID, string(f.Outcome), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Payout{}
	for rows.Next() {
		var (
			p                      Payout
			kind, outcome          string
			transferID, failReason pgtype.Text
		)
		if err := rows.Scan(&p.ID, &p.EventID, &kind, &p.RecipientUserID, &p.RecipientAddress,
			&p.Amount, &p.CurrencyAtTransfer, &transferID, &outcome, &failReason, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Kind = PayoutKind(kind)
		p.Outcome = PayoutOutcome(outcome)
		p.TransferID = textVal(transferID)
		p.FailureReason = textVal(failReason)
		out = append(out, p)
	}
	return out, rows.Err()
}
