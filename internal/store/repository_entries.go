package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const entryColumns = `event_id, user_id, chosen_option_id, fee_commitment_state, committed_amount,
	payout_address_snapshot, is_winner, joined_at, pending_at, committed_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e           Entry
		chosen      pgtype.Text
		feeState    string
		pendingAt   pgtype.Timestamptz
		committedAt pgtype.Timestamptz
	)
	if err := row.Scan(&e.EventID, &e.UserID, &chosen, &feeState, &e.CommittedAmount,
		&e.PayoutAddressSnapshot, &e.IsWinner, &e.JoinedAt, &pendingAt, &committedAt); err != nil {
		return nil, mapNotFound(err)
	}
	e.ChosenOptionID = textVal(chosen)
	e.FeeState = FeeState(feeState)
	e.PendingAt = timePtrVal(pendingAt)
	e.CommittedAt = timePtrVal(committedAt)
	return &e, nil
}

// takeSlot increments the participant count when the event is active and has
// room. The caller's transaction owns the row lock until commit.
func takeSlot(ctx context.Context, tx pgx.Tx, eventID string) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `UPDATE events SET current_participant_count = current_participant_count + 1
		WHERE event_id = $1 AND status = 'active'
		  AND (max_participants = 0 OR current_participant_count < max_participants)
		RETURNING current_participant_count`, eventID).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(mapNotFound(err), ErrNotFound) {
		return 0, err
	}
	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM events WHERE event_id = $1`, eventID).Scan(&status); err != nil {
		return 0, mapNotFound(err)
	}
	if EventStatus(status) != StatusActive {
		return 0, ErrEventNotActive
	}
	return 0, ErrCapacityExceeded
}

// JoinEvent inserts the entry and, for counted joins, takes a capacity slot in
// the same transaction. An existing entry wins over a full event, so a repeat
// join reports already_joined.
func (s *Store) JoinEvent(ctx context.Context, p JoinParams) (*Entry, int, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entries WHERE event_id = $1 AND user_id = $2)`,
		p.EventID, p.UserID).Scan(&exists); err != nil {
		return nil, 0, err
	}
	if exists {
		return nil, 0, ErrAlreadyJoined
	}

	var count int
	if p.Counted {
		count, err = takeSlot(ctx, tx, p.EventID)
		if err != nil {
			return nil, 0, err
		}
	} else {
		var status string
		if err := tx.QueryRow(ctx, `SELECT status, current_participant_count FROM events
			WHERE event_id = $1 FOR SHARE`, p.EventID).Scan(&status, &count); err != nil {
			return nil, 0, mapNotFound(err)
		}
		if EventStatus(status) != StatusActive {
			return nil, 0, ErrEventNotActive
		}
	}

	entry, err := scanEntry(tx.QueryRow(ctx, `INSERT INTO entries
		(event_id, user_id, chosen_option_id, fee_commitment_state, payout_address_snapshot)
		VALUES ($1, $2, $3, 'none', $4)
		ON CONFLICT (event_id, user_id) DO NOTHING
		RETURNING `+entryColumns, p.EventID, p.UserID, textParam(p.OptionID), p.PayoutAddress))
	if errors.Is(err, ErrNotFound) {
		return nil, 0, ErrAlreadyJoined
	}
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return entry, count, nil
}

func (s *Store) GetEntry(ctx context.Context, eventID, userID string) (*Entry, error) {
	return scanEntry(s.Pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE event_id = $1 AND user_id = $2`, eventID, userID))
}

// ListEntries returns entries in join order; payout remainders go to the first.
func (s *Store) ListEntries(ctx context.Context, eventID string) ([]Entry, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE event_id = $1 ORDER BY joined_at, user_id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SetEntryOption holds a share lock on the event row, so the change either
// lands before the settlement swap or sees the event as no longer active.
func (s *Store) SetEntryOption(ctx context.Context, eventID, userID, optionID string) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM events WHERE event_id = $1 FOR SHARE`, eventID).Scan(&status); err != nil {
		return mapNotFound(err)
	}
	entry, err := scanEntry(tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE event_id = $1 AND user_id = $2 FOR UPDATE`, eventID, userID))
	if err != nil {
		return err
	}
	if entry.FeeState != FeeNone {
		return ErrInvalidState
	}
	if EventStatus(status) != StatusActive {
		return ErrEventNotActive
	}
	if _, err := tx.Exec(ctx, `UPDATE entries SET chosen_option_id = $3
		WHERE event_id = $1 AND user_id = $2`, eventID, userID, optionID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) MarkEntryPending(ctx context.Context, eventID, userID string, staleBefore time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE entries SET fee_commitment_state = 'pending', pending_at = now()
		WHERE event_id = $1 AND user_id = $2 AND chosen_option_id IS NOT NULL
		  AND (fee_commitment_state = 'none'
		    OR (fee_commitment_state = 'pending' AND (pending_at IS NULL OR pending_at < $3)))`,
		eventID, userID, staleBefore)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RevertEntryPending(ctx context.Context, eventID, userID string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE entries SET fee_commitment_state = 'none', pending_at = NULL
		WHERE event_id = $1 AND user_id = $2 AND fee_commitment_state = 'pending'`, eventID, userID)
	return err
}

// CommitEntry finalizes a pending entry and counts the participant atomically.
func (s *Store) CommitEntry(ctx context.Context, eventID, userID string, amount int64) (int, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	count, err := takeSlot(ctx, tx, eventID)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `UPDATE entries SET fee_commitment_state = 'committed', committed_amount = $3, committed_at = now()
		WHERE event_id = $1 AND user_id = $2 AND fee_commitment_state = 'pending'`, eventID, userID, amount)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrInvalidState
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}
