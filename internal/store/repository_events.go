package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const eventColumns = `event_id, tenant_id, kind, mode, title, prize_amount, entry_fee, currency,
	min_participants, max_participants, duration_seconds, deadline, current_participant_count, status,
	favorite_option_id, draw_seed, draw_seed_hash, winning_option_id, conversion_rate,
	created_at, published_at, ended_at, settled_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var (
		ev                                    Event
		kind, mode, status                    string
		deadline, publishedAt, endedAt, settl pgtype.Timestamptz
	)
	err := row.Scan(
		&ev.ID, &ev.TenantID, &kind, &mode, &ev.Title, &ev.PrizeAmount, &ev.EntryFee, &ev.Currency,
		&ev.MinParticipants, &ev.MaxParticipants, &ev.DurationSeconds, &deadline, &ev.ParticipantCount, &status,
		&ev.FavoriteOptionID, &ev.DrawSeed, &ev.DrawSeedHash, &ev.WinningOptionID, &ev.ConversionRate,
		&ev.CreatedAt, &publishedAt, &endedAt, &settl,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}
	ev.Kind = EventKind(kind)
	ev.Mode = EventMode(mode)
	ev.Status = EventStatus(status)
	ev.Deadline = timePtrVal(deadline)
	ev.PublishedAt = timePtrVal(publishedAt)
	ev.EndedAt = timePtrVal(endedAt)
	ev.SettledAt = timePtrVal(settl)
	return &ev, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func (s *Store) CreateEvent(ctx context.Context, ev Event, options []Option) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO events
		(event_id, tenant_id, kind, mode, title, prize_amount, entry_fee, currency,
		 min_participants, max_participants, duration_seconds, favorite_option_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'draft')`,
		ev.ID, ev.TenantID, string(ev.Kind), string(ev.Mode), ev.Title, ev.PrizeAmount, ev.EntryFee, ev.Currency,
		ev.MinParticipants, ev.MaxParticipants, ev.DurationSeconds, ev.FavoriteOptionID,
	); err != nil {
		return err
	}
	for _, o := range options {
		if _, err := tx.Exec(ctx, `INSERT INTO event_options (option_id, event_id, display_order, label, image_url)
			VALUES ($1,$2,$3,$4,$5)`, o.ID, ev.ID, o.DisplayOrder, o.Label, o.ImageURL); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	return scanEvent(s.Pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id = $1`, eventID))
}

func (s *Store) ListEvents(ctx context.Context, f EventFilter, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE ($1::text = '' OR tenant_id = $1) AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC, event_id
		LIMIT $3 OFFSET $4`, f.TenantID, string(f.Status), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (s *Store) ListOptions(ctx context.Context, eventID string) ([]Option, error) {
	rows, err := s.Pool.Query(ctx, `SELECT option_id, event_id, display_order, label, image_url
		FROM event_options WHERE event_id = $1 ORDER BY display_order, option_id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Option{}
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.EventID, &o.DisplayOrder, &o.Label, &o.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PublishEvent moves a draft to active and rebases the deadline on publishedAt.
func (s *Store) PublishEvent(ctx context.Context, eventID string, publishedAt time.Time, seed, seedHash string) (*Event, error) {
	ev, err := scanEvent(s.Pool.QueryRow(ctx, `UPDATE events SET
			status = 'active',
			published_at = $2,
			deadline = CASE WHEN duration_seconds > 0 THEN $2::timestamptz + duration_seconds * interval '1 second' ELSE NULL END,
			draw_seed = $3,
			draw_seed_hash = $4
		WHERE event_id = $1 AND status = 'draft'
		RETURNING `+eventColumns, eventID, publishedAt, seed, seedHash))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetEvent(ctx, eventID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	return ev, err
}

func (s *Store) SetFavorite(ctx context.Context, eventID, optionID string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE events SET favorite_option_id = $2
		WHERE event_id = $1 AND status IN ('draft', 'active')`, eventID, optionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetEvent(ctx, eventID); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

// TransitionStatus is the compare-and-swap on events.status. It reports false
// when the event was not in the expected state.
func (s *Store) TransitionStatus(ctx context.Context, eventID string, from, to EventStatus) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE events SET
			status = $3::text,
			ended_at = CASE WHEN $3::text = 'ended' THEN now() ELSE ended_at END,
			settled_at = CASE WHEN $3::text IN ('cancelled', 'completed') THEN now() ELSE settled_at END
		WHERE event_id = $1 AND status = $2`, eventID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) FinishSettlement(ctx context.Context, out SettlementOutcome) (bool, error) {
	if !out.Status.Terminal() {
		return false, fmt.Errorf("finish settlement: %w: %s", ErrInvalidState, out.Status)
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE events SET
			status = $2, winning_option_id = $3, conversion_rate = $4, settled_at = now()
		WHERE event_id = $1 AND status = 'ended'`,
		out.EventID, string(out.Status), out.WinningOptionID, out.ConversionRate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkWinners(ctx context.Context, eventID string, userIDs []string) error {
	if userIDs == nil {
		userIDs = []string{}
	}
	_, err := s.Pool.Exec(ctx, `UPDATE entries SET is_winner = (user_id = ANY($2::text[]))
		WHERE event_id = $1`, eventID, userIDs)
	return err
}

func (s *Store) ListDueEvents(ctx context.Context, now time.Time, after *DueCursor, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		afterDeadline pgtype.Timestamptz
		afterID       string
	)
	if after != nil {
		afterDeadline = pgtype.Timestamptz{Time: after.Deadline, Valid: true}
		afterID = after.EventID
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE status = 'active' AND deadline IS NOT NULL AND deadline <= $1
		  AND ($3::timestamptz IS NULL OR (deadline, event_id) > ($3::timestamptz, $4::text))
		ORDER BY deadline, event_id LIMIT $2`, now, limit, afterDeadline, afterID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (s *Store) ListStaleEnded(ctx context.Context, endedBefore time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE status = 'ended' AND ended_at <= $1
		ORDER BY ended_at, event_id LIMIT $2`, endedBefore, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}
