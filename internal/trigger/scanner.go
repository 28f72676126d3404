// Package trigger drives deadline settlement: a periodic scan settles every
// active event whose deadline has passed and reports events stuck in ended.
package trigger

import (
	"context"
	"errors"
	"expvar"
	"time"

	"event-settlement/internal/settlement"
	"event-settlement/internal/store"

	"github.com/rs/zerolog/log"
)

var (
	metricScans      = expvar.NewInt("trigger_scans_total")
	metricDue        = expvar.NewInt("trigger_due_events_total")
	metricSettled    = expvar.NewInt("trigger_settled_total")
	metricDeferred   = expvar.NewInt("trigger_deferred_total")
	metricFailed     = expvar.NewInt("trigger_failed_total")
	metricStaleEnded = expvar.NewInt("trigger_stale_ended")
)

type Settler interface {
	Settle(ctx context.Context, eventID string, trigger settlement.Trigger) (*settlement.Result, error)
}

type Config struct {
	Interval   time.Duration
	Batch      int
	StaleAfter time.Duration
}

type Report struct {
	Due        int
	Settled    int
	Deferred   int
	Failed     int
	StaleEnded []string
}

type Scanner struct {
	repo    store.Repository
	settler Settler
	cfg     Config
	now     func() time.Time
}

func NewScanner(repo store.Repository, settler Settler, cfg Config) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	return &Scanner{repo: repo, settler: settler, cfg: cfg, now: time.Now}
}

// Run scans immediately and then on every tick until ctx is done.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("deadline scan failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce settles every due event, a batch at a time. Each event is settled
// on its own; a failure on one does not stop the scan. Events left active
// (deferred or failed) are paged past, so they never hide the ones behind.
func (s *Scanner) ScanOnce(ctx context.Context) (Report, error) {
	metricScans.Add(1)
	var rep Report
	now := s.now()
	// Once a currency's rate is unavailable, its other events wait for the
	// next scan instead of each paying the oracle timeout.
	deferred := map[string]bool{}
	var cursor *store.DueCursor
	for {
		due, err := s.repo.ListDueEvents(ctx, now, cursor, s.cfg.Batch)
		if err != nil {
			return rep, err
		}
		rep.Due += len(due)
		metricDue.Add(int64(len(due)))
		for _, ev := range due {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			if ev.IsFiat() && deferred[ev.Currency] {
				rep.Deferred++
				metricDeferred.Add(1)
				continue
			}
			res, err := s.settler.Settle(ctx, ev.ID, settlement.TriggerDeadline)
			switch {
			case errors.Is(err, settlement.ErrOracleUnavailable):
				deferred[ev.Currency] = true
				rep.Deferred++
				metricDeferred.Add(1)
			case err != nil:
				rep.Failed++
				metricFailed.Add(1)
				log.Error().Err(err).Str("event_id", ev.ID).Msg("deadline settlement failed")
			case res != nil:
				rep.Settled++
				metricSettled.Add(1)
			}
		}
		if len(due) < s.cfg.Batch {
			break
		}
		last := due[len(due)-1]
		cursor = &store.DueCursor{Deadline: *last.Deadline, EventID: last.ID}
	}

	stale, err := s.repo.ListStaleEnded(ctx, now.Add(-s.cfg.StaleAfter), s.cfg.Batch)
	if err != nil {
		return rep, err
	}
	metricStaleEnded.Set(int64(len(stale)))
	for _, ev := range stale {
		rep.StaleEnded = append(rep.StaleEnded, ev.ID)
		l := log.Warn().Str("event_id", ev.ID).Str("tenant_id", ev.TenantID)
		if ev.EndedAt != nil {
			l = l.Time("ended_at", *ev.EndedAt)
		}
		l.Msg("event stuck in ended")
	}
	if rep.Due > 0 || len(rep.StaleEnded) > 0 {
		log.Info().Int("due", rep.Due).Int("settled", rep.Settled).Int("deferred", rep.Deferred).
			Int("failed", rep.Failed).Int("stale_ended", len(rep.StaleEnded)).Msg("deadline_scan")
	}
	return rep, nil
}
