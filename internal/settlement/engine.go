// Package settlement closes events and pays winners. Every trigger (deadline
// scanner, capacity hook, manual admin call) goes through Engine.Settle; the
// active→ended status swap is the only gate between racing callers.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-settlement/internal/announce"
	"event-settlement/internal/ledger"
	"event-settlement/internal/oracle"
	"event-settlement/internal/payout"
	"event-settlement/internal/policy"
	"event-settlement/internal/store"
	"event-settlement/internal/treasury"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	defaultTransferTimeout = 15 * time.Second
	defaultOracleTimeout   = 5 * time.Second
	defaultAnnounceTimeout = 2 * time.Second
)

type Options struct {
	TransferTimeout time.Duration
	OracleTimeout   time.Duration
	AnnounceTimeout time.Duration
}

type Engine struct {
	repo    store.Repository
	oracle  oracle.Client
	ledger  ledger.Client
	secrets treasury.SecretResolver
	sink    announce.Sink
	opts    Options
}

func NewEngine(repo store.Repository, oc oracle.Client, lc ledger.Client, secrets treasury.SecretResolver, sink announce.Sink, opts Options) *Engine {
	if opts.TransferTimeout <= 0 {
		opts.TransferTimeout = defaultTransferTimeout
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = defaultOracleTimeout
	}
	if opts.AnnounceTimeout <= 0 {
		opts.AnnounceTimeout = defaultAnnounceTimeout
	}
	if sink == nil {
		sink = announce.Noop{}
	}
	return &Engine{repo: repo, oracle: oc, ledger: lc, secrets: secrets, sink: sink, opts: opts}
}

// Settle runs settlement for eventID. A nil result with a nil error means the
// event was not active (someone else settled it, or it never went live).
// Payout failures never surface here; they live on the payout records.
func (e *Engine) Settle(ctx context.Context, eventID string, trigger Trigger) (*Result, error) {
	metricSettleCalls.Add(1)
	ev, err := e.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status != store.StatusActive {
		e.stale(ev.ID, ev.Status, trigger)
		return nil, nil
	}

	tr, err := e.repo.GetTreasury(ctx, ev.TenantID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if errors.Is(err, store.ErrNotFound) {
		tr = nil
	}

	// Price before the swap: without a rate nothing may be transferred, and
	// the event must stay active for the next scan. A house-mode cancel
	// transfers nothing, so it never waits on the oracle.
	var rate *decimal.Decimal
	if ev.IsFiat() && (trigger != TriggerCancel || ev.Mode == store.ModePot) {
		r, err := e.fetchRate(ctx, ev, tr)
		if err != nil {
			metricOracleUnavailable.Add(1)
			log.Warn().Err(err).Str("event_id", ev.ID).Str("currency", ev.Currency).Str("trigger", string(trigger)).Msg("settlement deferred: oracle unavailable")
			return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
		}
		rate = &r
	}

	won, err := e.repo.TransitionStatus(ctx, ev.ID, store.StatusActive, store.StatusEnded)
	if err != nil {
		return nil, err
	}
	if !won {
		e.stale(ev.ID, store.StatusEnded, trigger)
		return nil, nil
	}
	metricSettleStarted.Add(1)
	started := time.Now()
	log.Info().Str("event_id", ev.ID).Str("tenant_id", ev.TenantID).Str("trigger", string(trigger)).Msg("settlement_started")

	// Past the swap the event must reach a terminal state even if the caller
	// goes away.
	sctx := context.WithoutCancel(ctx)

	// Settle the row as it stood at the swap, not the earlier read: the
	// favorite may have moved in between.
	fresh, err := e.repo.GetEvent(sctx, ev.ID)
	if err != nil {
		metricSettleFailed.Add(1)
		log.Error().Err(err).Str("event_id", ev.ID).Msg("settlement left event ended")
		return nil, err
	}
	ev = fresh
	run := &run{engine: e, ev: ev, treasury: tr, rate: rate}
	defer run.wipe()

	res, err := run.execute(sctx, trigger)
	metricSettleLastDuration.Set(time.Since(started).Milliseconds())
	if err != nil {
		metricSettleFailed.Add(1)
		log.Error().Err(err).Str("event_id", ev.ID).Msg("settlement left event ended")
		return nil, err
	}
	switch res.Status {
	case store.StatusCancelled:
		metricSettleCancelled.Add(1)
	case store.StatusCompleted:
		metricSettleCompleted.Add(1)
	}
	log.Info().
		Str("event_id", ev.ID).
		Str("status", string(res.Status)).
		Str("winning_option_id", res.WinningOptionID).
		Int("winners", len(res.WinnerUserIDs)).
		Int("payouts", len(res.Payouts)).
		Msg("settlement_finished")

	e.announce(sctx, ev.ID, run.options, res)
	return res, nil
}

func (e *Engine) stale(eventID string, status store.EventStatus, trigger Trigger) {
	metricSettleStale.Add(1)
	log.Info().Str("event_id", eventID).Str("status", string(status)).Str("trigger", string(trigger)).Msg("stale_trigger")
}

func (e *Engine) fetchRate(ctx context.Context, ev *store.Event, tr *store.Treasury) (decimal.Decimal, error) {
	if e.oracle == nil {
		return decimal.Zero, oracle.ErrUnavailable
	}
	network := store.NativeCurrency
	if tr != nil && tr.Network != "" {
		network = tr.Network
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.OracleTimeout)
	defer cancel()
	return e.oracle.GetRate(ctx, oracle.Pair(ev.Currency, network))
}

func (e *Engine) announce(ctx context.Context, eventID string, options []store.Option, res *Result) {
	ev, err := e.repo.GetEvent(ctx, eventID)
	if err != nil {
		metricAnnounceFailed.Add(1)
		log.Warn().Err(err).Str("event_id", eventID).Msg("announce skipped")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.AnnounceTimeout)
	defer cancel()
	if err := e.sink.PublishResult(ctx, eventID, summaryFor(*ev, options, *res)); err != nil {
		metricAnnounceFailed.Add(1)
		log.Warn().Err(err).Str("event_id", eventID).Msg("announce failed")
	}
}

// run holds the data captured once the swap succeeded.
type run struct {
	engine   *Engine
	ev       *store.Event
	treasury *store.Treasury
	rate     *decimal.Decimal
	options  []store.Option

	secret        []byte
	secretChecked bool
	spent         int64
}

func (r *run) wipe() {
	treasury.Wipe(r.secret)
	r.secret = nil
}

func (r *run) execute(ctx context.Context, trigger Trigger) (*Result, error) {
	repo := r.engine.repo
	options, err := repo.ListOptions(ctx, r.ev.ID)
	if err != nil {
		return nil, err
	}
	r.options = options
	entries, err := repo.ListEntries(ctx, r.ev.ID)
	if err != nil {
		return nil, err
	}
	if r.treasury != nil {
		r.spent = r.treasury.BudgetSpent
	}
	counted := countedEntries(*r.ev, entries)
	if trigger == TriggerCancel || len(counted) < r.ev.MinParticipants {
		return r.cancel(ctx, entries)
	}
	return r.complete(ctx, counted)
}

// countedEntries are the entries holding a capacity slot.
func countedEntries(ev store.Event, entries []store.Entry) []store.Entry {
	if ev.CountsAtJoin() {
		return entries
	}
	out := make([]store.Entry, 0, len(entries))
	for _, en := range entries {
		if en.FeeState == store.FeeCommitted {
			out = append(out, en)
		}
	}
	return out
}

func (r *run) cancel(ctx context.Context, entries []store.Entry) (*Result, error) {
	res := &Result{
		EventID:       r.ev.ID,
		Status:        store.StatusCancelled,
		WinnerUserIDs: []string{},
		Payouts:       []Payout{},
	}
	if r.ev.Mode == store.ModePot {
		for _, en := range entries {
			if en.FeeState != store.FeeCommitted || en.CommittedAmount <= 0 {
				continue
			}
			amount, err := payout.Refund(*r.ev, en.CommittedAmount, r.rate)
			rec := r.newRecord(store.PayoutRefund, en.UserID, amount)
			rec.RecipientAddress = en.PayoutAddressSnapshot
			if rec.RecipientAddress == "" {
				rec.RecipientAddress = r.registeredAddress(ctx, en.UserID)
			}
			if err != nil {
				r.fail(&rec, err.Error())
			} else {
				r.pay(ctx, &rec, false)
			}
			if p, ok := r.record(ctx, rec); ok {
				res.Payouts = append(res.Payouts, p)
			}
		}
		if pot, err := payout.CommittedPot(entries); err == nil {
			res.Pot = pot
		}
	}
	if r.rate != nil {
		res.Rate = r.rate.String()
	}
	if err := r.finish(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *run) complete(ctx context.Context, counted []store.Entry) (*Result, error) {
	pol, err := policy.For(r.ev.Kind)
	if err != nil {
		return nil, err
	}
	decision, err := pol.DetermineWinners(*r.ev, r.options, counted)
	if err != nil {
		return nil, err
	}
	if err := r.engine.repo.MarkWinners(ctx, r.ev.ID, decision.WinnerUserIDs); err != nil {
		return nil, err
	}
	plan, err := payout.Compute(*r.ev, counted, len(decision.WinnerUserIDs), r.rate)
	if err != nil {
		return nil, err
	}

	res := &Result{
		EventID:         r.ev.ID,
		Status:          store.StatusCompleted,
		WinningOptionID: decision.WinningOptionID,
		WinnerUserIDs:   decision.WinnerUserIDs,
		Payouts:         make([]Payout, 0, len(decision.WinnerUserIDs)),
		Draw:            decision.Draw,
	}
	if r.ev.Mode == store.ModePot {
		res.Pot = plan.Gross
		res.HouseCut = plan.HouseCut
	}
	if r.rate != nil {
		res.Rate = r.rate.String()
	}

	snapshots := make(map[string]string, len(counted))
	for _, en := range counted {
		snapshots[en.UserID] = en.PayoutAddressSnapshot
	}
	for i, userID := range decision.WinnerUserIDs {
		rec := r.newRecord(store.PayoutPrize, userID, plan.Shares[i])
		rec.RecipientAddress = r.registeredAddress(ctx, userID)
		if rec.RecipientAddress == "" {
			rec.RecipientAddress = snapshots[userID]
		}
		r.pay(ctx, &rec, true)
		if p, ok := r.record(ctx, rec); ok {
			res.Payouts = append(res.Payouts, p)
		}
	}
	if err := r.finish(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *run) newRecord(kind store.PayoutKind, userID string, amount int64) store.Payout {
	return store.Payout{
		ID:                 store.NewID(),
		EventID:            r.ev.ID,
		Kind:               kind,
		RecipientUserID:    userID,
		Amount:             amount,
		CurrencyAtTransfer: store.NativeCurrency,
	}
}

func (r *run) registeredAddress(ctx context.Context, userID string) string {
	a, err := r.engine.repo.GetPayoutAddress(ctx, r.ev.TenantID, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("event_id", r.ev.ID).Str("user_id", userID).Msg("payout address lookup failed")
		}
		return ""
	}
	return a.Address
}

func (r *run) fail(rec *store.Payout, reason string) {
	rec.Outcome = store.OutcomeFailed
	rec.FailureReason = reason
}

// pay attempts one transfer and fills in the outcome. Prize payouts are
// subject to the tenant budget; refunds are not.
func (r *run) pay(ctx context.Context, rec *store.Payout, guarded bool) {
	if rec.Outcome != "" {
		return
	}
	switch {
	case rec.RecipientAddress == "":
		r.fail(rec, ReasonNoPayoutAddress)
		return
	case rec.Amount <= 0:
		r.fail(rec, ReasonAmountTooSmall)
		return
	case r.treasury == nil:
		r.fail(rec, ReasonNoTreasury)
		return
	case guarded && r.treasury.BudgetTotal > 0 && r.spent+rec.Amount > r.treasury.BudgetTotal:
		r.fail(rec, ReasonBudgetExceeded)
		return
	}
	secret, ok := r.resolveSecret()
	if !ok {
		r.fail(rec, ReasonSecretUnavailable)
		return
	}

	tctx, cancel := context.WithTimeout(ctx, r.engine.opts.TransferTimeout)
	defer cancel()
	transferID, err := r.engine.ledger.Transfer(tctx, ledger.TransferRequest{
		FromAddress:    r.treasury.WalletAddress,
		FromSecret:     secret,
		ToAddress:      rec.RecipientAddress,
		Amount:         rec.Amount,
		Network:        r.treasury.Network,
		IdempotencyKey: rec.ID,
	})
	if err == nil && strings.TrimSpace(transferID) == "" {
		err = &ledger.TransferError{Reason: "missing_transfer_id"}
	}
	if err != nil {
		r.fail(rec, ledger.Reason(err))
		log.Warn().Err(err).Str("event_id", r.ev.ID).Str("user_id", rec.RecipientUserID).Str("kind", string(rec.Kind)).Msg("transfer failed")
		return
	}
	rec.Outcome = store.OutcomeConfirmed
	rec.TransferID = transferID
}

func (r *run) resolveSecret() ([]byte, bool) {
	if !r.secretChecked {
		r.secretChecked = true
		if r.engine.secrets != nil && r.treasury.EncryptedSecret != "" {
			r.secret, _ = r.engine.secrets.Decrypt(r.treasury.EncryptedSecret)
		}
	}
	return r.secret, len(r.secret) > 0
}

// record persists rec and, for confirmed transfers, bumps budget_spent.
// A payout that already exists for this recipient and kind is not repeated.
func (r *run) record(ctx context.Context, rec store.Payout) (Payout, bool) {
	inserted, err := r.engine.repo.InsertPayout(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("event_id", r.ev.ID).Str("payout_id", rec.ID).Str("outcome", string(rec.Outcome)).Str("transfer_id", rec.TransferID).Msg("payout record failed")
	} else if !inserted {
		log.Warn().Str("event_id", r.ev.ID).Str("user_id", rec.RecipientUserID).Str("kind", string(rec.Kind)).Msg("payout already recorded")
		return Payout{}, false
	}
	if rec.Outcome == store.OutcomeConfirmed {
		metricPayoutConfirmed.Add(1)
		r.spent += rec.Amount
		if err := r.engine.repo.IncrementBudgetSpent(ctx, r.ev.TenantID, rec.Amount); err != nil {
			log.Error().Err(err).Str("tenant_id", r.ev.TenantID).Int64("amount", rec.Amount).Msg("budget_spent increment failed")
		}
	} else {
		metricPayoutFailed.Add(1)
	}
	return payoutFromRecord(rec), true
}

func (r *run) finish(ctx context.Context, res *Result) error {
	ok, err := r.engine.repo.FinishSettlement(ctx, store.SettlementOutcome{
		EventID:         r.ev.ID,
		Status:          res.Status,
		WinningOptionID: res.WinningOptionID,
		ConversionRate:  res.Rate,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("finish settlement %s: %w", r.ev.ID, store.ErrInvalidState)
	}
	return nil
}
