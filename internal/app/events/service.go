package events

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"event-settlement/internal/ledger"
	"event-settlement/internal/oracle"
	"event-settlement/internal/payout"
	"event-settlement/internal/policy"
	"event-settlement/internal/settlement"
	"event-settlement/internal/store"
	"event-settlement/internal/treasury"

	"github.com/rs/zerolog/log"
)

const (
	maxListLimit    = 100
	maxVoteOptions  = 20
	minOptions      = 2
	maxWagerOptions = 6
	balanceTimeout  = 5 * time.Second
	// A commit claim older than this was abandoned mid-request.
	pendingTimeout = 2 * time.Minute
	// Keeps fee times participants and the house cut well inside int64.
	maxEventAmount = 1_000_000_000_000
	maxEventSize   = 1_000_000
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type Service struct {
	repo   store.Repository
	engine *settlement.Engine
	ledger ledger.Client
	oracle oracle.Client
	sealer treasury.Sealer
	now    func() time.Time
}

func NewService(repo store.Repository, engine *settlement.Engine, lc ledger.Client, oc oracle.Client, sealer treasury.Sealer) *Service {
	return &Service{repo: repo, engine: engine, ledger: lc, oracle: oc, sealer: sealer, now: time.Now}
}

func (s *Service) CreateEvent(ctx context.Context, tenantID string, in CreateEventInput) (*EventView, error) {
	ev, options, err := buildEvent(tenantID, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateEvent(ctx, ev, options); err != nil {
		return nil, err
	}
	created, err := s.repo.GetEvent(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.ListOptions(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	v := eventView(*created, stored, true)
	return &v, nil
}

func buildEvent(tenantID string, in CreateEventInput) (store.Event, []store.Option, error) {
	ev := store.Event{
		ID:              store.NewID(),
		TenantID:        strings.TrimSpace(tenantID),
		Kind:            store.EventKind(strings.ToLower(strings.TrimSpace(in.Kind))),
		Mode:            store.EventMode(strings.ToLower(strings.TrimSpace(in.Mode))),
		Title:           strings.TrimSpace(in.Title),
		PrizeAmount:     in.PrizeAmount,
		EntryFee:        in.EntryFee,
		Currency:        strings.ToUpper(strings.TrimSpace(in.Currency)),
		MinParticipants: in.MinParticipants,
		MaxParticipants: in.MaxParticipants,
		DurationSeconds: in.DurationSeconds,
	}
	if ev.Mode == "" {
		ev.Mode = store.ModeHouse
	}
	if ev.Currency == "" {
		ev.Currency = store.NativeCurrency
	}
	if ev.MinParticipants == 0 {
		ev.MinParticipants = 1
	}
	if ev.TenantID == "" || ev.Title == "" {
		return store.Event{}, nil, ErrInvalidRequest
	}
	if ev.Currency != store.NativeCurrency && !currencyPattern.MatchString(ev.Currency) {
		return store.Event{}, nil, ErrInvalidRequest
	}
	if ev.MinParticipants < 0 || ev.MaxParticipants < 0 || ev.DurationSeconds < 0 {
		return store.Event{}, nil, ErrInvalidRequest
	}
	if ev.PrizeAmount > maxEventAmount || ev.EntryFee > maxEventAmount || ev.MaxParticipants > maxEventSize {
		return store.Event{}, nil, ErrInvalidRequest
	}
	if ev.MaxParticipants > 0 && ev.MaxParticipants < ev.MinParticipants {
		return store.Event{}, nil, ErrInvalidRequest
	}
	// an event needs some way to close on its own
	if ev.DurationSeconds == 0 && ev.MaxParticipants == 0 {
		return store.Event{}, nil, ErrInvalidRequest
	}

	switch ev.Kind {
	case store.KindVote:
		if len(in.Options) < minOptions || len(in.Options) > maxVoteOptions {
			return store.Event{}, nil, ErrInvalidRequest
		}
	case store.KindWager:
		if len(in.Options) < minOptions || len(in.Options) > maxWagerOptions {
			return store.Event{}, nil, ErrInvalidRequest
		}
	default:
		return store.Event{}, nil, ErrInvalidRequest
	}
	switch ev.Mode {
	case store.ModeHouse:
		if ev.PrizeAmount <= 0 || ev.EntryFee != 0 {
			return store.Event{}, nil, ErrInvalidRequest
		}
	case store.ModePot:
		if ev.Kind != store.KindWager || ev.EntryFee <= 0 || ev.PrizeAmount != 0 {
			return store.Event{}, nil, ErrInvalidRequest
		}
	default:
		return store.Event{}, nil, ErrInvalidRequest
	}

	options := make([]store.Option, 0, len(in.Options))
	for i, o := range in.Options {
		label := strings.TrimSpace(o.Label)
		if label == "" {
			return store.Event{}, nil, ErrInvalidRequest
		}
		options = append(options, store.Option{
			ID:           store.NewID(),
			EventID:      ev.ID,
			DisplayOrder: i,
			Label:        label,
			ImageURL:     strings.TrimSpace(o.ImageURL),
		})
	}
	return ev, options, nil
}

// PublishEvent makes a draft live. The deadline counts from now, and every
// event gets a fresh draw seed whose hash is public from this point on.
func (s *Service) PublishEvent(ctx context.Context, tenantID, eventID string) (*EventView, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status != store.StatusDraft {
		return nil, ErrEventNotDraft
	}
	seed, seedHash, err := policy.NewSeed()
	if err != nil {
		return nil, err
	}
	published, err := s.repo.PublishEvent(ctx, ev.ID, s.now(), seed, seedHash)
	if err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return nil, ErrEventNotDraft
		}
		return nil, err
	}
	log.Info().Str("event_id", ev.ID).Str("tenant_id", ev.TenantID).Msg("event_published")
	return s.view(ctx, published, true)
}

func (s *Service) GetEvent(ctx context.Context, tenantID, eventID string, admin bool) (*EventView, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	if !admin && ev.Status == store.StatusDraft {
		return nil, ErrEventNotFound
	}
	return s.view(ctx, ev, admin)
}

func (s *Service) ListEvents(ctx context.Context, tenantID, status string, limit, offset int, admin bool) (*EventsResponse, error) {
	limit, offset = clampPage(limit, offset)
	st := store.EventStatus(strings.ToLower(strings.TrimSpace(status)))
	if !admin && st == store.StatusDraft {
		return &EventsResponse{Items: []EventView{}, Limit: limit, Offset: offset}, nil
	}
	items, err := s.repo.ListEvents(ctx, store.EventFilter{TenantID: tenantID, Status: st}, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]EventView, 0, len(items))
	for _, ev := range items {
		if !admin && ev.Status == store.StatusDraft {
			continue
		}
		out = append(out, eventView(ev, nil, admin))
	}
	return &EventsResponse{Items: out, Limit: limit, Offset: offset}, nil
}

func (s *Service) view(ctx context.Context, ev *store.Event, admin bool) (*EventView, error) {
	options, err := s.repo.ListOptions(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	v := eventView(*ev, options, admin)
	if ev.Kind == store.KindVote && (admin || ev.Status.Terminal()) {
		entries, err := s.repo.ListEntries(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		counts := map[string]int{}
		for _, e := range entries {
			if e.ChosenOptionID != "" {
				counts[e.ChosenOptionID]++
			}
		}
		for i := range v.Options {
			n := counts[v.Options[i].OptionID]
			v.Options[i].Votes = &n
		}
	}
	return &v, nil
}

// event loads eventID and hides events that belong to another tenant.
func (s *Service) event(ctx context.Context, tenantID, eventID string) (*store.Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, ErrInvalidRequest
	}
	ev, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if tenantID != "" && ev.TenantID != tenantID {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

func (s *Service) validOption(ctx context.Context, eventID, optionID string) error {
	options, err := s.repo.ListOptions(ctx, eventID)
	if err != nil {
		return err
	}
	for _, o := range options {
		if o.ID == optionID {
			return nil
		}
	}
	return ErrInvalidOption
}

func (s *Service) SetFavorite(ctx context.Context, tenantID, eventID, optionID string) (*EventView, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Kind != store.KindVote {
		return nil, ErrWrongKind
	}
	optionID = strings.TrimSpace(optionID)
	if optionID != "" {
		if err := s.validOption(ctx, ev.ID, optionID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetFavorite(ctx, ev.ID, optionID); err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return nil, ErrEventNotActive
		}
		return nil, err
	}
	updated, err := s.repo.GetEvent(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, updated, true)
}

// Settle is the manual trigger. When another trigger already finished the
// event its stored result is returned instead.
func (s *Service) Settle(ctx context.Context, tenantID, eventID string) (*settlement.Result, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Settle(ctx, ev.ID, settlement.TriggerManual)
	if err != nil || res != nil {
		return res, err
	}
	return s.Result(ctx, tenantID, ev.ID)
}

// Cancel soft-cancels a draft, or settles an active event straight to
// cancelled so committed pot fees are refunded.
func (s *Service) Cancel(ctx context.Context, tenantID, eventID string) (*settlement.Result, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	switch ev.Status {
	case store.StatusDraft:
		ok, err := s.repo.TransitionStatus(ctx, ev.ID, store.StatusDraft, store.StatusCancelled)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrEventNotDraft
		}
		log.Info().Str("event_id", ev.ID).Msg("draft_cancelled")
		return &settlement.Result{
			EventID:       ev.ID,
			Status:        store.StatusCancelled,
			WinnerUserIDs: []string{},
			Payouts:       []settlement.Payout{},
		}, nil
	case store.StatusActive:
		res, err := s.engine.Settle(ctx, ev.ID, settlement.TriggerCancel)
		if err != nil || res != nil {
			return res, err
		}
		return s.Result(ctx, tenantID, ev.ID)
	default:
		return nil, ErrEventNotActive
	}
}

func (s *Service) Result(ctx context.Context, tenantID, eventID string) (*settlement.Result, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status == store.StatusEnded {
		return nil, ErrSettlementRunning
	}
	return s.engine.Result(ctx, ev.ID)
}

func (s *Service) ListPayouts(ctx context.Context, tenantID, eventID, outcome string, limit, offset int) (*PayoutsResponse, error) {
	limit, offset = clampPage(limit, offset)
	f := store.PayoutFilter{TenantID: tenantID, EventID: strings.TrimSpace(eventID)}
	switch store.PayoutOutcome(outcome) {
	case "":
	case store.OutcomeConfirmed, store.OutcomeFailed:
		f.Outcome = store.PayoutOutcome(outcome)
	default:
		return nil, ErrInvalidRequest
	}
	items, err := s.repo.ListPayouts(ctx, f, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]PayoutView, 0, len(items))
	for _, p := range items {
		out = append(out, payoutView(p))
	}
	return &PayoutsResponse{Items: out, Limit: limit, Offset: offset}, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// nativeFee is the entry fee in ledger units, or false when it cannot be
// priced right now.
func (s *Service) nativeFee(ctx context.Context, ev *store.Event, network string) (int64, bool) {
	if !ev.IsFiat() {
		return ev.EntryFee, true
	}
	if s.oracle == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()
	rate, err := s.oracle.GetRate(ctx, oracle.Pair(ev.Currency, network))
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("fee pricing skipped")
		return 0, false
	}
	fee, err := payout.ToNative(ev.EntryFee, rate)
	if err != nil {
		return 0, false
	}
	return fee, true
}
