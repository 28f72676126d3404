package events

import (
	"context"
	"errors"
	"strings"

	"event-settlement/internal/settlement"
	"event-settlement/internal/store"

	"github.com/rs/zerolog/log"
)

// Join enters userID into an event. Vote entries and house wagers take a
// capacity slot right away; for pot wagers joining only selects a slot and
// the entry counts once Commit succeeds.
func (s *Service) Join(ctx context.Context, tenantID, eventID, userID, optionID string) (*EntryResponse, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	userID, optionID = strings.TrimSpace(userID), strings.TrimSpace(optionID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if !ev.CountsAtJoin() {
		return s.SelectSlot(ctx, tenantID, eventID, userID, optionID)
	}
	if ev.Kind == store.KindWager && optionID == "" {
		return nil, ErrInvalidOption
	}
	return s.join(ctx, ev, userID, optionID)
}

func (s *Service) join(ctx context.Context, ev *store.Event, userID, optionID string) (*EntryResponse, error) {
	if ev.Status != store.StatusActive {
		return nil, ErrEventNotActive
	}
	if optionID != "" {
		if err := s.validOption(ctx, ev.ID, optionID); err != nil {
			return nil, err
		}
	}
	entry, count, err := s.repo.JoinEvent(ctx, store.JoinParams{
		EventID:       ev.ID,
		UserID:        userID,
		OptionID:      optionID,
		PayoutAddress: s.snapshotAddress(ctx, ev.TenantID, userID),
		Counted:       ev.CountsAtJoin(),
	})
	if err != nil {
		return nil, mapEntryErr(err)
	}
	resp := &EntryResponse{Entry: entryView(*entry), ParticipantCount: count}
	if ev.CountsAtJoin() {
		resp.Settlement = s.afterCount(ctx, ev, count)
	}
	return resp, nil
}

// SelectSlot is phase one of a pot wager: pick or change a slot, no funds.
func (s *Service) SelectSlot(ctx context.Context, tenantID, eventID, userID, optionID string) (*EntryResponse, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	userID, optionID = strings.TrimSpace(userID), strings.TrimSpace(optionID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if ev.Kind != store.KindWager || ev.Mode != store.ModePot {
		return nil, ErrWrongKind
	}
	if optionID == "" {
		return nil, ErrInvalidOption
	}
	existing, err := s.repo.GetEntry(ctx, ev.ID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return s.join(ctx, ev, userID, optionID)
	}
	if err != nil {
		return nil, err
	}
	if existing.FeeState != store.FeeNone {
		return nil, ErrAlreadyCommitted
	}
	if err := s.validOption(ctx, ev.ID, optionID); err != nil {
		return nil, err
	}
	if err := s.repo.SetEntryOption(ctx, ev.ID, userID, optionID); err != nil {
		return nil, mapEntryErr(err)
	}
	return s.entryResponse(ctx, ev.ID, userID)
}

// Commit is phase two of a pot wager. The balance check is best effort: if
// the ledger cannot answer, the commitment goes ahead.
func (s *Service) Commit(ctx context.Context, tenantID, eventID, userID string) (*EntryResponse, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if ev.Kind != store.KindWager || ev.Mode != store.ModePot {
		return nil, ErrWrongKind
	}
	if ev.Status != store.StatusActive {
		return nil, ErrEventNotActive
	}
	entry, err := s.repo.GetEntry(ctx, ev.ID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	// A pending entry is either mid-commit or was abandoned by a crashed
	// request; MarkEntryPending tells the two apart.
	if entry.FeeState == store.FeeCommitted {
		return nil, ErrAlreadyCommitted
	}
	if entry.ChosenOptionID == "" {
		return nil, ErrInvalidOption
	}
	address, network := s.participantAddress(ctx, ev.TenantID, *entry)
	if address == "" {
		return nil, ErrNoPayoutAddress
	}

	ok, err := s.repo.MarkEntryPending(ctx, ev.ID, userID, s.now().Add(-pendingTimeout))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyCommitted
	}
	if err := s.checkBalance(ctx, ev, address, network); err != nil {
		s.revert(ctx, ev.ID, userID)
		return nil, err
	}
	count, err := s.repo.CommitEntry(ctx, ev.ID, userID, ev.EntryFee)
	if err != nil {
		s.revert(ctx, ev.ID, userID)
		if errors.Is(err, store.ErrInvalidState) {
			return nil, ErrAlreadyCommitted
		}
		return nil, mapEntryErr(err)
	}
	log.Info().Str("event_id", ev.ID).Str("user_id", userID).Int64("amount", ev.EntryFee).Int("participants", count).Msg("entry_committed")

	resp, err := s.entryResponse(ctx, ev.ID, userID)
	if err != nil {
		return nil, err
	}
	resp.ParticipantCount = count
	resp.Settlement = s.afterCount(ctx, ev, count)
	return resp, nil
}

func (s *Service) checkBalance(ctx context.Context, ev *store.Event, address, network string) error {
	if s.ledger == nil {
		return nil
	}
	fee, ok := s.nativeFee(ctx, ev, network)
	if !ok {
		return nil
	}
	bctx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()
	balance, err := s.ledger.GetBalance(bctx, address, network)
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("balance pre-check skipped")
		return nil
	}
	if balance < fee {
		return ErrInsufficientFunds
	}
	return nil
}

func (s *Service) revert(ctx context.Context, eventID, userID string) {
	if err := s.repo.RevertEntryPending(context.WithoutCancel(ctx), eventID, userID); err != nil {
		log.Error().Err(err).Str("event_id", eventID).Str("user_id", userID).Msg("revert pending entry failed")
	}
}

// Vote records or changes userID's choice, joining the event first if needed.
func (s *Service) Vote(ctx context.Context, tenantID, eventID, userID, optionID string) (*EntryResponse, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	userID, optionID = strings.TrimSpace(userID), strings.TrimSpace(optionID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if ev.Kind != store.KindVote {
		return nil, ErrWrongKind
	}
	if optionID == "" {
		return nil, ErrInvalidOption
	}
	_, err = s.repo.GetEntry(ctx, ev.ID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return s.join(ctx, ev, userID, optionID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.validOption(ctx, ev.ID, optionID); err != nil {
		return nil, err
	}
	if err := s.repo.SetEntryOption(ctx, ev.ID, userID, optionID); err != nil {
		return nil, mapEntryErr(err)
	}
	return s.entryResponse(ctx, ev.ID, userID)
}

func (s *Service) GetEntry(ctx context.Context, tenantID, eventID, userID string) (*EntryResponse, error) {
	ev, err := s.event(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	return s.entryResponse(ctx, ev.ID, strings.TrimSpace(userID))
}

func (s *Service) entryResponse(ctx context.Context, eventID, userID string) (*EntryResponse, error) {
	entry, err := s.repo.GetEntry(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	ev, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &EntryResponse{Entry: entryView(*entry), ParticipantCount: ev.ParticipantCount}, nil
}

// afterCount fires the capacity trigger when count filled the event. The
// participant's request finishing early must not abandon settlement.
func (s *Service) afterCount(ctx context.Context, ev *store.Event, count int) *settlement.Result {
	if ev.MaxParticipants <= 0 || count < ev.MaxParticipants || s.engine == nil {
		return nil
	}
	res, err := s.engine.Settle(context.WithoutCancel(ctx), ev.ID, settlement.TriggerCapacity)
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("capacity settlement failed")
		return nil
	}
	return res
}

func (s *Service) snapshotAddress(ctx context.Context, tenantID, userID string) string {
	a, err := s.repo.GetPayoutAddress(ctx, tenantID, userID)
	if err != nil {
		return ""
	}
	return a.Address
}

// participantAddress prefers the registry over the snapshot taken at join.
func (s *Service) participantAddress(ctx context.Context, tenantID string, entry store.Entry) (string, string) {
	network := ""
	if tr, err := s.repo.GetTreasury(ctx, tenantID); err == nil {
		network = tr.Network
	}
	if a, err := s.repo.GetPayoutAddress(ctx, tenantID, entry.UserID); err == nil && a.Address != "" {
		if a.Network != "" {
			network = a.Network
		}
		return a.Address, network
	}
	return entry.PayoutAddressSnapshot, network
}

func mapEntryErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrEventNotFound
	case errors.Is(err, store.ErrInvalidState):
		return ErrAlreadyCommitted
	default:
		return err
	}
}
