package events

import (
	"errors"
	"net/http"

	"event-settlement/internal/settlement"
	"event-settlement/internal/store"
)

var (
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrEventNotFound     = errors.New("event_not_found")
	ErrEntryNotFound     = errors.New("entry_not_found")
	ErrInvalidOption     = errors.New("invalid_option")
	ErrWrongKind         = errors.New("wrong_event_kind")
	ErrEventNotDraft     = errors.New("event_not_draft")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrNoPayoutAddress   = errors.New("no_payout_address")
	ErrTreasuryNotFound  = errors.New("treasury_not_found")
	ErrSealerUnavailable = errors.New("treasury_sealer_unavailable")
	ErrAlreadyCommitted  = errors.New("already_committed")
	ErrSettlementRunning = errors.New("settlement_in_progress")
	ErrEventNotActive    = store.ErrEventNotActive
	ErrCapacityExceeded  = store.ErrCapacityExceeded
	ErrAlreadyJoined     = store.ErrAlreadyJoined
	ErrNotSettled        = settlement.ErrNotSettled
	ErrOracleUnavailable = settlement.ErrOracleUnavailable
)

// MapError turns a service error into an HTTP status and a stable error code.
func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrInvalidOption):
		return http.StatusBadRequest, "invalid_option"
	case errors.Is(err, ErrWrongKind):
		return http.StatusBadRequest, "wrong_event_kind"
	case errors.Is(err, ErrEventNotFound):
		return http.StatusNotFound, "event_not_found"
	case errors.Is(err, ErrEntryNotFound):
		return http.StatusNotFound, "entry_not_found"
	case errors.Is(err, ErrTreasuryNotFound):
		return http.StatusNotFound, "treasury_not_found"
	case errors.Is(err, ErrNoPayoutAddress):
		return http.StatusUnprocessableEntity, "no_payout_address"
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, ErrCapacityExceeded):
		return http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, ErrEventNotActive):
		return http.StatusConflict, "event_not_active"
	case errors.Is(err, ErrEventNotDraft):
		return http.StatusConflict, "event_not_draft"
	case errors.Is(err, ErrAlreadyJoined):
		return http.StatusConflict, "already_joined"
	case errors.Is(err, ErrAlreadyCommitted):
		return http.StatusConflict, "already_committed"
	case errors.Is(err, ErrSettlementRunning):
		return http.StatusConflict, "settlement_in_progress"
	case errors.Is(err, ErrNotSettled):
		return http.StatusConflict, "event_not_settled"
	case errors.Is(err, ErrOracleUnavailable):
		return http.StatusServiceUnavailable, "oracle_unavailable"
	case errors.Is(err, ErrSealerUnavailable):
		return http.StatusServiceUnavailable, "treasury_sealer_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
