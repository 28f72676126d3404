package httptransport

import (
	"encoding/json"
	"net/http"

	appevents "event-settlement/internal/app/events"

	"github.com/go-chi/chi/v5"
)

type EventHandlers struct {
	svc *appevents.Service
}

func NewEventHandlers(svc *appevents.Service) *EventHandlers {
	return &EventHandlers{svc: svc}
}

type optionRequest struct {
	OptionID string `json:"option_id"`
}

type payoutAddressRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

func (h *EventHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.svc.ListEvents(r.Context(), chi.URLParam(r, "tenant_id"), r.URL.Query().Get("status"), limit, offset, false)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *EventHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"), false)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *EventHandlers) Result() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Result(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type entryAction func(r *http.Request, tenantID, eventID, userID, optionID string) (*appevents.EntryResponse, error)

// entryHandler decodes the optional option_id body and runs fn for the
// caller's user.
func (h *EventHandlers) entryHandler(fn entryAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserFromContext(r.Context())
		var req optionRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		resp, err := fn(r, chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"), userID, req.OptionID)
		if err != nil {
			metricEntryErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *EventHandlers) Join() http.HandlerFunc {
	return h.entryHandler(func(r *http.Request, tenantID, eventID, userID, optionID string) (*appevents.EntryResponse, error) {
		metricJoinTotal.Add(1)
		return h.svc.Join(r.Context(), tenantID, eventID, userID, optionID)
	})
}

func (h *EventHandlers) SelectSlot() http.HandlerFunc {
	return h.entryHandler(func(r *http.Request, tenantID, eventID, userID, optionID string) (*appevents.EntryResponse, error) {
		return h.svc.SelectSlot(r.Context(), tenantID, eventID, userID, optionID)
	})
}

func (h *EventHandlers) Commit() http.HandlerFunc {
	return h.entryHandler(func(r *http.Request, tenantID, eventID, userID, _ string) (*appevents.EntryResponse, error) {
		metricCommitTotal.Add(1)
		return h.svc.Commit(r.Context(), tenantID, eventID, userID)
	})
}

func (h *EventHandlers) Vote() http.HandlerFunc {
	return h.entryHandler(func(r *http.Request, tenantID, eventID, userID, optionID string) (*appevents.EntryResponse, error) {
		metricVoteTotal.Add(1)
		return h.svc.Vote(r.Context(), tenantID, eventID, userID, optionID)
	})
}

func (h *EventHandlers) Entry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserFromContext(r.Context())
		resp, err := h.svc.GetEntry(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *EventHandlers) SetPayoutAddress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserFromContext(r.Context())
		if userID != chi.URLParam(r, "user_id") {
			WriteHTTPError(w, http.StatusForbidden, "forbidden")
			return
		}
		var req payoutAddressRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.SetPayoutAddress(r.Context(), chi.URLParam(r, "tenant_id"), userID, req.Address, req.Network)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *EventHandlers) GetPayoutAddress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserFromContext(r.Context())
		if userID != chi.URLParam(r, "user_id") {
			WriteHTTPError(w, http.StatusForbidden, "forbidden")
			return
		}
		resp, err := h.svc.GetPayoutAddress(r.Context(), chi.URLParam(r, "tenant_id"), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
