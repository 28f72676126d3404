package httptransport

import (
	"encoding/json"
	"net/http"

	appevents "event-settlement/internal/app/events"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type AdminHandlers struct {
	svc *appevents.Service
	db  Pinger
}

func NewAdminHandlers(svc *appevents.Service, db Pinger) *AdminHandlers {
	return &AdminHandlers{svc: svc, db: db}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.db == nil {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		if err := h.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) CreateEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in appevents.CreateEventInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.CreateEvent(r.Context(), chi.URLParam(r, "tenant_id"), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (h *AdminHandlers) ListEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.svc.ListEvents(r.Context(), chi.URLParam(r, "tenant_id"), r.URL.Query().Get("status"), limit, offset, true)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) GetEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"), true)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) Publish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.PublishEvent(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) SetFavorite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req optionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.SetFavorite(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"), req.OptionID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) Settle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricManualSettleTotal.Add(1)
		eventID := chi.URLParam(r, "event_id")
		resp, err := h.svc.Settle(r.Context(), chi.URLParam(r, "tenant_id"), eventID)
		if err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("manual settle failed")
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if resp == nil {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) Payouts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.svc.ListPayouts(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "event_id"), r.URL.Query().Get("outcome"), limit, offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) GetTreasury() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.GetTreasury(r.Context(), chi.URLParam(r, "tenant_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) PutTreasury() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in appevents.TreasuryInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.UpsertTreasury(r.Context(), chi.URLParam(r, "tenant_id"), in)
		in.Secret = ""
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) ResetBudget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.ResetBudget(r.Context(), chi.URLParam(r, "tenant_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
