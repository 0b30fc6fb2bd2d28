package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/STRATINT/eventfeed/internal/moderation"
	"github.com/gorilla/mux"
)

// EventHandler serves candidate listing and moderation actions.
type EventHandler struct {
	events    EventReader
	moderator Moderator
	trust     *moderation.TrustRegistry
	logger    *slog.Logger
}

// EventView is a candidate annotated with its source trust.
type EventView struct {
	models.CandidateEvent
	TrustTier      string `json:"trust_tier,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// EventsResponse is the body of GET /api/events.
type EventsResponse struct {
	Events []EventView `json:"events"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// List handles GET /api/events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseEventFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	views := make([]EventView, 0, len(events))
	for _, e := range events {
		views = append(views, h.view(e))
	}
	writeJSON(w, http.StatusOK, EventsResponse{
		Events: views,
		Count:  len(views),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get handles GET /api/events/{id}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(event))
}

// Approve handles POST /api/events/{id}/approve.
func (h *EventHandler) Approve(w http.ResponseWriter, r *http.Request) {
	event, err := h.moderator.Approve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "approve", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(event))
}

// Reject handles POST /api/events/{id}/reject. The body is optional.
func (h *EventHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := ValidateReason(req.Reason); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.moderator.Reject(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		h.fail(w, "reject", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(event))
}

// Edit handles PATCH /api/events/{id}. Only whitelisted fields are accepted.
func (h *EventHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var fields moderation.EditFields
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ValidateEdit(fields); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.moderator.Edit(r.Context(), mux.Vars(r)["id"], fields)
	if err != nil {
		h.fail(w, "edit", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(event))
}

// Delete handles DELETE /api/events/{id}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.moderator.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) view(e models.CandidateEvent) EventView {
	v := EventView{CandidateEvent: e}
	if h.trust != nil {
		v.TrustTier = h.trust.Tier(e.Source).String()
		v.Recommendation = string(h.trust.Recommendation(e.Source))
	}
	return v
}

func (h *EventHandler) fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, moderation.ErrInvalidEdit):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("event action failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON rejects unknown fields so that only whitelisted columns can be
// edited.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
