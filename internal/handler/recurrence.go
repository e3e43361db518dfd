package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dukerupert/cadence/internal/ics"
	"github.com/dukerupert/cadence/internal/recurrence"
)

type previewRequest struct {
	StartDate  string            `json:"start_date"`
	Recurrence recurrenceRequest `json:"recurrence"`
	MaxCount   int               `json:"max_count"`
}

// Preview expands an unsaved rule so the event form can show the label and
// upcoming dates before the event is created.
func (h *CalendarEventHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	start, _, err := parseFlexibleTime(req.StartDate, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be RFC3339 or YYYY-MM-DD format")
		return
	}

	if req.MaxCount < 0 || req.MaxCount > h.expandLimit {
		writeError(w, http.StatusBadRequest, "max_count out of range")
		return
	}

	rule, err := req.Recurrence.rule(h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occs, err := recurrence.GenerateOccurrences(start, *rule, req.MaxCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, occurrencesResponse{Label: rule.Label(), Occurrences: occs})
}

type FeedHandler struct {
	events       *CalendarEventHandler
	calendarName string
}

func NewFeedHandler(events *CalendarEventHandler, calendarName string) *FeedHandler {
	return &FeedHandler{events: events, calendarName: calendarName}
}

// ICS serves every event as an iCalendar feed for subscription by other
// calendar apps.
func (h *FeedHandler) ICS(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.eventStore.List()
	if err != nil {
		h.events.logger.Error("list events for feed", "error", err)
		http.Error(w, "failed to build calendar", http.StatusInternalServerError)
		return
	}

	for i := range events {
		events[i].StartTime = events[i].StartTime.In(h.events.loc)
		events[i].EndTime = events[i].EndTime.In(h.events.loc)
	}

	body, err := ics.Serialize(h.calendarName, events, h.events.expandLimit, time.Now())
	if err != nil {
		h.events.logger.Error("serialize feed", "error", err)
		http.Error(w, "failed to build calendar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.Write([]byte(body))
}
