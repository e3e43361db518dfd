package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/recurrence"
	"github.com/dukerupert/cadence/internal/store"
	"github.com/dukerupert/cadence/internal/websocket"
)

type CalendarEventHandler struct {
	eventStore  *store.EventStore
	hub         *websocket.Hub
	loc         *time.Location
	expandLimit int
	logger      *slog.Logger
}

func NewCalendarEventHandler(es *store.EventStore, hub *websocket.Hub, loc *time.Location, expandLimit int, logger *slog.Logger) *CalendarEventHandler {
	return &CalendarEventHandler{eventStore: es, hub: hub, loc: loc, expandLimit: expandLimit, logger: logger}
}

func (h *CalendarEventHandler) broadcast(action string, id int64, extra map[string]any) {
	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage("calendar_event", action, id, extra))
	}
}

type recurrenceRequest struct {
	Frequency       string `json:"frequency"`
	Interval        int    `json:"interval"`
	EndDate         string `json:"end_date"`
	OccurrenceCount int    `json:"occurrence_count"`
}

// rule converts the form fields into a validated rule. A date-only end_date
// covers that whole day in loc.
func (req recurrenceRequest) rule(loc *time.Location) (*recurrence.Rule, error) {
	freq, err := recurrence.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, err
	}

	r := recurrence.Rule{Frequency: freq, Interval: req.Interval, Count: req.OccurrenceCount}
	if req.EndDate != "" {
		end, dateOnly, err := parseFlexibleTime(req.EndDate, loc)
		if err != nil {
			return nil, &recurrence.InvalidRuleError{Field: "end_date", Value: req.EndDate, Reason: "must be RFC3339 or YYYY-MM-DD format"}
		}
		if dateOnly {
			end = end.AddDate(0, 0, 1).Add(-time.Second)
		}
		r.EndDate = &end
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

type eventRequest struct {
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	StartTime       string             `json:"start_time"`
	EndTime         string             `json:"end_time"`
	AllDay          bool               `json:"all_day"`
	Location        string             `json:"location"`
	Recurrence      *recurrenceRequest `json:"recurrence"`
	ReminderMinutes *int               `json:"reminder_minutes"`
}

func (h *CalendarEventHandler) parseAndValidate(r *http.Request, w http.ResponseWriter) (store.EventParams, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return store.EventParams{}, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return store.EventParams{}, false
	}

	startTime, _, err := parseFlexibleTime(req.StartTime, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 or YYYY-MM-DD format")
		return store.EventParams{}, false
	}

	endTime, _, err := parseFlexibleTime(req.EndTime, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339 or YYYY-MM-DD format")
		return store.EventParams{}, false
	}

	if !startTime.Before(endTime) {
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
		return store.EventParams{}, false
	}

	if req.ReminderMinutes != nil && *req.ReminderMinutes < 0 {
		writeError(w, http.StatusBadRequest, "reminder_minutes must not be negative")
		return store.EventParams{}, false
	}

	p := store.EventParams{
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       startTime,
		EndTime:         endTime,
		AllDay:          req.AllDay,
		Location:        req.Location,
		ReminderMinutes: req.ReminderMinutes,
	}

	if req.Recurrence != nil {
		rule, err := req.Recurrence.rule(h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return store.EventParams{}, false
		}
		p.Recurrence = rule
	}

	return p, true
}

func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.parseAndValidate(r, w)
	if !ok {
		return
	}

	event, err := h.eventStore.Create(p)
	if err != nil {
		h.logger.Error("create calendar event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	h.broadcast("created", event.ID, nil)
	writeJSON(w, http.StatusCreated, h.withLabel(event))
}

type eventResponse struct {
	*model.CalendarEvent
	RecurrenceLabel string `json:"recurrence_label,omitempty"`
}

func (h *CalendarEventHandler) withLabel(e *model.CalendarEvent) eventResponse {
	resp := eventResponse{CalendarEvent: e}
	if e.Recurrence != nil {
		resp.RecurrenceLabel = e.Recurrence.Label()
	}
	return resp
}

// List returns the concrete occurrences of all events overlapping [start, end).
func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	start, _, err := parseFlexibleTime(startStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}

	end, _, err := parseFlexibleTime(endStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}

	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	events, err := h.eventStore.ListByDateRange(start, end)
	if err != nil {
		h.logger.Error("list calendar events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	occurrences := []model.Occurrence{}
	for _, e := range events {
		occs, err := h.expandInRange(e, start, end)
		if err != nil {
			h.logger.Error("expand calendar event", "event_id", e.ID, "error", err)
			continue
		}
		occurrences = append(occurrences, occs...)
	}

	slices.SortStableFunc(occurrences, func(a, b model.Occurrence) int {
		if a.AllDay != b.AllDay {
			if a.AllDay {
				return -1
			}
			return 1
		}
		return a.Start.Compare(b.Start)
	})

	writeJSON(w, http.StatusOK, occurrences)
}

// expandInRange places each occurrence of e that overlaps [start, end).
func (h *CalendarEventHandler) expandInRange(e model.CalendarEvent, start, end time.Time) ([]model.Occurrence, error) {
	anchor := e.StartTime.In(h.loc)
	dur := e.Duration()

	if e.Recurrence == nil {
		return []model.Occurrence{h.occurrence(e, anchor, dur)}, nil
	}

	// Widen the lower bound so occurrences already in progress at start count.
	// expandLimit caps occurrences per event within the range, not the walk.
	starts, err := recurrence.Between(anchor, *e.Recurrence, start.Add(-dur).Add(time.Nanosecond), end, h.expandLimit)
	if err != nil {
		return nil, err
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, h.occurrence(e, s, dur))
	}
	return out, nil
}

func (h *CalendarEventHandler) occurrence(e model.CalendarEvent, start time.Time, dur time.Duration) model.Occurrence {
	return model.Occurrence{
		EventID: e.ID,
		Title:   e.Title,
		Start:   start,
		End:     start.Add(dur),
		AllDay:  e.AllDay,
	}
}

// load fetches the event named by the {id} path value, writing the error
// response itself when it cannot.
func (h *CalendarEventHandler) load(w http.ResponseWriter, r *http.Request) (*model.CalendarEvent, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	event, err := h.eventStore.GetByID(id)
	if err != nil {
		h.logger.Error("get calendar event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil, false
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return event, true
}

func (h *CalendarEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.withLabel(event))
}

func (h *CalendarEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	p, ok := h.parseAndValidate(r, w)
	if !ok {
		return
	}

	event, err := h.eventStore.Update(existing.ID, p)
	if err != nil {
		h.logger.Error("update calendar event", "event_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	h.broadcast("updated", event.ID, nil)
	writeJSON(w, http.StatusOK, h.withLabel(event))
}

func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.eventStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete calendar event", "event_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	h.broadcast("deleted", existing.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

type occurrencesResponse struct {
	EventID     int64       `json:"event_id,omitempty"`
	Label       string      `json:"label"`
	Occurrences []time.Time `json:"occurrences"`
}

// Occurrences expands the event's rule from its anchor date. ?max caps the
// result (default recurrence.DefaultMaxCount).
func (h *CalendarEventHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	event, ok := h.load(w, r)
	if !ok {
		return
	}

	maxCount, ok := h.parseMax(w, r.URL.Query().Get("max"))
	if !ok {
		return
	}

	anchor := event.StartTime.In(h.loc)
	if event.Recurrence == nil {
		writeJSON(w, http.StatusOK, occurrencesResponse{EventID: event.ID, Occurrences: []time.Time{anchor}})
		return
	}

	occs, err := recurrence.GenerateOccurrences(anchor, *event.Recurrence, maxCount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, occurrencesResponse{EventID: event.ID, Label: event.Recurrence.Label(), Occurrences: occs})
}

func (h *CalendarEventHandler) parseMax(w http.ResponseWriter, s string) (int, bool) {
	if s == "" {
		return recurrence.DefaultMaxCount, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > h.expandLimit {
		writeError(w, http.StatusBadRequest, "max must be between 1 and "+strconv.Itoa(h.expandLimit))
		return 0, false
	}
	return n, true
}

// Next returns the first occurrence strictly after ?after (default now).
func (h *CalendarEventHandler) Next(w http.ResponseWriter, r *http.Request) {
	event, ok := h.load(w, r)
	if !ok {
		return
	}

	after := time.Now()
	if s := r.URL.Query().Get("after"); s != "" {
		t, _, err := parseFlexibleTime(s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be RFC3339 or YYYY-MM-DD format")
			return
		}
		after = t
	}

	anchor := event.StartTime.In(h.loc)
	next, found := anchor, anchor.After(after)
	if event.Recurrence != nil {
		var err error
		next, found, err = recurrence.NextAfter(anchor, *event.Recurrence, after)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	if !found {
		writeError(w, http.StatusNotFound, "no upcoming occurrence")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"event_id": event.ID, "next": next})
}
