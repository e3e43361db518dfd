package handler

import (
	"net/http"

	"github.com/dukerupert/cadence/internal/store"
)

type ReminderHandler struct {
	events    *CalendarEventHandler
	reminders *store.ReminderStore
}

func NewReminderHandler(events *CalendarEventHandler, reminders *store.ReminderStore) *ReminderHandler {
	return &ReminderHandler{events: events, reminders: reminders}
}

// ListSent returns the reminders already delivered for an event.
func (h *ReminderHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.events.load(w, r)
	if !ok {
		return
	}

	sent, err := h.reminders.ListSent(event.ID)
	if err != nil {
		h.events.logger.Error("list sent reminders", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	writeJSON(w, http.StatusOK, sent)
}
