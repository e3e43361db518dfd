package store

import (
	"testing"
	"time"

	"github.com/dukerupert/cadence/internal/database"
	"github.com/dukerupert/cadence/internal/recurrence"
)

func setupTestDB(t *testing.T) *EventStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// modernc/sqlite may not honor the DSN param for :memory:
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEventStore(db)
}

func oneOff(title string, start time.Time) EventParams {
	return EventParams{Title: title, StartTime: start, EndTime: start.Add(time.Hour)}
}

func TestCreateAndGetByID(t *testing.T) {
	s := setupTestDB(t)

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	reminder := 15
	event, err := s.Create(EventParams{
		Title:           "Team Meeting",
		Description:     "Weekly sync",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Location:        "Conference Room",
		Recurrence:      &recurrence.Rule{Frequency: recurrence.Weekly, Interval: 2},
		ReminderMinutes: &reminder,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.Title != "Team Meeting" {
		t.Errorf("title = %q, want %q", event.Title, "Team Meeting")
	}
	if event.UID == "" {
		t.Error("uid should be generated")
	}
	if event.AllDay {
		t.Error("all_day should be false")
	}
	if !event.StartTime.Equal(start) {
		t.Errorf("start = %v, want %v", event.StartTime, start)
	}
	if event.Recurrence == nil || event.Recurrence.Frequency != recurrence.Weekly || event.Recurrence.Interval != 2 {
		t.Errorf("recurrence = %+v, want weekly/2", event.Recurrence)
	}
	if event.ReminderMinutes == nil || *event.ReminderMinutes != 15 {
		t.Errorf("reminder_minutes = %v, want 15", event.ReminderMinutes)
	}

	got, err := s.GetByID(event.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.UID != event.UID {
		t.Errorf("uid = %q, want %q", got.UID, event.UID)
	}
}

func TestCreateRejectsInvalidRule(t *testing.T) {
	s := setupTestDB(t)

	p := oneOff("Bad", time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC))
	p.Recurrence = &recurrence.Rule{Frequency: "biweekly"}
	if _, err := s.Create(p); !recurrence.IsInvalidRule(err) {
		t.Errorf("err = %v, want InvalidRuleError", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := setupTestDB(t)

	got, err := s.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestRecurrenceEndDateRoundTrip(t *testing.T) {
	s := setupTestDB(t)

	end := time.Date(2026, 6, 1, 23, 59, 59, 0, time.UTC)
	p := oneOff("Standup", time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC))
	p.Recurrence = &recurrence.Rule{Frequency: recurrence.Daily, EndDate: &end, Count: 20}

	event, err := s.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r := event.Recurrence
	if r == nil || r.EndDate == nil || !r.EndDate.Equal(end) || r.Count != 20 {
		t.Errorf("recurrence = %+v, want end %v count 20", r, end)
	}
}

func TestListByDateRange(t *testing.T) {
	s := setupTestDB(t)

	s.Create(oneOff("Day 1 Event", time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)))
	s.Create(oneOff("Day 2 Event", time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)))
	s.Create(oneOff("Day 3 Event", time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)))

	weekly := oneOff("Weekly", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	weekly.Recurrence = &recurrence.Rule{Frequency: recurrence.Weekly}
	s.Create(weekly)

	future := oneOff("Future Series", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	future.Recurrence = &recurrence.Rule{Frequency: recurrence.Daily}
	s.Create(future)

	rangeStart := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)
	events, err := s.ListByDateRange(rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	titles := map[string]bool{}
	for _, e := range events {
		titles[e.Title] = true
	}
	if len(events) != 3 || !titles["Day 1 Event"] || !titles["Day 2 Event"] || !titles["Weekly"] {
		t.Errorf("got %v, want Day 1, Day 2 and Weekly", titles)
	}
}

func TestUpdate(t *testing.T) {
	s := setupTestDB(t)

	event, _ := s.Create(oneOff("Original", time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)))

	p := oneOff("Updated", time.Date(2026, 2, 6, 14, 0, 0, 0, time.UTC))
	p.AllDay = true
	p.Recurrence = &recurrence.Rule{Frequency: recurrence.Monthly}
	updated, err := s.Update(event.ID, p)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Updated" || !updated.AllDay {
		t.Errorf("updated = %+v", updated)
	}
	if updated.UID != event.UID {
		t.Error("uid must not change on update")
	}
	if updated.Recurrence == nil || updated.Recurrence.Frequency != recurrence.Monthly {
		t.Errorf("recurrence = %+v, want monthly", updated.Recurrence)
	}

	// Clearing the rule turns the event back into a one-off.
	updated, err = s.Update(event.ID, oneOff("Updated", p.StartTime))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Recurrence != nil {
		t.Errorf("recurrence = %+v, want nil", updated.Recurrence)
	}
}

func TestDelete(t *testing.T) {
	s := setupTestDB(t)

	event, _ := s.Create(oneOff("To Delete", time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)))
	if err := s.Delete(event.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, _ := s.GetByID(event.ID)
	if got != nil {
		t.Error("event should be deleted")
	}
}

func TestListWithReminders(t *testing.T) {
	s := setupTestDB(t)

	s.Create(oneOff("No reminder", time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)))
	lead := 10
	p := oneOff("With reminder", time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC))
	p.ReminderMinutes = &lead
	s.Create(p)

	events, err := s.ListWithReminders()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].Title != "With reminder" {
		t.Errorf("got %+v, want only the reminder event", events)
	}
}
