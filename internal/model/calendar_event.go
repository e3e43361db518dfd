package model

import (
	"time"

	"github.com/dukerupert/cadence/internal/recurrence"
)

type CalendarEvent struct {
	ID              int64            `json:"id"`
	UID             string           `json:"uid"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	AllDay          bool             `json:"all_day"`
	Location        string           `json:"location"`
	Recurrence      *recurrence.Rule `json:"recurrence"`
	ReminderMinutes *int             `json:"reminder_minutes"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Duration is the length of every occurrence of the event.
func (e CalendarEvent) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Occurrence is one concrete instance of an event placed on the calendar grid.
type Occurrence struct {
	EventID int64     `json:"event_id"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AllDay  bool      `json:"all_day"`
}
