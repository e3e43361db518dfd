package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/recurrence"
)

// EventParams holds the user-editable fields of a calendar event.
type EventParams struct {
	Title           string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	AllDay          bool
	Location        string
	Recurrence      *recurrence.Rule
	ReminderMinutes *int
}

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, uid, title, description, start_time, end_time, all_day, location, recurrence_rule, reminder_minutes, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var allDayInt int
	var rule string
	var reminder sql.NullInt64

	if err := scanner.Scan(&e.ID, &e.UID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &allDayInt, &e.Location, &rule, &reminder, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	e.AllDay = allDayInt != 0
	if reminder.Valid {
		m := int(reminder.Int64)
		e.ReminderMinutes = &m
	}
	if rule != "" {
		r, err := recurrence.Parse(rule)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		e.Recurrence = &r
	}
	return &e, nil
}

// args converts params into column values shared by insert and update.
func (p EventParams) args() ([]any, error) {
	var allDayInt int
	if p.AllDay {
		allDayInt = 1
	}

	var rule string
	if p.Recurrence != nil {
		if err := p.Recurrence.Validate(); err != nil {
			return nil, err
		}
		rule = p.Recurrence.String()
	}

	var reminder sql.NullInt64
	if p.ReminderMinutes != nil {
		reminder = sql.NullInt64{Int64: int64(*p.ReminderMinutes), Valid: true}
	}

	return []any{p.Title, p.Description, p.StartTime.UTC(), p.EndTime.UTC(), allDayInt, p.Location, rule, reminder}, nil
}

func (s *EventStore) Create(p EventParams) (*model.CalendarEvent, error) {
	args, err := p.args()
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO calendar_events (uid, title, description, start_time, end_time, all_day, location, recurrence_rule, reminder_minutes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append([]any{uuid.NewString()}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.CalendarEvent, error) {
	e, err := scanEvent(s.db.QueryRow(`SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}
	return e, nil
}

// ListByDateRange returns one-off events overlapping [start, end) and every
// recurring event anchored before end. Recurring events still need expanding.
func (s *EventStore) ListByDateRange(start, end time.Time) ([]model.CalendarEvent, error) {
	return s.list(
		`SELECT `+eventColumns+`
		 FROM calendar_events
		 WHERE (recurrence_rule = '' AND start_time < ? AND end_time > ?)
		    OR (recurrence_rule != '' AND start_time < ?)
		 ORDER BY all_day DESC, start_time ASC`,
		end.UTC(), start.UTC(), end.UTC(),
	)
}

// List returns every event ordered by start time.
func (s *EventStore) List() ([]model.CalendarEvent, error) {
	return s.list(`SELECT ` + eventColumns + ` FROM calendar_events ORDER BY start_time ASC`)
}

// ListWithReminders returns events that have a reminder lead time set.
func (s *EventStore) ListWithReminders() ([]model.CalendarEvent, error) {
	return s.list(`SELECT ` + eventColumns + ` FROM calendar_events WHERE reminder_minutes IS NOT NULL ORDER BY start_time ASC`)
}

func (s *EventStore) list(query string, args ...any) ([]model.CalendarEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(id int64, p EventParams) (*model.CalendarEvent, error) {
	args, err := p.args()
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE calendar_events
		 SET title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?, location = ?, recurrence_rule = ?, reminder_minutes = ?
		 WHERE id = ?`,
		append(args, id)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update calendar event: %w", err)
	}

	return s.GetByID(id)
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec("DELETE FROM calendar_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
