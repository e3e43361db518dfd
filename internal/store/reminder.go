package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
)

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

// RecordSent records that a reminder for one occurrence was delivered.
func (s *ReminderStore) RecordSent(eventID int64, occurrenceStart time.Time, leadTime int) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sent_reminders (event_id, occurrence_start, lead_time_minutes)
		 VALUES (?, ?, ?)`,
		eventID, occurrenceStart.UTC(), leadTime,
	)
	if err != nil {
		return fmt.Errorf("record sent reminder: %w", err)
	}
	return nil
}

// WasSent checks if a reminder for the occurrence was already delivered.
func (s *ReminderStore) WasSent(eventID int64, occurrenceStart time.Time, leadTime int) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sent_reminders
		 WHERE event_id = ? AND occurrence_start = ? AND lead_time_minutes = ?`,
		eventID, occurrenceStart.UTC(), leadTime,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent reminder: %w", err)
	}
	return count > 0, nil
}

// ListSent returns the reminders delivered for an event, newest occurrence first.
func (s *ReminderStore) ListSent(eventID int64) ([]model.SentReminder, error) {
	rows, err := s.db.Query(
		`SELECT id, event_id, occurrence_start, lead_time_minutes, sent_at
		 FROM sent_reminders WHERE event_id = ?
		 ORDER BY occurrence_start DESC, lead_time_minutes DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sent reminders: %w", err)
	}
	defer rows.Close()

	reminders := []model.SentReminder{}
	for rows.Next() {
		var r model.SentReminder
		if err := rows.Scan(&r.ID, &r.EventID, &r.OccurrenceStart, &r.LeadTimeMinutes, &r.SentAt); err != nil {
			return nil, fmt.Errorf("scan sent reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// CleanupSent deletes sent_reminders recorded before the given time.
func (s *ReminderStore) CleanupSent(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sent_reminders WHERE sent_at < ?`, before.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("cleanup sent reminders: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
