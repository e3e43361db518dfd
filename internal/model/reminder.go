package model

import "time"

type SentReminder struct {
	ID              int64     `json:"id"`
	EventID         int64     `json:"event_id"`
	OccurrenceStart time.Time `json:"occurrence_start"`
	LeadTimeMinutes int       `json:"lead_time_minutes"`
	SentAt          time.Time `json:"sent_at"`
}
