package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/recurrence"
)

// Reminder is one due notification for one occurrence of an event.
type Reminder struct {
	EventID         int64
	Title           string
	OccurrenceStart time.Time
	LeadTimeMinutes int
}

// Notifier delivers due reminders.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// EventSource lists events that carry a reminder lead time.
type EventSource interface {
	ListWithReminders() ([]model.CalendarEvent, error)
}

// SentLog deduplicates reminders across ticks and restarts.
type SentLog interface {
	WasSent(eventID int64, occurrenceStart time.Time, leadTime int) (bool, error)
	RecordSent(eventID int64, occurrenceStart time.Time, leadTime int) error
	CleanupSent(before time.Time) (int64, error)
}

type Config struct {
	// Schedule and CleanupSchedule are cron specs, e.g. "@every 1m".
	Schedule        string
	CleanupSchedule string
	Retention       time.Duration

	// Location is the zone recurring events are expanded in, so a weekly
	// 09:00 event stays at 09:00 across DST changes. Nil means UTC.
	Location *time.Location
}

// Scheduler checks for due reminders on a cron schedule.
type Scheduler struct {
	mu       sync.Mutex
	events   EventSource
	sent     SentLog
	notifier Notifier
	cfg      Config
	cron     *cron.Cron
	cancel   context.CancelFunc
	now      func() time.Time
	logger   *slog.Logger
}

func NewScheduler(cfg Config, events EventSource, sent SentLog, notifier Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		events:   events,
		sent:     sent,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Start registers the cron jobs and begins running them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New()

	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.Tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("reminder schedule %q: %w", s.cfg.Schedule, err)
	}
	if s.cfg.CleanupSchedule != "" && s.cfg.Retention > 0 {
		if _, err := c.AddFunc(s.cfg.CleanupSchedule, s.Cleanup); err != nil {
			cancel()
			return fmt.Errorf("cleanup schedule %q: %w", s.cfg.CleanupSchedule, err)
		}
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	s.logger.Info("reminder scheduler started", "schedule", s.cfg.Schedule)
	return nil
}

// Stop cancels in-flight work and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
}

// Tick sends every reminder that is due and not yet sent. It returns the
// number of reminders delivered.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now().UTC()

	events, err := s.events.ListWithReminders()
	if err != nil {
		s.logger.Error("list events with reminders", "error", err)
		return 0
	}

	delivered := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return delivered
		}

		if s.cfg.Location != nil {
			event.StartTime = event.StartTime.In(s.cfg.Location)
		}
		r, due, err := dueReminder(event, now)
		if err != nil {
			s.logger.Error("compute next occurrence", "event_id", event.ID, "error", err)
			continue
		}
		if !due {
			continue
		}

		sent, err := s.sent.WasSent(r.EventID, r.OccurrenceStart, r.LeadTimeMinutes)
		if err != nil {
			s.logger.Error("check sent reminder", "event_id", event.ID, "error", err)
			continue
		}
		if sent {
			continue
		}

		if err := s.notifier.Notify(ctx, r); err != nil {
			s.logger.Error("send reminder", "event_id", event.ID, "error", err)
			continue
		}
		if err := s.sent.RecordSent(r.EventID, r.OccurrenceStart, r.LeadTimeMinutes); err != nil {
			s.logger.Error("record sent reminder", "event_id", event.ID, "error", err)
		}
		delivered++
		s.logger.Debug("reminder sent", "event_id", event.ID, "occurrence", r.OccurrenceStart)
	}
	return delivered
}

// Cleanup purges dedup rows older than the retention window.
func (s *Scheduler) Cleanup() {
	n, err := s.sent.CleanupSent(s.now().Add(-s.cfg.Retention))
	if err != nil {
		s.logger.Error("cleanup sent reminders", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("cleaned up sent reminders", "deleted", n)
	}
}

// dueReminder finds the next occurrence of event after now and reports
// whether now falls inside its reminder window.
func dueReminder(event model.CalendarEvent, now time.Time) (Reminder, bool, error) {
	if event.ReminderMinutes == nil {
		return Reminder{}, false, nil
	}
	lead := *event.ReminderMinutes

	next := event.StartTime
	if event.Recurrence != nil {
		t, ok, err := recurrence.NextAfter(event.StartTime, *event.Recurrence, now)
		if err != nil {
			return Reminder{}, false, err
		}
		if !ok {
			return Reminder{}, false, nil
		}
		next = t
	} else if !next.After(now) {
		return Reminder{}, false, nil
	}

	if next.Add(-time.Duration(lead) * time.Minute).After(now) {
		return Reminder{}, false, nil
	}

	return Reminder{
		EventID:         event.ID,
		Title:           event.Title,
		OccurrenceStart: next,
		LeadTimeMinutes: lead,
	}, true, nil
}
