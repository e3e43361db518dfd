package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/cadence/internal/config"
	"github.com/dukerupert/cadence/internal/database"
	"github.com/dukerupert/cadence/internal/handler"
	"github.com/dukerupert/cadence/internal/middleware"
	"github.com/dukerupert/cadence/internal/reminder"
	"github.com/dukerupert/cadence/internal/store"
	ws "github.com/dukerupert/cadence/internal/websocket"
)

type Server struct {
	db             *sql.DB
	cfg            *config.Config
	hub            *ws.Hub
	calendarEventH *handler.CalendarEventHandler
	feedH          *handler.FeedHandler
	reminderH      *handler.ReminderHandler
	rateLimiter    *middleware.RateLimiter
	scheduler      *reminder.Scheduler
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	loc := cfg.Location()

	eventStore := store.NewEventStore(db)
	reminderStore := store.NewReminderStore(db)

	calendarEventH := handler.NewCalendarEventHandler(eventStore, hub, loc, cfg.ExpandLimit, logger.With("component", "calendar"))

	scheduler := reminder.NewScheduler(reminder.Config{
		Schedule:        cfg.ReminderSchedule,
		CleanupSchedule: cfg.CleanupSchedule,
		Retention:       time.Duration(cfg.ReminderRetentionDays) * 24 * time.Hour,
		Location:        loc,
	}, eventStore, reminderStore, reminder.NewHubNotifier(hub), logger.With("component", "reminder"))

	return &Server{
		db:             db,
		cfg:            cfg,
		hub:            hub,
		calendarEventH: calendarEventH,
		feedH:          handler.NewFeedHandler(calendarEventH, cfg.CalendarName),
		reminderH:      handler.NewReminderHandler(calendarEventH, reminderStore),
		rateLimiter:    middleware.NewRateLimiter(),
		scheduler:      scheduler,
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Scheduler returns the reminder scheduler.
func (s *Server) Scheduler() *reminder.Scheduler {
	return s.scheduler
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /calendar.ics", s.feedH.ICS)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.cfg.AllowedOrigins...))

	// Calendar event API routes
	mux.HandleFunc("POST /api/events", s.rateLimitedHandler(s.calendarEventH.Create))
	mux.HandleFunc("GET /api/events", s.calendarEventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.calendarEventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.rateLimitedHandler(s.calendarEventH.Update))
	mux.HandleFunc("DELETE /api/events/{id}", s.rateLimitedHandler(s.calendarEventH.Delete))
	mux.HandleFunc("GET /api/events/{id}/occurrences", s.calendarEventH.Occurrences)
	mux.HandleFunc("GET /api/events/{id}/next", s.calendarEventH.Next)
	mux.HandleFunc("GET /api/events/{id}/reminders", s.reminderH.ListSent)

	// Recurrence preview for the event form
	mux.HandleFunc("POST /api/recurrence/preview", s.rateLimitedHandler(s.calendarEventH.Preview))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"websocket": s.hub.Stats(),
	}
	code := http.StatusOK

	version, err := database.SchemaVersion(s.db)
	if err != nil {
		s.logger.Error("health check", "error", err)
		body["status"] = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		body["schema_version"] = version
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.cfg.WriteRateLimit, time.Minute)
	return rl(h).ServeHTTP
}
