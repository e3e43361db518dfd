package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Port      string `yaml:"port"`
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Timezone is the IANA zone used for date-only inputs (e.g. "America/Denver").
	Timezone string `yaml:"timezone"`

	// CalendarName is the X-WR-CALNAME of the iCalendar feed.
	CalendarName string `yaml:"calendar_name"`

	// ReminderSchedule and CleanupSchedule are cron specs.
	ReminderSchedule string `yaml:"reminder_schedule"`
	CleanupSchedule  string `yaml:"cleanup_schedule"`

	// ExpandLimit caps occurrences generated per event for calendar views.
	ExpandLimit int `yaml:"expand_limit"`

	ReminderRetentionDays int `yaml:"reminder_retention_days"`

	// WriteRateLimit is the number of mutating API requests allowed per
	// client per minute.
	WriteRateLimit int `yaml:"write_rate_limit"`

	// AllowedOrigins are websocket origin patterns; empty accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                  "8080",
		DBPath:                "cadence.db",
		LogLevel:              "info",
		LogFormat:             "text",
		Timezone:              "UTC",
		CalendarName:          "Cadence",
		ReminderSchedule:      "@every 1m",
		CleanupSchedule:       "@daily",
		ExpandLimit:           500,
		ReminderRetentionDays: 30,
		WriteRateLimit:        60,
	}
}

// Normalize fills zero values from Default so partial files still work.
func (c *Config) Normalize() {
	d := Default()
	if c.Port == "" {
		c.Port = d.Port
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.CalendarName == "" {
		c.CalendarName = d.CalendarName
	}
	if c.ReminderSchedule == "" {
		c.ReminderSchedule = d.ReminderSchedule
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = d.CleanupSchedule
	}
	if c.ExpandLimit <= 0 {
		c.ExpandLimit = d.ExpandLimit
	}
	if c.ReminderRetentionDays <= 0 {
		c.ReminderRetentionDays = d.ReminderRetentionDays
	}
	if c.WriteRateLimit <= 0 {
		c.WriteRateLimit = d.WriteRateLimit
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads the YAML file at path (a missing file yields defaults), applies
// CADENCE_* environment overrides, and normalizes the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(cfg, os.Getenv)
	cfg.Normalize()

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	overrides := map[string]*string{
		"CADENCE_PORT":       &cfg.Port,
		"CADENCE_DB_PATH":    &cfg.DBPath,
		"CADENCE_LOG_LEVEL":  &cfg.LogLevel,
		"CADENCE_LOG_FORMAT": &cfg.LogFormat,
		"CADENCE_TIMEZONE":   &cfg.Timezone,
	}
	for key, dst := range overrides {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
}
