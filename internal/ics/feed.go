// Package ics renders calendar events as an RFC 5545 iCalendar feed.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/recurrence"
)

const (
	productID = "-//cadence//calendar feed//EN"
	dateTime  = "20060102T150405Z"
	dateOnly  = "20060102"
)

var endOfTime = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Build returns a calendar containing one VEVENT per event. Rules whose
// occurrences would roll over a month end are written as explicit RDATEs
// (all past dates plus at most expandLimit upcoming ones) because RRULE
// consumers skip those dates instead.
func Build(name string, events []model.CalendarEvent, expandLimit int, now time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)

	for _, e := range events {
		ve := cal.AddEvent(e.UID)
		ve.SetDtStampTime(now)
		ve.SetCreatedTime(e.CreatedAt)
		ve.SetModifiedAt(e.UpdatedAt)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}

		if e.AllDay {
			ve.SetAllDayStartAt(e.StartTime)
			ve.SetAllDayEndAt(e.EndTime)
		} else {
			ve.SetStartAt(e.StartTime)
			ve.SetEndAt(e.EndTime)
		}

		if e.Recurrence == nil {
			continue
		}
		if err := addRecurrence(ve, e, expandLimit, now); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
	}

	return cal, nil
}

// Serialize builds the feed and returns its text form.
func Serialize(name string, events []model.CalendarEvent, expandLimit int, now time.Time) (string, error) {
	cal, err := Build(name, events, expandLimit, now)
	if err != nil {
		return "", err
	}
	return cal.Serialize(), nil
}

func addRecurrence(ve *ical.VEvent, e model.CalendarEvent, expandLimit int, now time.Time) error {
	rule := *e.Recurrence

	if !rollsOver(rule, e.StartTime) {
		rr, err := rule.RRule(e.StartTime)
		if err != nil {
			return err
		}
		ve.AddProperty(ical.ComponentPropertyRrule, rr.OrigOptions.RRuleString())
		return nil
	}

	occs, err := rollOverDates(e.StartTime, rule, expandLimit, now)
	if err != nil {
		return err
	}
	if len(occs) < 2 {
		return nil
	}
	layout, params := dateTime, []ical.PropertyParameter(nil)
	if e.AllDay {
		layout, params = dateOnly, []ical.PropertyParameter{ical.WithValue(string(ical.ValueDataTypeDate))}
	}

	dates := make([]string, 0, len(occs)-1)
	for _, t := range occs[1:] {
		if !e.AllDay {
			t = t.UTC()
		}
		dates = append(dates, t.Format(layout))
	}
	ve.AddProperty(ical.ComponentPropertyRdate, strings.Join(dates, ","), params...)
	return nil
}

// rollOverDates lists every occurrence up to now plus the next expandLimit
// after it, so old series still reach the present.
func rollOverDates(start time.Time, rule recurrence.Rule, expandLimit int, now time.Time) ([]time.Time, error) {
	past, err := recurrence.Between(start, rule, start, now, 0)
	if err != nil {
		return nil, err
	}
	upcoming, err := recurrence.Between(start, rule, now, endOfTime, expandLimit)
	if err != nil {
		return nil, err
	}
	return append(past, upcoming...), nil
}

// rollsOver reports whether stepping the rule from start can hit a day that
// does not exist in the target month.
func rollsOver(rule recurrence.Rule, start time.Time) bool {
	switch rule.Frequency {
	case recurrence.Monthly:
		return start.Day() > 28
	case recurrence.Yearly:
		return start.Month() == time.February && start.Day() == 29
	}
	return false
}
