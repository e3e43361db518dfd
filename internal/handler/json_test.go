package handler

import (
	"testing"
	"time"

	"github.com/dukerupert/cadence/internal/recurrence"
)

func TestParseFlexibleTime(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		in       string
		want     time.Time
		dateOnly bool
		wantErr  bool
	}{
		{"2024-03-10T09:00:00Z", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), false, false},
		{"2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, denver), true, false},
		{"03/10/2024", time.Time{}, false, true},
		{"", time.Time{}, false, true},
	}

	for _, tt := range tests {
		got, dateOnly, err := parseFlexibleTime(tt.in, denver)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseFlexibleTime(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseFlexibleTime(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) || dateOnly != tt.dateOnly {
			t.Errorf("parseFlexibleTime(%q) = %v, %v; want %v, %v", tt.in, got, dateOnly, tt.want, tt.dateOnly)
		}
	}
}

func TestRecurrenceRequestRule(t *testing.T) {
	req := recurrenceRequest{Frequency: "Weekly", Interval: 2, EndDate: "2024-06-30"}
	rule, err := req.rule(time.UTC)
	if err != nil {
		t.Fatalf("rule: %v", err)
	}
	if rule.Frequency != recurrence.Weekly || rule.Interval != 2 {
		t.Errorf("rule = %+v", rule)
	}
	if want := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC); !rule.EndDate.Equal(want) {
		t.Errorf("end = %v, want %v", rule.EndDate, want)
	}

	bad := []recurrenceRequest{
		{Frequency: "fortnightly"},
		{Frequency: "daily", Interval: -1},
		{Frequency: "daily", OccurrenceCount: -3},
		{Frequency: "daily", EndDate: "someday"},
	}
	for _, b := range bad {
		if _, err := b.rule(time.UTC); !recurrence.IsInvalidRule(err) {
			t.Errorf("rule(%+v) err = %v, want InvalidRuleError", b, err)
		}
	}
}
