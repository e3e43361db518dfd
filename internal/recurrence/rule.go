package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is the unit a rule steps by.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

var rruleNames = map[Frequency]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

var freqFromRRule = map[string]Frequency{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
	"YEARLY":  Yearly,
}

const untilLayout = "20060102T150405Z"

// InvalidRuleError reports a rule that cannot be expanded.
type InvalidRuleError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid recurrence rule: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid recurrence rule: %s %q %s", e.Field, e.Value, e.Reason)
}

// IsInvalidRule reports whether err is, or wraps, an *InvalidRuleError.
func IsInvalidRule(err error) bool {
	var target *InvalidRuleError
	return errors.As(err, &target)
}

// ParseFrequency maps a form value such as "Weekly" to a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", &InvalidRuleError{Field: "frequency", Value: s, Reason: "is not one of daily, weekly, monthly, yearly"}
	}
	return f, nil
}

// Valid reports whether f is one of the four supported frequencies.
func (f Frequency) Valid() bool {
	_, ok := rruleNames[f]
	return ok
}

// Rule describes how an event repeats from its start date.
type Rule struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval,omitempty"`         // 0 is treated as 1
	EndDate   *time.Time `json:"end_date,omitempty"`         // inclusive
	Count     int        `json:"occurrence_count,omitempty"` // 0 = unlimited
}

// NewRule returns a validated rule with the interval defaulted.
func NewRule(freq Frequency, interval int) (Rule, error) {
	r := Rule{Frequency: freq, Interval: interval}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	r.Interval = r.step()
	return r, nil
}

// Validate checks the rule before any date arithmetic is attempted.
func (r Rule) Validate() error {
	if !r.Frequency.Valid() {
		return &InvalidRuleError{Field: "frequency", Value: string(r.Frequency), Reason: "is not one of daily, weekly, monthly, yearly"}
	}
	if r.Interval < 0 {
		return &InvalidRuleError{Field: "interval", Value: strconv.Itoa(r.Interval), Reason: "must be positive"}
	}
	if r.Count < 0 {
		return &InvalidRuleError{Field: "occurrence_count", Value: strconv.Itoa(r.Count), Reason: "must be positive"}
	}
	return nil
}

func (r Rule) step() int {
	if r.Interval <= 0 {
		return 1
	}
	return r.Interval
}

// advance moves t forward by one interval of the rule's frequency.
// Month and year steps use time.AddDate normalization, so Jan 31 plus one
// month lands on Mar 2 (or Mar 3 outside leap years).
func (r Rule) advance(t time.Time) time.Time {
	n := r.step()
	switch r.Frequency {
	case Daily:
		return t.AddDate(0, 0, n)
	case Weekly:
		return t.AddDate(0, 0, 7*n)
	case Monthly:
		return t.AddDate(0, n, 0)
	case Yearly:
		return t.AddDate(n, 0, 0)
	}
	panic("recurrence: advance on unvalidated rule")
}

// Parse parses an RRULE string like "FREQ=WEEKLY;INTERVAL=2;COUNT=5".
func Parse(rule string) (Rule, error) {
	if rule == "" {
		return Rule{}, &InvalidRuleError{Field: "rule", Reason: "is empty"}
	}

	r := Rule{Interval: 1}
	var hasFreq bool

	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Rule{}, &InvalidRuleError{Field: "rule", Value: part, Reason: "is not KEY=VALUE"}
		}
		key, val := kv[0], kv[1]

		switch key {
		case "FREQ":
			f, ok := freqFromRRule[val]
			if !ok {
				return Rule{}, &InvalidRuleError{Field: "frequency", Value: val, Reason: "is not supported"}
			}
			r.Frequency = f
			hasFreq = true

		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, &InvalidRuleError{Field: "interval", Value: val, Reason: "must be a positive integer"}
			}
			r.Interval = n

		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, &InvalidRuleError{Field: "occurrence_count", Value: val, Reason: "must be a positive integer"}
			}
			r.Count = n

		case "UNTIL":
			t, err := time.Parse(untilLayout, val)
			if err != nil {
				t, err = time.Parse("20060102", val)
				if err != nil {
					return Rule{}, &InvalidRuleError{Field: "end_date", Value: val, Reason: "is not an RRULE date"}
				}
			}
			r.EndDate = &t

		default:
			return Rule{}, &InvalidRuleError{Field: "rule", Value: key, Reason: "is not a supported key"}
		}
	}

	if !hasFreq {
		return Rule{}, &InvalidRuleError{Field: "frequency", Reason: "is required"}
	}

	return r, nil
}

// String serializes the rule back to an RRULE string.
func (r Rule) String() string {
	parts := []string{"FREQ=" + rruleNames[r.Frequency]}

	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if r.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.Count))
	}
	if r.EndDate != nil {
		parts = append(parts, "UNTIL="+r.EndDate.UTC().Format(untilLayout))
	}

	return strings.Join(parts, ";")
}

var unitNames = map[Frequency]string{
	Daily:   "days",
	Weekly:  "weeks",
	Monthly: "months",
	Yearly:  "years",
}

// Label returns a short human-readable label: "Weekly" or "Every 3 weeks".
func (r Rule) Label() string {
	if !r.Frequency.Valid() {
		return ""
	}
	if n := r.step(); n > 1 {
		return fmt.Sprintf("Every %d %s", n, unitNames[r.Frequency])
	}
	name := string(r.Frequency)
	return strings.ToUpper(name[:1]) + name[1:]
}
