package recurrence

import "time"

const (
	// DefaultMaxCount is used when GenerateOccurrences gets a non-positive cap.
	DefaultMaxCount = 10

	// NextOccurrenceSearchLimit bounds how far NextOccurrence expands.
	NextOccurrenceSearchLimit = 100

	// MaxWalkSteps bounds range walks in Between and NextAfter. It covers
	// roughly 270 years of a daily series.
	MaxWalkSteps = 100_000
)

// walk yields the series in order, starting with start itself, until yield
// returns false, EndDate or Count ends the series, or MaxWalkSteps occurrences
// have been produced. The rule must already be validated.
func (r Rule) walk(start time.Time, yield func(time.Time) bool) {
	current := start
	for i := 0; i < MaxWalkSteps; i++ {
		if r.Count > 0 && i >= r.Count {
			return
		}
		if i > 0 {
			current = r.advance(current)
			if r.EndDate != nil && current.After(*r.EndDate) {
				return
			}
		}
		if !yield(current) {
			return
		}
	}
}

// GenerateOccurrences expands rule from start into at most maxCount dates.
// The first element is always start; every later element is strictly after
// the previous one and never after rule.EndDate.
func GenerateOccurrences(start time.Time, rule Rule, maxCount int) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	limit := maxCount
	if limit <= 0 {
		limit = DefaultMaxCount
	}
	if rule.Count > 0 && rule.Count < limit {
		limit = rule.Count
	}

	out := make([]time.Time, 0, limit)
	rule.walk(start, func(t time.Time) bool {
		out = append(out, t)
		return len(out) < limit
	})
	return out, nil
}

// NextOccurrence returns the earliest occurrence strictly after now among the
// first NextOccurrenceSearchLimit occurrences. ok is false if there is none.
func NextOccurrence(start time.Time, rule Rule, now time.Time) (next time.Time, ok bool, err error) {
	occs, err := GenerateOccurrences(start, rule, NextOccurrenceSearchLimit)
	if err != nil {
		return time.Time{}, false, err
	}
	for _, t := range occs {
		if t.After(now) {
			return t, true, nil
		}
	}
	return time.Time{}, false, nil
}

// NextAfter is NextOccurrence without the search limit: it walks the series
// as far as needed, up to MaxWalkSteps, so long-running series keep working.
func NextAfter(start time.Time, rule Rule, now time.Time) (next time.Time, ok bool, err error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, false, err
	}
	rule.walk(start, func(t time.Time) bool {
		if t.After(now) {
			next, ok = t, true
			return false
		}
		return true
	})
	return next, ok, nil
}

// Between returns the occurrences in [rangeStart, rangeEnd), walking the
// series from start until it passes rangeEnd. limit caps the number returned;
// zero or less means no cap.
func Between(start time.Time, rule Rule, rangeStart, rangeEnd time.Time, limit int) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	var results []time.Time
	rule.walk(start, func(t time.Time) bool {
		if !t.Before(rangeEnd) {
			return false
		}
		if !t.Before(rangeStart) {
			results = append(results, t)
		}
		return limit <= 0 || len(results) < limit
	})
	return results, nil
}
