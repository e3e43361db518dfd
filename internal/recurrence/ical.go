package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleFreq = map[Frequency]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

// RRule converts the rule into an RFC 5545 rule anchored at dtstart.
//
// rrule-go skips invalid dates (a monthly rule on the 31st has no February
// occurrence) while GenerateOccurrences rolls them over, so the two only
// agree for daily, weekly and non-month-end rules. The result is meant for
// interchange, not for expansion.
func (r Rule) RRule(dtstart time.Time) (*rrule.RRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	opt := rrule.ROption{
		Freq:     rruleFreq[r.Frequency],
		Interval: r.step(),
		Dtstart:  dtstart,
		Count:    r.Count,
	}
	if r.EndDate != nil {
		opt.Until = *r.EndDate
	}

	// RFC 5545 forbids COUNT and UNTIL together; keep whichever ends the
	// series first.
	if r.Count > 0 && r.EndDate != nil {
		occs, err := GenerateOccurrences(dtstart, r, r.Count)
		if err != nil {
			return nil, err
		}
		if len(occs) == r.Count {
			opt.Until = time.Time{}
		} else {
			opt.Count = 0
		}
	}

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	return rr, nil
}
