// Package recurrence computes the next occurrence of a repeating task
// from a declarative schedule rule. All functions are pure: the caller
// supplies the reference time, so results are fully deterministic.
package recurrence

import "time"

// Type identifies the kind of recurrence schedule.
type Type string

const (
	TypeDaily  Type = "daily"
	TypeWeekly Type = "weekly"
	TypeCustom Type = "custom"
)

// Rule describes a repeating schedule.
type Rule struct {
	// Type selects the schedule kind (use Type* constants).
	Type Type `json:"type" mapstructure:"type"`

	// Days holds weekday indices (0 = Sunday .. 6 = Saturday) for
	// weekly/custom rules. Empty means "same weekday as the base date".
	Days []int `json:"days,omitempty" mapstructure:"days"`

	// Interval is the step in days (daily) or weeks (weekly/custom).
	// Zero or negative is treated as 1.
	Interval int `json:"interval,omitempty" mapstructure:"interval"`

	// EndDate, when set, bounds the schedule: occurrences strictly
	// after it are suppressed.
	EndDate *time.Time `json:"end_date,omitempty" mapstructure:"end_date"`
}

// Clone returns a deep copy of the rule; nil in, nil out.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.Days = append([]int(nil), r.Days...)
	if r.EndDate != nil {
		d := *r.EndDate
		c.EndDate = &d
	}
	return &c
}

// Next returns the occurrence that follows from, preserving from's
// time-of-day. The second return value is false when the rule does not
// produce a further occurrence (unknown type, or past EndDate).
func Next(r Rule, from time.Time) (time.Time, bool) {
	interval := r.Interval
	if interval <= 0 {
		interval = 1
	}

	var next time.Time
	switch r.Type {
	case TypeDaily:
		next = from.AddDate(0, 0, interval)
	case TypeWeekly, TypeCustom:
		if len(r.Days) == 0 {
			if r.Type == TypeCustom {
				// A custom rule without explicit weekdays is malformed.
				return time.Time{}, false
			}
			next = from.AddDate(0, 0, 7*interval)
			break
		}
		next = nextWeekday(r.Days, from, interval)
	default:
		return time.Time{}, false
	}

	if r.EndDate != nil && next.After(*r.EndDate) {
		return time.Time{}, false
	}
	return next, true
}

// nextWeekday finds the earliest weekday in days strictly after from
// within from's week; when none remains, it wraps to the first matching
// weekday of the week interval weeks later.
func nextWeekday(days []int, from time.Time, interval int) time.Time {
	want := make(map[int]bool, len(days))
	first := 7
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		want[d] = true
		if d < first {
			first = d
		}
	}
	if len(want) == 0 {
		return from.AddDate(0, 0, 7*interval)
	}

	current := int(from.Weekday())
	for offset := 1; current+offset <= 6; offset++ {
		if want[current+offset] {
			return from.AddDate(0, 0, offset)
		}
	}

	// Wrap: jump to the start of the week interval weeks ahead, then
	// forward to the first selected weekday.
	toWeekStart := -current
	return from.AddDate(0, 0, toWeekStart+7*interval+first)
}
