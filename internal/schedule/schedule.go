// Package schedule turns declarative schedule descriptors into concrete
// next-fire instants and validates them. It is pure calculation; actually
// arming the timer is the native bridge's job.
package schedule

import (
	"fmt"
	"time"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// NextFireTime resolves the next instant a schedule should fire relative
// to now. The schedule must carry exactly one form; anything else is a
// validation error.
func NextFireTime(s notify.Schedule, now time.Time) (time.Time, error) {
	if res := Validate(s, now); !res.Valid {
		return time.Time{}, res.Err()
	}

	switch {
	case s.At != nil:
		return nextFixed(*s.At, now), nil
	case !s.On.IsZero():
		return nextCalendar(s.On, now), nil
	default:
		return nextInterval(s.Every, now), nil
	}
}

// nextFixed applies the missed-fixed-time policy: a past instant means
// "tomorrow, same time", never "fire immediately".
func nextFixed(at, now time.Time) time.Time {
	if at.After(now) {
		return at
	}
	return at.Add(24 * time.Hour)
}

// nextCalendar sets only the supplied pattern fields on a copy of now. A
// result that is not in the future advances to the next matching weekday
// when a weekday constraint is present, otherwise rolls forward one day.
func nextCalendar(p *notify.CalendarPattern, now time.Time) time.Time {
	year, month, day := now.Year(), int(now.Month()), now.Day()
	hour, minute, sec := now.Hour(), now.Minute(), now.Second()

	if p.Year != nil {
		year = *p.Year
	}
	if p.Month != nil {
		month = *p.Month
	}
	if p.Day != nil {
		day = *p.Day
	}
	if p.Hour != nil {
		hour = *p.Hour
	}
	if p.Minute != nil {
		minute = *p.Minute
	}
	if p.Second != nil {
		sec = *p.Second
	} else if p.Hour != nil || p.Minute != nil {
		sec = 0
	}

	candidate := time.Date(year, time.Month(month), day, hour, minute, sec, 0, now.Location())

	if !candidate.After(now) {
		if p.Weekday != nil {
			candidate = nextWeekday(candidate, *p.Weekday)
		} else {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}
	return candidate
}

// nextWeekday advances t by at least one day until its weekday matches
// the 1-based (Sunday first) target.
func nextWeekday(t time.Time, weekday int) time.Time {
	target := time.Weekday(weekday - 1)
	next := t.AddDate(0, 0, 1)
	for next.Weekday() != target {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextInterval computes the first repeat step only; enumerating the full
// occurrence list is the caller's responsibility.
func nextInterval(every notify.Interval, now time.Time) time.Time {
	switch every {
	case notify.IntervalMinute:
		return now.Add(time.Minute)
	case notify.IntervalHour:
		return now.Add(time.Hour)
	case notify.IntervalDay:
		return now.AddDate(0, 0, 1)
	case notify.IntervalWeek:
		return now.AddDate(0, 0, 7)
	case notify.IntervalMonth:
		return now.AddDate(0, 1, 0)
	case notify.IntervalYear:
		return now.AddDate(1, 0, 0)
	default:
		// Validate rejects unknown intervals before we get here.
		return now
	}
}

// IntervalDuration reports the nominal duration of one interval step,
// anchored at now for calendar-length intervals.
func IntervalDuration(every notify.Interval, now time.Time) (time.Duration, error) {
	if !notify.KnownInterval(every) {
		return 0, fmt.Errorf("unknown interval %q", every)
	}
	return nextInterval(every, now).Sub(now), nil
}
