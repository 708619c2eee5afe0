package notify

import (
	"strings"
	"time"
)

// Interval names a repeating schedule step.
type Interval string

const (
	IntervalMinute Interval = "minute"
	IntervalHour   Interval = "hour"
	IntervalDay    Interval = "day"
	IntervalWeek   Interval = "week"
	IntervalMonth  Interval = "month"
	IntervalYear   Interval = "year"
)

// KnownInterval reports whether the interval name is recognized.
func KnownInterval(i Interval) bool {
	switch i {
	case IntervalMinute, IntervalHour, IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// CalendarPattern is a calendar-field schedule: only the supplied fields
// constrain the fire time. Field ranges are validated by the schedule
// package; day-of-month is not calendar-aware (a day of 31 in a 30-day
// month is the caller's problem).
type CalendarPattern struct {
	Year    *int `json:"year,omitempty" yaml:"year,omitempty"`
	Month   *int `json:"month,omitempty" yaml:"month,omitempty"`
	Day     *int `json:"day,omitempty" yaml:"day,omitempty"`
	Weekday *int `json:"weekday,omitempty" yaml:"weekday,omitempty"` // 1 (Sunday) .. 7 (Saturday)
	Hour    *int `json:"hour,omitempty" yaml:"hour,omitempty"`
	Minute  *int `json:"minute,omitempty" yaml:"minute,omitempty"`
	Second  *int `json:"second,omitempty" yaml:"second,omitempty"`
}

// IsZero reports whether no field is set at all.
func (p *CalendarPattern) IsZero() bool {
	if p == nil {
		return true
	}
	return p.Year == nil && p.Month == nil && p.Day == nil &&
		p.Weekday == nil && p.Hour == nil && p.Minute == nil && p.Second == nil
}

// ParseWeekday resolves a weekday name onto the 1-based (Sunday first)
// numbering used by CalendarPattern.Weekday.
func ParseWeekday(name string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun":
		return 1, true
	case "monday", "mon":
		return 2, true
	case "tuesday", "tue":
		return 3, true
	case "wednesday", "wed":
		return 4, true
	case "thursday", "thu":
		return 5, true
	case "friday", "fri":
		return 6, true
	case "saturday", "sat":
		return 7, true
	}
	return 0, false
}

// Schedule is the declarative schedule description. Exactly one of At, On
// or Every must be populated.
type Schedule struct {
	// At fires once at a fixed instant. A past instant rolls forward by
	// one day rather than firing immediately.
	At *time.Time `json:"at,omitempty" yaml:"at,omitempty"`
	// On fires on a repeating calendar pattern.
	On *CalendarPattern `json:"on,omitempty" yaml:"on,omitempty"`
	// Every fires on a repeating named interval.
	Every Interval `json:"every,omitempty" yaml:"every,omitempty"`
	// Count bounds the number of repeats for Every schedules. Zero means
	// unbounded.
	Count int `json:"count,omitempty" yaml:"count,omitempty"`
	// Until bounds Every schedules in time.
	Until *time.Time `json:"until,omitempty" yaml:"until,omitempty"`
}

// Forms returns which of the three schedule forms are populated.
func (s Schedule) Forms() []string {
	var forms []string
	if s.At != nil {
		forms = append(forms, "at")
	}
	if !s.On.IsZero() {
		forms = append(forms, "on")
	}
	if s.Every != "" {
		forms = append(forms, "every")
	}
	return forms
}
