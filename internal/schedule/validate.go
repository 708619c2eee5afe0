package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// Error codes attached to FieldError.Code.
const (
	CodeNoValidSchedule   = "NO_VALID_SCHEDULE"
	CodeMultipleSchedules = "MULTIPLE_SCHEDULES"
	CodeOutOfRange        = "OUT_OF_RANGE"
	CodeUnknownInterval   = "UNKNOWN_INTERVAL"
	CodeInvalidCount      = "INVALID_COUNT"
	CodePastUntil         = "PAST_UNTIL"
)

// FieldError is one validation finding, addressed by dotted field path.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result collects every validation error for a schedule; validation never
// short-circuits on the first finding.
type Result struct {
	Valid  bool
	Errors []FieldError
}

// Err converts an invalid result into a single error value.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return fmt.Errorf("invalid schedule: %s", strings.Join(parts, "; "))
}

// Validate checks a schedule descriptor exhaustively. A descriptor must
// carry exactly one of the three forms: supplying none is an error, and
// supplying more than one is rejected outright rather than resolved by
// silent precedence.
func Validate(s notify.Schedule, now time.Time) Result {
	var errs []FieldError
	add := func(field, code, msg string) {
		errs = append(errs, FieldError{Field: field, Code: code, Message: msg})
	}

	forms := s.Forms()
	switch len(forms) {
	case 0:
		add("schedule", CodeNoValidSchedule,
			"one of at, on or every must be supplied")
	case 1:
		// ok
	default:
		add("schedule", CodeMultipleSchedules,
			fmt.Sprintf("only one schedule form may be supplied, got %s",
				strings.Join(forms, "+")))
	}

	if !s.On.IsZero() {
		validatePattern(s.On, add)
	}

	if s.Every != "" {
		if !notify.KnownInterval(s.Every) {
			add("every", CodeUnknownInterval,
				fmt.Sprintf("unknown interval %q", s.Every))
		}
		if s.Count < 0 {
			add("count", CodeInvalidCount, "count must be at least 1")
		}
		if s.Until != nil && !s.Until.After(now) {
			add("until", CodePastUntil, "until must be in the future")
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// validatePattern range-checks every supplied calendar field. Day is not
// calendar-aware: day 30 in February passes here and is the caller's
// problem.
func validatePattern(p *notify.CalendarPattern, add func(field, code, msg string)) {
	check := func(field string, v *int, lo, hi int) {
		if v != nil && (*v < lo || *v > hi) {
			add(field, CodeOutOfRange,
				fmt.Sprintf("must be between %d and %d, got %d", lo, hi, *v))
		}
	}
	check("on.month", p.Month, 1, 12)
	check("on.day", p.Day, 1, 31)
	check("on.weekday", p.Weekday, 1, 7)
	check("on.hour", p.Hour, 0, 23)
	check("on.minute", p.Minute, 0, 59)
	check("on.second", p.Second, 0, 59)
	if p.Year != nil && *p.Year < 1970 {
		add("on.year", CodeOutOfRange,
			fmt.Sprintf("must be 1970 or later, got %d", *p.Year))
	}
}
