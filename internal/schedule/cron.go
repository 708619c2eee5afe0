package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// cronParser accepts the standard five-field expression.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// FromCron converts a five-field cron expression into a calendar-pattern
// schedule. Only literal fields and wildcards map onto a pattern; ranges,
// steps and lists have no calendar-pattern equivalent and are rejected.
func FromCron(expr string) (notify.Schedule, error) {
	if _, err := cronParser.Parse(expr); err != nil {
		return notify.Schedule{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return notify.Schedule{}, fmt.Errorf("expected 5 cron fields, got %d", len(fields))
	}

	p := &notify.CalendarPattern{}
	specs := []struct {
		name string
		raw  string
		dest **int
	}{
		{"minute", fields[0], &p.Minute},
		{"hour", fields[1], &p.Hour},
		{"day", fields[2], &p.Day},
		{"month", fields[3], &p.Month},
		{"weekday", fields[4], &p.Weekday},
	}
	for _, spec := range specs {
		if spec.raw == "*" {
			continue
		}
		v, err := strconv.Atoi(spec.raw)
		if err != nil {
			return notify.Schedule{}, fmt.Errorf(
				"cron %s field %q is not a literal value; ranges, steps and lists are not supported",
				spec.name, spec.raw)
		}
		if spec.name == "weekday" {
			// cron weekdays are 0 (Sunday) .. 6; patterns are 1 .. 7.
			v++
		}
		val := v
		*spec.dest = &val
	}

	return notify.Schedule{On: p}, nil
}

// ToCron renders a calendar-pattern schedule as a five-field cron
// expression. Only the On form has a cron equivalent.
func ToCron(s notify.Schedule) (string, error) {
	if s.On.IsZero() {
		return "", fmt.Errorf("only calendar-pattern schedules convert to cron")
	}
	p := s.On
	if p.Year != nil || p.Second != nil {
		return "", fmt.Errorf("cron cannot express year or second constraints")
	}

	field := func(v *int) string {
		if v == nil {
			return "*"
		}
		return strconv.Itoa(*v)
	}
	weekday := "*"
	if p.Weekday != nil {
		weekday = strconv.Itoa(*p.Weekday - 1)
	}

	expr := strings.Join([]string{
		field(p.Minute), field(p.Hour), field(p.Day), field(p.Month), weekday,
	}, " ")

	// Round-trip through the parser so we never emit garbage.
	if _, err := cronParser.Parse(expr); err != nil {
		return "", fmt.Errorf("pattern does not form a valid cron expression: %w", err)
	}
	return expr, nil
}
