package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

func intp(v int) *int { return &v }

// Wednesday 2026-08-26 10:30:00 UTC.
var now = time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)

func TestNextFireTime_FixedFuture(t *testing.T) {
	at := now.Add(2 * time.Hour)
	got, err := NextFireTime(notify.Schedule{At: &at}, now)
	require.NoError(t, err)
	assert.Equal(t, at, got)
}

func TestNextFireTime_FixedPastRollsForwardOneDay(t *testing.T) {
	yesterday3pm := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)
	got, err := NextFireTime(notify.Schedule{At: &yesterday3pm}, now)
	require.NoError(t, err)
	// Exactly 24h later, not "now".
	assert.Equal(t, yesterday3pm.Add(24*time.Hour), got)
}

func TestNextFireTime_CalendarFutureToday(t *testing.T) {
	got, err := NextFireTime(notify.Schedule{
		On: &notify.CalendarPattern{Hour: intp(18), Minute: intp(0)},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC), got)
}

func TestNextFireTime_CalendarPastRollsForwardOneDay(t *testing.T) {
	got, err := NextFireTime(notify.Schedule{
		On: &notify.CalendarPattern{Hour: intp(8), Minute: intp(0)},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 27, 8, 0, 0, 0, time.UTC), got)
}

func TestNextFireTime_CalendarAdvancesToWeekday(t *testing.T) {
	// 2 = Monday in the Sunday-first numbering. The 08:00 candidate is in
	// the past, so we advance to the next Monday.
	got, err := NextFireTime(notify.Schedule{
		On: &notify.CalendarPattern{Weekday: intp(2), Hour: intp(8)},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Weekday(1), got.Weekday())
	assert.True(t, got.After(now))
	assert.Equal(t, 8, got.Hour())
}

func TestNextFireTime_Intervals(t *testing.T) {
	cases := map[notify.Interval]time.Time{
		notify.IntervalMinute: now.Add(time.Minute),
		notify.IntervalHour:   now.Add(time.Hour),
		notify.IntervalDay:    now.AddDate(0, 0, 1),
		notify.IntervalWeek:   now.AddDate(0, 0, 7),
		notify.IntervalMonth:  now.AddDate(0, 1, 0),
		notify.IntervalYear:   now.AddDate(1, 0, 0),
	}
	for every, want := range cases {
		got, err := NextFireTime(notify.Schedule{Every: every}, now)
		require.NoError(t, err, every)
		assert.Equal(t, want, got, every)
	}
}

func TestValidate_EmptySchedule(t *testing.T) {
	res := Validate(notify.Schedule{}, now)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeNoValidSchedule, res.Errors[0].Code)
}

func TestValidate_MultipleFormsRejected(t *testing.T) {
	at := now.Add(time.Hour)
	res := Validate(notify.Schedule{At: &at, Every: notify.IntervalDay}, now)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeMultipleSchedules, res.Errors[0].Code)
}

func TestValidate_MonthOutOfRange(t *testing.T) {
	res := Validate(notify.Schedule{
		On: &notify.CalendarPattern{Month: intp(13)},
	}, now)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "on.month", res.Errors[0].Field)
	assert.Equal(t, CodeOutOfRange, res.Errors[0].Code)
}

func TestValidate_OnlyInvalidFieldsReported(t *testing.T) {
	// Valid month and day, invalid hour: exactly one error.
	res := Validate(notify.Schedule{
		On: &notify.CalendarPattern{Month: intp(6), Day: intp(15), Hour: intp(25)},
	}, now)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "on.hour", res.Errors[0].Field)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	res := Validate(notify.Schedule{
		On: &notify.CalendarPattern{Month: intp(0), Hour: intp(30), Minute: intp(99)},
	}, now)
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 3)
}

func TestValidate_DayNotCalendarAware(t *testing.T) {
	// February 30 passes range validation; resolving it is the caller's
	// problem.
	res := Validate(notify.Schedule{
		On: &notify.CalendarPattern{Month: intp(2), Day: intp(30)},
	}, now)
	assert.True(t, res.Valid)
}

func TestValidate_Interval(t *testing.T) {
	res := Validate(notify.Schedule{Every: notify.Interval("fortnight")}, now)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeUnknownInterval, res.Errors[0].Code)

	past := now.Add(-time.Hour)
	res = Validate(notify.Schedule{Every: notify.IntervalDay, Until: &past}, now)
	assert.False(t, res.Valid)
	assert.Equal(t, CodePastUntil, res.Errors[0].Code)

	future := now.Add(time.Hour)
	res = Validate(notify.Schedule{Every: notify.IntervalDay, Count: 5, Until: &future}, now)
	assert.True(t, res.Valid)
}

func TestFromCron(t *testing.T) {
	s, err := FromCron("30 9 * * 1")
	require.NoError(t, err)
	require.NotNil(t, s.On)
	assert.Equal(t, 30, *s.On.Minute)
	assert.Equal(t, 9, *s.On.Hour)
	assert.Nil(t, s.On.Day)
	assert.Nil(t, s.On.Month)
	// cron Monday (1) maps onto the Sunday-first numbering (2).
	assert.Equal(t, 2, *s.On.Weekday)

	_, err = FromCron("*/5 * * * *")
	require.Error(t, err, "step expressions have no pattern equivalent")

	_, err = FromCron("not a cron")
	require.Error(t, err)
}

func TestToCron(t *testing.T) {
	expr, err := ToCron(notify.Schedule{
		On: &notify.CalendarPattern{Minute: intp(0), Hour: intp(12), Weekday: intp(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, "0 12 * * 1", expr)

	_, err = ToCron(notify.Schedule{Every: notify.IntervalDay})
	require.Error(t, err)

	_, err = ToCron(notify.Schedule{On: &notify.CalendarPattern{Second: intp(5)}})
	require.Error(t, err)
}

func TestCronRoundTrip(t *testing.T) {
	s, err := FromCron("15 7 1 6 *")
	require.NoError(t, err)
	expr, err := ToCron(s)
	require.NoError(t, err)
	assert.Equal(t, "15 7 1 6 *", expr)
}

func TestIntervalDuration(t *testing.T) {
	d, err := IntervalDuration(notify.IntervalWeek, now)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	_, err = IntervalDuration(notify.Interval("eon"), now)
	require.Error(t, err)
}
