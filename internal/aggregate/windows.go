package aggregate

import "time"

// StartOfDay returns local midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Today is [midnight, next midnight) of now in loc.
func Today(now time.Time, loc *time.Location) (start, end time.Time) {
	start = StartOfDay(now, loc)
	return start, start.AddDate(0, 0, 1)
}

// ThisWeek returns midnight of the most recent Sunday (today if now is a Sunday).
// The window is open at the upper end.
func ThisWeek(now time.Time, loc *time.Location) time.Time {
	day := StartOfDay(now, loc)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// LastNDays returns now minus n calendar days, keeping the clock time.
func LastNDays(now time.Time, n int) time.Time {
	return now.AddDate(0, 0, -n)
}
