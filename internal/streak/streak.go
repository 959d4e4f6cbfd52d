// Package streak implements the day-granularity consecutive-activity counter.
package streak

import "time"

// Outcome describes what a transition did to the streak.
type Outcome int

const (
	// Started means this was the first recorded activity.
	Started Outcome = iota
	// Unchanged means another activity on the same day.
	Unchanged
	// Extended means the previous activity was yesterday.
	Extended
	// Reset means at least one full day was skipped.
	Reset
	// Backdated means the activity day precedes the last activity day; state is left as is.
	Backdated
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Unchanged:
		return "unchanged"
	case Extended:
		return "extended"
	case Reset:
		return "reset"
	case Backdated:
		return "backdated"
	}
	return "unknown"
}

// State is the per-user streak counter and the calendar day of the last activity.
type State struct {
	Count    int
	LastDate *time.Time
}

// Day truncates t to its calendar date in loc and returns that date at midnight UTC.
// Calendar dates stored this way compare and subtract without DST drift.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b (both produced by Day).
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// Record applies one newly recorded activity at time at. It must be called exactly once
// per created activity and never on deletion.
func Record(s State, at time.Time, loc *time.Location) (State, Outcome) {
	today := Day(at, loc)
	if s.LastDate == nil {
		return State{Count: 1, LastDate: &today}, Started
	}

	last := Day(*s.LastDate, time.UTC)
	delta := DaysBetween(last, today)
	out := State{Count: s.Count, LastDate: &today}
	switch {
	case delta < 0:
		return s, Backdated
	case delta == 0:
		if out.Count < 1 {
			out.Count = 1
		}
		return out, Unchanged
	case delta == 1:
		out.Count++
		return out, Extended
	default:
		out.Count = 1
		return out, Reset
	}
}
