package session

import "time"

// Convened is a tri-state: a chamber's convened status is frequently
// unknowable (no CONVENE or ADJOURN event has ever been seen) rather
// than cleanly true or false.
type Convened int

const (
	Unknown Convened = iota
	False
	True
)

// String renders a Convened value for logging and outbound signals.
func (c Convened) String() string {
	switch c {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Signals are the four public values derived from a chamber's event
// log at a reference instant. Absent timestamps are represented as a
// nil *time.Time.
type Signals struct {
	Convened    Convened
	ConvenedAt  *time.Time
	AdjournedAt *time.Time
	ConvenesAt  *time.Time
}

// Equal reports whether two Signals carry the same values, used by
// callers deciding whether a refresh actually changed anything worth
// publishing.
func (s Signals) Equal(o Signals) bool {
	return s.Convened == o.Convened &&
		timeEqual(s.ConvenedAt, o.ConvenedAt) &&
		timeEqual(s.AdjournedAt, o.AdjournedAt) &&
		timeEqual(s.ConvenesAt, o.ConvenesAt)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Derive computes the four public signals purely from the event log
// and a reference instant. It never mutates events.
func Derive(events []Event, now time.Time) Signals {
	c, hasC := Search(events, now, Backward, []Kind{CONVENE})
	a, hasA := Search(events, now, Backward, []Kind{ADJOURN})

	var s Signals

	switch {
	case !hasC && !hasA:
		s.Convened = Unknown
	case hasA && !hasC:
		s.Convened = False
	case hasC && !hasA:
		s.Convened = True
	case c.Timestamp.After(a.Timestamp):
		s.Convened = True
	default:
		s.Convened = False
	}

	if s.Convened == True {
		ts := c.Timestamp
		s.ConvenedAt = &ts
	}

	if hasA && (!hasC || a.Timestamp.After(c.Timestamp)) {
		ts := a.Timestamp
		s.AdjournedAt = &ts
	}

	if sched, ok := Search(events, now, Forward, []Kind{CONVENESCHEDULED}); ok {
		ts := sched.Timestamp
		s.ConvenesAt = &ts
	}

	return s
}

// Activity returns the event closest to at: forward search across
// AllEvents if at is in the future relative to now, backward otherwise.
func Activity(events []Event, now, at time.Time) (Event, bool) {
	if at.After(now) {
		return Search(events, at, Forward, AllEvents)
	}
	return Search(events, at, Backward, AllEvents)
}
