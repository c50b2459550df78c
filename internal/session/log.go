package session

import (
	"sort"
	"time"

	"github.com/nugget/chamberwatch/internal/clock"
)

// Log is a chamber's event log: an ordered collection of Events, sorted
// descending by Timestamp. It is the single source of truth for a
// chamber's derived state. The zero value is an empty, usable log.
type Log struct {
	events []Event
}

// NewLog builds a Log from an existing event slice, sorting it into the
// log's canonical descending order. Used by the cache loader to
// reconstitute a log from disk.
func NewLog(events []Event) *Log {
	l := &Log{events: append([]Event(nil), events...)}
	l.Sort()
	return l
}

// Events returns the log's events in their current (sorted) order. The
// returned slice must not be mutated by the caller.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	return l.events
}

// Len reports the number of events currently held.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.events)
}

// Sort puts the log into strictly descending Timestamp order.
func (l *Log) Sort() {
	sort.SliceStable(l.events, func(i, j int) bool {
		return l.events[i].Timestamp.After(l.events[j].Timestamp)
	})
}

// startOfPreviousCivilDay returns midnight Eastern of the civil day
// before the one containing now.
func startOfPreviousCivilDay(now time.Time) time.Time {
	civil := clock.ToCivil(now)
	y, m, d := civil.Date()
	todayMidnight := time.Date(y, m, d, 0, 0, 0, 0, clock.Eastern)
	return todayMidnight.AddDate(0, 0, -1)
}

// Trim removes events older than the start of the previous civil day,
// except that the three events with the greatest Timestamp are always
// preserved regardless of age. Trim assumes the log is already sorted
// descending (Merge always sorts before trimming).
func (l *Log) Trim(now time.Time) {
	if l == nil || len(l.events) <= 3 {
		return
	}
	cutoff := startOfPreviousCivilDay(now)
	kept := l.events[:3:3]
	for _, e := range l.events[3:] {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	l.events = kept
}

// findByID returns the index of the event with the given ID, or -1.
func (l *Log) findByID(id string) int {
	for i, e := range l.events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// findByTimestamp returns the index of an event at exactly ts, or -1.
// Every event in the log is considered, whether or not it carries an ID.
func (l *Log) findByTimestamp(ts time.Time) int {
	for i, e := range l.events {
		if e.Timestamp.Equal(ts) {
			return i
		}
	}
	return -1
}

func (l *Log) removeAt(i int) {
	l.events = append(l.events[:i], l.events[i+1:]...)
}

// Merge folds a batch of freshly parsed events into the log under the
// append-or-replace rules:
//
//   - Tree-sourced events (HasID true) are matched by ID. A new event
//     replaces the existing one only if its Updated is strictly newer;
//     otherwise it's discarded. No existing match means append.
//   - Regex/record events (HasID false) are matched by exact
//     Timestamp. CONVENE beats a CONVENE_SCHEDULED arriving at the same
//     instant. Otherwise the new event replaces the old one.
//
// After folding the whole batch, the log is re-sorted and trimmed.
// Merge is idempotent: folding the same batch twice leaves the log
// unchanged the second time.
func (l *Log) Merge(now time.Time, batch []Event) {
	for _, e := range batch {
		l.mergeOne(e)
	}
	l.Sort()
	l.Trim(now)
}

func (l *Log) mergeOne(e Event) {
	if e.HasID() {
		if i := l.findByID(e.ID); i >= 0 {
			existing := l.events[i]
			if e.Updated.After(existing.Updated) {
				l.removeAt(i)
				l.events = append(l.events, e)
			}
			return
		}
		l.events = append(l.events, e)
		return
	}

	if i := l.findByTimestamp(e.Timestamp); i >= 0 {
		existing := l.events[i]
		if existing.Kind == CONVENE && e.Kind == CONVENESCHEDULED {
			return
		}
		l.removeAt(i)
		l.events = append(l.events, e)
		return
	}
	l.events = append(l.events, e)
}
