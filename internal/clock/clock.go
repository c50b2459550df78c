// Package clock provides a testable time source for the session engine.
// All persisted and compared timestamps in chamberwatch are Eastern
// civil time (America/New_York, DST-aware) with explicit offsets; naive
// instants are forbidden outside parser-internal scratch values. Tests
// inject a deterministic Clock so scenarios like "convenes in 3 hours"
// don't depend on wall-clock time.
package clock

import "time"

// Eastern is the canonical civil zone of both chamber feeds.
var Eastern = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// The tzdata database is expected to be available in any
		// deployment target; if it isn't, failing loudly at package
		// init beats silently treating every timestamp as UTC.
		panic("clock: cannot load location " + name + ": " + err.Error())
	}
	return loc
}

// Clock is a source of "now". Production code uses Real; tests use a
// Fixed clock to make scheduler and derivation behavior
// deterministic.
type Clock interface {
	// NowUTC returns the current instant in UTC.
	NowUTC() time.Time
	// NowCivil returns the current instant in Eastern civil time.
	NowCivil() time.Time
}

// Real is a Clock backed by the system wall clock.
type Real struct{}

// NowUTC returns time.Now() in UTC.
func (Real) NowUTC() time.Time { return time.Now().UTC() }

// NowCivil returns time.Now() converted to Eastern civil time.
func (Real) NowCivil() time.Time { return time.Now().In(Eastern) }

// Fixed is a Clock that always returns the same instant, useful for
// tests that want a single frozen "now".
type Fixed struct {
	At time.Time
}

// NowUTC returns the fixed instant in UTC.
func (f Fixed) NowUTC() time.Time { return f.At.UTC() }

// NowCivil returns the fixed instant in Eastern civil time.
func (f Fixed) NowCivil() time.Time { return f.At.In(Eastern) }

// ToCivil converts an instant to Eastern civil time, preserving the
// absolute instant but rendering it with the America/New_York offset.
func ToCivil(t time.Time) time.Time {
	return t.In(Eastern)
}
