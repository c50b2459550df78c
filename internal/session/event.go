// Package session holds the chamber-agnostic event log model: the
// Event type, the closed kind enumeration, log invariants (sort, trim,
// merge/supersession), the backward/forward nearest-event search, and
// the pure derivation of the four public signals. Nothing in this
// package knows about HTTP, XML, or JSON — it operates purely on
// already-parsed Event values, the way both feed parsers and the cache
// loader produce them.
package session

import "time"

// Kind is the closed enumeration of event types a chamber's log can
// hold. Values match the numbering of the source system's event
// constants so cache files and logs read the same way across
// reimplementations.
type Kind int

const (
	OTHER Kind = iota
	CONVENE
	CONVENESCHEDULED
	RECONVENE
	ADJOURN
	RECESSTIME
	RECESSCOC
	RECESS15M
	_ // 8 unused in the source numbering
	_ // 9 unused in the source numbering
	MORNINGDEBATE
	DEBATEBILL
)

const (
	VOTEVOICE Kind = iota + 21
	VOTERECORDED
)

// String renders a Kind as its canonical name, used in logging and
// cache serialization.
func (k Kind) String() string {
	switch k {
	case OTHER:
		return "OTHER"
	case CONVENE:
		return "CONVENE"
	case CONVENESCHEDULED:
		return "CONVENE_SCHEDULED"
	case RECONVENE:
		return "RECONVENE"
	case ADJOURN:
		return "ADJOURN"
	case RECESSTIME:
		return "RECESS_TIME"
	case RECESSCOC:
		return "RECESS_COC"
	case RECESS15M:
		return "RECESS_15M"
	case MORNINGDEBATE:
		return "MORNING_DEBATE"
	case DEBATEBILL:
		return "DEBATE_BILL"
	case VOTEVOICE:
		return "VOTE_VOICE"
	case VOTERECORDED:
		return "VOTE_RECORDED"
	default:
		return "UNKNOWN"
	}
}

// ParseKind converts a kind name back into a Kind. The ok result is
// false for names the current build doesn't recognize — callers (the
// cache loader, primarily) must discard the entry rather than fail,
// so that a cache written by a future build with new event kinds still
// loads under an older one.
func ParseKind(name string) (Kind, bool) {
	for k := OTHER; k <= VOTERECORDED; k++ {
		if k.String() == name && k.String() != "UNKNOWN" {
			return k, true
		}
	}
	return OTHER, false
}

// Recess is the set of kinds the glossary calls "a recess".
var Recess = []Kind{RECESSTIME, RECESSCOC}

// Vote is the set of kinds that represent a floor vote.
var Vote = []Kind{VOTEVOICE, VOTERECORDED}

// AllEvents is every kind except OTHER and RECESS15M — the default
// filter for Search and for activity lookups.
var AllEvents = []Kind{
	CONVENE, CONVENESCHEDULED, RECONVENE, ADJOURN, RECESSTIME, RECESSCOC,
	MORNINGDEBATE, DEBATEBILL, VOTEVOICE, VOTERECORDED,
}

// Source identifies which feed format produced an event.
type Source string

const (
	SourceXML   Source = "XML"
	SourceJSON  Source = "JSON"
	SourceTree  Source = "structured"
)

// Event is an immutable record of one piece of chamber floor activity.
// Fields follow the attributes enumerated by the session-state model:
// an event is either tree-sourced (carries a stable upstream ID and an
// Updated revision instant) or regex/record-sourced (ID is empty;
// Updated is zero).
type Event struct {
	// ID is the stable upstream identifier for tree-sourced events.
	// Empty for regex- and record-derived events — Merge uses that
	// emptiness to choose timestamp-based supersession instead of
	// id-based supersession.
	ID string
	// Kind is the event's type.
	Kind Kind
	// Timestamp is the instant the event occurred or is scheduled to
	// occur, always in Eastern civil time with an explicit offset.
	Timestamp time.Time
	// Updated is when the upstream last revised this record. Zero
	// (IsZero) for regex-derived and schedule-record events, which
	// have no revision concept.
	Updated time.Time
	// ActID is the upstream action code, tree parser only.
	ActID string
	// Description is the human-readable source text.
	Description string
	// SourceFormat records which feed format produced the event.
	SourceFormat Source
	// SourceURL is the URL of the document the event was parsed from.
	SourceURL string
	// ActionItem is optional free text for votes and debates.
	ActionItem string
}

// HasID reports whether this is a tree-sourced event with a stable
// upstream identifier, as opposed to a regex/record-derived event.
func (e Event) HasID() bool {
	return e.ID != ""
}

func kindIn(k Kind, kinds []Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
