// Package house parses the House Clerk's per-day floor-activity journal
// — a structured XML tree keyed by date — into session.Events. Parsing
// never throws: a malformed or unexpected document logs a warning and
// yields zero events so a single bad day never aborts a refresh.
package house

import (
	"encoding/xml"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/session"
)

// House action codes dispatched by Parse. Retained verbatim from the
// upstream feed; they have no meaning beyond "which branch to take".
const (
	actConvene        = "H20100"
	actAdjournOrRecess = "H61000"
	actDebate         = "H8D000"
	actVoteRecorded   = "H37100"
	actVoteVoice      = "H35000"
)

type floorUpdateDoc struct {
	XMLName      xml.Name     `xml:"floor_update"`
	PubDate      string       `xml:"pubDate"`
	FloorActions floorActions `xml:"floor_actions"`
}

type floorActions struct {
	LegislativeDayFinished []legislativeDayFinished `xml:"legislative_day_finished"`
	FloorAction            []floorAction            `xml:"floor_action"`
}

type legislativeDayFinished struct {
	NextConvenes string `xml:"next-legislative-day-convenes,attr"`
}

type floorAction struct {
	UniqueID          string         `xml:"unique-id,attr"`
	UpdateDateTime    string         `xml:"update-date-time,attr"`
	ActID             string         `xml:"act-id,attr"`
	ActionTime        actionTimeElem `xml:"action_time"`
	ActionDescription string         `xml:"action_description"`
}

type actionTimeElem struct {
	ForSearch string `xml:"for-search,attr"`
}

const (
	forSearchLayout = "20060102T15:04:05"
	updatedLayout   = "20060102T15:04"
	convenesLayout  = "20060102T15:04"
	// pubDateLayout matches the journal's pubDate text once its
	// trailing zone abbreviation ("EST"/"EDT") is stripped.
	pubDateLayout = "Mon, 02 Jan 2006 15:04:05"
)

// parsePubDate parses the document's pubDate into an Eastern civil
// instant. pubDate arrives as an RFC1123-ish string with a zone name
// suffix ("Wed, 12 Jun 2024 10:00:00 EDT") rather than a numeric
// offset, so the zone name is stripped and clock.Eastern supplies the
// actual offset.
func parsePubDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if idx := strings.LastIndex(value, " "); idx > 0 {
		value = value[:idx]
	}
	ts, err := time.ParseInLocation(pubDateLayout, value, clock.Eastern)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Parse extracts events from one day's House floor journal. In onlyEOD
// mode, only the end-of-day CONVENE_SCHEDULED record (from
// legislative_day_finished) is returned, and parsing stops at the first
// one found — used when walking backward to recover a prior day's
// adjournment continuation without re-deriving that day's whole
// history.
func Parse(logger *slog.Logger, body []byte, sourceURL string, onlyEOD bool) []session.Event {
	if logger == nil {
		logger = slog.Default()
	}

	var doc floorUpdateDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		logger.Warn("house: failed to parse journal document", "url", sourceURL, "error", err)
		return nil
	}

	pubDate, ok := parsePubDate(doc.PubDate)
	if !ok {
		logger.Debug("house: unparseable or missing pubDate, no document-level updated anchor", "value", doc.PubDate)
	}

	if onlyEOD {
		for _, fin := range doc.FloorActions.LegislativeDayFinished {
			if e, ok := endOfDayEvent(logger, fin, sourceURL); ok {
				return []session.Event{e}
			}
		}
		return nil
	}

	var events []session.Event

	for _, fin := range doc.FloorActions.LegislativeDayFinished {
		if e, ok := endOfDayEvent(logger, fin, sourceURL); ok {
			events = append(events, e)
		}
	}

	for _, fa := range doc.FloorActions.FloorAction {
		if e, ok := floorActionEvent(logger, fa, sourceURL, pubDate); ok {
			events = append(events, e)
		}
	}

	return events
}

func endOfDayEvent(logger *slog.Logger, fin legislativeDayFinished, sourceURL string) (session.Event, bool) {
	if fin.NextConvenes == "" {
		return session.Event{}, false
	}
	ts, err := time.ParseInLocation(convenesLayout, fin.NextConvenes, clock.Eastern)
	if err != nil {
		logger.Warn("house: unparseable next-legislative-day-convenes", "value", fin.NextConvenes, "error", err)
		return session.Event{}, false
	}
	return session.Event{
		Kind:         session.CONVENESCHEDULED,
		Timestamp:    ts,
		SourceFormat: session.SourceTree,
		SourceURL:    sourceURL,
	}, true
}

// floorActionEvent builds an event from one floor_action. pubDate is
// the document's own timestamp, used as a fallback Updated anchor when
// the action's own update-date-time is absent or unparseable, so a
// tree-sourced event is never left with a zero Updated the merge can't
// reason about freshness from.
func floorActionEvent(logger *slog.Logger, fa floorAction, sourceURL string, pubDate time.Time) (session.Event, bool) {
	if fa.ActionTime.ForSearch == "" {
		logger.Warn("house: floor_action missing action_time for-search", "act_id", fa.ActID)
		return session.Event{}, false
	}
	ts, err := time.ParseInLocation(forSearchLayout, fa.ActionTime.ForSearch, clock.Eastern)
	if err != nil {
		logger.Warn("house: unparseable action_time", "value", fa.ActionTime.ForSearch, "error", err)
		return session.Event{}, false
	}

	updated := pubDate
	if fa.UpdateDateTime != "" {
		if u, err := time.ParseInLocation(updatedLayout, fa.UpdateDateTime, clock.Eastern); err == nil {
			updated = u
		} else {
			logger.Warn("house: unparseable update-date-time, falling back to pubDate", "value", fa.UpdateDateTime, "error", err)
		}
	}

	kind, actionItem, ok := classify(fa.ActID, fa.ActionDescription)
	if !ok {
		return session.Event{}, false
	}

	return session.Event{
		ID:           fa.UniqueID,
		Kind:         kind,
		Timestamp:    ts,
		Updated:      updated,
		ActID:        fa.ActID,
		Description:  fa.ActionDescription,
		SourceFormat: session.SourceTree,
		SourceURL:    sourceURL,
		ActionItem:   actionItem,
	}, true
}

// classify maps an act code plus description text to an event kind.
// Matching is substring/suffix based on the exact phrases the House
// Clerk's feed uses — this is natural-language text from a government
// publisher, not a stable machine format, so these patterns are kept as
// explicit data rather than a generic tokenizer.
func classify(actID, desc string) (kind session.Kind, actionItem string, ok bool) {
	switch actID {
	case actConvene:
		switch {
		case strings.Contains(desc, "returning from a recess"):
			return session.RECONVENE, "", true
		case strings.Contains(desc, "starting a new legislative day"):
			return session.CONVENE, "", true
		}

	case actAdjournOrRecess:
		switch {
		case strings.Contains(desc, "The House adjourned"),
			strings.Contains(desc, "do now adjourn pursuant to clause 13 of Rule I"):
			return session.ADJOURN, "", true
		case strings.Contains(desc, "do now recess. The next meeting is scheduled for"):
			return session.RECESSTIME, "", true
		case strings.HasSuffix(strings.TrimSpace(desc), "subject to the call of the Chair."):
			return session.RECESSCOC, "", true
		case strings.Contains(desc, "less than 15 minutes"):
			// Classify as RECESS_15M only when the description
			// explicitly says "less than 15 minutes", rather than
			// falling through to it by default.
			return session.RECESS15M, "", true
		}

	case actDebate:
		switch {
		case strings.Contains(desc, "MORNING-HOUR DEBATE"):
			return session.MORNINGDEBATE, "", true
		case strings.Contains(desc, "DEBATE - "):
			return session.DEBATEBILL, desc, true
		}

	case actVoteRecorded:
		return session.VOTERECORDED, desc, true

	case actVoteVoice:
		// The voice-vote act is read through "act-id" uniformly like
		// the other acts, even though the feed itself is inconsistent
		// about that attribute's name on this act.
		return session.VOTEVOICE, desc, true
	}

	return session.OTHER, "", false
}
