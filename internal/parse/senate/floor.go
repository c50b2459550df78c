package senate

import (
	"encoding/xml"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/session"
)

// floorDoc is the Senate's free-text floor-activity XML document: a
// base date, an intro_text convening note, and zero or more typed
// sections (recess, adjournment) carrying the narrative prose that
// must be parsed with regular expressions, since the Senate does not
// publish a structured action tree the way the House does.
type floorDoc struct {
	XMLName   xml.Name  `xml:"floor_activity"`
	DateISO   string    `xml:"date_iso_8601"`
	IntroText string    `xml:"intro_text"`
	Sections  []section `xml:"section"`
}

// section is one of the document's typed narrative blocks. Only
// "recess" and "adjournment" are meaningful here.
type section struct {
	Type    string `xml:"type,attr"`
	Content string `xml:"content"`
}

func findSection(sections []section, typ string) (section, bool) {
	for _, s := range sections {
		if strings.EqualFold(s.Type, typ) {
			return s, true
		}
	}
	return section{}, false
}

// compileTimeRegex builds a regex that looks for prefix followed by a
// clock time ("10", "10:30") and an am/pm marker with optional dots
// and spacing ("a.m.", "am", "a. m."). prefix is matched literally.
func compileTimeRegex(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) +
		`\s*(\d{1,2})(?::(\d{2}))?\s*([ap])\s*\.?\s*m\s*\.?`)
}

var (
	// reToOrderAt matches the intro_text's convening clause: "... to
	// order at 10 a.m.".
	reToOrderAt = compileTimeRegex("to order at")
	// reAt matches the departure clock time inside a recess or
	// adjournment section's content: "... at 6:30 p.m. ...".
	reAt = compileTimeRegex("at")
	// reUntil matches the next-convening clock time in the suffix of a
	// recess/adjournment section starting at the first "until": "...
	// until 10 a.m. tomorrow."
	reUntil = compileTimeRegex("until")

	reUntilWord    = regexp.MustCompile(`(?i)until`)
	reTomorrow     = regexp.MustCompile(`(?i)\btomorrow\b`)
	reToday        = regexp.MustCompile(`(?i)\btoday\b`)
	reExplicitDate = regexp.MustCompile(`(?i)on\s+([A-Za-z]+)\s+(\d{1,2}),\s*(\d{4})`)
)

var monthByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// ParseFloor extracts events from one day's Senate floor-activity
// document. Unlike the House tree, every event here is regex/record
// derived: IDs are never populated, so Merge falls back to
// timestamp-based supersession for all of them.
//
// A recess section and an adjournment section shouldn't both appear on
// the same day; if they do, the recess takes priority, matching the
// order the upstream parser checks them in.
func ParseFloor(logger *slog.Logger, body []byte, sourceURL string) []session.Event {
	if logger == nil {
		logger = slog.Default()
	}

	var doc floorDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		logger.Warn("senate: failed to parse floor activity document", "url", sourceURL, "error", err)
		return nil
	}

	base, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(doc.DateISO), clock.Eastern)
	if err != nil {
		logger.Warn("senate: unparseable date_iso_8601", "value", doc.DateISO, "error", err)
		return nil
	}

	var events []session.Event

	if strings.TrimSpace(doc.IntroText) != "" {
		if e, ok := parseIntroText(doc.IntroText, base, sourceURL); ok {
			events = append(events, e)
		}
	} else {
		logger.Debug("senate: document has no intro_text, nothing usable for convening", "url", sourceURL)
	}

	if recess, ok := findSection(doc.Sections, "recess"); ok {
		events = append(events, parseDeparture(logger, session.RECESSTIME, recess.Content, base, sourceURL)...)
	} else if adjournment, ok := findSection(doc.Sections, "adjournment"); ok {
		events = append(events, parseDeparture(logger, session.ADJOURN, adjournment.Content, base, sourceURL)...)
	}

	return events
}

// parseIntroText extracts the convening clock time from intro_text and
// combines it with base's date.
func parseIntroText(introText string, base time.Time, sourceURL string) (session.Event, bool) {
	text := strings.ReplaceAll(introText, "\n", "")
	hour, minute, ok := timeFromSenateString(text, reToOrderAt)
	if !ok {
		return session.Event{}, false
	}
	return session.Event{
		Kind:         session.CONVENE,
		Timestamp:    atTimeOn(base, hour, minute),
		Description:  text,
		SourceFormat: session.SourceXML,
		SourceURL:    sourceURL,
	}, true
}

// parseDeparture extracts the departure event (RECESS_TIME or ADJOURN)
// from a recess/adjournment section's content, stamped at the "at
// ⟨time⟩" instant the text names, plus a companion CONVENE_SCHEDULED
// event when the text's "until ..." clause resolves to a next
// convening. A section whose departure time can't be recovered yields
// no events rather than guessing a timestamp.
func parseDeparture(logger *slog.Logger, kind session.Kind, content string, base time.Time, sourceURL string) []session.Event {
	text := strings.ReplaceAll(content, "\n", "")

	hour, minute, ok := timeFromSenateString(text, reAt)
	if !ok {
		logger.Warn("senate: unresolvable departure time in section content", "kind", kind.String(), "text", text)
		return nil
	}

	events := []session.Event{{
		Kind:         kind,
		Timestamp:    atTimeOn(base, hour, minute),
		Description:  text,
		SourceFormat: session.SourceXML,
		SourceURL:    sourceURL,
	}}

	if e, ok := parseNextConvening(logger, text, base, sourceURL); ok {
		events = append(events, e)
	}
	return events
}

// parseNextConvening extracts the next-convening event from the suffix
// of departText starting at the first "until" occurrence: a clock time
// via reUntil, and a date via "tomorrow", an explicit "on ⟨Month⟩
// ⟨day⟩, ⟨year⟩", or (falling back) an explicit "today".
func parseNextConvening(logger *slog.Logger, departText string, base time.Time, sourceURL string) (session.Event, bool) {
	loc := reUntilWord.FindStringIndex(departText)
	if loc == nil {
		logger.Debug("senate: no 'until' clause in departure text, no next convening to recover", "text", departText)
		return session.Event{}, false
	}
	convening := departText[loc[0]:]

	hour, minute, ok := timeFromSenateString(convening, reUntil)
	if !ok {
		logger.Warn("senate: unresolvable next-convene time", "text", convening)
		return session.Event{}, false
	}

	date, ok := nextConveningDate(convening, base)
	if !ok {
		logger.Warn("senate: unresolvable next-convene date", "text", convening)
		return session.Event{}, false
	}

	return session.Event{
		Kind:         session.CONVENESCHEDULED,
		Timestamp:    atTimeOn(date, hour, minute),
		Description:  departText,
		SourceFormat: session.SourceXML,
		SourceURL:    sourceURL,
	}, true
}

// nextConveningDate resolves the date half of an "until ..." clause:
// "tomorrow" means the day after base; an explicit "on Month Day,
// Year" names its own date (month matched case-insensitively against
// English month names); "today" (or no date language at all) means
// base's own date.
func nextConveningDate(convening string, base time.Time) (time.Time, bool) {
	switch {
	case reTomorrow.MatchString(convening):
		return base.AddDate(0, 0, 1), true
	case reExplicitDate.MatchString(convening):
		m := reExplicitDate.FindStringSubmatch(convening)
		month, ok := monthByName[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, false
		}
		day, errD := strconv.Atoi(m[2])
		year, errY := strconv.Atoi(m[3])
		if errD != nil || errY != nil {
			return time.Time{}, false
		}
		return time.Date(year, month, day, 0, 0, 0, 0, clock.Eastern), true
	case reToday.MatchString(convening):
		return base, true
	default:
		return time.Time{}, false
	}
}

// atTimeOn combines day's date with an hour/minute already computed by
// timeFromSenateString.
func atTimeOn(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, clock.Eastern)
}

// timeFromSenateString extracts a clock time from text using re, which
// must be one of the package's prefix-anchored time regexes. If re
// doesn't match, "noon" or "midnight" appearing anywhere in text is
// taken as a fallback, mirroring the upstream parser's own leniency.
func timeFromSenateString(text string, re *regexp.Regexp) (hour, minute int, ok bool) {
	if m := re.FindStringSubmatch(text); m != nil {
		return clockFromMatch(m)
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "noon"):
		return 12, 0, true
	case strings.Contains(lower, "midnight"):
		return 0, 0, true
	}
	return 0, 0, false
}

// clockFromMatch turns a compileTimeRegex submatch (hour, optional
// minute, am/pm letter) into 24-hour hour/minute values.
func clockFromMatch(m []string) (hour, minute int, ok bool) {
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	min := 0
	if m[2] != "" {
		min, err = strconv.Atoi(m[2])
		if err != nil {
			return 0, 0, false
		}
	}
	if h == 12 {
		h = 0
	}
	if strings.EqualFold(m[3], "p") {
		h += 12
	}
	return h, min, true
}

// parseClockPhrase parses a standalone clock phrase such as "noon",
// "midnight", or "2:30 p.m." — used by tests exercising the clock
// parsing rules directly.
func parseClockPhrase(phrase string) (hour, minute int, ok bool) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	switch phrase {
	case "noon":
		return 12, 0, true
	case "midnight":
		return 0, 0, true
	}
	m := reClock.FindStringSubmatch(phrase)
	if m == nil {
		return 0, 0, false
	}
	return clockFromMatch([]string{m[0], m[1], m[2], m[3]})
}

var reClock = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([ap])\.m\.$`)
