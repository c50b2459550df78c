// Package senate parses the two Senate floor-activity feeds: the
// schedule-record JSON document (a single upcoming-or-current convene
// instant) and the free-text floor-activity XML document (matched with
// regular expressions, since the Senate does not publish a structured
// action tree the way the House does).
package senate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/session"
)

// scheduleDoc mirrors the Senate schedule feed's convene-time fields,
// which arrive as strings rather than a single timestamp.
type scheduleDoc struct {
	ConveneYear    string `json:"conveneYear"`
	ConveneMonth   string `json:"conveneMonth"`
	ConveneDay     string `json:"conveneDay"`
	ConveneHour    string `json:"conveneHour"`
	ConveneMinutes string `json:"conveneMinutes"`
}

// ParseSchedule parses the Senate schedule record and returns the
// single convene event it implies. now is the civil instant the
// document was fetched at, used to decide whether the composed convene
// time has already happened (CONVENE) or is still ahead (CONVENE
// SCHEDULED).
//
// If the composed convene time lands exactly on now to the minute,
// there is no principled way to tell "just convened" from "about to
// convene" apart — the feed's own granularity can't disambiguate a
// race between a poll and the feed's own update. That state is
// treated as fatal rather than guessed.
func ParseSchedule(logger *slog.Logger, body []byte, now time.Time, sourceURL string) ([]session.Event, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc scheduleDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		logger.Warn("senate: failed to parse schedule document", "url", sourceURL, "error", err)
		return nil, nil
	}

	year, errY := strconv.Atoi(doc.ConveneYear)
	month, errM := strconv.Atoi(doc.ConveneMonth)
	day, errD := strconv.Atoi(doc.ConveneDay)
	hour, errH := strconv.Atoi(doc.ConveneHour)
	minute, errMin := strconv.Atoi(doc.ConveneMinutes)
	if errY != nil || errM != nil || errD != nil || errH != nil || errMin != nil {
		logger.Warn("senate: schedule record has non-numeric convene fields", "url", sourceURL)
		return nil, nil
	}

	convene := time.Date(year, time.Month(month), day, hour, minute, 0, 0, clock.Eastern)
	nowMinute := now.Truncate(time.Minute)

	if convene.Equal(nowMinute) {
		return nil, session.NewFatalError("senate", fmt.Sprintf(
			"schedule record convene time %s lands exactly on the poll instant", convene.Format(time.RFC3339)))
	}

	kind := session.CONVENESCHEDULED
	if convene.Before(nowMinute) {
		kind = session.CONVENE
	}

	return []session.Event{{
		Kind:         kind,
		Timestamp:    convene,
		SourceFormat: session.SourceJSON,
		SourceURL:    sourceURL,
	}}, nil
}
