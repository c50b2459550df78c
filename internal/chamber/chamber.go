// Package chamber ties the feed fetchers, format-specific parsers, the
// event log's merge/derive logic, the adaptive scheduler, and the
// on-disk cache together into one chamber's refresh cycle. Everything
// it depends on is a pure function or a narrow interface — this
// package is the only place that knows "House" and "Senate" are
// different enough in feed shape to need different fetch/parse
// sequences but identical enough in every other respect to share one
// orchestration loop.
package chamber

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/chamberwatch/internal/cache"
	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/events"
	"github.com/nugget/chamberwatch/internal/fetch"
	"github.com/nugget/chamberwatch/internal/opstate"
	"github.com/nugget/chamberwatch/internal/parse/house"
	"github.com/nugget/chamberwatch/internal/parse/senate"
	"github.com/nugget/chamberwatch/internal/scheduler"
	"github.com/nugget/chamberwatch/internal/session"
)

// Kind identifies which feed shape a Chamber speaks.
type Kind int

const (
	House Kind = iota
	Senate
)

// Chamber drives one legislative chamber's refresh cycle: fetch, parse,
// merge into the event log, derive signals, advance the scheduler, and
// persist the result. All exported methods are safe for concurrent use.
type Chamber struct {
	Name        string
	Kind        Kind
	Clock       clock.Clock
	Fetch       *fetch.Fetcher
	Cache       *cache.Store
	Sched       *scheduler.Scheduler
	Bus         *events.Bus
	Logger      *slog.Logger
	BaseURL     string // override for the per-day floor-activity document base
	ScheduleURL string // Senate only: override for the schedule-record URL

	// OpState, if set, records each fetch's URL/status/timestamp under
	// a namespace keyed to this chamber's Name — ephemeral operational
	// telemetry, not part of the event-log cache contract. Nil-safe:
	// a nil OpState simply skips recording.
	OpState *opstate.Store

	mu      sync.Mutex
	log     *session.Log
	signals session.Signals
}

// New creates a Chamber with an empty log. Call Restore before serving
// traffic to seed it from a prior run's cache.
func New(name string, kind Kind, c clock.Clock, f *fetch.Fetcher, store *cache.Store, bus *events.Bus, logger *slog.Logger) *Chamber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chamber{
		Name:   name,
		Kind:   kind,
		Clock:  c,
		Fetch:  f,
		Cache:  store,
		Sched:  scheduler.New(c, logger),
		Bus:    bus,
		Logger: logger,
		log:    session.NewLog(nil),
	}
}

// Restore loads this chamber's last persisted state from the cache, if
// any, seeding both the event log and the scheduler's cadence.
func (ch *Chamber) Restore() error {
	evs, updated, nextUpdate, hasNext, err := ch.Cache.LoadEvents(ch.Name)
	if err != nil {
		return err
	}

	ch.mu.Lock()
	ch.log = session.NewLog(evs)
	now := ch.Clock.NowCivil()
	ch.signals = session.Derive(ch.log.Events(), now)
	ch.mu.Unlock()

	if hasNext {
		ch.Sched.Restore(updated, nextUpdate)
	}
	return nil
}

// Due reports whether this chamber is due for a refresh right now.
func (ch *Chamber) Due(force bool) bool {
	return ch.Sched.Due(force)
}

// Signals returns the most recently derived public signals.
func (ch *Chamber) Signals() session.Signals {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.signals
}

// Events returns a copy of the current event log, newest first.
func (ch *Chamber) Events() []session.Event {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return append([]session.Event(nil), ch.log.Events()...)
}

// Update runs one refresh cycle: fetch, parse, merge, derive, advance
// the scheduler, and persist. It returns whether the derived public
// signals changed as a result. A session.RecoverableError from a single
// document is logged and treated as "no new events from that source"
// rather than aborting the cycle; a session.FatalError is returned to
// the caller, which should stop driving this chamber.
func (ch *Chamber) Update(ctx context.Context, force bool) (bool, error) {
	if !ch.Sched.Due(force) {
		return false, nil
	}

	now := ch.Clock.NowCivil()
	runID, err := uuid.NewV7()
	if err != nil {
		runID = uuid.New()
	}
	logger := ch.Logger.With("run_id", runID.String())
	logger.Debug("chamber: refresh run starting", "chamber", ch.Name, "forced", force)
	ch.Bus.Publish(events.Event{
		Timestamp: now, Source: events.SourceChamber, Kind: events.KindRefreshStart,
		Data: map[string]any{"chamber": ch.Name, "forced": force, "run_id": runID.String()},
	})
	start := time.Now()

	var batch []session.Event
	var fetchErr error
	switch ch.Kind {
	case House:
		batch, fetchErr = ch.fetchHouse(ctx, now)
	case Senate:
		batch, fetchErr = ch.fetchSenate(ctx, now)
	}

	var fatal *session.FatalError
	if errors.As(fetchErr, &fatal) {
		ch.Bus.Publish(events.Event{
			Timestamp: now, Source: events.SourceChamber, Kind: events.KindRefreshError,
			Data: map[string]any{"chamber": ch.Name, "fatal": true, "error": fetchErr.Error()},
		})
		return false, fetchErr
	}
	if fetchErr != nil {
		logger.Warn("chamber: refresh fetch failed, continuing with events already in hand",
			"chamber", ch.Name, "error", fetchErr)
		ch.Bus.Publish(events.Event{
			Timestamp: now, Source: events.SourceChamber, Kind: events.KindRefreshError,
			Data: map[string]any{"chamber": ch.Name, "fatal": false, "error": fetchErr.Error()},
		})
	}

	ch.mu.Lock()
	ch.log.Merge(now, batch)
	newSignals := session.Derive(ch.log.Events(), now)
	changed := !newSignals.Equal(ch.signals)
	ch.signals = newSignals
	snapshotEvents := append([]session.Event(nil), ch.log.Events()...)
	ch.mu.Unlock()

	next := ch.Sched.Advance(now, newSignals)

	if err := ch.persist(snapshotEvents, now, next, runID); err != nil {
		logger.Error("chamber: cache save failed", "chamber", ch.Name, "error", err)
	}

	if changed {
		ch.Bus.Publish(events.Event{
			Timestamp: now, Source: events.SourceChamber, Kind: events.KindSignalChange,
			Data: signalsData(ch.Name, newSignals),
		})
	}
	ch.Bus.Publish(events.Event{
		Timestamp: now, Source: events.SourceChamber, Kind: events.KindRefreshComplete,
		Data: map[string]any{"chamber": ch.Name, "changed": changed, "duration_ms": time.Since(start).Milliseconds(), "run_id": runID.String()},
	})
	ch.Bus.Publish(events.Event{
		Timestamp: now, Source: events.SourceScheduler, Kind: events.KindScheduleComputed,
		Data: map[string]any{"chamber": ch.Name, "next_update": next},
	})

	return changed, nil
}

// houseBackfillDays bounds how far fetchHouse walks backward looking
// for a loadable prior-day journal before giving up for this cycle.
const houseBackfillDays = 14

// fetchHouse fetches today's journal, then walks backward one day at a
// time until the first loadable prior-day response. If today was itself
// loadable, the prior day is parsed in onlyEOD mode (we only need its
// end-of-day continuation record); if today was not loadable, the prior
// day is parsed fully, since it's standing in for today.
func (ch *Chamber) fetchHouse(ctx context.Context, now time.Time) ([]session.Event, error) {
	url := fetch.HouseJournalURL(ch.BaseURL, now)
	res, err := ch.Fetch.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	ch.recordFetch(res)

	todayLoadable := res.Loadable
	var batch []session.Event
	if todayLoadable {
		batch = house.Parse(ch.Logger, res.Body, url, false)
	} else {
		ch.Logger.Debug("house: today's journal not yet loadable", "url", url, "status", res.StatusCode)
	}

	for day := 1; day <= houseBackfillDays; day++ {
		prior := now.AddDate(0, 0, -day)
		pURL := fetch.HouseJournalURL(ch.BaseURL, prior)
		pres, perr := ch.Fetch.Get(ctx, pURL)
		if perr != nil {
			continue
		}
		ch.recordFetch(pres)
		if !pres.Loadable {
			continue
		}
		batch = append(batch, house.Parse(ch.Logger, pres.Body, pURL, todayLoadable)...)
		break
	}

	return batch, nil
}

// senateDayLimit bounds how many prior days' floor XML fetchSenate will
// fetch before giving up even if the log still lacks both a CONVENE and
// an ADJOURN event.
const senateDayLimit = 10

// fetchSenate always parses the schedule record, then fetches prior
// days' floor XML backward from today, merging into a scratch copy of
// the current log so the walk can stop as soon as that log holds at
// least one CONVENE and one ADJOURN event, or when senateDayLimit is
// reached.
func (ch *Chamber) fetchSenate(ctx context.Context, now time.Time) ([]session.Event, error) {
	scheduleURL := fetch.SenateScheduleURL(ch.ScheduleURL)
	sres, err := ch.Fetch.Get(ctx, scheduleURL)
	if err != nil {
		return nil, err
	}
	ch.recordFetch(sres)

	var batch []session.Event
	if sres.Loadable {
		evs, perr := senate.ParseSchedule(ch.Logger, sres.Body, now, scheduleURL)
		if perr != nil {
			return nil, perr
		}
		batch = append(batch, scheduleEventsIfStateChanged(ch.Events(), now, evs)...)
	}

	scratch := session.NewLog(ch.Events())
	scratch.Merge(now, batch)

	for day := 0; day <= senateDayLimit; day++ {
		if hasConveneAndAdjourn(scratch.Events()) {
			break
		}
		target := now.AddDate(0, 0, -day)
		floorURL := fetch.SenateFloorXMLURL(ch.BaseURL, target)
		fres, ferr := ch.Fetch.GetWithRedirectHistory(ctx, floorURL)
		if ferr != nil {
			continue
		}
		ch.recordFetch(fres)
		if !fres.Loadable {
			continue
		}
		evs := senate.ParseFloor(ch.Logger, fres.Body, floorURL)
		batch = append(batch, evs...)
		scratch.Merge(now, evs)
	}

	return batch, nil
}

// scheduleEventsIfStateChanged implements the schedule record's merge
// gate: the event it implies (CONVENE or CONVENE_SCHEDULED) is only
// worth folding in if the convened state it implies actually differs
// from what the log already derives at now. A schedule record polled
// while nothing has changed would otherwise just re-assert a CONVENE
// event the tree/text parsers already established, or a scheduled
// convening already reflected by an existing CONVENE_SCHEDULED.
func scheduleEventsIfStateChanged(existing []session.Event, now time.Time, evs []session.Event) []session.Event {
	if len(evs) == 0 {
		return nil
	}
	current := session.Derive(existing, now).Convened
	implied := session.False
	if evs[0].Kind == session.CONVENE {
		implied = session.True
	}
	if implied == current {
		return nil
	}
	return evs
}

// hasConveneAndAdjourn reports whether the log already holds at least
// one CONVENE and one ADJOURN event, the Senate walk's stop condition.
func hasConveneAndAdjourn(events []session.Event) bool {
	var hasConvene, hasAdjourn bool
	for _, e := range events {
		switch e.Kind {
		case session.CONVENE:
			hasConvene = true
		case session.ADJOURN:
			hasAdjourn = true
		}
		if hasConvene && hasAdjourn {
			return true
		}
	}
	return false
}

func (ch *Chamber) persist(evs []session.Event, updated, next time.Time, runID uuid.UUID) error {
	records := make([]cache.EventRecord, 0, len(evs))
	for _, e := range evs {
		records = append(records, cache.ToRecord(e))
	}
	return ch.Cache.Save(cache.Snapshot{
		Chamber:       ch.Name,
		Updated:       updated,
		NextUpdate:    next,
		HasNextUpdate: true,
		Events:        records,
		LastRunID:     runID.String(),
	})
}

func signalsData(chamber string, s session.Signals) map[string]any {
	d := map[string]any{"chamber": chamber, "convened": s.Convened.String()}
	if s.ConvenedAt != nil {
		d["convened_at"] = *s.ConvenedAt
	}
	if s.AdjournedAt != nil {
		d["adjourned_at"] = *s.AdjournedAt
	}
	if s.ConvenesAt != nil {
		d["convenes_at"] = *s.ConvenesAt
	}
	return d
}
