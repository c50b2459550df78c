// Package scheduler implements the adaptive per-chamber poll cadence:
// convened chambers get polled every couple of minutes, chambers with a
// known future convening get polled just before it, and idle chambers
// get polled on a slow 10-minute cadence. It owns no domain knowledge
// beyond the session.Signals it's handed — the chamber package is
// responsible for running a refresh and deriving those signals.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/session"
)

// Cadence constants used by NextUpdate. Exported so callers (tests,
// status output) can reason about the schedule without duplicating
// magic numbers.
const (
	ConvenedInterval = 2 * time.Minute
	MissedInterval   = 60 * time.Second
	IdleInterval     = 10 * time.Minute
	LeadTime         = 10 * time.Minute
)

// zeroSeconds truncates a time to whole minutes, keeping its location.
func zeroSeconds(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// NextUpdate computes the instant a chamber should next be polled,
// given the instant of the refresh that just completed (updated), the
// signals derived from that refresh, and the current time (used only
// to decide whether a known convenesAt lead time has already passed).
//
//   - convened: updated + 2 minutes, seconds and sub-second zeroed.
//   - not convened, convenesAt known: convenesAt - 10 minutes, unless
//     that lead time has already passed, in which case updated + 60s.
//   - otherwise: updated + 10 minutes.
func NextUpdate(updated time.Time, signals session.Signals, now time.Time) time.Time {
	if signals.Convened == session.True {
		return zeroSeconds(updated.Add(ConvenedInterval))
	}

	if signals.ConvenesAt != nil {
		target := signals.ConvenesAt.Add(-LeadTime)
		if target.After(now) {
			return target
		}
		return updated.Add(MissedInterval)
	}

	return updated.Add(IdleInterval)
}

// Due reports whether a refresh should run now. force always returns
// true. With no prior next-update known, a refresh is always due.
// Otherwise, due when now has reached or passed nextUpdate.
func Due(force bool, hasNextUpdate bool, nextUpdate, now time.Time) bool {
	if force {
		return true
	}
	if !hasNextUpdate {
		return true
	}
	return !now.Before(nextUpdate)
}

// Scheduler tracks one chamber's cadence state: the instant of its last
// completed refresh and the instant it should next be polled. It is
// safe for concurrent use, though in practice each chamber drives its
// own Scheduler from a single goroutine.
type Scheduler struct {
	Clock  clock.Clock
	Logger *slog.Logger

	mu            sync.Mutex
	updated       time.Time
	nextUpdate    time.Time
	hasNextUpdate bool
}

// New creates a Scheduler with no prior refresh recorded — its first
// Due call always reports true.
func New(c clock.Clock, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{Clock: c, Logger: logger}
}

// Due reports whether a refresh is due right now.
func (s *Scheduler) Due(force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Clock.NowCivil()
	return Due(force, s.hasNextUpdate, s.nextUpdate, now)
}

// Advance records that a refresh completed at `updated` producing
// `signals`, recomputes the next-update instant, and returns it.
func (s *Scheduler) Advance(updated time.Time, signals session.Signals) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Clock.NowCivil()
	next := NextUpdate(updated, signals, now)

	s.updated = updated
	s.nextUpdate = next
	s.hasNextUpdate = true

	s.Logger.Debug("scheduler: recomputed next update",
		"convened", signals.Convened.String(),
		"updated", updated,
		"next_update", next,
	)

	return next
}

// Restore seeds scheduler state from a loaded cache entry, e.g. on
// process start, so the first Due call honors a next-update computed
// before the restart rather than always firing immediately.
func (s *Scheduler) Restore(updated, nextUpdate time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = updated
	s.nextUpdate = nextUpdate
	s.hasNextUpdate = true
}

// Updated returns the instant of the last completed refresh.
func (s *Scheduler) Updated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// NextUpdate returns the instant the scheduler currently wants to
// refresh next, and whether one has been computed yet.
func (s *Scheduler) NextUpdate() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextUpdate, s.hasNextUpdate
}
