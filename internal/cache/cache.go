// Package cache persists a chamber's event log and scheduler state to
// disk so a restart doesn't start from a blank slate. One JSON file per
// chamber. Writes are atomic: serialize to "<path>.new", then
// os.Rename over the real path, so a crash mid-write leaves either the
// old file or the new file intact, never a truncated one. The durability
// contract here is explicitly file-based, distinct from the SQLite-backed
// key/value store in internal/opstate.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nugget/chamberwatch/internal/session"
)

// EventRecord is the on-disk representation of a session.Event. Kind is
// stored by name, not by numeric value, so a cache written by a future
// build with new event kinds can still be partially read by an older
// one — unrecognized kind names are simply discarded at load.
type EventRecord struct {
	ID           string     `json:"id,omitempty"`
	Kind         string     `json:"kind"`
	Timestamp    time.Time  `json:"timestamp"`
	Updated      *time.Time `json:"updated,omitempty"`
	ActID        string     `json:"act_id,omitempty"`
	Description  string     `json:"description,omitempty"`
	SourceFormat string     `json:"source_format,omitempty"`
	SourceURL    string     `json:"source_url,omitempty"`
	ActionItem   string     `json:"action_item,omitempty"`
}

// Snapshot is the full on-disk state of one chamber.
type Snapshot struct {
	Chamber       string        `json:"chamber"`
	Updated       time.Time     `json:"updated"`
	NextUpdate    time.Time     `json:"next_update"`
	HasNextUpdate bool          `json:"has_next_update"`
	Events        []EventRecord `json:"events"`
	// LastRunID is the UUIDv7 correlation ID of the refresh that
	// produced this snapshot; the same ID is attached to that run's
	// own log lines and its refresh events.
	LastRunID string `json:"last_run_id,omitempty"`
}

// ToRecord converts a session.Event to its on-disk form.
func ToRecord(e session.Event) EventRecord {
	r := EventRecord{
		ID:           e.ID,
		Kind:         e.Kind.String(),
		Timestamp:    e.Timestamp,
		ActID:        e.ActID,
		Description:  e.Description,
		SourceFormat: string(e.SourceFormat),
		SourceURL:    e.SourceURL,
		ActionItem:   e.ActionItem,
	}
	if !e.Updated.IsZero() {
		u := e.Updated
		r.Updated = &u
	}
	return r
}

// FromRecord converts an on-disk record back to a session.Event. ok is
// false when the record's Kind name isn't recognized by this build, in
// which case the caller must discard the entry rather than error out.
func FromRecord(r EventRecord) (session.Event, bool) {
	kind, ok := session.ParseKind(r.Kind)
	if !ok {
		return session.Event{}, false
	}
	e := session.Event{
		ID:           r.ID,
		Kind:         kind,
		Timestamp:    r.Timestamp,
		ActID:        r.ActID,
		Description:  r.Description,
		SourceFormat: session.Source(r.SourceFormat),
		SourceURL:    r.SourceURL,
		ActionItem:   r.ActionItem,
	}
	if r.Updated != nil {
		e.Updated = *r.Updated
	}
	return e, true
}

// Store persists chamber snapshots under a directory, one JSON file per
// chamber, named "<chamber>.json".
type Store struct {
	Dir    string
	Logger *slog.Logger
}

// New creates a Store rooted at dir. The directory is created on first
// Save if it doesn't already exist.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Dir: dir, Logger: logger}
}

func (s *Store) path(chamber string) string {
	return filepath.Join(s.Dir, chamber+".json")
}

// Load reads a chamber's snapshot. A missing file is not an error — it
// is the expected state on first run — and returns (nil, nil) so the
// caller starts from an empty log.
func (s *Store) Load(chamber string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(chamber))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", chamber, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", chamber, err)
	}
	return &snap, nil
}

// Save atomically writes a chamber's snapshot: marshal to "<path>.new",
// then rename over the real path. On any failure before the rename, the
// existing cache file (if any) is left untouched.
func (s *Store) Save(snap Snapshot) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir %s: %w", s.Dir, err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", snap.Chamber, err)
	}

	final := s.path(snap.Chamber)
	tmp := final + ".new"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("cache: rename %s -> %s: %w", tmp, final, err)
	}
	return nil
}

// LoadEvents loads a chamber's snapshot and converts its records to
// session.Events, silently discarding any with an unrecognized Kind
// name. Returns a nil slice and zero scheduler state if no snapshot
// exists yet.
func (s *Store) LoadEvents(chamber string) ([]session.Event, time.Time, time.Time, bool, error) {
	snap, err := s.Load(chamber)
	if err != nil {
		return nil, time.Time{}, time.Time{}, false, err
	}
	if snap == nil {
		return nil, time.Time{}, time.Time{}, false, nil
	}

	events := make([]session.Event, 0, len(snap.Events))
	for _, r := range snap.Events {
		e, ok := FromRecord(r)
		if !ok {
			s.Logger.Warn("cache: discarding event with unrecognized kind", "chamber", chamber, "kind", r.Kind)
			continue
		}
		events = append(events, e)
	}

	return events, snap.Updated, snap.NextUpdate, snap.HasNextUpdate, nil
}

// Prune re-applies session.Log's retention rule to a chamber's on-disk
// snapshot and rewrites it if anything was dropped. Each save writes the
// in-memory log as Trim left it at that refresh; Prune re-trims the file
// against a later now, so events that have aged out since the last
// save are dropped from disk as well.
func (s *Store) Prune(chamber string, now time.Time) error {
	snap, err := s.Load(chamber)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	events := make([]session.Event, 0, len(snap.Events))
	for _, r := range snap.Events {
		e, ok := FromRecord(r)
		if !ok {
			continue
		}
		events = append(events, e)
	}

	log := session.NewLog(events)
	log.Trim(now)
	trimmed := log.Events()
	if len(trimmed) == len(events) {
		return nil
	}

	records := make([]EventRecord, 0, len(trimmed))
	for _, e := range trimmed {
		records = append(records, ToRecord(e))
	}
	snap.Events = records
	return s.Save(*snap)
}
