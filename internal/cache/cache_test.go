package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/session"
)

func TestStore_LoadMissingFileReturnsNil(t *testing.T) {
	s := New(t.TempDir(), nil)
	snap, err := s.Load("house")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	updated := time.Date(2024, 6, 12, 18, 0, 0, 0, clock.Eastern)
	snap := Snapshot{
		Chamber:       "house",
		Updated:       updated,
		NextUpdate:    updated.Add(10 * time.Minute),
		HasNextUpdate: true,
		Events: []EventRecord{
			ToRecord(session.Event{
				ID:        "h1",
				Kind:      session.CONVENE,
				Timestamp: updated,
				Updated:   updated,
			}),
		},
	}

	require.NoError(t, s.Save(snap))

	got, err := s.Load("house")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "house", got.Chamber)
	assert.True(t, got.Updated.Equal(updated))
	require.Len(t, got.Events, 1)
	assert.Equal(t, "CONVENE", got.Events[0].Kind)
}

func TestStore_Save_WritesViaRenameNotInPlace(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	require.NoError(t, s.Save(Snapshot{Chamber: "senate"}))

	// The ".new" staging file must not remain after a successful save.
	_, err := os.Stat(filepath.Join(dir, "senate.json.new"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "senate.json"))
	assert.NoError(t, err)
}

func TestFromRecord_UnrecognizedKindDiscarded(t *testing.T) {
	_, ok := FromRecord(EventRecord{Kind: "SOMETHING_FUTURE_ADDED"})
	assert.False(t, ok)
}

func TestLoadEvents_DiscardsUnrecognizedKinds(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	updated := time.Date(2024, 6, 12, 18, 0, 0, 0, clock.Eastern)
	require.NoError(t, s.Save(Snapshot{
		Chamber: "house",
		Updated: updated,
		Events: []EventRecord{
			{Kind: "CONVENE", Timestamp: updated, ID: "h1"},
			{Kind: "NOT_A_REAL_KIND", Timestamp: updated, ID: "h2"},
		},
	}))

	events, gotUpdated, _, _, err := s.LoadEvents("house")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "h1", events[0].ID)
	assert.True(t, gotUpdated.Equal(updated))
}

func TestLoadEvents_NoSnapshotYet(t *testing.T) {
	s := New(t.TempDir(), nil)
	events, _, _, hasNext, err := s.LoadEvents("house")
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.False(t, hasNext)
}
