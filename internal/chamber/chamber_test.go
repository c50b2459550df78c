package chamber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nugget/chamberwatch/internal/cache"
	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/events"
	"github.com/nugget/chamberwatch/internal/fetch"
	"github.com/nugget/chamberwatch/internal/session"
)

const houseDoc = `<floor_update><floor_actions>
	<floor_action unique-id="1" update-date-time="20240612T1000" act-id="H20100">
		<action_time for-search="20240612T10:00:00" />
		<action_description>The House convened, starting a new legislative day.</action_description>
	</floor_action>
	<legislative_day_finished next-legislative-day-convenes="20240613T12:00" />
</floor_actions></floor_update>`

func newTestChamber(t *testing.T, kind Kind, baseURL string, now time.Time) *Chamber {
	t.Helper()
	f := fetch.New(nil)
	store := cache.New(t.TempDir(), nil)
	ch := New("house", kind, clock.Fixed{At: now}, f, store, events.New(), nil)
	ch.BaseURL = baseURL
	require.NoError(t, ch.Restore())
	return ch
}

func TestChamber_HouseUpdate_MergesAndPersists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(houseDoc))
	}))
	defer srv.Close()

	now := time.Date(2024, 6, 12, 18, 0, 0, 0, clock.Eastern)
	ch := newTestChamber(t, House, srv.URL, now)

	changed, err := ch.Update(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, changed)

	signals := ch.Signals()
	assert.Equal(t, session.True, signals.Convened)
	require.NotNil(t, signals.ConvenesAt)

	snap, err := ch.Cache.Load("house")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Updated.Equal(now))
}

func TestChamber_Update_NotDueIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	now := time.Date(2024, 6, 12, 18, 0, 0, 0, clock.Eastern)
	ch := newTestChamber(t, House, srv.URL, now)

	_, err := ch.Update(context.Background(), true)
	require.NoError(t, err)

	changed, err := ch.Update(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestChamber_SenateUpdate_FatalScheduleStopsRefresh(t *testing.T) {
	now := time.Date(2024, 6, 12, 14, 0, 30, 0, clock.Eastern)

	mux := http.NewServeMux()
	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"conveneYear":"2024","conveneMonth":"6","conveneDay":"12","conveneHour":"14","conveneMinutes":"0"}`))
	})
	mux.HandleFunc("/floor", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetch.New(nil)
	store := cache.New(t.TempDir(), nil)
	ch := New("senate", Senate, clock.Fixed{At: now}, f, store, events.New(), nil)
	ch.BaseURL = srv.URL + "/floor"
	ch.ScheduleURL = srv.URL + "/schedule"
	require.NoError(t, ch.Restore())

	_, err := ch.Update(context.Background(), true)
	require.Error(t, err)
	var fatal *session.FatalError
	require.ErrorAs(t, err, &fatal)
}

func TestChamber_HouseUpdate_RecoverableFetchFailureDoesNotError(t *testing.T) {
	now := time.Date(2024, 6, 12, 18, 0, 0, 0, clock.Eastern)
	ch := newTestChamber(t, House, "http://127.0.0.1:1", now)
	ch.Fetch.Timeout = 200 * time.Millisecond

	changed, err := ch.Update(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestChamber_HouseUpdate_BackfillWalksMultipleDays(t *testing.T) {
	// Today and the first two prior days 404; the third prior day is
	// the first loadable journal, exercising the multi-day backward walk.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/20240609.xml" {
			w.Write([]byte(houseDoc))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	now := time.Date(2024, 6, 12, 18, 0, 0, 0, clock.Eastern)
	ch := newTestChamber(t, House, srv.URL, now)

	changed, err := ch.Update(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, changed)

	signals := ch.Signals()
	assert.Equal(t, session.True, signals.Convened)
}

func TestChamber_SenateUpdate_FloorWalkStopsOnConveneAndAdjourn(t *testing.T) {
	// The schedule record never loads, so the walk must rely entirely
	// on floor XML. Today and the first prior day 404; the second
	// prior day carries both a convene and an adjourn, so the walk
	// must stop there rather than continuing to senateDayLimit.
	const floorDoc = `<floor_activity>
		<date_iso_8601>2024-06-10</date_iso_8601>
		<intro_text>The Senate met and was called to order at 10 a.m.</intro_text>
		<section type="adjournment"><content>The Senate adjourned at 5:00 p.m., sine die.</content></section>
	</floor_activity>`

	mux := http.NewServeMux()
	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/06_10_2024_Senate_Floor.xml" {
			w.Write([]byte(floorDoc))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	now := time.Date(2024, 6, 12, 14, 0, 0, 0, clock.Eastern)
	f := fetch.New(nil)
	store := cache.New(t.TempDir(), nil)
	ch := New("senate", Senate, clock.Fixed{At: now}, f, store, events.New(), nil)
	ch.BaseURL = srv.URL
	ch.ScheduleURL = srv.URL + "/schedule"
	require.NoError(t, ch.Restore())

	changed, err := ch.Update(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, changed)

	evs := ch.Events()
	var hasConvene, hasAdjourn bool
	for _, e := range evs {
		switch e.Kind {
		case session.CONVENE:
			hasConvene = true
		case session.ADJOURN:
			hasAdjourn = true
		}
	}
	assert.True(t, hasConvene)
	assert.True(t, hasAdjourn)
}

func TestScheduleEventsIfStateChanged(t *testing.T) {
	now := time.Date(2024, 6, 12, 14, 0, 0, 0, clock.Eastern)

	t.Run("nothing parsed", func(t *testing.T) {
		assert.Nil(t, scheduleEventsIfStateChanged(nil, now, nil))
	})

	t.Run("already convened, CONVENE re-asserted is discarded", func(t *testing.T) {
		existing := []session.Event{{Kind: session.CONVENE, Timestamp: now.Add(-time.Hour)}}
		evs := []session.Event{{Kind: session.CONVENE, Timestamp: now.Add(-time.Hour)}}
		assert.Nil(t, scheduleEventsIfStateChanged(existing, now, evs))
	})

	t.Run("not yet convened, CONVENE differs and is kept", func(t *testing.T) {
		evs := []session.Event{{Kind: session.CONVENE, Timestamp: now.Add(-time.Minute)}}
		assert.Equal(t, evs, scheduleEventsIfStateChanged(nil, now, evs))
	})

	t.Run("not yet convened, CONVENE_SCHEDULED matches and is discarded", func(t *testing.T) {
		existing := []session.Event{{Kind: session.ADJOURN, Timestamp: now.Add(-time.Hour)}}
		evs := []session.Event{{Kind: session.CONVENESCHEDULED, Timestamp: now.Add(time.Hour)}}
		assert.Nil(t, scheduleEventsIfStateChanged(existing, now, evs))
	})
}
