package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nugget/chamberwatch/internal/cache"
	"github.com/nugget/chamberwatch/internal/chamber"
	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/events"
	"github.com/nugget/chamberwatch/internal/fetch"
)

func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()
	now := time.Date(2024, 6, 12, 18, 0, 0, 0, clock.Eastern)
	f := fetch.New(nil)
	store := cache.New(t.TempDir(), nil)
	ch := chamber.New("house", chamber.House, clock.Fixed{At: now}, f, store, events.New(), nil)
	require.NoError(t, ch.Restore())

	bus := events.New()
	srv := NewServer("", 0, map[string]*chamber.Chamber{"house": ch}, bus, nil)
	return srv, bus
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleStatus_UnknownChamberIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/status/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleStatus_KnownChamber(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/status/house")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got chamberStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "house", got.Chamber)
	assert.Equal(t, "unknown", got.Convened)
}

func TestHandleChamberEvents_EmptyLog(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/events/house")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, float64(0), got["count"])
}

func TestHandleWebSocket_ReceivesPublishedEvent(t *testing.T) {
	srv, bus := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server a moment to register the subscription before
	// publishing, since Subscribe happens inside the handler goroutine.
	time.Sleep(50 * time.Millisecond)

	bus.Publish(events.Event{Timestamp: time.Now(), Source: events.SourceChamber, Kind: events.KindRefreshStart})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events.KindRefreshStart, got.Kind)
}

func TestHandleWebSocket_NoBusConfiguredIs503(t *testing.T) {
	now := time.Date(2024, 6, 12, 18, 0, 0, 0, clock.Eastern)
	f := fetch.New(nil)
	store := cache.New(t.TempDir(), nil)
	ch := chamber.New("house", chamber.House, clock.Fixed{At: now}, f, store, events.New(), nil)
	require.NoError(t, ch.Restore())

	srv := NewServer("", 0, map[string]*chamber.Chamber{"house": ch}, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
