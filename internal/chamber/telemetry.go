package chamber

import (
	"fmt"
	"time"

	"github.com/nugget/chamberwatch/internal/fetch"
	"github.com/nugget/chamberwatch/internal/opstate"
)

// Telemetry keys within a chamber's opstate namespace. Kept here,
// rather than as bare string literals at each call site, so the
// key/namespace scheme for fetch-history bookkeeping is owned by the
// chamber package rather than scattered across it.
const (
	keyLastFetchURL    = "last_fetch_url"
	keyLastFetchStatus = "last_fetch_status"
	keyLastFetchAt     = "last_fetch_at"
)

// FetchTelemetry is the fetch-history bookkeeping recorded per chamber:
// the URL of the most recent fetch attempt, the HTTP status observed,
// and when it happened. It is operational telemetry distinct from the
// event-log cache — losing it costs nothing but a little debugging
// context, so failures to record it are logged, not propagated.
type FetchTelemetry struct {
	LastFetchURL    string
	LastFetchStatus int
	LastFetchAt     time.Time
}

// recordFetch stamps this chamber's opstate namespace with the outcome
// of one fetch attempt. Nil-safe so a Chamber built without an OpState
// store (as in tests and the chamberwatchctl one-shot commands) can
// call it unconditionally.
func (ch *Chamber) recordFetch(res fetch.Result) {
	if ch.OpState == nil {
		return
	}
	if err := ch.OpState.Set(ch.Name, keyLastFetchURL, res.URL); err != nil {
		ch.Logger.Warn("opstate: failed to record last fetch url", "chamber", ch.Name, "error", err)
		return
	}
	if err := ch.OpState.Set(ch.Name, keyLastFetchStatus, fmt.Sprintf("%d", res.StatusCode)); err != nil {
		ch.Logger.Warn("opstate: failed to record last fetch status", "chamber", ch.Name, "error", err)
	}
	if err := ch.OpState.Set(ch.Name, keyLastFetchAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		ch.Logger.Warn("opstate: failed to record last fetch time", "chamber", ch.Name, "error", err)
	}
}

// LoadFetchTelemetry reads back the fetch-history bookkeeping recorded
// for chamberName under store. A store with no recorded entries yet
// returns a zero FetchTelemetry and no error.
func LoadFetchTelemetry(store *opstate.Store, chamberName string) (FetchTelemetry, error) {
	var t FetchTelemetry

	url, err := store.Get(chamberName, keyLastFetchURL)
	if err != nil {
		return t, fmt.Errorf("load %s: %w", keyLastFetchURL, err)
	}
	t.LastFetchURL = url

	status, err := store.Get(chamberName, keyLastFetchStatus)
	if err != nil {
		return t, fmt.Errorf("load %s: %w", keyLastFetchStatus, err)
	}
	if status != "" {
		fmt.Sscanf(status, "%d", &t.LastFetchStatus)
	}

	at, err := store.Get(chamberName, keyLastFetchAt)
	if err != nil {
		return t, fmt.Errorf("load %s: %w", keyLastFetchAt, err)
	}
	if at != "" {
		if ts, err := time.Parse(time.RFC3339, at); err == nil {
			t.LastFetchAt = ts
		}
	}

	return t, nil
}
