// Package fetch retrieves the raw House and Senate floor-activity
// documents over HTTP. It knows the URL shapes for both feeds and the
// Senate's habit of redirecting missing days to an HTML 404 page, but
// nothing about XML or JSON structure — that's the parse packages' job.
// Every fetch degrades to a recoverable error rather than panicking;
// the scheduler and chamber orchestration decide what "no document
// today" means for the refresh as a whole.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nugget/chamberwatch/internal/httpkit"
	"github.com/nugget/chamberwatch/internal/session"
)

// Default base URLs for the two feeds, overridable per chamber config
// for testing against a mirror.
const (
	DefaultHouseBaseURL  = "https://clerk.house.gov/floor"
	DefaultSenateScheduleURL = "https://www.senate.gov/legislative/schedule/floor_schedule.json"
	DefaultSenateFloorBaseURL = "https://www.senate.gov/legislative/LIS/floor_activity"
)

// maxRedirects bounds how many redirects GetWithRedirectHistory follows
// before giving up and treating the last response as final.
const maxRedirects = 5

// HouseJournalURL builds the per-day House floor journal URL for date
// (interpreted as an Eastern civil date).
func HouseJournalURL(baseURL string, date time.Time) string {
	if baseURL == "" {
		baseURL = DefaultHouseBaseURL
	}
	return fmt.Sprintf("%s/%s.xml", baseURL, date.Format("20060102"))
}

// SenateScheduleURL returns the Senate schedule-record URL.
func SenateScheduleURL(baseURL string) string {
	if baseURL == "" {
		return DefaultSenateScheduleURL
	}
	return baseURL
}

// SenateFloorXMLURL builds the per-day Senate floor-activity URL for
// date (interpreted as an Eastern civil date). The Senate's feed keys
// days as zero-padded MM_DD_YYYY.
func SenateFloorXMLURL(baseURL string, date time.Time) string {
	if baseURL == "" {
		baseURL = DefaultSenateFloorBaseURL
	}
	return fmt.Sprintf("%s/%s_Senate_Floor.xml", baseURL, date.Format("01_02_2006"))
}

// Result is the outcome of one fetch attempt.
type Result struct {
	// Loadable reports whether this response should be treated as
	// real content. For a plain GET that's StatusCode == 200. For
	// GetWithRedirectHistory it additionally allows a redirect chain
	// whose first hop was itself a 200 — the Senate's own distinction
	// between "real document" and "redirected to a 404 page".
	Loadable   bool
	StatusCode int
	Body       []byte
	URL        string
}

// Fetcher retrieves documents over a shared, pooled HTTP transport.
type Fetcher struct {
	Transport *http.Transport
	Timeout   time.Duration
	Logger    *slog.Logger
}

// New creates a Fetcher with chamberwatch's standard transport defaults
// and a 20-second per-request timeout.
func New(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		Transport: httpkit.NewTransport(),
		Timeout:   20 * time.Second,
		Logger:    logger,
	}
}

func (f *Fetcher) client(checkRedirect func(*http.Request, []*http.Request) error) *http.Client {
	c := httpkit.NewClient(
		httpkit.WithTransport(f.Transport),
		httpkit.WithTimeout(f.Timeout),
	)
	c.CheckRedirect = checkRedirect
	return c
}

// Get performs a plain GET. Loadable is true only for a direct 200.
// Any non-2xx response is still returned (not an error) so callers can
// log the status; only transport-level failures return a
// session.RecoverableError.
func (f *Fetcher) Get(ctx context.Context, url string) (Result, error) {
	client := f.client(nil)
	return f.do(ctx, client, url, func(resp *http.Response) bool {
		return resp.StatusCode == http.StatusOK
	})
}

// GetWithRedirectHistory performs a GET that follows redirects itself
// so it can inspect the status of the first hop. This is how the
// Senate floor-activity URL is fetched: a missing day responds with a
// 302 to an HTML 404 page, which must be distinguished from a genuine
// document reachable via redirect.
func (f *Fetcher) GetWithRedirectHistory(ctx context.Context, url string) (Result, error) {
	var hadRedirect bool
	var firstRedirectStatus int

	checkRedirect := func(req *http.Request, via []*http.Request) error {
		hadRedirect = true
		if len(via) == 1 && via[0].Response != nil {
			firstRedirectStatus = via[0].Response.StatusCode
		}
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	client := f.client(checkRedirect)
	return f.do(ctx, client, url, func(resp *http.Response) bool {
		if resp.StatusCode == http.StatusOK {
			return true
		}
		return hadRedirect && firstRedirectStatus == http.StatusOK
	})
}

func (f *Fetcher) do(ctx context.Context, client *http.Client, url string, loadable func(*http.Response) bool) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, session.NewRecoverableError("build request "+url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, session.NewRecoverableError("fetch "+url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Result{}, session.NewRecoverableError("read body "+url, err)
	}

	ok := loadable(resp)
	f.Logger.Debug("fetch: retrieved document", "url", url, "status", resp.StatusCode, "loadable", ok, "bytes", len(body))

	return Result{Loadable: ok, StatusCode: resp.StatusCode, Body: body, URL: url}, nil
}
