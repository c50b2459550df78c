// Package web serves chamberwatch's status HTTP API and a WebSocket
// feed of live operational events, so a dashboard or another service
// can watch convene/adjourn activity without polling MQTT or the cache
// files directly.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/chamberwatch/internal/buildinfo"
	"github.com/nugget/chamberwatch/internal/cache"
	"github.com/nugget/chamberwatch/internal/chamber"
	"github.com/nugget/chamberwatch/internal/events"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("web: failed to write JSON response", "error", err)
	}
}

func errorResponse(w http.ResponseWriter, logger *slog.Logger, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{"error": message}, logger)
}

// Server is the status HTTP and WebSocket server.
type Server struct {
	address  string
	port     int
	chambers map[string]*chamber.Chamber
	bus      *events.Bus
	logger   *slog.Logger
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer creates a Server over the given chambers, keyed by name
// ("house", "senate"). bus supplies the live event stream for
// WebSocket subscribers; it may be nil, in which case /ws refuses
// upgrades with 503.
func NewServer(address string, port int, chambers map[string]*chamber.Chamber, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		chambers: chambers,
		bus:      bus,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The status feed is read-only telemetry served same-origin
			// or to trusted dashboards; any origin may subscribe.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler builds the server's routed http.Handler. Exposed separately
// from Start so tests can exercise it with httptest without binding a
// real port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/status/{chamber}", s.handleChamberStatus)
	mux.HandleFunc("GET /v1/events/{chamber}", s.handleChamberEvents)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return s.withLogging(mux)
}

// Start begins serving HTTP and blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the WebSocket handler manages its own deadlines
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("web: starting status server", "address", addr, "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("web: request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.RuntimeInfo(), s.logger)
}

// chamberStatus is the JSON shape of one chamber's current public
// signals plus the time of its last refresh.
type chamberStatus struct {
	Chamber     string     `json:"chamber"`
	Convened    string     `json:"convened"`
	ConvenedAt  *time.Time `json:"convened_at,omitempty"`
	AdjournedAt *time.Time `json:"adjourned_at,omitempty"`
	ConvenesAt  *time.Time `json:"convenes_at,omitempty"`
	Updated     time.Time  `json:"updated"`
}

func (s *Server) statusFor(name string, ch *chamber.Chamber) chamberStatus {
	signals := ch.Signals()
	return chamberStatus{
		Chamber:     name,
		Convened:    signals.Convened.String(),
		ConvenedAt:  signals.ConvenedAt,
		AdjournedAt: signals.AdjournedAt,
		ConvenesAt:  signals.ConvenesAt,
		Updated:     ch.Sched.Updated(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]chamberStatus, len(s.chambers))
	for name, ch := range s.chambers {
		out[name] = s.statusFor(name, ch)
	}
	writeJSON(w, out, s.logger)
}

func (s *Server) handleChamberStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("chamber")
	ch, ok := s.chambers[name]
	if !ok {
		errorResponse(w, s.logger, http.StatusNotFound, "unknown chamber: "+name)
		return
	}
	writeJSON(w, s.statusFor(name, ch), s.logger)
}

func (s *Server) handleChamberEvents(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("chamber")
	ch, ok := s.chambers[name]
	if !ok {
		errorResponse(w, s.logger, http.StatusNotFound, "unknown chamber: "+name)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	evs := ch.Events()
	if len(evs) > limit {
		evs = evs[:limit]
	}

	records := make([]cache.EventRecord, 0, len(evs))
	for _, e := range evs {
		records = append(records, cache.ToRecord(e))
	}

	writeJSON(w, map[string]any{"chamber": name, "count": len(records), "events": records}, s.logger)
}

// handleWebSocket upgrades the connection and streams bus events as
// JSON text messages until a write to the client fails. Events published
// while the subscription's buffer is full are dropped by the bus and
// never reach the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		errorResponse(w, s.logger, http.StatusServiceUnavailable, "event stream not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("web: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(sub)

	// Drain client-initiated frames (pings, close) in the background so
	// the read side doesn't block the write loop; we don't expect
	// inbound application messages on this feed.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for e := range sub {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(e); err != nil {
			s.logger.Debug("web: websocket write failed, closing", "error", err)
			return
		}
	}
}
