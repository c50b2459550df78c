// Package main is the entry point for the chamberwatch daemon: it
// wires the House and Senate chambers to a shared fetcher, cache, and
// event bus, then drives each chamber's adaptive refresh loop while
// serving a status/WebSocket API and, optionally, publishing signals
// to an MQTT broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nugget/chamberwatch/internal/buildinfo"
	"github.com/nugget/chamberwatch/internal/cache"
	"github.com/nugget/chamberwatch/internal/chamber"
	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/config"
	"github.com/nugget/chamberwatch/internal/events"
	"github.com/nugget/chamberwatch/internal/fetch"
	"github.com/nugget/chamberwatch/internal/opstate"
	"github.com/nugget/chamberwatch/internal/signalbus"
	"github.com/nugget/chamberwatch/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfgPath, err := config.FindConfig(*configPath)
	var cfg *config.Config
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", cfgPath, "error", err)
			os.Exit(1)
		}
		logger.Info("config loaded", "path", cfgPath)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("starting chamberwatchd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	opDB, err := opstate.NewStore(filepath.Join(cfg.DataDir, "opstate.db"))
	if err != nil {
		logger.Error("failed to open operational state store", "error", err)
		os.Exit(1)
	}
	defer opDB.Close()

	realClock := clock.Real{}
	bus := events.New()
	store := cache.New(filepath.Join(cfg.DataDir, "cache"), logger)
	fetcher := fetch.New(logger)

	chambers := make(map[string]*chamber.Chamber)
	var names []string

	if cfg.House.IsEnabled() {
		ch := chamber.New("house", chamber.House, realClock, fetcher, store, bus, logger.With("chamber", "house"))
		ch.BaseURL = cfg.House.FloorActivityBaseURL
		ch.OpState = opDB
		if err := ch.Restore(); err != nil {
			logger.Warn("house: failed to restore cache, starting empty", "error", err)
		}
		chambers["house"] = ch
		names = append(names, "house")
	}

	if cfg.Senate.IsEnabled() {
		ch := chamber.New("senate", chamber.Senate, realClock, fetcher, store, bus, logger.With("chamber", "senate"))
		ch.BaseURL = cfg.Senate.FloorActivityBaseURL
		ch.OpState = opDB
		if err := ch.Restore(); err != nil {
			logger.Warn("senate: failed to restore cache, starting empty", "error", err)
		}
		chambers["senate"] = ch
		names = append(names, "senate")
	}

	var mqtt *signalbus.Bus
	if cfg.MQTT.Enabled {
		mqtt = signalbus.New(cfg.MQTT, names, logger.With("component", "signalbus"))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := mqtt.Start(ctx); err != nil {
			logger.Error("signalbus: failed to start", "error", err)
		}
		cancel()
	}

	server := web.NewServer(cfg.Listen.Address, cfg.Listen.Port, chambers, bus, logger.With("component", "web"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
		_ = server.Shutdown(context.Background())
		if mqtt != nil {
			_ = mqtt.Stop(context.Background())
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			logger.Error("web server failed", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runPollLoop(ctx, logger, chambers, mqtt)
	}()

	wg.Wait()
	logger.Info("chamberwatchd stopped")
}

// runPollLoop drives each chamber's Update on its own goroutine — the
// chambers share nothing mutable, so there's no need to serialize their
// refreshes. Each chamber checks in on a short tick; Chamber.Update
// itself decides whether a refresh is actually due.
func runPollLoop(ctx context.Context, logger *slog.Logger, chambers map[string]*chamber.Chamber, mqtt *signalbus.Bus) {
	var wg sync.WaitGroup
	for name, ch := range chambers {
		wg.Add(1)
		go func(name string, ch *chamber.Chamber) {
			defer wg.Done()
			driveChamber(ctx, logger, name, ch, mqtt)
		}(name, ch)
	}
	wg.Wait()
}

func driveChamber(ctx context.Context, logger *slog.Logger, name string, ch *chamber.Chamber, mqtt *signalbus.Bus) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(1 * time.Hour)
	defer pruneTicker.Stop()

	tick := func() {
		changed, err := ch.Update(ctx, false)
		if err != nil {
			logger.Error("chamber update failed", "chamber", name, "error", err)
			return
		}
		if changed && mqtt != nil {
			pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if perr := mqtt.PublishSignals(pubCtx, name, ch.Signals()); perr != nil {
				logger.Warn("signalbus: publish failed", "chamber", name, "error", perr)
			}
			cancel()
		}
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		case <-pruneTicker.C:
			if err := ch.Cache.Prune(name, time.Now()); err != nil {
				logger.Warn("cache prune failed", "chamber", name, "error", err)
			}
		}
	}
}
