// Package main implements chamberwatchctl, a small operator CLI for
// inspecting and forcing a chamber's state without running the full
// daemon: construct a chamber, optionally force an update, print what
// happened.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nugget/chamberwatch/internal/cache"
	"github.com/nugget/chamberwatch/internal/chamber"
	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/config"
	"github.com/nugget/chamberwatch/internal/events"
	"github.com/nugget/chamberwatch/internal/fetch"
	"github.com/nugget/chamberwatch/internal/opstate"
	"github.com/nugget/chamberwatch/internal/report"
	"github.com/nugget/chamberwatch/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		cmdStatus(cfg, logger, args[1:])
	case "force-refresh":
		cmdForceRefresh(cfg, logger, args[1:])
	case "activity":
		cmdActivity(cfg, logger, args[1:])
	case "cache":
		cmdCache(cfg, args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `chamberwatchctl - inspect and control the chamberwatch engine

Commands:
  status [house|senate]              Print current derived signals
  force-refresh [house|senate]       Force an immediate refresh and print the result
  activity [house|senate] [--at RFC3339]   Print the activity digest nearest to a time
  cache [house|senate]               Print a summary of the cached snapshot

Flags:`)
	flag.PrintDefaults()
}

func loadConfig(explicit string, logger *slog.Logger) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		return config.Default(), nil
	}
	return config.Load(path)
}

// chamberNames returns the chamber name(s) to operate on: either a
// single explicit argument, or both configured chambers.
func chamberNames(cfg *config.Config, args []string) []string {
	if len(args) > 0 && (args[0] == "house" || args[0] == "senate") {
		return []string{args[0]}
	}
	var names []string
	if cfg.House.IsEnabled() {
		names = append(names, "house")
	}
	if cfg.Senate.IsEnabled() {
		names = append(names, "senate")
	}
	return names
}

func buildChamber(cfg *config.Config, logger *slog.Logger, name string) *chamber.Chamber {
	kind := chamber.House
	baseURL := cfg.House.FloorActivityBaseURL
	if name == "senate" {
		kind = chamber.Senate
		baseURL = cfg.Senate.FloorActivityBaseURL
	}

	store := cache.New(filepath.Join(cfg.DataDir, "cache"), logger)
	ch := chamber.New(name, kind, clock.Real{}, fetch.New(logger), store, events.New(), logger)
	ch.BaseURL = baseURL
	if err := ch.Restore(); err != nil {
		logger.Warn("restore failed, starting from empty log", "chamber", name, "error", err)
	}
	return ch
}

func cmdStatus(cfg *config.Config, logger *slog.Logger, args []string) {
	opDB, err := opstate.NewStore(filepath.Join(cfg.DataDir, "opstate.db"))
	if err != nil {
		logger.Warn("opstate: failed to open store, omitting fetch telemetry", "error", err)
		opDB = nil
	}

	for _, name := range chamberNames(cfg, args) {
		ch := buildChamber(cfg, logger, name)
		printSignals(name, ch.Signals())
		if opDB != nil {
			printFetchTelemetry(name, opDB)
		}
	}
}

func printFetchTelemetry(name string, store *opstate.Store) {
	t, err := chamber.LoadFetchTelemetry(store, name)
	if err != nil {
		return
	}
	if t.LastFetchAt.IsZero() {
		return
	}
	fmt.Printf("%s: last_fetch=%s status=%d url=%s\n",
		name, t.LastFetchAt.Format(time.RFC3339), t.LastFetchStatus, t.LastFetchURL)
}

func cmdForceRefresh(cfg *config.Config, logger *slog.Logger, args []string) {
	for _, name := range chamberNames(cfg, args) {
		ch := buildChamber(cfg, logger, name)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		changed, err := ch.Update(ctx, true)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: refresh failed: %v\n", name, err)
			continue
		}
		fmt.Printf("%s: refresh complete (changed=%v)\n", name, changed)
		printSignals(name, ch.Signals())
	}
}

func cmdActivity(cfg *config.Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("activity", flag.ExitOnError)
	at := fs.String("at", "", "instant to query activity for (RFC3339), default now")
	var nameArgs []string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		nameArgs, args = args[:1], args[1:]
	}
	fs.Parse(args)

	names := chamberNames(cfg, append(nameArgs, fs.Args()...))
	when := time.Now()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid --at:", err)
			os.Exit(1)
		}
		when = parsed
	}

	for _, name := range names {
		ch := buildChamber(cfg, logger, name)
		now := clock.Real{}.NowCivil()
		digest, err := report.BuildActivity(name, ch.Signals(), ch.Events(), now, when.In(clock.Eastern))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			continue
		}
		fmt.Println(digest.Markdown)
	}
}

func cmdCache(cfg *config.Config, args []string) {
	store := cache.New(filepath.Join(cfg.DataDir, "cache"), nil)
	for _, name := range chamberNames(cfg, args) {
		snap, err := store.Load(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			continue
		}
		if snap == nil {
			fmt.Printf("%s: no cache file yet\n", name)
			continue
		}
		fmt.Printf("%s: updated=%s next_update=%s events=%d\n",
			name, snap.Updated.Format(time.RFC3339), snap.NextUpdate.Format(time.RFC3339), len(snap.Events))
	}
}

func printSignals(name string, s session.Signals) {
	fmt.Printf("%s: convened=%s\n", name, s.Convened.String())
	if s.ConvenedAt != nil {
		fmt.Printf("%s: convened_at=%s\n", name, s.ConvenedAt.Format(time.RFC3339))
	}
	if s.AdjournedAt != nil {
		fmt.Printf("%s: adjourned_at=%s\n", name, s.AdjournedAt.Format(time.RFC3339))
	}
	if s.ConvenesAt != nil {
		fmt.Printf("%s: convenes_at=%s\n", name, s.ConvenesAt.Format(time.RFC3339))
	}
}
