// Command teamarr generates XMLTV guides for sports IPTV channels and keeps
// the downstream channel manager in sync.
//
// Subcommands:
//
//	generate [-stream]  run one EPG generation (with -stream: JSON progress on stdout)
//	abort               cancel the in-flight run of another teamarr process
//	cache-refresh       rebuild the team/league reverse index
//
// Exit codes: 0 success, 2 aborted, 3 generation error, 4 misconfiguration.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/config"
	"github.com/teamarr/teamarr/internal/dataservice"
	"github.com/teamarr/teamarr/internal/dispatch"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/leaguecache"
	"github.com/teamarr/teamarr/internal/logging"
	"github.com/teamarr/teamarr/internal/matcher"
	"github.com/teamarr/teamarr/internal/provider"
	"github.com/teamarr/teamarr/internal/provider/espn"
	"github.com/teamarr/teamarr/internal/provider/sportsdb"
	"github.com/teamarr/teamarr/internal/reconciler"
	"github.com/teamarr/teamarr/internal/store"
)

const (
	exitOK      = 0
	exitAborted = 2
	exitRun     = 3
	exitConfig  = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "reading .env:", err)
		return exitConfig
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogDir)

	if len(args) == 0 {
		usage()
		return exitConfig
	}
	switch args[0] {
	case "generate":
		return cmdGenerate(cfg, log, args[1:])
	case "abort":
		return cmdAbort(cfg)
	case "cache-refresh":
		return cmdCacheRefresh(cfg, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		return exitConfig
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: teamarr <generate [-stream] | abort | cache-refresh>")
}

func buildRegistry(log zerolog.Logger) *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register("espn", espn.New(log), 0, true)
	reg.Register("thesportsdb", sportsdb.New(log), 1, true)
	return reg
}

func cmdGenerate(cfg *config.Config, log zerolog.Logger, args []string) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	stream := fs.Bool("stream", false, "emit JSON progress events on stdout")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DatabasePath).Msg("opening database failed")
		return exitConfig
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data := dataservice.New(buildRegistry(log), log)
	teams := leaguecache.New(st, data.SupportsLeague, log)
	if err := teams.LoadPersisted(); err != nil {
		log.Warn().Err(err).Msg("loading persisted team/league cache failed; rebuilding")
	}
	if time.Since(teams.BuiltAt()) >= leaguecache.RefreshInterval {
		if err := teams.Rebuild(ctx, data); err != nil {
			log.Error().Err(err).Msg("team/league cache rebuild failed")
			return exitRun
		}
	}

	m := matcher.New(teams, data, st, matcher.Config{
		MatchDaysAhead: cfg.MatchDaysAhead,
		Timezone:       cfg.Timezone,
	}, log)
	if err := m.LoadCache(st); err != nil {
		log.Warn().Err(err).Msg("loading match cache failed; starting cold")
	}

	var source epg.StreamSource
	var lifecycle epg.Reconciler
	if cfg.ManagerURL != "" {
		client := dispatch.NewClient(dispatch.Config{
			BaseURL:  cfg.ManagerURL,
			Username: cfg.ManagerUsername,
			Password: cfg.ManagerPassword,
		}, log)
		source = dispatch.NewSource(client)
		lifecycle = reconciler.New(client, st, reconciler.Config{
			Timezone:     cfg.Timezone,
			CreateTiming: reconciler.CreateTiming(cfg.ChannelCreateTiming),
			DeletePolicy: reconciler.DeletePolicy(cfg.ChannelDeleteTiming),
			Durations:    cfg.Durations,
		}, log)
	} else {
		// Direct-URL groups still work without a manager.
		source = dispatch.NewSource(nil)
	}

	o := epg.New(data, m, source, st, st, lifecycle, log)

	pidPath := pidFile(cfg)
	if err := writePid(pidPath); err != nil {
		log.Warn().Err(err).Str("path", pidPath).Msg("writing pidfile failed; abort command will not find this run")
	} else {
		defer os.Remove(pidPath)
	}

	var sink epg.ProgressSink = epg.NopProgress
	if *stream {
		enc := json.NewEncoder(os.Stdout)
		sink = epg.ProgressFunc(func(ev epg.ProgressEvent) { enc.Encode(ev) })
	}

	rec, err := o.Run(ctx, epg.Settings{
		OutputPath:        cfg.OutputPath,
		Timezone:          cfg.Timezone,
		OutputDaysAhead:   cfg.OutputDaysAhead,
		ScheduleDaysAhead: cfg.ScheduleDaysAhead,
		MatchDaysAhead:    cfg.MatchDaysAhead,
		LookbackHours:     cfg.LookbackHours,
		MaxProgramHours:   cfg.MaxProgramHours,
		PostgameMaxHours:  cfg.PostgameMaxHours,
		PregameMinHours:   cfg.PregameMinHours,
		MidnightMode:      epg.MidnightMode(cfg.MidnightMode),
		Durations:         cfg.Durations,
		MarkLiveNew:       cfg.MarkLiveNew,
	}, sink)
	if rec != nil && *stream {
		json.NewEncoder(os.Stdout).Encode(rec)
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitAborted
	case errors.Is(err, epg.ErrAlreadyRunning):
		log.Error().Msg("a generation run is already in progress")
		return exitRun
	default:
		log.Error().Err(err).Msg("generation failed")
		return exitRun
	}
}

func cmdAbort(cfg *config.Config) int {
	raw, err := os.ReadFile(pidFile(cfg))
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "no run in progress")
			return exitOK
		}
		fmt.Fprintln(os.Stderr, "reading pidfile:", err)
		return exitRun
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		fmt.Fprintln(os.Stderr, "pidfile is corrupt:", err)
		return exitRun
	}
	proc, err := os.FindProcess(pid)
	if err == nil {
		err = proc.Signal(syscall.SIGINT)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "signaling pid %d: %v\n", pid, err)
		return exitRun
	}
	fmt.Printf("abort requested for pid %d\n", pid)
	return exitOK
}

func cmdCacheRefresh(cfg *config.Config, log zerolog.Logger) int {
	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DatabasePath).Msg("opening database failed")
		return exitConfig
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data := dataservice.New(buildRegistry(log), log)
	teams := leaguecache.New(st, data.SupportsLeague, log)
	if err := teams.Rebuild(ctx, data); err != nil {
		log.Error().Err(err).Msg("team/league cache rebuild failed")
		return exitRun
	}
	return exitOK
}

func pidFile(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.DatabasePath), "teamarr.pid")
}

func writePid(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
