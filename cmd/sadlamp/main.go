package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sadlamp/internal/config"
	"sadlamp/internal/ics"
	"sadlamp/internal/kvstore"
	"sadlamp/internal/location"
	appLog "sadlamp/internal/log"
	"sadlamp/internal/refresh"
	"sadlamp/internal/schedule"
	"sadlamp/internal/slot"
	"sadlamp/internal/today"
	"sadlamp/internal/weather"
	"sadlamp/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	date       string
	debug      bool
	dryRun     bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetDevelopment(true)
	}
	defer appLog.Sync()

	appLog.Info("sadlamp starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		if conf == nil {
			os.Exit(1)
		}
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dryRun {
		conf.Storage.Driver = "memory"
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}
	if err := refresh.ValidateSpec(conf.RefreshCron); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"storage", conf.Storage.Driver,
		"ics_count", len(conf.ICS),
		"weather_key_set", conf.Weather.APIKey != "",
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := kvstore.Open(ctx, conf.Storage)
	if err != nil {
		appLog.Error("failed to open storage", err, "driver", conf.Storage.Driver)
		os.Exit(1)
	}
	defer store.Close()

	zone := resolveLocationOrLocal(conf.Timezone)
	schedules := schedule.NewStore(store)
	loc := location.NewStored(store, conf.Location)
	cal := ics.NewCalendar(ics.FeedsFromConfig(conf.ICS), ics.NewFetcher(conf.ICSCacheDir), zone)
	days := today.New(today.Deps{
		Weather:   weather.NewClient(conf.Weather),
		Location:  loc,
		Schedules: schedules,
		Calendar:  cal,
		Store:     store,
		Zone:      zone,
		Options:   slot.Options{SkipUnparseable: conf.Schedule.SkipUnparseable},
	})

	if flags.once {
		if err := runOnce(ctx, days, flags.date); err != nil {
			appLog.Error("report failed", err, "date", flags.date)
			os.Exit(1)
		}
		return
	}

	refresher := refresh.New(conf.RefreshCron, days.Zone(), days, store, refresh.LogNotifier{})
	server := web.NewServer(conf, days, schedules, loc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil {
		appLog.Error("sadlamp stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("sadlamp exiting")
}

// runOnce prints one day report as JSON to stdout.
func runOnce(ctx context.Context, days *today.Service, date string) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	rep, err := days.Today(ctx, date)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/sadlamp/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Build one day report, print it as JSON and exit")
	flag.StringVar(&cfg.date, "date", "", "Report date for -once (YYYY-MM-DD, default today)")
	flag.BoolVar(&cfg.debug, "debug", false, "Human-readable debug logging")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "Use an in-memory store; nothing is persisted")

	flag.Parse()

	return cfg
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}
