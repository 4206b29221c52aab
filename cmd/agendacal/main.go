package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agendacal/internal/agenda"
	"agendacal/internal/calendar"
	"agendacal/internal/capture"
	"agendacal/internal/config"
	"agendacal/internal/locale"
	appLog "agendacal/internal/log"
	"agendacal/internal/metrics"
	"agendacal/internal/source"
	"agendacal/internal/web"
)

var version = "0.1.0-dev"

// flagConfig holds CLI flag values; they override the config file.
type flagConfig struct {
	configPath string
	listen     string
	month      string
	once       bool
	snapshot   bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("agendacal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if !flags.debug {
		if lvl, err := appLog.ParseLevel(conf.LogLevel); err == nil {
			appLog.SetLevel(lvl)
		} else {
			appLog.Warn("unknown log level; keeping info", "log_level", conf.LogLevel)
		}
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"locale", conf.Locale,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"backfill_days", conf.BackfillDays,
		"source_count", len(conf.Sources),
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("agendacal failed", err)
		os.Exit(1)
	}
	appLog.Info("agendacal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	m := metrics.New()
	svc := newService(conf, m)

	// A partial failure still leaves whatever loaded; keep going.
	_ = svc.Refresh(ctx)

	month := svc.Now()
	if flags.month != "" {
		var err error
		if month, err = calendar.ParseMonth(flags.month, svc.Location()); err != nil {
			return err
		}
	}

	if flags.once {
		return printView(svc.View(month))
	}

	server, err := web.NewServer(conf, svc, m)
	if err != nil {
		return fmt.Errorf("web server: %w", err)
	}

	if flags.snapshot {
		return snapshot(ctx, conf, server, month)
	}

	if err := svc.Start(ctx, conf.RefreshCron); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return server.ListenAndServe(ctx)
}

func newService(conf *config.Config, m *metrics.Metrics) *agenda.Service {
	l, _ := locale.Lookup(conf.Locale)
	loader := &source.Loader{Fetcher: source.NewFetcher(conf.CacheDir)}
	return agenda.NewService(loader, agenda.Options{
		Sources:      buildSources(conf.Sources),
		Location:     conf.Location(),
		Layout:       agenda.Layout{WeekStart: conf.FirstWeekday(), Locale: l},
		HorizonDays:  conf.HorizonDays,
		BackfillDays: conf.BackfillDays,
		Metrics:      m,
	})
}

func buildSources(in []config.SourceConfig) []source.Source {
	out := make([]source.Source, 0, len(in))
	for _, s := range in {
		out = append(out, source.Source{
			ID:   s.ID,
			Name: s.Name,
			URL:  s.URL,
			Kind: source.Kind(s.Kind),
		})
	}
	return out
}

func printView(v agenda.MonthView) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// snapshot serves the page on a loopback port just long enough for
// headless Chromium to capture it.
func snapshot(ctx context.Context, conf *config.Config, server *web.Server, month time.Time) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	serveCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- server.Serve(serveCtx, ln) }()

	url := fmt.Sprintf("http://%s/calendar?month=%s", ln.Addr().String(), month.Format(agenda.MonthFormat))
	capErr := capture.CalendarPNG(ctx, capture.Options{
		URL:        url,
		OutputPath: conf.Snapshot.OutputPath,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
	})
	stop()
	if err := <-done; err != nil {
		appLog.Warn("snapshot server shutdown", "error", err.Error())
	}
	if capErr != nil {
		return capErr
	}
	appLog.Info("snapshot written", "path", conf.Snapshot.OutputPath, "month", month.Format(agenda.MonthFormat))
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/agendacal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.month, "month", "", "Month to show with -once or -snapshot, as YYYY-MM (default: current)")
	flag.BoolVar(&cfg.once, "once", false, "Load sources once, print the month view as JSON and exit")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Load sources once, capture the calendar page as PNG and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
