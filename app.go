package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/samgozman/fin-calendar/internal/metrics"
	"github.com/samgozman/fin-calendar/jobs"
	"github.com/samgozman/fin-calendar/publisher"
	"github.com/samgozman/fin-calendar/scavenger"
	"github.com/samgozman/fin-calendar/scavenger/browser"
	"github.com/samgozman/fin-calendar/scavenger/ecal"
	"github.com/samgozman/fin-calendar/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg       *Config
	scavenger *scavenger.Scavenger
	metrics   *metrics.Metrics
	publisher *publisher.TelegramPublisher // nil when Telegram is not configured
	sentry    *SentryKit
	logger    *slog.Logger
}

// NewApp wires the calendar pipeline and its outer surfaces.
func NewApp(cfg *Config, sentryKit *SentryKit, logger *slog.Logger) (*App, error) {
	if slices.Contains(cfg.strategies, ecal.StrategyBrowserRendered) && !browser.Available(cfg.env.BrowserExecPath) {
		logger.Warn("[app] No browser found, browser-rendered strategy disabled")
		cfg.withoutStrategy(ecal.StrategyBrowserRendered)
		if len(cfg.strategies) == 0 {
			return nil, fmt.Errorf("no usable resolver strategy")
		}
	}

	m := metrics.New()
	cal := ecal.NewEconomicCalendar(cfg.Calendar()).
		WithLogger(logger).
		WithMetrics(m)
	if slices.Contains(cfg.strategies, ecal.StrategyBrowserRendered) {
		cal.WithRenderer(browser.NewRenderer(cfg.env.BrowserExecPath).WithLogger(logger))
	}

	a := &App{
		cfg:       cfg,
		scavenger: &scavenger.Scavenger{EconomicCalendar: cal},
		metrics:   m,
		sentry:    sentryKit,
		logger:    logger,
	}

	if cfg.env.TelegramBotToken != "" {
		p, err := publisher.NewTelegramPublisher(cfg.env.TelegramChannelID, cfg.env.TelegramBotToken)
		if err != nil {
			return nil, fmt.Errorf("creating telegram publisher: %w", err)
		}
		a.publisher = p.WithLogger(logger)
	}

	return a, nil
}

// serve runs the HTTP server and, when Telegram is configured, the weekly digest until ctx is done.
func (a *App) serve(ctx context.Context) error {
	srv := server.New(a.cfg.env.ListenAddr, a.scavenger.EconomicCalendar).
		WithLogger(a.logger).
		WithMetrics(a.metrics.Handler()).
		WithStaticDir(a.cfg.env.StaticDir)

	var scheduler gocron.Scheduler
	if a.publisher != nil {
		s, err := a.startDigest()
		if err != nil {
			return err
		}
		scheduler = s
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)

	if scheduler != nil {
		g.Go(func() error {
			<-ctx.Done()
			return scheduler.Shutdown()
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("[app] Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	a.sentry.AddBreadcrumb("app", "Started fin-calendar")
	a.logger.Info("[app] Started fin-calendar successfully", "strategies", a.cfg.strategies)
	return g.Wait()
}

// startDigest schedules the weekly calendar digest.
func (a *App) startDigest() (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	job := jobs.NewCalendarJob(a.scavenger.EconomicCalendar, a.publisher).WithLogger(a.logger)
	_, err = s.NewJob(
		gocron.CronJob(a.cfg.env.DigestCron, false),
		gocron.NewTask(job.RunWeeklyCalendarJob()),
		gocron.WithName("weekly-calendar"),
	)
	if err != nil {
		a.sentry.CaptureError("schedulerError", "[app] Error scheduling the weekly calendar", err)
		return nil, err
	}

	s.Start()
	a.logger.Info("[app] Weekly calendar digest scheduled", "cron", a.cfg.env.DigestCron)
	return s, nil
}

// fetch runs the pipeline once and writes the JSON array to w.
// With strict set, a run where every strategy failed returns the diagnostics as an error.
func (a *App) fetch(ctx context.Context, w io.Writer, strict bool) error {
	events, err := a.scavenger.EconomicCalendar.FetchDetailed(ctx)
	if err != nil {
		a.sentry.CaptureError("calendarFetchError", "[app] Calendar fetch failed", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if e := enc.Encode(events); e != nil {
		return e
	}

	if strict {
		return err
	}
	return nil
}
