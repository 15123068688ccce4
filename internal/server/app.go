// Package server wires configuration, logging, provisioning and the scrape
// pipeline into a runnable application.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bolagsradar/listings-scraper/internal/api"
	"github.com/bolagsradar/listings-scraper/internal/bootstrap"
	"github.com/bolagsradar/listings-scraper/internal/clock/system"
	"github.com/bolagsradar/listings-scraper/internal/config"
	collyfetcher "github.com/bolagsradar/listings-scraper/internal/fetcher/colly"
	headlessfetcher "github.com/bolagsradar/listings-scraper/internal/fetcher/headless"
	"github.com/bolagsradar/listings-scraper/internal/id/uuid"
	"github.com/bolagsradar/listings-scraper/internal/logging"
	"github.com/bolagsradar/listings-scraper/internal/metrics"
	"github.com/bolagsradar/listings-scraper/internal/policy/ratelimit"
	"github.com/bolagsradar/listings-scraper/internal/progress"
	progresssinks "github.com/bolagsradar/listings-scraper/internal/progress/sinks"
	"github.com/bolagsradar/listings-scraper/internal/scraper"
	"github.com/bolagsradar/listings-scraper/internal/store"
	storememory "github.com/bolagsradar/listings-scraper/internal/store/memory"
)

// App contains the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	apiServer    *api.Server
	bootstrapper *bootstrap.Bootstrapper
	scrapeSvc    *scraper.Service
	renderer     scraper.Renderer
	progressHub  *progress.Hub
	ready        atomic.Bool
}

// Build constructs the application object graph from configuration. The
// context becomes the base context for progress sink flushes.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}

	runs := storememory.NewStore(cfg.Progress.HistoryLimit)
	emitter := app.setupProgress(ctx, runs)
	app.setupBootstrap(emitter)
	app.setupScraper(emitter)
	app.apiServer = api.NewServer(*cfg, app.scrapeSvc, runs, &app.ready, logger.Named("api"))

	logger.Info("application built",
		zap.Int("port", cfg.Server.Port),
		zap.String("target_url", cfg.Scraper.TargetURL),
		zap.Bool("headless", cfg.Headless.Enabled),
	)
	return app, nil
}

// Run provisions the runtime, then serves HTTP until the context is canceled
// or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.provisionForServe(ctx); err != nil {
		return err
	}
	a.ready.Store(true)

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Provision runs the dependency and browser provisioning pass without
// starting the server. Degraded browser installs come back as errors here so
// callers can report a nonzero exit.
func (a *App) Provision(ctx context.Context) error {
	return a.bootstrapper.Run(ctx)
}

// ScrapeOnce provisions the runtime and executes a single scrape.
func (a *App) ScrapeOnce(ctx context.Context) (scraper.Result, error) {
	if err := a.provisionForServe(ctx); err != nil {
		return scraper.Result{}, err
	}
	return a.scrapeSvc.Scrape(ctx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.renderer != nil {
		if err := a.renderer.Close(ctx); err != nil {
			a.logger.Warn("renderer close failed", zap.Error(err))
		}
	}
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	return nil
}

// provisionForServe runs the bootstrap pass ahead of the listener. A degraded
// browser runtime is tolerated: probe fetches keep working and the server
// must still come up. Dependency failures abort startup.
func (a *App) provisionForServe(ctx context.Context) error {
	if a.cfg.Bootstrap.SkipProvision {
		a.logger.Info("provisioning skipped by config")
		return nil
	}
	if err := a.bootstrapper.Run(ctx); err != nil {
		if errors.Is(err, bootstrap.ErrProvisionDegraded) {
			a.logger.Warn("starting with degraded browser runtime", zap.Error(err))
			return nil
		}
		return fmt.Errorf("provision: %w", err)
	}
	return nil
}

func (a *App) setupProgress(ctx context.Context, runs store.RunRepository) progress.Emitter {
	if !a.cfg.Progress.Enabled {
		return nil
	}
	sinks := []progress.Sink{
		progresssinks.NewStoreSink(runs, a.logger.Named("store_sink")),
	}
	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		a.logger.Warn("prometheus sink disabled", zap.Error(err))
	} else {
		sinks = append(sinks, promSink)
	}
	if a.cfg.Progress.LogEnabled {
		sinks = append(sinks, progresssinks.NewLogSink(a.logger.Named("progress")))
	}
	a.progressHub = progress.NewHub(progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		BaseContext:    ctx,
		Logger:         a.logger.Named("progress_hub"),
	}, sinks...)
	return a.progressHub
}

func (a *App) setupBootstrap(emitter progress.Emitter) {
	installer := bootstrap.NewPlaywrightInstaller(
		a.cfg.Browser.CacheDirs,
		a.cfg.Browser.Verbose,
		a.logger.Named("playwright_install"),
	)
	a.bootstrapper = bootstrap.New(bootstrap.Config{
		Engines:            a.cfg.Browser.Engines,
		CacheDirs:          a.cfg.Browser.CacheDirs,
		SkipBrowserInstall: a.cfg.Bootstrap.SkipBrowsers,
		InstallTimeout:     a.cfg.InstallBudget(),
		Manifest: bootstrap.Manifest{
			Requires: a.cfg.Bootstrap.Requires,
			Install:  a.cfg.Bootstrap.Install,
		},
	}, installer, nil, uuid.New(), emitter, a.logger.Named("bootstrap"))
}

func (a *App) setupScraper(emitter progress.Emitter) {
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Scraper.UserAgent,
		Timeout:   a.cfg.ScrapeBudget(),
	})
	a.renderer = a.setupRenderer()
	detector := scraper.NewHeuristicDetector(scraper.DetectorConfig{
		MinHTMLBytes:     a.cfg.Detector.MinHTMLBytes,
		ScriptDensityPct: a.cfg.Detector.ScriptDensityPct,
		Keywords:         a.cfg.Detector.Keywords,
		RequireSelectors: a.cfg.Detector.RequireSelectors,
	})
	robots := scraper.NewRobotsEnforcer(
		a.cfg.Scraper.RespectRobots,
		a.cfg.Scraper.UserAgent,
		a.logger.Named("robots"),
	)
	var limiter scraper.Limiter
	if a.cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.RateLimit.RPS,
			DefaultBurst: a.cfg.RateLimit.Burst,
		})
	}
	parser := scraper.NewParser(scraper.ParserConfig{
		MaxListings:      a.cfg.Scraper.MaxListings,
		Regions:          a.cfg.Scraper.Regions,
		IndustryKeywords: a.cfg.Scraper.IndustryKeywords,
	})
	a.scrapeSvc = scraper.NewService(scraper.ServiceConfig{
		TargetURL:      a.cfg.Scraper.TargetURL,
		UserAgent:      a.cfg.Scraper.UserAgent,
		AcceptLanguage: a.cfg.Scraper.AcceptLanguage,
		Timeout:        a.cfg.ScrapeBudget(),
		Headless:       a.cfg.Headless.Enabled,
	}, probe, a.renderer, detector, robots, limiter, parser,
		system.New(), uuid.New(), emitter, a.logger.Named("scraper"))
}

// setupRenderer picks the headless backend. Init failures downgrade to the
// noop renderer instead of aborting: the probe path must survive a broken
// browser runtime.
func (a *App) setupRenderer() scraper.Renderer {
	if !a.cfg.Headless.Enabled {
		return nil
	}
	hcfg := headlessfetcher.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.Scraper.UserAgent,
		NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
	}
	var (
		renderer scraper.Renderer
		err      error
	)
	switch a.cfg.Headless.Backend {
	case "chromedp":
		renderer, err = headlessfetcher.NewChromedp(hcfg)
	default:
		renderer, err = headlessfetcher.NewPlaywright(hcfg)
	}
	if err != nil {
		a.logger.Warn("headless renderer unavailable, probe-only mode",
			zap.String("backend", a.cfg.Headless.Backend),
			zap.Error(err),
		)
		return headlessfetcher.NewNoop()
	}
	return renderer
}
