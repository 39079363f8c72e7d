// SPDX-License-Identifier: MIT

// Command webepg ingests program guide sources, normalizes them and serves
// the result over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // timezone database for minimal containers

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bacco007/webepg/internal/api"
	"github.com/bacco007/webepg/internal/cache"
	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/health"
	"github.com/bacco007/webepg/internal/jobs"
	applog "github.com/bacco007/webepg/internal/log"
	"github.com/bacco007/webepg/internal/metrics"
	"github.com/bacco007/webepg/internal/source"
	"github.com/bacco007/webepg/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "check":
			os.Exit(runCheckCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		case "process":
			os.Exit(runProcessCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	applog.Configure(applog.Config{Level: "info", Service: "webepg", Version: version})
	logger := applog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger := loadConfig(logger, *configPath)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon stopped with error")
	}
	logger.Info().Str("event", "daemon.stopped").Msg("shutdown complete")
}

// loadConfig loads and validates the configuration or exits. It returns
// the daemon logger rebuilt from the configured log settings.
func loadConfig(logger zerolog.Logger, path string) (config.AppConfig, zerolog.Logger) {
	path = strings.TrimSpace(path)
	cfg, err := config.NewLoader(path, version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}
	logger = reconfigureLogging(cfg, nil)

	src := "env+defaults"
	if path != "" {
		src = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", src).
		Str(applog.FieldPath, path).
		Str("data_dir", cfg.DataDir).
		Str("timezone", cfg.Engine.Timezone).
		Msg("configuration loaded")
	return cfg, logger
}

// reconfigureLogging applies cfg's log settings to the global logger and
// derives the daemon logger from it. A nil out keeps stdout.
func reconfigureLogging(cfg config.AppConfig, out io.Writer) zerolog.Logger {
	applog.Reconfigure(applog.Config{Level: cfg.Log.Level, Output: out, Service: "webepg", Version: cfg.Version})
	return applog.WithComponent("daemon")
}

// newRunner wires the ingestion runner and the source index watcher.
func newRunner(cfg config.AppConfig) (*jobs.Runner, *config.SourcesHolder, error) {
	holder, err := config.NewSourcesHolder(cfg.Sources)
	if err != nil {
		return nil, nil, fmt.Errorf("load sources: %w", err)
	}
	runner, err := jobs.NewRunner(jobs.Deps{
		Config:  cfg,
		Sources: holder,
		Metrics: metrics.Recorder{},
		Fetcher: source.NewFetcher(nil, source.FetchConfig{
			Timeout:     cfg.Fetch.Timeout,
			MaxAge:      cfg.Fetch.MaxAge,
			Concurrency: cfg.Fetch.Concurrency,
		}),
	})
	if err != nil {
		return nil, nil, err
	}
	return runner, holder, nil
}

func run(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	tp, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Str("event", "telemetry.shutdown_failed").Msg("telemetry shutdown failed")
		}
	}()

	for _, dir := range []string{cfg.DataDir, cfg.OutputDir} {
		if err := health.EnsureWritableDir(dir); err != nil {
			return fmt.Errorf("startup check: %w", err)
		}
	}

	runner, holder, err := newRunner(cfg)
	if err != nil {
		return err
	}
	if err := holder.Start(ctx); err != nil {
		logger.Warn().Err(err).Str("event", "config.watch_failed").Msg("source index changes will not be picked up")
	}
	defer func() {
		holder.Stop()
		holder.Wait()
	}()

	tc, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer func() { _ = tc.Close() }()

	st := storeFor(cfg)
	hm := api.DefaultHealth(cfg.Version, st, runner)
	if rc, ok := tc.(*cache.RedisCache); ok {
		hm.Register(health.NewDependencyChecker("redis", rc.HealthCheck, 2*time.Second))
	}

	srv, err := api.New(api.Deps{Config: cfg, Store: st, Runner: runner, Cache: tc, Health: hm})
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}
	defer srv.Close()

	sched, err := startScheduler(ctx, cfg.Schedule, runner, logger)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.API.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("event", "api.listen").Str("addr", httpSrv.Addr).Msg("starting HTTP server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Str("event", "daemon.shutdown").Msg("shutdown signal received")
	case serveErr = <-errCh:
	}

	if sched != nil {
		<-sched.Stop().Done()
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Str("event", "api.shutdown_failed").Msg("HTTP server shutdown failed")
	}
	return serveErr
}

// startScheduler runs ingestion on the configured cron schedule. It
// returns nil when scheduling is disabled and no run on start is wanted.
func startScheduler(ctx context.Context, cfg config.ScheduleConfig, runner *jobs.Runner, logger zerolog.Logger) (*cron.Cron, error) {
	trigger := func(reason string) {
		status, err := runner.Run(ctx, jobs.Options{})
		switch {
		case errors.Is(err, jobs.ErrAlreadyRunning):
			logger.Info().Str("event", "schedule.skipped").Str("reason", reason).Msg("ingestion already running")
		case err != nil:
			logger.Error().Err(err).Str("event", "schedule.failed").Str("reason", reason).Str("job_id", status.JobID).Msg("scheduled ingestion failed")
		}
	}

	if cfg.Cron == "" {
		if cfg.RunOnStart {
			go trigger("startup")
		}
		return nil, nil
	}

	c := cron.New(cron.WithParser(config.CronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Cron, func() { trigger("cron") }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", cfg.Cron, err)
	}
	c.Start()
	logger.Info().Str("event", "schedule.started").Str("cron", cfg.Cron).Msg("ingestion scheduled")
	if cfg.RunOnStart {
		go trigger("startup")
	}
	return c, nil
}
