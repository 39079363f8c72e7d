// SPDX-License-Identifier: MIT

// Package api serves the published guide data over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bacco007/webepg/internal/api/middleware"
	"github.com/bacco007/webepg/internal/cache"
	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/epg"
	"github.com/bacco007/webepg/internal/health"
	"github.com/bacco007/webepg/internal/jobs"
	"github.com/bacco007/webepg/internal/store"
)

// ProcessRunner is the part of jobs.Runner the API drives.
type ProcessRunner interface {
	Run(ctx context.Context, opts jobs.Options) (jobs.Status, error)
	Status() jobs.Status
	Running() bool
}

// Deps are the collaborators of a Server.
type Deps struct {
	Config config.AppConfig
	Store  *store.Store
	Runner ProcessRunner
	// Cache holds rendered timeline responses. Nil disables caching.
	Cache cache.Cache
	// Health defaults to a manager checking the published index and the
	// last ingestion run.
	Health *health.Manager
	// Now defaults to time.Now.
	Now func() time.Time
}

// staleAfter degrades readiness when no ingestion completed for this long.
const staleAfter = 24 * time.Hour

// Server is the HTTP front end.
type Server struct {
	cfg     config.AppConfig
	store   *store.Store
	runner  ProcessRunner
	cache   cache.Cache
	health  *health.Manager
	now     func() time.Time
	opts    epg.TimelineOptions
	router  http.Handler
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New validates deps and builds the router.
func New(deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if deps.Runner == nil {
		return nil, errors.New("api: runner is required")
	}
	engine, err := epg.NewEngine(epg.Config{
		Timezone: deps.Config.Engine.Timezone,
		MinGap:   deps.Config.Engine.MinGap,
		Workers:  deps.Config.Engine.Workers,
	})
	if err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Health == nil {
		deps.Health = DefaultHealth(deps.Config.Version, deps.Store, deps.Runner)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     deps.Config,
		store:   deps.Store,
		runner:  deps.Runner,
		cache:   deps.Cache,
		health:  deps.Health,
		now:     deps.Now,
		opts:    engine.TimelineOptions(),
		baseCtx: ctx,
		cancel:  cancel,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Close cancels ingestion runs started through the API and waits for
// them to return.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) routes() http.Handler {
	tracing := ""
	if s.cfg.Telemetry.Enabled {
		tracing = s.cfg.Telemetry.ServiceName
	}
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins:        s.cfg.API.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracing,
		EnableLogging:         true,
		RateLimit:             s.cfg.API.RateLimit,
	})

	r.Get("/healthz", s.health.ServeLive)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Route("/sources/{source}", func(r chi.Router) {
			r.Get("/channels", s.handleChannels)
			r.Get("/dates", s.handleDates)
			r.Get("/epg/{date}", s.handleEPGByDate)
			r.Get("/channels/{channel}/epg", s.handleChannelEPG)
			r.Get("/nownext", s.handleNowNext)
			r.Get("/xmltv", s.handleXMLTV)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRFProtection(s.cfg.API.AllowedOrigins))
			if s.cfg.API.ProcessLimit > 0 {
				r.Use(middleware.ProcessRateLimit(s.cfg.API.ProcessLimit))
			}
			r.Post("/process", s.handleProcess)
		})
		r.Get("/process/status", s.handleProcessStatus)
	})
	return r
}

// DefaultHealth returns a health manager checking the published index and
// the last ingestion run.
func DefaultHealth(version string, st *store.Store, runner ProcessRunner) *health.Manager {
	m := health.NewManager(version)
	m.Register(
		health.NewIndexChecker(st.IndexPath()),
		health.NewLastRunChecker(func() health.RunInfo {
			s := runner.Status()
			return health.RunInfo{State: string(s.State), FinishedAt: s.FinishedAt}
		}, staleAfter),
	)
	return m
}
