// SPDX-License-Identifier: MIT

// Package jobs runs ingestion: it extracts every configured source, feeds
// the batches through the normalization engine and publishes the results
// as JSON documents.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/epg"
	applog "github.com/bacco007/webepg/internal/log"
	"github.com/bacco007/webepg/internal/source"
	"github.com/bacco007/webepg/internal/store"
	"github.com/bacco007/webepg/internal/telemetry"
)

var (
	// ErrAlreadyRunning is returned by Run while another run is in progress.
	ErrAlreadyRunning = errors.New("ingestion already running")
	// ErrUnknownSource is reported for requested source ids not in the index.
	ErrUnknownSource = errors.New("unknown source")
)

const maxWorkers = 64

// Runner executes ingestion runs one at a time.
type Runner struct {
	deps   Deps
	engine *epg.Engine
	store  *store.Store
	tracer trace.Tracer

	mu      sync.Mutex
	running bool
	status  Status

	subMu   sync.Mutex
	subs    map[int]chan Status
	nextSub int
}

// NewRunner validates deps and returns an idle runner. An invalid engine
// timezone is fatal.
func NewRunner(deps Deps) (*Runner, error) {
	if deps.Sources == nil {
		return nil, errors.New("jobs: source index is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Writer == nil {
		deps.Writer = AtomicWriter{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	engine, err := epg.NewEngine(epg.Config{
		Timezone: deps.Config.Engine.Timezone,
		MinGap:   deps.Config.Engine.MinGap,
		Workers:  clampConcurrency(deps.Config.Engine.Workers, runtime.GOMAXPROCS(0), maxWorkers),
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	return &Runner{
		deps:   deps,
		engine: engine,
		store:  store.New(deps.Config.OutputDir),
		tracer: telemetry.Tracer("webepg/jobs"),
		status: Status{State: StateIdle},
		subs:   make(map[int]chan Status),
	}, nil
}

// Status returns a snapshot of the current or last run.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.clone()
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Subscribe returns a channel receiving a snapshot after every state
// change and a function that ends the subscription. Slow subscribers miss
// intermediate snapshots.
func (r *Runner) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 8)
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
			close(ch)
		})
	}
}

func (r *Runner) publish(s Status) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- s.clone():
		default:
		}
	}
}

// update applies fn to the status under the lock and publishes the result.
func (r *Runner) update(fn func(*Status)) Status {
	r.mu.Lock()
	fn(&r.status)
	snap := r.status.clone()
	r.mu.Unlock()
	r.publish(snap)
	return snap
}

// Run processes the selected sources sequentially. A failing source is
// recorded and the run continues, leaving earlier outputs intact. The
// returned status is the final snapshot.
func (r *Runner) Run(ctx context.Context, opts Options) (Status, error) {
	r.mu.Lock()
	if r.running {
		snap := r.status.clone()
		r.mu.Unlock()
		r.deps.Metrics.RecordRun("rejected", 0)
		return snap, ErrAlreadyRunning
	}
	r.running = true
	started := r.deps.Clock()
	r.status = Status{
		JobID:     r.deps.NewID(),
		State:     StateRunning,
		StartedAt: started,
		Sources:   []SourceResult{},
	}
	jobID := r.status.JobID
	snap := r.status.clone()
	r.mu.Unlock()
	r.publish(snap)

	ctx = applog.ContextWithJobID(ctx, jobID)
	logger := applog.WithComponentFromContext(ctx, "jobs")
	ctx, span := r.tracer.Start(ctx, "jobs.run", trace.WithAttributes(attribute.String(telemetry.JobIDKey, jobID)))
	defer span.End()

	logger.Info().Str("event", "run.start").Bool("force", opts.Force).Strs("sources", opts.Sources).Msg("starting ingestion run")

	sources, unknown := selectSources(r.deps.Sources.Sources(), opts.Sources)
	for _, err := range unknown {
		logger.Warn().Err(err).Str("event", "run.unknown_source").Msg("requested source is not configured")
		r.update(func(s *Status) { s.Errors = append(s.Errors, err.Error()) })
	}

	fetched := r.prefetch(ctx, sources, opts.Force)

	var (
		fresh     []store.IndexEntry
		refreshed []string
		failed    int
	)
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		r.update(func(s *Status) { s.Current = src.ID })

		res, entries := r.runSource(ctx, src, fetched[src.ID])
		r.deps.Metrics.RecordSource(string(res.State))
		switch res.State {
		case SourceProcessed:
			fresh = append(fresh, entries...)
			refreshed = append(refreshed, src.ID)
		case SourceFailed:
			failed++
		}
		r.update(func(s *Status) {
			s.Sources = append(s.Sources, res)
			if res.Error != "" {
				s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", src.ID, res.Error))
			}
		})
	}

	if len(refreshed) > 0 {
		if err := r.writeIndex(ctx, fresh, refreshed); err != nil {
			logger.Error().Err(err).Str("event", "run.index_failed").Msg("failed to write source index")
			r.update(func(s *Status) { s.Errors = append(s.Errors, err.Error()) })
			failed++
		}
	}

	state := StateCompleted
	var runErr error
	switch {
	case ctx.Err() != nil:
		state, runErr = StateFailed, ctx.Err()
	case len(sources) > 0 && failed >= len(sources):
		state = StateFailed
	}

	finished := r.deps.Clock()
	final := r.update(func(s *Status) {
		s.State = state
		s.Current = ""
		s.FinishedAt = finished
		if runErr != nil {
			s.Errors = append(s.Errors, runErr.Error())
		}
	})
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	elapsed := finished.Sub(started)
	r.deps.Metrics.RecordRun(string(state), elapsed)
	span.SetAttributes(telemetry.JobAttributes(jobID, string(state), elapsed.Milliseconds())...)
	if state == StateFailed {
		span.SetStatus(codes.Error, "ingestion failed")
	}

	ev := logger.Info()
	if state == StateFailed {
		ev = logger.Error()
	}
	ev.Str("event", "run.finished").
		Str("state", string(state)).
		Int("sources", len(sources)).
		Int("failed", failed).
		Dur("duration", elapsed).
		Msg("ingestion run finished")
	return final, runErr
}

// prefetch downloads every remote feed of sources in one bounded pool.
func (r *Runner) prefetch(ctx context.Context, sources []config.Source, force bool) map[string]source.FetchResult {
	if r.deps.Fetcher == nil {
		return nil
	}
	var targets []source.FetchTarget
	for _, src := range sources {
		if src.Kind == config.KindXMLTV && src.URL != "" {
			targets = append(targets, source.FetchTarget{
				ID:    src.ID,
				URL:   src.URL,
				Path:  r.feedPath(src),
				Force: force,
			})
		}
	}
	if len(targets) == 0 {
		return nil
	}
	out := make(map[string]source.FetchResult, len(targets))
	for _, res := range r.deps.Fetcher.FetchAll(ctx, targets) {
		switch {
		case res.Err != nil:
			r.deps.Metrics.RecordFetch("error")
		case res.Skipped:
			r.deps.Metrics.RecordFetch("skipped")
		default:
			r.deps.Metrics.RecordFetch("success")
		}
		out[res.ID] = res
	}
	return out
}

func (r *Runner) writeIndex(ctx context.Context, fresh []store.IndexEntry, refreshed []string) error {
	prev, err := r.store.Sources(ctx)
	if err != nil {
		// An unreadable index is rebuilt from this run alone.
		logger := applog.WithComponentFromContext(ctx, "jobs")
		logger.Warn().Err(err).
			Str("event", "run.index_unreadable").
			Msg("previous source index unreadable, rebuilding")
		prev = nil
	}
	merged := store.MergeIndex(prev, fresh, refreshed)
	return writeJSON(ctx, r.deps.Writer, r.store.IndexPath(), merged)
}
