// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"slices"
	"time"

	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/epg"
	"github.com/bacco007/webepg/internal/source"
)

// State is the lifecycle state of an ingestion run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// SourceState is the outcome of one configured source within a run.
type SourceState string

const (
	SourceProcessed SourceState = "processed"
	SourceSkipped   SourceState = "skipped"
	SourceFailed    SourceState = "failed"
)

// SourceResult summarises one source of a run.
type SourceResult struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	State      SourceState `json:"state"`
	Outputs    []string    `json:"outputs,omitempty"`
	Channels   int         `json:"channels"`
	Programmes int         `json:"programmes"`
	Removed    int         `json:"removed"`
	DurationMS int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// Status is a snapshot of the runner. Values handed out by the runner
// never share memory with its internal state.
type Status struct {
	JobID      string         `json:"job_id,omitempty"`
	State      State          `json:"state"`
	StartedAt  time.Time      `json:"started_at,omitzero"`
	FinishedAt time.Time      `json:"finished_at,omitzero"`
	Current    string         `json:"current,omitempty"`
	Sources    []SourceResult `json:"sources"`
	Errors     []string       `json:"errors,omitempty"`
}

func (s Status) clone() Status {
	out := s
	out.Sources = make([]SourceResult, len(s.Sources))
	for i, r := range s.Sources {
		r.Outputs = slices.Clone(r.Outputs)
		out.Sources[i] = r
	}
	out.Errors = slices.Clone(s.Errors)
	return out
}

// MetricsRecorder receives run, source and fetch outcomes.
type MetricsRecorder interface {
	RecordRun(status string, d time.Duration)
	RecordSource(state string)
	RecordFetch(outcome string)
	RecordResult(res *epg.Result)
}

// FileWriter defines the interface for writing files atomically
type FileWriter interface {
	WriteAtomic(ctx context.Context, path string, data []byte) error
}

// SourceIndex provides the current source configuration.
type SourceIndex interface {
	Sources() []config.Source
}

// FeedFetcher downloads remote XMLTV feeds.
type FeedFetcher interface {
	FetchAll(ctx context.Context, targets []source.FetchTarget) []source.FetchResult
}

// Options controls a single run.
type Options struct {
	Force   bool     `json:"force"`   // download feeds even when cached copies are fresh
	Sources []string `json:"sources"` // source ids to process, empty means all
}

// Deps holds all dependencies of a Runner. Metrics, Writer, Fetcher, Clock
// and NewID have working defaults.
type Deps struct {
	Config  config.AppConfig
	Sources SourceIndex
	Metrics MetricsRecorder
	Writer  FileWriter
	Fetcher FeedFetcher
	Clock   func() time.Time
	NewID   func() string
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string, time.Duration) {}
func (nopMetrics) RecordSource(string)             {}
func (nopMetrics) RecordFetch(string)              {}
func (nopMetrics) RecordResult(*epg.Result)        {}
