// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus collectors of webepg.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webepg_runs_total",
		Help: "Ingestion runs by final status",
	}, []string{"status"}) // status=completed|failed|rejected

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webepg_run_duration_seconds",
		Help:    "Duration of ingestion runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2.0, 10), // 0.5s .. ~256s
	})

	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webepg_last_run_timestamp",
		Help: "Unix timestamp of the last completed ingestion run",
	})

	sourcesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webepg_sources_processed_total",
		Help: "Sources handled by ingestion runs by outcome",
	}, []string{"state"}) // state=processed|skipped|failed

	providerChannels = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webepg_provider_channels",
		Help: "Resolved channel entries per provider (last run)",
	}, []string{"source", "provider"})

	programmesIngested = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webepg_programmes",
		Help: "Normalized programmes per source (last run)",
	}, []string{"source"})

	duplicatesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webepg_duplicates_removed_total",
		Help: "Records removed by deduplication",
	}, []string{"kind"}) // kind=channel|programme

	lcnMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webepg_lcn_unresolved_total",
		Help: "Channels for which no channel number candidate was accepted",
	}, []string{"source"})

	malformedTimestamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webepg_malformed_timestamps_total",
		Help: "Programmes dropped because a timestamp could not be parsed",
	}, []string{"source"})

	fillerBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webepg_filler_blocks",
		Help: "Filler blocks inserted into timelines (last run)",
	}, []string{"source"})

	feedDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webepg_feed_downloads_total",
		Help: "Remote feed downloads by outcome",
	}, []string{"outcome"}) // outcome=downloaded|fresh|error

	configReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webepg_sources_reloads_total",
		Help: "Reloads of the source index by outcome",
	}, []string{"outcome"}) // outcome=success|error
)

func IncRun(status string) { runsTotal.WithLabelValues(status).Inc() }

func ObserveRunDuration(seconds float64) {
	runDuration.Observe(seconds)
}

func MarkRunCompleted(unix int64) { lastRunTimestamp.Set(float64(unix)) }

func IncSourceProcessed(state string) { sourcesProcessed.WithLabelValues(state).Inc() }

func SetProviderChannels(source, provider string, n int) {
	providerChannels.WithLabelValues(source, provider).Set(float64(n))
}

func SetProgrammes(source string, n int) { programmesIngested.WithLabelValues(source).Set(float64(n)) }

func AddDuplicates(kind string, n int) {
	if n > 0 {
		duplicatesRemoved.WithLabelValues(kind).Add(float64(n))
	}
}

func AddLCNMisses(source string, n int) {
	if n > 0 {
		lcnMisses.WithLabelValues(source).Add(float64(n))
	}
}

func AddMalformedTimestamps(source string, n int) {
	if n > 0 {
		malformedTimestamps.WithLabelValues(source).Add(float64(n))
	}
}

func SetFillerBlocks(source string, n int) { fillerBlocks.WithLabelValues(source).Set(float64(n)) }

func IncFeedDownload(outcome string) { feedDownloads.WithLabelValues(outcome).Inc() }

func IncSourcesReload(outcome string) { configReloads.WithLabelValues(outcome).Inc() }
