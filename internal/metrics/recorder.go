// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/bacco007/webepg/internal/epg"
)

// Recorder forwards ingestion events to the package collectors.
type Recorder struct{}

// RecordRun records a finished run.
func (Recorder) RecordRun(status string, d time.Duration) {
	IncRun(status)
	if status == "rejected" {
		return
	}
	ObserveRunDuration(d.Seconds())
	if status == "completed" {
		MarkRunCompleted(time.Now().Unix())
	}
}

// RecordSource records the outcome of one source.
func (Recorder) RecordSource(state string) { IncSourceProcessed(state) }

// RecordFetch records the outcome of one feed download.
func (Recorder) RecordFetch(outcome string) { IncFeedDownload(outcome) }

// RecordResult publishes the engine report and per-provider channel counts.
func (Recorder) RecordResult(res *epg.Result) {
	if res == nil {
		return
	}
	r := res.Report
	SetProgrammes(res.Source, r.Programmes)
	SetFillerBlocks(res.Source, r.FillerBlocks)
	AddDuplicates("channel", r.DuplicateChannels)
	AddDuplicates("programme", r.DuplicateProgrammes)
	AddLCNMisses(res.Source, r.UnresolvedNumbers)
	AddMalformedTimestamps(res.Source, r.MalformedTimestamps)
	for _, pc := range res.Providers {
		SetProviderChannels(res.Source, pc.Provider.ID, len(pc.Channels))
	}
}
