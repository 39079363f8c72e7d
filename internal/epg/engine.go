// SPDX-License-Identifier: MIT

package epg

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bacco007/webepg/internal/log"
)

// Config configures an Engine.
type Config struct {
	// Timezone is the IANA name timelines are built in. Empty means UTC.
	Timezone string
	MinGap   time.Duration
	Workers  int
}

// Engine turns raw extraction batches into canonical channels and
// deduplicated programmes, and reports the timeline coverage they give.
// It keeps no state between runs.
type Engine struct {
	loc     *time.Location
	minGap  time.Duration
	workers int
}

// Batch is one source's raw records.
type Batch struct {
	Source     string
	Providers  []Provider
	Channels   []RawChannel
	Programmes []RawProgramme
	// RoundToMinute snaps programme bounds to whole minutes.
	RoundToMinute bool
}

// Report counts what a run removed, repaired or could not resolve.
type Report struct {
	Source               string `json:"source"`
	Providers            int    `json:"providers"`
	Channels             int    `json:"channels"`
	ProgrammesIn         int    `json:"programmes_in"`
	Programmes           int    `json:"programmes"`
	DuplicateChannels    int    `json:"duplicate_channels"`
	DuplicateProgrammes  int    `json:"duplicate_programmes"`
	ExemptRepeats        int    `json:"exempt_repeats"`
	UnresolvedNumbers    int    `json:"unresolved_numbers"`
	AmbiguousIdentities  int    `json:"ambiguous_identities"`
	MalformedTimestamps  int    `json:"malformed_timestamps"`
	UnassignedProgrammes int    `json:"unassigned_programmes"`
	Timelines            int    `json:"timelines"`
	FillerBlocks         int    `json:"filler_blocks"`
}

// Result is the output of one Engine run.
type Result struct {
	Source     string
	Timezone   string
	Providers  []ProviderChannels
	Programmes []Programme
	Report     Report
}

// LoadLocation resolves an IANA timezone name, returning an
// *UnknownTimezoneError for invalid names.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &UnknownTimezoneError{Name: name}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &UnknownTimezoneError{Name: name, Err: err}
	}
	return loc, nil
}

// NewEngine validates cfg. An invalid timezone is fatal.
func NewEngine(cfg Config) (*Engine, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	minGap := cfg.MinGap
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	return &Engine{loc: loc, minGap: minGap, workers: cfg.Workers}, nil
}

// TimelineOptions returns options for building timelines the way the
// engine counts them.
func (e *Engine) TimelineOptions() TimelineOptions {
	return TimelineOptions{MinGap: e.minGap, Workers: e.workers}
}

// Run processes b. Per-record problems are logged and counted in the
// report; only an empty batch fails the run.
func (e *Engine) Run(ctx context.Context, b Batch) (*Result, error) {
	if len(b.Channels) == 0 && len(b.Programmes) == 0 {
		return nil, ErrEmptyBatch
	}
	logger := log.WithComponentFromContext(ctx, "engine").With().Str(log.FieldSource, b.Source).Logger()

	report := Report{Source: b.Source, ProgrammesIn: len(b.Programmes)}

	providers, merge := Merge(b.Providers, b.Channels)
	for _, miss := range merge.Unresolved {
		logger.Warn().
			Err(ErrUnresolvedChannelNumber).
			Str("event", "engine.lcn_unresolved").
			Str(log.FieldProvider, miss.Provider).
			Str(log.FieldGuideLink, miss.GuideLink).
			Msg("no channel number candidate accepted")
	}
	for _, id := range merge.DroppedProvider {
		logger.Debug().Str("event", "engine.provider_empty").Str(log.FieldProvider, id).Msg("provider has no channels")
	}
	report.UnresolvedNumbers = len(merge.Unresolved)
	report.DuplicateChannels = merge.Duplicates
	report.ExemptRepeats = merge.ExemptRepeats

	parsed := make([]Programme, 0, len(b.Programmes))
	for _, rp := range b.Programmes {
		p, err := normalizeProgramme(rp, b.RoundToMinute)
		if err != nil {
			report.MalformedTimestamps++
			logger.Warn().
				Err(err).
				Str("event", "engine.timestamp_malformed").
				Str(log.FieldChannel, rp.Channel).
				Str("title", rp.Title).
				Msg("skipping programme")
			continue
		}
		if p.Slug == "" {
			report.UnassignedProgrammes++
		}
		parsed = append(parsed, p)
	}
	if report.UnassignedProgrammes > 0 {
		logger.Warn().
			Str("event", "engine.programme_unassigned").
			Int("count", report.UnassignedProgrammes).
			Msg("programmes without a channel are kept but left out of timelines")
	}

	programmes, removed := Dedupe(parsed, func(p Programme) (string, bool) {
		k, ok := ProgrammeDedupKey(p)
		if !ok {
			report.AmbiguousIdentities++
		}
		return k, ok
	})
	if report.AmbiguousIdentities > 0 {
		logger.Warn().
			Err(ErrAmbiguousIdentity).
			Str("event", "engine.identity_ambiguous").
			Int("count", report.AmbiguousIdentities).
			Msg("programmes without identity kept")
	}
	report.DuplicateProgrammes = removed
	sort.SliceStable(programmes, func(i, j int) bool {
		if programmes[i].Slug != programmes[j].Slug {
			return programmes[i].Slug < programmes[j].Slug
		}
		return programmes[i].Start.Before(programmes[j].Start)
	})
	report.Programmes = len(programmes)

	counts := make(map[string]int)
	for _, p := range programmes {
		counts[p.Slug]++
	}
	var slugs []string
	for i := range providers {
		channels := make([]CanonicalChannel, len(providers[i].Channels))
		for j, c := range providers[i].Channels {
			c.ProgramCount = counts[c.Slug]
			channels[j] = c
			slugs = append(slugs, c.Slug)
		}
		providers[i].Channels = channels
		report.Channels += len(channels)
	}
	report.Providers = len(providers)

	report.Timelines, report.FillerBlocks = FillerStats(programmes, slugs, e.loc, e.minGap)

	logger.Info().
		Str("event", "engine.run_complete").
		Int("providers", report.Providers).
		Int("channels", report.Channels).
		Int("programmes", report.Programmes).
		Int("duplicates_removed", report.DuplicateProgrammes+report.DuplicateChannels).
		Msg("batch normalized")

	return &Result{
		Source:     b.Source,
		Timezone:   e.loc.String(),
		Providers:  providers,
		Programmes: programmes,
		Report:     report,
	}, nil
}

func normalizeProgramme(rp RawProgramme, round bool) (Programme, error) {
	start, err := ParseTimestamp(rp.Start)
	if err != nil {
		return Programme{}, &MalformedTimestampError{Field: "start", Value: rp.Start, Err: unwrapMalformed(err)}
	}
	end, err := ParseTimestamp(rp.Stop)
	if err != nil {
		return Programme{}, &MalformedTimestampError{Field: "stop", Value: rp.Stop, Err: unwrapMalformed(err)}
	}
	if round {
		start, end = RoundToMinute(start), RoundToMinute(end)
	}
	return Programme{
		Slug:            Slugify(rp.Channel),
		GuideID:         rp.GuideID,
		EventID:         rp.EventID,
		Start:           start,
		End:             end,
		Title:           rp.Title,
		Subtitle:        rp.Subtitle,
		Description:     rp.Description,
		Categories:      splitCategories(rp.Categories),
		Episode:         rp.Episode,
		OriginalAirDate: rp.OriginalAirDate,
		Rating:          rp.Rating,
	}, nil
}

func unwrapMalformed(err error) error {
	if errors.Is(err, ErrMalformedTimestamp) {
		return nil
	}
	return err
}

// splitCategories flattens comma-separated category values.
func splitCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		for _, part := range strings.Split(c, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
