// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/epg"
	applog "github.com/bacco007/webepg/internal/log"
	"github.com/bacco007/webepg/internal/source"
	"github.com/bacco007/webepg/internal/store"
	"github.com/bacco007/webepg/internal/telemetry"
)

// syntheticProvider is the bouquet number given to the single provider of
// xmltv and csv sources.
const syntheticProvider = 1

func (r *Runner) feedPath(src config.Source) string {
	return filepath.Join(r.deps.Config.DataDir, "feeds", src.ID+".xml")
}

// runSource extracts, normalizes and publishes one configured source.
func (r *Runner) runSource(ctx context.Context, src config.Source, fetched source.FetchResult) (SourceResult, []store.IndexEntry) {
	ctx = applog.ContextWithSource(ctx, src.ID)
	logger := applog.WithComponentFromContext(ctx, "jobs")
	ctx, span := r.tracer.Start(ctx, "jobs.source")
	defer span.End()
	span.SetAttributes(telemetry.SourceAttributes(src.ID, src.Kind)...)

	start := r.deps.Clock()
	res := SourceResult{ID: src.ID, Kind: src.Kind}
	fail := func(err error) (SourceResult, []store.IndexEntry) {
		res.State = SourceFailed
		res.Error = err.Error()
		res.DurationMS = r.deps.Clock().Sub(start).Milliseconds()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Str("event", "source.failed").Str("kind", src.Kind).Msg("source processing failed")
		return res, nil
	}

	batch, err := r.extract(ctx, src, fetched)
	if err != nil {
		return fail(fmt.Errorf("extract: %w", err))
	}

	result, err := r.engine.Run(ctx, batch)
	if errors.Is(err, epg.ErrEmptyBatch) {
		res.State = SourceSkipped
		res.DurationMS = r.deps.Clock().Sub(start).Milliseconds()
		logger.Warn().Str("event", "source.empty").Msg("source produced no channels or programmes")
		return res, nil
	}
	if err != nil {
		return fail(fmt.Errorf("normalize: %w", err))
	}
	r.deps.Metrics.RecordResult(result)

	var overlay []epg.CanonicalChannel
	if src.Overlay != "" {
		if overlay, err = loadOverlay(src.Overlay); err != nil {
			return fail(err)
		}
	}

	entries, err := r.publishResult(ctx, src, result, overlay)
	if err != nil {
		return fail(fmt.Errorf("publish: %w", err))
	}

	rep := result.Report
	res.State = SourceProcessed
	res.Programmes = rep.Programmes
	res.Removed = rep.DuplicateChannels + rep.DuplicateProgrammes
	for _, pc := range result.Providers {
		res.Channels += len(pc.Channels)
	}
	for _, e := range entries {
		res.Outputs = append(res.Outputs, e.ID)
	}
	res.DurationMS = r.deps.Clock().Sub(start).Milliseconds()

	span.SetAttributes(telemetry.ResultAttributes(len(result.Providers), res.Channels, res.Programmes, res.Removed)...)
	span.SetAttributes(attribute.Int("outputs", len(entries)))
	logger.Info().
		Str("event", "source.processed").
		Int("providers", len(result.Providers)).
		Int("channels", res.Channels).
		Int("programmes", res.Programmes).
		Int("removed", res.Removed).
		Int("unresolved_numbers", rep.UnresolvedNumbers).
		Int("malformed_timestamps", rep.MalformedTimestamps).
		Msg("source processed")
	return res, entries
}

// extract builds the engine batch of src.
func (r *Runner) extract(ctx context.Context, src config.Source, fetched source.FetchResult) (epg.Batch, error) {
	enc, err := source.ParseEncoding(src.Encoding)
	if err != nil {
		return epg.Batch{}, err
	}

	switch src.Kind {
	case config.KindSQL:
		return r.extractSQL(ctx, src)

	case config.KindCSV:
		channels, err := readChannelsCSV(ctx, src.Path, enc)
		if err != nil {
			return epg.Batch{}, err
		}
		p := src.Provider(syntheticProvider)
		for i := range channels {
			channels[i].Bouquets = []int{p.Num}
		}
		return epg.Batch{Source: src.ID, Providers: []epg.Provider{p}, Channels: channels}, nil

	case config.KindXMLTV:
		path, err := r.feedFile(ctx, src, fetched)
		if err != nil {
			return epg.Batch{}, err
		}
		// #nosec G304 -- feed paths come from the operator's source index
		f, err := os.Open(path)
		if err != nil {
			return epg.Batch{}, fmt.Errorf("open feed: %w", err)
		}
		defer func() { _ = f.Close() }()
		feed, err := source.ParseXMLTV(f)
		if err != nil {
			return epg.Batch{}, err
		}
		batch := feed.Batch(src.Provider(syntheticProvider))
		if src.ChannelsCSV != "" {
			extra, err := readChannelsCSV(ctx, src.ChannelsCSV, enc)
			if err != nil {
				return epg.Batch{}, err
			}
			batch.Channels = overrideChannels(batch.Channels, extra, syntheticProvider)
		}
		return batch, nil
	}
	return epg.Batch{}, fmt.Errorf("%w: kind %q", config.ErrInvalidSource, src.Kind)
}

func (r *Runner) extractSQL(ctx context.Context, src config.Source) (epg.Batch, error) {
	db, err := source.OpenSQL(src.Driver, src.DSN)
	if err != nil {
		return epg.Batch{}, err
	}
	defer func() { _ = db.Close() }()

	now := r.deps.Clock()
	from := now.AddDate(0, 0, -1)
	to := now.AddDate(0, 0, r.deps.Config.Engine.Days)

	var keep func(epg.Provider) bool
	if len(src.Providers) > 0 {
		keep = func(p epg.Provider) bool { return slices.Contains(src.Providers, p.ID) }
	}
	return db.Batch(ctx, src.ID, from, to, keep)
}

// feedFile returns the local XMLTV file of src. A failed download falls
// back to the previous copy when one exists.
func (r *Runner) feedFile(ctx context.Context, src config.Source, fetched source.FetchResult) (string, error) {
	if src.URL == "" {
		return src.Path, nil
	}
	path := r.feedPath(src)
	if fetched.Err == nil {
		return path, nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("download %s: %w", src.URL, fetched.Err)
	}
	logger := applog.WithComponentFromContext(ctx, "jobs")
	logger.Warn().Err(fetched.Err).
		Str("event", "source.stale_feed").
		Str(applog.FieldPath, path).
		Msg("download failed, using previous copy")
	return path, nil
}

// publishResult writes the channel and programme documents of every provider in
// result and returns their index entries.
func (r *Runner) publishResult(ctx context.Context, src config.Source, result *epg.Result, overlay []epg.CanonicalChannel) ([]store.IndexEntry, error) {
	generated := r.deps.Clock().UTC()
	entries := make([]store.IndexEntry, 0, len(result.Providers))

	for _, pc := range result.Providers {
		id := outputID(src, pc.Provider)
		channels := pc.Channels
		if overlay != nil {
			var rep source.OverlayReport
			channels, rep = source.ApplyOverlay(channels, overlay)
			logger := applog.WithComponentFromContext(ctx, "jobs")
			logger.Debug().
				Str("event", "source.overlay").
				Str(applog.FieldProvider, pc.Provider.ID).
				Int("replaced", rep.Replaced).
				Int("added", rep.Added).
				Msg("overlay applied")
		}

		if err := writeJSON(ctx, r.deps.Writer, r.store.ChannelsPath(id), store.ChannelsDoc{
			Source:    id,
			Provider:  pc.Provider,
			Generated: generated,
			Channels:  channels,
		}); err != nil {
			return nil, err
		}
		if err := writeJSON(ctx, r.deps.Writer, r.store.EPGPath(id), store.ProgrammesDoc{
			Source:     id,
			Timezone:   result.Timezone,
			Generated:  generated,
			Programmes: programmesFor(result.Programmes, channels),
		}); err != nil {
			return nil, err
		}

		entries = append(entries, store.IndexEntry{
			ID:       id,
			Name:     pc.Provider.Name,
			Group:    pc.Provider.Group,
			Subgroup: pc.Provider.Subgroup,
			Location: pc.Provider.Location,
			URL:      pc.Provider.URL,
			Origin:   src.ID,
		})
	}
	return entries, nil
}

// programmesFor keeps the programmes of the given channels.
func programmesFor(programmes []epg.Programme, channels []epg.CanonicalChannel) []epg.Programme {
	slugs := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		slugs[c.Slug] = struct{}{}
	}
	out := make([]epg.Programme, 0, len(programmes))
	for _, p := range programmes {
		if _, ok := slugs[p.Slug]; ok {
			out = append(out, p)
		}
	}
	return out
}

// overrideChannels replaces channels by guidelink with rows from extra and
// appends rows for new guidelinks. Every row joins bouquet num.
func overrideChannels(channels, extra []epg.RawChannel, num int) []epg.RawChannel {
	byLink := make(map[string]int, len(channels))
	out := slices.Clone(channels)
	for i, c := range out {
		byLink[c.GuideLink] = i
	}
	for _, c := range extra {
		c.Bouquets = []int{num}
		if i, ok := byLink[c.GuideLink]; ok {
			out[i] = c
			continue
		}
		byLink[c.GuideLink] = len(out)
		out = append(out, c)
	}
	return out
}

func readChannelsCSV(ctx context.Context, path string, enc source.Encoding) ([]epg.RawChannel, error) {
	// #nosec G304 -- csv paths come from the operator's source index
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open channels csv: %w", err)
	}
	defer func() { _ = f.Close() }()
	channels, skipped, err := source.ReadChannelsCSV(f, enc)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger := applog.WithComponentFromContext(ctx, "jobs")
		logger.Warn().
			Str("event", "source.csv_rows_skipped").
			Str(applog.FieldPath, path).
			Int("skipped", skipped).
			Msg("csv rows without guidelink skipped")
	}
	return channels, nil
}

func loadOverlay(path string) ([]epg.CanonicalChannel, error) {
	// #nosec G304 -- overlay paths come from the operator's source index
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open overlay: %w", err)
	}
	defer func() { _ = f.Close() }()
	entries, err := source.LoadOverlay(f)
	if err != nil {
		return nil, fmt.Errorf("load overlay %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}
