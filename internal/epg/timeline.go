// SPDX-License-Identifier: MIT

package epg

import (
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Timeline is the completed schedule of one channel on one local date.
type Timeline struct {
	Date    string  `json:"date"`
	Channel string  `json:"channel"`
	Blocks  []Block `json:"programs"`
}

// TimelineOptions tunes BuildTimelines.
type TimelineOptions struct {
	// MinGap is the filler threshold. Zero means DefaultMinGap.
	MinGap time.Duration
	// Workers bounds per-channel parallelism. Zero means GOMAXPROCS.
	Workers int
	// Dates forces timelines for these local dates (DateLayout) even when
	// no programme touches them.
	Dates []string
}

// dayIndex groups projected blocks by local date, then channel slug.
type dayIndex map[string]map[string][]ProgramBlock

func (ix dayIndex) add(date, slug string, b ProgramBlock) {
	channels, ok := ix[date]
	if !ok {
		channels = make(map[string][]ProgramBlock)
		ix[date] = channels
	}
	channels[slug] = append(channels[slug], b)
}

func (ix dayIndex) get(date, slug string) []ProgramBlock {
	channels, ok := ix[date]
	if !ok {
		return nil
	}
	return channels[slug]
}

// BuildTimelines projects programmes into loc and completes a timeline for
// every (date, channel) pair. Channels are the union of channels and the
// slugs referenced by programmes; dates are every local date touched by a
// programme plus opts.Dates. Programmes without a channel slug cannot be
// placed and are ignored. Channels are processed in parallel and the
// result is ordered by channel slug, then date.
func BuildTimelines(programmes []Programme, channels []string, loc *time.Location, opts TimelineOptions) []Timeline {
	minGap := opts.MinGap
	if minGap == 0 {
		minGap = DefaultMinGap
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ix, slugs, dates := indexDays(programmes, channels, loc, opts.Dates)
	results := make([][]Timeline, len(slugs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, slug := range slugs {
		g.Go(func() error {
			lines := make([]Timeline, 0, len(dates))
			for _, date := range dates {
				day, _ := time.ParseInLocation(DateLayout, date, loc)
				blocks := Complete(ix.get(date, slug), slug, StartOfDay(day, loc), EndOfDay(day, loc), minGap)
				lines = append(lines, Timeline{Date: date, Channel: slug, Blocks: blocks})
			}
			results[i] = lines
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Timeline, 0, len(slugs)*len(dates))
	for _, lines := range results {
		out = append(out, lines...)
	}
	return out
}

// FillerStats returns how many timelines BuildTimelines would produce for
// the same input and how many filler blocks they would hold, without
// building them.
func FillerStats(programmes []Programme, channels []string, loc *time.Location, minGap time.Duration) (timelines, fillers int) {
	if minGap == 0 {
		minGap = DefaultMinGap
	}
	ix, slugs, dates := indexDays(programmes, channels, loc, nil)
	for _, slug := range slugs {
		for _, date := range dates {
			day, _ := time.ParseInLocation(DateLayout, date, loc)
			walkDay(ix.get(date, slug), StartOfDay(day, loc), EndOfDay(day, loc), minGap,
				func(ProgramBlock) {},
				func(time.Time, time.Time) { fillers++ },
			)
		}
	}
	return len(slugs) * len(dates), fillers
}

// indexDays projects programmes into loc and returns the blocks grouped by
// date and slug, with the sorted channel slugs and dates to cover.
func indexDays(programmes []Programme, channels []string, loc *time.Location, extraDates []string) (dayIndex, []string, []string) {
	ix := make(dayIndex)
	slugSet := make(map[string]struct{}, len(channels))
	dateSet := make(map[string]struct{})
	for _, c := range channels {
		if c != "" {
			slugSet[c] = struct{}{}
		}
	}
	for _, p := range programmes {
		if p.Slug == "" {
			continue
		}
		slugSet[p.Slug] = struct{}{}
		for _, b := range Project(p, loc) {
			date := b.Start.Format(DateLayout)
			ix.add(date, p.Slug, b)
			dateSet[date] = struct{}{}
		}
	}
	for _, d := range extraDates {
		if _, err := time.ParseInLocation(DateLayout, d, loc); err == nil {
			dateSet[d] = struct{}{}
		}
	}
	return ix, sortedKeys(slugSet), sortedKeys(dateSet)
}

// ByDate filters timelines to a single local date.
func ByDate(timelines []Timeline, date string) []Timeline {
	var out []Timeline
	for _, t := range timelines {
		if t.Date == date {
			out = append(out, t)
		}
	}
	return out
}

// ByChannel filters timelines to a single channel slug.
func ByChannel(timelines []Timeline, slug string) []Timeline {
	var out []Timeline
	for _, t := range timelines {
		if t.Channel == slug {
			out = append(out, t)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
