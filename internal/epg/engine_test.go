// SPDX-License-Identifier: MIT

package epg

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch() Batch {
	return Batch{
		Source: "xmlepg_FTASYD",
		Providers: []Provider{
			{Num: 1, ID: "xmlepg_FTASYD", Name: "Free to Air Sydney"},
			{Num: 2, ID: "xmlepg_FOXTEL", Precedence: LCNSatellite},
		},
		Channels: []RawChannel{
			{GuideLink: "ABC.Sydney", Names: ChannelNames{Clean: "ABC"}, LCNTerrestrial1: "2", LCNTerrestrial2: "21", LCNSatellite: "102", Bouquets: []int{1, 2}},
			{GuideLink: "SBS.Sydney", Names: ChannelNames{Clean: "SBS"}, LCNTerrestrial1: "3", Bouquets: []int{1}},
		},
		Programmes: []RawProgramme{
			{Channel: "ABC.Sydney", GuideID: "ABC.Sydney", Start: "20240115120000 +0000", Stop: "20240115140000 +0000", Title: "Late Movie", Categories: []string{"Movie, Drama"}},
			{Channel: "ABC.Sydney", GuideID: "ABC.Sydney", Start: "2024-01-15T12:00:00Z", Stop: "2024-01-15T14:00:00Z", Title: "Late Movie"},
			{Channel: "SBS.Sydney", Start: "garbage", Stop: "2024-01-15T08:30:00Z", Title: "Broken"},
			{Channel: "SBS.Sydney", Start: "2024-01-15T07:30:00", Stop: "2024-01-15T08:30:00", Title: "World News"},
			{Start: "2024-01-15T07:30:00Z", Stop: "2024-01-15T08:30:00Z", Title: "Orphan"},
		},
	}
}

func TestNewEngineUnknownTimezone(t *testing.T) {
	_, err := NewEngine(Config{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTimezone))

	var tzErr *UnknownTimezoneError
	require.True(t, errors.As(err, &tzErr))
	assert.Equal(t, "Mars/Olympus_Mons", tzErr.Name)
}

func TestEngineRunEmptyBatch(t *testing.T) {
	e, err := NewEngine(Config{Timezone: "UTC"})
	require.NoError(t, err)
	_, err = e.Run(context.Background(), Batch{Source: "empty"})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestEngineRun(t *testing.T) {
	e, err := NewEngine(Config{Timezone: "Australia/Sydney", Workers: 2})
	require.NoError(t, err)

	res, err := e.Run(context.Background(), testBatch())
	require.NoError(t, err)

	rep := res.Report
	assert.Equal(t, 5, rep.ProgrammesIn)
	assert.Equal(t, 1, rep.MalformedTimestamps)
	assert.Equal(t, 1, rep.DuplicateProgrammes)
	assert.Equal(t, 1, rep.AmbiguousIdentities)
	assert.Equal(t, 3, rep.Programmes)
	assert.Equal(t, 2, rep.Providers)
	assert.Zero(t, rep.UnresolvedNumbers)

	require.Len(t, res.Providers, 2)
	fta := res.Providers[0]
	assert.Equal(t, []string{"ABC-Sydney#2", "ABC-Sydney#21", "ABC-Sydney#102", "SBS-Sydney#3"}, numbers(fta.Channels))
	assert.Equal(t, 1, fta.Channels[0].ProgramCount)
	assert.Equal(t, 1, fta.Channels[3].ProgramCount)

	fox := res.Providers[1]
	assert.Equal(t, []string{"ABC-Sydney#102"}, numbers(fox.Channels))

	var late Programme
	for _, p := range res.Programmes {
		if p.Title == "Late Movie" {
			late = p
		}
	}
	assert.Equal(t, []string{"Movie", "Drama"}, late.Categories)
	assert.Equal(t, time.UTC, late.Start.Location())

	// The orphan is kept but has no channel, so it adds neither a channel
	// nor a date: 2 channels x 2 dates.
	assert.Equal(t, 1, rep.UnassignedProgrammes)
	assert.Equal(t, 4, rep.Timelines)
	// ABC: before the movie on the 15th, after it on the 16th. SBS: around
	// the news on the 15th, all of the 16th.
	assert.Equal(t, 5, rep.FillerBlocks)
	assert.Equal(t, "Australia/Sydney", res.Timezone)
}

func TestEngineRunIsReproducible(t *testing.T) {
	e, err := NewEngine(Config{Timezone: "Australia/Sydney"})
	require.NoError(t, err)

	var prev []byte
	for i := 0; i < 3; i++ {
		res, err := e.Run(context.Background(), testBatch())
		require.NoError(t, err)
		out, err := json.Marshal(struct {
			Providers  []ProviderChannels
			Programmes []Programme
			Report     Report
		}{res.Providers, res.Programmes, res.Report})
		require.NoError(t, err)
		if prev != nil {
			assert.Equal(t, string(prev), string(out))
		}
		prev = out
	}
}

func TestFillerStatsMatchesBuildTimelines(t *testing.T) {
	loc := mustLoad(t, "Australia/Sydney")
	progs := []Programme{
		{Slug: "abc", Title: "News", Start: mustParse(t, "2024-01-15T08:00:00Z"), End: mustParse(t, "2024-01-15T09:00:00Z")},
		{Slug: "abc", Title: "Late Movie", Start: mustParse(t, "2024-01-15T12:00:00Z"), End: mustParse(t, "2024-01-15T14:00:00Z")},
		{Slug: "sbs", Title: "World News", Start: mustParse(t, "2024-01-16T07:30:00Z"), End: mustParse(t, "2024-01-16T08:30:00Z")},
		{Title: "No Channel", Start: mustParse(t, "2024-01-20T07:30:00Z"), End: mustParse(t, "2024-01-20T08:30:00Z")},
	}
	channels := []string{"abc", "sbs", "ten"}

	lines := BuildTimelines(progs, channels, loc, TimelineOptions{Workers: 2})
	want := 0
	for _, tl := range lines {
		for _, b := range tl.Blocks {
			if IsFiller(b) {
				want++
			}
		}
	}

	n, fillers := FillerStats(progs, channels, loc, 0)
	assert.Equal(t, len(lines), n)
	assert.Equal(t, want, fillers)
}

func TestEngineRoundToMinute(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)
	res, err := e.Run(context.Background(), Batch{
		Source:        "sql",
		RoundToMinute: true,
		Programmes: []RawProgramme{
			{Channel: "X", Start: "2024-01-15T10:00:31Z", Stop: "2024-01-15T10:59:29Z", Title: "Rounded"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Programmes, 1)
	assert.Equal(t, "2024-01-15T10:01:00Z", res.Programmes[0].Start.Format(time.RFC3339))
	assert.Equal(t, "2024-01-15T10:59:00Z", res.Programmes[0].End.Format(time.RFC3339))
}
