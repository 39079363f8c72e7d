// SPDX-License-Identifier: MIT

package epg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts.UTC()
}

func TestProjectSameDay(t *testing.T) {
	loc := mustLoad(t, "Australia/Sydney")
	p := Programme{Slug: "abc", Title: "News", Start: mustParse(t, "2024-01-15T08:00:00Z"), End: mustParse(t, "2024-01-15T09:00:00Z")}

	blocks := Project(p, loc)
	require.Len(t, blocks, 1)
	assert.Equal(t, "19:00:00", blocks[0].Start.Format(time.TimeOnly))
	assert.Equal(t, "20:00:00", blocks[0].End.Format(time.TimeOnly))
	assert.Equal(t, "News", blocks[0].Title)
	assert.Equal(t, loc, blocks[0].Start.Location())
}

func TestProjectSplitsAtLocalMidnight(t *testing.T) {
	tests := []struct {
		name  string
		tz    string
		start string
		end   string
	}{
		// Sydney observes daylight time (+11:00) in January.
		{name: "sydney daylight time", tz: "Australia/Sydney", start: "2024-01-15T23:00:00+11:00", end: "2024-01-16T01:00:00+11:00"},
		{name: "fixed +10:00 zone", tz: "Australia/Brisbane", start: "2024-01-15T23:00:00+10:00", end: "2024-01-16T01:00:00+10:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := mustLoad(t, tt.tz)
			p := Programme{Slug: "abc", Title: "Late Movie", Start: mustParse(t, tt.start), End: mustParse(t, tt.end)}

			blocks := Project(p, loc)
			require.Len(t, blocks, 2)

			a, b := blocks[0], blocks[1]
			assert.Equal(t, "2024-01-15", a.Start.Format(DateLayout))
			assert.Equal(t, "23:00:00", a.Start.Format(time.TimeOnly))
			assert.Equal(t, "23:59:59.999999", a.End.Format("15:04:05.000000"))
			assert.Equal(t, "2024-01-15", a.End.Format(DateLayout))
			assert.Equal(t, "Late Movie", a.Title)

			assert.Equal(t, "2024-01-16", b.Start.Format(DateLayout))
			assert.Equal(t, "00:00:00", b.Start.Format(time.TimeOnly))
			assert.Equal(t, "01:00:00", b.End.Format(time.TimeOnly))
			assert.Equal(t, "Late Movie (cont)", b.Title)
		})
	}
}

func TestProjectEndingAtMidnight(t *testing.T) {
	loc := mustLoad(t, "Australia/Brisbane")
	p := Programme{Slug: "abc", Title: "Close", Start: mustParse(t, "2024-01-15T23:00:00+10:00"), End: mustParse(t, "2024-01-16T00:00:00+10:00")}

	blocks := Project(p, loc)
	require.Len(t, blocks, 1, "empty remainder after midnight must be dropped")
	assert.Equal(t, "Close", blocks[0].Title)
}

func TestProjectDegenerate(t *testing.T) {
	loc := time.UTC
	ts := mustParse(t, "2024-01-15T10:00:00Z")
	assert.Empty(t, Project(Programme{Start: ts, End: ts}, loc))
	assert.Empty(t, Project(Programme{Start: ts, End: ts.Add(-time.Minute)}, loc))
}

func TestProjectAcrossDSTStart(t *testing.T) {
	// Sydney clocks go forward at 02:00 on 2024-10-06. Midnight is still
	// +10:00 (14:00 UTC) but the end of the programme is already +11:00.
	loc := mustLoad(t, "Australia/Sydney")
	p := Programme{Slug: "abc", Title: "Overnight", Start: mustParse(t, "2024-10-05T12:30:00Z"), End: mustParse(t, "2024-10-05T16:30:00Z")}

	blocks := Project(p, loc)
	require.Len(t, blocks, 2)
	assert.Equal(t, "2024-10-05T13:59:59Z", blocks[0].End.UTC().Truncate(time.Second).Format(time.RFC3339))
	assert.Equal(t, "2024-10-05T14:00:00Z", blocks[1].Start.UTC().Format(time.RFC3339))
	assert.Equal(t, "03:30:00", blocks[1].End.Format(time.TimeOnly))
}
