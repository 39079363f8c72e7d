// SPDX-License-Identifier: MIT

package epg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockViewSplitKeepsMicroseconds(t *testing.T) {
	loc := mustLoad(t, "Australia/Sydney")
	p := Programme{
		Slug:  "abc",
		Title: "Late Movie",
		Start: mustParse(t, "2024-01-15T23:00:00+11:00"),
		End:   mustParse(t, "2024-01-16T01:00:00+11:00"),
	}

	blocks := Project(p, loc)
	require.Len(t, blocks, 2)

	first := blocks[0].View()
	assert.Equal(t, "2024-01-15T23:00:00+11:00", first.StartTime)
	assert.Equal(t, "2024-01-15T23:59:59.999999+11:00", first.EndTime)
	assert.Equal(t, "23:00:00", first.Start)
	assert.Equal(t, "23:59:59.999999", first.End)
	assert.Equal(t, "0:59:59.999999", first.Length)

	second := blocks[1].View()
	assert.Equal(t, "2024-01-16T00:00:00+11:00", second.StartTime)
	assert.Equal(t, "00:00:00", second.Start)
	assert.Equal(t, "01:00:00", second.End)
	assert.Equal(t, "1:00:00", second.Length)
}

func TestFillerViewFullDay(t *testing.T) {
	loc := mustLoad(t, "UTC")
	day := mustParse(t, "2024-01-15T00:00:00Z")

	v := FillerBlock{Channel: "abc", Start: StartOfDay(day, loc), End: EndOfDay(day, loc)}.View()
	assert.Equal(t, "2024-01-15T00:00:00Z", v.StartTime)
	assert.Equal(t, "2024-01-15T23:59:59.999999Z", v.EndTime)
	assert.Equal(t, "23:59:59.999999", v.End)
	assert.Equal(t, FillerTitle, v.Title)
}
