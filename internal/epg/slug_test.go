// SPDX-License-Identifier: MIT

package epg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "dots and hyphens", input: "ABC.1-HD", expected: "ABC-1-HD"},
		{name: "case preserved", input: "SBS.ViceLand", expected: "SBS-ViceLand"},
		{name: "runs collapse", input: "Nine  ::  Gem", expected: "Nine-Gem"},
		{name: "underscore is a word char", input: "seven_two", expected: "seven_two"},
		{name: "accents folded", input: "Télé Québec", expected: "Tele-Quebec"},
		{name: "leading and trailing kept", input: ".abc.", expected: "-abc-"},
		{name: "already a slug", input: "ABC-1-HD", expected: "ABC-1-HD"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, Slugify(got), "re-slugifying must be a no-op")
		})
	}
}

func TestChannelDedupKey(t *testing.T) {
	tests := []struct {
		name   string
		in     CanonicalChannel
		want   string
		wantOK bool
	}{
		{name: "prefers id", in: CanonicalChannel{ID: "ABC.1", Slug: "ABC-1", Number: "2"}, want: "ABC.1_2", wantOK: true},
		{name: "falls back to slug", in: CanonicalChannel{Slug: "ABC-1", Number: "2"}, want: "ABC-1_2", wantOK: true},
		{name: "no identity", in: CanonicalChannel{Number: "2"}, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChannelDedupKey(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestProgrammeDedupKey(t *testing.T) {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("upstream id wins over slug", func(t *testing.T) {
		a := Programme{GuideID: "abc.sydney", Slug: "abc-sydney", Start: start, Title: "News"}
		b := Programme{GuideID: "abc.sydney", Slug: "abc-syd-hd", Start: start, Title: "News"}
		ka, okA := ProgrammeDedupKey(a)
		kb, okB := ProgrammeDedupKey(b)
		assert.True(t, okA)
		assert.True(t, okB)
		assert.Equal(t, ka, kb)
		assert.Equal(t, "_abc.sydney_2024-01-15T12:00:00Z_News", ka)
	})

	t.Run("slug fallback", func(t *testing.T) {
		k, ok := ProgrammeDedupKey(Programme{EventID: "77", Slug: "abc-sydney", Start: start, Title: "News"})
		assert.True(t, ok)
		assert.Equal(t, "77_abc-sydney_2024-01-15T12:00:00Z_News", k)
	})

	t.Run("start normalized to utc", func(t *testing.T) {
		local := start.In(time.FixedZone("AEDT", 11*3600))
		k1, _ := ProgrammeDedupKey(Programme{Slug: "x", Start: start, Title: "T"})
		k2, _ := ProgrammeDedupKey(Programme{Slug: "x", Start: local, Title: "T"})
		assert.Equal(t, k1, k2)
	})

	t.Run("no identity", func(t *testing.T) {
		_, ok := ProgrammeDedupKey(Programme{Start: start, Title: "News"})
		assert.False(t, ok)
	})
}
