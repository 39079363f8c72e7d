// SPDX-License-Identifier: MIT

package epg

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input string
	}{
		{name: "rfc3339 utc", input: "2024-01-15T12:00:00Z"},
		{name: "rfc3339 offset", input: "2024-01-15T23:00:00+11:00"},
		{name: "space separated offset", input: "2024-01-15 22:00:00+10:00"},
		{name: "xmltv", input: "20240115230000 +1100"},
		{name: "xmltv without space", input: "20240115120000+0000"},
		{name: "naive iso is utc", input: "2024-01-15T12:00:00"},
		{name: "naive xmltv is utc", input: "20240115120000"},
		{name: "surrounding whitespace", input: "  2024-01-15T12:00:00Z "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			assert.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	for _, bad := range []string{"", "N/A", "2024-13-45T00:00:00Z", "yesterday"} {
		_, err := ParseTimestamp(bad)
		assert.True(t, errors.Is(err, ErrMalformedTimestamp), "input %q", bad)
	}
}

func TestMalformedTimestampError(t *testing.T) {
	err := error(&MalformedTimestampError{Field: "start", Value: "x"})
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
	assert.Contains(t, err.Error(), `start "x"`)
}

func TestFormatLength(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "1:00:00"},
		{59*time.Minute + 59*time.Second + 999999*time.Microsecond, "0:59:59.999999"},
		{26 * time.Hour, "1 day, 2:00:00"},
		{50 * time.Hour, "2 days, 2:00:00"},
		{0, "0:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLength(tt.in))
	}
}
