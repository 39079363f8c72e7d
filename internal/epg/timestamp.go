// SPDX-License-Identifier: MIT

package epg

import (
	"strings"
	"time"
)

// XMLTVTimeLayout is the timestamp layout used by XMLTV feeds.
const XMLTVTimeLayout = "20060102150405 -0700"

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05-0700",
	XMLTVTimeLayout,
	"20060102150405-0700",
}

// Naive timestamps are interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"20060102150405",
}

// ParseTimestamp parses an ISO-8601 or XMLTV timestamp and returns it in
// UTC. Timestamps without an offset are taken to be UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMalformedTimestamp
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrMalformedTimestamp
}

// RoundToMinute rounds t to the nearest whole minute, half up.
func RoundToMinute(t time.Time) time.Time {
	return t.Round(time.Minute)
}
