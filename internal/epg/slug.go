// SPDX-License-Identifier: MIT

package epg

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonWord = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Slugify maps an identifier to a URL-safe slug: diacritics are stripped
// and every run of non-word characters becomes a single hyphen.
// Example: "ABC.1-HD" → "ABC-1-HD", "Télé 7" → "Tele-7".
// Applying Slugify to a slug returns it unchanged.
func Slugify(raw string) string {
	return nonWord.ReplaceAllString(asciiFold(raw), "-")
}

func asciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ChannelDedupKey returns "{identifier}_{number}" where identifier is the
// channel id, or the slug if the id is empty. ok is false when neither is
// set; such entries must be kept.
func ChannelDedupKey(c CanonicalChannel) (string, bool) {
	id := firstNonEmpty(c.ID, c.Slug)
	if id == "" {
		return "", false
	}
	return id + "_" + c.Number, true
}

// ProgrammeDedupKey returns "{event}_{channel}_{start}_{title}". The
// channel part prefers the upstream guide id over the merged slug so the
// same broadcast seen through two providers still collides. ok is false
// when the programme has neither an event id nor a channel reference.
func ProgrammeDedupKey(p Programme) (string, bool) {
	channel := firstNonEmpty(p.GuideID, p.Slug)
	if channel == "" && p.EventID == "" {
		return "", false
	}
	var b strings.Builder
	b.WriteString(p.EventID)
	b.WriteByte('_')
	b.WriteString(channel)
	b.WriteByte('_')
	b.WriteString(p.Start.UTC().Format(time.RFC3339))
	b.WriteByte('_')
	b.WriteString(p.Title)
	return b.String(), true
}
