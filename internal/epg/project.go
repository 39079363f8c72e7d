// SPDX-License-Identifier: MIT

package epg

import "time"

// ContinuationSuffix is appended to the title of the part of a programme
// that continues past local midnight.
const ContinuationSuffix = " (cont)"

// DateLayout formats local calendar dates in timelines.
const DateLayout = "2006-01-02"

// StartOfDay returns local midnight of t's date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999999 of t's date in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999000, loc)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Project converts p into loc and splits it at the local day boundary.
// The result has one block when start and end share a local date and at
// most two otherwise; the second carries ContinuationSuffix. Blocks with
// end <= start are dropped. Day bounds are computed from local wall-clock
// dates so DST transitions shift them correctly.
func Project(p Programme, loc *time.Location) []ProgramBlock {
	start := p.Start.In(loc)
	end := p.End.In(loc)
	if !end.After(start) {
		return nil
	}

	if sameDate(start, end) {
		return []ProgramBlock{p.block(start, end, p.Title)}
	}

	out := make([]ProgramBlock, 0, 2)
	if eod := EndOfDay(start, loc); eod.After(start) {
		out = append(out, p.block(start, eod, p.Title))
	}
	if sod := StartOfDay(end, loc); end.After(sod) {
		out = append(out, p.block(sod, end, p.Title+ContinuationSuffix))
	}
	return out
}

func (p Programme) block(start, end time.Time, title string) ProgramBlock {
	return ProgramBlock{
		Channel:         p.Slug,
		Start:           start,
		End:             end,
		Title:           title,
		Subtitle:        p.Subtitle,
		Description:     p.Description,
		Categories:      p.Categories,
		Episode:         p.Episode,
		OriginalAirDate: p.OriginalAirDate,
		Rating:          p.Rating,
	}
}
