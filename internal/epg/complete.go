// SPDX-License-Identifier: MIT

package epg

import (
	"slices"
	"sort"
	"time"
)

// DefaultMinGap is the largest uncovered interval absorbed without a filler.
const DefaultMinGap = 60 * time.Second

// Complete produces a contiguous timeline for one channel and one local
// day. Gaps longer than minGap are covered by FillerBlocks; shorter gaps
// are left as they are. Blocks with end <= start are skipped. A block
// starting before the end of the previous one is clipped so the result
// never overlaps. A day without blocks yields a single filler.
func Complete(blocks []ProgramBlock, channel string, dayStart, dayEnd time.Time, minGap time.Duration) []Block {
	out := make([]Block, 0, len(blocks)+2)
	walkDay(blocks, dayStart, dayEnd, minGap,
		func(b ProgramBlock) { out = append(out, b) },
		func(start, end time.Time) { out = append(out, FillerBlock{Channel: channel, Start: start, End: end}) },
	)
	return out
}

// walkDay visits the blocks and filler gaps of one day in order. blocks is
// not modified.
func walkDay(blocks []ProgramBlock, dayStart, dayEnd time.Time, minGap time.Duration, program func(ProgramBlock), filler func(start, end time.Time)) {
	if minGap < 0 {
		minGap = 0
	}
	sorted := slices.Clone(blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	cursor := dayStart
	emitted := false
	for _, b := range sorted {
		if !b.End.After(b.Start) || !b.End.After(cursor) {
			continue
		}
		if b.Start.Before(cursor) {
			b.Start = cursor
		}
		if b.Start.Sub(cursor) > minGap {
			filler(cursor, b.Start)
		}
		program(b)
		emitted = true
		cursor = b.End
	}

	if !emitted {
		filler(dayStart, dayEnd)
		return
	}
	if dayEnd.Sub(cursor) > minGap {
		filler(cursor, dayEnd)
	}
}
