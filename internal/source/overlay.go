// SPDX-License-Identifier: MIT

package source

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bacco007/webepg/internal/epg"
)

// OverlayReport counts what ApplyOverlay changed.
type OverlayReport struct {
	Replaced int
	Added    int
}

// LoadOverlay decodes a JSON array of channel entries.
func LoadOverlay(r io.Reader) ([]epg.CanonicalChannel, error) {
	var entries []epg.CanonicalChannel
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode overlay: %w", err)
	}
	for i := range entries {
		if entries[i].Slug == "" {
			entries[i].Slug = epg.Slugify(entries[i].ID)
		}
	}
	return entries, nil
}

// ApplyOverlay replaces every channel whose id appears in overlay and
// appends overlay entries with new ids. Input order is kept and neither
// slice is modified.
func ApplyOverlay(channels, overlay []epg.CanonicalChannel) ([]epg.CanonicalChannel, OverlayReport) {
	var report OverlayReport
	byID := make(map[string]epg.CanonicalChannel, len(overlay))
	order := make([]string, 0, len(overlay))
	for _, o := range overlay {
		if o.ID == "" {
			continue
		}
		if _, dup := byID[o.ID]; !dup {
			order = append(order, o.ID)
		}
		byID[o.ID] = o
	}

	out := make([]epg.CanonicalChannel, 0, len(channels)+len(overlay))
	present := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		present[c.ID] = struct{}{}
		if o, ok := byID[c.ID]; ok {
			if o.ProgramCount == 0 {
				o.ProgramCount = c.ProgramCount
			}
			out = append(out, o)
			report.Replaced++
			continue
		}
		out = append(out, c)
	}
	for _, id := range order {
		if _, ok := present[id]; ok {
			continue
		}
		out = append(out, byID[id])
		report.Added++
	}
	return out, report
}
