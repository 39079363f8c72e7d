// SPDX-License-Identifier: MIT

package jobs

import (
	"fmt"
	"slices"

	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/epg"
)

// selectSources filters all by the requested ids, keeping index order.
// Unknown ids are returned as errors so the caller can report them.
func selectSources(all []config.Source, ids []string) ([]config.Source, []error) {
	if len(ids) == 0 {
		return all, nil
	}
	var errs []error
	for _, id := range ids {
		if !slices.ContainsFunc(all, func(s config.Source) bool { return s.ID == id }) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownSource, id))
		}
	}
	out := make([]config.Source, 0, len(ids))
	for _, s := range all {
		if slices.Contains(ids, s.ID) {
			out = append(out, s)
		}
	}
	return out, errs
}

// outputID names the documents of one provider of src. SQL sources publish
// one output per provider; every other kind publishes a single output.
func outputID(src config.Source, p epg.Provider) string {
	if src.Kind != config.KindSQL {
		return src.ID
	}
	return epg.Slugify(src.ID + "_" + p.ID)
}

// clampConcurrency ensures concurrency is within sane bounds [1, maxVal]
func clampConcurrency(value, defaultValue, maxVal int) int {
	if value < 1 {
		if defaultValue < 1 {
			return 1
		}
		return defaultValue
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
