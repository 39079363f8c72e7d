// SPDX-License-Identifier: MIT

package epg

// ProviderChannels is a provider with its resolved channel entries.
type ProviderChannels struct {
	Provider Provider           `json:"provider"`
	Channels []CanonicalChannel `json:"channels"`
}

// UnresolvedNumber records a channel for which no LCN candidate was accepted.
type UnresolvedNumber struct {
	Provider  string
	GuideLink string
}

// MergeReport summarizes a Merge call.
type MergeReport struct {
	Unresolved      []UnresolvedNumber
	Duplicates      int // entries removed by (id, number)
	ExemptRepeats   int // repeated (id, number) pairs kept for streaming or NOEPG
	MissingLink     int // member channels without a guidelink
	DroppedProvider []string
}

type mergeEntry struct {
	channel CanonicalChannel
	exempt  bool
}

// Merge groups channels under the providers whose number appears in their
// bouquet list. A channel yields its resolved entry plus one entry for each
// further distinct number found in the provider's fan-out fields. Entries
// repeating an (id, number) pair are removed. A resolved entry is kept
// regardless when the provider is streaming or the channel is a NOEPG
// placeholder; fan-out entries never are. Providers left without
// entries are omitted. Output order follows input order.
func Merge(providers []Provider, channels []RawChannel) ([]ProviderChannels, MergeReport) {
	var report MergeReport
	out := make([]ProviderChannels, 0, len(providers))

	for _, p := range providers {
		var entries []mergeEntry
		for _, ch := range channels {
			if !ch.InBouquet(p.Num) {
				continue
			}
			if ch.GuideLink == "" {
				report.MissingLink++
				continue
			}
			exempt := p.Streaming || ch.GuideLink == NoEPGGuideLink

			number, _, ok := ResolveNumber(ch, p.precedence())
			if !ok {
				report.Unresolved = append(report.Unresolved, UnresolvedNumber{Provider: p.ID, GuideLink: ch.GuideLink})
			}
			entries = append(entries, mergeEntry{channel: Canonicalize(ch, number), exempt: exempt})

			emitted := map[string]struct{}{number: {}}
			for _, f := range p.fanOut() {
				raw, _ := ch.Value(f)
				v, valid := ValidNumber(raw)
				if !valid {
					continue
				}
				if _, seen := emitted[v]; seen {
					continue
				}
				emitted[v] = struct{}{}
				entries = append(entries, mergeEntry{channel: Canonicalize(ch, v)})
			}
		}

		kept, removed := Dedupe(entries, func(e mergeEntry) (string, bool) {
			if e.exempt {
				return "", false
			}
			return ChannelDedupKey(e.channel)
		})
		report.Duplicates += removed
		report.ExemptRepeats += countExemptRepeats(kept)

		if len(kept) == 0 {
			report.DroppedProvider = append(report.DroppedProvider, p.ID)
			continue
		}
		resolved := make([]CanonicalChannel, len(kept))
		for i, e := range kept {
			resolved[i] = e.channel
		}
		out = append(out, ProviderChannels{Provider: p, Channels: resolved})
	}
	return out, report
}

func countExemptRepeats(entries []mergeEntry) int {
	seen := make(map[string]struct{}, len(entries))
	n := 0
	for _, e := range entries {
		k, ok := ChannelDedupKey(e.channel)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup && e.exempt {
			n++
		}
		seen[k] = struct{}{}
	}
	return n
}
