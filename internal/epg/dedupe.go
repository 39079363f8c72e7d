// SPDX-License-Identifier: MIT

package epg

// Dedupe keeps the first record for every key and reports how many were
// removed. Records whose key function returns ok=false are always kept.
// The input slice is not modified.
func Dedupe[T any](records []T, key func(T) (string, bool)) ([]T, int) {
	kept := make([]T, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	removed := 0
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			kept = append(kept, r)
			continue
		}
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, r)
	}
	return kept, removed
}
