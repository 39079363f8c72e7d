// SPDX-License-Identifier: MIT

package epg

import (
	"fmt"
	"sort"
	"time"
)

// Dates returns the sorted local dates (YYYYMMDD) on which programmes start.
func Dates(programmes []Programme, loc *time.Location) []string {
	set := make(map[string]struct{})
	for _, p := range programmes {
		set[p.Start.In(loc).Format("20060102")] = struct{}{}
	}
	return sortedKeys(set)
}

// ChannelRef is the channel summary attached to now/next entries.
type ChannelRef struct {
	ID     string       `json:"id"`
	Name   ChannelNames `json:"name"`
	Icon   ChannelLogo  `json:"icon"`
	Slug   string       `json:"slug"`
	Number string       `json:"lcn"`
	Group  string       `json:"group"`
}

// Airing is a programme rendered in the viewer's timezone.
type Airing struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Episode     string   `json:"episode"`
	Start       string   `json:"start"`
	Stop        string   `json:"stop"`
	Description string   `json:"desc"`
	Categories  []string `json:"category"`
	Rating      string   `json:"rating"`
	Length      string   `json:"lengthstring"`
}

// ChannelNowNext pairs a channel with what is on now and what follows.
type ChannelNowNext struct {
	Channel ChannelRef `json:"channel"`
	Current *Airing    `json:"currentProgram"`
	Next    *Airing    `json:"nextProgram"`
}

// NowNext finds, for every distinct (id, number) channel entry, the
// programme airing at at and the first programme starting after it ends.
// When nothing airs, Next is the first programme starting after at.
func NowNext(channels []CanonicalChannel, programmes []Programme, at time.Time, loc *time.Location) []ChannelNowNext {
	unique, _ := Dedupe(channels, ChannelDedupKey)

	bySlug := make(map[string][]Programme)
	for _, p := range programmes {
		bySlug[p.Slug] = append(bySlug[p.Slug], p)
	}
	for slug := range bySlug {
		list := bySlug[slug]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	}

	out := make([]ChannelNowNext, 0, len(unique))
	for _, c := range unique {
		cur, next := findNowNext(bySlug[c.Slug], at)
		entry := ChannelNowNext{
			Channel: ChannelRef{
				ID:     c.ID,
				Name:   c.Names,
				Icon:   c.Logos,
				Slug:   c.Slug,
				Number: c.Number,
				Group:  c.Group,
			},
		}
		if cur != nil {
			a := airing(*cur, loc)
			entry.Current = &a
		}
		if next != nil {
			a := airing(*next, loc)
			entry.Next = &a
		}
		out = append(out, entry)
	}
	return out
}

func findNowNext(list []Programme, at time.Time) (*Programme, *Programme) {
	for i := range list {
		p := &list[i]
		if !p.Start.After(at) && at.Before(p.End) {
			for j := i + 1; j < len(list); j++ {
				if !list[j].Start.Before(p.End) {
					return p, &list[j]
				}
			}
			return p, nil
		}
		if p.Start.After(at) {
			return nil, p
		}
	}
	return nil, nil
}

func airing(p Programme, loc *time.Location) Airing {
	start := p.Start.In(loc)
	end := p.End.In(loc)
	categories := make([]string, 0, len(p.Categories))
	categories = append(categories, p.Categories...)
	return Airing{
		Title:       orNA(p.Title),
		Subtitle:    orNA(p.Subtitle),
		Episode:     orNA(p.Episode),
		Start:       start.Format(time.RFC3339),
		Stop:        end.Format(time.RFC3339),
		Description: orNA(p.Description),
		Categories:  categories,
		Rating:      orNA(p.Rating),
		Length:      LengthString(end.Sub(start)),
	}
}

// LengthString renders d in whole minutes, e.g. "45 Min", "1 Hr 30 Min",
// "1 Day(s) 2 Hr 0 Min".
func LengthString(d time.Duration) string {
	total := int(d / time.Minute)
	if total < 0 {
		total = 0
	}
	hours, minutes := total/60, total%60
	switch {
	case hours >= 24:
		return fmt.Sprintf("%d Day(s) %d Hr %d Min", hours/24, hours%24, minutes)
	case hours > 0:
		return fmt.Sprintf("%d Hr %d Min", hours, minutes)
	default:
		return fmt.Sprintf("%d Min", minutes)
	}
}
