// SPDX-License-Identifier: MIT

// Package source extracts raw channel and programme records from XMLTV
// feeds, CSV overrides, JSON overlays and relational provider tables.
package source

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bacco007/webepg/internal/epg"
)

// MaxXMLTVSize caps how much of a feed is read.
const MaxXMLTVSize = 100 * 1024 * 1024

// TV is the XMLTV document root.
type TV struct {
	XMLName   xml.Name    `xml:"tv"`
	Generator string      `xml:"generator-info-name,attr,omitempty"`
	Channels  []Channel   `xml:"channel"`
	Programs  []Programme `xml:"programme"`
}

// Channel is an XMLTV <channel> element.
type Channel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
	LCN         string   `xml:"lcn,omitempty"`
	Icon        *Icon    `xml:"icon,omitempty"`
	URL         string   `xml:"url,omitempty"`
}

// Icon is an XMLTV <icon> element.
type Icon struct {
	Src string `xml:"src,attr"`
}

// Programme is an XMLTV <programme> element.
type Programme struct {
	Start      string       `xml:"start,attr"`
	Stop       string       `xml:"stop,attr"`
	Channel    string       `xml:"channel,attr"`
	Title      Text         `xml:"title"`
	SubTitle   *Text        `xml:"sub-title,omitempty"`
	Desc       *Text        `xml:"desc,omitempty"`
	Categories []Text       `xml:"category,omitempty"`
	EpisodeNum []EpisodeNum `xml:"episode-num,omitempty"`
	Rating     *Rating      `xml:"rating,omitempty"`
}

// Text is a possibly localized character data element.
type Text struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// EpisodeNum is an <episode-num> element with its numbering system.
type EpisodeNum struct {
	System string `xml:"system,attr,omitempty"`
	Value  string `xml:",chardata"`
}

// Rating is an XMLTV <rating> element.
type Rating struct {
	System string `xml:"system,attr,omitempty"`
	Value  string `xml:"value"`
}

// Feed is a parsed XMLTV document.
type Feed struct {
	TV TV
}

// ParseXMLTV decodes an XMLTV document. Entity expansion is disabled and
// at most MaxXMLTVSize bytes are read.
func ParseXMLTV(r io.Reader) (*Feed, error) {
	dec := xml.NewDecoder(io.LimitReader(r, MaxXMLTVSize))
	dec.Strict = true
	dec.Entity = make(map[string]string)
	dec.CharsetReader = charsetReader

	var feed Feed
	if err := dec.Decode(&feed.TV); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode xmltv: %w", err)
	}
	return &feed, nil
}

// Batch converts the feed into engine input for a single provider. Every
// channel is placed in the provider's bouquet; the feed's <lcn> becomes
// the primary terrestrial number. Channels are deduplicated by id.
func (f *Feed) Batch(p epg.Provider) epg.Batch {
	channels := make([]epg.RawChannel, 0, len(f.TV.Channels))
	seen := make(map[string]struct{}, len(f.TV.Channels))
	for _, ch := range f.TV.Channels {
		if ch.ID == "" {
			continue
		}
		if _, dup := seen[ch.ID]; dup {
			continue
		}
		seen[ch.ID] = struct{}{}

		name := ch.ID
		if len(ch.DisplayName) > 0 && strings.TrimSpace(ch.DisplayName[0]) != "" {
			name = strings.TrimSpace(ch.DisplayName[0])
		}
		var logo string
		if ch.Icon != nil {
			logo = ch.Icon.Src
		}
		channels = append(channels, epg.RawChannel{
			GuideLink:       ch.ID,
			Names:           epg.ChannelNames{Clean: name},
			LCNTerrestrial1: strings.TrimSpace(ch.LCN),
			LogoLight:       logo,
			LogoDark:        logo,
			URL:             ch.URL,
			Group:           p.Group,
			Bouquets:        []int{p.Num},
		})
	}

	programmes := make([]epg.RawProgramme, 0, len(f.TV.Programs))
	for _, pr := range f.TV.Programs {
		programmes = append(programmes, pr.raw())
	}

	return epg.Batch{
		Source:     p.ID,
		Providers:  []epg.Provider{p},
		Channels:   channels,
		Programmes: programmes,
	}
}

func (p Programme) raw() epg.RawProgramme {
	rp := epg.RawProgramme{
		Channel: p.Channel,
		GuideID: p.Channel,
		Start:   p.Start,
		Stop:    p.Stop,
		Title:   strings.TrimSpace(p.Title.Value),
	}
	if p.SubTitle != nil {
		rp.Subtitle = strings.TrimSpace(p.SubTitle.Value)
	}
	if p.Desc != nil {
		rp.Description = strings.TrimSpace(p.Desc.Value)
	}
	for _, c := range p.Categories {
		if v := strings.TrimSpace(c.Value); v != "" {
			rp.Categories = append(rp.Categories, v)
		}
	}
	for _, e := range p.EpisodeNum {
		switch e.System {
		case "SxxExx":
			rp.Episode = strings.TrimSpace(e.Value)
		case "original-air-date":
			rp.OriginalAirDate = strings.TrimSpace(e.Value)
		}
	}
	if p.Rating != nil {
		rp.Rating = strings.TrimSpace(p.Rating.Value)
	}
	return rp
}

// EncodeXMLTV writes channels and programmes as an XMLTV document.
func EncodeXMLTV(w io.Writer, generator string, channels []epg.CanonicalChannel, programmes []epg.Programme) error {
	tv := TV{Generator: generator}
	seen := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		if _, dup := seen[c.Slug]; dup {
			continue
		}
		seen[c.Slug] = struct{}{}
		ch := Channel{ID: c.Slug, DisplayName: []string{c.Name}}
		if c.Number != epg.NotAvailable {
			ch.LCN = c.Number
		}
		if c.Logo != epg.NotAvailable {
			ch.Icon = &Icon{Src: c.Logo}
		}
		tv.Channels = append(tv.Channels, ch)
	}
	for _, p := range programmes {
		pr := Programme{
			Start:   p.Start.Format(epg.XMLTVTimeLayout),
			Stop:    p.End.Format(epg.XMLTVTimeLayout),
			Channel: p.Slug,
			Title:   Text{Value: p.Title},
		}
		if p.Subtitle != "" {
			pr.SubTitle = &Text{Value: p.Subtitle}
		}
		if p.Description != "" {
			pr.Desc = &Text{Value: p.Description}
		}
		for _, c := range p.Categories {
			pr.Categories = append(pr.Categories, Text{Value: c})
		}
		if p.Episode != "" {
			pr.EpisodeNum = append(pr.EpisodeNum, EpisodeNum{System: "SxxExx", Value: p.Episode})
		}
		if p.OriginalAirDate != "" {
			pr.EpisodeNum = append(pr.EpisodeNum, EpisodeNum{System: "original-air-date", Value: p.OriginalAirDate})
		}
		if p.Rating != "" {
			pr.Rating = &Rating{Value: p.Rating}
		}
		tv.Programs = append(tv.Programs, pr)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(tv); err != nil {
		return fmt.Errorf("encode xmltv: %w", err)
	}
	return enc.Flush()
}
