// SPDX-License-Identifier: MIT

// Package epg implements schedule normalization and channel identity
// resolution for aggregated program guide data.
package epg

import (
	"strings"
	"time"
)

// NotAvailable is the sentinel used for absent optional values.
const NotAvailable = "N/A"

// NoEPGGuideLink is the reserved guidelink of placeholder channels that carry
// no guide data. Such channels may appear several times within one provider.
const NoEPGGuideLink = "NOEPG"

// ChannelNames holds the three display name variants of a channel.
type ChannelNames struct {
	Clean    string `json:"clean"`
	Location string `json:"location"`
	Real     string `json:"real"`
}

// RawChannel is one channel row as delivered by an extraction source.
type RawChannel struct {
	GuideLink string
	Names     ChannelNames

	// LCN candidates, see LCNField.
	LCNTerrestrial1 string
	LCNTerrestrial2 string
	LCNTerrestrial3 string
	LCNSatellite    string
	LCNPlatform     string

	LogoLight   string
	LogoDark    string
	URL         string
	Type        string
	Operator    string
	Group       string
	ChannelType string

	// Bouquets lists the provider numbers this channel belongs to.
	Bouquets []int
}

// InBouquet reports whether the channel is a member of provider num.
func (c RawChannel) InBouquet(num int) bool {
	for _, b := range c.Bouquets {
		if b == num {
			return true
		}
	}
	return false
}

// ChannelLogo holds light and dark logo URLs.
type ChannelLogo struct {
	Light string `json:"light"`
	Dark  string `json:"dark"`
}

// OtherData carries free-text channel metadata.
type OtherData struct {
	ChannelType  string `json:"channel_type"`
	ChannelSpecs string `json:"channel_specs"`
}

// CanonicalChannel is the resolved, serializable view of a channel entry
// within a provider.
type CanonicalChannel struct {
	ID           string       `json:"channel_id"`
	Slug         string       `json:"channel_slug"`
	Name         string       `json:"channel_name"`
	Names        ChannelNames `json:"channel_names"`
	Number       string       `json:"channel_number"`
	Logo         string       `json:"chlogo"`
	Logos        ChannelLogo  `json:"channel_logo"`
	Group        string       `json:"channel_group"`
	URL          string       `json:"channel_url"`
	OtherData    OtherData    `json:"other_data"`
	ProgramCount int          `json:"program_count"`
}

// Canonicalize builds the canonical entry of c carrying number.
func Canonicalize(c RawChannel, number string) CanonicalChannel {
	names := ChannelNames{
		Clean:    c.Names.Clean,
		Location: firstNonEmpty(c.Names.Location, c.Names.Clean),
		Real:     firstNonEmpty(c.Names.Real, c.Names.Clean),
	}
	specs := strings.TrimSpace(strings.Join(nonEmpty(c.Type, c.Operator), " "))
	return CanonicalChannel{
		ID:     c.GuideLink,
		Slug:   Slugify(c.GuideLink),
		Name:   orNA(c.Names.Clean),
		Names:  names,
		Number: number,
		Logo:   orNA(c.LogoLight),
		Logos: ChannelLogo{
			Light: orNA(c.LogoLight),
			Dark:  orNA(firstNonEmpty(c.LogoDark, c.LogoLight)),
		},
		Group: orNA(c.Group),
		URL:   orNA(c.URL),
		OtherData: OtherData{
			ChannelType:  orNA(c.ChannelType),
			ChannelSpecs: orNA(specs),
		},
	}
}

// Provider describes a bouquet owner that channels are grouped under.
type Provider struct {
	Num      int    `json:"-"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Group    string `json:"group"`
	Subgroup string `json:"subgroup"`
	Location string `json:"location"`
	URL      string `json:"url,omitempty"`

	// Streaming providers expose the same channel as several guide entries.
	Streaming bool `json:"-"`

	// Precedence replaces DefaultPrecedence when set.
	Precedence LCNField `json:"-"`

	// FanOut replaces DefaultFanOut when non-empty.
	FanOut []LCNField `json:"-"`
}

// RawProgramme is one broadcast event with unparsed timestamps.
type RawProgramme struct {
	Channel         string
	GuideID         string
	EventID         string
	Start           string
	Stop            string
	Title           string
	Subtitle        string
	Description     string
	Categories      []string
	Episode         string
	OriginalAirDate string
	Rating          string
}

// Programme is a parsed broadcast event bound to a canonical channel slug.
// Start and End are UTC.
type Programme struct {
	Slug            string    `json:"channel"`
	GuideID         string    `json:"guide_id,omitempty"`
	EventID         string    `json:"guideid,omitempty"`
	Start           time.Time `json:"start_time"`
	End             time.Time `json:"end_time"`
	Title           string    `json:"title"`
	Subtitle        string    `json:"subtitle"`
	Description     string    `json:"description"`
	Categories      []string  `json:"categories"`
	Episode         string    `json:"episode"`
	OriginalAirDate string    `json:"original_air_date"`
	Rating          string    `json:"rating"`
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
