// SPDX-License-Identifier: MIT

package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bacco007/webepg/internal/epg"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// CSV column names of channel override files.
const (
	colGuideLink    = "guidelink"
	colName         = "channel_name"
	colNameLocation = "channel_name_location"
	colNameReal     = "channel_name_real"
	colType         = "chantype"
	colOperator     = "chancomp"
	colURL          = "channel_url"
	colBouquet      = "chanbouq"
	colLogoLight    = "chlogo_light"
	colLogoDark     = "chlogo_dark"
	colGroup        = "channel_group"
	colChannelType  = "channel_type"
)

// ReadChannelsCSV reads channel rows from a header-driven CSV file. Rows
// without a guidelink are skipped and counted.
func ReadChannelsCSV(r io.Reader, enc Encoding) ([]epg.RawChannel, int, error) {
	cr := csv.NewReader(decode(r, enc))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx[colGuideLink]; !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, colGuideLink)
	}

	var (
		out     []epg.RawChannel
		skipped int
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read csv line %d: %w", line, err)
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		link := get(colGuideLink)
		if link == "" {
			skipped++
			continue
		}
		out = append(out, epg.RawChannel{
			GuideLink: link,
			Names: epg.ChannelNames{
				Clean:    get(colName),
				Location: get(colNameLocation),
				Real:     get(colNameReal),
			},
			LCNTerrestrial1: get(string(epg.LCNTerrestrial1)),
			LCNTerrestrial2: get(string(epg.LCNTerrestrial2)),
			LCNTerrestrial3: get(string(epg.LCNTerrestrial3)),
			LCNSatellite:    get(string(epg.LCNSatellite)),
			LCNPlatform:     get(string(epg.LCNPlatform)),
			LogoLight:       get(colLogoLight),
			LogoDark:        get(colLogoDark),
			URL:             get(colURL),
			Type:            get(colType),
			Operator:        get(colOperator),
			Group:           get(colGroup),
			ChannelType:     get(colChannelType),
			Bouquets:        ParseBouquets(get(colBouquet)),
		})
	}
	return out, skipped, nil
}

// ParseBouquets parses a comma separated list of provider numbers.
// Members that are not integers are ignored.
func ParseBouquets(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
