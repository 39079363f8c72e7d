// SPDX-License-Identifier: MIT

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacco007/webepg/internal/epg"
)

const sampleSources = `
sources:
  - id: xmltv_sydney
    kind: xmltv
    name: Sydney FTA
    url: https://example.com/sydney.xml.gz
    group: FTA
    location: Sydney
    overlay: overlays/sydney.json
    fan_out: [chanlcnfta1, chanlcnfta2]
  - id: xmlepg
    kind: sql
    driver: sqlite
    dsn: providers.sqlite
  - id: radio
    kind: csv
    path: /abs/radio.csv
    precedence: chanlcnfox
    streaming: true
  - id: retired
    kind: xmltv
    disabled: true
`

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sources.yaml", sampleSources)

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 3, "disabled entries are skipped")

	assert.Equal(t, filepath.Join(dir, "overlays/sydney.json"), sources[0].Overlay)
	assert.Equal(t, filepath.Join(dir, "providers.sqlite"), sources[1].DSN)
	assert.Equal(t, "/abs/radio.csv", sources[2].Path)

	p := sources[0].Provider(1)
	assert.Equal(t, "xmltv_sydney", p.ID)
	assert.Equal(t, "Sydney FTA", p.Name)
	assert.Equal(t, "Sydney", p.Location)
	assert.Equal(t, []epg.LCNField{epg.LCNTerrestrial1, epg.LCNTerrestrial2}, p.FanOut)

	radio := sources[2].Provider(3)
	assert.True(t, radio.Streaming)
	assert.Equal(t, epg.LCNSatellite, radio.Precedence)
	assert.Equal(t, "radio", radio.Location)
}

func TestLoadSourcesInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", "sources:\n  - kind: xmltv\n    url: http://x\n"},
		{"bad id", "sources:\n  - id: a b\n    kind: xmltv\n    url: http://x\n"},
		{"unknown kind", "sources:\n  - id: a\n    kind: json\n"},
		{"xmltv without location", "sources:\n  - id: a\n    kind: xmltv\n"},
		{"bad driver", "sources:\n  - id: a\n    kind: sql\n    driver: mysql\n    dsn: x\n"},
		{"bad precedence", "sources:\n  - id: a\n    kind: csv\n    path: a.csv\n    precedence: chanlcnxyz\n"},
		{"duplicate id", "sources:\n  - id: a\n    kind: csv\n    path: a.csv\n  - id: a\n    kind: csv\n    path: b.csv\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "sources.yaml", tt.body)
			_, err := LoadSources(path)
			require.ErrorIs(t, err, ErrInvalidSource)
		})
	}

	path := writeFile(t, t.TempDir(), "sources.yaml", "sources:\n  - id: a\n    kinds: csv\n")
	_, err := LoadSources(path)
	require.ErrorIs(t, err, ErrUnknownConfigField)
}
