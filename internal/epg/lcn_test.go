// SPDX-License-Identifier: MIT

package epg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNumber(t *testing.T) {
	tests := []struct {
		name       string
		ch         RawChannel
		precedence []LCNField
		want       string
		wantField  LCNField
		wantOK     bool
	}{
		{
			name:       "primary terrestrial",
			ch:         RawChannel{LCNTerrestrial1: "2", LCNSatellite: "102"},
			precedence: DefaultPrecedence,
			want:       "2", wantField: LCNTerrestrial1, wantOK: true,
		},
		{
			name:       "zero primary falls through to satellite",
			ch:         RawChannel{LCNTerrestrial1: "0", LCNSatellite: "5"},
			precedence: DefaultPrecedence,
			want:       "5", wantField: LCNSatellite, wantOK: true,
		},
		{
			name:       "blank values are rejected",
			ch:         RawChannel{LCNTerrestrial1: "  ", LCNSatellite: "", LCNPlatform: " 44 "},
			precedence: DefaultPrecedence,
			want:       "44", wantField: LCNPlatform, wantOK: true,
		},
		{
			name:       "secondary terrestrial is not in the default chain",
			ch:         RawChannel{LCNTerrestrial2: "22"},
			precedence: DefaultPrecedence,
			want:       NotAvailable, wantOK: false,
		},
		{
			name:       "override replaces the chain",
			ch:         RawChannel{LCNTerrestrial1: "2", LCNSatellite: "102"},
			precedence: []LCNField{LCNSatellite},
			want:       "102", wantField: LCNSatellite, wantOK: true,
		},
		{
			name:       "miss",
			ch:         RawChannel{LCNTerrestrial1: "0"},
			precedence: DefaultPrecedence,
			want:       NotAvailable, wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.ch
			got, field, ok := ResolveNumber(tt.ch, tt.precedence)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, before, tt.ch)
		})
	}
}

func TestParseLCNField(t *testing.T) {
	f, err := ParseLCNField("chanlcnfox")
	require.NoError(t, err)
	assert.Equal(t, LCNSatellite, f)

	f, err = ParseLCNField("chanlcnfta4")
	require.NoError(t, err)
	assert.Equal(t, LCNTerrestrial1, f)

	_, err = ParseLCNField("chanlcnxyz")
	assert.Error(t, err)
}
