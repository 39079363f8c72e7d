// SPDX-License-Identifier: MIT

package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/epg"
)

func TestSelectSources(t *testing.T) {
	all := []config.Source{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	got, errs := selectSources(all, nil)
	assert.Equal(t, all, got)
	assert.Empty(t, errs)

	got, errs = selectSources(all, []string{"c", "a", "x"})
	assert.Equal(t, []config.Source{{ID: "a"}, {ID: "c"}}, got, "index order is kept")
	if assert.Len(t, errs, 1) {
		assert.ErrorIs(t, errs[0], ErrUnknownSource)
	}
}

func TestOutputID(t *testing.T) {
	p := epg.Provider{ID: "FTA.SYD"}
	assert.Equal(t, "feed", outputID(config.Source{ID: "feed", Kind: config.KindXMLTV}, p))
	assert.Equal(t, "feed", outputID(config.Source{ID: "feed", Kind: config.KindCSV}, p))
	assert.Equal(t, "db_FTA-SYD", outputID(config.Source{ID: "db", Kind: config.KindSQL}, p))
}

func TestClampConcurrency(t *testing.T) {
	tests := []struct {
		name              string
		value, def, limit int
		want              int
	}{
		{"within bounds", 4, 2, 8, 4},
		{"zero uses default", 0, 3, 8, 3},
		{"zero with bad default", 0, 0, 8, 1},
		{"clamped to max", 100, 2, 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampConcurrency(tt.value, tt.def, tt.limit))
		})
	}
}
