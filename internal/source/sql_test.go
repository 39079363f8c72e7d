// SPDX-License-Identifier: MIT

package source

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacco007/webepg/internal/epg"
	"github.com/bacco007/webepg/internal/persistence/sqlite"
)

const testSchema = `
CREATE TABLE providers (
	providnum INTEGER, provid TEXT, provname TEXT, provnamelong TEXT,
	provgroupname TEXT, provsubgroup TEXT, provlcn TEXT, provshow INTEGER
);
CREATE TABLE channels (
	guidelink TEXT, channame TEXT, chanloc TEXT, channamereal TEXT, chantype TEXT,
	chancomp TEXT, channetweb TEXT, chanbouq TEXT,
	chanlcnfta1 TEXT, chanlcnfta2 TEXT, chanlcnfta3 TEXT, chanlcnfox TEXT, chanlcnfet TEXT,
	logolight TEXT, logodark TEXT, network TEXT, chgroup TEXT, chanshowonlistview INTEGER
);
CREATE TABLE guide (
	guideid TEXT, channel TEXT, progstart TEXT, progstop TEXT, title TEXT,
	subtitle TEXT, descr TEXT, category TEXT, rating TEXT, episode TEXT
);
INSERT INTO providers VALUES
	(1, 'xmlepg_FTA', 'Free To Air', 'Free To Air - Sydney', 'FTA', 'Terrestrial', NULL, 1),
	(2, 'xmlepg_FOX', 'Foxtel', NULL, 'Pay', 'Satellite', 'chanlcnfox', 1),
	(3, 'xmlepg_STRM', 'Streamer', NULL, 'OTT', 'Streaming', NULL, 1),
	(4, 'xmlepg_HIDE', 'Hidden', NULL, 'X', 'X', NULL, 0);
INSERT INTO channels VALUES
	('ABC', 'ABC TV', 'Sydney', 'ABC', 'HD', 'ABC', 'https://abc', '1,2', '2', '21', NULL, '102', NULL, 'l.png', NULL, 'ABC', 'Public', 1),
	('CLOSED', 'Gone', NULL, NULL, NULL, NULL, NULL, '1', '9', NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, 1),
	('HIDDEN', 'Hidden', NULL, NULL, NULL, NULL, NULL, '1', '8', NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, 0),
	('ORPHAN', 'Orphan', NULL, NULL, NULL, NULL, NULL, '99', '7', NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, 1);
INSERT INTO guide VALUES
	('e1', 'ABC', '20240115100000 +0000', '20240115110000 +0000', 'News', NULL, NULL, 'News', 'G', NULL),
	('e2', 'ABC', '20240115110000 +0000', '20240115120000 +0000', '(guide not available)', NULL, NULL, NULL, NULL, NULL),
	('e3', 'ABC', '20240120100000 +0000', '20240120110000 +0000', 'Later', NULL, NULL, NULL, NULL, NULL),
	('e4', 'ORPHAN', '20240115100000 +0000', '20240115110000 +0000', 'Nobody', NULL, NULL, NULL, NULL, NULL);
`

func newTestSQLSource(t *testing.T) *SQLSource {
	t.Helper()
	cfg := sqlite.DefaultConfig()
	cfg.ReadOnly = false
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "providers.sqlite"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return NewSQLSource(db, DriverSQLite)
}

func TestSQLSourceProviders(t *testing.T) {
	s := newTestSQLSource(t)
	providers, err := s.Providers(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 3)

	assert.Equal(t, "xmlepg_FTA", providers[0].ID)
	assert.Equal(t, "Free To Air - Sydney", providers[0].Location)
	assert.Empty(t, providers[0].Precedence)
	assert.Equal(t, "Foxtel", providers[1].Location)
	assert.Equal(t, epg.LCNSatellite, providers[1].Precedence)
	assert.True(t, providers[2].Streaming)
}

func TestSQLSourceChannels(t *testing.T) {
	s := newTestSQLSource(t)
	channels, err := s.Channels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)

	abc := channels[0]
	assert.Equal(t, "ABC", abc.GuideLink)
	assert.Equal(t, epg.ChannelNames{Clean: "ABC TV", Location: "ABC TV Sydney", Real: "ABC"}, abc.Names)
	assert.Equal(t, []int{1, 2}, abc.Bouquets)
	assert.Equal(t, "21", abc.LCNTerrestrial2)
	assert.Equal(t, "102", abc.LCNSatellite)
	assert.Equal(t, "Public", abc.ChannelType)
	assert.Equal(t, "ORPHAN", channels[1].GuideLink)
}

func TestSQLSourceProgrammesWindow(t *testing.T) {
	s := newTestSQLSource(t)
	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	got, err := s.Programmes(context.Background(), []string{"ABC"}, from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "News", got[0].Title)
	assert.Equal(t, "e1", got[0].EventID)
	assert.Equal(t, []string{"News"}, got[0].Categories)

	none, err := s.Programmes(context.Background(), nil, from, to)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLSourceBatchRunsThroughEngine(t *testing.T) {
	s := newTestSQLSource(t)
	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	b, err := s.Batch(context.Background(), "xmlepg", from, to, nil)
	require.NoError(t, err)
	assert.True(t, b.RoundToMinute)
	require.Len(t, b.Programmes, 1, "orphan channels are not queried")

	e, err := epg.NewEngine(epg.Config{Timezone: "Australia/Sydney"})
	require.NoError(t, err)
	res, err := e.Run(context.Background(), b)
	require.NoError(t, err)

	byID := map[string][]string{}
	for _, pc := range res.Providers {
		for _, c := range pc.Channels {
			byID[pc.Provider.ID] = append(byID[pc.Provider.ID], c.Number)
		}
	}
	assert.Equal(t, []string{"2", "21", "102"}, byID["xmlepg_FTA"])
	assert.Equal(t, []string{"102"}, byID["xmlepg_FOX"])
	assert.NotContains(t, byID, "xmlepg_STRM")
}

func TestSQLSourceKeepFilter(t *testing.T) {
	s := newTestSQLSource(t)
	b, err := s.Batch(context.Background(), "xmlepg", time.Time{}, time.Now(), func(p epg.Provider) bool {
		return p.ID == "xmlepg_FOX"
	})
	require.NoError(t, err)
	require.Len(t, b.Providers, 1)
	assert.Equal(t, "xmlepg_FOX", b.Providers[0].ID)
}

func TestPlaceholderDialect(t *testing.T) {
	assert.Equal(t, "?", NewSQLSource(nil, DriverSQLite).placeholder(3))
	assert.Equal(t, "$3", NewSQLSource(nil, DriverPgx).placeholder(3))
	assert.Equal(t, "$1", NewSQLSource(nil, DriverPostgres).placeholder(1))
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	_, err := OpenSQL("mysql", "dsn")
	assert.Error(t, err)
}

func TestSQLSourceCheck(t *testing.T) {
	src := newTestSQLSource(t)
	require.NoError(t, src.Check(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, src.Check(ctx))
}
