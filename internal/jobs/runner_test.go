// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/epg"
	"github.com/bacco007/webepg/internal/persistence/sqlite"
	"github.com/bacco007/webepg/internal/source"
	"github.com/bacco007/webepg/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="ABC.au"><display-name>ABC TV</display-name><lcn>2</lcn></channel>
  <channel id="SBS.au"><display-name>SBS</display-name><lcn>3</lcn></channel>
  <programme start="20240115100000 +0000" stop="20240115110000 +0000" channel="ABC.au">
    <title>News</title>
  </programme>
  <programme start="20240115100000 +0000" stop="20240115110000 +0000" channel="ABC.au">
    <title>News</title>
  </programme>
</tv>`

const channelsCSV = "guidelink,channel_name,chanlcnfta1\nSEVEN.au,Seven,7\nNINE.au,Nine,9\n,Orphan,1\n"

var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type staticSources []config.Source

func (s staticSources) Sources() []config.Source { return s }

type fakeMetrics struct {
	mu      sync.Mutex
	runs    map[string]int
	sources map[string]int
	fetches map[string]int
	results int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string]int{}, sources: map[string]int{}, fetches: map[string]int{}}
}

func (m *fakeMetrics) RecordRun(status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[status]++
}

func (m *fakeMetrics) RecordSource(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[state]++
}

func (m *fakeMetrics) RecordFetch(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[outcome]++
}

func (m *fakeMetrics) RecordResult(*epg.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results++
}

func (m *fakeMetrics) fetch(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[outcome]
}

type testEnv struct {
	dir     string
	cfg     config.AppConfig
	metrics *fakeMetrics
	store   *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DataDir = dir
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.Engine.Timezone = "UTC"
	cfg.Engine.Workers = 2
	cfg.Engine.Days = 2
	return &testEnv{dir: dir, cfg: cfg, metrics: newFakeMetrics(), store: store.New(cfg.OutputDir)}
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (e *testEnv) runner(t *testing.T, sources []config.Source, fetcher FeedFetcher) *Runner {
	t.Helper()
	var n atomic.Int32
	r, err := NewRunner(Deps{
		Config:  e.cfg,
		Sources: staticSources(sources),
		Metrics: e.metrics,
		Fetcher: fetcher,
		Clock:   func() time.Time { return fixedNow },
		NewID:   func() string { return fmt.Sprintf("job-%d", n.Add(1)) },
	})
	require.NoError(t, err)
	return r
}

func TestRunnerProcessesSources(t *testing.T) {
	env := newTestEnv(t)
	sources := []config.Source{
		{ID: "abc", Kind: config.KindXMLTV, Name: "ABC Feed", Group: "FTA", Path: env.write(t, "abc.xml", feedXML)},
		{ID: "radio", Kind: config.KindCSV, Name: "Radio", Path: env.write(t, "radio.csv", channelsCSV)},
	}
	r := env.runner(t, sources, nil)

	status, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "job-1", status.JobID)
	assert.Equal(t, StateCompleted, status.State)
	assert.Empty(t, status.Errors)
	assert.Empty(t, status.Current)
	require.Len(t, status.Sources, 2)

	abc := status.Sources[0]
	assert.Equal(t, SourceProcessed, abc.State)
	assert.Equal(t, 2, abc.Channels)
	assert.Equal(t, 1, abc.Programmes)
	assert.Equal(t, 1, abc.Removed)
	assert.Equal(t, []string{"abc"}, abc.Outputs)

	ctx := context.Background()
	progs, err := env.store.Programmes(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, progs.Programmes, 1)
	assert.Equal(t, "ABC-au", progs.Programmes[0].Slug)
	assert.Equal(t, "UTC", progs.Timezone)

	chans, err := env.store.Channels(ctx, "radio")
	require.NoError(t, err)
	require.Len(t, chans.Channels, 2)
	assert.Equal(t, "7", chans.Channels[0].Number)
	assert.Equal(t, "Radio", chans.Provider.Name)

	index, err := env.store.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, store.IndexEntry{ID: "abc", Name: "ABC Feed", Group: "FTA", Location: "ABC Feed", Origin: "abc"}, index[0])
	assert.Equal(t, "radio", index[1].ID)

	assert.Equal(t, 1, env.metrics.runs["completed"])
	assert.Equal(t, 2, env.metrics.sources["processed"])
	assert.Equal(t, 2, env.metrics.results)
}

func TestRunnerFailedSourceKeepsPreviousOutput(t *testing.T) {
	env := newTestEnv(t)
	csvPath := env.write(t, "radio.csv", channelsCSV)
	sources := []config.Source{
		{ID: "abc", Kind: config.KindXMLTV, Path: env.write(t, "abc.xml", feedXML)},
		{ID: "radio", Kind: config.KindCSV, Path: csvPath},
	}
	r := env.runner(t, sources, nil)

	_, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(csvPath))

	status, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "job-2", status.JobID)
	assert.Equal(t, StateCompleted, status.State, "one healthy source completes the run")
	require.Len(t, status.Sources, 2)
	assert.Equal(t, SourceFailed, status.Sources[1].State)
	assert.Contains(t, status.Sources[1].Error, "open channels csv")
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "radio: ")

	_, err = env.store.Channels(context.Background(), "radio")
	require.NoError(t, err, "previous document survives")
	index, err := env.store.Sources(context.Background())
	require.NoError(t, err)
	assert.Len(t, index, 2, "index entry of the failed source is kept")
}

func TestRunnerAllSourcesFailed(t *testing.T) {
	env := newTestEnv(t)
	r := env.runner(t, []config.Source{
		{ID: "gone", Kind: config.KindCSV, Path: filepath.Join(env.dir, "missing.csv")},
	}, nil)

	status, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, 1, env.metrics.runs["failed"])

	_, err = os.Stat(env.store.IndexPath())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunnerEmptySourceIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	r := env.runner(t, []config.Source{
		{ID: "empty", Kind: config.KindXMLTV, Path: env.write(t, "empty.xml", "<tv></tv>")},
	}, nil)

	status, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, status.Sources, 1)
	assert.Equal(t, SourceSkipped, status.Sources[0].State)
	assert.Equal(t, StateCompleted, status.State)
}

func TestRunnerSelectsSources(t *testing.T) {
	env := newTestEnv(t)
	r := env.runner(t, []config.Source{
		{ID: "abc", Kind: config.KindXMLTV, Path: env.write(t, "abc.xml", feedXML)},
		{ID: "radio", Kind: config.KindCSV, Path: env.write(t, "radio.csv", channelsCSV)},
	}, nil)

	status, err := r.Run(context.Background(), Options{Sources: []string{"radio", "nope"}})
	require.NoError(t, err)
	require.Len(t, status.Sources, 1)
	assert.Equal(t, "radio", status.Sources[0].ID)
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "nope")
}

func TestRunnerOverlayAndChannelsCSV(t *testing.T) {
	env := newTestEnv(t)
	overlay := `[
  {"channel_id": "SBS.au", "channel_slug": "SBS-au", "channel_name": "SBS One", "channel_number": "3"},
  {"channel_id": "TEN.au", "channel_slug": "TEN-au", "channel_name": "10", "channel_number": "10"}
]`
	r := env.runner(t, []config.Source{{
		ID:          "abc",
		Kind:        config.KindXMLTV,
		Path:        env.write(t, "abc.xml", feedXML),
		Overlay:     env.write(t, "overlay.json", overlay),
		ChannelsCSV: env.write(t, "extra.csv", "guidelink,channel_name,chanlcnfta1\nABC.au,ABC Renamed,22\nSEVEN.au,Seven,7\n"),
	}}, nil)

	_, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)

	doc, err := env.store.Channels(context.Background(), "abc")
	require.NoError(t, err)
	names := make(map[string]string)
	for _, c := range doc.Channels {
		names[c.ID+"/"+c.Number] = c.Name
	}
	assert.Equal(t, map[string]string{
		"ABC.au/22":  "ABC Renamed",
		"SBS.au/3":   "SBS One",
		"SEVEN.au/7": "Seven",
		"TEN.au/10":  "10",
	}, names)
}

func TestRunnerSQLSource(t *testing.T) {
	env := newTestEnv(t)
	dsn := filepath.Join(env.dir, "providers.sqlite")
	cfg := sqlite.DefaultConfig()
	cfg.ReadOnly = false
	db, err := sqlite.Open(dsn, cfg)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE providers (providnum INTEGER, provid TEXT, provname TEXT, provnamelong TEXT,
	provgroupname TEXT, provsubgroup TEXT, provlcn TEXT, provshow INTEGER);
CREATE TABLE channels (guidelink TEXT, channame TEXT, chanloc TEXT, channamereal TEXT, chantype TEXT,
	chancomp TEXT, channetweb TEXT, chanbouq TEXT, chanlcnfta1 TEXT, chanlcnfta2 TEXT, chanlcnfta3 TEXT,
	chanlcnfox TEXT, chanlcnfet TEXT, logolight TEXT, logodark TEXT, network TEXT, chgroup TEXT,
	chanshowonlistview INTEGER);
CREATE TABLE guide (guideid TEXT, channel TEXT, progstart TEXT, progstop TEXT, title TEXT,
	subtitle TEXT, descr TEXT, category TEXT, rating TEXT, episode TEXT);
INSERT INTO providers VALUES
	(1, 'FTA', 'Free To Air', NULL, 'FTA', 'Terrestrial', NULL, 1),
	(2, 'FOX', 'Foxtel', NULL, 'Pay', 'Satellite', 'chanlcnfox', 1);
INSERT INTO channels VALUES
	('ABC', 'ABC TV', NULL, NULL, NULL, NULL, NULL, '1,2', '2', NULL, NULL, '102', NULL, NULL, NULL, NULL, NULL, 1);
INSERT INTO guide VALUES
	('e1', 'ABC', '20240115100000 +0000', '20240115110000 +0000', 'News', NULL, NULL, NULL, NULL, NULL);
`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	r := env.runner(t, []config.Source{
		{ID: "db", Kind: config.KindSQL, Driver: source.DriverSQLite, DSN: dsn, Providers: []string{"FTA"}},
	}, nil)
	status, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, status.Sources, 1)
	require.Equal(t, SourceProcessed, status.Sources[0].State, status.Sources[0].Error)
	assert.Equal(t, []string{"db_FTA"}, status.Sources[0].Outputs)

	progs, err := env.store.Programmes(context.Background(), "db_FTA")
	require.NoError(t, err)
	assert.Len(t, progs.Programmes, 1)

	index, err := env.store.Sources(context.Background())
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, "db", index[0].Origin)
}

func TestRunnerFetchesRemoteFeeds(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	fetcher := source.NewFetcher(srv.Client(), source.FetchConfig{Timeout: 5 * time.Second, MaxAge: time.Hour, Concurrency: 2})
	r := env.runner(t, []config.Source{{ID: "remote", Kind: config.KindXMLTV, URL: srv.URL + "/feed.xml"}}, fetcher)

	status, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, SourceProcessed, status.Sources[0].State, status.Sources[0].Error)
	assert.FileExists(t, filepath.Join(env.dir, "feeds", "remote.xml"))
	assert.Equal(t, 1, env.metrics.fetch("success"))

	_, err = r.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, env.metrics.fetch("skipped"), "fresh copy is reused")

	fail.Store(true)
	status, err = r.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, env.metrics.fetch("error"))
	assert.Equal(t, SourceProcessed, status.Sources[0].State, "stale copy is used after a failed download")
}

// blockingFetcher parks FetchAll until release is closed.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) FetchAll(ctx context.Context, targets []source.FetchTarget) []source.FetchResult {
	close(f.entered)
	select {
	case <-f.release:
	case <-ctx.Done():
	}
	out := make([]source.FetchResult, len(targets))
	for i, t := range targets {
		out[i] = source.FetchResult{ID: t.ID, Err: errors.New("blocked")}
	}
	return out
}

func TestRunnerRejectsConcurrentRuns(t *testing.T) {
	env := newTestEnv(t)
	fetcher := &blockingFetcher{entered: make(chan struct{}), release: make(chan struct{})}
	r := env.runner(t, []config.Source{{ID: "remote", Kind: config.KindXMLTV, URL: "http://feeds.invalid/x.xml"}}, fetcher)

	done := make(chan Status)
	go func() {
		s, _ := r.Run(context.Background(), Options{})
		done <- s
	}()
	<-fetcher.entered

	assert.True(t, r.Running())
	snap, err := r.Run(context.Background(), Options{})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, "job-1", snap.JobID)

	close(fetcher.release)
	final := <-done
	assert.Equal(t, StateFailed, final.State)
	assert.False(t, r.Running())
	assert.Equal(t, 1, env.metrics.runs["rejected"])
}

func TestRunnerCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	r := env.runner(t, []config.Source{
		{ID: "abc", Kind: config.KindXMLTV, Path: env.write(t, "abc.xml", feedXML)},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status, err := r.Run(ctx, Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, status.State)
	assert.Empty(t, status.Sources)
}

func TestRunnerSubscribe(t *testing.T) {
	env := newTestEnv(t)
	r := env.runner(t, []config.Source{
		{ID: "abc", Kind: config.KindXMLTV, Path: env.write(t, "abc.xml", feedXML)},
	}, nil)

	updates, unsubscribe := r.Subscribe()
	defer unsubscribe()

	_, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)

	var states []State
	for len(states) < 4 {
		select {
		case s := <-updates:
			states = append(states, s.State)
		case <-time.After(time.Second):
			t.Fatalf("missing updates, got %v", states)
		}
	}
	assert.Equal(t, StateRunning, states[0])
	assert.Equal(t, StateCompleted, states[len(states)-1])

	unsubscribe()
	_, open := <-updates
	assert.False(t, open)
}

func TestStatusSnapshotsAreNotAliased(t *testing.T) {
	env := newTestEnv(t)
	r := env.runner(t, []config.Source{
		{ID: "abc", Kind: config.KindXMLTV, Path: env.write(t, "abc.xml", feedXML)},
	}, nil)
	assert.Equal(t, StateIdle, r.Status().State)

	_, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)

	snap := r.Status()
	snap.Sources[0].ID = "mutated"
	snap.Sources[0].Outputs[0] = "mutated"
	again := r.Status()
	assert.Equal(t, "abc", again.Sources[0].ID)
	assert.Equal(t, []string{"abc"}, again.Sources[0].Outputs)
}

func TestNewRunnerRejectsBadTimezone(t *testing.T) {
	cfg := config.Defaults()
	cfg.Engine.Timezone = "Nowhere/Land"
	_, err := NewRunner(Deps{Config: cfg, Sources: staticSources(nil)})
	require.ErrorIs(t, err, epg.ErrUnknownTimezone)
}
