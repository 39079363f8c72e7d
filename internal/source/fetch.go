// SPDX-License-Identifier: MIT

package source

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"

	applog "github.com/bacco007/webepg/internal/log"
)

// ErrUpstreamStatus is returned when a feed responds with a non-200 status.
var ErrUpstreamStatus = errors.New("unexpected upstream status")

// FetchConfig controls remote feed downloads.
type FetchConfig struct {
	Timeout     time.Duration
	MaxAge      time.Duration
	Concurrency int
}

// FetchTarget is one remote feed and the local file it is cached in.
type FetchTarget struct {
	ID   string
	URL  string
	Path string
	// Force downloads even when the local copy is fresh.
	Force bool
}

// FetchResult describes what happened to one target.
type FetchResult struct {
	ID      string
	Path    string
	Skipped bool
	Bytes   int64
	Err     error
}

// Fetcher downloads remote feeds into local files.
type Fetcher struct {
	client *http.Client
	cfg    FetchConfig
	now    func() time.Time
}

// NewFetcher returns a Fetcher. A nil client gets a transport with bounded
// dial and header timeouts.
func NewFetcher(client *http.Client, cfg FetchConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if client == nil {
		client = newHTTPClient(cfg.Timeout)
	}
	return &Fetcher{client: client, cfg: cfg, now: time.Now}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          16,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}

// FetchAll downloads every target with bounded concurrency. Per-target
// failures are reported in the results and do not abort the others.
func (f *Fetcher) FetchAll(ctx context.Context, targets []FetchTarget) []FetchResult {
	results := make([]FetchResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = f.Fetch(gctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Fetch downloads a single target unless the cached copy is younger than
// MaxAge.
func (f *Fetcher) Fetch(ctx context.Context, t FetchTarget) FetchResult {
	logger := applog.WithComponentFromContext(ctx, "fetch")
	res := FetchResult{ID: t.ID, Path: t.Path}

	if !t.Force && f.fresh(t.Path) {
		res.Skipped = true
		logger.Debug().Str("event", "fetch.skipped").Str(applog.FieldSource, t.ID).Msg("cached feed is fresh")
		return res
	}

	n, err := f.download(ctx, t)
	res.Bytes, res.Err = n, err
	if err != nil {
		logger.Warn().Err(err).
			Str("event", "fetch.failed").
			Str(applog.FieldSource, t.ID).
			Str(applog.FieldURL, t.URL).
			Msg("feed download failed")
		return res
	}
	logger.Info().
		Str("event", "fetch.complete").
		Str(applog.FieldSource, t.ID).
		Str(applog.FieldPath, t.Path).
		Int64("bytes", n).
		Msg("feed downloaded")
	return res
}

func (f *Fetcher) fresh(path string) bool {
	if f.cfg.MaxAge <= 0 {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return f.now().Sub(fi.ModTime()) < f.cfg.MaxAge
}

func (f *Fetcher) download(ctx context.Context, t FetchTarget) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", t.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if isGzip(resp, t.URL) {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return 0, fmt.Errorf("open gzip stream: %w", err)
		}
		defer func() { _ = zr.Close() }()
		body = zr
	}

	if err := os.MkdirAll(filepath.Dir(t.Path), 0o750); err != nil {
		return 0, fmt.Errorf("create feed dir: %w", err)
	}
	pending, err := renameio.NewPendingFile(t.Path)
	if err != nil {
		return 0, fmt.Errorf("create pending feed file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	n, err := io.Copy(pending, io.LimitReader(body, MaxXMLTVSize+1))
	if err != nil {
		return n, fmt.Errorf("write feed: %w", err)
	}
	if n > MaxXMLTVSize {
		return n, fmt.Errorf("feed exceeds %d bytes", MaxXMLTVSize)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return n, fmt.Errorf("atomically replace feed: %w", err)
	}
	return n, nil
}

// isGzip reports whether the body still needs gunzipping. Setting
// Accept-Encoding explicitly disables transparent decoding in the transport.
func isGzip(resp *http.Response, url string) bool {
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return true
	}
	ct := resp.Header.Get("Content-Type")
	return strings.HasSuffix(strings.ToLower(url), ".gz") ||
		strings.Contains(ct, "application/gzip") || strings.Contains(ct, "application/x-gzip")
}
