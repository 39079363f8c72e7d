// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	applog "github.com/bacco007/webepg/internal/log"
	"github.com/bacco007/webepg/internal/metrics"
)

// DefaultDebounce delays reloads after the last file event.
const DefaultDebounce = 500 * time.Millisecond

// SourcesHolder holds the current source index and reloads it when the
// file changes. A failed reload keeps the previous index.
type SourcesHolder struct {
	mu      sync.RWMutex
	current []Source
	path    string
	logger  zerolog.Logger

	debounce time.Duration
	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	stopOnce sync.Once

	listenMu  sync.RWMutex
	listeners []chan<- []Source
}

// NewSourcesHolder loads path and returns a holder for it.
func NewSourcesHolder(path string) (*SourcesHolder, error) {
	sources, err := LoadSources(path)
	if err != nil {
		return nil, err
	}
	return &SourcesHolder{
		current:  sources,
		path:     path,
		logger:   applog.WithComponent("config"),
		debounce: DefaultDebounce,
	}, nil
}

// Sources returns a copy of the current index.
func (h *SourcesHolder) Sources() []Source {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.current)
}

// Reload re-reads the index file.
func (h *SourcesHolder) Reload() error {
	sources, err := LoadSources(h.path)
	if err != nil {
		metrics.IncSourcesReload("error")
		h.logger.Error().Err(err).
			Str("event", "config.sources_reload_failed").
			Str(applog.FieldPath, h.path).
			Msg("keeping previous source index")
		return fmt.Errorf("reload sources: %w", err)
	}

	h.mu.Lock()
	old := len(h.current)
	h.current = sources
	h.mu.Unlock()

	metrics.IncSourcesReload("success")
	h.logger.Info().
		Str("event", "config.sources_reloaded").
		Int("old", old).
		Int("new", len(sources)).
		Msg("source index reloaded")
	h.notify(slices.Clone(sources))
	return nil
}

// RegisterListener adds a channel that receives the index after every
// successful reload. Sends never block; a full channel misses the update.
func (h *SourcesHolder) RegisterListener(ch chan<- []Source) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *SourcesHolder) notify(sources []Source) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- sources:
		default:
			h.logger.Warn().Str("event", "config.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
}

// Start watches the directory of the index file until ctx is done or Stop
// is called. Watching the directory keeps working across editors that
// replace the file by rename.
func (h *SourcesHolder) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch sources dir: %w", err)
	}
	h.watcher = w
	h.logger.Info().Str("event", "config.watcher_started").Str(applog.FieldPath, h.path).Msg("watching source index")

	h.wg.Add(1)
	go h.loop(ctx)
	return nil
}

func (h *SourcesHolder) loop(ctx context.Context) {
	defer h.wg.Done()
	target := filepath.Clean(h.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str("event", "config.file_changed").Str("op", ev.Op.String()).Msg("source index changed")
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_ = h.Reload()
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("source watcher error")
		}
	}
}

// Stop closes the watcher. It is safe to call more than once and from
// the watch loop itself.
func (h *SourcesHolder) Stop() {
	h.stopOnce.Do(func() {
		if h.watcher != nil {
			_ = h.watcher.Close()
		}
	})
}

// Wait blocks until the watch loop has exited.
func (h *SourcesHolder) Wait() { h.wg.Wait() }
