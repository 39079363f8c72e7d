// SPDX-License-Identifier: MIT

// Package store owns the on-disk layout of the generated guide: the
// per-source channel and programme documents plus the sources.json index.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bacco007/webepg/internal/epg"
)

var (
	// ErrSourceNotFound is returned when no documents exist for a source id.
	ErrSourceNotFound = errors.New("source not found")
	// ErrChannelNotFound is returned when a channel slug is absent from a source.
	ErrChannelNotFound = errors.New("channel not found")
)

const indexFile = "sources.json"

// Store reads and writes documents below Dir.
type Store struct {
	Dir string
}

// New returns a store rooted at dir.
func New(dir string) *Store { return &Store{Dir: dir} }

// IndexPath is the location of sources.json.
func (s *Store) IndexPath() string { return filepath.Join(s.Dir, indexFile) }

// EPGPath is the programme document of a source.
func (s *Store) EPGPath(id string) string {
	return filepath.Join(s.Dir, "epg", id+".json")
}

// ChannelsPath is the channel document of a source.
func (s *Store) ChannelsPath(id string) string {
	return filepath.Join(s.Dir, "channels", id+"_channels.json")
}

// IndexEntry describes one published output source.
type IndexEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Group    string `json:"group,omitempty"`
	Subgroup string `json:"subgroup,omitempty"`
	Location string `json:"location,omitempty"`
	URL      string `json:"url,omitempty"`
	// Origin is the configured source that produced the entry.
	Origin string `json:"origin"`
}

// ChannelsDoc is the channel document of one output source.
type ChannelsDoc struct {
	Source    string                 `json:"source"`
	Provider  epg.Provider           `json:"provider"`
	Generated time.Time              `json:"generated"`
	Channels  []epg.CanonicalChannel `json:"channels"`
}

// ProgrammesDoc is the programme document of one output source.
type ProgrammesDoc struct {
	Source     string          `json:"source"`
	Timezone   string          `json:"timezone"`
	Generated  time.Time       `json:"generated"`
	Programmes []epg.Programme `json:"programmes"`
}

// Sources returns the published index. A missing index is empty.
func (s *Store) Sources(ctx context.Context) ([]IndexEntry, error) {
	var out []IndexEntry
	if err := s.read(ctx, s.IndexPath(), &out); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// Channels returns the channel document of id.
func (s *Store) Channels(ctx context.Context, id string) (*ChannelsDoc, error) {
	var doc ChannelsDoc
	if err := s.readSource(ctx, s.ChannelsPath, id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Programmes returns the programme document of id.
func (s *Store) Programmes(ctx context.Context, id string) (*ProgrammesDoc, error) {
	var doc ProgrammesDoc
	if err := s.readSource(ctx, s.EPGPath, id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Channel returns the first entry of id with the given slug.
func (s *Store) Channel(ctx context.Context, id, slug string) (epg.CanonicalChannel, error) {
	doc, err := s.Channels(ctx, id)
	if err != nil {
		return epg.CanonicalChannel{}, err
	}
	for _, c := range doc.Channels {
		if c.Slug == slug {
			return c, nil
		}
	}
	return epg.CanonicalChannel{}, fmt.Errorf("%w: %s/%s", ErrChannelNotFound, id, slug)
}

// Version is the modification time of the programme document of id. It
// changes whenever the source is regenerated.
func (s *Store) Version(id string) (time.Time, error) {
	if !ValidID(id) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	fi, err := os.Stat(s.EPGPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
		}
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func (s *Store) readSource(ctx context.Context, pathFn func(string) string, id string, v any) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	if err := s.read(ctx, pathFn(id), v); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
		}
		return err
	}
	return nil
}

func (s *Store) read(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// #nosec G304 -- path is built from a validated id below Dir
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ValidID reports whether id is a slug that cannot escape the output tree.
func ValidID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\.`) && epg.Slugify(id) == id
}

// MergeIndex combines fresh entries with the previous index. Entries whose
// origin was refreshed are replaced wholesale; entries of other origins
// survive. The result is sorted by id; on an id clash the fresh entry wins.
func MergeIndex(prev, fresh []IndexEntry, refreshed []string) []IndexEntry {
	out := make([]IndexEntry, 0, len(prev)+len(fresh))
	out = append(out, fresh...)
	for _, e := range prev {
		if !slices.Contains(refreshed, e.Origin) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b IndexEntry) int { return strings.Compare(a.ID, b.ID) })
	return slices.CompactFunc(out, func(a, b IndexEntry) bool { return a.ID == b.ID })
}
