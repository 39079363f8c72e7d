// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bacco007/webepg/internal/cache"
	"github.com/bacco007/webepg/internal/epg"
	applog "github.com/bacco007/webepg/internal/log"
	"github.com/bacco007/webepg/internal/source"
	"github.com/bacco007/webepg/internal/store"
)

const queryDateLayout = "20060102"

// ChannelSummary identifies a channel in date responses.
type ChannelSummary struct {
	ID     string           `json:"id"`
	Name   epg.ChannelNames `json:"name"`
	Icon   epg.ChannelLogo  `json:"icon"`
	Slug   string           `json:"slug"`
	Number string           `json:"lcn"`
}

// ChannelPrograms is one channel's completed schedule on a date.
type ChannelPrograms struct {
	Channel  ChannelSummary `json:"channel"`
	Programs []epg.Block    `json:"programs"`
}

// DateResponse is the body of GET .../epg/{date}.
type DateResponse struct {
	DatePulled time.Time         `json:"date_pulled"`
	Query      string            `json:"query"`
	Source     string            `json:"source"`
	Date       string            `json:"date"`
	Timezone   string            `json:"timezone"`
	Channels   []ChannelPrograms `json:"channels"`
}

// ChannelEPGResponse is the body of GET .../channels/{channel}/epg.
type ChannelEPGResponse struct {
	DatePulled time.Time              `json:"date_pulled"`
	Query      string                 `json:"query"`
	Source     string                 `json:"source"`
	Timezone   string                 `json:"timezone"`
	Channel    epg.CanonicalChannel   `json:"channel"`
	Programs   map[string][]epg.Block `json:"programs"`
}

// ListResponse wraps list endpoints.
type ListResponse[T any] struct {
	Date   time.Time `json:"date"`
	Query  string    `json:"query"`
	Source string    `json:"source"`
	Data   []T       `json:"data"`
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Sources(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.IndexEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "source")
	doc, err := s.store.Channels(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[epg.CanonicalChannel]{
		Date:   s.now().UTC(),
		Query:  "channels",
		Source: id,
		Data:   doc.Channels,
	})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "source")
	loc, err := s.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.store.Programmes(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[string]{
		Date:   s.now().In(loc),
		Query:  "dates",
		Source: id,
		Data:   epg.Dates(doc.Programmes, loc),
	})
}

func (s *Server) handleEPGByDate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "source")
	loc, err := s.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw := chi.URLParam(r, "date")
	day, err := time.ParseInLocation(queryDateLayout, raw, loc)
	if err != nil || len(raw) != len(queryDateLayout) {
		writeError(w, r, fmt.Errorf("%w: %q", errInvalidDate, raw))
		return
	}
	date := day.Format(epg.DateLayout)

	s.serveCached(w, r, "epg/date", id, date, loc, func() (any, error) {
		channels, programmes, err := s.load(r, id)
		if err != nil {
			return nil, err
		}
		lines := epg.ByDate(epg.BuildTimelines(programmes, nil, loc, s.opts), date)
		if len(lines) == 0 {
			return nil, fmt.Errorf("%w for date %s", errNoProgramming, date)
		}

		bySlug := firstBySlug(channels)
		out := make([]ChannelPrograms, 0, len(lines))
		for _, t := range lines {
			c, ok := bySlug[t.Channel]
			if !ok {
				continue
			}
			out = append(out, ChannelPrograms{
				Channel:  ChannelSummary{ID: c.ID, Name: c.Names, Icon: c.Logos, Slug: c.Slug, Number: c.Number},
				Programs: t.Blocks,
			})
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w for date %s", errNoProgramming, date)
		}
		return DateResponse{
			DatePulled: s.now().UTC(),
			Query:      "epg/date",
			Source:     id,
			Date:       date,
			Timezone:   loc.String(),
			Channels:   out,
		}, nil
	})
}

func (s *Server) handleChannelEPG(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "source")
	slug := chi.URLParam(r, "channel")
	loc, err := s.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.serveCached(w, r, "epg/channel", id, slug, loc, func() (any, error) {
		channel, err := s.store.Channel(r.Context(), id, slug)
		if err != nil {
			return nil, err
		}
		doc, err := s.store.Programmes(r.Context(), id)
		if err != nil {
			return nil, err
		}
		var own []epg.Programme
		for _, p := range doc.Programmes {
			if p.Slug == slug {
				own = append(own, p)
			}
		}
		if len(own) == 0 {
			return nil, fmt.Errorf("%w for channel %s", errNoProgramming, slug)
		}

		programs := make(map[string][]epg.Block)
		for _, t := range epg.BuildTimelines(own, []string{slug}, loc, s.opts) {
			programs[t.Date] = t.Blocks
		}
		return ChannelEPGResponse{
			DatePulled: s.now().UTC(),
			Query:      "epg/channels",
			Source:     id,
			Timezone:   loc.String(),
			Channel:    channel,
			Programs:   programs,
		}, nil
	})
}

func (s *Server) handleNowNext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "source")
	loc, err := s.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	channels, programmes, err := s.load(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := s.now()
	writeJSON(w, http.StatusOK, ListResponse[epg.ChannelNowNext]{
		Date:   now.In(loc),
		Query:  "nownext",
		Source: id,
		Data:   epg.NowNext(channels, programmes, now, loc),
	})
}

func (s *Server) handleXMLTV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "source")
	channels, programmes, err := s.load(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := source.EncodeXMLTV(&buf, "webepg "+s.cfg.Version, channels, programmes); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// location resolves the timezone query parameter, defaulting to the
// engine timezone.
func (s *Server) location(r *http.Request) (*time.Location, error) {
	name := r.URL.Query().Get("timezone")
	if name == "" {
		name = s.cfg.Engine.Timezone
	}
	return epg.LoadLocation(name)
}

func (s *Server) load(r *http.Request, id string) ([]epg.CanonicalChannel, []epg.Programme, error) {
	channels, err := s.store.Channels(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	programmes, err := s.store.Programmes(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	return channels.Channels, programmes.Programmes, nil
}

// serveCached writes the JSON rendering of build, reusing a cached body
// while the source's published data is unchanged.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, view, id, part string, loc *time.Location, build func() (any, error)) {
	version, err := s.store.Version(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	key := cache.Key(view, id, part, loc.String(), strconv.FormatInt(version.UnixNano(), 10))

	if s.cache != nil {
		if body, ok := s.cache.Get(r.Context(), key); ok {
			w.Header().Set("X-Cache", "HIT")
			writeRaw(w, body)
			return
		}
	}

	v, err := build()
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body = append(body, '\n')
	if s.cache != nil {
		s.cache.Set(r.Context(), key, body, s.cfg.Cache.TTL)
		applog.FromContext(r.Context()).Debug().
			Str(applog.FieldEvent, "api.cache_store").
			Str(applog.FieldSource, id).
			Int("bytes", len(body)).
			Msg("timeline response cached")
	}
	w.Header().Set("X-Cache", "MISS")
	writeRaw(w, body)
}

func writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// firstBySlug indexes channels by slug, keeping the first entry.
func firstBySlug(channels []epg.CanonicalChannel) map[string]epg.CanonicalChannel {
	out := make(map[string]epg.CanonicalChannel, len(channels))
	for _, c := range slices.Backward(channels) {
		out[c.Slug] = c
	}
	return out
}
