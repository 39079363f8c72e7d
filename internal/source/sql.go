// SPDX-License-Identifier: MIT

package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver

	"github.com/bacco007/webepg/internal/epg"
	"github.com/bacco007/webepg/internal/persistence/sqlite"
)

// ErrCorruptDatabase is returned by Check when an SQLite file fails its
// integrity check.
var ErrCorruptDatabase = errors.New("database integrity check failed")

// Supported database/sql drivers for provider tables.
const (
	DriverSQLite   = "sqlite"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// StreamingSubgroup marks providers whose channels may repeat.
const StreamingSubgroup = "Streaming"

const providersQuery = `
SELECT providnum, provid, provname, COALESCE(provnamelong, ''), COALESCE(provgroupname, ''),
       COALESCE(provsubgroup, ''), COALESCE(provlcn, '')
FROM providers
WHERE provshow = 1 AND providnum IS NOT NULL
ORDER BY providnum`

const channelsQuery = `
SELECT guidelink, COALESCE(channame, ''), COALESCE(chanloc, ''), COALESCE(channamereal, ''),
       COALESCE(chantype, ''), COALESCE(chancomp, ''), COALESCE(channetweb, ''), COALESCE(chanbouq, ''),
       COALESCE(chanlcnfta1, ''), COALESCE(chanlcnfta2, ''), COALESCE(chanlcnfta3, ''),
       COALESCE(chanlcnfox, ''), COALESCE(chanlcnfet, ''),
       COALESCE(logolight, ''), COALESCE(logodark, ''), COALESCE(network, ''), COALESCE(chgroup, '')
FROM channels
WHERE chanshowonlistview <> 0 AND guidelink <> 'CLOSED'
ORDER BY guidelink`

const guideQuery = `
SELECT COALESCE(guideid, ''), channel, progstart, progstop, COALESCE(title, ''), COALESCE(subtitle, ''),
       COALESCE(descr, ''), COALESCE(category, ''), COALESCE(rating, ''), COALESCE(episode, '')
FROM guide
WHERE title <> '(guide not available)'
  AND substr(progstart, 1, 14) >= %s AND substr(progstart, 1, 14) <= %s
  AND channel IN (%s)
ORDER BY channel, progstart`

// SQLSource reads providers, channels and guide rows from relational
// provider tables.
type SQLSource struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens a provider database. For DriverSQLite the dsn is a file
// path; for the PostgreSQL drivers it is a connection string.
func OpenSQL(driver, dsn string) (*SQLSource, error) {
	switch driver {
	case DriverSQLite:
		db, err := sqlite.Open(dsn, sqlite.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return &SQLSource{db: db, driver: driver}, nil
	case DriverPgx, DriverPostgres:
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("%s: open failed: %w", driver, err)
		}
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(time.Hour)
		return &SQLSource{db: db, driver: driver}, nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// NewSQLSource wraps an existing handle.
func NewSQLSource(db *sql.DB, driver string) *SQLSource {
	return &SQLSource{db: db, driver: driver}
}

// DB exposes the underlying handle.
func (s *SQLSource) DB() *sql.DB { return s.db }

// Check verifies the database is reachable. SQLite files also get a
// quick_check; a damaged file reports the diagnostic rows.
func (s *SQLSource) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: ping: %w", s.driver, err)
	}
	if s.driver != DriverSQLite {
		return nil
	}
	problems, err := sqlite.QuickCheck(ctx, s.db, false)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrCorruptDatabase, strings.Join(problems, "; "))
	}
	return nil
}

// Close releases the database handle.
func (s *SQLSource) Close() error { return s.db.Close() }

// placeholder returns the n-th (1-based) bind parameter for the dialect.
func (s *SQLSource) placeholder(n int) string {
	if s.driver == DriverSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// Providers returns visible providers ordered by number.
func (s *SQLSource) Providers(ctx context.Context) ([]epg.Provider, error) {
	rows, err := s.db.QueryContext(ctx, providersQuery)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var out []epg.Provider
	for rows.Next() {
		var (
			p    epg.Provider
			long string
			lcn  string
		)
		if err := rows.Scan(&p.Num, &p.ID, &p.Name, &long, &p.Group, &p.Subgroup, &lcn); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		p.Location = long
		if p.Location == "" {
			p.Location = p.Name
		}
		p.Streaming = p.Subgroup == StreamingSubgroup
		if lcn != "" {
			f, err := epg.ParseLCNField(lcn)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", p.ID, err)
			}
			p.Precedence = f
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Channels returns listed channels ordered by guidelink.
func (s *SQLSource) Channels(ctx context.Context) ([]epg.RawChannel, error) {
	rows, err := s.db.QueryContext(ctx, channelsQuery)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []epg.RawChannel
	for rows.Next() {
		var (
			c               epg.RawChannel
			name, loc, real string
			bouq            string
		)
		if err := rows.Scan(&c.GuideLink, &name, &loc, &real, &c.Type, &c.Operator, &c.URL, &bouq,
			&c.LCNTerrestrial1, &c.LCNTerrestrial2, &c.LCNTerrestrial3, &c.LCNSatellite, &c.LCNPlatform,
			&c.LogoLight, &c.LogoDark, &c.Group, &c.ChannelType); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		c.Names = epg.ChannelNames{
			Clean:    name,
			Location: strings.TrimSpace(name + " " + loc),
			Real:     real,
		}
		c.Bouquets = ParseBouquets(bouq)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Programmes returns guide rows for guidelinks starting within [from, to].
// Timestamps are returned unparsed.
func (s *SQLSource) Programmes(ctx context.Context, guidelinks []string, from, to time.Time) ([]epg.RawProgramme, error) {
	if len(guidelinks) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(guidelinks)+2)
	args = append(args, from.UTC().Format("20060102150405"), to.UTC().Format("20060102150405"))
	in := make([]string, len(guidelinks))
	for i, g := range guidelinks {
		in[i] = s.placeholder(i + 3)
		args = append(args, g)
	}
	query := fmt.Sprintf(guideQuery, s.placeholder(1), s.placeholder(2), strings.Join(in, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query guide: %w", err)
	}
	defer rows.Close()

	var out []epg.RawProgramme
	for rows.Next() {
		var (
			p        epg.RawProgramme
			category string
		)
		if err := rows.Scan(&p.EventID, &p.Channel, &p.Start, &p.Stop, &p.Title, &p.Subtitle,
			&p.Description, &category, &p.Rating, &p.Episode); err != nil {
			return nil, fmt.Errorf("scan guide row: %w", err)
		}
		p.GuideID = p.Channel
		if category != "" {
			p.Categories = []string{category}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Batch loads a complete engine batch. Only programmes for channels in
// at least one provider bouquet are fetched.
func (s *SQLSource) Batch(ctx context.Context, sourceID string, from, to time.Time, keep func(epg.Provider) bool) (epg.Batch, error) {
	providers, err := s.Providers(ctx)
	if err != nil {
		return epg.Batch{}, err
	}
	if keep != nil {
		filtered := providers[:0:0]
		for _, p := range providers {
			if keep(p) {
				filtered = append(filtered, p)
			}
		}
		providers = filtered
	}
	channels, err := s.Channels(ctx)
	if err != nil {
		return epg.Batch{}, err
	}

	var links []string
	seen := make(map[string]struct{})
	for _, c := range channels {
		for _, p := range providers {
			if !c.InBouquet(p.Num) {
				continue
			}
			if _, dup := seen[c.GuideLink]; !dup {
				seen[c.GuideLink] = struct{}{}
				links = append(links, c.GuideLink)
			}
			break
		}
	}
	programmes, err := s.Programmes(ctx, links, from, to)
	if err != nil {
		return epg.Batch{}, err
	}
	return epg.Batch{
		Source:        sourceID,
		Providers:     providers,
		Channels:      channels,
		Programmes:    programmes,
		RoundToMinute: true,
	}, nil
}
