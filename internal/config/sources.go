// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bacco007/webepg/internal/epg"
)

// Source kinds.
const (
	KindXMLTV = "xmltv"
	KindSQL   = "sql"
	KindCSV   = "csv"
)

// Source is one entry of the source index.
type Source struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`

	// XMLTV feeds are read from URL (downloaded into the data dir) or Path.
	URL  string `yaml:"url"`
	Path string `yaml:"path"`

	// SQL sources.
	Driver    string   `yaml:"driver"`
	DSN       string   `yaml:"dsn"`
	Providers []string `yaml:"providers"` // provider ids to keep, empty keeps all

	Group     string `yaml:"group"`
	Subgroup  string `yaml:"subgroup"`
	Location  string `yaml:"location"`
	Streaming bool   `yaml:"streaming"`

	Precedence string   `yaml:"precedence"`
	FanOut     []string `yaml:"fan_out"`

	Overlay     string `yaml:"overlay"`
	ChannelsCSV string `yaml:"channels_csv"`
	Encoding    string `yaml:"encoding"`

	Disabled bool `yaml:"disabled"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads and validates a source index file. Relative paths in
// entries are resolved against the file's directory.
func LoadSources(path string) ([]Source, error) {
	// #nosec G304 -- the source index path is operator provided
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f sourcesFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	base := filepath.Dir(path)
	seen := make(map[string]struct{}, len(f.Sources))
	out := make([]Source, 0, len(f.Sources))
	for i, s := range f.Sources {
		if s.Disabled {
			continue
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("sources[%d]: %w: duplicate id %q", i, ErrInvalidSource, s.ID)
		}
		seen[s.ID] = struct{}{}
		s.Path = resolve(base, s.Path)
		s.Overlay = resolve(base, s.Overlay)
		s.ChannelsCSV = resolve(base, s.ChannelsCSV)
		if s.Kind == KindSQL && s.Driver == "sqlite" {
			s.DSN = resolve(base, s.DSN)
		}
		out = append(out, s)
	}
	return out, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (s Source) validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidSource)
	}
	if epg.Slugify(s.ID) != s.ID {
		return fmt.Errorf("%w: id %q must only contain letters, digits, '_' and '-'", ErrInvalidSource, s.ID)
	}
	switch s.Kind {
	case KindXMLTV:
		if s.URL == "" && s.Path == "" {
			return fmt.Errorf("%w: %s: xmltv source needs url or path", ErrInvalidSource, s.ID)
		}
	case KindCSV:
		if s.Path == "" {
			return fmt.Errorf("%w: %s: csv source needs path", ErrInvalidSource, s.ID)
		}
	case KindSQL:
		switch s.Driver {
		case "sqlite", "pgx", "postgres":
		default:
			return fmt.Errorf("%w: %s: unsupported driver %q", ErrInvalidSource, s.ID, s.Driver)
		}
		if s.DSN == "" {
			return fmt.Errorf("%w: %s: sql source needs dsn", ErrInvalidSource, s.ID)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidSource, s.ID, s.Kind)
	}
	if s.Precedence != "" {
		if _, err := epg.ParseLCNField(s.Precedence); err != nil {
			return fmt.Errorf("%w: %s: precedence: %v", ErrInvalidSource, s.ID, err)
		}
	}
	for _, f := range s.FanOut {
		if _, err := epg.ParseLCNField(f); err != nil {
			return fmt.Errorf("%w: %s: fan_out: %v", ErrInvalidSource, s.ID, err)
		}
	}
	return nil
}

// Provider builds the synthetic provider of an xmltv or csv source.
func (s Source) Provider(num int) epg.Provider {
	p := epg.Provider{
		Num:       num,
		ID:        s.ID,
		Name:      firstNonEmpty(s.Name, s.ID),
		Group:     s.Group,
		Subgroup:  s.Subgroup,
		Location:  firstNonEmpty(s.Location, s.Name, s.ID),
		URL:       s.URL,
		Streaming: s.Streaming,
	}
	// Fields were checked by validate.
	if s.Precedence != "" {
		p.Precedence, _ = epg.ParseLCNField(s.Precedence)
	}
	for _, f := range s.FanOut {
		lf, _ := epg.ParseLCNField(f)
		p.FanOut = append(p.FanOut, lf)
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
