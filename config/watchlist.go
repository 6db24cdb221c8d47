package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one resource to poll from boot.
type Entry struct {
	ID       string        `yaml:"id"`
	Sport    string        `yaml:"sport"`
	Resource string        `yaml:"resource"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type watchlistFile struct {
	Sessions []Entry `yaml:"sessions"`
}

// LoadWatchlist reads a YAML watchlist from path.
//
//	sessions:
//	  - sport: nhl
//	    resource: "2023020204"
//	    interval: 15s
func LoadWatchlist(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read watchlist: %w", err)
	}
	return ParseWatchlist(data)
}

// ParseWatchlist decodes and checks a watchlist document. Entries without
// an id are named "<sport>-<resource>"; durations of zero are left for the
// caller to default.
func ParseWatchlist(data []byte) ([]Entry, error) {
	var f watchlistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse watchlist: %w", err)
	}
	seen := make(map[string]bool, len(f.Sessions))
	var errs []error
	for i := range f.Sessions {
		e := &f.Sessions[i]
		if e.Sport == "" || e.Resource == "" {
			errs = append(errs, fmt.Errorf("entry %d: sport and resource are required", i))
			continue
		}
		if e.Interval < 0 || e.Timeout < 0 {
			errs = append(errs, fmt.Errorf("entry %d: negative duration", i))
		}
		if e.ID == "" {
			e.ID = e.Sport + "-" + e.Resource
		}
		if seen[e.ID] {
			errs = append(errs, fmt.Errorf("entry %d: duplicate id %q", i, e.ID))
		}
		seen[e.ID] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: invalid watchlist: %w", err)
	}
	return f.Sessions, nil
}
