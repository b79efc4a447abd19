// Package cache keeps the most recent sun times on disk so that the oracle
// is queried at most once per local calendar day.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"suntheme/internal/clock"
	"suntheme/internal/suntimes"

	"go.uber.org/zap"
)

// ErrCorrupt means the persisted record could not be parsed.
// Daily treats it as a miss and never returns it.
var ErrCorrupt = errors.New("cache record corrupt")

// Entry is the persisted cache record
type Entry struct {
	SunTimes  suntimes.SunTimes `json:"sun_times"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Store reads and writes the single cache record.
// Load returns (nil, nil) when no record exists.
type Store interface {
	Load() (*Entry, error)
	Save(entry Entry) error
}

// FileStore persists the cache record as JSON at a fixed path
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the cache record
func (s *FileStore) Load() (*Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := entry.SunTimes.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &entry, nil
}

// Save overwrites the cache record. The write goes through a temp file and
// rename so a crash never leaves a half-written record behind.
func (s *FileStore) Save(entry Entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sun_times-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// Daily answers sun time queries from the store while its record is dated
// today, and from the oracle otherwise.
type Daily struct {
	store    Store
	oracle   suntimes.Fetcher
	clock    clock.Clock
	location *time.Location
	logger   *zap.Logger
}

// NewDaily creates a daily cache in front of oracle
func NewDaily(store Store, oracle suntimes.Fetcher, clk clock.Clock, logger *zap.Logger) *Daily {
	return &Daily{
		store:    store,
		oracle:   oracle,
		clock:    clk,
		location: time.Local,
		logger:   logger.Named("cache"),
	}
}

// WithLocation sets the zone that defines "today"
func (d *Daily) WithLocation(loc *time.Location) *Daily {
	d.location = loc
	return d
}

// Cached returns the stored sun times if they are dated today
func (d *Daily) Cached() (suntimes.SunTimes, bool) {
	entry, err := d.store.Load()
	if err != nil {
		d.logger.Warn("Ignoring unreadable sun times cache", zap.Error(err))
		return suntimes.SunTimes{}, false
	}
	if entry == nil {
		return suntimes.SunTimes{}, false
	}

	today := suntimes.DateOf(d.clock.Now(), d.location)
	if entry.SunTimes.Date != today {
		d.logger.Debug("Cached sun times are stale",
			zap.Stringer("cached_date", entry.SunTimes.Date),
			zap.Stringer("today", today))
		return suntimes.SunTimes{}, false
	}
	return entry.SunTimes, true
}

// GetOrFetch returns today's sun times, querying the oracle only when the
// stored record is missing, unreadable or dated another day. An oracle
// failure is returned as is and leaves the stored record untouched.
func (d *Daily) GetOrFetch(ctx context.Context, latitude, longitude float64) (suntimes.SunTimes, error) {
	if st, ok := d.Cached(); ok {
		d.logger.Debug("Using cached sun times", zap.Stringer("date", st.Date))
		return st, nil
	}

	st, err := d.oracle.Fetch(ctx, latitude, longitude)
	if err != nil {
		return suntimes.SunTimes{}, err
	}

	st.Date = suntimes.DateOf(d.clock.Now(), d.location)
	entry := Entry{SunTimes: st, FetchedAt: d.clock.Now().UTC()}
	if err := d.store.Save(entry); err != nil {
		// The fetched result is still good for this call.
		d.logger.Warn("Failed to persist sun times cache", zap.Error(err))
	}
	return st, nil
}
