package prefs

import (
	"errors"
	"fmt"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/filesystem"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/where"
	"github.com/metafates/gache"
)

// ErrStorage indicates a failed preference write. Reads never surface it;
// they degrade to defaults instead.
var ErrStorage = errors.New("preference storage failure")

// Store is a disk-backed registry of per-series playback preferences.
// Entries for different series are namespaced by key and never collide.
type Store struct {
	cacher *gache.Cache[map[string]*SeriesPreferences]
}

// NewStore creates a Store persisting to the default preference file.
func NewStore() *Store {
	return NewStoreAt(where.Prefs())
}

// NewStoreAt creates a Store persisting to the given path.
func NewStoreAt(path string) *Store {
	return &Store{
		cacher: gache.New[map[string]*SeriesPreferences](&gache.Options{
			Path:       path,
			FileSystem: &filesystem.GacheFs{},
		}),
	}
}

func storageKey(seriesID string) string {
	return "prefs:" + seriesID
}

// Load returns the saved preferences for a series, or the all-zero defaults.
// It never fails visibly: malformed or missing stored data degrades to
// defaults with a log line.
func (s *Store) Load(seriesID string) *SeriesPreferences {
	all, err := s.read()
	if err != nil {
		log.Warnf("prefs: read failed for %q, using defaults: %v", seriesID, err)
		return Defaults(seriesID)
	}

	if saved, ok := all[storageKey(seriesID)]; ok && saved != nil {
		// Copy so callers cannot mutate the cached map through the pointer.
		p := *saved
		p.SeriesID = seriesID
		return &p
	}

	return Defaults(seriesID)
}

// Save persists a preference set, overwriting any previous entry for the
// same series wholesale. Field ranges are re-validated defensively: values
// outside [0, 86400] are clamped rather than rejected.
func (s *Store) Save(p *SeriesPreferences) error {
	all, err := s.read()
	if err != nil {
		// A corrupt store must not block saving; start over from empty.
		log.Warnf("prefs: read before save failed, starting fresh: %v", err)
		all = make(map[string]*SeriesPreferences)
	}

	entry := p.clamped()
	entry.UpdatedAt = time.Now()
	all[storageKey(entry.SeriesID)] = entry

	if err := s.cacher.Set(all); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return nil
}

// read loads the whole preference map, treating an expired or absent store as empty.
func (s *Store) read() (map[string]*SeriesPreferences, error) {
	cached, expired, err := s.cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*SeriesPreferences), nil
	}
	return cached, nil
}
