// Package prefs persists per-series playback preferences keyed by a slug derived from the watch-page URL.
package prefs

import (
	"time"

	"github.com/Atik203/animexin-player-controller-extension/timecode"
	"github.com/Atik203/animexin-player-controller-extension/util"
)

// SeriesPreferences holds the user's skip configuration for a single series.
// A zero value (besides SeriesID) means "no skipping configured".
type SeriesPreferences struct {
	SeriesID                 string    `json:"series_id"`
	IntroSkipStartSec        int       `json:"intro_skip_start_sec"`
	OutroStartSec            int       `json:"outro_start_sec"`
	OutroFallbackDurationSec int       `json:"outro_fallback_duration_sec"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Defaults returns the all-zero preference set for a series.
func Defaults(seriesID string) *SeriesPreferences {
	return &SeriesPreferences{SeriesID: seriesID}
}

// OutroStart resolves the absolute outro start for the given media duration.
//
// An explicit OutroStartSec always wins; the duration-minus-fallback policy
// applies only when no explicit start is set and the duration is known.
// Returns 0 when no outro point can be derived.
func (p *SeriesPreferences) OutroStart(durationSec float64) float64 {
	if p.OutroStartSec > 0 {
		return float64(p.OutroStartSec)
	}
	if durationSec > 0 && p.OutroFallbackDurationSec > 0 {
		return durationSec - float64(p.OutroFallbackDurationSec)
	}
	return 0
}

// clamped returns a copy with every field forced into its valid range.
// The store applies this defensively so one out-of-range field never
// discards a user's remaining valid values.
func (p *SeriesPreferences) clamped() *SeriesPreferences {
	c := *p
	c.IntroSkipStartSec = util.Clamp(c.IntroSkipStartSec, 0, timecode.MaxSeconds)
	c.OutroStartSec = util.Clamp(c.OutroStartSec, 0, timecode.MaxSeconds)
	c.OutroFallbackDurationSec = util.Clamp(c.OutroFallbackDurationSec, 0, timecode.MaxSeconds)
	return &c
}
