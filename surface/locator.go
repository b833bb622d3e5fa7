package surface

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/page"
	"github.com/spf13/viper"
)

// ErrSurfaceNotFound indicates the polling budget ran out without a surface
// appearing. Callers must degrade to a manual control, not crash.
var ErrSurfaceNotFound = errors.New("no playback surface found")

const (
	defaultMaxAttempts = 60
	defaultInterval    = 200 * time.Millisecond
)

// Locator polls the host page for a playback surface under a bounded
// time/attempt budget. The page may mount, replace or drop the surface at
// any moment, so a failed probe is a normal outcome, never a loop abort.
type Locator struct {
	Doc         dom.Document
	Pref        *page.ServerPreference // optional; applied opportunistically each probe
	MaxAttempts int
	Interval    time.Duration
}

// NewLocator builds a Locator with the configured polling budget.
func NewLocator(doc dom.Document, pref *page.ServerPreference) *Locator {
	return &Locator{
		Doc:         doc,
		Pref:        pref,
		MaxAttempts: viper.GetInt(key.LocatorMaxAttempts),
		Interval:    time.Duration(viper.GetInt(key.LocatorIntervalMS)) * time.Millisecond,
	}
}

// Locate polls until a surface is found, the attempt budget is exhausted or
// the context is cancelled.
func (l *Locator) Locate(ctx context.Context) (Surface, error) {
	attempts := l.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	interval := l.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= attempts; attempt++ {
		if s, ok := l.Probe(); ok {
			log.Infof("surface: found %s on attempt %d", s.Kind, attempt)
			return s, nil
		}

		select {
		case <-ctx.Done():
			return Surface{}, ctx.Err()
		case <-ticker.C:
		}
	}

	return Surface{}, fmt.Errorf("%w after %d attempts", ErrSurfaceNotFound, attempts)
}

// Probe runs a single detection pass: the server-preference side effect
// first, then the embed frame, then a native media element. Embedded-frame
// detection wins when both surfaces are present. Transient query errors are
// logged and reported as "not found yet".
func (l *Locator) Probe() (Surface, bool) {
	if l.Pref != nil {
		l.Pref.Apply()
	}

	if el, err := l.Doc.Query(page.FrameSelector); err != nil {
		log.Debugf("surface: frame query failed: %v", err)
	} else if el != nil {
		return Surface{Kind: KindEmbeddedFrame, Frame: el}, true
	}

	if el, err := l.Doc.Query(page.MediaSelector); err != nil {
		log.Debugf("surface: media query failed: %v", err)
	} else if el != nil {
		media, ok := el.(dom.MediaElement)
		if !ok {
			log.Debugf("surface: element matching %q is not controllable", page.MediaSelector)
			return Surface{}, false
		}
		return Surface{Kind: KindNativeElement, Media: media}, true
	}

	return Surface{}, false
}
