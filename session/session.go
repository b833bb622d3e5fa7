// Package session owns the lifecycle of one watch-page visit: locating the
// playback surface, attaching the matching bridge and controller, and
// reattaching whenever the page swaps the player out underneath us.
//
// All cross-surface state lives here explicitly. Nothing in the lower layers
// is ambient, so a torn-down surface can be replaced without leaking timers,
// subscriptions or stale event handlers.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/Atik203/animexin-player-controller-extension/bridge"
	"github.com/Atik203/animexin-player-controller-extension/controller"
	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/monitor"
	"github.com/Atik203/animexin-player-controller-extension/page"
	"github.com/Atik203/animexin-player-controller-extension/prefs"
	"github.com/Atik203/animexin-player-controller-extension/surface"
	"github.com/Atik203/animexin-player-controller-extension/timecode"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

// ErrNoNextTarget indicates the page exposes no next-episode link.
var ErrNoNextTarget = errors.New("no next episode target on this page")

// ErrNotStarted indicates an operation on a session before Start.
var ErrNotStarted = errors.New("session not started")

// PortOpener opens a structured message channel to an embed frame's content
// window. The live implementation is backed by the in-page agent relay.
type PortOpener func(frame dom.Element) (dom.MessagePort, error)

// Settings is the UI-facing view of one series' skip configuration.
// Timecodes use the m:ss display format; an empty field means "not set".
type Settings struct {
	SeriesID              string `json:"series_id"`
	IntroSkipStart        string `json:"intro_skip_start"`
	OutroStart            string `json:"outro_start"`
	OutroFallbackDuration string `json:"outro_fallback_duration"`
}

// Session drives one watch page. Configure the exported fields, then Start.
type Session struct {
	Doc      dom.Document
	Store    *prefs.Store
	OpenPort PortOpener

	// OnAdvance, when set, observes every automatic or manual advance.
	OnAdvance func(seriesID string, next mo.Option[string])

	mu       sync.Mutex
	started  bool
	seriesID string
	prefs    *prefs.SeriesPreferences
	pref     *page.ServerPreference
	locator  *surface.Locator
	mon      *monitor.Monitor
	current  surface.Surface
	attached bool
	br       bridge.Bridge
	ctrl     *controller.Controller

	ctx    context.Context
	cancel context.CancelFunc
}

// Start resolves the series, begins monitoring the page and performs the
// initial surface attachment. A page without a locatable surface is not an
// error; the session stays alive and attaches when the monitor reports one.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.seriesID = prefs.SeriesID(s.Doc.URL())
	s.prefs = s.Store.Load(s.seriesID)
	s.pref = page.NewServerPreference(s.Doc, viper.GetStringSlice(key.ServerPriorities))
	s.locator = surface.NewLocator(s.Doc, s.pref)
	s.mon = monitor.New(s.Doc, s.pref)
	s.mu.Unlock()

	log.Infof("session: started for series %q at %s", s.seriesID, s.Doc.URL())

	s.mon.Run(s.ctx)
	go s.watch()
	go func() {
		if err := s.attach(); err != nil {
			log.Warnf("session: initial attach failed: %v", err)
		}
	}()

	return nil
}

// Stop tears the session down. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SeriesID returns the slug the session resolved from the page URL.
func (s *Session) SeriesID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seriesID
}

// Attached reports whether a surface is currently under control.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// State returns the active controller's playback snapshot, or a zero state
// when no surface is attached.
func (s *Session) State() controller.State {
	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()
	if ctrl == nil {
		return controller.State{}
	}
	return ctrl.State()
}

// CurrentSettings returns the series' skip configuration for display.
func (s *Session) CurrentSettings() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return Settings{}, ErrNotStarted
	}

	return Settings{
		SeriesID:              s.seriesID,
		IntroSkipStart:        displayTimecode(s.prefs.IntroSkipStartSec),
		OutroStart:            displayTimecode(s.prefs.OutroStartSec),
		OutroFallbackDuration: displayTimecode(s.prefs.OutroFallbackDurationSec),
	}, nil
}

// UpdateSettings validates, persists and applies a new skip configuration.
// Every field is validated before anything is written; one bad timecode
// rejects the whole update.
func (s *Session) UpdateSettings(in Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}

	intro, err := parseTimecode("intro skip start", in.IntroSkipStart)
	if err != nil {
		return err
	}
	outro, err := parseTimecode("outro start", in.OutroStart)
	if err != nil {
		return err
	}
	fallback, err := parseTimecode("outro fallback duration", in.OutroFallbackDuration)
	if err != nil {
		return err
	}

	updated := &prefs.SeriesPreferences{
		SeriesID:                 s.seriesID,
		IntroSkipStartSec:        intro,
		OutroStartSec:            outro,
		OutroFallbackDurationSec: fallback,
	}
	if err := s.Store.Save(updated); err != nil {
		return err
	}

	s.prefs = updated
	if s.ctrl != nil {
		s.ctrl.UpdatePrefs(updated)
	}
	log.Infof("session: settings updated for %q", s.seriesID)
	return nil
}

// NavigateNext performs a user-requested jump to the next episode.
func (s *Session) NavigateNext() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	seriesID, doc, onAdvance := s.seriesID, s.Doc, s.OnAdvance
	s.mu.Unlock()

	next := page.NextEpisodeURL(doc)
	target, ok := next.Get()
	if !ok {
		return ErrNoNextTarget
	}

	if err := doc.Navigate(target); err != nil {
		return fmt.Errorf("navigating to %q: %w", target, err)
	}
	if onAdvance != nil {
		onAdvance(seriesID, next)
	}
	return nil
}

// ShowPanel asks the in-page agent to surface the settings affordance.
func (s *Session) ShowPanel() error {
	settings, err := s.CurrentSettings()
	if err != nil {
		return err
	}
	return s.Doc.ShowNotice(fmt.Sprintf(
		"Skip settings for %s: intro %s, outro %s, fallback %s",
		settings.SeriesID,
		orUnset(settings.IntroSkipStart),
		orUnset(settings.OutroStart),
		orUnset(settings.OutroFallbackDuration)))
}

// watch reattaches whenever the monitor reports a plausible player swap.
func (s *Session) watch() {
	for {
		select {
		case <-s.ctx.Done():
			s.detach()
			return
		case <-s.mon.Resync():
			s.resync()
		}
	}
}

// resync relocates the surface and reattaches only on identity change.
// The same element reappearing in the mutation stream is routine; tearing
// down a healthy controller for it would lose the one-shot skip state.
func (s *Session) resync() {
	surf, err := s.locator.Locate(s.ctx)
	if err != nil {
		log.Debugf("session: surface gone after page change: %v", err)
		s.detach()
		return
	}

	s.mu.Lock()
	same := s.attached && s.current.Same(surf)
	s.mu.Unlock()
	if same {
		return
	}

	s.detach()
	if err := s.attachSurface(surf); err != nil {
		log.Warnf("session: reattach failed: %v", err)
	}
}

// attach locates a surface and takes control of it.
func (s *Session) attach() error {
	surf, err := s.locator.Locate(s.ctx)
	if err != nil {
		return err
	}
	return s.attachSurface(surf)
}

func (s *Session) attachSurface(surf surface.Surface) error {
	var br bridge.Bridge
	switch surf.Kind {
	case surface.KindEmbeddedFrame:
		if s.OpenPort == nil {
			return errors.New("no port opener for embedded frame")
		}
		port, err := s.OpenPort(surf.Frame)
		if err != nil {
			return fmt.Errorf("opening frame port: %w", err)
		}
		br = bridge.NewFrameBridge(surf.Frame, port, pageOrigin(s.Doc.URL()))
	case surface.KindNativeElement:
		br = bridge.NewNativeBridge(surf.Media)
	default:
		return fmt.Errorf("unsupported surface kind %s", surf.Kind)
	}

	s.mu.Lock()
	ctrl := controller.New(br, s.Doc, s.prefs, page.NextEpisodeURL(s.Doc))
	seriesID, onAdvance := s.seriesID, s.OnAdvance
	ctrl.OnAdvance = func(next mo.Option[string]) {
		if onAdvance != nil {
			onAdvance(seriesID, next)
		}
	}
	s.current = surf
	s.attached = true
	s.br = br
	s.ctrl = ctrl
	s.mu.Unlock()

	ctrl.Run()
	log.Infof("session: attached %s surface", surf.Kind)
	return nil
}

// detach closes the controller and bridge of the current surface, if any.
func (s *Session) detach() {
	s.mu.Lock()
	ctrl, br := s.ctrl, s.br
	s.ctrl, s.br = nil, nil
	s.attached = false
	s.current = surface.Surface{}
	s.mu.Unlock()

	if ctrl != nil {
		_ = ctrl.Close()
	}
	if br != nil {
		_ = br.Close()
	}
}

// parseTimecode converts a display timecode to seconds; empty clears to 0.
func parseTimecode(field, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	seconds, err := timecode.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return seconds, nil
}

func displayTimecode(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return timecode.Format(float64(seconds))
}

func orUnset(value string) string {
	if value == "" {
		return "unset"
	}
	return value
}

// pageOrigin reduces a page URL to its origin for the embed API opt-in.
func pageOrigin(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
