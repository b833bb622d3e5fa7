// Package controller implements the playback policy for one attached
// surface: skipping the intro once, leaving at the outro, and advancing to
// the next episode.
//
// A Controller is single-use. It is created when a surface is attached and
// closed when the surface goes away; a replacement surface gets a fresh
// Controller so stale events from a torn-down player can never trigger
// actions against the new one.
package controller

import (
	"sync"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/bridge"
	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/prefs"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

// Phase is the controller's view of the surface's playback lifecycle.
type Phase int

const (
	// PhaseIdle means no events have been observed yet.
	PhaseIdle Phase = iota
	// PhaseArmed means the controller is running and waiting for playback.
	PhaseArmed
	PhasePlaying
	PhasePaused
	// PhaseEnded is terminal; an ended controller never acts again.
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Position reports older than the last accepted one by more than this
// margin are stragglers from a torn-down player and get dropped. Small
// backward jitter inside the margin is normal after seeks.
const dropMarginSec = 2.0

// State is a point-in-time snapshot of the controller, served to the UI.
type State struct {
	Phase    Phase   `json:"phase"`
	Position float64 `json:"position_sec"`
	Duration float64 `json:"duration_sec"`
}

// Controller applies the skip policy to one surface. Fields are set before
// Run and never mutated afterwards.
type Controller struct {
	Bridge bridge.Bridge
	Doc    dom.Document
	Prefs  *prefs.SeriesPreferences
	Next   mo.Option[string]

	SkipEnabled  bool
	GraceDelay   time.Duration
	OutroEpsilon float64 // seconds

	// OnAdvance, when set, is called once after the controller navigates
	// away (or surfaces the manual-advance notice).
	OnAdvance func(next mo.Option[string])

	mu           sync.Mutex
	phase        Phase
	duration     float64
	lastAccepted float64
	haveTime     bool
	introArmed   bool
	introDone    bool
	advanced     bool
	graceTimer   *time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// New builds a controller for a freshly attached surface using the
// configured skip policy.
func New(b bridge.Bridge, doc dom.Document, p *prefs.SeriesPreferences, next mo.Option[string]) *Controller {
	grace := time.Duration(viper.GetInt(key.SkipGraceDelayMS)) * time.Millisecond
	if grace <= 0 {
		grace = 1500 * time.Millisecond
	}
	epsilon := float64(viper.GetInt(key.SkipOutroEpsilonMS)) / 1000
	if epsilon <= 0 {
		epsilon = 0.5
	}

	return &Controller{
		Bridge:       b,
		Doc:          doc,
		Prefs:        p,
		Next:         next,
		SkipEnabled:  viper.GetBool(key.SkipEnabled),
		GraceDelay:   grace,
		OutroEpsilon: epsilon,
	}
}

// Run starts consuming surface events. It returns immediately; the policy
// runs until Close or until the bridge's event stream ends.
func (c *Controller) Run() {
	c.mu.Lock()
	if c.done == nil {
		c.done = make(chan struct{})
	}
	c.phase = PhaseArmed
	c.mu.Unlock()

	// The surface may already be mid-playback when we attach.
	c.Bridge.QueryDuration()
	c.Bridge.QueryPlayState()

	go c.loop()
}

// UpdatePrefs swaps the skip configuration mid-playback. A pending intro
// jump keeps its original target; position and outro checks use the new
// values from the next event on.
func (c *Controller) UpdatePrefs(p *prefs.SeriesPreferences) {
	c.mu.Lock()
	c.Prefs = p
	c.mu.Unlock()
}

// State returns the current playback snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Phase: c.phase, Position: c.lastAccepted, Duration: c.duration}
}

// Close stops the policy and cancels any pending skip. Idempotent.
// The phase becomes terminal immediately: an event already buffered on the
// bridge channel when Close runs may still reach handle, and it must be
// dropped rather than act for a torn-down surface.
func (c *Controller) Close() error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.phase = PhaseEnded
		if c.done != nil {
			close(c.done)
		} else {
			c.done = closedChan()
		}
		if c.graceTimer != nil {
			c.graceTimer.Stop()
		}
		c.mu.Unlock()
	})
	return nil
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (c *Controller) loop() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.Bridge.Events():
			if !ok {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev bridge.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseEnded {
		return
	}

	switch ev.Type {
	case bridge.EventStarted:
		c.phase = PhasePlaying
		c.armIntroSkip()
	case bridge.EventPaused:
		c.phase = PhasePaused
	case bridge.EventDurationKnown:
		if ev.Duration > 0 {
			c.duration = ev.Duration
		}
	case bridge.EventTimeUpdated:
		c.acceptTime(ev.Time)
	case bridge.EventEnded:
		log.Debugf("controller: %s ended at %.1fs", c.Prefs.SeriesID, c.lastAccepted)
		c.advanceLocked()
	}
}

// acceptTime applies the out-of-order filter, then the outro policy.
// Callers must hold c.mu.
func (c *Controller) acceptTime(t float64) {
	if c.haveTime && t < c.lastAccepted-dropMarginSec {
		log.Tracef("controller: dropped stale position %.1fs (last %.1fs)", t, c.lastAccepted)
		return
	}
	c.lastAccepted = t
	c.haveTime = true

	if c.phase == PhaseArmed || c.phase == PhaseIdle {
		// Positions are proof of playback even if the start event was lost.
		c.phase = PhasePlaying
		c.armIntroSkip()
	}

	if !c.SkipEnabled || c.advanced {
		return
	}
	outro := c.Prefs.OutroStart(c.duration)
	if outro > 0 && t >= outro-c.OutroEpsilon {
		log.Infof("controller: %s reached outro at %.1fs", c.Prefs.SeriesID, t)
		c.advanceLocked()
	}
}

// armIntroSkip schedules the one-shot intro jump after the grace delay.
// The delay lets the player settle; seeking immediately on start is lost by
// some embeds. Callers must hold c.mu.
func (c *Controller) armIntroSkip() {
	if c.introArmed || c.introDone || !c.SkipEnabled {
		return
	}
	start := c.Prefs.IntroSkipStartSec
	if start <= 0 {
		c.introDone = true
		return
	}

	c.introArmed = true
	c.graceTimer = time.AfterFunc(c.GraceDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.introDone || c.phase == PhaseEnded {
			return
		}
		c.introDone = true
		if c.haveTime && c.lastAccepted >= float64(start) {
			// Playback is already past the intro; never jump backwards.
			return
		}
		log.Infof("controller: %s skipping intro to %ds", c.Prefs.SeriesID, start)
		c.Bridge.Seek(float64(start))
	})
}

// advanceLocked navigates to the next episode, or surfaces the manual
// fallback when no target is known. One-shot. Callers must hold c.mu.
func (c *Controller) advanceLocked() {
	if c.advanced {
		return
	}
	c.advanced = true
	c.phase = PhaseEnded
	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}

	next, doc, onAdvance := c.Next, c.Doc, c.OnAdvance
	go func() {
		if target, ok := next.Get(); ok {
			if err := doc.Navigate(target); err != nil {
				log.Warnf("controller: navigation to %q failed: %v", target, err)
			}
		} else {
			if err := doc.ShowNotice("Episode finished. No next episode link on this page."); err != nil {
				log.Warnf("controller: manual-advance notice failed: %v", err)
			}
		}
		if onAdvance != nil {
			onAdvance(next)
		}
	}()
}
