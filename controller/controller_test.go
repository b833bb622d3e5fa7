package controller

import (
	"sync"
	"testing"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/bridge"
	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/filesystem"
	"github.com/Atik203/animexin-player-controller-extension/prefs"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

const nextEpisode = "https://animexin.dev/hunter-x-hunter-episode-13/"

// fakeBridge records commands and lets tests script the event stream.
type fakeBridge struct {
	mu       sync.Mutex
	commands []bridge.Action
	seeks    []float64
	events   chan bridge.Event
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{events: make(chan bridge.Event, 16)}
}

func (f *fakeBridge) Command(action bridge.Action, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, action)
	if action == bridge.ActionSeek {
		f.seeks = append(f.seeks, value)
	}
}

func (f *fakeBridge) Play()                       { f.Command(bridge.ActionPlay, 0) }
func (f *fakeBridge) Pause()                      { f.Command(bridge.ActionPause, 0) }
func (f *fakeBridge) Seek(seconds float64)        { f.Command(bridge.ActionSeek, seconds) }
func (f *fakeBridge) QueryCurrentTime()           { f.Command(bridge.ActionQueryCurrentTime, 0) }
func (f *fakeBridge) QueryDuration()              { f.Command(bridge.ActionQueryDuration, 0) }
func (f *fakeBridge) QueryPlayState()             { f.Command(bridge.ActionQueryPlayState, 0) }
func (f *fakeBridge) Events() <-chan bridge.Event { return f.events }
func (f *fakeBridge) Close() error                { return nil }

func (f *fakeBridge) push(ev bridge.Event) { f.events <- ev }

func (f *fakeBridge) seekTargets() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.seeks))
	copy(out, f.seeks)
	return out
}

func testDoc(t *testing.T) *dom.Snapshot {
	t.Helper()
	snap, err := dom.NewSnapshotFromString(
		`<html><body><div id="pembed"><video></video></div></body></html>`,
		"https://animexin.dev/hunter-x-hunter-episode-12/")
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

func newTestController(fb *fakeBridge, doc *dom.Snapshot, p *prefs.SeriesPreferences, next mo.Option[string]) *Controller {
	c := &Controller{
		Bridge:       fb,
		Doc:          doc,
		Prefs:        p,
		Next:         next,
		SkipEnabled:  true,
		GraceDelay:   5 * time.Millisecond,
		OutroEpsilon: 0.5,
	}
	c.Run()
	return c
}

func TestIntroSkip(t *testing.T) {
	Convey("Intro skip", t, func() {
		doc := testDoc(t)

		Convey("Should jump once after the grace delay", func() {
			fb := newFakeBridge()
			c := newTestController(fb, doc, &prefs.SeriesPreferences{SeriesID: "hxh", IntroSkipStartSec: 90}, mo.Some(nextEpisode))
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventStarted})
			So(waitFor(func() bool { return len(fb.seekTargets()) == 1 }), ShouldBeTrue)
			So(fb.seekTargets()[0], ShouldEqual, 90)

			// Restarting playback must not re-arm the jump.
			fb.push(bridge.Event{Type: bridge.EventPaused})
			fb.push(bridge.Event{Type: bridge.EventStarted})
			time.Sleep(20 * time.Millisecond)
			So(fb.seekTargets(), ShouldHaveLength, 1)
		})

		Convey("Should not jump when playback is already past the intro", func() {
			fb := newFakeBridge()
			c := newTestController(fb, doc, &prefs.SeriesPreferences{SeriesID: "hxh", IntroSkipStartSec: 90}, mo.Some(nextEpisode))
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventStarted})
			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 120})
			time.Sleep(20 * time.Millisecond)
			So(fb.seekTargets(), ShouldBeEmpty)
		})

		Convey("Should do nothing without a configured intro point", func() {
			fb := newFakeBridge()
			c := newTestController(fb, doc, prefs.Defaults("hxh"), mo.Some(nextEpisode))
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventStarted})
			time.Sleep(20 * time.Millisecond)
			So(fb.seekTargets(), ShouldBeEmpty)
		})

		Convey("Should do nothing when skipping is disabled", func() {
			fb := newFakeBridge()
			c := &Controller{
				Bridge:       fb,
				Doc:          doc,
				Prefs:        &prefs.SeriesPreferences{SeriesID: "hxh", IntroSkipStartSec: 90},
				Next:         mo.Some(nextEpisode),
				GraceDelay:   5 * time.Millisecond,
				OutroEpsilon: 0.5,
			}
			c.Run()
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventStarted})
			time.Sleep(20 * time.Millisecond)
			So(fb.seekTargets(), ShouldBeEmpty)
		})
	})
}

func TestOutroAdvance(t *testing.T) {
	Convey("Outro advance", t, func() {
		p := &prefs.SeriesPreferences{SeriesID: "hxh", OutroFallbackDurationSec: 90}

		Convey("Should navigate once the outro window opens", func() {
			doc := testDoc(t)
			fb := newFakeBridge()
			c := newTestController(fb, doc, p, mo.Some(nextEpisode))
			defer c.Close()

			// Duration 1440 with a 90s fallback puts the outro at 1350;
			// with epsilon 0.5 the trigger boundary is exactly 1349.5.
			fb.push(bridge.Event{Type: bridge.EventDurationKnown, Duration: 1440})
			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 1349.0})
			time.Sleep(10 * time.Millisecond)
			So(doc.Navigated(), ShouldBeEmpty)

			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 1349.5})
			So(waitFor(func() bool { return len(doc.Navigated()) == 1 }), ShouldBeTrue)
			So(doc.Navigated()[0], ShouldEqual, nextEpisode)
			So(c.State().Phase, ShouldEqual, PhaseEnded)
		})

		Convey("An explicit outro start beats the duration fallback", func() {
			doc := testDoc(t)
			fb := newFakeBridge()
			explicit := &prefs.SeriesPreferences{SeriesID: "hxh", OutroStartSec: 1069, OutroFallbackDurationSec: 90}
			c := newTestController(fb, doc, explicit, mo.Some(nextEpisode))
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventDurationKnown, Duration: 1440})
			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 1069.0})
			So(waitFor(func() bool { return len(doc.Navigated()) == 1 }), ShouldBeTrue)
		})

		Convey("Should stay put while the duration is unknown", func() {
			doc := testDoc(t)
			fb := newFakeBridge()
			c := newTestController(fb, doc, p, mo.Some(nextEpisode))
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 9000})
			time.Sleep(10 * time.Millisecond)
			So(doc.Navigated(), ShouldBeEmpty)
		})

		Convey("Should navigate at most once", func() {
			doc := testDoc(t)
			fb := newFakeBridge()
			c := newTestController(fb, doc, p, mo.Some(nextEpisode))
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventDurationKnown, Duration: 1440})
			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 1350})
			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 1351})
			fb.push(bridge.Event{Type: bridge.EventEnded})
			So(waitFor(func() bool { return len(doc.Navigated()) >= 1 }), ShouldBeTrue)
			time.Sleep(10 * time.Millisecond)
			So(doc.Navigated(), ShouldHaveLength, 1)
		})
	})
}

func TestEndedAdvance(t *testing.T) {
	Convey("Advance on ended", t, func() {
		Convey("Should navigate even when skipping is disabled", func() {
			doc := testDoc(t)
			fb := newFakeBridge()
			c := &Controller{
				Bridge:       fb,
				Doc:          doc,
				Prefs:        prefs.Defaults("hxh"),
				Next:         mo.Some(nextEpisode),
				GraceDelay:   5 * time.Millisecond,
				OutroEpsilon: 0.5,
			}
			c.Run()
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventEnded})
			So(waitFor(func() bool { return len(doc.Navigated()) == 1 }), ShouldBeTrue)
		})

		Convey("Should fall back to a notice without a next target", func() {
			doc := testDoc(t)
			fb := newFakeBridge()
			c := newTestController(fb, doc, prefs.Defaults("hxh"), mo.None[string]())
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventEnded})
			So(waitFor(func() bool { return len(doc.Notices()) == 1 }), ShouldBeTrue)
			So(doc.Navigated(), ShouldBeEmpty)
		})

		Convey("Should report the advance to the observer", func() {
			doc := testDoc(t)
			fb := newFakeBridge()
			c := newTestController(fb, doc, prefs.Defaults("hxh"), mo.Some(nextEpisode))

			var mu sync.Mutex
			var got []mo.Option[string]
			c.OnAdvance = func(next mo.Option[string]) {
				mu.Lock()
				got = append(got, next)
				mu.Unlock()
			}
			defer c.Close()

			fb.push(bridge.Event{Type: bridge.EventEnded})
			So(waitFor(func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(got) == 1
			}), ShouldBeTrue)
			So(got[0].MustGet(), ShouldEqual, nextEpisode)
		})
	})
}

func TestOutOfOrderPositions(t *testing.T) {
	Convey("Out-of-order position filter", t, func() {
		doc := testDoc(t)
		fb := newFakeBridge()
		c := newTestController(fb, doc, prefs.Defaults("hxh"), mo.Some(nextEpisode))
		defer c.Close()

		fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 100})
		So(waitFor(func() bool { return c.State().Position == 100 }), ShouldBeTrue)

		Convey("Positions far behind the high-water mark are dropped", func() {
			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 97})
			time.Sleep(10 * time.Millisecond)
			So(c.State().Position, ShouldEqual, 100)
		})

		Convey("Small backward jitter is accepted", func() {
			fb.push(bridge.Event{Type: bridge.EventTimeUpdated, Time: 99})
			So(waitFor(func() bool { return c.State().Position == 99 }), ShouldBeTrue)
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Close", t, func() {
		doc := testDoc(t)
		fb := newFakeBridge()
		c := newTestController(fb, doc, prefs.Defaults("hxh"), mo.Some(nextEpisode))

		So(c.Close(), ShouldBeNil)
		So(c.Close(), ShouldBeNil)

		Convey("Events after close never act", func() {
			fb.push(bridge.Event{Type: bridge.EventEnded})
			time.Sleep(10 * time.Millisecond)
			So(doc.Navigated(), ShouldBeEmpty)
		})

		Convey("A straggler event racing the shutdown never acts", func() {
			// The loop's select can pick a ready event over the closed done
			// channel, so the terminal phase is what must hold the line.
			for i := 0; i < 50; i++ {
				d := testDoc(t)
				b := newFakeBridge()
				ctrl := newTestController(b, d, prefs.Defaults("hxh"), mo.Some(nextEpisode))

				So(ctrl.Close(), ShouldBeNil)
				b.push(bridge.Event{Type: bridge.EventEnded})
				time.Sleep(2 * time.Millisecond)
				So(d.Navigated(), ShouldBeEmpty)
			}
		})
	})
}
