package session

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/filesystem"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/prefs"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
	viper.Set(key.LocatorMaxAttempts, 3)
	viper.Set(key.LocatorIntervalMS, 2)
	viper.Set(key.MonitorDebounceMS, 5)
	viper.Set(key.SkipEnabled, true)
	viper.Set(key.ServerPriorities, []string{"hardsub english dailymotion"})
}

const watchPage = `<html><body>
	<div class="naveps"><a rel="next" href="/hunter-x-hunter-episode-13/">Next</a></div>
	<div id="pembed">
		<iframe src="https://www.dailymotion.com/embed/video/x8abcd"></iframe>
	</div>
</body></html>`

type fakePort struct {
	mu        sync.Mutex
	closed    bool
	inbound   chan dom.Message
	closeOnce sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{inbound: make(chan dom.Message, 16)}
}

func (p *fakePort) Post(data []byte) error       { return nil }
func (p *fakePort) Messages() <-chan dom.Message { return p.inbound }
func (p *fakePort) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.inbound)
	})
	return nil
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// portTracker hands out one fake port per opened frame.
type portTracker struct {
	mu    sync.Mutex
	ports []*fakePort
}

func (t *portTracker) open(dom.Element) (dom.MessagePort, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := newFakePort()
	t.ports = append(t.ports, p)
	return p, nil
}

func (t *portTracker) opened() []*fakePort {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*fakePort, len(t.ports))
	copy(out, t.ports)
	return out
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

func startSession(t *testing.T, markup string) (*Session, *dom.Snapshot, *portTracker, func()) {
	t.Helper()
	snap, err := dom.NewSnapshotFromString(markup, "https://animexin.dev/hunter-x-hunter-episode-12/")
	if err != nil {
		t.Fatal(err)
	}

	tracker := &portTracker{}
	s := &Session{
		Doc:      snap,
		Store:    prefs.NewStoreAt("/tmp/session-test-prefs.json"),
		OpenPort: tracker.open,
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return s, snap, tracker, func() {
		cancel()
		s.Stop()
	}
}

func TestSessionAttach(t *testing.T) {
	Convey("Session attach", t, func() {
		s, snap, tracker, stop := startSession(t, watchPage)
		defer stop()

		Convey("Should resolve the series and attach the embed frame", func() {
			So(s.SeriesID(), ShouldEqual, "hunter-x-hunter")
			So(waitFor(s.Attached), ShouldBeTrue)
			So(tracker.opened(), ShouldHaveLength, 1)

			frame, err := snap.Query("iframe")
			So(err, ShouldBeNil)
			src, _ := frame.Attr("src")
			u, err := url.Parse(src)
			So(err, ShouldBeNil)
			So(u.Query().Get("api"), ShouldEqual, "postMessage")
			So(u.Query().Get("origin"), ShouldEqual, "https://animexin.dev")
		})

		Convey("Should reattach when the page swaps the player", func() {
			So(waitFor(s.Attached), ShouldBeTrue)

			So(snap.Remove("iframe"), ShouldBeNil)
			So(snap.AppendHTML("#pembed", `<iframe src="https://www.dailymotion.com/embed/video/x9other"></iframe>`), ShouldBeNil)

			So(waitFor(func() bool { return len(tracker.opened()) == 2 }), ShouldBeTrue)
			So(waitFor(func() bool { return tracker.opened()[0].isClosed() }), ShouldBeTrue)
			So(tracker.opened()[1].isClosed(), ShouldBeFalse)
		})

		Convey("Should keep the attachment when the surface survives the burst", func() {
			So(waitFor(s.Attached), ShouldBeTrue)

			So(snap.AppendHTML("#pembed", `<video class="preview"></video>`), ShouldBeNil)
			time.Sleep(50 * time.Millisecond)
			So(tracker.opened(), ShouldHaveLength, 1)
			So(tracker.opened()[0].isClosed(), ShouldBeFalse)
		})

		Convey("Stop detaches and closes the port", func() {
			So(waitFor(s.Attached), ShouldBeTrue)
			stop()
			So(waitFor(func() bool { return tracker.opened()[0].isClosed() }), ShouldBeTrue)
			So(waitFor(func() bool { return !s.Attached() }), ShouldBeTrue)
		})
	})
}

func TestSessionSettings(t *testing.T) {
	Convey("Session settings", t, func() {
		s, _, _, stop := startSession(t, watchPage)
		defer stop()

		Convey("Round-trips through the store in display format", func() {
			err := s.UpdateSettings(Settings{
				IntroSkipStart:        "1:30",
				OutroStart:            "17:49",
				OutroFallbackDuration: "",
			})
			So(err, ShouldBeNil)

			got, err := s.CurrentSettings()
			So(err, ShouldBeNil)
			So(got.SeriesID, ShouldEqual, "hunter-x-hunter")
			So(got.IntroSkipStart, ShouldEqual, "1:30")
			So(got.OutroStart, ShouldEqual, "17:49")
			So(got.OutroFallbackDuration, ShouldEqual, "")

			reloaded := s.Store.Load("hunter-x-hunter")
			So(reloaded.IntroSkipStartSec, ShouldEqual, 90)
			So(reloaded.OutroStartSec, ShouldEqual, 1069)
		})

		Convey("One invalid timecode rejects the whole update", func() {
			So(s.UpdateSettings(Settings{IntroSkipStart: "1:30"}), ShouldBeNil)

			err := s.UpdateSettings(Settings{IntroSkipStart: "2:00", OutroStart: "0:60"})
			So(err, ShouldNotBeNil)

			reloaded := s.Store.Load("hunter-x-hunter")
			So(reloaded.IntroSkipStartSec, ShouldEqual, 90)
		})
	})
}

func TestSessionNavigation(t *testing.T) {
	Convey("Session navigation", t, func() {
		Convey("NavigateNext follows the page's next link", func() {
			s, snap, _, stop := startSession(t, watchPage)
			defer stop()

			var mu sync.Mutex
			var advances []mo.Option[string]
			s.OnAdvance = func(_ string, next mo.Option[string]) {
				mu.Lock()
				advances = append(advances, next)
				mu.Unlock()
			}

			So(s.NavigateNext(), ShouldBeNil)
			So(snap.Navigated(), ShouldResemble, []string{"https://animexin.dev/hunter-x-hunter-episode-13/"})

			mu.Lock()
			defer mu.Unlock()
			So(advances, ShouldHaveLength, 1)
		})

		Convey("NavigateNext without a link reports ErrNoNextTarget", func() {
			s, snap, _, stop := startSession(t, `<html><body><div id="pembed"><video></video></div></body></html>`)
			defer stop()

			So(errors.Is(s.NavigateNext(), ErrNoNextTarget), ShouldBeTrue)
			So(snap.Navigated(), ShouldBeEmpty)
		})

		Convey("ShowPanel surfaces the settings banner", func() {
			s, snap, _, stop := startSession(t, watchPage)
			defer stop()

			So(s.UpdateSettings(Settings{IntroSkipStart: "1:30"}), ShouldBeNil)
			So(s.ShowPanel(), ShouldBeNil)
			So(waitFor(func() bool { return len(snap.Notices()) == 1 }), ShouldBeTrue)
			So(snap.Notices()[0], ShouldContainSubstring, "intro 1:30")
		})
	})
}
