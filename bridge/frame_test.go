package bridge

import (
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

const pageOrigin = "https://animexin.dev"

// fakePort is a scriptable message channel standing in for the frame's
// content window.
type fakePort struct {
	mu        sync.Mutex
	posted    [][]byte
	failNext  int
	inbound   chan dom.Message
	closeOnce sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{inbound: make(chan dom.Message, 16)}
}

func (p *fakePort) Post(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext > 0 {
		p.failNext--
		return errors.New("content window unavailable")
	}
	p.posted = append(p.posted, append([]byte(nil), data...))
	return nil
}

func (p *fakePort) Messages() <-chan dom.Message { return p.inbound }

func (p *fakePort) Close() error {
	p.closeOnce.Do(func() { close(p.inbound) })
	return nil
}

func (p *fakePort) deliver(origin, payload string) {
	p.inbound <- dom.Message{Origin: origin, Data: []byte(payload)}
}

func (p *fakePort) sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.posted))
	copy(out, p.posted)
	return out
}

func frameElement(t *testing.T, src string) dom.Element {
	t.Helper()
	snap, err := dom.NewSnapshotFromString(
		`<html><body><div id="pembed"><iframe src="`+src+`"></iframe></div></body></html>`,
		pageOrigin+"/hunter-x-hunter-episode-12/")
	if err != nil {
		t.Fatal(err)
	}
	el, err := snap.Query("iframe")
	if err != nil {
		t.Fatal(err)
	}
	return el
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

func recvEvent(ch <-chan Event) (Event, bool) {
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(time.Second):
		return Event{}, false
	}
}

func newTestBridge(frame dom.Element, port *fakePort) *FrameBridge {
	b := NewFrameBridge(frame, port, pageOrigin)
	b.RetryAttempts = 3
	b.RetryBase = time.Millisecond
	return b
}

func TestFrameBridgeAPIOptIn(t *testing.T) {
	Convey("Programmatic API opt-in", t, func() {
		Convey("Should rewrite the frame address to request the API", func() {
			frame := frameElement(t, "https://www.dailymotion.com/embed/video/x8abcd?autoplay=1")
			port := newFakePort()
			b := newTestBridge(frame, port)
			defer b.Close()

			src, ok := frame.Attr("src")
			So(ok, ShouldBeTrue)
			u, err := url.Parse(src)
			So(err, ShouldBeNil)
			So(u.Query().Get("api"), ShouldEqual, "postMessage")
			So(u.Query().Get("origin"), ShouldEqual, pageOrigin)
			So(u.Query().Get("autoplay"), ShouldEqual, "1")
		})

		Convey("Should leave an already opted-in address untouched", func() {
			src := "https://www.dailymotion.com/embed/video/x8abcd?api=1"
			frame := frameElement(t, src)
			port := newFakePort()
			b := newTestBridge(frame, port)
			defer b.Close()

			got, _ := frame.Attr("src")
			So(got, ShouldEqual, src)
		})
	})
}

func TestFrameBridgeCommands(t *testing.T) {
	Convey("Outbound commands", t, func() {
		frame := frameElement(t, "https://www.dailymotion.com/embed/video/x8abcd")
		port := newFakePort()
		b := newTestBridge(frame, port)
		defer b.Close()

		Convey("Should send both envelope shapes per command", func() {
			b.Seek(90)
			So(waitFor(func() bool { return len(port.sent()) == 2 }), ShouldBeTrue)

			sent := port.sent()
			var first commandEnvelope
			So(json.Unmarshal(sent[0], &first), ShouldBeNil)
			So(first.Command, ShouldEqual, "seek")
			So(*first.Value, ShouldEqual, 90)

			var second methodEnvelope
			So(json.Unmarshal(sent[1], &second), ShouldBeNil)
			So(second.Method, ShouldEqual, "seek")
			So(second.Params, ShouldResemble, []float64{90})
		})

		Convey("Should retry a failed send with backoff", func() {
			port.failNext = 1
			b.Play()
			So(waitFor(func() bool { return len(port.sent()) >= 2 }), ShouldBeTrue)
		})

		Convey("Should drop the command once the retry budget is spent", func() {
			port.failNext = 10
			b.Pause()
			time.Sleep(20 * time.Millisecond)
			So(port.sent(), ShouldBeEmpty)
		})
	})
}

func TestFrameBridgeEvents(t *testing.T) {
	Convey("Inbound events", t, func() {
		frame := frameElement(t, "https://www.dailymotion.com/embed/video/x8abcd")
		port := newFakePort()
		b := newTestBridge(frame, port)
		defer b.Close()

		Convey("Should normalize provider events onto the stream", func() {
			port.deliver("https://www.dailymotion.com", `{"event":"timeupdate","time":42.5}`)
			ev, ok := recvEvent(b.Events())
			So(ok, ShouldBeTrue)
			So(ev.Type, ShouldEqual, EventTimeUpdated)
			So(ev.Time, ShouldEqual, 42.5)
		})

		Convey("Should accept subdomains of the provider", func() {
			port.deliver("https://geo.dailymotion.com", `{"event":"video_end"}`)
			ev, ok := recvEvent(b.Events())
			So(ok, ShouldBeTrue)
			So(ev.Type, ShouldEqual, EventEnded)
		})

		Convey("Should drop messages from foreign origins", func() {
			port.deliver("https://evil.example", `{"event":"timeupdate","time":1}`)
			port.deliver("https://notdailymotion.com", `{"event":"timeupdate","time":2}`)
			port.deliver("https://www.dailymotion.com", `{"event":"pause","time":3}`)

			ev, ok := recvEvent(b.Events())
			So(ok, ShouldBeTrue)
			So(ev.Type, ShouldEqual, EventPaused)
			So(ev.Time, ShouldEqual, 3)
		})

		Convey("Should ignore unrelated window traffic", func() {
			port.deliver("https://www.dailymotion.com", `"just a string"`)
			port.deliver("https://www.dailymotion.com", `{"analytics":"beacon"}`)
			port.deliver("https://www.dailymotion.com", `{"event":"playing"}`)

			ev, ok := recvEvent(b.Events())
			So(ok, ShouldBeTrue)
			So(ev.Type, ShouldEqual, EventStarted)
		})
	})
}

func TestFrameBridgeClose(t *testing.T) {
	Convey("Close", t, func() {
		frame := frameElement(t, "https://www.dailymotion.com/embed/video/x8abcd")
		port := newFakePort()
		b := newTestBridge(frame, port)

		So(b.Close(), ShouldBeNil)
		So(b.Close(), ShouldBeNil)

		Convey("Should end the event stream", func() {
			_, open := <-b.Events()
			So(open, ShouldBeFalse)
		})

		Convey("Should swallow commands issued after close", func() {
			b.Play()
			time.Sleep(10 * time.Millisecond)
			So(port.sent(), ShouldBeEmpty)
		})
	})
}
