package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/filesystem"
	"github.com/Atik203/animexin-player-controller-extension/history"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/prefs"
	"github.com/Atik203/animexin-player-controller-extension/session"
)

func init() {
	filesystem.SetMemMapFs()
	viper.Set(key.LocatorMaxAttempts, 3)
	viper.Set(key.LocatorIntervalMS, 2)
	viper.Set(key.MonitorDebounceMS, 5)
}

const watchPage = `<html><body>
	<div class="naveps"><a rel="next" href="/hunter-x-hunter-episode-13/">Next</a></div>
	<div id="pembed"><video></video></div>
</body></html>`

func newTestServer(t *testing.T, markup string) (*Server, *dom.Snapshot, *history.Store) {
	t.Helper()

	snap, err := dom.NewSnapshotFromString(markup, "https://animexin.dev/hunter-x-hunter-episode-12/")
	if err != nil {
		t.Fatal(err)
	}

	sess := &session.Session{
		Doc:   snap,
		Store: prefs.NewStoreAt("/tmp/server-test-prefs.json"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := sess.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(cancel)

	hist, err := history.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { hist.Close() })

	return NewServer(sess, hist), snap, hist
}

func doJSON(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	Convey("Health endpoint", t, func() {
		srv, _, _ := newTestServer(t, watchPage)
		rec := doJSON(srv, http.MethodGet, "/api/health", "")
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Body.String(), ShouldContainSubstring, `"ok"`)
	})
}

func TestSettingsAPI(t *testing.T) {
	Convey("Settings API", t, func() {
		srv, _, _ := newTestServer(t, watchPage)

		Convey("GET returns the series' configuration", func() {
			rec := doJSON(srv, http.MethodGet, "/api/settings", "")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var got session.Settings
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.SeriesID, ShouldEqual, "hunter-x-hunter")
		})

		Convey("PUT validates and persists timecodes", func() {
			rec := doJSON(srv, http.MethodPut, "/api/settings",
				`{"intro_skip_start":"1:30","outro_start":"17:49"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)

			var got session.Settings
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.IntroSkipStart, ShouldEqual, "1:30")
			So(got.OutroStart, ShouldEqual, "17:49")
		})

		Convey("PUT rejects an invalid timecode", func() {
			rec := doJSON(srv, http.MethodPut, "/api/settings", `{"outro_start":"0:60"}`)
			So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(rec.Body.String(), ShouldContainSubstring, "outro start")
		})

		Convey("PUT rejects a malformed body", func() {
			rec := doJSON(srv, http.MethodPut, "/api/settings", `{"intro_skip_start":`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestNavigateAPI(t *testing.T) {
	Convey("Navigate API", t, func() {
		Convey("Follows the page's next link", func() {
			srv, snap, _ := newTestServer(t, watchPage)
			rec := doJSON(srv, http.MethodPost, "/api/navigate", "")
			So(rec.Code, ShouldEqual, http.StatusNoContent)
			So(snap.Navigated(), ShouldResemble, []string{"https://animexin.dev/hunter-x-hunter-episode-13/"})
		})

		Convey("Reports 404 without a next link", func() {
			srv, _, _ := newTestServer(t, `<html><body><div id="pembed"><video></video></div></body></html>`)
			rec := doJSON(srv, http.MethodPost, "/api/navigate", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStateAndPanelAPI(t *testing.T) {
	Convey("State and panel", t, func() {
		srv, snap, _ := newTestServer(t, watchPage)

		Convey("State reports the resolved series", func() {
			rec := doJSON(srv, http.MethodGet, "/api/state", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"hunter-x-hunter"`)
		})

		Convey("Panel surfaces the settings banner", func() {
			rec := doJSON(srv, http.MethodPost, "/api/panel", "")
			So(rec.Code, ShouldEqual, http.StatusNoContent)
			So(snap.Notices(), ShouldHaveLength, 1)
		})
	})
}

func TestHistoryAPI(t *testing.T) {
	Convey("History API", t, func() {
		srv, _, hist := newTestServer(t, watchPage)

		So(hist.Record(&history.Entry{SeriesID: "hunter-x-hunter", FromURL: "ep12", ToURL: "ep13"}), ShouldBeNil)
		So(hist.Record(&history.Entry{SeriesID: "one-piece", FromURL: "ep100", ToURL: "ep101"}), ShouldBeNil)

		Convey("Lists recent advances", func() {
			rec := doJSON(srv, http.MethodGet, "/api/history", "")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var entries []history.Entry
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
		})

		Convey("Filters by series", func() {
			rec := doJSON(srv, http.MethodGet, "/api/history?series=one-piece", "")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var entries []history.Entry
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].SeriesID, ShouldEqual, "one-piece")
		})

		Convey("Returns an empty array, not null", func() {
			rec := doJSON(srv, http.MethodGet, "/api/history?series=unknown", "")
			So(strings.TrimSpace(rec.Body.String()), ShouldEqual, "[]")
		})
	})
}

func TestAgentWebsocket(t *testing.T) {
	Convey("Agent websocket", t, func() {
		srv, _, _ := newTestServer(t, watchPage)

		ports := make(chan dom.MessagePort, 1)
		srv.OnAgentPort = func(p dom.MessagePort) { ports <- p }

		ts := httptest.NewServer(srv)
		defer ts.Close()

		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		var port dom.MessagePort
		select {
		case port = <-ports:
		case <-time.After(time.Second):
			t.Fatal("agent port never arrived")
		}
		defer port.Close()

		Convey("Relays page messages inbound with their origin", func() {
			err := conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"origin":"https://www.dailymotion.com","data":{"event":"timeupdate","time":42.5}}`))
			So(err, ShouldBeNil)

			select {
			case msg := <-port.Messages():
				So(msg.Origin, ShouldEqual, "https://www.dailymotion.com")
				So(string(msg.Data), ShouldContainSubstring, `"timeupdate"`)
			case <-time.After(time.Second):
				t.Fatal("message never arrived")
			}
		})

		Convey("Posts payloads outbound wrapped in an agent frame", func() {
			So(port.Post([]byte(`{"command":"play"}`)), ShouldBeNil)

			conn.SetReadDeadline(time.Now().Add(time.Second))
			_, raw, err := conn.ReadMessage()
			So(err, ShouldBeNil)

			var frame struct {
				Data json.RawMessage `json:"data"`
			}
			So(json.Unmarshal(raw, &frame), ShouldBeNil)
			So(string(frame.Data), ShouldEqual, `{"command":"play"}`)
		})

		Convey("Closing the agent connection ends the message stream", func() {
			So(conn.Close(), ShouldBeNil)
			select {
			case _, open := <-port.Messages():
				So(open, ShouldBeFalse)
			case <-time.After(time.Second):
				t.Fatal("stream never closed")
			}
		})
	})
}
