package page

import (
	"testing"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

const watchPageMarkup = `<html><body>
	<div class="naveps">
		<a rel="next" href="/hunter-x-hunter-episode-13/">Next</a>
	</div>
	<select class="mirror" value="">
		<option value="">Select server</option>
		<option value="aWQ9MQ==">Hardsub Indonesia Dailymotion</option>
		<option value="aWQ9Mg==">Hardsub English Dailymotion</option>
		<option value="aWQ9Mw==">Hardsub English Ok.ru</option>
	</select>
	<div id="pembed"></div>
</body></html>`

var testPriorities = []string{
	"hardsub english dailymotion",
	"hardsub english ok.ru",
	"hardsub indonesia dailymotion",
}

func newWatchPage(t *testing.T) *dom.Snapshot {
	t.Helper()
	snap, err := dom.NewSnapshotFromString(watchPageMarkup, "https://animexin.dev/hunter-x-hunter-episode-12/")
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestNextEpisodeURL(t *testing.T) {
	Convey("NextEpisodeURL", t, func() {
		Convey("Should resolve a relative rel=next link against the page URL", func() {
			snap := newWatchPage(t)
			next := NextEpisodeURL(snap)
			So(next.IsPresent(), ShouldBeTrue)
			So(next.MustGet(), ShouldEqual, "https://animexin.dev/hunter-x-hunter-episode-13/")
		})

		Convey("Should report absence as a first-class outcome", func() {
			snap, err := dom.NewSnapshotFromString("<html><body><p>no nav</p></body></html>", "https://animexin.dev/x-episode-1/")
			So(err, ShouldBeNil)
			So(NextEpisodeURL(snap).IsAbsent(), ShouldBeTrue)
		})

		Convey("Should use the fallback selector when rel=next is missing", func() {
			snap, err := dom.NewSnapshotFromString(
				`<html><body><a class="next-episode" href="https://animexin.dev/x-episode-2/">next</a></body></html>`,
				"https://animexin.dev/x-episode-1/")
			So(err, ShouldBeNil)
			So(NextEpisodeURL(snap).MustGet(), ShouldEqual, "https://animexin.dev/x-episode-2/")
		})
	})
}

func TestPickPreferred(t *testing.T) {
	Convey("PickPreferred", t, func() {
		options := []dom.Option{
			{Label: "Select server", Value: ""},
			{Label: "Hardsub Indonesia Dailymotion", Value: "id-dm"},
			{Label: "Hardsub English Dailymotion", Value: "en-dm"},
			{Label: "Hardsub English Ok.ru", Value: "en-ok"},
		}

		Convey("Should pick the option matching the highest-priority pattern", func() {
			picked, ok := PickPreferred(options, testPriorities)
			So(ok, ShouldBeTrue)
			So(picked.Label, ShouldEqual, "Hardsub English Dailymotion")
		})

		Convey("Should fall through priorities in order", func() {
			picked, ok := PickPreferred(options[:2], testPriorities)
			So(ok, ShouldBeTrue)
			So(picked.Label, ShouldEqual, "Hardsub Indonesia Dailymotion")
		})

		Convey("Should match case-insensitively with collapsed whitespace", func() {
			picked, ok := PickPreferred([]dom.Option{
				{Label: "  HARDSUB   english   DAILYMOTION  ", Value: "x"},
			}, testPriorities)
			So(ok, ShouldBeTrue)
			So(picked.Value, ShouldEqual, "x")
		})

		Convey("Should report no pick when nothing matches", func() {
			_, ok := PickPreferred(options[:1], testPriorities)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestServerPreference(t *testing.T) {
	Convey("Given a watch page with a server dropdown", t, func() {
		snap := newWatchPage(t)
		pref := NewServerPreference(snap, testPriorities)

		readValue := func() string {
			el, err := snap.Query("select.mirror")
			So(err, ShouldBeNil)
			return el.(dom.SelectElement).Value()
		}

		Convey("Apply selects the preferred server", func() {
			pref.Apply()
			So(readValue(), ShouldEqual, "aWQ9Mg==")

			Convey("And a second Apply is a no-op", func() {
				So(snap.SimulateUserChange("select.mirror", "aWQ9Mw=="), ShouldBeNil)
				pref.Apply()
				So(readValue(), ShouldEqual, "aWQ9Mw==")
			})
		})

		Convey("Apply never runs after the user changed the control", func() {
			el, err := snap.Query("select.mirror")
			So(err, ShouldBeNil)
			pref.NoteUserChange(el)

			pref.Apply()
			So(readValue(), ShouldEqual, "")
		})

		Convey("NoteUserChange ignores unrelated controls", func() {
			So(snap.AppendHTML("body", `<select id="quality"><option value="720">720p</option></select>`), ShouldBeNil)
			other, err := snap.Query("select#quality")
			So(err, ShouldBeNil)
			pref.NoteUserChange(other)

			pref.Apply()
			So(readValue(), ShouldEqual, "aWQ9Mg==")
		})

		Convey("ServerChoices marks the preferred pick", func() {
			choices := ServerChoices(snap, testPriorities)
			So(len(choices), ShouldEqual, 4)
			So(choices[2].Label, ShouldEqual, "Hardsub English Dailymotion")
			So(choices[2].Preferred, ShouldBeTrue)
			So(choices[1].Preferred, ShouldBeFalse)
		})

		Convey("A page without the dropdown degrades to a no-op", func() {
			bare, err := dom.NewSnapshotFromString("<html><body></body></html>", "https://animexin.dev/x-episode-1/")
			So(err, ShouldBeNil)
			NewServerPreference(bare, testPriorities).Apply()
			So(ServerChoices(bare, testPriorities), ShouldBeNil)
		})
	})
}
