package dom

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nodeHandle is implemented by every snapshot element so identity comparison
// can reach the underlying parse-tree node.
type nodeHandle interface {
	rawNode() *html.Node
}

// snapElement is the base Snapshot-backed element handle.
type snapElement struct {
	snap *Snapshot
	node *html.Node
}

func (e *snapElement) rawNode() *html.Node { return e.node }

func (e *snapElement) Tag() string {
	return strings.ToLower(e.node.Data)
}

func (e *snapElement) Attr(name string) (string, bool) {
	e.snap.mu.Lock()
	defer e.snap.mu.Unlock()

	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *snapElement) SetAttr(name, value string) error {
	e.snap.mu.Lock()
	defer e.snap.mu.Unlock()

	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = value
			return nil
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
	return nil
}

func (e *snapElement) Text() string {
	e.snap.mu.Lock()
	defer e.snap.mu.Unlock()
	return e.selection().Text()
}

func (e *snapElement) Is(selector string) bool {
	e.snap.mu.Lock()
	defer e.snap.mu.Unlock()
	return e.selection().Is(selector)
}

func (e *snapElement) Query(selector string) Element {
	e.snap.mu.Lock()
	defer e.snap.mu.Unlock()

	sel := e.selection().Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return e.snap.wrap(sel.Nodes[0])
}

func (e *snapElement) Same(other Element) bool {
	if other == nil {
		return false
	}
	h, ok := other.(nodeHandle)
	return ok && h.rawNode() == e.node
}

// selection builds a single-node goquery selection. Callers hold snap.mu.
func (e *snapElement) selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(e.node).Selection
}

// snapSelect adds selection-control behavior to a <select> node.
type snapSelect struct {
	snapElement
}

func (e *snapSelect) Options() []Option {
	e.snap.mu.Lock()
	defer e.snap.mu.Unlock()

	var out []Option
	e.selection().Find("option").Each(func(_ int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.Text())
		value := sel.AttrOr("value", label)
		out = append(out, Option{Label: label, Value: value})
	})
	return out
}

func (e *snapSelect) Value() string {
	v, _ := e.Attr("value")
	return v
}

func (e *snapSelect) SetValue(value string) error {
	if err := e.SetAttr("value", value); err != nil {
		return err
	}
	e.snap.emit(Mutation{Kind: MutationControlChanged, Target: e, Programmatic: true})
	return nil
}

// mediaState is the simulated playback state shared by every handle wrapping
// the same media node.
type mediaState struct {
	mu       sync.Mutex
	time     float64
	duration float64
	paused   bool
	subs     map[int]chan MediaEvent
	nextSub  int
}

func newMediaState(n *html.Node) *mediaState {
	return &mediaState{
		duration: parseDataDuration(n),
		paused:   true,
		subs:     make(map[int]chan MediaEvent),
	}
}

func (st *mediaState) broadcast(ev MediaEvent) {
	for _, ch := range st.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (st *mediaState) snapshotEvent(name string) MediaEvent {
	return MediaEvent{Name: name, Time: st.time, Duration: st.duration}
}

func (st *mediaState) setTime(t float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.time = t
	st.broadcast(st.snapshotEvent(MediaEventTimeUpdate))
}

func (st *mediaState) setDuration(d float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.duration = d
	st.broadcast(st.snapshotEvent(MediaEventDurationChange))
}

func (st *mediaState) end() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.paused = true
	st.broadcast(st.snapshotEvent(MediaEventEnded))
}

// snapMedia adds simulated playback behavior to a <video>/<audio> node.
type snapMedia struct {
	snapElement
	state *mediaState
}

func (e *snapMedia) CurrentTime() (float64, error) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.time, nil
}

func (e *snapMedia) Duration() (float64, error) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.duration, nil
}

func (e *snapMedia) Paused() (bool, error) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.paused, nil
}

func (e *snapMedia) SetCurrentTime(seconds float64) error {
	e.state.setTime(seconds)
	return nil
}

func (e *snapMedia) Play() error {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.paused = false
	e.state.broadcast(e.state.snapshotEvent(MediaEventPlay))
	return nil
}

func (e *snapMedia) Pause() error {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.paused = true
	e.state.broadcast(e.state.snapshotEvent(MediaEventPause))
	return nil
}

func (e *snapMedia) Subscribe() (<-chan MediaEvent, func()) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	id := e.state.nextSub
	e.state.nextSub++
	ch := make(chan MediaEvent, 32)
	e.state.subs[id] = ch

	cancel := func() {
		e.state.mu.Lock()
		defer e.state.mu.Unlock()
		if sub, ok := e.state.subs[id]; ok {
			delete(e.state.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
