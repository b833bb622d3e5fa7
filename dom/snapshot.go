package dom

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Snapshot is an in-memory Document backed by parsed HTML markup.
//
// It powers the `inspect` CLI command and the test suites: queries run over
// a real node tree with full CSS selector support, and mutations, control
// changes and media playback can be simulated programmatically.
type Snapshot struct {
	mu        sync.Mutex
	doc       *goquery.Document
	url       string
	mutations chan Mutation
	media     map[*html.Node]*mediaState

	navigated []string
	notices   []string
}

// NewSnapshot parses markup into a Snapshot bound to the given page URL.
func NewSnapshot(r io.Reader, pageURL string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot markup: %w", err)
	}

	return &Snapshot{
		doc:       doc,
		url:       pageURL,
		mutations: make(chan Mutation, 64),
		media:     make(map[*html.Node]*mediaState),
	}, nil
}

// NewSnapshotFromString parses a markup string into a Snapshot.
func NewSnapshotFromString(markup, pageURL string) (*Snapshot, error) {
	return NewSnapshot(strings.NewReader(markup), pageURL)
}

// URL returns the page address the snapshot was captured from.
func (s *Snapshot) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Query returns the first element matching the selector, or nil.
func (s *Snapshot) Query(selector string) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, nil
	}
	return s.wrap(sel.Nodes[0]), nil
}

// QueryAll returns every element matching the selector.
func (s *Snapshot) QueryAll(selector string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Element
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, s.wrap(sel.Nodes[0]))
	})
	return out, nil
}

// Mutations returns the simulated mutation stream.
func (s *Snapshot) Mutations() <-chan Mutation {
	return s.mutations
}

// Navigate records a full page navigation and updates the snapshot URL.
func (s *Snapshot) Navigate(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	s.url = url
	return nil
}

// ShowNotice records a user-facing banner message.
func (s *Snapshot) ShowNotice(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, message)
	return nil
}

// Navigated returns every navigation performed on the snapshot, oldest first.
func (s *Snapshot) Navigated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigated...)
}

// Notices returns every banner message shown on the snapshot, oldest first.
func (s *Snapshot) Notices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}

// AppendHTML parses a markup fragment, appends its nodes under the first
// element matching parentSelector, and emits a nodes-added mutation. This is
// the snapshot analogue of the host page re-mounting its player.
func (s *Snapshot) AppendHTML(parentSelector, fragment string) error {
	s.mu.Lock()

	parentSel := s.doc.Find(parentSelector).First()
	if parentSel.Length() == 0 {
		s.mu.Unlock()
		return fmt.Errorf("append: no element matches %q", parentSelector)
	}
	parent := parentSel.Nodes[0]

	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("append: parse fragment: %w", err)
	}

	var added []Element
	for _, n := range nodes {
		parent.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, s.wrap(n))
		}
	}
	target := s.wrap(parent)
	s.mu.Unlock()

	s.emit(Mutation{Kind: MutationNodesAdded, Target: target, Added: added})
	return nil
}

// Remove detaches the first element matching the selector from the tree.
func (s *Snapshot) Remove(selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.doc.Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("remove: no element matches %q", selector)
	}
	n := sel.Nodes[0]
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return nil
}

// SimulateUserChange applies a value to a selection control as if the user
// had changed it, emitting a non-programmatic control-changed mutation.
func (s *Snapshot) SimulateUserChange(selector, value string) error {
	el, err := s.Query(selector)
	if err != nil || el == nil {
		return fmt.Errorf("simulate change: no element matches %q", selector)
	}
	if err := el.SetAttr("value", value); err != nil {
		return err
	}
	s.emit(Mutation{Kind: MutationControlChanged, Target: el, Programmatic: false})
	return nil
}

// AdvanceMedia pushes the playback position of a media element and emits a
// timeupdate event to its subscribers.
func (s *Snapshot) AdvanceMedia(selector string, seconds float64) error {
	st, err := s.mediaState(selector)
	if err != nil {
		return err
	}
	st.setTime(seconds)
	return nil
}

// SetMediaDuration sets a media element's duration and emits durationchange.
func (s *Snapshot) SetMediaDuration(selector string, seconds float64) error {
	st, err := s.mediaState(selector)
	if err != nil {
		return err
	}
	st.setDuration(seconds)
	return nil
}

// EndMedia emits an ended event on a media element.
func (s *Snapshot) EndMedia(selector string) error {
	st, err := s.mediaState(selector)
	if err != nil {
		return err
	}
	st.end()
	return nil
}

// emit delivers a mutation without ever blocking the mutating caller.
func (s *Snapshot) emit(m Mutation) {
	select {
	case s.mutations <- m:
	default:
	}
}

func (s *Snapshot) mediaState(selector string) (*mediaState, error) {
	el, err := s.Query(selector)
	if err != nil {
		return nil, err
	}
	media, ok := el.(*snapMedia)
	if !ok {
		return nil, fmt.Errorf("no media element matches %q", selector)
	}
	return media.state, nil
}

// wrap builds the richest element handle the node supports.
// Callers must hold s.mu.
func (s *Snapshot) wrap(n *html.Node) Element {
	base := snapElement{snap: s, node: n}

	switch strings.ToLower(n.Data) {
	case "video", "audio":
		st, ok := s.media[n]
		if !ok {
			st = newMediaState(n)
			s.media[n] = st
		}
		return &snapMedia{snapElement: base, state: st}
	case "select":
		return &snapSelect{snapElement: base}
	}

	return &base
}

// parseDataDuration reads a fixture duration from a data-duration attribute.
func parseDataDuration(n *html.Node) float64 {
	for _, a := range n.Attr {
		if a.Key == "data-duration" {
			if d, err := strconv.ParseFloat(a.Val, 64); err == nil {
				return d
			}
		}
	}
	return 0
}
