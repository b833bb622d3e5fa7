// Package page encapsulates the host-page contract: the selectors the core
// reads, next-episode link discovery and the server dropdown side effect.
//
// Host-page markup is an unstable external API. Every lookup here degrades
// to an empty result instead of failing.
package page

import (
	"net/url"
	"strings"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/samber/mo"
)

// Host-page coupling points. These selectors are the only knowledge the core
// has of the page's DOM shape.
const (
	// FrameSelector matches the cross-origin embed frame of the player.
	FrameSelector = `iframe[src*="dailymotion.com"]`

	// MediaSelector matches a native media element inside the known player containers.
	MediaSelector = `#pembed video, .player-embed video, .video-content video, video`

	// ServerSelectSelector matches the server/source dropdown.
	ServerSelectSelector = `select.mirror, select#server-select`

	// nextLinkSelectors are tried in order when resolving the next episode.
	nextLinkRel      = `a[rel="next"]`
	nextLinkFallback = `.naveps a.next, a.next-episode`
)

// EmbedHostSuffix is the domain suffix of the embed provider whose frames we control.
const EmbedHostSuffix = "dailymotion.com"

// NextEpisodeURL discovers the next-episode link in the page markup and
// resolves it against the current page address. Absence is a first-class
// outcome: callers must surface a manual-advance affordance, not fail.
func NextEpisodeURL(doc dom.Document) mo.Option[string] {
	for _, selector := range []string{nextLinkRel, nextLinkFallback} {
		el, err := doc.Query(selector)
		if err != nil {
			log.Debugf("page: next link query %q failed: %v", selector, err)
			continue
		}
		if el == nil {
			continue
		}

		href, ok := el.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}

		if resolved := resolveURL(doc.URL(), href); resolved != "" {
			return mo.Some(resolved)
		}
	}

	return mo.None[string]()
}

// resolveURL turns a possibly relative href into an absolute address.
func resolveURL(base, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}

	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(ref).String()
}
