package prefs

import (
	"net/url"
	"regexp"
	"strings"
)

// UnknownSeries is the sentinel slug used when no valid series identifier can be derived.
const UnknownSeries = "unknown"

const maxSlugLen = 100

// episodeMarker splits an episode-page slug from its series portion,
// e.g. "hunter-x-hunter-episode-12" -> "hunter-x-hunter".
const episodeMarker = "-episode-"

var invalidSlugChars = regexp.MustCompile(`[^a-z0-9\-_]`)

// SeriesID derives the stable series slug for a watch-page URL.
//
// The slug is the portion of the first path segment before the "-episode-"
// marker, or the whole segment when the marker is absent. It is lowercased
// and stripped to [a-z0-9-_]; anything that does not survive as a 1-100
// character slug collapses to UnknownSeries.
func SeriesID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return UnknownSeries
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return UnknownSeries
	}

	segment := path
	if i := strings.IndexByte(path, '/'); i >= 0 {
		segment = path[:i]
	}

	if i := strings.Index(segment, episodeMarker); i >= 0 {
		segment = segment[:i]
	}

	slug := invalidSlugChars.ReplaceAllString(strings.ToLower(segment), "")
	if len(slug) == 0 || len(slug) > maxSlugLen {
		return UnknownSeries
	}

	return slug
}
