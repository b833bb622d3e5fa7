package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Atik203/animexin-player-controller-extension/constant"
	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/internal/cache"
	"github.com/Atik203/animexin-player-controller-extension/log"
)

// FetchDocument retrieves a watch page and parses it into an inspectable
// snapshot. Used by the CLI; the live session receives its document from the
// in-page agent instead.
func FetchDocument(ctx context.Context, pageURL string) (*dom.Snapshot, error) {
	html, err := fetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return dom.NewSnapshot(strings.NewReader(html), pageURL)
}

// FetchDocumentCached is FetchDocument behind a short-lived page cache.
// Suitable for repeated inspections of the same page; the live session always
// fetches fresh.
func FetchDocumentCached(ctx context.Context, pageURL string) (*dom.Snapshot, error) {
	key := cache.GenerateKey(pageURL, "page")

	var html string
	if cache.Read(key, &html) {
		return dom.NewSnapshot(strings.NewReader(html), pageURL)
	}

	html, err := fetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if err := cache.Write(key, html); err != nil {
		log.Debugf("network: caching %q failed: %v", pageURL, err)
	}

	return dom.NewSnapshot(strings.NewReader(html), pageURL)
}

func fetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %q: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", constant.UserAgent)

	resp, err := Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %q: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %q: unexpected status %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", pageURL, err)
	}
	return string(body), nil
}
