package bridge

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/page"
	"github.com/Atik203/animexin-player-controller-extension/retry"
)

const (
	frameRetryAttempts = 5
	frameRetryBase     = time.Second
)

// FrameBridge drives a cross-origin embed frame over a structured message
// channel. Inbound traffic is filtered by origin and normalized from the
// provider's heterogeneous payload shapes; outbound commands are emitted in
// redundant envelopes because the provider's accepted schema is not stable.
type FrameBridge struct {
	frame dom.Element
	port  dom.MessagePort

	events    chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// Retry budget for failed sends; overridable in tests.
	RetryAttempts int
	RetryBase     time.Duration
}

// NewFrameBridge attaches to an embed frame. pageOrigin is the host page's
// origin, passed to the provider's programmatic-API opt-in.
//
// The frame's address is rewritten before first use to request the
// postMessage API; this must happen before the frame finishes loading or
// the provider never offers the control channel.
func NewFrameBridge(frame dom.Element, port dom.MessagePort, pageOrigin string) *FrameBridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &FrameBridge{
		frame:         frame,
		port:          port,
		events:        make(chan Event, 64),
		ctx:           ctx,
		cancel:        cancel,
		RetryAttempts: frameRetryAttempts,
		RetryBase:     frameRetryBase,
	}

	b.enableAPI(pageOrigin)
	go b.readLoop()

	return b
}

// enableAPI rewrites the frame src to opt in to the provider's postMessage
// API, unless the flag is already present.
func (b *FrameBridge) enableAPI(pageOrigin string) {
	src, ok := b.frame.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return
	}

	u, err := url.Parse(src)
	if err != nil {
		log.Warnf("bridge: unparseable frame src %q: %v", src, err)
		return
	}

	q := u.Query()
	if q.Get("api") != "" {
		return
	}
	q.Set("api", "postMessage")
	if pageOrigin != "" {
		q.Set("origin", pageOrigin)
	}
	u.RawQuery = q.Encode()

	if err := b.frame.SetAttr("src", u.String()); err != nil {
		log.Warnf("bridge: rewriting frame src failed: %v", err)
	}
}

// Command sends one logical action in every outbound envelope shape.
// A failed send is retried with exponential backoff off the caller's
// goroutine and dropped silently once the budget is spent.
func (b *FrameBridge) Command(action Action, value float64) {
	if b.ctx.Err() != nil {
		return
	}

	payloads := encodeEnvelopes(action, value)
	go func() {
		err := retry.Do(b.ctx, b.RetryAttempts, b.RetryBase, func() error {
			for _, p := range payloads {
				if err := b.port.Post(p); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil && b.ctx.Err() == nil {
			log.Warnf("bridge: %v: command %q dropped: %v", ErrCommandFailed, action, err)
		}
	}()
}

func (b *FrameBridge) Play()                { b.Command(ActionPlay, 0) }
func (b *FrameBridge) Pause()               { b.Command(ActionPause, 0) }
func (b *FrameBridge) Seek(seconds float64) { b.Command(ActionSeek, seconds) }
func (b *FrameBridge) QueryCurrentTime()    { b.Command(ActionQueryCurrentTime, 0) }
func (b *FrameBridge) QueryDuration()       { b.Command(ActionQueryDuration, 0) }
func (b *FrameBridge) QueryPlayState()      { b.Command(ActionQueryPlayState, 0) }

// Events returns the normalized event stream.
func (b *FrameBridge) Events() <-chan Event {
	return b.events
}

// Close releases the port and stops delivery. Idempotent.
func (b *FrameBridge) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		_ = b.port.Close()
	})
	return nil
}

// readLoop normalizes inbound traffic until the port closes.
func (b *FrameBridge) readLoop() {
	defer close(b.events)

	for msg := range b.port.Messages() {
		if !allowedOrigin(msg.Origin) {
			log.Tracef("bridge: dropped message from origin %q", msg.Origin)
			continue
		}

		ev, ok := normalizeInbound(msg.Data)
		if !ok {
			continue
		}

		select {
		case b.events <- ev:
		default:
			// A slow consumer must not stall the port; drop and move on.
			log.Debugf("bridge: event buffer full, dropped %s", ev.Type)
		}
	}
}

// allowedOrigin restricts inbound messages to the embed provider's domain.
func allowedOrigin(origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	return host == page.EmbedHostSuffix || strings.HasSuffix(host, "."+page.EmbedHostSuffix)
}
