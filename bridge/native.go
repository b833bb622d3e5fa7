package bridge

import (
	"sync"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/log"
)

// NativeBridge drives a same-document media element through direct property
// access and native event subscription.
type NativeBridge struct {
	media dom.MediaElement

	mu          sync.Mutex
	closed      bool
	events      chan Event
	unsubscribe func()
	closeOnce   sync.Once
}

// NewNativeBridge attaches to a native media element.
func NewNativeBridge(media dom.MediaElement) *NativeBridge {
	b := &NativeBridge{
		media:  media,
		events: make(chan Event, 64),
	}

	ch, cancel := media.Subscribe()
	b.unsubscribe = cancel
	go b.translate(ch)

	return b
}

// Command applies a logical action directly to the element. Play/pause
// rejections (autoplay policy denials) are swallowed, never propagated.
func (b *NativeBridge) Command(action Action, value float64) {
	switch action {
	case ActionPlay:
		if err := b.media.Play(); err != nil {
			log.Debugf("bridge: play rejection swallowed: %v", err)
		}
	case ActionPause:
		if err := b.media.Pause(); err != nil {
			log.Debugf("bridge: pause rejection swallowed: %v", err)
		}
	case ActionSeek:
		if err := b.media.SetCurrentTime(value); err != nil {
			log.Warnf("bridge: %v: seek to %.2f: %v", ErrCommandFailed, value, err)
		}
	case ActionQueryCurrentTime:
		if t, err := b.media.CurrentTime(); err == nil {
			b.emit(Event{Type: EventTimeUpdated, Time: t})
		} else {
			log.Debugf("bridge: current time query failed: %v", err)
		}
	case ActionQueryDuration:
		if d, err := b.media.Duration(); err == nil {
			b.emit(Event{Type: EventDurationKnown, Duration: d})
		} else {
			log.Debugf("bridge: duration query failed: %v", err)
		}
	case ActionQueryPlayState:
		paused, err := b.media.Paused()
		if err != nil {
			log.Debugf("bridge: play state query failed: %v", err)
			return
		}
		t, _ := b.media.CurrentTime()
		if paused {
			b.emit(Event{Type: EventPaused, Time: t})
		} else {
			b.emit(Event{Type: EventStarted, Time: t})
		}
	default:
		log.Debugf("bridge: unsupported native action %q", action)
	}
}

func (b *NativeBridge) Play()                { b.Command(ActionPlay, 0) }
func (b *NativeBridge) Pause()               { b.Command(ActionPause, 0) }
func (b *NativeBridge) Seek(seconds float64) { b.Command(ActionSeek, seconds) }
func (b *NativeBridge) QueryCurrentTime()    { b.Command(ActionQueryCurrentTime, 0) }
func (b *NativeBridge) QueryDuration()       { b.Command(ActionQueryDuration, 0) }
func (b *NativeBridge) QueryPlayState()      { b.Command(ActionQueryPlayState, 0) }

// Events returns the normalized event stream.
func (b *NativeBridge) Events() <-chan Event {
	return b.events
}

// Close unsubscribes from the element. Idempotent.
func (b *NativeBridge) Close() error {
	b.closeOnce.Do(b.unsubscribe)
	return nil
}

// translate forwards native media events until the subscription closes.
func (b *NativeBridge) translate(ch <-chan dom.MediaEvent) {
	defer func() {
		b.mu.Lock()
		b.closed = true
		close(b.events)
		b.mu.Unlock()
	}()

	for ev := range ch {
		var out Event
		switch ev.Name {
		case dom.MediaEventPlay:
			out = Event{Type: EventStarted, Time: ev.Time}
		case dom.MediaEventPause:
			out = Event{Type: EventPaused, Time: ev.Time}
		case dom.MediaEventTimeUpdate:
			out = Event{Type: EventTimeUpdated, Time: ev.Time}
		case dom.MediaEventDurationChange:
			out = Event{Type: EventDurationKnown, Duration: ev.Duration}
		case dom.MediaEventEnded:
			out = Event{Type: EventEnded, Time: ev.Time}
		default:
			continue
		}
		b.emit(out)
	}
}

// emit delivers an event without blocking and never after close.
func (b *NativeBridge) emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	select {
	case b.events <- ev:
	default:
		log.Debugf("bridge: event buffer full, dropped %s", ev.Type)
	}
}
