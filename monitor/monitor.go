// Package monitor watches host-page mutations and reduces them to a single
// "the player may have been replaced" resync signal.
//
// AnimeXin pages tear the player down and rebuild it when the user switches
// servers, and some embeds re-insert their frame on quality changes. The
// monitor coalesces the resulting mutation bursts so the session re-runs the
// surface locator once per burst, not once per node.
package monitor

import (
	"context"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/page"
	"github.com/spf13/viper"
)

// playerHintSelector matches nodes that plausibly carry a playback surface.
const playerHintSelector = `iframe, video, audio`

// Monitor coalesces page mutations into resync signals. Fields are set
// before Run and never mutated afterwards.
type Monitor struct {
	Doc      dom.Document
	Pref     *page.ServerPreference
	Debounce time.Duration

	resync chan struct{}
}

// New builds a monitor with the configured debounce window.
func New(doc dom.Document, pref *page.ServerPreference) *Monitor {
	debounce := time.Duration(viper.GetInt(key.MonitorDebounceMS)) * time.Millisecond
	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}
	return &Monitor{Doc: doc, Pref: pref, Debounce: debounce}
}

// Resync returns the coalesced signal channel. A pending signal that has not
// been consumed absorbs further bursts; the consumer never sees a backlog.
func (m *Monitor) Resync() <-chan struct{} {
	if m.resync == nil {
		m.resync = make(chan struct{}, 1)
	}
	return m.resync
}

// Run consumes mutations until the context ends or the document's mutation
// stream closes. It returns immediately.
func (m *Monitor) Run(ctx context.Context) {
	m.Resync()
	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case mut, ok := <-m.Doc.Mutations():
			if !ok {
				return
			}
			if !m.relevant(mut) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(m.Debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timerC:
					default:
					}
				}
				timer.Reset(m.Debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case m.resync <- struct{}{}:
				log.Debug("monitor: player change detected, resync requested")
			default:
			}
		}
	}
}

// relevant decides whether a mutation warrants a resync. Control changes are
// routed to the server preference as a side effect and never resync on their
// own; the page rebuilds the player right after, which shows up as node
// insertions.
func (m *Monitor) relevant(mut dom.Mutation) bool {
	switch mut.Kind {
	case dom.MutationControlChanged:
		if !mut.Programmatic && m.Pref != nil {
			m.Pref.NoteUserChange(mut.Target)
		}
		return false

	case dom.MutationNodesAdded:
		for _, el := range mut.Added {
			if el == nil {
				continue
			}
			if el.Is(playerHintSelector) || el.Query(playerHintSelector) != nil {
				return true
			}
		}
		return false

	default:
		return false
	}
}
