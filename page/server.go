package page

import (
	"strings"
	"sync"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/util"
)

// ServerChoice is one entry of the host page's server dropdown, annotated
// with whether it is the pick the priority list would make.
type ServerChoice struct {
	Label     string
	Value     string
	Preferred bool
}

// PickPreferred returns the first option whose normalized label contains the
// highest-priority pattern. Patterns are matched case-insensitively with
// whitespace collapsed, in priority order.
func PickPreferred(options []dom.Option, priorities []string) (dom.Option, bool) {
	for _, pattern := range priorities {
		want := util.NormalizeLabel(pattern)
		if want == "" {
			continue
		}
		for _, opt := range options {
			if strings.Contains(util.NormalizeLabel(opt.Label), want) {
				return opt, true
			}
		}
	}
	return dom.Option{}, false
}

// ServerChoices lists the dropdown options with the preferred pick marked.
func ServerChoices(doc dom.Document, priorities []string) []ServerChoice {
	sel := findServerSelect(doc)
	if sel == nil {
		return nil
	}

	options := sel.Options()
	preferred, havePick := PickPreferred(options, priorities)

	choices := make([]ServerChoice, 0, len(options))
	for _, opt := range options {
		choices = append(choices, ServerChoice{
			Label:     opt.Label,
			Value:     opt.Value,
			Preferred: havePick && opt.Value == preferred.Value && opt.Label == preferred.Label,
		})
	}
	return choices
}

// ServerPreference applies the configured server priority to the host page's
// dropdown, at most once per page load and never after the user has touched
// the control themselves.
type ServerPreference struct {
	mu         sync.Mutex
	doc        dom.Document
	priorities []string

	applied      bool
	userOverrode bool
}

// NewServerPreference creates the side effect for one page load.
func NewServerPreference(doc dom.Document, priorities []string) *ServerPreference {
	return &ServerPreference{doc: doc, priorities: priorities}
}

// Apply performs the one-shot server selection. Safe to call opportunistically
// from both the locator and the change monitor; repeat calls are no-ops.
func (sp *ServerPreference) Apply() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.applied || sp.userOverrode {
		return
	}

	sel := findServerSelect(sp.doc)
	if sel == nil {
		return
	}

	preferred, ok := PickPreferred(sel.Options(), sp.priorities)
	if !ok {
		// No option matches any pattern; leave the page's default alone.
		sp.applied = true
		return
	}

	if sel.Value() == preferred.Value {
		sp.applied = true
		return
	}

	if err := sel.SetValue(preferred.Value); err != nil {
		// The control may be mid-replacement; a later pass can retry.
		log.Warnf("page: applying server preference %q failed: %v", preferred.Label, err)
		return
	}

	log.Infof("page: selected server %q", preferred.Label)
	sp.applied = true
}

// NoteUserChange records a user-originated change of the server control,
// permanently disabling the side effect for this page load.
func (sp *ServerPreference) NoteUserChange(target dom.Element) {
	if target == nil || !target.Is(ServerSelectSelector) {
		return
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.userOverrode {
		log.Debug("page: user changed the server control, preference disabled")
		sp.userOverrode = true
	}
}

func findServerSelect(doc dom.Document) dom.SelectElement {
	el, err := doc.Query(ServerSelectSelector)
	if err != nil {
		log.Debugf("page: server select query failed: %v", err)
		return nil
	}
	if el == nil {
		return nil
	}

	sel, ok := el.(dom.SelectElement)
	if !ok {
		return nil
	}
	return sel
}
