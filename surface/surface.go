// Package surface locates the playback surface on the host page.
//
// A surface is either a cross-origin embed frame or a native media element;
// which one exists, and when, is entirely up to the host page.
package surface

import "github.com/Atik203/animexin-player-controller-extension/dom"

// Kind identifies the variety of playback surface found on the page.
type Kind int

const (
	KindNone Kind = iota
	KindEmbeddedFrame
	KindNativeElement
)

func (k Kind) String() string {
	switch k {
	case KindEmbeddedFrame:
		return "embedded-frame"
	case KindNativeElement:
		return "native-element"
	default:
		return "none"
	}
}

// Surface is a located playback surface. Exactly one of Frame or Media is
// set, matching Kind.
type Surface struct {
	Kind  Kind
	Frame dom.Element      // set for KindEmbeddedFrame
	Media dom.MediaElement // set for KindNativeElement
}

// Same reports whether the other surface refers to the identical page node.
// A replacement with a different node identity invalidates all playback
// state accumulated against the old surface.
func (s Surface) Same(other Surface) bool {
	if s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case KindEmbeddedFrame:
		return s.Frame != nil && other.Frame != nil && s.Frame.Same(other.Frame)
	case KindNativeElement:
		return s.Media != nil && other.Media != nil && s.Media.Same(other.Media)
	default:
		return true
	}
}
