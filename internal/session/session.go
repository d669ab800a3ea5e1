package session

import (
	"image"
	"sync"

	"github.com/smartblur/smartblur/internal/classify"
	"github.com/smartblur/smartblur/internal/ocr"
)

// State tracks where a session is in the upload/OCR/auto-detect cycle
type State int

const (
	StateNoImage State = iota
	StateImageLoaded
	StateOCRDone
	StateReady
)

// String returns the state name used in API responses and logs
func (s State) String() string {
	switch s {
	case StateNoImage:
		return "no_image"
	case StateImageLoaded:
		return "image_loaded"
	case StateOCRDone:
		return "ocr_done"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Session holds all state scoped to one uploaded image for one user.
// Interactions on a session are serialized by its mutex: one at a time, no
// background work. Invariant: every blurred index addresses a valid region.
type Session struct {
	ID string

	mu                sync.Mutex
	state             State
	imageName         string
	imageDigest       string
	img               image.Image
	regions           []ocr.TextRegion
	blurred           map[int]struct{}
	autoDetectApplied bool
	patterns          []*classify.CustomPattern
}

// newSession creates an empty session
func newSession(id string) *Session {
	return &Session{
		ID:      id,
		state:   StateNoImage,
		blurred: make(map[int]struct{}),
	}
}

// reset clears per-image state for a fresh upload. Custom patterns survive;
// they are session-scoped, not image-scoped. Caller holds the lock.
func (s *Session) reset(name, digest string, img image.Image) {
	s.state = StateImageLoaded
	s.imageName = name
	s.imageDigest = digest
	s.img = img
	s.regions = nil
	s.blurred = make(map[int]struct{})
	s.autoDetectApplied = false
}

// blurredIndices returns a copy of the selected indices. Caller holds the
// lock.
func (s *Session) blurredIndices() map[int]struct{} {
	out := make(map[int]struct{}, len(s.blurred))
	for i := range s.blurred {
		out[i] = struct{}{}
	}
	return out
}
