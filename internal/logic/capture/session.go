package capture

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/logic/filter"
	"github.com/cjeanneret/FilterCam/internal/logic/geometry"
)

// Mode is the capture workflow state.
type Mode int

const (
	Live Mode = iota
	Preview
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Preview:
		return "preview"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "live":
		*m = Live
	case "preview":
		*m = Preview
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Settings is a point-in-time copy of a Session.
type Settings struct {
	Filter    filter.Kind `json:"filter"`
	PixelSize int         `json:"pixel_size"`
	Mirrored  bool        `json:"mirrored"`
	Mode      Mode        `json:"mode"`
}

// Session holds the user-controlled state of one capture workflow.
// It is mutated only by user input and read once per render tick.
type Session struct {
	mu            sync.RWMutex
	filter        filter.Kind
	pixelSize     int
	mirrored      bool
	mode          Mode
	resetOnMirror bool
}

// NewSession creates a session in Live mode. pixelSize is clamped to [1, 64].
func NewSession(k filter.Kind, pixelSize int, mirrored bool) *Session {
	if !k.Valid() {
		k = filter.None
	}
	return &Session{
		filter:    k,
		pixelSize: geometry.ClampCellSize(pixelSize),
		mirrored:  mirrored,
		mode:      Live,
	}
}

// ResetFilterOnMirror makes ToggleMirror also clear the active filter.
func (s *Session) ResetFilterOnMirror(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetOnMirror = on
}

// Settings returns a copy of the current state.
func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Settings{
		Filter:    s.filter,
		PixelSize: s.pixelSize,
		Mirrored:  s.mirrored,
		Mode:      s.mode,
	}
}

// Mode returns the current workflow mode.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SelectFilter changes the active filter.
func (s *Session) SelectFilter(k filter.Kind) error {
	if !k.Valid() {
		return fmt.Errorf("invalid filter kind %d", int(k))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter != k {
		debug.Live("Filter %s -> %s", s.filter, k)
	}
	s.filter = k
	return nil
}

// ToggleMirror flips the mirror flag and returns its new value.
func (s *Session) ToggleMirror() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrored = !s.mirrored
	if s.resetOnMirror {
		s.filter = filter.None
	}
	debug.Live("Mirror %v", s.mirrored)
	return s.mirrored
}

// SetPixelSize sets the structural filter parameter, clamped to [1, 64],
// and returns the stored value.
func (s *Session) SetPixelSize(n int) int {
	n = geometry.ClampCellSize(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pixelSize = n
	debug.Verbose("Pixel size %dpx", n)
	return n
}

func (s *Session) setMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}
