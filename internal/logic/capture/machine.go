package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/frame"
)

// ErrNoCapture is returned when a frozen frame is requested before any capture.
var ErrNoCapture = errors.New("capture: no frozen frame")

// LiveSource provides a copy of the current on-screen frame, or nil while
// nothing has been rendered yet.
type LiveSource interface {
	SnapshotLive() *frame.Buffer
}

// Scheduler starts and stops the per-refresh render cycle.
type Scheduler interface {
	StopScheduling()
	ResumeScheduling()
}

// Device is the part of the capture session the state machine drives.
type Device interface {
	Paused() bool
	Resume() error
}

// Frozen is one captured frame. Its Buffer is never modified after capture,
// so it can be handed to an exporter while a new capture happens.
type Frozen struct {
	ID         string
	CapturedAt time.Time
	Buffer     *frame.Buffer
	Settings   Settings
}

// Machine governs the Live <-> Preview transitions.
type Machine struct {
	session *Session
	live    LiveSource
	sched   Scheduler
	device  Device
	display frame.Surface

	mu     sync.Mutex
	frozen *Frozen

	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to Mode)
}

// NewMachine creates a state machine in Live mode. display may be nil.
func NewMachine(s *Session, live LiveSource, sched Scheduler, dev Device, display frame.Surface) *Machine {
	s.setMode(Live)
	return &Machine{
		session: s,
		live:    live,
		sched:   sched,
		device:  dev,
		display: display,
	}
}

// Mode returns the current state.
func (m *Machine) Mode() Mode {
	return m.session.Mode()
}

// Capture freezes the current live frame and switches to Preview.
// It returns false (no-op) when already in Preview or when no live frame
// has been rendered yet.
func (m *Machine) Capture() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Mode() != Live {
		return false, nil
	}

	// Stop the loop first so no tick overwrites the live frame mid-copy
	m.sched.StopScheduling()

	buf := m.live.SnapshotLive()
	if buf == nil {
		m.sched.ResumeScheduling()
		debug.Verbose("Capture ignored: no live frame yet")
		return false, nil
	}

	f := &Frozen{
		ID:         uuid.NewString(),
		CapturedAt: time.Now(),
		Buffer:     buf,
		Settings:   m.session.Settings(),
	}
	m.frozen = f
	m.session.setMode(Preview)
	f.Settings.Mode = Preview

	if m.display != nil {
		if err := m.display.DrawPixels(f.Buffer); err != nil {
			debug.Error(err)
		}
	}

	debug.Info("Photo captured (id=%s, filter=%s)", f.ID, f.Settings.Filter)
	m.notify(Live, Preview)
	return true, nil
}

// Back leaves Preview, resumes the render loop and wakes a paused device.
// It returns false (no-op) when already Live.
func (m *Machine) Back() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Mode() != Preview {
		return false, nil
	}

	m.session.setMode(Live)
	var err error
	if m.device != nil && m.device.Paused() {
		err = m.device.Resume()
	}
	m.sched.ResumeScheduling()
	m.notify(Preview, Live)
	return true, err
}

// Frozen returns the latest capture. It stays available after Back so a
// failed save can be retried.
func (m *Machine) Frozen() (*Frozen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen == nil {
		return nil, ErrNoCapture
	}
	return m.frozen, nil
}

func (m *Machine) notify(from, to Mode) {
	debug.Transition(from.String(), to.String())
	if m.OnTransition != nil {
		m.OnTransition(from, to)
	}
}
