// Package booth is the top-level controller of the photo booth: it owns the
// capture session, the render loop, the capture state machine and the
// exporter, and turns user input events into calls on them.
package booth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/frame"
	"github.com/cjeanneret/FilterCam/internal/hw/camera"
	"github.com/cjeanneret/FilterCam/internal/logic/capture"
	"github.com/cjeanneret/FilterCam/internal/logic/export"
	"github.com/cjeanneret/FilterCam/internal/logic/filter"
	"github.com/cjeanneret/FilterCam/internal/logic/geometry"
	"github.com/cjeanneret/FilterCam/internal/logic/render"
	"github.com/cjeanneret/FilterCam/internal/logic/session"
)

// User-facing save notifications.
const (
	MsgSaved      = "Image saved successfully!"
	MsgSaveFailed = "Failed to save the image. Please try again."
)

// ErrNotStarted is returned by input events received before Start succeeded.
var ErrNotStarted = errors.New("booth: not started")

// ErrNoFrame is returned by Live before the first frame was rendered.
var ErrNoFrame = errors.New("booth: no live frame yet")

// Event levels
const (
	LevelInfo  = "info"
	LevelState = "state"
	LevelError = "error"
)

// Event is a user-visible notification (save outcome, state change).
type Event struct {
	Level string
	Msg   string
}

// Options configure a Controller.
type Options struct {
	Device      camera.Device
	Constraints camera.Constraints

	Filter              filter.Kind
	PixelSize           int
	Mirrored            bool
	ResetFilterOnMirror bool

	Refresh time.Duration // render loop period; 0 = render.DefaultRefresh
	Display frame.Surface // may be nil

	// Notify receives every Event. It must not block.
	Notify func(Event)
}

// State is a point-in-time view of the booth for the UI.
type State struct {
	capture.Settings
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Paused     bool   `json:"paused"`
	Ticks      uint64 `json:"ticks"`
	HasCapture bool   `json:"has_capture"`
	CaptureID  string `json:"capture_id,omitempty"`
}

// Controller wires the booth components together.
type Controller struct {
	opts     Options
	settings *capture.Session
	cs       *session.CaptureSession

	mu      sync.Mutex
	loop    *render.Loop
	machine *capture.Machine
	width   int
	height  int
}

// New creates a controller. The device is not opened until Start.
func New(opts Options) *Controller {
	if opts.Constraints.IdealWidth <= 0 {
		opts.Constraints.IdealWidth = camera.DefaultIdealWidth
	}
	if opts.Constraints.IdealHeight <= 0 {
		opts.Constraints.IdealHeight = camera.DefaultIdealHeight
	}
	s := capture.NewSession(opts.Filter, opts.PixelSize, opts.Mirrored)
	s.ResetFilterOnMirror(opts.ResetFilterOnMirror)
	return &Controller{
		opts:     opts,
		settings: s,
		cs:       session.New(opts.Device, opts.Constraints),
	}
}

// Start acquires the device and builds the render loop at the device's
// native size. Acquisition failures are returned unretried; the device is
// released before returning an error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loop != nil {
		return nil
	}

	debug.Section("Camera")
	if err := c.cs.Acquire(ctx); err != nil {
		c.cs.Release()
		return err
	}
	w, h, err := c.cs.Size()
	if err != nil {
		c.cs.Release()
		return err
	}
	c.width, c.height = w, h
	c.loop = render.New(c.cs, c.opts.Display, c.settings, w, h)
	c.machine = capture.NewMachine(c.settings, c.loop, c.loop, c.cs, c.opts.Display)
	c.machine.OnTransition = func(_, to capture.Mode) {
		c.emit(LevelState, to.String())
	}
	debug.Value("Frame size", fmt.Sprintf("%dx%d", w, h))
	debug.PrintStruct("Initial settings", c.settings.Settings())

	// First frame, so a capture right after Start has something to freeze
	if err := c.loop.Tick(); err != nil {
		debug.Error(err)
	}
	return nil
}

// Run starts the booth if needed, then drives the render loop until ctx is
// cancelled or the session is released. The device is released on every
// return path. Cancellation is a clean shutdown and returns nil.
func (c *Controller) Run(ctx context.Context) error {
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	loop := c.loop
	c.mu.Unlock()

	err := loop.Run(ctx, c.opts.Refresh)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Close releases the device. It is safe to call more than once.
func (c *Controller) Close() error {
	return c.cs.Release()
}

// Closed reports whether the device has been released.
func (c *Controller) Closed() bool {
	return c.cs.Released()
}

// SelectFilter changes the live filter.
func (c *Controller) SelectFilter(k filter.Kind) error {
	if err := c.settings.SelectFilter(k); err != nil {
		return err
	}
	debug.Live("Filter: %s", k)
	c.emit(LevelState, "filter "+k.String())
	return nil
}

// ToggleMirror flips the mirror flag and returns the new value.
func (c *Controller) ToggleMirror() bool {
	on := c.settings.ToggleMirror()
	debug.Live("Mirror: %v", on)
	c.emit(LevelState, fmt.Sprintf("mirror %v", on))
	return on
}

// SetPixelSize sets the structural filter parameter, clamped to [1,64].
func (c *Controller) SetPixelSize(n int) int {
	got := c.settings.SetPixelSize(n)
	debug.Live("Pixel size: %d", got)
	c.mu.Lock()
	w, h := c.width, c.height
	c.mu.Unlock()
	if w > 0 && h > 0 {
		debug.Verbose("Cell grid: %d cells", geometry.CalculateCellGrid(w, h, got).Count())
	}
	return got
}

// Capture freezes the live frame. It reports false when already in Preview.
func (c *Controller) Capture() (bool, error) {
	m, err := c.stateMachine()
	if err != nil {
		return false, err
	}
	return m.Capture()
}

// Back returns to the live feed. It reports false when already Live.
func (c *Controller) Back() (bool, error) {
	m, err := c.stateMachine()
	if err != nil {
		return false, err
	}
	return m.Back()
}

// Frozen returns the latest capture.
func (c *Controller) Frozen() (*capture.Frozen, error) {
	m, err := c.stateMachine()
	if err != nil {
		return nil, err
	}
	return m.Frozen()
}

// Live returns a copy of the current live frame.
func (c *Controller) Live() (*frame.Buffer, error) {
	c.mu.Lock()
	loop := c.loop
	c.mu.Unlock()
	if loop == nil {
		return nil, ErrNotStarted
	}
	b := loop.SnapshotLive()
	if b == nil {
		return nil, ErrNoFrame
	}
	return b, nil
}

// Save exports the latest capture through p. The save outcome is announced
// with MsgSaved or MsgSaveFailed; a declined destination announces nothing.
// The capture stays available for a retry whatever the outcome.
func (c *Controller) Save(ctx context.Context, req export.Request, p export.Provider) (export.Ack, error) {
	fz, err := c.Frozen()
	if err != nil {
		return export.Ack{}, err
	}
	debug.Section("Save")
	debug.Value("Capture", fz.ID)
	debug.Value("Format", req.Format)

	ack, err := export.Export(ctx, fz.Buffer, req, p)
	switch {
	case err != nil:
		debug.Error(err)
		c.emit(LevelError, MsgSaveFailed)
	case ack.Cancelled:
	default:
		c.emit(LevelInfo, MsgSaved)
	}
	return ack, err
}

// SetVisible pauses the device while the UI is hidden and resumes it when
// shown again.
func (c *Controller) SetVisible(visible bool) error {
	if c.cs.Released() {
		return session.ErrSessionClosed
	}
	if visible {
		return c.cs.Resume()
	}
	return c.cs.Pause()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	st := State{
		Settings: c.settings.Settings(),
		Paused:   c.cs.Paused(),
	}
	c.mu.Lock()
	loop, m := c.loop, c.machine
	st.Width, st.Height = c.width, c.height
	c.mu.Unlock()

	if loop != nil {
		st.Ticks = loop.Ticks()
	}
	if m != nil {
		if fz, err := m.Frozen(); err == nil {
			st.HasCapture = true
			st.CaptureID = fz.ID
		}
	}
	return st
}

func (c *Controller) stateMachine() (*capture.Machine, error) {
	if c.cs.Released() {
		return nil, session.ErrSessionClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine == nil {
		return nil, ErrNotStarted
	}
	return c.machine, nil
}

func (c *Controller) emit(level, msg string) {
	if c.opts.Notify != nil {
		c.opts.Notify(Event{Level: level, Msg: msg})
	}
}
