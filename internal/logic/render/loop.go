// Package render drives the live feed: one capture-transform-display cycle
// per display refresh, never more than one frame in flight.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/frame"
	"github.com/cjeanneret/FilterCam/internal/logic/capture"
	"github.com/cjeanneret/FilterCam/internal/logic/filter"
	"github.com/cjeanneret/FilterCam/internal/logic/session"
)

// DefaultRefresh is the tick interval used when none is configured (~30 Hz).
const DefaultRefresh = time.Second / 30

// Source is where the loop reads device frames from.
type Source interface {
	Frame() (image.Image, error)
}

// closer is implemented by sources that can be released (session.CaptureSession).
type closer interface {
	Released() bool
}

// Loop owns the live frame buffer.
type Loop struct {
	src     Source
	surface frame.Surface
	session *capture.Session

	mu        sync.Mutex
	live      *frame.Buffer
	scratch   *frame.Buffer
	scheduled bool
	ticks     uint64

	wake chan struct{}
}

// New creates a loop whose live buffer is width x height (the device's
// native size, fixed for the session). surface may be nil.
func New(src Source, surface frame.Surface, s *capture.Session, width, height int) *Loop {
	return &Loop{
		src:       src,
		surface:   surface,
		session:   s,
		live:      frame.New(width, height),
		scratch:   frame.New(width, height),
		scheduled: true,
		wake:      make(chan struct{}, 1),
	}
}

// Tick performs one cycle: copy the device frame (mirrored if requested),
// apply the selected filter, publish to the surface. It is a no-op while
// in Preview, while scheduling is stopped, or while the device is paused.
// After the session is released it returns session.ErrSessionClosed.
func (l *Loop) Tick() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.src.(closer); ok && c.Released() {
		return session.ErrSessionClosed
	}

	settings := l.session.Settings()
	if !l.scheduled || settings.Mode != capture.Live {
		return nil
	}

	img, err := l.src.Frame()
	if errors.Is(err, session.ErrPaused) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}

	l.scratch.DrawScaled(img)
	src := l.scratch
	if settings.Mirrored {
		src = filter.Mirror(src)
	}
	out := filter.Apply(src, settings.Filter, settings.PixelSize)
	if err := l.live.CopyFrom(out); err != nil {
		return err
	}

	l.ticks++
	debug.Tick(l.ticks, settings.Filter.String())

	if l.surface != nil {
		if err := l.surface.DrawPixels(l.live); err != nil {
			return fmt.Errorf("draw: %w", err)
		}
	}
	return nil
}

// SnapshotLive returns a copy of the live buffer, or nil before the first
// frame was rendered. It waits for an in-flight tick.
func (l *Loop) SnapshotLive() *frame.Buffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ticks == 0 {
		return nil
	}
	return l.live.Clone()
}

// Ticks returns how many cycles completed.
func (l *Loop) Ticks() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ticks
}

// StopScheduling prevents further ticks. An in-flight tick completes first.
func (l *Loop) StopScheduling() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scheduled {
		debug.Verbose("Render loop: scheduling stopped after %d ticks", l.ticks)
	}
	l.scheduled = false
}

// ResumeScheduling allows ticks again and wakes Run immediately.
func (l *Loop) ResumeScheduling() {
	l.mu.Lock()
	if !l.scheduled {
		debug.Verbose("Render loop: scheduling resumed")
	}
	l.scheduled = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Scheduled reports whether ticks are currently allowed.
func (l *Loop) Scheduled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scheduled
}

// Run ticks once per refresh interval until ctx is cancelled or the session
// is released. Ticks never overlap, and a slow tick makes the ticker drop
// refreshes rather than queue them. Per-frame read errors are logged and skipped.
func (l *Loop) Run(ctx context.Context, refresh time.Duration) error {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	debug.Verbose("Render loop started (refresh %v)", refresh)
	for {
		select {
		case <-ctx.Done():
			debug.Verbose("Render loop stopped after %d ticks", l.Ticks())
			return ctx.Err()
		case <-ticker.C:
		case <-l.wake:
		}

		if err := l.Tick(); err != nil {
			if errors.Is(err, session.ErrSessionClosed) {
				return err
			}
			debug.Error(err)
		}
	}
}
