// Package session owns the camera device for the lifetime of one capture
// workflow: acquire once, pause and resume freely, release exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/hw/camera"
)

var (
	// ErrSessionClosed is returned by every operation after Release.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotAcquired is returned when the device is used before Acquire succeeded.
	ErrNotAcquired = errors.New("session: device not acquired")
	// ErrPaused is returned by Frame while the device is paused.
	ErrPaused = errors.New("session: device paused")
)

// CaptureSession is an intermediate layer between the render pipeline and
// the camera hardware. It holds the single device stream.
type CaptureSession struct {
	device      camera.Device
	constraints camera.Constraints

	mu       sync.Mutex
	stream   camera.Stream
	paused   bool
	released bool
}

// New creates a session for dev. Nothing is opened until Acquire.
func New(dev camera.Device, c camera.Constraints) *CaptureSession {
	return &CaptureSession{
		device:      dev,
		constraints: c,
	}
}

// Acquire opens the device. Failures wrap camera.ErrPermissionDenied or
// camera.ErrDeviceUnavailable and are not retried. Acquiring an already
// acquired session is a no-op.
func (s *CaptureSession) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrSessionClosed
	}
	if s.stream != nil {
		return nil
	}

	debug.Verbose("Session: requesting device (ideal %dx%d)", s.constraints.IdealWidth, s.constraints.IdealHeight)
	stream, err := s.device.Open(ctx, s.constraints)
	if err != nil {
		return fmt.Errorf("acquire camera: %w", err)
	}
	s.stream = stream
	s.paused = false
	debug.Info("Camera acquired: native %dx%d", stream.Width(), stream.Height())
	return nil
}

// Size returns the native frame size of the acquired device.
func (s *CaptureSession) Size() (width, height int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return 0, 0, err
	}
	return s.stream.Width(), s.stream.Height(), nil
}

// Pause suspends frame delivery without tearing down the device.
// Pausing a paused session is a no-op.
func (s *CaptureSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if !s.paused {
		debug.Live("Session paused")
	}
	s.paused = true
	return nil
}

// Resume restarts frame delivery. Resuming a running session is a no-op.
func (s *CaptureSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.paused {
		debug.Live("Session resumed")
	}
	s.paused = false
	return nil
}

// Paused reports whether the device is currently paused.
func (s *CaptureSession) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Active reports whether frames can be read right now.
func (s *CaptureSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil && !s.released && !s.paused
}

// Frame returns the device's current frame.
func (s *CaptureSession) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	if s.paused {
		return nil, ErrPaused
	}
	return s.stream.CurrentFrame()
}

// Release stops the device stream. It is the only path that frees the
// device; calling it again is a no-op.
func (s *CaptureSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	if s.stream == nil {
		return nil
	}
	debug.Info("Releasing camera")
	err := s.stream.Stop()
	s.stream = nil
	if err != nil {
		return fmt.Errorf("stop camera: %w", err)
	}
	return nil
}

// Released reports whether Release has been called.
func (s *CaptureSession) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *CaptureSession) usable() error {
	if s.released {
		return ErrSessionClosed
	}
	if s.stream == nil {
		return ErrNotAcquired
	}
	return nil
}
