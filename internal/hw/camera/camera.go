package camera

import (
	"context"
	"errors"
	"image"
)

// Errors returned when a device cannot be acquired.
var (
	ErrPermissionDenied  = errors.New("camera: permission denied")
	ErrDeviceUnavailable = errors.New("camera: device unavailable")
)

// Default ideal capture resolution.
const (
	DefaultIdealWidth  = 1280
	DefaultIdealHeight = 720
)

// Constraints are the requested capture properties. The device picks the
// closest native mode it supports; callers must read the actual size from the Stream.
type Constraints struct {
	IdealWidth  int
	IdealHeight int
}

// Device is the high-level interface used by the rest of the application.
// It represents an abstract video source regardless of how frames are
// produced (OpenCV webcam, still image, synthetic pattern, etc.).
type Device interface {
	// Open acquires the device and starts streaming. It fails with an error
	// wrapping ErrPermissionDenied or ErrDeviceUnavailable.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired, running device.
type Stream interface {
	// Width and Height are the native frame size, fixed for the stream's lifetime.
	Width() int
	Height() int

	// CurrentFrame returns a snapshot of the most recent frame.
	CurrentFrame() (image.Image, error)

	// Stop ends the stream and frees the device.
	Stop() error
}
