//go:build !gocv

package camera

import (
	"context"
	"fmt"
)

// GoCV is unavailable in builds without the gocv tag.
type GoCV struct {
	deviceID int
}

// NewGoCV returns a device that always reports ErrDeviceUnavailable.
func NewGoCV(deviceID int) (*GoCV, error) {
	return &GoCV{deviceID: deviceID}, nil
}

func (g *GoCV) Open(context.Context, Constraints) (Stream, error) {
	return nil, fmt.Errorf("device %d: %w (built without -tags gocv)", g.deviceID, ErrDeviceUnavailable)
}
