//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/FilterCam/internal/debug"
)

// GoCV is a webcam Device backed by OpenCV.
// Build with -tags gocv (requires OpenCV 4 installed).
type GoCV struct {
	deviceID int
}

// NewGoCV creates an OpenCV webcam device for the given device index.
func NewGoCV(deviceID int) (*GoCV, error) {
	return &GoCV{deviceID: deviceID}, nil
}

func (g *GoCV) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// OpenCV does not report EACCES; check the V4L2 node first so a missing
	// group membership surfaces as a permission problem.
	node := fmt.Sprintf("/dev/video%d", g.deviceID)
	if f, err := os.Open(node); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("open %s: %w", node, ErrPermissionDenied)
		}
	} else {
		f.Close()
	}

	cam, err := gocv.VideoCaptureDevice(g.deviceID)
	if err != nil {
		return nil, fmt.Errorf("open device %d: %w: %v", g.deviceID, ErrDeviceUnavailable, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("open device %d: %w", g.deviceID, ErrDeviceUnavailable)
	}

	if c.IdealWidth > 0 {
		cam.Set(gocv.VideoCaptureFrameWidth, float64(c.IdealWidth))
	}
	if c.IdealHeight > 0 {
		cam.Set(gocv.VideoCaptureFrameHeight, float64(c.IdealHeight))
	}

	mat := gocv.NewMat()
	if !cam.Read(&mat) || mat.Empty() {
		mat.Close()
		cam.Close()
		return nil, fmt.Errorf("device %d: %w: no frames", g.deviceID, ErrDeviceUnavailable)
	}

	s := &gocvStream{cam: cam, mat: mat, width: mat.Cols(), height: mat.Rows()}
	debug.Info("Using GOCV camera %d (%dx%d)", g.deviceID, s.width, s.height)
	return s, nil
}

type gocvStream struct {
	mu      sync.Mutex
	cam     *gocv.VideoCapture
	mat     gocv.Mat
	width   int
	height  int
	stopped bool
}

func (s *gocvStream) Width() int  { return s.width }
func (s *gocvStream) Height() int { return s.height }

func (s *gocvStream) CurrentFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, fmt.Errorf("gocv: %w: stream stopped", ErrDeviceUnavailable)
	}
	if !s.cam.Read(&s.mat) || s.mat.Empty() {
		return nil, fmt.Errorf("gocv: %w: cannot read frame", ErrDeviceUnavailable)
	}
	return s.mat.ToImage()
}

func (s *gocvStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.mat.Close()
	return s.cam.Close()
}
