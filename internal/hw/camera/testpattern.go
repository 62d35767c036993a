package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/cjeanneret/FilterCam/internal/debug"
)

// barColors are the classic SMPTE-style colour bars.
var barColors = []color.RGBA{
	{0xc0, 0xc0, 0xc0, 0xff},
	{0xc0, 0xc0, 0x00, 0xff},
	{0x00, 0xc0, 0xc0, 0xff},
	{0x00, 0xc0, 0x00, 0xff},
	{0xc0, 0x00, 0xc0, 0xff},
	{0xc0, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xc0, 0xff},
}

// TestPattern is a synthetic Device producing animated colour bars.
// Used for development on machines without a webcam, and in tests.
type TestPattern struct {
	// Fail, if set, is returned (wrapped) by Open instead of a stream.
	// Use ErrPermissionDenied or ErrDeviceUnavailable to simulate refusal.
	Fail error

	// Speed is the bar scroll speed in pixels per frame. 0 gives a static image.
	Speed int

	mu     sync.Mutex
	opened int
}

// NewTestPattern creates a synthetic device scrolling at speed pixels per frame.
func NewTestPattern(speed int) *TestPattern {
	return &TestPattern{Speed: speed}
}

// Opened returns how many streams were successfully opened.
func (p *TestPattern) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

func (p *TestPattern) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Fail != nil {
		return nil, fmt.Errorf("test pattern: %w", p.Fail)
	}
	w, h := c.IdealWidth, c.IdealHeight
	if w <= 0 {
		w = DefaultIdealWidth
	}
	if h <= 0 {
		h = DefaultIdealHeight
	}

	p.mu.Lock()
	p.opened++
	p.mu.Unlock()

	debug.Info("Using TEST PATTERN camera (%dx%d)", w, h)
	return &patternStream{width: w, height: h, speed: p.Speed, start: time.Now()}, nil
}

type patternStream struct {
	width, height int
	speed         int
	start         time.Time

	mu      sync.Mutex
	frame   uint64
	stopped bool
}

func (s *patternStream) Width() int  { return s.width }
func (s *patternStream) Height() int { return s.height }

func (s *patternStream) CurrentFrame() (image.Image, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, fmt.Errorf("test pattern: %w: stream stopped", ErrDeviceUnavailable)
	}
	n := s.frame
	s.frame++
	s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	barW := s.width / len(barColors)
	if barW < 1 {
		barW = 1
	}
	shift := int(n) * s.speed
	for y := 0; y < s.height; y++ {
		// Bottom quarter is a horizontal luminance ramp
		ramp := y >= s.height*3/4
		for x := 0; x < s.width; x++ {
			var c color.RGBA
			if ramp {
				v := uint8(x * 255 / max(1, s.width-1))
				c = color.RGBA{v, v, v, 0xff}
			} else {
				c = barColors[((x+shift)/barW)%len(barColors)]
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (s *patternStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		debug.Verbose("Test pattern stopped after %d frames (%v)", s.frame, time.Since(s.start).Round(time.Millisecond))
	}
	s.stopped = true
	return nil
}
