package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTestPattern_ImplementsDevice(t *testing.T) {
	var _ Device = NewTestPattern(0) // compile-time check
	var _ Device = NewStill("x.png")
	var _ Device = &GoCV{}
}

func TestTestPattern_OpenUsesIdealSize(t *testing.T) {
	dev := NewTestPattern(0)
	s, err := dev.Open(context.Background(), Constraints{IdealWidth: 64, IdealHeight: 48})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Stop()

	if s.Width() != 64 || s.Height() != 48 {
		t.Errorf("size = %dx%d, want 64x48", s.Width(), s.Height())
	}
	img, err := s.CurrentFrame()
	if err != nil {
		t.Fatalf("CurrentFrame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("frame bounds = %v", b)
	}
	if dev.Opened() != 1 {
		t.Errorf("Opened = %d, want 1", dev.Opened())
	}
}

func TestTestPattern_DefaultSize(t *testing.T) {
	s, err := NewTestPattern(0).Open(context.Background(), Constraints{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Width() != DefaultIdealWidth || s.Height() != DefaultIdealHeight {
		t.Errorf("size = %dx%d, want %dx%d", s.Width(), s.Height(), DefaultIdealWidth, DefaultIdealHeight)
	}
}

func TestTestPattern_FailWrapsSentinel(t *testing.T) {
	cases := []error{ErrPermissionDenied, ErrDeviceUnavailable}
	for _, want := range cases {
		dev := &TestPattern{Fail: want}
		_, err := dev.Open(context.Background(), Constraints{IdealWidth: 8, IdealHeight: 8})
		if !errors.Is(err, want) {
			t.Errorf("Open error = %v, want %v", err, want)
		}
		if dev.Opened() != 0 {
			t.Errorf("failed open should not count, got %d", dev.Opened())
		}
	}
}

func TestTestPattern_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTestPattern(0).Open(ctx, Constraints{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTestPattern_FrameAfterStopFails(t *testing.T) {
	s, _ := NewTestPattern(1).Open(context.Background(), Constraints{IdealWidth: 8, IdealHeight: 8})
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
	if _, err := s.CurrentFrame(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestTestPattern_Scrolls(t *testing.T) {
	s, _ := NewTestPattern(3).Open(context.Background(), Constraints{IdealWidth: 70, IdealHeight: 8})
	a, _ := s.CurrentFrame()
	b, _ := s.CurrentFrame()
	if a.At(9, 0) == b.At(9, 0) {
		t.Error("consecutive frames should differ near a bar edge when speed > 0")
	}
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	path := filepath.Join(t.TempDir(), "still.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return path
}

func TestStill_ServesImage(t *testing.T) {
	path := writePNG(t, 5, 3)
	s, err := NewStill(path).Open(context.Background(), Constraints{IdealWidth: 1280, IdealHeight: 720})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Width() != 5 || s.Height() != 3 {
		t.Errorf("size = %dx%d, want native 5x3", s.Width(), s.Height())
	}
	img, err := s.CurrentFrame()
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 {
		t.Errorf("red = %d, want 255", r>>8)
	}
	s.Stop()
	if _, err := s.CurrentFrame(); err == nil {
		t.Error("expected error after Stop")
	}
}

func TestStill_MissingFileUnavailable(t *testing.T) {
	_, err := NewStill(filepath.Join(t.TempDir(), "nope.png")).Open(context.Background(), Constraints{})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestStill_NotAnImageUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	os.WriteFile(path, []byte("not an image"), 0o644)
	_, err := NewStill(path).Open(context.Background(), Constraints{})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func encodePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
}

func TestStill_WatchReloadsRewrittenFile(t *testing.T) {
	path := writePNG(t, 5, 3)
	dev := NewStill(path)
	dev.Watch = true
	s, err := dev.Open(context.Background(), Constraints{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Stop()

	blue := color.RGBA{B: 255, A: 255}
	encodePNG(t, path, 2, 2, blue)

	st := s.(*stillStream)
	deadline := time.Now().Add(2 * time.Second)
	for st.Reloads() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if st.Reloads() == 0 {
		t.Fatal("image was not reloaded after the file changed")
	}
	if s.Width() != 5 || s.Height() != 3 {
		t.Errorf("size = %dx%d, want the size of the first image", s.Width(), s.Height())
	}
	img, err := s.CurrentFrame()
	if err != nil {
		t.Fatal(err)
	}
	_, _, b, _ := img.At(0, 0).RGBA()
	if b>>8 != 255 {
		t.Errorf("blue = %d, want 255 after reload", b>>8)
	}
}

func TestStill_WatchStopIsIdempotent(t *testing.T) {
	dev := NewStill(writePNG(t, 2, 2))
	dev.Watch = true
	s, err := dev.Open(context.Background(), Constraints{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("first Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
