package capture

import (
	"encoding/json"
	"testing"

	"github.com/cjeanneret/FilterCam/internal/logic/filter"
)

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(filter.Kind(42), 0, true)
	got := s.Settings()
	if got.Filter != filter.None {
		t.Errorf("invalid kind should fall back to none, got %v", got.Filter)
	}
	if got.PixelSize != 1 {
		t.Errorf("PixelSize = %d, want clamped 1", got.PixelSize)
	}
	if !got.Mirrored {
		t.Error("Mirrored should be true")
	}
	if got.Mode != Live {
		t.Errorf("Mode = %v, want live", got.Mode)
	}
}

func TestSession_SetPixelSizeClamps(t *testing.T) {
	s := NewSession(filter.Pixelate, 8, false)
	cases := []struct{ in, want int }{
		{16, 16},
		{0, 1},
		{-3, 1},
		{64, 64},
		{99, 64},
	}
	for _, tc := range cases {
		if got := s.SetPixelSize(tc.in); got != tc.want {
			t.Errorf("SetPixelSize(%d) = %d, want %d", tc.in, got, tc.want)
		}
		if s.Settings().PixelSize != tc.want {
			t.Errorf("stored PixelSize = %d, want %d", s.Settings().PixelSize, tc.want)
		}
	}
}

func TestSession_ToggleMirrorKeepsFilter(t *testing.T) {
	s := NewSession(filter.Halftone, 8, false)
	if !s.ToggleMirror() {
		t.Error("first toggle should enable mirror")
	}
	if s.Settings().Filter != filter.Halftone {
		t.Errorf("filter changed to %v; mirror must compose with any filter", s.Settings().Filter)
	}
	if s.ToggleMirror() {
		t.Error("second toggle should disable mirror")
	}
}

func TestSession_ToggleMirrorResetOption(t *testing.T) {
	s := NewSession(filter.Sepia, 8, false)
	s.ResetFilterOnMirror(true)
	s.ToggleMirror()
	if got := s.Settings().Filter; got != filter.None {
		t.Errorf("filter = %v, want none with reset option", got)
	}
}

func TestSession_SelectFilterRejectsInvalid(t *testing.T) {
	s := NewSession(filter.None, 8, false)
	if err := s.SelectFilter(filter.Kind(-1)); err == nil {
		t.Error("expected error for invalid kind")
	}
	if err := s.SelectFilter(filter.Invert); err != nil {
		t.Fatal(err)
	}
	if s.Settings().Filter != filter.Invert {
		t.Errorf("filter = %v, want invert", s.Settings().Filter)
	}
}

func TestSettings_JSON(t *testing.T) {
	s := NewSession(filter.Pixelate, 12, true)
	data, err := json.Marshal(s.Settings())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"filter":"pixelate","pixel_size":12,"mirrored":true,"mode":"live"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
