package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/FilterCam/internal/logic/export"
	"github.com/cjeanneret/FilterCam/internal/logic/filter"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	// Create a real configs/ directory so filepath.Abs resolves correctly.
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
	if err := ValidateConfigPath("configs/default.yaml"); err != nil {
		t.Errorf("relative configs path rejected: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
		"configs/../configs/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Should not panic; error or success is OS-dependent, but must not crash.
	_ = ValidateConfigPath(long)
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
camera:
  type: "test_pattern"
  ideal_width: 640
  ideal_height: 480
  fps: 25
defaults:
  filter: "sepia"
  pixel_size: 12
  mirrored: true
  reset_filter_on_mirror: true
  debug_level: 2
  mock_gpio: true
export:
  format: "jpeg"
  filename: "booth"
  jpeg_quality: 0.8
  output_dir: "photos"
buttons:
  capture_pin: 17
  back_pin: 27
  poll_ms: 10
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Type != CameraTestPattern {
		t.Errorf("camera.type = %q, want %q", cfg.Camera.Type, CameraTestPattern)
	}
	if cfg.Camera.IdealWidth != 640 || cfg.Camera.IdealHeight != 480 {
		t.Errorf("ideal size = %dx%d, want 640x480", cfg.Camera.IdealWidth, cfg.Camera.IdealHeight)
	}
	if cfg.RefreshInterval() != 40*time.Millisecond {
		t.Errorf("RefreshInterval = %v, want 40ms", cfg.RefreshInterval())
	}
	if cfg.InitialFilter() != filter.Sepia {
		t.Errorf("InitialFilter = %v, want sepia", cfg.InitialFilter())
	}
	if cfg.Defaults.PixelSize != 12 {
		t.Errorf("pixel_size = %d, want 12", cfg.Defaults.PixelSize)
	}
	if !cfg.Defaults.Mirrored || !cfg.Defaults.ResetFilterOnMirror {
		t.Error("mirrored and reset_filter_on_mirror should be true")
	}
	if cfg.ExportFormat() != export.JPEG {
		t.Errorf("ExportFormat = %v, want jpeg", cfg.ExportFormat())
	}
	if cfg.Export.JPEGQuality != 0.8 {
		t.Errorf("jpeg_quality = %v, want 0.8", cfg.Export.JPEGQuality)
	}
	if cfg.Export.OutputDir != "photos" {
		t.Errorf("output_dir = %q, want photos", cfg.Export.OutputDir)
	}
	if !cfg.ButtonsEnabled() {
		t.Error("buttons should be enabled")
	}
	if cfg.ButtonPoll() != 10*time.Millisecond {
		t.Errorf("ButtonPoll = %v, want 10ms", cfg.ButtonPoll())
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Type != CameraTestPattern {
		t.Errorf("camera.type default = %q, want %q", cfg.Camera.Type, CameraTestPattern)
	}
	if cfg.Camera.IdealWidth != 1280 || cfg.Camera.IdealHeight != 720 {
		t.Errorf("ideal size default = %dx%d, want 1280x720", cfg.Camera.IdealWidth, cfg.Camera.IdealHeight)
	}
	if cfg.Camera.FPS != 30 {
		t.Errorf("fps default = %d, want 30", cfg.Camera.FPS)
	}
	if cfg.InitialFilter() != filter.None {
		t.Errorf("filter default = %v, want none", cfg.InitialFilter())
	}
	if cfg.Defaults.PixelSize != 8 {
		t.Errorf("pixel_size default = %d, want 8", cfg.Defaults.PixelSize)
	}
	if cfg.Defaults.ResetFilterOnMirror {
		t.Error("reset_filter_on_mirror should default to false")
	}
	if cfg.ExportFormat() != export.PNG {
		t.Errorf("format default = %v, want png", cfg.ExportFormat())
	}
	if cfg.Export.JPEGQuality != 0.9 {
		t.Errorf("jpeg_quality default = %v, want 0.9", cfg.Export.JPEGQuality)
	}
	if cfg.ButtonsEnabled() {
		t.Error("buttons should be disabled by default")
	}
	if cfg.Buttons.PollMs != 20 {
		t.Errorf("poll_ms default = %d, want 20", cfg.Buttons.PollMs)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown camera", "camera:\n  type: \"nikon\"\n"},
		{"still without path", "camera:\n  type: \"still\"\n"},
		{"negative device", "camera:\n  device_id: -1\n"},
		{"negative width", "camera:\n  ideal_width: -640\n"},
		{"fps too high", "camera:\n  fps: 500\n"},
		{"unknown filter", "defaults:\n  filter: \"vignette\"\n"},
		{"pixel size too large", "defaults:\n  pixel_size: 65\n"},
		{"pixel size negative", "defaults:\n  pixel_size: -1\n"},
		{"debug level", "defaults:\n  debug_level: 9\n"},
		{"unknown format", "export:\n  format: \"gif\"\n"},
		{"quality too high", "export:\n  jpeg_quality: 1.5\n"},
		{"quality negative", "export:\n  jpeg_quality: -0.1\n"},
		{"negative pin", "buttons:\n  capture_pin: -3\n"},
		{"same pins", "buttons:\n  capture_pin: 17\n  back_pin: 17\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_StillCamera(t *testing.T) {
	path := writeConfig(t, "camera:\n  type: \"still\"\n  still_path: \"demo.png\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.StillPath != "demo.png" {
		t.Errorf("still_path = %q", cfg.Camera.StillPath)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
camera:
  type: "test_pattern"
unknown_section:
  foo: bar
`
	path := writeConfig(t, yaml)
	_, err := Load(path)
	if err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "nonexistent.yaml")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestLoad_RejectsPathOutsideConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for config outside configs/, got nil")
	}
}
