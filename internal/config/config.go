package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/FilterCam/internal/logic/export"
	"github.com/cjeanneret/FilterCam/internal/logic/filter"
)

// MaxConfigFileBytes caps the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// Camera types
const (
	CameraTestPattern = "test_pattern"
	CameraStill       = "still"
	CameraGoCV        = "gocv"
)

// CameraConfig selects and tunes the video device.
// Type selects a concrete implementation (e.g., "test_pattern").
type CameraConfig struct {
	Type        string `yaml:"type"`         // test_pattern, still or gocv
	DeviceID    int    `yaml:"device_id"`    // gocv: /dev/videoN
	StillPath   string `yaml:"still_path"`   // still: image file served as the feed
	WatchStill  bool   `yaml:"watch_still"`  // still: reload the image when the file changes
	IdealWidth  int    `yaml:"ideal_width"`  // requested resolution, device may differ
	IdealHeight int    `yaml:"ideal_height"` // requested resolution, device may differ
	FPS         int    `yaml:"fps"`          // render loop refresh rate
}

// DefaultsConfig contains the initial session state and generic parameters.
type DefaultsConfig struct {
	Filter              string `yaml:"filter"`                 // initial filter (none, grayscale, ..., pixelate)
	PixelSize           int    `yaml:"pixel_size"`             // initial pixel size slider value (1-64)
	Mirrored            bool   `yaml:"mirrored"`               // start mirrored
	ResetFilterOnMirror bool   `yaml:"reset_filter_on_mirror"` // toggling mirror selects filter "none"
	DebugLevel          int    `yaml:"debug_level"`            // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO            bool   `yaml:"mock_gpio"`              // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// ExportConfig holds the save dialog defaults.
type ExportConfig struct {
	Format      string  `yaml:"format"`       // png, jpeg or webp
	Filename    string  `yaml:"filename"`     // default filename without extension
	JPEGQuality float64 `yaml:"jpeg_quality"` // 0 < q <= 1
	OutputDir   string  `yaml:"output_dir"`   // server-side save directory; empty = browser download only
	Overwrite   bool    `yaml:"overwrite"`    // replace existing files in output_dir
}

// ButtonsConfig wires optional physical buttons (BCM pin numbers, 0 = not used).
type ButtonsConfig struct {
	CapturePin int `yaml:"capture_pin"`
	BackPin    int `yaml:"back_pin"`
	PollMs     int `yaml:"poll_ms"`
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Export   ExportConfig   `yaml:"export"`
	Buttons  ButtonsConfig  `yaml:"buttons"`
}

// ValidateConfigPath checks that path names a .yaml file directly inside a
// "configs" directory and contains no ".." component.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	// Camera
	switch c.Camera.Type {
	case "":
		c.Camera.Type = CameraTestPattern
	case CameraTestPattern, CameraGoCV:
	case CameraStill:
		if c.Camera.StillPath == "" {
			return fmt.Errorf("camera.still_path is required for camera type %q", CameraStill)
		}
	default:
		return fmt.Errorf("unsupported camera.type %q", c.Camera.Type)
	}
	if c.Camera.DeviceID < 0 {
		return fmt.Errorf("camera.device_id must be >= 0, got %d", c.Camera.DeviceID)
	}
	if c.Camera.IdealWidth < 0 || c.Camera.IdealHeight < 0 {
		return fmt.Errorf("camera ideal size must be positive, got %dx%d", c.Camera.IdealWidth, c.Camera.IdealHeight)
	}
	if c.Camera.IdealWidth == 0 {
		c.Camera.IdealWidth = 1280
	}
	if c.Camera.IdealHeight == 0 {
		c.Camera.IdealHeight = 720
	}
	if c.Camera.FPS <= 0 {
		c.Camera.FPS = 30
	}
	if c.Camera.FPS > 120 {
		return fmt.Errorf("camera.fps must be <= 120, got %d", c.Camera.FPS)
	}

	// Defaults
	if c.Defaults.Filter == "" {
		c.Defaults.Filter = "none"
	}
	if _, err := filter.ParseKind(c.Defaults.Filter); err != nil {
		return fmt.Errorf("defaults.filter: %w", err)
	}
	if c.Defaults.PixelSize == 0 {
		c.Defaults.PixelSize = 8 // reasonable default
	}
	if c.Defaults.PixelSize < 1 || c.Defaults.PixelSize > 64 {
		return fmt.Errorf("defaults.pixel_size must be between 1 and 64, got %d", c.Defaults.PixelSize)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}

	// Export
	if c.Export.Format == "" {
		c.Export.Format = "png"
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	if q := c.Export.JPEGQuality; math.IsNaN(q) || q < 0 || q > 1 {
		return fmt.Errorf("export.jpeg_quality must be between 0 and 1, got %g", q)
	}
	if c.Export.JPEGQuality == 0 {
		c.Export.JPEGQuality = 0.9
	}

	// Buttons
	if c.Buttons.CapturePin < 0 || c.Buttons.BackPin < 0 {
		return errors.New("buttons pins must be >= 0")
	}
	if c.Buttons.CapturePin != 0 && c.Buttons.CapturePin == c.Buttons.BackPin {
		return fmt.Errorf("buttons.capture_pin and buttons.back_pin must differ, both are %d", c.Buttons.CapturePin)
	}
	if c.Buttons.PollMs <= 0 {
		c.Buttons.PollMs = 20
	}
	return nil
}

// RefreshInterval returns the render loop period derived from camera.fps.
func (c *Config) RefreshInterval() time.Duration {
	return time.Second / time.Duration(c.Camera.FPS)
}

// InitialFilter returns the configured start filter.
func (c *Config) InitialFilter() filter.Kind {
	k, _ := filter.ParseKind(c.Defaults.Filter)
	return k
}

// ExportFormat returns the configured default save format.
func (c *Config) ExportFormat() export.Format {
	f, _ := export.ParseFormat(c.Export.Format)
	return f
}

// ButtonPoll returns the GPIO polling interval.
func (c *Config) ButtonPoll() time.Duration {
	return time.Duration(c.Buttons.PollMs) * time.Millisecond
}

// ButtonsEnabled reports whether at least one physical button is wired.
func (c *Config) ButtonsEnabled() bool {
	return c.Buttons.CapturePin > 0 || c.Buttons.BackPin > 0
}
