package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/FilterCam/internal/config"
	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/frame"
	"github.com/cjeanneret/FilterCam/internal/hw/camera"
	"github.com/cjeanneret/FilterCam/internal/hw/gpio"
	"github.com/cjeanneret/FilterCam/internal/logic/booth"
	"github.com/cjeanneret/FilterCam/internal/logic/export"
	"github.com/cjeanneret/FilterCam/internal/logic/filter"
	"github.com/cjeanneret/FilterCam/internal/logic/geometry"
	"github.com/cjeanneret/FilterCam/internal/web"
)

// Largest frame pushed to browsers; the full-resolution frame is kept for capture.
const (
	feedMaxWidth  = 960
	feedMaxHeight = 540
)

// defaultOutputDir receives headless captures when export.output_dir is empty.
const defaultOutputDir = "photos"

// overrides are CLI values applied on top of the config file.
// Zero values mean "use config default".
type overrides struct {
	Filter    string
	PixelSize int
	Mirror    bool
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web UI on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	filterName := flag.String("filter", "", "override initial filter (none, grayscale, sepia, invert, saturate, blur, brightness, contrast, halftone, pixelate)")
	pixelSize := flag.Int("pixel_size", 0, "override initial pixel size (1-64)")
	mirror := flag.Bool("mirror", false, "start mirrored")
	shot := flag.Bool("shot", false, "headless: take one photo, save it to export.output_dir and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied)
	if err := validateCLIOverrides(*filterName, *pixelSize); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides{Filter: *filterName, PixelSize: *pixelSize, Mirror: *mirror})

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if err := run(ctx, cfg, webPort.port(), *shot); err != nil {
		// Deferred releases inside run have already happened
		cancel()
		log.Fatalf("filtercam: %v", err)
	}
}

// run wires the booth and blocks until ctx is cancelled or a component fails.
// The camera is released on every return path.
func run(ctx context.Context, cfg *config.Config, port int, shot bool) error {
	debug.Step(1, "Initializing camera")
	dev, err := newDeviceFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init camera: %w", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)

	var (
		broadcaster *web.StatusBroadcaster
		feed        *web.LiveFeed
		display     frame.Surface
		notify      func(booth.Event)
	)
	if port > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		// Reports the device's native size once Start renders the first frame
		feed = web.NewLiveFeed(cfg.Camera.IdealWidth, cfg.Camera.IdealHeight, feedMaxWidth, feedMaxHeight)
		display = feed
		notify = broadcaster.Notify
	} else {
		notify = func(e booth.Event) {
			if e.Level != booth.LevelState {
				log.Print(e.Msg)
			}
		}
	}

	b := booth.New(booth.Options{
		Device:              dev,
		Constraints:         camera.Constraints{IdealWidth: cfg.Camera.IdealWidth, IdealHeight: cfg.Camera.IdealHeight},
		Filter:              cfg.InitialFilter(),
		PixelSize:           cfg.Defaults.PixelSize,
		Mirrored:            cfg.Defaults.Mirrored,
		ResetFilterOnMirror: cfg.Defaults.ResetFilterOnMirror,
		Refresh:             cfg.RefreshInterval(),
		Display:             display,
		Notify:              notify,
	})
	defer b.Close()

	// Device acquisition failures are fatal and not retried
	debug.Step(2, "Acquiring camera")
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start camera: %w", err)
	}

	var saveDir *export.DirProvider
	if cfg.Export.OutputDir != "" || port == 0 || shot {
		dir := cfg.Export.OutputDir
		if dir == "" {
			dir = defaultOutputDir
		}
		saveDir = &export.DirProvider{Dir: dir, Overwrite: cfg.Export.Overwrite}
		debug.Value("Output dir", dir)
	}
	saveReq := export.Request{
		Format:   cfg.ExportFormat(),
		Filename: cfg.Export.Filename,
		Quality:  &cfg.Export.JPEGQuality,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(ctx)
	})

	if cfg.ButtonsEnabled() {
		debug.Step(3, "Initializing GPIO buttons")
		driver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			return fmt.Errorf("init GPIO: %w", err)
		}
		defer func() {
			if err := driver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
		onCapture := func() { captureOnly(b) }
		if port == 0 {
			// No screen to save from: the shutter button captures and saves
			onCapture = func() { captureAndSave(ctx, b, saveReq, saveDir) }
		}
		if err := watchButton(ctx, g, driver, "capture", cfg.Buttons.CapturePin, cfg.ButtonPoll(), onCapture); err != nil {
			return err
		}
		if err := watchButton(ctx, g, driver, "back", cfg.Buttons.BackPin, cfg.ButtonPoll(), func() { b.Back() }); err != nil {
			return err
		}
	}

	if port > 0 {
		staticFS, err := web.StaticFS()
		if err != nil {
			return err
		}
		ui := web.DefaultUIConfig()
		ui.DefaultFormat = cfg.ExportFormat().String()
		ui.DefaultFilename = cfg.Export.Filename
		if ui.DefaultFilename == "" {
			ui.DefaultFilename = export.DefaultFilename
		}
		ui.JPEGQuality = cfg.Export.JPEGQuality
		handlers := web.NewHandlers(broadcaster, b, feed, ui, saveDir, staticFS)
		srv := web.NewServer(fmt.Sprintf(":%d", port), handlers)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if shot {
		g.Go(func() error {
			defer stop()
			return singleShot(ctx, b, saveReq, saveDir)
		})
	}

	debug.Section("Running")
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	debug.Section("Shutdown")
	return err
}

// watchButton registers a GPIO button watcher when pin is wired.
func watchButton(ctx context.Context, g *errgroup.Group, d gpio.Driver, name string, pin int, poll time.Duration, onPress func()) error {
	if pin <= 0 {
		return nil
	}
	btn, err := gpio.NewButton(d, name, pin, poll)
	if err != nil {
		return fmt.Errorf("setup %s button: %w", name, err)
	}
	debug.Value(name+" button pin", pin)
	g.Go(func() error {
		err := btn.Watch(ctx, onPress)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return nil
}

func captureOnly(b *booth.Controller) {
	if _, err := b.Capture(); err != nil {
		debug.Error(err)
	}
}

// captureAndSave freezes the current frame, writes it and returns to live.
func captureAndSave(ctx context.Context, b *booth.Controller, req export.Request, p export.Provider) {
	if _, err := b.Capture(); err != nil {
		debug.Error(err)
		return
	}
	if _, err := b.Save(ctx, req, p); err != nil {
		debug.Error(err)
	}
	if _, err := b.Back(); err != nil {
		debug.Error(err)
	}
}

// singleShot waits for the first rendered frame, then captures and saves it.
func singleShot(ctx context.Context, b *booth.Controller, req export.Request, p export.Provider) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.Snapshot().Ticks > 0 {
			break
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	if _, err := b.Capture(); err != nil {
		return err
	}
	_, err := b.Save(ctx, req, p)
	return err
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(filterName string, pixelSize int) error {
	if filterName != "" {
		if _, err := filter.ParseKind(filterName); err != nil {
			return err
		}
	}
	if pixelSize != 0 && (pixelSize < geometry.MinCellSize || pixelSize > geometry.MaxCellSize) {
		return fmt.Errorf("pixel_size must be between %d and %d, got %d", geometry.MinCellSize, geometry.MaxCellSize, pixelSize)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.Filter != "" {
		cfg.Defaults.Filter = o.Filter
	}
	if o.PixelSize > 0 {
		cfg.Defaults.PixelSize = o.PixelSize
	}
	if o.Mirror {
		cfg.Defaults.Mirrored = true
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newDeviceFromConfig selects a camera implementation based on configuration.
func newDeviceFromConfig(cfg *config.Config) (camera.Device, error) {
	switch cfg.Camera.Type {
	case config.CameraTestPattern:
		return camera.NewTestPattern(2), nil
	case config.CameraStill:
		s := camera.NewStill(cfg.Camera.StillPath)
		s.Watch = cfg.Camera.WatchStill
		return s, nil
	case config.CameraGoCV:
		return camera.NewGoCV(cfg.Camera.DeviceID)
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}
