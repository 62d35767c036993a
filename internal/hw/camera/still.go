package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/cjeanneret/FilterCam/internal/debug"
)

// Still is a Device that serves one decoded image file as every frame.
// png, jpeg, gif, webp, bmp and tiff are supported.
type Still struct {
	path string

	// Watch reloads the image whenever the file is rewritten, so a tethered
	// camera or another program can feed the booth. The stream keeps the
	// size of the first image; later images are scaled by the render loop.
	Watch bool
}

// NewStill creates a still-image device reading from path.
func NewStill(path string) *Still {
	return &Still{path: path}
}

func (s *Still) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, format, err := decodeFile(s.path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	debug.Info("Using STILL camera %s (%s, %dx%d)", s.path, format, b.Dx(), b.Dy())

	st := &stillStream{img: img, width: b.Dx(), height: b.Dy()}
	if s.Watch {
		if err := st.watch(s.path); err != nil {
			return nil, fmt.Errorf("watch %s: %w: %v", s.path, ErrDeviceUnavailable, err)
		}
	}
	return st, nil
}

func decodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, "", fmt.Errorf("open %s: %w", path, ErrPermissionDenied)
		}
		return nil, "", fmt.Errorf("open %s: %w: %v", path, ErrDeviceUnavailable, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w: %v", path, ErrDeviceUnavailable, err)
	}
	return img, format, nil
}

type stillStream struct {
	width, height int

	mu      sync.Mutex
	img     image.Image
	stopped bool
	reloads int

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// watch follows the parent directory rather than the file: writers that
// replace the file by rename would otherwise detach the watch.
func (s *stillStream) watch(path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}
	s.watcher = w
	s.done = make(chan struct{})
	target := filepath.Clean(path)

	go func() {
		defer close(s.done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.reload(path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				debug.Error(fmt.Errorf("still watcher: %w", err))
			}
		}
	}()
	return nil
}

// reload swaps in the new image. A partially written or unreadable file keeps
// the previous frame; the next write event retries.
func (s *stillStream) reload(path string) {
	img, _, err := decodeFile(path)
	if err != nil {
		debug.Verbose("Still reload skipped: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.img = img
	s.reloads++
	debug.Live("Still image reloaded (%dx%d)", img.Bounds().Dx(), img.Bounds().Dy())
}

// Reloads returns how many times the image was replaced since Open.
func (s *stillStream) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

func (s *stillStream) Width() int  { return s.width }
func (s *stillStream) Height() int { return s.height }

func (s *stillStream) CurrentFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, fmt.Errorf("still: %w: stream stopped", ErrDeviceUnavailable)
	}
	return s.img, nil
}

func (s *stillStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if s.watcher != nil {
		err := s.watcher.Close()
		<-s.done
		return err
	}
	return nil
}
