package web

import (
	"bytes"
	"errors"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/frame"
)

// ErrNoFrame is returned by JPEG before the first frame was drawn.
var ErrNoFrame = errors.New("web: no frame yet")

// feedJPEGQuality trades detail for bandwidth on the live preview.
const feedJPEGQuality = 80

// LiveFeed is the display surface shown in the browser. It keeps only the
// latest frame: websocket clients that fall behind skip to the newest one.
type LiveFeed struct {
	maxW, maxH int

	mu            sync.Mutex
	width, height int
	latest  *frame.Buffer
	seq     uint64
	encoded []byte
	encSeq  uint64
	clients map[chan struct{}]struct{}

	upgrader websocket.Upgrader
}

// NewLiveFeed creates a surface that reports width x height until the first
// frame is drawn, and the drawn frame's size after that. Frames pushed to
// browsers are downscaled to fit maxW x maxH (0 = no limit).
func NewLiveFeed(width, height, maxW, maxH int) *LiveFeed {
	return &LiveFeed{
		width:   width,
		height:  height,
		maxW:    maxW,
		maxH:    maxH,
		clients: make(map[chan struct{}]struct{}),
	}
}

func (f *LiveFeed) Width() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width
}

func (f *LiveFeed) Height() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height
}

// DrawPixels publishes b as the current frame and wakes the clients.
// A frame identical to the previous one is not republished.
func (f *LiveFeed) DrawPixels(b *frame.Buffer) error {
	var img *frame.Buffer
	if f.maxW > 0 && f.maxH > 0 && (b.Width > f.maxW || b.Height > f.maxH) {
		img = b.Thumbnail(f.maxW, f.maxH)
	} else {
		img = b.Clone()
	}

	f.mu.Lock()
	f.width, f.height = b.Width, b.Height
	if f.latest != nil && f.latest.Equal(img) {
		f.mu.Unlock()
		return nil
	}
	f.latest = img
	f.seq++
	for ch := range f.clients {
		select {
		case ch <- struct{}{}:
		default:
			// client still busy with a previous frame
		}
	}
	f.mu.Unlock()
	return nil
}

// JPEG returns the latest frame encoded as JPEG and its sequence number.
// The encoding is shared by every caller until the next frame.
func (f *LiveFeed) JPEG() ([]byte, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return nil, 0, ErrNoFrame
	}
	if f.encoded == nil || f.encSeq != f.seq {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, f.latest.RGBA(), &jpeg.Options{Quality: feedJPEGQuality}); err != nil {
			return nil, 0, err
		}
		f.encoded = buf.Bytes()
		f.encSeq = f.seq
	}
	return f.encoded, f.seq, nil
}

// Clients returns the number of connected websocket clients.
func (f *LiveFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *LiveFeed) subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.clients[ch] = struct{}{}
	if f.latest != nil {
		ch <- struct{}{}
	}
	f.mu.Unlock()
	return ch, func() {
		f.mu.Lock()
		delete(f.clients, ch)
		f.mu.Unlock()
	}
}

// ServeJPEG handles GET /frame.jpg.
func (f *LiveFeed) ServeJPEG(w http.ResponseWriter, r *http.Request) {
	data, _, err := f.JPEG()
	if errors.Is(err, ErrNoFrame) {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// ServeWS handles GET /live: every new frame is sent as one binary JPEG message.
func (f *LiveFeed) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Error(err)
		return
	}
	defer conn.Close()

	ch, unsub := f.subscribe()
	defer unsub()
	debug.Verbose("Live feed client connected (%s)", r.RemoteAddr)

	// Reader goroutine: detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var sent uint64
	for {
		select {
		case <-gone:
			debug.Verbose("Live feed client disconnected (%s)", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case <-ch:
		}

		data, seq, err := f.JPEG()
		if err != nil || seq == sent {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			debug.Verbose("Live feed write failed: %v", err)
			return
		}
		sent = seq
	}
}
