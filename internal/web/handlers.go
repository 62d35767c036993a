package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/logic/booth"
	"github.com/cjeanneret/FilterCam/internal/logic/capture"
	"github.com/cjeanneret/FilterCam/internal/logic/export"
	"github.com/cjeanneret/FilterCam/internal/logic/filter"
	"github.com/cjeanneret/FilterCam/internal/logic/geometry"
	"github.com/cjeanneret/FilterCam/internal/logic/session"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 4 << 10

// Booth is the controller driven by the handlers (booth.Controller).
type Booth interface {
	SelectFilter(k filter.Kind) error
	ToggleMirror() bool
	SetPixelSize(n int) int
	Capture() (bool, error)
	Back() (bool, error)
	Frozen() (*capture.Frozen, error)
	Save(ctx context.Context, req export.Request, p export.Provider) (export.Ack, error)
	SetVisible(visible bool) error
	Snapshot() booth.State
}

// UIConfig holds the values the page needs to build its controls (from config).
type UIConfig struct {
	Filters         []string `json:"filters"`
	Formats         []string `json:"formats"`
	DefaultFormat   string   `json:"default_format"`
	DefaultFilename string   `json:"default_filename"`
	JPEGQuality     float64  `json:"jpeg_quality"`
	PixelSizeMin    int      `json:"pixel_size_min"`
	PixelSizeMax    int      `json:"pixel_size_max"`
	ServerSave      bool     `json:"server_save"`
}

// DefaultUIConfig lists every filter and format.
func DefaultUIConfig() UIConfig {
	ui := UIConfig{
		Formats:         []string{export.PNG.String(), export.JPEG.String(), export.WEBP.String()},
		DefaultFormat:   export.PNG.String(),
		DefaultFilename: export.DefaultFilename,
		JPEGQuality:     export.DefaultJPEGQuality,
		PixelSizeMin:    geometry.MinCellSize,
		PixelSizeMax:    geometry.MaxCellSize,
	}
	for _, k := range filter.Kinds() {
		ui.Filters = append(ui.Filters, k.String())
	}
	return ui
}

// SaveRequest is the body of POST /save.
type SaveRequest struct {
	Format      string   `json:"format"`
	Filename    string   `json:"filename"`
	Quality     *float64 `json:"quality,omitempty"`
	Destination string   `json:"destination"` // "download" (default) or "server"
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Booth       Booth
	Feed        *LiveFeed
	UI          UIConfig

	// SaveDir, if set, enables server-side saves ("destination": "server").
	SaveDir *export.DirProvider

	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, b Booth, feed *LiveFeed, ui UIConfig, saveDir *export.DirProvider, staticFS fs.FS) *Handlers {
	ui.ServerSave = saveDir != nil
	return &Handlers{
		Broadcaster: broadcaster,
		Booth:       b,
		Feed:        feed,
		UI:          ui,
		SaveDir:     saveDir,
		staticFS:    staticFS,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleConfig returns the UI defaults as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.UI)
}

// HandleState returns the booth state as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Booth.Snapshot())
}

// HandleFilter handles POST /filter {"filter": "sepia"}.
func (h *Handlers) HandleFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter filter.Kind `json:"filter"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.Booth.SelectFilter(body.Filter); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Snapshot())
}

// HandleMirror handles POST /mirror (toggle).
func (h *Handlers) HandleMirror(w http.ResponseWriter, r *http.Request) {
	h.Booth.ToggleMirror()
	writeJSON(w, http.StatusOK, h.Booth.Snapshot())
}

// HandlePixelSize handles POST /pixel-size {"pixel_size": 12}.
func (h *Handlers) HandlePixelSize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PixelSize *int `json:"pixel_size"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.PixelSize == nil {
		http.Error(w, "pixel_size is required", http.StatusBadRequest)
		return
	}
	n := *body.PixelSize
	if n < h.UI.PixelSizeMin || n > h.UI.PixelSizeMax {
		http.Error(w, fmt.Sprintf("pixel_size must be between %d and %d", h.UI.PixelSizeMin, h.UI.PixelSizeMax), http.StatusBadRequest)
		return
	}
	h.Booth.SetPixelSize(n)
	writeJSON(w, http.StatusOK, h.Booth.Snapshot())
}

// HandleCapture handles POST /capture. Capturing while in preview is a no-op.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Booth.Capture(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Snapshot())
}

// HandleBack handles POST /back. Back while live is a no-op.
func (h *Handlers) HandleBack(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Booth.Back(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Snapshot())
}

// HandleVisibility handles POST /visibility {"visible": false}.
func (h *Handlers) HandleVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Visible *bool `json:"visible"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Visible == nil {
		http.Error(w, "visible is required", http.StatusBadRequest)
		return
	}
	if err := h.Booth.SetVisible(*body.Visible); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Snapshot())
}

// HandleSave handles POST /save. With the default "download" destination
// the encoded image is the response body; with "server" it is written to
// SaveDir and the acknowledgement is returned as JSON.
func (h *Handlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	var body SaveRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := h.exportRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch body.Destination {
	case "", "download":
		p := &export.MemoryProvider{}
		ack, err := h.Booth.Save(r.Context(), req, p)
		if err != nil {
			writeError(w, err)
			return
		}
		data, mime, ok := p.File(ack.Name)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", mime)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ack.Name))
		w.Write(data)

	case "server":
		if h.SaveDir == nil {
			http.Error(w, "server-side saving is not configured", http.StatusBadRequest)
			return
		}
		ack, err := h.Booth.Save(r.Context(), req, h.SaveDir)
		if err != nil {
			writeError(w, err)
			return
		}
		if ack.Cancelled {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    ack.Name,
			"mime":    ack.MIME,
			"bytes":   ack.Bytes,
			"message": booth.MsgSaved,
		})

	default:
		http.Error(w, fmt.Sprintf("unknown destination %q", body.Destination), http.StatusBadRequest)
	}
}

func (h *Handlers) exportRequest(body SaveRequest) (export.Request, error) {
	f := body.Format
	if f == "" {
		f = h.UI.DefaultFormat
	}
	format, err := export.ParseFormat(f)
	if err != nil {
		return export.Request{}, err
	}
	q := body.Quality
	if q == nil && h.UI.JPEGQuality > 0 {
		v := h.UI.JPEGQuality
		q = &v
	}
	if q != nil && (math.IsNaN(*q) || *q <= 0 || *q > 1) {
		return export.Request{}, fmt.Errorf("quality must be in (0, 1], got %g", *q)
	}
	name := body.Filename
	if name == "" {
		name = h.UI.DefaultFilename
	}
	return export.Request{Format: format, Filename: name, Quality: q}, nil
}

// HandleFrozen serves the latest capture as JPEG.
func (h *Handlers) HandleFrozen(w http.ResponseWriter, r *http.Request) {
	fz, err := h.Booth.Frozen()
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := export.Encode(fz.Buffer, export.JPEG, export.DefaultJPEGQuality)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", `"`+fz.ID+`"`)
	w.Write(data)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	// Browsers resend the last seen id when they reconnect
	after, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	sub := h.Broadcaster.Subscribe(after)
	defer sub.Close()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", evt.Seq, evt.JSON())
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps booth errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, capture.ErrNoCapture):
		status = http.StatusConflict
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, booth.ErrNotStarted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, export.ErrExportFailure):
		msg = booth.MsgSaveFailed
	}
	if status >= 500 {
		debug.Error(err)
	}
	http.Error(w, msg, status)
}
