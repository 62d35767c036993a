package web

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, h *Handlers) *Server {
	return &Server{
		addr:     addr,
		handlers: h,
	}
}

// StaticFS returns the embedded static files rooted at static/.
func StaticFS() (fs.FS, error) {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("web: sub static fs: %w", err)
	}
	return sub, nil
}

// Router returns an http.Handler with all routes registered.
func (s *Server) Router() http.Handler {
	h := s.handlers
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", h.ServeIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))

	r.Get("/config", h.HandleConfig)
	r.Get("/state", h.HandleState)
	r.Get("/status/stream", h.HandleStatusStream)

	r.Get("/frame.jpg", h.Feed.ServeJPEG)
	r.Get("/frozen.jpg", h.HandleFrozen)
	r.Get("/live", h.Feed.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/filter", h.HandleFilter)
		r.Post("/pixel-size", h.HandlePixelSize)
		r.Post("/visibility", h.HandleVisibility)
		r.Post("/save", h.HandleSave)
	})
	r.Post("/mirror", h.HandleMirror)
	r.Post("/capture", h.HandleCapture)
	r.Post("/back", h.HandleBack)

	return r
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Streams (SSE, websocket) end when ctx is cancelled
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
