// Package export encodes a frozen capture and writes it to a destination
// chosen by an external provider (file picker, directory, HTTP download).
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/cjeanneret/FilterCam/internal/debug"
	"github.com/cjeanneret/FilterCam/internal/frame"
)

// DefaultFilename is used when the save request carries no filename.
const DefaultFilename = "my_photo"

var (
	// ErrUserCancelled is returned by a Provider when the user declines to
	// pick a destination. Export turns it into Ack{Cancelled: true}.
	ErrUserCancelled = errors.New("export: user cancelled")
	// ErrExportFailure matches every *Failure with errors.Is.
	ErrExportFailure = errors.New("export failed")
)

// Failure reports an encode or write error. Nothing was committed.
type Failure struct {
	Stage string // "encode", "destination", "write" or "commit"
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("export failed during %s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is makes errors.Is(err, ErrExportFailure) true for any *Failure.
func (f *Failure) Is(target error) bool { return target == ErrExportFailure }

// Request describes one save action.
type Request struct {
	Format   Format
	Filename string
	Quality  *float64 // JPEG only; nil means DefaultJPEGQuality
}

// Ack is the non-error outcome of Export.
type Ack struct {
	Cancelled bool
	Name      string // suggested name given to the provider
	MIME      string
	Bytes     int
}

// Provider hands out write destinations (the user-facing picker).
type Provider interface {
	// RequestDestination returns ErrUserCancelled (possibly wrapped) when
	// the user declines.
	RequestDestination(ctx context.Context, suggestedName, mimeType string) (Sink, error)
}

// Sink receives the encoded image. Close commits the write.
type Sink interface {
	Write(p []byte) (int, error)
	Close() error
}

// Aborter is implemented by sinks that can discard a partial write.
type Aborter interface {
	Abort() error
}

// Export encodes frozen and writes it to a destination from p.
//
// The image is fully encoded before a destination is requested, and handed to
// the sink in a single write, so an encode failure never touches the
// destination and a write failure aborts it. A declined destination yields
// Ack{Cancelled: true} and a nil error. frozen is only read.
func Export(ctx context.Context, frozen *frame.Buffer, req Request, p Provider) (Ack, error) {
	name := SuggestedName(req.Filename, req.Format)
	ack := Ack{Name: name, MIME: req.Format.MIME()}

	if frozen == nil {
		return ack, &Failure{Stage: "encode", Err: errors.New("no image")}
	}
	quality := DefaultJPEGQuality
	if req.Quality != nil {
		quality = *req.Quality
	}
	data, err := Encode(frozen, req.Format, quality)
	if err != nil {
		return ack, &Failure{Stage: "encode", Err: err}
	}
	debug.Verbose("Encoded %s: %d bytes", name, len(data))

	if err := ctx.Err(); err != nil {
		return ack, &Failure{Stage: "destination", Err: err}
	}
	sink, err := p.RequestDestination(ctx, name, ack.MIME)
	if errors.Is(err, ErrUserCancelled) {
		debug.Live("Save of %s cancelled by user", name)
		ack.Cancelled = true
		return ack, nil
	}
	if err != nil {
		return ack, &Failure{Stage: "destination", Err: err}
	}

	n, err := sink.Write(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		abort(sink)
		return ack, &Failure{Stage: "write", Err: err}
	}
	if err := sink.Close(); err != nil {
		abort(sink)
		return ack, &Failure{Stage: "commit", Err: err}
	}

	ack.Bytes = len(data)
	debug.Export(name, len(data))
	return ack, nil
}

func abort(s Sink) {
	if a, ok := s.(Aborter); ok {
		if err := a.Abort(); err != nil {
			debug.Error(fmt.Errorf("abort partial export: %w", err))
		}
		return
	}
	_ = s.Close()
}
