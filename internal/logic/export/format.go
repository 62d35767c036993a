package export

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"math"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"

	"github.com/cjeanneret/FilterCam/internal/frame"
)

// Format is an image encoding supported by the exporter.
type Format int

const (
	PNG Format = iota
	JPEG
	WEBP
)

// DefaultJPEGQuality is used when a JPEG request carries no quality.
const DefaultJPEGQuality = 0.9

// ParseFormat converts "png", "jpeg"/"jpg" or "webp" (case-insensitive,
// optional leading dot) into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png", "":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "webp":
		return WEBP, nil
	}
	return PNG, fmt.Errorf("unsupported image format %q", s)
}

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case WEBP:
		return "webp"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// MIME returns the media type of the format.
func (f Format) MIME() string {
	return "image/" + f.String()
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// SuggestedName builds "<base>.<ext>" from a user-supplied filename.
// Directory components are dropped and an empty name becomes DefaultFilename.
// A matching extension already present is not repeated.
func SuggestedName(filename string, f Format) string {
	base := strings.TrimSpace(filename)
	base = filepath.Base(filepath.ToSlash(base))
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if base == "" || base == "." || base == "/" || base == ".." {
		base = DefaultFilename
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == f.Ext() || (f == JPEG && ext == ".jpg") {
		return base
	}
	return base + f.Ext()
}

// Encode serializes b in format f. quality (0, 1] applies to JPEG only.
func Encode(b *frame.Buffer, f Format, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	img := b.RGBA()
	switch f {
	case PNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
			return nil, err
		}
	case WEBP:
		if err := nativewebp.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported image format %v", f)
	}
	return buf.Bytes(), nil
}

func jpegQuality(q float64) int {
	if q <= 0 || math.IsNaN(q) {
		q = DefaultJPEGQuality
	}
	v := int(math.Round(q * 100))
	if v < 1 {
		v = 1
	}
	if v > 100 {
		v = 100
	}
	return v
}
