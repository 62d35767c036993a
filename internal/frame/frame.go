// Package frame holds the fixed-size RGBA pixel surfaces the rest of the
// application renders into: the live frame and the frozen capture.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrSizeMismatch is returned when two buffers of different dimensions are combined.
var ErrSizeMismatch = errors.New("frame: size mismatch")

// Buffer is a rectangular pixel surface stored as row-major RGBA bytes
// (4 bytes per pixel, stride = 4*Width). Its dimensions never change.
type Buffer struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed (transparent black) buffer.
func New(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// FromImage converts any image into a new buffer with the image's size.
func FromImage(img image.Image) *Buffer {
	b := img.Bounds()
	buf := New(b.Dx(), b.Dy())
	draw.Draw(buf.RGBA(), buf.RGBA().Bounds(), img, b.Min, draw.Src)
	return buf
}

// RGBA returns an *image.RGBA view sharing the buffer's pixel memory.
func (b *Buffer) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Bounds returns the buffer rectangle anchored at the origin.
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Width: b.Width, Height: b.Height, Pix: make([]byte, len(b.Pix))}
	copy(c.Pix, b.Pix)
	return c
}

// CopyFrom overwrites b with the pixels of src. Both must have the same size.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src.Width != b.Width || src.Height != b.Height {
		return fmt.Errorf("%w: %dx%d into %dx%d", ErrSizeMismatch, src.Width, src.Height, b.Width, b.Height)
	}
	copy(b.Pix, src.Pix)
	return nil
}

// DrawScaled paints img over the whole buffer. When img has a different size it is
// stretched with nearest-neighbour sampling, like drawing a video element onto a
// canvas of a fixed size.
func (b *Buffer) DrawScaled(img image.Image) {
	dst := b.RGBA()
	src := img.Bounds()
	if src.Dx() == b.Width && src.Dy() == b.Height {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
		return
	}
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
}

func (b *Buffer) offset(x, y int) int {
	return (y*b.Width + x) * 4
}

// In reports whether (x, y) lies inside the buffer.
func (b *Buffer) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.Width && y < b.Height
}

// At returns the pixel at (x, y). Out-of-range coordinates return the zero colour.
func (b *Buffer) At(x, y int) color.RGBA {
	if !b.In(x, y) {
		return color.RGBA{}
	}
	i := b.offset(x, y)
	p := b.Pix[i : i+4 : i+4]
	return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// Set writes the pixel at (x, y). Out-of-range coordinates are ignored.
func (b *Buffer) Set(x, y int, c color.RGBA) {
	if !b.In(x, y) {
		return
	}
	i := b.offset(x, y)
	p := b.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

// Fill paints every pixel with c.
func (b *Buffer) Fill(c color.RGBA) {
	for i := 0; i+3 < len(b.Pix); i += 4 {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// FillRect paints the intersection of r and the buffer with c.
func (b *Buffer) FillRect(r image.Rectangle, c color.RGBA) {
	r = r.Intersect(b.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := b.offset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
			i += 4
		}
	}
}

// Equal reports whether both buffers have the same size and identical pixels.
func (b *Buffer) Equal(o *Buffer) bool {
	if o == nil || b.Width != o.Width || b.Height != o.Height {
		return false
	}
	return bytes.Equal(b.Pix, o.Pix)
}

// Thumbnail returns a copy of the buffer scaled to fit within maxW x maxH,
// smoothed with an approximate bilinear filter. Buffers that already fit are cloned.
func (b *Buffer) Thumbnail(maxW, maxH int) *Buffer {
	if b.Width <= maxW && b.Height <= maxH || b.Width == 0 || b.Height == 0 {
		return b.Clone()
	}
	w, h := maxW, b.Height*maxW/b.Width
	if h > maxH {
		h, w = maxH, b.Width*maxH/b.Height
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	t := New(w, h)
	draw.ApproxBiLinear.Scale(t.RGBA(), t.Bounds(), b.RGBA(), b.Bounds(), draw.Src, nil)
	return t
}

// Surface is an addressable display the host renders: the live feed while
// capturing, the frozen capture while previewing.
type Surface interface {
	Width() int
	Height() int
	DrawPixels(b *Buffer) error
}
