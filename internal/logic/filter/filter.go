// Package filter implements the per-frame visual transforms: tonal colour
// remaps, pixelation, halftone dithering and the horizontal mirror.
package filter

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"

	"github.com/cjeanneret/FilterCam/internal/frame"
	"github.com/cjeanneret/FilterCam/internal/logic/geometry"
)

// Fixed tonal parameters.
const (
	SaturateChange   = 1.0 // saturate(200%)
	BlurRadius       = 5.0 // blur(5px)
	BrightnessChange = 0.5 // brightness(150%)
	ContrastChange   = 1.0 // contrast(200%)
)

var (
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}
)

// Apply runs filter k over src. param is the structural parameter
// (pixel size for Pixelate, dot spacing for Halftone) and is ignored by tonal filters.
//
// Tonal filters write their result back into src and return it. Structural
// filters return a new buffer and leave src untouched.
func Apply(src *frame.Buffer, k Kind, param int) *frame.Buffer {
	switch k {
	case Pixelate:
		return PixelateBuffer(src, param)
	case Halftone:
		return HalftoneBuffer(src, param)
	case None:
		return src
	}

	out := tonal(src.RGBA(), k)
	if out != nil {
		// bild always allocates; copy back so the buffer keeps its identity
		copy(src.Pix, out.Pix)
	}
	return src
}

func tonal(img *image.RGBA, k Kind) *image.RGBA {
	switch k {
	case Grayscale:
		return effect.Grayscale(img)
	case Sepia:
		return effect.Sepia(img)
	case Invert:
		return effect.Invert(img)
	case Saturate:
		return adjust.Saturation(img, SaturateChange)
	case Blur:
		return blur.Gaussian(img, BlurRadius)
	case Brightness:
		return adjust.Brightness(img, BrightnessChange)
	case Contrast:
		return adjust.Contrast(img, ContrastChange)
	default:
		return nil
	}
}

// Mirror returns a horizontally flipped copy of src.
func Mirror(src *frame.Buffer) *frame.Buffer {
	if src.Width == 0 || src.Height == 0 {
		return src.Clone()
	}
	flipped := transform.FlipH(src.RGBA())
	return &frame.Buffer{Width: src.Width, Height: src.Height, Pix: flipped.Pix}
}

// PixelateBuffer samples the top-left pixel of every size x size block and
// paints the whole block with it. Partial blocks on the right and bottom
// edges use the sample at their own origin. size is clamped to [1, 64];
// size 1 returns an unmodified copy.
func PixelateBuffer(src *frame.Buffer, size int) *frame.Buffer {
	grid := geometry.CalculateCellGrid(src.Width, src.Height, size)
	if grid.CellSize == 1 {
		return src.Clone()
	}

	out := frame.New(src.Width, src.Height)
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Columns; col++ {
			o := grid.Origin(col, row)
			out.FillRect(grid.Cell(col, row), src.At(o.X, o.Y))
		}
	}
	return out
}

// Luminance returns the normalized brightness of c in [0, 1]
// using the Rec. 601 weights.
func Luminance(c color.RGBA) float64 {
	l := (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
	return math.Max(0, math.Min(1, l))
}

// DotDiameter returns the halftone dot diameter for a cell of the given
// spacing whose sample has luminance l.
func DotDiameter(l float64, spacing int) float64 {
	l = math.Max(0, math.Min(1, l))
	return (1 - l) * float64(spacing)
}

// HalftoneBuffer replaces the image with black dots on a white background.
// Each spacing x spacing cell gets one disk centred in the cell whose
// diameter shrinks with the brightness of the cell's top-left pixel.
// A pixel is inked when its centre lies inside the disk.
func HalftoneBuffer(src *frame.Buffer, spacing int) *frame.Buffer {
	grid := geometry.CalculateCellGrid(src.Width, src.Height, spacing)

	out := frame.New(src.Width, src.Height)
	out.Fill(white)

	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Columns; col++ {
			o := grid.Origin(col, row)
			d := DotDiameter(Luminance(src.At(o.X, o.Y)), grid.CellSize)
			if d <= 0 {
				continue
			}
			cx, cy := grid.Center(col, row)
			fillDisk(out, grid.Cell(col, row), cx, cy, d/2)
		}
	}
	return out
}

// fillDisk inks the pixels of clip whose centres are within r of (cx, cy).
func fillDisk(b *frame.Buffer, clip image.Rectangle, cx, cy, r float64) {
	r2 := r * r
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		dy := float64(y) + 0.5 - cy
		for x := clip.Min.X; x < clip.Max.X; x++ {
			dx := float64(x) + 0.5 - cx
			if dx*dx+dy*dy <= r2 {
				b.Set(x, y, black)
			}
		}
	}
}
