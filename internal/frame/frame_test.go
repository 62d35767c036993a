package frame

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ZeroedPixels(t *testing.T) {
	b := New(3, 2)
	assert.Equal(t, 3, b.Width)
	assert.Equal(t, 2, b.Height)
	assert.Len(t, b.Pix, 3*2*4)
	for _, v := range b.Pix {
		require.Zero(t, v)
	}
}

func TestNew_NegativeSizeClamped(t *testing.T) {
	b := New(-1, 4)
	assert.Equal(t, 0, b.Width)
	assert.Empty(t, b.Pix)
}

func TestSetAt_RoundTrip(t *testing.T) {
	b := New(4, 4)
	c := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	b.Set(2, 3, c)
	assert.Equal(t, c, b.At(2, 3))
	assert.Equal(t, color.RGBA{}, b.At(3, 3))
}

func TestSetAt_OutOfRangeIgnored(t *testing.T) {
	b := New(2, 2)
	b.Set(-1, 0, color.RGBA{R: 1})
	b.Set(2, 0, color.RGBA{R: 1})
	assert.Equal(t, color.RGBA{}, b.At(5, 5))
	for _, v := range b.Pix {
		require.Zero(t, v)
	}
}

func TestRGBA_SharesMemory(t *testing.T) {
	b := New(2, 2)
	b.RGBA().SetRGBA(1, 1, color.RGBA{R: 200, A: 255})
	assert.Equal(t, uint8(200), b.At(1, 1).R)
}

func TestClone_IsDeep(t *testing.T) {
	b := New(2, 2)
	b.Fill(color.RGBA{R: 1, A: 255})
	c := b.Clone()
	c.Set(0, 0, color.RGBA{R: 9, A: 255})
	assert.Equal(t, uint8(1), b.At(0, 0).R)
	assert.False(t, b.Equal(c))
}

func TestCopyFrom_SizeMismatch(t *testing.T) {
	err := New(2, 2).CopyFrom(New(3, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSizeMismatch))
}

func TestCopyFrom_CopiesPixels(t *testing.T) {
	src := New(2, 2)
	src.Fill(color.RGBA{G: 77, A: 255})
	dst := New(2, 2)
	require.NoError(t, dst.CopyFrom(src))
	assert.True(t, dst.Equal(src))
}

func TestFromImage_OffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 7, 6))
	img.SetRGBA(5, 5, color.RGBA{R: 255, A: 255})
	b := FromImage(img)
	assert.Equal(t, 2, b.Width)
	assert.Equal(t, 1, b.Height)
	assert.Equal(t, uint8(255), b.At(0, 0).R)
}

func TestDrawScaled_StretchesSmallerImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{B: 255, A: 255})

	b := New(4, 2)
	b.DrawScaled(img)

	for y := 0; y < 2; y++ {
		assert.Equal(t, uint8(255), b.At(0, y).R)
		assert.Equal(t, uint8(255), b.At(1, y).R)
		assert.Equal(t, uint8(255), b.At(2, y).B)
		assert.Equal(t, uint8(255), b.At(3, y).B)
	}
}

func TestFillRect_Clipped(t *testing.T) {
	b := New(4, 4)
	b.FillRect(image.Rect(2, 2, 10, 10), color.RGBA{R: 5, A: 255})
	assert.Equal(t, uint8(5), b.At(3, 3).R)
	assert.Equal(t, uint8(0), b.At(1, 1).R)
}

func TestThumbnail_FitsBounds(t *testing.T) {
	b := New(1280, 720)
	th := b.Thumbnail(320, 320)
	assert.Equal(t, 320, th.Width)
	assert.Equal(t, 180, th.Height)

	small := New(10, 10)
	assert.True(t, small.Thumbnail(320, 320).Equal(small))
}
