package terminal

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wusyong/web0"
)

func solid(width, height int, c color.RGBA) *web0.PixelBuffer {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.SetRGBA(x, y, c)
		}
	}

	return &web0.PixelBuffer{Pixels: img, Width: width, Height: height}
}

func TestAllocator_AllocateRelease(t *testing.T) {
	a := NewAllocator()

	h1 := a.Allocate(solid(2, 2, color.RGBA{R: 255, A: 255}))
	h2 := a.Allocate(solid(2, 2, color.RGBA{G: 255, A: 255}))
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, a.Live())

	a.Release(h1)
	a.Release(h1)
	assert.Equal(t, 1, a.Live())
	assert.Equal(t, "", a.Draw(h1, 2, 2))
}

func TestAllocator_Draw(t *testing.T) {
	a := NewAllocator()
	h := a.Allocate(solid(4, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255}))

	out := a.Draw(h, 4, 3)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, 4, strings.Count(lines[0], halfBlock))
	assert.Contains(t, lines[0], "\x1b[38;2;10;20;30m")
	assert.Contains(t, lines[0], "\x1b[48;2;10;20;30m")
	assert.Contains(t, lines[1], "\x1b[49m", "an odd last row has no bottom pixel")

	assert.Equal(t, out, a.Draw(h, 4, 3))
	assert.Equal(t, "", a.Draw(h, 0, 3))
}

func TestAllocator_CopiesPixels(t *testing.T) {
	a := NewAllocator()
	img := solid(1, 2, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	h := a.Allocate(img)

	img.Pixels.SetRGBA(0, 0, color.RGBA{R: 200, A: 255})

	assert.Contains(t, a.Draw(h, 1, 2), "\x1b[38;2;1;2;3m")
}
