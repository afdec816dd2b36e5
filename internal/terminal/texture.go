// Package terminal implements textures for a true-color terminal. A texture
// is drawn with upper half block characters, two image rows per text line.
package terminal

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"github.com/wusyong/web0"
)

const (
	halfBlock = "▀"
	reset     = "\x1b[0m"
)

type texture struct {
	img *image.RGBA
	// rendered caches the last drawing, keyed by its size.
	width, height int
	rendered      string
}

// Allocator keeps textures in memory and draws them as ANSI text.
type Allocator struct {
	mu       sync.Mutex
	next     web0.TextureHandle
	textures map[web0.TextureHandle]*texture
}

var _ web0.TextureAllocator = (*Allocator)(nil)

// NewAllocator creates an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		textures: make(map[web0.TextureHandle]*texture),
	}
}

// Allocate stores a copy of the image's pixels.
func (a *Allocator) Allocate(img *web0.PixelBuffer) web0.TextureHandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	pixels := image.NewRGBA(img.Pixels.Bounds())
	draw.Draw(pixels, pixels.Bounds(), img.Pixels, img.Pixels.Bounds().Min, draw.Src)

	a.next++
	a.textures[a.next] = &texture{img: pixels}

	return a.next
}

// Release drops the texture. Unknown handles are ignored.
func (a *Allocator) Release(h web0.TextureHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.textures, h)
}

// Live returns the number of allocated textures.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.textures)
}

// Draw renders the texture scaled to width x height pixels. The result has
// (height+1)/2 lines. Drawing an unknown handle returns "".
func (a *Allocator) Draw(h web0.TextureHandle, width, height int) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.textures[h]
	if !ok || width <= 0 || height <= 0 {
		return ""
	}

	if t.rendered != "" && t.width == width && t.height == height {
		return t.rendered
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), t.img, t.img.Bounds(), draw.Src, nil)

	t.width, t.height = width, height
	t.rendered = halfBlocks(scaled)

	return t.rendered
}

func halfBlocks(img *image.RGBA) string {
	var sb strings.Builder

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}

		for x := b.Min.X; x < b.Max.X; x++ {
			top := img.RGBAAt(x, y)
			sb.WriteString(fmt.Sprintf("\x1b[38;2;%d;%d;%dm", top.R, top.G, top.B))

			if y+1 < b.Max.Y {
				bottom := img.RGBAAt(x, y+1)
				sb.WriteString(fmt.Sprintf("\x1b[48;2;%d;%d;%dm", bottom.R, bottom.G, bottom.B))
			} else {
				sb.WriteString("\x1b[49m")
			}

			sb.WriteString(halfBlock)
		}

		sb.WriteString(reset)
	}

	return sb.String()
}
