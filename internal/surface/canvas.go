// Package surface holds the drawing targets the player presents frames to.
package surface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"sync"
)

// Background fills the canvas before the first frame and around letterboxed
// frames.
var Background = color.RGBA{0xff, 0xff, 0xff, 0xff}

// Canvas is an in-memory surface. Present is called from the player loop;
// Snapshot and EncodePNG may be called from any goroutine.
type Canvas struct {
	mu       sync.RWMutex
	img      *image.RGBA
	errMsg   string
	presents uint64
}

// NewCanvas creates a white canvas of the given size.
func NewCanvas(width, height int) *Canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Rect, &image.Uniform{C: Background}, image.Point{}, draw.Src)
	return &Canvas{img: img}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.img.Rect.Dx(), c.img.Rect.Dy()
}

// Present copies img into the canvas at its origin and clears any error.
func (c *Canvas) Present(img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()

	draw.Draw(c.img, c.img.Rect, &image.Uniform{C: Background}, image.Point{}, draw.Src)
	draw.Draw(c.img, img.Rect.Intersect(c.img.Rect), img, img.Rect.Min, draw.Src)
	c.errMsg = ""
	c.presents++
}

// ShowError records a message to display in place of the animation.
func (c *Canvas) ShowError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = msg
}

// Error returns the message set by ShowError, if any.
func (c *Canvas) Error() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// Presents returns how many frames have been presented.
func (c *Canvas) Presents() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presents
}

// Snapshot returns a copy of the current pixels.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := image.NewRGBA(c.img.Rect)
	copy(out.Pix, c.img.Pix)
	return out
}

// EncodePNG writes the current pixels to w as a PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, c.Snapshot()); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}
