// Package gifdecode turns GIF bytes into full-canvas frames ready to display.
//
// Decoding happens in two steps. Decode parses the byte stream into frame
// descriptors, each a small patch with a position, delay and disposal method.
// Composite then replays the patches onto a running canvas, resolving
// disposal one frame in arrears, and snapshots the canvas after every patch so
// the player can draw any frame without knowing what came before it.
package gifdecode

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"image/gif"
)

// Disposal says what happens to a frame's region before the next frame is
// drawn.
type Disposal int

const (
	// DisposalNone leaves the frame in place.
	DisposalNone Disposal = iota
	// DisposalBackground clears the frame's region to the background.
	DisposalBackground
	// DisposalPrevious restores the canvas to how it was before the frame
	// was drawn.
	DisposalPrevious
)

func (d Disposal) String() string {
	switch d {
	case DisposalBackground:
		return "background"
	case DisposalPrevious:
		return "previous"
	default:
		return "none"
	}
}

var (
	// ErrNotGIF is returned when the buffer lacks the GIF signature.
	ErrNotGIF = errors.New("not a gif")
	// ErrNoFrames is returned for a well-formed GIF with no image blocks.
	ErrNoFrames = errors.New("gif contains no frames")
	// ErrInvalidSize is returned when the logical screen has no area.
	ErrInvalidSize = errors.New("gif has an empty logical screen")
)

// DecodeError reports a malformed or empty GIF byte stream.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decoding gif: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Descriptor is one logical frame as stored in the file.
type Descriptor struct {
	// Patch holds the frame's pixels. Its Rect is the frame's region on the
	// logical screen, so len(Patch.Pix) == width*height*4.
	Patch    *image.RGBA
	DelayMs  int
	Disposal Disposal
}

// Bounds returns the descriptor's region on the logical screen.
func (d Descriptor) Bounds() image.Rectangle {
	return d.Patch.Rect
}

// Image is a decoded GIF before compositing.
type Image struct {
	Width       int
	Height      int
	LoopCount   int
	Descriptors []Descriptor
}

// Decode parses a GIF byte buffer into frame descriptors. Any failure is
// returned as a *DecodeError.
func Decode(data []byte) (*Image, error) {
	if !hasMagic("GIF8?a", data) {
		return nil, &DecodeError{Err: ErrNotGIF}
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(g.Image) == 0 {
		return nil, &DecodeError{Err: ErrNoFrames}
	}

	width, height := g.Config.Width, g.Config.Height
	if width <= 0 || height <= 0 {
		// Some encoders leave the logical screen empty; fall back to the
		// union of the frame regions.
		var union image.Rectangle
		for _, frame := range g.Image {
			union = union.Union(frame.Bounds())
		}
		width, height = union.Max.X, union.Max.Y
	}
	if width <= 0 || height <= 0 {
		return nil, &DecodeError{Err: ErrInvalidSize}
	}

	img := &Image{
		Width:       width,
		Height:      height,
		LoopCount:   g.LoopCount,
		Descriptors: make([]Descriptor, 0, len(g.Image)),
	}

	for i, frame := range g.Image {
		delay := 0
		if i < len(g.Delay) {
			delay = g.Delay[i] * 10 // 100ths of a second
		}

		img.Descriptors = append(img.Descriptors, Descriptor{
			Patch:    patchPixels(frame),
			DelayMs:  delay,
			Disposal: disposalOf(g, i),
		})
	}

	return img, nil
}

// patchPixels converts a paletted frame into RGBA. Transparent palette
// entries become zero alpha so compositing can skip them.
func patchPixels(frame *image.Paletted) *image.RGBA {
	patch := image.NewRGBA(frame.Bounds())
	draw.Draw(patch, patch.Rect, frame, frame.Bounds().Min, draw.Src)
	return patch
}

func disposalOf(g *gif.GIF, i int) Disposal {
	if i >= len(g.Disposal) {
		return DisposalNone
	}
	switch g.Disposal[i] {
	case gif.DisposalBackground:
		return DisposalBackground
	case gif.DisposalPrevious:
		return DisposalPrevious
	default:
		// Unspecified (0) is treated the same as DisposalNone.
		return DisposalNone
	}
}

// hasMagic reports whether data starts with magic, where '?' matches any
// byte.
func hasMagic(magic string, data []byte) bool {
	if len(data) < len(magic) {
		return false
	}
	for i := 0; i < len(magic); i++ {
		if magic[i] != '?' && magic[i] != data[i] {
			return false
		}
	}
	return true
}
