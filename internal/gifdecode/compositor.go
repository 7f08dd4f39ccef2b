package gifdecode

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"runtime"
	"time"
)

// MinDelay replaces a declared frame delay of zero.
const MinDelay = 100 * time.Millisecond

// Background is the colour the canvas starts with and is cleared to. GIFs
// are always shown on white, so true transparency is never preserved.
var Background = color.RGBA{0xff, 0xff, 0xff, 0xff}

// Frame is one fully resolved, displayable image.
type Frame struct {
	// Pixels covers the whole logical screen.
	Pixels *image.RGBA
	Delay  time.Duration
}

// Options tunes compositing.
type Options struct {
	// MinDelay replaces zero delays. Defaults to MinDelay.
	MinDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinDelay <= 0 {
		o.MinDelay = MinDelay
	}
	return o
}

// Composite replays the descriptors onto a running canvas and returns one
// full-canvas frame per descriptor. Frames are produced strictly in order
// because each one depends on the canvas left behind by the one before.
func Composite(ctx context.Context, img *Image, opts Options) ([]Frame, error) {
	opts = opts.withDefaults()

	rect := image.Rect(0, 0, img.Width, img.Height)
	canvas := image.NewRGBA(rect)
	fill(canvas, rect)

	// saved holds the canvas as it was right before the most recent
	// DisposalPrevious frame was drawn.
	var saved *image.RGBA

	frames := make([]Frame, 0, len(img.Descriptors))

	for i, desc := range img.Descriptors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i > 0 {
			prev := img.Descriptors[i-1]
			switch prev.Disposal {
			case DisposalBackground:
				fill(canvas, prev.Bounds().Intersect(rect))
			case DisposalPrevious:
				if saved != nil {
					copy(canvas.Pix, saved.Pix)
				}
			}
		}

		if desc.Disposal == DisposalPrevious {
			if saved == nil {
				saved = image.NewRGBA(rect)
			}
			copy(saved.Pix, canvas.Pix)
		}

		region := desc.Bounds().Intersect(rect)
		draw.Draw(canvas, region, desc.Patch, region.Min, draw.Over)

		frames = append(frames, Frame{
			Pixels: cloneRGBA(canvas),
			Delay:  frameDelay(desc.DelayMs, opts.MinDelay),
		})
	}

	return frames, nil
}

// DecodeFrames decodes and composites data in one call. It yields to the
// scheduler once between parsing and compositing so a large decode does not
// hog the processor.
func DecodeFrames(ctx context.Context, data []byte, opts Options) (*Image, []Frame, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}

	runtime.Gosched()

	frames, err := Composite(ctx, img, opts)
	if err != nil {
		return nil, nil, err
	}
	return img, frames, nil
}

func frameDelay(delayMs int, minDelay time.Duration) time.Duration {
	if delayMs <= 0 {
		return minDelay
	}
	return time.Duration(delayMs) * time.Millisecond
}

func fill(dst *image.RGBA, r image.Rectangle) {
	draw.Draw(dst, r, &image.Uniform{C: Background}, image.Point{}, draw.Src)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
