// Package giftest builds small synthetic GIFs for tests.
package giftest

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
)

// Palette used by every generated frame. Index 0 is transparent.
var Palette = color.Palette{
	color.RGBA{},
	color.RGBA{0xff, 0x00, 0x00, 0xff},
	color.RGBA{0x00, 0x00, 0xff, 0xff},
	color.RGBA{0x00, 0xff, 0x00, 0xff},
	color.RGBA{0x00, 0x00, 0x00, 0xff},
}

// Palette indices.
const (
	Transparent uint8 = iota
	Red
	Blue
	Green
	Black
)

// Frame describes one generated frame: a solid rectangle of one palette
// index.
type Frame struct {
	Bounds   image.Rectangle
	Index    uint8
	Delay    int // 100ths of a second
	Disposal byte
}

// Encode builds a GIF with the given logical size and frames.
func Encode(width, height int, frames []Frame) ([]byte, error) {
	g := &gif.GIF{
		Config: image.Config{Width: width, Height: height},
	}

	for _, f := range frames {
		img := image.NewPaletted(f.Bounds, Palette)
		for i := range img.Pix {
			img.Pix[i] = f.Index
		}
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, f.Delay)
		g.Disposal = append(g.Disposal, f.Disposal)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Solid builds an n-frame GIF where every frame covers the whole canvas and
// has the given delays (100ths of a second). Frames alternate red, blue and
// green so consecutive frames differ.
func Solid(width, height int, delays ...int) []byte {
	colors := []uint8{Red, Blue, Green}
	frames := make([]Frame, len(delays))
	for i, d := range delays {
		frames[i] = Frame{
			Bounds: image.Rect(0, 0, width, height),
			Index:  colors[i%len(colors)],
			Delay:  d,
		}
	}

	data, err := Encode(width, height, frames)
	if err != nil {
		panic("giftest: " + err.Error())
	}
	return data
}
