package player

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Background fills the letterbox bars.
var Background = color.RGBA{0xff, 0xff, 0xff, 0xff}

// Fit returns the largest rectangle with the aspect ratio of a srcW x srcH
// image that fits inside dst, centred in it.
func Fit(dst image.Rectangle, srcW, srcH int) image.Rectangle {
	dw, dh := dst.Dx(), dst.Dy()
	if srcW <= 0 || srcH <= 0 || dw <= 0 || dh <= 0 {
		return image.Rectangle{Min: dst.Min, Max: dst.Min}
	}

	// Compare dw/dh with srcW/srcH without floating point.
	w, h := dw, dh
	if dw*srcH > dh*srcW {
		w = dh * srcW / srcH
	} else {
		h = dw * srcH / srcW
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	x := dst.Min.X + (dw-w)/2
	y := dst.Min.Y + (dh-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// Letterbox scales src into a new width x height image, preserving aspect
// ratio and filling the remainder with Background.
func Letterbox(src *image.RGBA, width, height int, scaler draw.Scaler) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Rect, &image.Uniform{C: Background}, image.Point{}, draw.Src)

	r := Fit(dst.Rect, src.Rect.Dx(), src.Rect.Dy())
	if r.Empty() {
		return dst
	}
	scaler.Scale(dst, r, src, src.Rect, draw.Src, nil)
	return dst
}

// ScalerByName maps a configuration name to an x/image scaler.
func ScalerByName(name string) (draw.Scaler, error) {
	switch name {
	case "", "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "nearest":
		return draw.NearestNeighbor, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown scaler %q", name)
	}
}
