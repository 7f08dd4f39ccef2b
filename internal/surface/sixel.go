package surface

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/mattn/go-sixel"
)

// sixelBufferSize is the initial SIXEL buffer size. A 320x320 frame usually
// encodes to well under this.
const sixelBufferSize = 64 << 10

// SixelOptions configures a Sixel surface.
type SixelOptions struct {
	// Row and Col are the 1-based terminal cell the image is drawn at.
	Row, Col int
	Dither   bool
}

// Sixel encodes each presented frame as SIXEL and writes it to a terminal.
type Sixel struct {
	mu     sync.Mutex
	w      io.Writer
	width  int
	height int
	opts   SixelOptions

	buf *bytes.Buffer
	enc *sixel.Encoder

	errMsg string
	err    error
}

// NewSixel creates a SIXEL surface of the given pixel size writing to w.
func NewSixel(w io.Writer, width, height int, opts SixelOptions) *Sixel {
	if opts.Row <= 0 {
		opts.Row = 1
	}
	if opts.Col <= 0 {
		opts.Col = 1
	}

	buf := &bytes.Buffer{}
	buf.Grow(sixelBufferSize)

	enc := sixel.NewEncoder(buf)
	enc.Dither = opts.Dither

	return &Sixel{
		w:      w,
		width:  width,
		height: height,
		opts:   opts,
		buf:    buf,
		enc:    enc,
	}
}

// Size returns the surface size in pixels.
func (s *Sixel) Size() (width, height int) {
	return s.width, s.height
}

// Present encodes img and writes it at the configured cell. Write errors are
// kept and returned by Err; later frames are still attempted.
func (s *Sixel) Present(img *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMsg = ""
	s.buf.Reset()
	fmt.Fprintf(s.buf, "\x1b[%d;%dH", s.opts.Row, s.opts.Col)
	if err := s.enc.Encode(img); err != nil {
		s.err = fmt.Errorf("encoding sixel: %w", err)
		return
	}
	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		s.err = fmt.Errorf("writing sixel: %w", err)
	}
}

// ShowError records msg; the terminal front end draws it in its status line.
func (s *Sixel) ShowError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

// Error returns the message set by ShowError, if any.
func (s *Sixel) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Err returns the last encode or write failure.
func (s *Sixel) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
