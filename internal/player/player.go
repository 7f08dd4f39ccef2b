// Package player animates a decoded GIF onto a surface.
//
// A Player is owned by a loop.Loop: every method must be called on the loop
// goroutine, and every timer it arms is delivered there too. Callbacks check
// the source generation before touching state, so a timer armed for a
// previous GIF can never advance the current one.
package player

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/gifdecode"
	"github.com/claude/fitcourse/internal/loop"
)

// Surface is where frames are drawn.
type Surface interface {
	Size() (width, height int)
	Present(img *image.RGBA)
	ShowError(msg string)
}

// Source hands out decode cache entries. *gifcache.Cache implements it.
type Source interface {
	Request(url string) *gifcache.Entry
}

// Handlers are notified on the loop goroutine. Any of them may be nil.
type Handlers struct {
	// FrameChange fires whenever the displayed frame index changes, and once
	// for the initial frame when a source becomes ready.
	FrameChange func(index, total int)
	// CycleComplete fires once per pass when playback reaches the last
	// frame. It does not fire again until playback has moved off it.
	CycleComplete func()
	// Ready fires when the source finishes decoding.
	Ready func(e *gifcache.Entry)
	// Failed fires when the source cannot be decoded.
	Failed func(err error)
}

// Options configures a Player.
type Options struct {
	// Scaler resizes frames that do not match the surface. Defaults to
	// draw.ApproxBiLinear.
	Scaler draw.Scaler
	// Autoplay starts playback as soon as a source is ready.
	Autoplay bool
}

// Status is the player's source state.
type Status string

const (
	StatusEmpty   Status = "empty"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusClosed  Status = "closed"
)

// State is a snapshot of the player.
type State struct {
	URL            string `json:"url"`
	Status         Status `json:"status"`
	Index          int    `json:"index"`
	Total          int    `json:"total"`
	Playing        bool   `json:"playing"`
	CycleCompleted bool   `json:"cycle_completed"`
	Error          string `json:"error,omitempty"`
}

// Player drives a frame index through a Ready cache entry.
type Player struct {
	loop     loop.Loop
	source   Source
	surface  Surface
	handlers Handlers
	scaler   draw.Scaler
	log      *slog.Logger

	url       string
	gen       uint64
	status    Status
	err       error
	entry     *gifcache.Entry
	frames    []gifdecode.Frame
	index     int
	playing   bool
	cycleDone bool
	timer     loop.Timer
	closed    bool

	scaled     map[int]*image.RGBA
	scaledSize image.Point
	blank      *image.RGBA
}

// New creates a Player with no source.
func New(l loop.Loop, source Source, surface Surface, handlers Handlers, opts Options, log *slog.Logger) *Player {
	scaler := opts.Scaler
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}
	return &Player{
		loop:     l,
		source:   source,
		surface:  surface,
		handlers: handlers,
		scaler:   scaler,
		log:      log,
		status:   StatusEmpty,
		playing:  opts.Autoplay,
	}
}

// SetSource switches to url, cancelling any pending advance and resetting to
// frame 0. The play flag is kept. The surface is blanked until the new
// source is ready, so an empty url leaves nothing of the previous one.
func (p *Player) SetSource(url string) {
	if p.closed {
		return
	}

	loop.Stop(p.timer)
	p.timer = nil
	p.gen++
	p.url = url
	p.entry = nil
	p.frames = nil
	p.err = nil
	p.index = 0
	p.cycleDone = false
	p.scaled = nil
	p.clear()

	if url == "" {
		p.status = StatusEmpty
		return
	}

	p.status = StatusLoading
	p.log.Debug("player source set", "url", url)
	p.attach(p.source.Request(url), p.gen)
}

// Play starts or resumes playback from the current frame.
func (p *Player) Play() {
	if p.closed {
		return
	}
	p.playing = true
	if p.frames != nil && p.timer == nil {
		p.schedule()
	}
}

// Pause stops playback on the current frame.
func (p *Player) Pause() {
	p.playing = false
	loop.Stop(p.timer)
	p.timer = nil
}

// StepForward pauses and shows the next frame, wrapping at the end.
func (p *Player) StepForward() {
	n := len(p.frames)
	if p.closed || n == 0 {
		return
	}
	p.Pause()
	p.setIndex((p.index + 1) % n)
}

// StepBackward pauses and shows the previous frame, wrapping at the start.
func (p *Player) StepBackward() {
	n := len(p.frames)
	if p.closed || n == 0 {
		return
	}
	p.Pause()
	p.setIndex((p.index - 1 + n) % n)
}

// Seek shows frame i, clamped to the valid range. If playing, the new frame
// is held for its own delay before advancing.
func (p *Player) Seek(i int) {
	n := len(p.frames)
	if p.closed || n == 0 {
		return
	}
	i = max(0, min(i, n-1))

	loop.Stop(p.timer)
	p.timer = nil
	p.setIndex(i)
	if p.playing {
		p.schedule()
	}
}

// Close stops the player for good. No handler fires afterwards.
func (p *Player) Close() {
	if p.closed {
		return
	}
	loop.Stop(p.timer)
	p.timer = nil
	p.closed = true
	p.gen++
	p.frames = nil
	p.entry = nil
	p.scaled = nil
	p.status = StatusClosed
}

// State returns a snapshot of the player.
func (p *Player) State() State {
	s := State{
		URL:            p.url,
		Status:         p.status,
		Index:          p.index,
		Total:          len(p.frames),
		Playing:        p.playing,
		CycleCompleted: p.cycleDone,
	}
	if p.err != nil {
		s.Error = p.err.Error()
	}
	return s
}

// Entry returns the Ready entry being played, or nil.
func (p *Player) Entry() *gifcache.Entry {
	return p.entry
}

// Frame returns the current unscaled frame, or nil when nothing is ready.
func (p *Player) Frame() *image.RGBA {
	if len(p.frames) == 0 {
		return nil
	}
	return p.frames[p.index].Pixels
}

func (p *Player) attach(e *gifcache.Entry, gen uint64) {
	switch e.Status() {
	case gifcache.Loading:
		go func() {
			<-e.Done()
			p.loop.Post(func() {
				if p.gen != gen || p.closed {
					return
				}
				p.attach(e, gen)
			})
		}()

	case gifcache.Failed:
		p.status = StatusFailed
		p.err = e.Err()
		p.log.Warn("gif unavailable", "url", p.url, "error", p.err)
		p.surface.ShowError(fmt.Sprintf("animation unavailable: %v", p.err))
		if p.handlers.Failed != nil {
			p.handlers.Failed(p.err)
		}

	case gifcache.Ready:
		p.status = StatusReady
		p.entry = e
		p.frames = e.Frames()
		p.index = 0
		p.cycleDone = false
		p.show()
		if p.playing && p.timer == nil {
			p.schedule()
		}
		if p.handlers.FrameChange != nil {
			p.handlers.FrameChange(0, len(p.frames))
		}
		if p.gen == gen && p.handlers.Ready != nil {
			p.handlers.Ready(e)
		}
	}
}

func (p *Player) schedule() {
	gen := p.gen
	delay := p.frames[p.index].Delay

	var t loop.Timer
	t = p.loop.AfterFunc(delay, func() {
		if p.gen != gen || p.closed || p.timer != t {
			return
		}
		p.timer = nil
		if !p.playing {
			return
		}

		p.tick()

		// A handler may have paused, switched source or closed the player.
		if p.gen == gen && p.playing && p.timer == nil && p.frames != nil {
			p.schedule()
		}
	})
	p.timer = t
}

func (p *Player) tick() {
	n := len(p.frames)
	next := p.index + 1
	if next >= n {
		next = 0
		p.cycleDone = false
	}
	p.setIndex(next)

	if p.index == n-1 && !p.cycleDone {
		p.cycleDone = true
		if p.handlers.CycleComplete != nil {
			p.handlers.CycleComplete()
		}
	}
}

func (p *Player) setIndex(i int) {
	n := len(p.frames)
	if i == p.index {
		return
	}
	p.index = i
	if i != n-1 {
		p.cycleDone = false
	}
	p.show()
	if p.handlers.FrameChange != nil {
		p.handlers.FrameChange(i, n)
	}
}

// clear presents a Background frame, replacing any frame or error message.
func (p *Player) clear() {
	w, h := p.surface.Size()
	if p.blank == nil || p.blank.Rect.Dx() != w || p.blank.Rect.Dy() != h {
		p.blank = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(p.blank, p.blank.Rect, &image.Uniform{C: Background}, image.Point{}, draw.Src)
	}
	p.surface.Present(p.blank)
}

func (p *Player) show() {
	frame := p.frames[p.index].Pixels

	w, h := p.surface.Size()
	if w == frame.Rect.Dx() && h == frame.Rect.Dy() {
		p.surface.Present(frame)
		return
	}

	size := image.Pt(w, h)
	if p.scaled == nil || p.scaledSize != size {
		p.scaled = make(map[int]*image.RGBA, len(p.frames))
		p.scaledSize = size
	}
	img, ok := p.scaled[p.index]
	if !ok {
		img = Letterbox(frame, w, h, p.scaler)
		p.scaled[p.index] = img
	}
	p.surface.Present(img)
}
