package player

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/gifdecode/giftest"
	"github.com/claude/fitcourse/internal/loop"
	"github.com/claude/fitcourse/internal/surface"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type frameEvent struct {
	index, total int
	at           time.Duration
}

// recorder collects handler calls with their loop time.
type recorder struct {
	m       *loop.Manual
	changes []frameEvent
	cycles  []time.Duration
	ready   int
	failed  []error
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		FrameChange: func(i, n int) {
			r.changes = append(r.changes, frameEvent{i, n, r.m.Now().Sub(epoch)})
		},
		CycleComplete: func() { r.cycles = append(r.cycles, r.m.Now().Sub(epoch)) },
		Ready:         func(*gifcache.Entry) { r.ready++ },
		Failed:        func(err error) { r.failed = append(r.failed, err) },
	}
}

// newCache returns a cache whose every URL serves the registered bytes.
func newCache(t *testing.T, files map[string][]byte) *gifcache.Cache {
	t.Helper()
	f := gifcache.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return files[url], nil
	})
	c := gifcache.New(f, gifcache.Options{}, testLogger())
	t.Cleanup(c.Close)
	return c
}

// warm decodes url so the player sees a Ready entry synchronously.
func warm(t *testing.T, c *gifcache.Cache, url string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Request(url).Wait(ctx); err != nil {
		t.Fatalf("decoding %s: %v", url, err)
	}
}

func newPlayer(t *testing.T, files map[string][]byte, w, h int) (*Player, *loop.Manual, *recorder, *surface.Canvas) {
	t.Helper()
	c := newCache(t, files)
	for url := range files {
		warm(t, c, url)
	}
	m := loop.NewManual(epoch)
	rec := &recorder{m: m}
	canvas := surface.NewCanvas(w, h)
	p := New(m, c, canvas, rec.handlers(), Options{}, testLogger())
	return p, m, rec, canvas
}

// TestFrameTiming verifies frame delays [100,200,50] produce frame changes
// at 0, 100, 300 and 350ms.
func TestFrameTiming(t *testing.T) {
	p, m, rec, _ := newPlayer(t, map[string][]byte{"a": giftest.Solid(4, 4, 10, 20, 5)}, 4, 4)

	p.SetSource("a")
	p.Play()
	m.Advance(360 * time.Millisecond)

	want := []frameEvent{
		{0, 3, 0},
		{1, 3, 100 * time.Millisecond},
		{2, 3, 300 * time.Millisecond},
		{0, 3, 350 * time.Millisecond},
	}
	if len(rec.changes) != len(want) {
		t.Fatalf("changes = %v, want %v", rec.changes, want)
	}
	for i := range want {
		if rec.changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, rec.changes[i], want[i])
		}
	}
	if rec.ready != 1 {
		t.Errorf("ready = %d, want 1", rec.ready)
	}
}

// TestCycleCompleteDebounce verifies a cycle fires once on reaching the last
// frame and not again while paused there, even for 5 seconds.
func TestCycleCompleteDebounce(t *testing.T) {
	p, m, rec, _ := newPlayer(t, map[string][]byte{"a": giftest.Solid(4, 4, 10, 10, 10)}, 4, 4)

	p.SetSource("a")
	p.Play()
	m.Advance(200 * time.Millisecond)
	if len(rec.cycles) != 1 {
		t.Fatalf("cycles after first pass = %d, want 1", len(rec.cycles))
	}

	p.Pause()
	m.Advance(5 * time.Second)
	p.Play()
	p.Pause()
	p.Play()
	if len(rec.cycles) != 1 {
		t.Fatalf("cycles while parked on last frame = %d, want 1", len(rec.cycles))
	}
	if !p.State().CycleCompleted {
		t.Error("cycle flag should stay set while on the last frame")
	}

	// Wrap to 0 at +100ms, then reach the last frame again at +300ms.
	m.Advance(300 * time.Millisecond)
	if len(rec.cycles) != 2 {
		t.Errorf("cycles after second pass = %d, want 2", len(rec.cycles))
	}
}

// TestSingleFrameCycles verifies a one-frame GIF completes a cycle on every
// tick without reporting frame changes.
func TestSingleFrameCycles(t *testing.T) {
	p, m, rec, _ := newPlayer(t, map[string][]byte{"a": giftest.Solid(2, 2, 10)}, 2, 2)

	p.SetSource("a")
	p.Play()
	m.Advance(350 * time.Millisecond)

	if len(rec.cycles) != 3 {
		t.Errorf("cycles = %d, want 3", len(rec.cycles))
	}
	if len(rec.changes) != 1 {
		t.Errorf("frame changes = %d, want only the initial one", len(rec.changes))
	}
}

// TestCloseStopsCallbacks verifies nothing fires after Close.
func TestCloseStopsCallbacks(t *testing.T) {
	p, m, rec, _ := newPlayer(t, map[string][]byte{"a": giftest.Solid(2, 2, 10, 10)}, 2, 2)

	p.SetSource("a")
	p.Play()
	m.Advance(100 * time.Millisecond)
	seen := len(rec.changes)

	p.Close()
	if m.Pending() != 0 {
		t.Errorf("pending timers after Close = %d, want 0", m.Pending())
	}
	m.Advance(time.Second)
	if len(rec.changes) != seen {
		t.Errorf("frame changes after Close: %d -> %d", seen, len(rec.changes))
	}

	p.Play()
	p.SetSource("a")
	if m.Pending() != 0 || p.State().Status != StatusClosed {
		t.Error("closed player should ignore Play and SetSource")
	}
}

// TestSetSourceResets verifies switching sources cancels the pending advance
// and restarts from frame 0 on the new GIF's timing.
func TestSetSourceResets(t *testing.T) {
	p, m, rec, _ := newPlayer(t, map[string][]byte{
		"a": giftest.Solid(2, 2, 10, 10, 10),
		"b": giftest.Solid(2, 2, 50, 50),
	}, 2, 2)

	p.SetSource("a")
	p.Play()
	m.Advance(150 * time.Millisecond)
	if p.State().Index != 1 {
		t.Fatalf("index = %d, want 1", p.State().Index)
	}

	rec.changes = nil
	p.SetSource("b")
	if st := p.State(); st.Index != 0 || st.Total != 2 || st.URL != "b" || !st.Playing {
		t.Errorf("state after SetSource = %+v", st)
	}
	if m.Pending() != 1 {
		t.Errorf("pending timers = %d, want 1", m.Pending())
	}

	m.Advance(499 * time.Millisecond)
	if len(rec.changes) != 1 {
		t.Fatalf("changes = %v, want only the initial frame of b", rec.changes)
	}
	m.Advance(time.Millisecond)
	if len(rec.changes) != 2 || rec.changes[1].index != 1 {
		t.Errorf("changes = %v, want b to advance at 500ms", rec.changes)
	}
}

// TestStepAndSeek verifies stepping pauses and wraps and Seek clamps.
func TestStepAndSeek(t *testing.T) {
	p, m, rec, _ := newPlayer(t, map[string][]byte{"a": giftest.Solid(2, 2, 10, 10, 10, 10)}, 2, 2)

	p.SetSource("a")
	p.Play()

	p.StepBackward()
	if st := p.State(); st.Index != 3 || st.Playing {
		t.Errorf("after StepBackward state = %+v, want index 3 paused", st)
	}
	if len(rec.cycles) != 0 {
		t.Error("stepping onto the last frame must not complete a cycle")
	}

	p.StepForward()
	if p.State().Index != 0 {
		t.Errorf("StepForward should wrap to 0, got %d", p.State().Index)
	}

	p.Seek(99)
	if p.State().Index != 3 {
		t.Errorf("Seek(99) index = %d, want 3", p.State().Index)
	}
	p.Seek(-5)
	if p.State().Index != 0 {
		t.Errorf("Seek(-5) index = %d, want 0", p.State().Index)
	}

	m.Advance(time.Second)
	if p.State().Index != 0 {
		t.Error("paused player advanced")
	}

	p.Play()
	p.Seek(2)
	m.Advance(100 * time.Millisecond)
	if p.State().Index != 3 {
		t.Errorf("index after seek+play = %d, want 3", p.State().Index)
	}
	if len(rec.cycles) != 1 {
		t.Errorf("cycles = %d, want 1", len(rec.cycles))
	}
}

// TestLoadingSourceAttachesOnLoop verifies a source still decoding is picked
// up on the loop once ready.
func TestLoadingSourceAttachesOnLoop(t *testing.T) {
	gate := make(chan struct{})
	data := giftest.Solid(2, 2, 10, 10)
	f := gifcache.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		<-gate
		return data, nil
	})
	c := gifcache.New(f, gifcache.Options{}, testLogger())
	defer c.Close()

	m := loop.NewManual(epoch)
	rec := &recorder{m: m}
	p := New(m, c, surface.NewCanvas(2, 2), rec.handlers(), Options{Autoplay: true}, testLogger())

	p.SetSource("slow")
	if p.State().Status != StatusLoading {
		t.Fatalf("status = %s, want loading", p.State().Status)
	}

	close(gate)
	if !m.WaitPosted(5 * time.Second) {
		t.Fatal("ready notification never posted")
	}
	if st := p.State(); st.Status != StatusReady || st.Total != 2 {
		t.Errorf("state = %+v", st)
	}
	if rec.ready != 1 {
		t.Errorf("ready = %d, want 1", rec.ready)
	}

	m.Advance(100 * time.Millisecond)
	if p.State().Index != 1 {
		t.Error("autoplay did not start")
	}
}

// TestFailedSource verifies decode failures reach the handler and surface.
func TestFailedSource(t *testing.T) {
	c := newCache(t, map[string][]byte{"bad": []byte("nope")})
	warmErr := c.Request("bad").Wait(context.Background())
	if warmErr == nil {
		t.Fatal("expected decode failure")
	}

	m := loop.NewManual(epoch)
	rec := &recorder{m: m}
	canvas := surface.NewCanvas(2, 2)
	p := New(m, c, canvas, rec.handlers(), Options{}, testLogger())

	p.SetSource("bad")
	if len(rec.failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(rec.failed))
	}
	if canvas.Error() == "" {
		t.Error("surface should show an error")
	}
	if st := p.State(); st.Status != StatusFailed || st.Error == "" {
		t.Errorf("state = %+v", st)
	}
	p.Play()
	if m.Pending() != 0 {
		t.Error("failed source should not schedule frames")
	}
}

// TestEmptySourceBlanksSurface verifies switching to no source replaces the
// previous frame, and a previous error, with the background.
func TestEmptySourceBlanksSurface(t *testing.T) {
	c := newCache(t, map[string][]byte{"a": giftest.Solid(2, 2, 10), "bad": []byte("nope")})
	warm(t, c, "a")
	c.Request("bad").Wait(context.Background()) //nolint:errcheck

	m := loop.NewManual(epoch)
	canvas := surface.NewCanvas(2, 2)
	p := New(m, c, canvas, Handlers{}, Options{}, testLogger())

	white := color.RGBA{0xff, 0xff, 0xff, 0xff}

	p.SetSource("a")
	if got := canvas.Snapshot().RGBAAt(1, 1); got == white {
		t.Fatal("frame of a should be showing")
	}
	p.SetSource("")
	if got := canvas.Snapshot().RGBAAt(1, 1); got != white {
		t.Errorf("pixel after clearing = %v, want white", got)
	}

	p.SetSource("bad")
	if canvas.Error() == "" {
		t.Fatal("expected an error for the broken source")
	}
	p.SetSource("")
	if msg := canvas.Error(); msg != "" {
		t.Errorf("error after clearing = %q, want none", msg)
	}
}

// TestLetterboxPresent verifies frames are scaled into the surface with
// white bars.
func TestLetterboxPresent(t *testing.T) {
	p, _, _, canvas := newPlayer(t, map[string][]byte{"a": giftest.Solid(4, 4, 10)}, 8, 4)

	p.SetSource("a")
	snap := canvas.Snapshot()

	white := color.RGBA{0xff, 0xff, 0xff, 0xff}
	red := color.RGBA{0xff, 0, 0, 0xff}
	if got := snap.RGBAAt(0, 2); got != white {
		t.Errorf("bar pixel = %v, want white", got)
	}
	if got := snap.RGBAAt(4, 2); got != red {
		t.Errorf("frame pixel = %v, want red", got)
	}
}

// TestFit verifies aspect-preserving centred placement.
func TestFit(t *testing.T) {
	tests := []struct {
		dst        image.Rectangle
		srcW, srcH int
		want       image.Rectangle
	}{
		{image.Rect(0, 0, 100, 50), 10, 10, image.Rect(25, 0, 75, 50)},
		{image.Rect(0, 0, 50, 100), 10, 10, image.Rect(0, 25, 50, 75)},
		{image.Rect(0, 0, 200, 100), 400, 200, image.Rect(0, 0, 200, 100)},
		{image.Rect(10, 10, 20, 20), 0, 5, image.Rect(10, 10, 10, 10)},
	}
	for _, tt := range tests {
		if got := Fit(tt.dst, tt.srcW, tt.srcH); got != tt.want {
			t.Errorf("Fit(%v, %d, %d) = %v, want %v", tt.dst, tt.srcW, tt.srcH, got, tt.want)
		}
	}
}

// TestScalerByName verifies known names resolve and unknown ones fail.
func TestScalerByName(t *testing.T) {
	for _, name := range []string{"", "nearest", "approx-bilinear", "bilinear", "catmull-rom"} {
		if _, err := ScalerByName(name); err != nil {
			t.Errorf("ScalerByName(%q): %v", name, err)
		}
	}
	if _, err := ScalerByName("lanczos"); err == nil {
		t.Error("expected error for unknown scaler")
	}
}
