// Command fitcourse-term plays a workout in a SIXEL-capable terminal.
//
// Keys: space pauses or resumes, n and p move between exercises, r restarts
// the workout, the arrow keys step the animation frame by frame, enter
// resumes the animation and q or Esc quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"github.com/claude/fitcourse/internal/app"
	"github.com/claude/fitcourse/internal/config"
	"github.com/claude/fitcourse/internal/logging"
	"github.com/claude/fitcourse/internal/models"
	"github.com/claude/fitcourse/internal/surface"
	"github.com/claude/fitcourse/internal/workout"
	"github.com/gdamore/tcell/v2"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	workoutFile := flag.String("workout", "", "workout definition file (YAML or JSON)")
	workoutID := flag.String("workout-id", "", "workout to fetch from api.base_url")
	resume := flag.String("resume", "", "resume query")
	restart := flag.Bool("restart", false, "start a fresh session, ignoring any stored position")
	logPath := flag.String("log", "fitcourse-term.log", "log file (the terminal is busy drawing)")
	dither := flag.Bool("dither", false, "dither SIXEL output")
	flag.Parse()

	if err := run(*configPath, *logPath, *dither, app.Source{
		File:      *workoutFile,
		WorkoutID: *workoutID,
		Resume:    *resume,
		Restart:   *restart,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "fitcourse-term:", err)
		os.Exit(1)
	}
}

func run(configPath, logPath string, dither bool, src app.Source) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	log := logging.NewWriter(logFile, cfg.Log)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()

	// Row 1 is the status line; the animation starts below it.
	sixel := surface.NewSixel(os.Stdout, cfg.Player.Width, cfg.Player.Height, surface.SixelOptions{
		Row:    2,
		Col:    1,
		Dither: dither,
	})
	term := &termSurface{screen: screen, sixel: sixel}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, term, func(st workout.State) {
		post(screen, st)
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	if _, err := a.LoadWorkout(ctx, src); err != nil {
		return err
	}

	ui := &ui{screen: screen, sixel: sixel, remote: a.Remote}
	return ui.loop(ctx)
}

// termSurface hands frames to the UI goroutine so SIXEL output never
// interleaves with tcell's own drawing.
type termSurface struct {
	screen tcell.Screen
	sixel  *surface.Sixel
}

type frameEvent struct{ img *image.RGBA }

type errorEvent struct{ msg string }

func (t *termSurface) Size() (width, height int) { return t.sixel.Size() }

func (t *termSurface) Present(img *image.RGBA) { post(t.screen, frameEvent{img}) }

func (t *termSurface) ShowError(msg string) { post(t.screen, errorEvent{msg}) }

func post(screen tcell.Screen, data any) {
	// A full queue drops the event; the next state or frame supersedes it.
	_ = screen.PostEvent(tcell.NewEventInterrupt(data))
}

type ui struct {
	screen tcell.Screen
	sixel  *surface.Sixel
	remote *workout.Remote

	state  workout.State
	errMsg string
	frame  *image.RGBA
}

func (u *ui) loop(ctx context.Context) error {
	for {
		switch ev := u.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			u.screen.Sync()
			u.draw()
		case *tcell.EventInterrupt:
			if u.apply(ev.Data()) {
				u.screen.Sync()
			}
			u.draw()
		case *tcell.EventKey:
			quit, err := u.key(ctx, ev)
			if quit || err != nil {
				return err
			}
		}
	}
}

func (u *ui) key(ctx context.Context, ev *tcell.EventKey) (quit bool, err error) {
	var fn func(*workout.Session)

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true, nil
	case tcell.KeyRight:
		fn = func(s *workout.Session) { s.Player().StepForward() }
	case tcell.KeyLeft:
		fn = func(s *workout.Session) { s.Player().StepBackward() }
	case tcell.KeyEnter:
		fn = func(s *workout.Session) { s.Player().Play() }
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true, nil
		case ' ':
			fn = (*workout.Session).TogglePause
		case 'n':
			fn = (*workout.Session).Next
		case 'p':
			fn = (*workout.Session).Previous
		case 'r':
			fn = (*workout.Session).Restart
		}
	}
	if fn == nil {
		return false, nil
	}

	st, err := u.remote.Do(ctx, fn)
	if err != nil {
		return true, fmt.Errorf("session: %w", err)
	}
	if u.apply(st) {
		u.screen.Sync()
	}
	u.draw()
	return false, nil
}

// apply folds a state, frame or error update into the UI. It reports whether
// the exercise changed, in which case the previous exercise's frame and
// error are dropped and the screen needs a full repaint.
func (u *ui) apply(data any) (changed bool) {
	switch data := data.(type) {
	case workout.State:
		changed = data.SessionID != u.state.SessionID || data.Index != u.state.Index
		u.state = data
		if changed {
			u.frame = nil
			u.errMsg = ""
		}
	case frameEvent:
		u.frame = data.img
		u.errMsg = ""
	case errorEvent:
		u.errMsg = data.msg
	}
	return changed
}

func (u *ui) draw() {
	u.screen.Clear()
	drawText(u.screen, 0, 0, tcell.StyleDefault.Bold(true), statusLine(u.state))
	if u.errMsg != "" {
		drawText(u.screen, 0, 1, tcell.StyleDefault.Foreground(tcell.ColorRed), u.errMsg)
	}
	u.screen.Show()

	if u.frame != nil && u.errMsg == "" {
		u.sixel.Present(u.frame)
	}
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func statusLine(st workout.State) string {
	if st.WorkoutCompleted {
		return fmt.Sprintf("%s: workout complete", st.WorkoutTitle)
	}
	if st.Exercise == nil {
		return "loading workout..."
	}

	ex := st.Exercise
	line := fmt.Sprintf("[%d/%d] %s  ", st.Index+1, st.Total, ex.Name)
	switch st.Phase {
	case workout.PhaseLoading:
		line += "loading animation"
	case workout.PhaseCountdown:
		line += fmt.Sprintf("starting in %d", st.Countdown)
	case workout.PhaseRunning, workout.PhaseCompleted:
		if st.RepsBlocked {
			line += "animation unavailable, reps cannot be counted"
		} else if ex.Mode == models.ModeRepetitions {
			line += fmt.Sprintf("reps %d/%d", st.Reps, ex.Target)
		} else {
			line += fmt.Sprintf("%ds/%ds", st.Elapsed, ex.Target)
		}
	}
	if st.Phase == workout.PhaseCompleted {
		line += "  done " + progressBar(st.AutoAdvance, 10)
	}
	if st.Paused {
		line += "  [paused]"
	}
	return line
}

func progressBar(frac float64, width int) string {
	filled := int(frac * float64(width))
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
