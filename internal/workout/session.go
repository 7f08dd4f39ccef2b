// Package workout runs a workout: it loads each exercise's animation, counts
// down, measures time or repetitions, advances through the exercises and
// reports progress.
//
// A Session lives on a loop.Loop like the player it drives. Every exported
// method must be called on the loop goroutine. Timers carry the exercise
// generation they were armed for and do nothing once it has moved on.
package workout

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/loop"
	"github.com/claude/fitcourse/internal/models"
	"github.com/claude/fitcourse/internal/player"
	"github.com/claude/fitcourse/internal/progress"
)

// Phase is where the current exercise is in its lifecycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhaseCountdown Phase = "countdown"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// GIFStatus describes the current exercise's animation.
type GIFStatus string

const (
	GIFNone    GIFStatus = "none"
	GIFLoading GIFStatus = "loading"
	GIFReady   GIFStatus = "ready"
	GIFFailed  GIFStatus = "failed"
)

// Reporter accepts progress reports without blocking. *progress.Dispatcher
// implements it.
type Reporter interface {
	Send(report models.ProgressReport)
}

// Options tunes a Session. Zero values take the defaults below.
type Options struct {
	// Countdown is the number of one-second ticks before Running.
	Countdown int
	// AutoAdvance is how long a completed exercise stays on screen.
	AutoAdvance time.Duration
	// RepDebounce is the minimum gap between counted repetitions.
	RepDebounce time.Duration
	// PreviousThreshold is the running time under which Previous goes to
	// the prior exercise rather than restarting the current one.
	PreviousThreshold time.Duration

	Player player.Options

	// OnChange is called on the loop after every state change.
	OnChange func(State)
	// OnCheckpoint is called on the loop whenever the resume position
	// changes.
	OnCheckpoint func(models.ResumeState)
	// NewID generates session ids. Defaults to uuid.NewString.
	NewID func() string
}

// advanceTick is how often observers are told about auto-advance progress.
const advanceTick = 100 * time.Millisecond

const (
	DefaultCountdown         = 3
	DefaultAutoAdvance       = 3 * time.Second
	DefaultRepDebounce       = 700 * time.Millisecond
	DefaultPreviousThreshold = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Countdown <= 0 {
		o.Countdown = DefaultCountdown
	}
	if o.AutoAdvance <= 0 {
		o.AutoAdvance = DefaultAutoAdvance
	}
	if o.RepDebounce <= 0 {
		o.RepDebounce = DefaultRepDebounce
	}
	if o.PreviousThreshold <= 0 {
		o.PreviousThreshold = DefaultPreviousThreshold
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Session plays one workout at a time.
type Session struct {
	loop     loop.Loop
	player   *player.Player
	reporter Reporter
	opts     Options
	log      *slog.Logger

	workout   *models.Workout
	sessionID string
	done      bool

	index int
	gen   uint64
	phase Phase
	gif   GIFStatus

	paused    bool
	countdown int
	elapsed   int
	reps      int
	lastRep   time.Time

	exerciseSessionID string
	reuseID           string
	reachedRunning    bool
	finalized         bool
	startedAt         time.Time
	runningSince      time.Time
	runTime           time.Duration
	advanceStart      time.Time
	// runTickDue is when the armed run tick fires. runTickLeft holds what
	// was left of it when the exercise was paused.
	runTickDue  time.Time
	runTickLeft time.Duration

	tick    loop.Timer
	advance loop.Timer
}

// New creates a Session that draws through its own player on surface.
func New(l loop.Loop, cache player.Source, surface player.Surface, reporter Reporter, opts Options, log *slog.Logger) *Session {
	s := &Session{
		loop:     l,
		reporter: reporter,
		opts:     opts.withDefaults(),
		log:      log,
		phase:    PhaseIdle,
		gif:      GIFNone,
	}
	s.player = player.New(l, cache, surface, player.Handlers{
		Ready:         s.onGIFReady,
		Failed:        s.onGIFFailed,
		CycleComplete: s.onCycleComplete,
	}, s.opts.Player, log)
	return s
}

// Player exposes the animation player for direct frame control.
func (s *Session) Player() *player.Player {
	return s.player
}

// Workout returns the loaded workout, or nil.
func (s *Session) Workout() *models.Workout {
	return s.workout
}

// Load starts w. A restart or missing session id begins a fresh session and
// reports a workout start; otherwise the existing session continues, at
// params.ExerciseID when it names an exercise of w.
func (s *Session) Load(w *models.Workout, params models.ResumeParams) {
	s.finalizeExercise()

	s.workout = w
	s.done = false

	fresh := params.Restart || params.SessionID == ""
	if fresh {
		s.sessionID = s.opts.NewID()
	} else {
		s.sessionID = params.SessionID
	}

	index := 0
	s.reuseID = ""
	if !params.Restart && params.ExerciseID != "" {
		if i := w.IndexOf(params.ExerciseID); i >= 0 {
			index = i
			s.reuseID = params.ExerciseSessionID
		} else {
			s.log.Warn("resume exercise not in workout", "exercise_id", params.ExerciseID, "workout_id", w.ID)
		}
	}

	s.log.Info("workout loaded",
		"workout_id", w.ID,
		"session_id", s.sessionID,
		"fresh", fresh,
		"exercise_index", index,
	)

	if fresh {
		s.reporter.Send(progress.WorkoutStart(w.ID, s.sessionID, s.loop.Now()))
	}

	s.enterExercise(index)
}

// Restart abandons the current session and starts w again from the first
// exercise with a new session id.
func (s *Session) Restart() {
	if s.workout == nil {
		return
	}
	s.Load(s.workout, models.ResumeParams{Restart: true})
}

// Next finalizes the current exercise and moves on, completing the workout
// after the last one.
func (s *Session) Next() {
	if s.workout == nil || s.done {
		return
	}
	s.finalizeExercise()

	if s.index+1 >= len(s.workout.Exercises) {
		s.finishWorkout()
		return
	}
	s.enterExercise(s.index + 1)
}

// Previous finalizes the current exercise. With less than the threshold of
// running time it moves to the prior exercise; otherwise, or on the first
// exercise, it restarts the current one.
func (s *Session) Previous() {
	if s.workout == nil || s.done {
		return
	}
	ran := s.runningTime()
	s.finalizeExercise()

	if ran < s.opts.PreviousThreshold && s.index > 0 {
		s.enterExercise(s.index - 1)
		return
	}
	s.enterExercise(s.index)
}

// TogglePause pauses or resumes. Pausing during the countdown cancels it and
// resuming from there starts the exercise immediately. It has no effect while
// loading or completed.
func (s *Session) TogglePause() {
	if s.workout == nil || s.done {
		return
	}

	switch s.phase {
	case PhaseCountdown:
		if !s.paused {
			s.paused = true
			s.stopTick()
			s.notify()
			return
		}
		s.startRunning()

	case PhaseRunning:
		now := s.loop.Now()
		if !s.paused {
			s.paused = true
			s.runTime += now.Sub(s.runningSince)
			s.runTickLeft = max(s.runTickDue.Sub(now), 0)
			s.stopTick()
			s.player.Pause()
			s.notify()
			return
		}
		s.paused = false
		s.runningSince = now
		left := s.runTickLeft
		s.runTickLeft = 0
		if left <= 0 || left > time.Second {
			left = time.Second
		}
		s.scheduleRunTick(left)
		s.playAnimation()
		s.notify()
	}
}

// Close cancels all timers and finalizes the current exercise.
func (s *Session) Close() {
	s.finalizeExercise()
	s.gen++
	s.player.Close()
	s.phase = PhaseIdle
}

func (s *Session) current() models.Exercise {
	return s.workout.Exercises[s.index]
}

func (s *Session) enterExercise(i int) {
	s.cancelTimers()
	s.gen++

	s.index = i
	s.phase = PhaseLoading
	s.paused = false
	s.countdown = 0
	s.elapsed = 0
	s.reps = 0
	s.lastRep = time.Time{}
	s.reachedRunning = false
	s.finalized = false
	s.startedAt = time.Time{}
	s.runTime = 0
	s.advanceStart = time.Time{}
	s.runTickLeft = 0
	s.exerciseSessionID = s.reuseID
	s.reuseID = ""

	ex := s.current()
	s.log.Info("exercise entered", "index", i, "exercise_id", ex.ID, "mode", ex.Mode, "target", ex.Target)
	s.checkpoint()

	s.player.Pause()
	if ex.GIFURL == "" {
		s.gif = GIFNone
		s.player.SetSource("")
		s.startCountdown()
		return
	}

	s.gif = GIFLoading
	s.notify()
	// A cached GIF calls back into onGIFReady before SetSource returns.
	s.player.SetSource(ex.GIFURL)
}

func (s *Session) onGIFReady(*gifcache.Entry) {
	if s.phase != PhaseLoading {
		return
	}
	s.gif = GIFReady
	s.startCountdown()
}

func (s *Session) onGIFFailed(err error) {
	if s.phase != PhaseLoading {
		return
	}
	s.gif = GIFFailed
	if s.current().Mode == models.ModeRepetitions {
		s.log.Warn("repetitions cannot be counted without animation", "exercise_id", s.current().ID, "error", err)
	}
	s.startCountdown()
}

func (s *Session) startCountdown() {
	s.phase = PhaseCountdown
	s.countdown = s.opts.Countdown
	s.scheduleCountdownTick()
	s.notify()
}

func (s *Session) scheduleCountdownTick() {
	gen := s.gen
	s.tick = s.loop.AfterFunc(time.Second, func() {
		if s.gen != gen || s.phase != PhaseCountdown || s.paused {
			return
		}
		s.tick = nil
		s.countdown--
		if s.countdown <= 0 {
			s.startRunning()
			return
		}
		s.scheduleCountdownTick()
		s.notify()
	})
}

func (s *Session) startRunning() {
	s.stopTick()

	now := s.loop.Now()
	s.phase = PhaseRunning
	s.paused = false
	s.countdown = 0
	s.runningSince = now

	if !s.reachedRunning {
		s.reachedRunning = true
		s.startedAt = now
		if s.exerciseSessionID == "" {
			s.exerciseSessionID = s.opts.NewID()
		}
		ex := s.current()
		s.reporter.Send(progress.ExerciseStart(s.workout.ID, s.sessionID, ex, s.exerciseSessionID, now))
		s.checkpoint()
	}

	s.scheduleRunTick(time.Second)
	s.playAnimation()
	s.notify()
}

// scheduleRunTick arms the next elapsed-second tick after d. d is shorter
// than a second only when resuming a tick interrupted by a pause.
func (s *Session) scheduleRunTick(d time.Duration) {
	gen := s.gen
	s.runTickDue = s.loop.Now().Add(d)
	s.tick = s.loop.AfterFunc(d, func() {
		if s.gen != gen || s.phase != PhaseRunning || s.paused {
			return
		}
		s.tick = nil
		s.elapsed++

		ex := s.current()
		if ex.Mode == models.ModeDuration && s.elapsed >= ex.Target {
			s.elapsed = ex.Target
			s.complete()
			return
		}
		s.scheduleRunTick(time.Second)
		s.notify()
	})
}

func (s *Session) onCycleComplete() {
	ex := s.current()
	if s.phase != PhaseRunning || s.paused || ex.Mode != models.ModeRepetitions {
		return
	}

	now := s.loop.Now()
	if s.reps > 0 && now.Sub(s.lastRep) < s.opts.RepDebounce {
		return
	}
	s.reps++
	s.lastRep = now

	if s.reps >= ex.Target {
		s.reps = ex.Target
		s.player.Pause()
		s.complete()
		return
	}
	s.notify()
}

func (s *Session) complete() {
	now := s.loop.Now()
	s.stopTick()
	s.runTime += now.Sub(s.runningSince)
	s.phase = PhaseCompleted
	s.advanceStart = now

	ex := s.current()
	s.log.Info("exercise completed", "exercise_id", ex.ID, "elapsed", s.elapsed, "reps", s.reps)

	gen := s.gen
	s.advance = s.loop.AfterFunc(s.opts.AutoAdvance, func() {
		if s.gen != gen || s.phase != PhaseCompleted {
			return
		}
		s.advance = nil
		s.Next()
	})
	s.scheduleAdvanceTick()
	s.notify()
}

// scheduleAdvanceTick keeps observers updated while a completed exercise
// waits to move on.
func (s *Session) scheduleAdvanceTick() {
	gen := s.gen
	s.tick = s.loop.AfterFunc(advanceTick, func() {
		if s.gen != gen || s.phase != PhaseCompleted || s.done {
			return
		}
		s.tick = nil
		if s.loop.Now().Sub(s.advanceStart) < s.opts.AutoAdvance {
			s.scheduleAdvanceTick()
		}
		s.notify()
	})
}

// finalizeExercise cancels the exercise's timers and sends its end report if
// it ever started running. It is safe to call more than once.
func (s *Session) finalizeExercise() {
	s.cancelTimers()
	if s.workout == nil || s.finalized || !s.reachedRunning {
		return
	}
	s.finalized = true

	now := s.loop.Now()
	if s.phase == PhaseRunning && !s.paused {
		s.runTime += now.Sub(s.runningSince)
		s.runningSince = now
	}

	ex := s.current()
	s.reporter.Send(progress.ExerciseEnd(
		s.workout.ID, s.sessionID, ex, s.exerciseSessionID,
		s.startedAt, now, s.elapsed, s.reps,
	))
}

func (s *Session) finishWorkout() {
	s.gen++
	s.done = true
	s.phase = PhaseCompleted
	s.paused = false
	s.player.Pause()

	s.log.Info("workout completed", "workout_id", s.workout.ID, "session_id", s.sessionID)
	s.reporter.Send(progress.WorkoutEnd(s.workout.ID, s.sessionID, s.loop.Now()))
	s.checkpoint()
	s.notify()
}

// runningTime is how long the current exercise has spent in Running,
// excluding pauses.
func (s *Session) runningTime() time.Duration {
	t := s.runTime
	if s.phase == PhaseRunning && !s.paused {
		t += s.loop.Now().Sub(s.runningSince)
	}
	return t
}

func (s *Session) playAnimation() {
	if s.gif == GIFReady {
		s.player.Play()
	}
}

func (s *Session) stopTick() {
	loop.Stop(s.tick)
	s.tick = nil
}

func (s *Session) cancelTimers() {
	s.stopTick()
	loop.Stop(s.advance)
	s.advance = nil
}

func (s *Session) checkpoint() {
	if s.opts.OnCheckpoint == nil || s.workout == nil {
		return
	}
	rs := models.ResumeState{
		WorkoutID: s.workout.ID,
		SessionID: s.sessionID,
		Completed: s.done,
		UpdatedAt: s.loop.Now().UTC(),
	}
	if !s.done {
		rs.ExerciseID = s.current().ID
		rs.ExerciseSessionID = s.exerciseSessionID
	}
	s.opts.OnCheckpoint(rs)
}

func (s *Session) notify() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.State())
	}
}
