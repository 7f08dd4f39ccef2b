package workout

import (
	"github.com/claude/fitcourse/internal/models"
	"github.com/claude/fitcourse/internal/player"
)

// State is a snapshot of a Session for display and the control API.
type State struct {
	WorkoutID    string `json:"workout_id"`
	WorkoutTitle string `json:"workout_title,omitempty"`
	SessionID    string `json:"session_id"`

	Index    int              `json:"index"`
	Total    int              `json:"total"`
	Exercise *models.Exercise `json:"exercise,omitempty"`

	Phase     Phase     `json:"phase"`
	Paused    bool      `json:"paused"`
	GIF       GIFStatus `json:"gif"`
	Countdown int       `json:"countdown,omitempty"`
	Elapsed   int       `json:"elapsed"`
	Reps      int       `json:"reps"`

	ExerciseSessionID string `json:"exercise_session_id,omitempty"`
	// RepsBlocked is set for a repetitions exercise whose animation could
	// not be loaded, since there is nothing to count.
	RepsBlocked bool `json:"reps_blocked"`
	// AutoAdvance runs from 0 to 1 while a completed exercise waits to move
	// on.
	AutoAdvance      float64 `json:"auto_advance"`
	WorkoutCompleted bool    `json:"workout_completed"`

	Player player.State `json:"player"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	st := State{
		Phase:  s.phase,
		Paused: s.paused,
		GIF:    s.gif,
		Player: s.player.State(),
	}
	if s.workout == nil {
		return st
	}

	st.WorkoutID = s.workout.ID
	st.WorkoutTitle = s.workout.Title
	st.SessionID = s.sessionID
	st.Total = len(s.workout.Exercises)
	st.WorkoutCompleted = s.done
	if s.done {
		st.Index = st.Total
		return st
	}

	ex := s.current()
	st.Index = s.index
	st.Exercise = &ex
	st.Countdown = s.countdown
	st.Elapsed = s.elapsed
	st.Reps = s.reps
	st.ExerciseSessionID = s.exerciseSessionID
	st.RepsBlocked = ex.Mode == models.ModeRepetitions && (s.gif == GIFFailed || s.gif == GIFNone)

	if s.phase == PhaseCompleted && s.opts.AutoAdvance > 0 {
		frac := float64(s.loop.Now().Sub(s.advanceStart)) / float64(s.opts.AutoAdvance)
		st.AutoAdvance = min(max(frac, 0), 1)
	}
	return st
}
