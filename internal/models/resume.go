package models

import (
	"net/url"
	"strconv"
	"time"
)

// Query keys used to carry resume identifiers.
const (
	QuerySession         = "session"
	QueryExercise        = "exercise"
	QueryExerciseSession = "exercise_session"
	QueryResume          = "resume"
	QueryRestart         = "restart"
)

// ResumeParams identify where a workout session left off.
type ResumeParams struct {
	SessionID         string `json:"session_id,omitempty"`
	ExerciseID        string `json:"exercise_id,omitempty"`
	ExerciseSessionID string `json:"exercise_session_id,omitempty"`
	// Resume continues the session at ExerciseID.
	Resume bool `json:"resume,omitempty"`
	// Restart discards the session and starts a fresh one.
	Restart bool `json:"restart,omitempty"`
}

// ParseResumeQuery reads resume parameters from URL query values. Flags
// accept anything strconv.ParseBool does; an empty value counts as true.
func ParseResumeQuery(v url.Values) ResumeParams {
	return ResumeParams{
		SessionID:         v.Get(QuerySession),
		ExerciseID:        v.Get(QueryExercise),
		ExerciseSessionID: v.Get(QueryExerciseSession),
		Resume:            queryFlag(v, QueryResume),
		Restart:           queryFlag(v, QueryRestart),
	}
}

// Values encodes p as URL query values, omitting empty fields.
func (p ResumeParams) Values() url.Values {
	v := url.Values{}
	if p.SessionID != "" {
		v.Set(QuerySession, p.SessionID)
	}
	if p.ExerciseID != "" {
		v.Set(QueryExercise, p.ExerciseID)
	}
	if p.ExerciseSessionID != "" {
		v.Set(QueryExerciseSession, p.ExerciseSessionID)
	}
	if p.Resume {
		v.Set(QueryResume, "true")
	}
	if p.Restart {
		v.Set(QueryRestart, "true")
	}
	return v
}

// Encode returns p as a query string.
func (p ResumeParams) Encode() string {
	return p.Values().Encode()
}

func queryFlag(v url.Values, key string) bool {
	if !v.Has(key) {
		return false
	}
	s := v.Get(key)
	if s == "" {
		return true
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// ResumeState is the persisted position of a workout session.
type ResumeState struct {
	WorkoutID         string    `json:"workout_id"`
	SessionID         string    `json:"session_id"`
	ExerciseID        string    `json:"exercise_id"`
	ExerciseSessionID string    `json:"exercise_session_id"`
	Completed         bool      `json:"completed"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Params converts a stored state into resume parameters.
func (s ResumeState) Params() ResumeParams {
	return ResumeParams{
		SessionID:         s.SessionID,
		ExerciseID:        s.ExerciseID,
		ExerciseSessionID: s.ExerciseSessionID,
		Resume:            s.ExerciseID != "",
	}
}
