package models

import "time"

// ProgressStatus marks a report as the start or end of a workout or exercise.
type ProgressStatus string

const (
	ProgressStart ProgressStatus = "start"
	ProgressEnded ProgressStatus = "ended"
)

// ProgressReport is the body of POST /progress. Workout-level reports leave
// the exercise fields empty.
type ProgressReport struct {
	WorkoutID         string         `json:"workout_id"`
	WorkoutSessionID  string         `json:"workout_session_id"`
	ExerciseID        string         `json:"exercise_id,omitempty"`
	ExerciseSessionID string         `json:"exercise_session_id,omitempty"`
	Status            ProgressStatus `json:"status"`
	StartTime         *time.Time     `json:"start_time,omitempty"`
	EndTime           *time.Time     `json:"end_time,omitempty"`
	// Duration and Count are the exercise targets; the User variants are what
	// was actually achieved.
	Duration     *int `json:"duration,omitempty"`
	UserDuration *int `json:"user_duration,omitempty"`
	Count        *int `json:"count,omitempty"`
	UserCount    *int `json:"user_count,omitempty"`
}

// IsExercise reports whether the report concerns a single exercise.
func (r ProgressReport) IsExercise() bool {
	return r.ExerciseID != ""
}
