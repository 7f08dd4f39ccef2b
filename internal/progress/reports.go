package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/fitcourse/internal/models"
)

// WorkoutStart builds the report sent when a fresh workout session begins.
func WorkoutStart(workoutID, sessionID string, at time.Time) models.ProgressReport {
	return models.ProgressReport{
		WorkoutID:        workoutID,
		WorkoutSessionID: sessionID,
		Status:           models.ProgressStart,
		StartTime:        timePtr(at),
	}
}

// WorkoutEnd builds the report sent when the last exercise is left.
func WorkoutEnd(workoutID, sessionID string, at time.Time) models.ProgressReport {
	return models.ProgressReport{
		WorkoutID:        workoutID,
		WorkoutSessionID: sessionID,
		Status:           models.ProgressEnded,
		EndTime:          timePtr(at),
	}
}

// ExerciseStart builds the report sent when an exercise enters Running.
func ExerciseStart(workoutID, sessionID string, ex models.Exercise, exerciseSessionID string, at time.Time) models.ProgressReport {
	r := models.ProgressReport{
		WorkoutID:         workoutID,
		WorkoutSessionID:  sessionID,
		ExerciseID:        ex.ID,
		ExerciseSessionID: exerciseSessionID,
		Status:            models.ProgressStart,
		StartTime:         timePtr(at),
	}
	setTarget(&r, ex)
	return r
}

// ExerciseEnd builds the final report for an exercise with what was actually
// achieved. Skipped exercises report their partial values.
func ExerciseEnd(workoutID, sessionID string, ex models.Exercise, exerciseSessionID string, start, end time.Time, elapsedSec, reps int) models.ProgressReport {
	r := models.ProgressReport{
		WorkoutID:         workoutID,
		WorkoutSessionID:  sessionID,
		ExerciseID:        ex.ID,
		ExerciseSessionID: exerciseSessionID,
		Status:            models.ProgressEnded,
		StartTime:         timePtr(start),
		EndTime:           timePtr(end),
		UserDuration:      intPtr(elapsedSec),
	}
	setTarget(&r, ex)
	if ex.Mode == models.ModeRepetitions {
		r.UserCount = intPtr(reps)
	}
	return r
}

func setTarget(r *models.ProgressReport, ex models.Exercise) {
	switch ex.Mode {
	case models.ModeDuration:
		r.Duration = intPtr(ex.Target)
	case models.ModeRepetitions:
		r.Count = intPtr(ex.Target)
	}
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}

func intPtr(v int) *int {
	return &v
}

// LogSender logs reports instead of sending them. It is used when no backend
// is configured.
type LogSender struct {
	Log *slog.Logger
}

// SendProgress implements Sender.
func (s LogSender) SendProgress(_ context.Context, r models.ProgressReport) error {
	s.Log.Info("progress report",
		"workout_id", r.WorkoutID,
		"workout_session_id", r.WorkoutSessionID,
		"exercise_id", r.ExerciseID,
		"exercise_session_id", r.ExerciseSessionID,
		"status", r.Status,
	)
	return nil
}

// Recorder keeps every report in memory. Err, when set, is returned from
// every send after recording.
type Recorder struct {
	mu      sync.Mutex
	reports []models.ProgressReport
	Err     error
}

// SendProgress implements Sender.
func (r *Recorder) SendProgress(_ context.Context, report models.ProgressReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return r.Err
}

// Reports returns a copy of everything recorded so far.
func (r *Recorder) Reports() []models.ProgressReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ProgressReport(nil), r.reports...)
}
