package models

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadWorkoutFileYAML verifies a YAML workout parses and validates.
func TestLoadWorkoutFileYAML(t *testing.T) {
	path := writeTemp(t, "w.yaml", `
id: morning
title: Morning routine
exercises:
  - id: squat
    name: Squats
    gif_url: https://cdn.example.com/squat.gif
    mode: repetitions
    target: 12
  - id: plank
    name: Plank
    mode: duration
    target: 30
`)

	w, err := LoadWorkoutFile(path)
	if err != nil {
		t.Fatalf("LoadWorkoutFile: %v", err)
	}
	if w.ID != "morning" || len(w.Exercises) != 2 {
		t.Fatalf("workout = %+v", w)
	}
	if ex := w.Exercises[0]; ex.Mode != ModeRepetitions || ex.Target != 12 || ex.GIFURL == "" {
		t.Errorf("exercise 0 = %+v", ex)
	}
	if w.IndexOf("plank") != 1 || w.IndexOf("nope") != -1 {
		t.Error("IndexOf returned wrong index")
	}
}

// TestLoadWorkoutFileJSON verifies .json files are parsed as JSON.
func TestLoadWorkoutFileJSON(t *testing.T) {
	path := writeTemp(t, "w.json", `{"id":"w1","exercises":[{"id":"a","mode":"duration","target":5}]}`)
	w, err := LoadWorkoutFile(path)
	if err != nil {
		t.Fatalf("LoadWorkoutFile: %v", err)
	}
	if w.Exercises[0].Mode != ModeDuration {
		t.Errorf("mode = %q", w.Exercises[0].Mode)
	}
}

// TestWorkoutValidate verifies invalid definitions are rejected.
func TestWorkoutValidate(t *testing.T) {
	tests := []struct {
		name string
		w    Workout
		want string
	}{
		{"no id", Workout{Exercises: []Exercise{{ID: "a", Mode: ModeDuration, Target: 1}}}, "workout id"},
		{"empty", Workout{ID: "w"}, "no exercises"},
		{"dup", Workout{ID: "w", Exercises: []Exercise{
			{ID: "a", Mode: ModeDuration, Target: 1},
			{ID: "a", Mode: ModeDuration, Target: 1},
		}}, "duplicate"},
		{"mode", Workout{ID: "w", Exercises: []Exercise{{ID: "a", Mode: "sprint", Target: 1}}}, "unknown mode"},
		{"target", Workout{ID: "w", Exercises: []Exercise{{ID: "a", Mode: ModeRepetitions}}}, "target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}

	if err := (&Workout{ID: "w"}).Validate(); !errors.Is(err, ErrEmptyWorkout) {
		t.Errorf("err = %v, want ErrEmptyWorkout", err)
	}
}

// TestResumeParamsRoundTrip verifies resume identifiers survive a trip
// through a query string.
func TestResumeParamsRoundTrip(t *testing.T) {
	in := ResumeParams{
		SessionID:         "s-1",
		ExerciseID:        "plank",
		ExerciseSessionID: "es-9",
		Resume:            true,
	}
	v, err := url.ParseQuery(in.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if out := ParseResumeQuery(v); out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

// TestParseResumeQueryFlags verifies flag spellings.
func TestParseResumeQueryFlags(t *testing.T) {
	tests := []struct {
		query   string
		restart bool
	}{
		{"restart", true},
		{"restart=1", true},
		{"restart=true", true},
		{"restart=false", false},
		{"restart=yes", false},
		{"", false},
	}
	for _, tt := range tests {
		v, _ := url.ParseQuery(tt.query)
		if got := ParseResumeQuery(v).Restart; got != tt.restart {
			t.Errorf("%q: restart = %v, want %v", tt.query, got, tt.restart)
		}
	}
}

// TestProgressReportJSON verifies optional fields are omitted.
func TestProgressReportJSON(t *testing.T) {
	data, err := json.Marshal(ProgressReport{
		WorkoutID:        "w",
		WorkoutSessionID: "s",
		Status:           ProgressStart,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"workout_id":"w","workout_session_id":"s","status":"start"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
