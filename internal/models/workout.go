package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode says how an exercise is measured.
type Mode string

const (
	// ModeDuration counts seconds up to the target.
	ModeDuration Mode = "duration"
	// ModeRepetitions counts animation cycles up to the target.
	ModeRepetitions Mode = "repetitions"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDuration || m == ModeRepetitions
}

// Exercise is one step of a workout.
type Exercise struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	GIFURL      string `json:"gif_url,omitempty" yaml:"gif_url,omitempty"`
	Mode        Mode   `json:"mode" yaml:"mode"`
	// Target is seconds for ModeDuration and repetitions for
	// ModeRepetitions.
	Target int `json:"target" yaml:"target"`
}

// Workout is an ordered list of exercises.
type Workout struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Exercises []Exercise `json:"exercises" yaml:"exercises"`
}

// ErrEmptyWorkout is returned when a workout has no exercises.
var ErrEmptyWorkout = errors.New("workout has no exercises")

// Validate checks that the workout can be played.
func (w *Workout) Validate() error {
	if w.ID == "" {
		return errors.New("workout id is required")
	}
	if len(w.Exercises) == 0 {
		return ErrEmptyWorkout
	}

	seen := make(map[string]bool, len(w.Exercises))
	for i, ex := range w.Exercises {
		if ex.ID == "" {
			return fmt.Errorf("exercise %d: id is required", i)
		}
		if seen[ex.ID] {
			return fmt.Errorf("exercise %d: duplicate id %q", i, ex.ID)
		}
		seen[ex.ID] = true
		if !ex.Mode.Valid() {
			return fmt.Errorf("exercise %q: unknown mode %q", ex.ID, ex.Mode)
		}
		if ex.Target <= 0 {
			return fmt.Errorf("exercise %q: target must be positive", ex.ID)
		}
	}
	return nil
}

// IndexOf returns the index of the exercise with the given id, or -1.
func (w *Workout) IndexOf(exerciseID string) int {
	for i, ex := range w.Exercises {
		if ex.ID == exerciseID {
			return i
		}
	}
	return -1
}

// LoadWorkoutFile reads a workout definition from a YAML or JSON file.
func LoadWorkoutFile(path string) (*Workout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workout file: %w", err)
	}

	var w Workout
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &w)
	} else {
		err = yaml.Unmarshal(data, &w)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing workout file: %w", err)
	}

	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workout: %w", err)
	}
	return &w, nil
}
