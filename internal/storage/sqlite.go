package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/claude/fitcourse/internal/models"
)

// SQLiteStore keeps resume state in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path. Run MigrateSQLite first.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// Load implements ResumeStore.
func (s *SQLiteStore) Load(ctx context.Context, workoutID string) (*models.ResumeState, error) {
	var (
		st        models.ResumeState
		completed int
		updatedMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT workout_id, session_id, exercise_id, exercise_session_id, completed, updated_at
		 FROM resume_states WHERE workout_id = ?`,
		workoutID,
	).Scan(&st.WorkoutID, &st.SessionID, &st.ExerciseID, &st.ExerciseSessionID, &completed, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading resume state: %w", err)
	}
	st.Completed = completed != 0
	st.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &st, nil
}

// Save implements ResumeStore.
func (s *SQLiteStore) Save(ctx context.Context, st models.ResumeState) error {
	completed := 0
	if st.Completed {
		completed = 1
	}
	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO resume_states
		 (workout_id, session_id, exercise_id, exercise_session_id, completed, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		st.WorkoutID, st.SessionID, st.ExerciseID, st.ExerciseSessionID, completed, updated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving resume state: %w", err)
	}
	return nil
}

// Delete implements ResumeStore.
func (s *SQLiteStore) Delete(ctx context.Context, workoutID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM resume_states WHERE workout_id = ?`, workoutID); err != nil {
		return fmt.Errorf("deleting resume state: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
