package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claude/fitcourse/internal/models"
)

// PostgresStore keeps resume state in PostgreSQL, for players sharing a
// server database.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgres creates a store with a connection pool. Run MigratePostgres
// first.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

// Load implements ResumeStore.
func (p *PostgresStore) Load(ctx context.Context, workoutID string) (*models.ResumeState, error) {
	var st models.ResumeState
	err := p.Pool.QueryRow(ctx, `
		SELECT workout_id, session_id, exercise_id, exercise_session_id, completed, updated_at
		FROM resume_states WHERE workout_id = $1
	`, workoutID).Scan(&st.WorkoutID, &st.SessionID, &st.ExerciseID, &st.ExerciseSessionID, &st.Completed, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading resume state: %w", err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

// Save implements ResumeStore.
func (p *PostgresStore) Save(ctx context.Context, st models.ResumeState) error {
	_, err := p.Pool.Exec(ctx, `
		INSERT INTO resume_states (workout_id, session_id, exercise_id, exercise_session_id, completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		ON CONFLICT (workout_id) DO UPDATE
			SET session_id = EXCLUDED.session_id,
			    exercise_id = EXCLUDED.exercise_id,
			    exercise_session_id = EXCLUDED.exercise_session_id,
			    completed = EXCLUDED.completed,
			    updated_at = EXCLUDED.updated_at
	`, st.WorkoutID, st.SessionID, st.ExerciseID, st.ExerciseSessionID, st.Completed, nullTime(st))
	if err != nil {
		return fmt.Errorf("saving resume state: %w", err)
	}
	return nil
}

// Delete implements ResumeStore.
func (p *PostgresStore) Delete(ctx context.Context, workoutID string) error {
	if _, err := p.Pool.Exec(ctx, `DELETE FROM resume_states WHERE workout_id = $1`, workoutID); err != nil {
		return fmt.Errorf("deleting resume state: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	p.Pool.Close()
	return nil
}

func nullTime(st models.ResumeState) any {
	if st.UpdatedAt.IsZero() {
		return nil
	}
	return st.UpdatedAt
}
