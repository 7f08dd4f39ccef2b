// Package storage persists workout resume positions so a restarted player
// can pick up where it left off.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/fitcourse/internal/models"
)

// ErrNotFound is returned by Load when no state is stored for a workout.
var ErrNotFound = errors.New("resume state not found")

// ResumeStore saves one resume position per workout.
type ResumeStore interface {
	Load(ctx context.Context, workoutID string) (*models.ResumeState, error)
	Save(ctx context.Context, state models.ResumeState) error
	Delete(ctx context.Context, workoutID string) error
	Close() error
}

// Config selects and configures a store.
type Config struct {
	// Driver is "sqlite", "postgres" or "none".
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// Open migrates and opens the configured store. Driver "none" returns a
// store that remembers nothing.
func Open(ctx context.Context, cfg Config) (ResumeStore, error) {
	switch cfg.Driver {
	case "sqlite", "":
		if err := MigrateSQLite(cfg.Path); err != nil {
			return nil, err
		}
		return OpenSQLite(cfg.Path)
	case "postgres":
		if err := MigratePostgres(cfg.DSN); err != nil {
			return nil, err
		}
		return NewPostgres(ctx, cfg.DSN)
	case "none":
		return nopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

type nopStore struct{}

func (nopStore) Load(context.Context, string) (*models.ResumeState, error) { return nil, ErrNotFound }
func (nopStore) Save(context.Context, models.ResumeState) error           { return nil }
func (nopStore) Delete(context.Context, string) error                     { return nil }
func (nopStore) Close() error                                             { return nil }
