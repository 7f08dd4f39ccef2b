// Package app assembles the playback daemon from configuration: resume
// store, decode cache, progress dispatcher, event loop and workout session.
// The command front ends only add a surface and their own input.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/claude/fitcourse/internal/apiclient"
	"github.com/claude/fitcourse/internal/config"
	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/loop"
	"github.com/claude/fitcourse/internal/models"
	"github.com/claude/fitcourse/internal/player"
	"github.com/claude/fitcourse/internal/progress"
	"github.com/claude/fitcourse/internal/storage"
	"github.com/claude/fitcourse/internal/workout"
)

// checkpointBuffer is how many resume positions may wait for the store.
const checkpointBuffer = 16

// App owns every long-lived component of a player process.
type App struct {
	Config   *config.Config
	Log      *slog.Logger
	Store    storage.ResumeStore
	Cache    *gifcache.Cache
	Progress *progress.Dispatcher
	Loop     *loop.EventLoop
	Session  *workout.Session
	Remote   *workout.Remote

	api         *apiclient.Client
	checkpoints chan models.ResumeState
	writerDone  chan struct{}
	loopDone    chan struct{}
	stopLoop    context.CancelFunc
	closeOnce   sync.Once
}

// Source names the workout to play and where to resume it.
type Source struct {
	// File is a local YAML or JSON workout definition.
	File string
	// WorkoutID is fetched from the backend when File is empty.
	WorkoutID string
	// Resume is a raw resume query such as "session=...&exercise=...".
	// When empty the stored position for the workout is used.
	Resume string
	// Restart discards any stored position.
	Restart bool
}

// New builds and starts the components. surface receives the frames;
// onChange, when set, observes every session change on the loop.
func New(ctx context.Context, cfg *config.Config, surface player.Surface, onChange func(workout.State), log *slog.Logger) (*App, error) {
	store, err := storage.Open(ctx, storage.Config{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		DSN:    cfg.Store.Database.DSN(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening resume store: %w", err)
	}
	log.Info("resume store ready", "driver", cfg.Store.Driver)

	scaler, err := player.ScalerByName(cfg.Player.Scaler)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &App{
		Config:      cfg,
		Log:         log,
		Store:       store,
		checkpoints: make(chan models.ResumeState, checkpointBuffer),
		writerDone:  make(chan struct{}),
		loopDone:    make(chan struct{}),
	}

	var sender progress.Sender = progress.LogSender{Log: log}
	if cfg.API.BaseURL != "" {
		a.api = apiclient.New(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
		sender = a.api
	}
	a.Progress = progress.NewDispatcher(sender, cfg.API.Timeout, log)

	a.Cache = gifcache.New(
		gifcache.NewHTTPFetcher(cfg.API.Token, cfg.Cache.FetchTimeout, cfg.Cache.MaxBytes),
		gifcache.Options{
			MaxConcurrentDecodes: cfg.Cache.MaxConcurrentDecodes,
			MaxEntries:           cfg.Cache.MaxEntries,
			FetchTimeout:         cfg.Cache.FetchTimeout,
			MinDelay:             cfg.Cache.MinFrameDelay,
		},
		log,
	)

	a.Loop = loop.New(log)
	loopCtx, stop := context.WithCancel(context.Background())
	a.stopLoop = stop
	go func() {
		defer close(a.loopDone)
		a.Loop.Run(loopCtx) //nolint:errcheck
	}()

	a.Session = workout.New(a.Loop, a.Cache, surface, a.Progress, workout.Options{
		Countdown:         cfg.Workout.Countdown,
		AutoAdvance:       cfg.Workout.AutoAdvance,
		RepDebounce:       cfg.Workout.RepDebounce,
		PreviousThreshold: cfg.Workout.PreviousThreshold,
		Player:            player.Options{Scaler: scaler},
		OnChange:          onChange,
		OnCheckpoint:      a.queueCheckpoint,
	}, log)
	a.Remote = workout.NewRemote(a.Loop, a.Session)

	go a.writeCheckpoints()
	return a, nil
}

// LoadWorkout resolves src and starts the workout on the loop.
func (a *App) LoadWorkout(ctx context.Context, src Source) (*models.Workout, error) {
	w, err := a.fetchWorkout(ctx, src)
	if err != nil {
		return nil, err
	}

	params, err := ResolveParams(ctx, a.Store, w.ID, src.Resume, src.Restart)
	if err != nil {
		return nil, err
	}

	if _, err := a.Remote.Do(ctx, func(s *workout.Session) { s.Load(w, params) }); err != nil {
		return nil, fmt.Errorf("starting workout: %w", err)
	}
	return w, nil
}

func (a *App) fetchWorkout(ctx context.Context, src Source) (*models.Workout, error) {
	switch {
	case src.File != "":
		return models.LoadWorkoutFile(src.File)
	case src.WorkoutID != "":
		if a.api == nil {
			return nil, errors.New("fetching a workout by id requires api.base_url")
		}
		return a.api.GetWorkout(ctx, src.WorkoutID)
	default:
		return nil, errors.New("no workout given: set a workout file or id")
	}
}

// ResolveParams decides how a workout starts. An explicit resume query wins;
// otherwise an unfinished stored position is continued. Restart always
// begins a fresh session.
func ResolveParams(ctx context.Context, store storage.ResumeStore, workoutID, rawQuery string, restart bool) (models.ResumeParams, error) {
	if rawQuery != "" {
		v, err := url.ParseQuery(rawQuery)
		if err != nil {
			return models.ResumeParams{}, fmt.Errorf("parsing resume query: %w", err)
		}
		params := models.ParseResumeQuery(v)
		params.Restart = params.Restart || restart
		return params, nil
	}
	if restart {
		return models.ResumeParams{Restart: true}, nil
	}

	st, err := store.Load(ctx, workoutID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.ResumeParams{}, nil
	}
	if err != nil {
		return models.ResumeParams{}, err
	}
	if st.Completed {
		return models.ResumeParams{}, nil
	}
	return st.Params(), nil
}

// queueCheckpoint runs on the loop and must not block it.
func (a *App) queueCheckpoint(st models.ResumeState) {
	select {
	case a.checkpoints <- st:
	default:
		a.Log.Warn("resume checkpoint dropped", "workout_id", st.WorkoutID, "exercise_id", st.ExerciseID)
	}
}

func (a *App) writeCheckpoints() {
	defer close(a.writerDone)
	for st := range a.checkpoints {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Store.Save(ctx, st); err != nil {
			a.Log.Warn("failed to save resume state", "workout_id", st.WorkoutID, "error", err)
		}
		cancel()
	}
}

// Close stops the session, drains pending reports and checkpoints, and
// releases the store.
func (a *App) Close(ctx context.Context) {
	a.closeOnce.Do(func() {
		if _, err := a.Remote.Do(ctx, (*workout.Session).Close); err != nil {
			a.Log.Warn("closing session", "error", err)
		}
		a.stopLoop()
		<-a.loopDone

		// Only the loop sends checkpoints.
		close(a.checkpoints)
		select {
		case <-a.writerDone:
		case <-ctx.Done():
			a.Log.Warn("resume checkpoints not flushed", "error", ctx.Err())
		}

		if err := a.Progress.Close(ctx); err != nil {
			a.Log.Warn("progress reports not flushed", "error", err)
		}
		a.Cache.Close()
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("closing resume store", "error", err)
		}
	})
}
