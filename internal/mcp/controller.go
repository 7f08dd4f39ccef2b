package mcp

import (
	"context"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/workout"
)

// Controller abstracts the playback daemon for MCP tools. Both Local (in
// process) and HTTPClient (remote via the REST API) satisfy this interface.
type Controller interface {
	State(ctx context.Context) (workout.State, error)
	Next(ctx context.Context) (workout.State, error)
	Previous(ctx context.Context) (workout.State, error)
	TogglePause(ctx context.Context) (workout.State, error)
	CacheReport(ctx context.Context) (*CacheReport, error)
	InvalidateGIF(ctx context.Context, url string) (bool, error)
}

// CacheReport is the decode cache as served by GET /api/v1/cache.
type CacheReport struct {
	Stats   gifcache.Stats  `json:"stats"`
	Entries []gifcache.Info `json:"entries"`
}

// Local controls a session running in the same process.
type Local struct {
	Session *workout.Remote
	Cache   *gifcache.Cache
}

// Compile-time check: Local satisfies Controller.
var _ Controller = (*Local)(nil)

func (l *Local) State(ctx context.Context) (workout.State, error) {
	return l.Session.State(ctx)
}

func (l *Local) Next(ctx context.Context) (workout.State, error) {
	return l.Session.Do(ctx, (*workout.Session).Next)
}

func (l *Local) Previous(ctx context.Context) (workout.State, error) {
	return l.Session.Do(ctx, (*workout.Session).Previous)
}

func (l *Local) TogglePause(ctx context.Context) (workout.State, error) {
	return l.Session.Do(ctx, (*workout.Session).TogglePause)
}

func (l *Local) CacheReport(context.Context) (*CacheReport, error) {
	return &CacheReport{Stats: l.Cache.Stats(), Entries: l.Cache.List()}, nil
}

func (l *Local) InvalidateGIF(_ context.Context, url string) (bool, error) {
	return l.Cache.Invalidate(url), nil
}
