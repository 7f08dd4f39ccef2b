package workout

import (
	"context"

	"github.com/claude/fitcourse/internal/loop"
)

// Remote drives a Session from goroutines other than its loop, such as
// HTTP handlers and MCP tools.
type Remote struct {
	loop    loop.Loop
	session *Session
}

// NewRemote wraps s, which must run on l.
func NewRemote(l loop.Loop, s *Session) *Remote {
	return &Remote{loop: l, session: s}
}

// State returns a snapshot taken on the loop.
func (r *Remote) State(ctx context.Context) (State, error) {
	return r.Do(ctx, nil)
}

// Do runs fn on the loop and returns the state it left behind. A nil fn
// only takes the snapshot.
func (r *Remote) Do(ctx context.Context, fn func(*Session)) (State, error) {
	var st State
	err := loop.Do(ctx, r.loop, func() {
		if fn != nil {
			fn(r.session)
		}
		st = r.session.State()
	})
	return st, err
}
