package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/surface"
	"github.com/claude/fitcourse/internal/workout"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	session *workout.Remote
	cache   *gifcache.Cache
	canvas  *surface.Canvas
	log     *slog.Logger
	apiKey  string
	whois   WhoIsFunc
	router  chi.Router
}

// New creates a new Server with all routes configured. An empty apiKey
// leaves the control routes open.
func New(session *workout.Remote, cache *gifcache.Cache, canvas *surface.Canvas, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		session: session,
		cache:   cache,
		canvas:  canvas,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.identity)
	s.router.Use(LogRequests(s.log))
	s.router.Use(CORS)

	s.router.Get("/api/v1/me", s.handleMe)
	s.router.Get("/api/v1/session", s.handleSession)
	s.router.Get("/api/v1/session/frame.png", s.handleFrame)
	s.router.Get("/api/v1/session/poster.png", s.handlePoster)
	s.router.Get("/api/v1/cache", s.handleCache)

	// Control endpoints (API key required when configured)
	s.router.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(RequireKey(s.apiKey))
		}
		r.Post("/api/v1/session/next", s.sessionAction((*workout.Session).Next))
		r.Post("/api/v1/session/previous", s.sessionAction((*workout.Session).Previous))
		r.Post("/api/v1/session/pause", s.sessionAction((*workout.Session).TogglePause))
		r.Post("/api/v1/session/restart", s.sessionAction((*workout.Session).Restart))

		r.Post("/api/v1/session/player/play", s.playerAction(func(s *workout.Session) { s.Player().Play() }))
		r.Post("/api/v1/session/player/pause", s.playerAction(func(s *workout.Session) { s.Player().Pause() }))
		r.Post("/api/v1/session/player/step-forward", s.playerAction(func(s *workout.Session) { s.Player().StepForward() }))
		r.Post("/api/v1/session/player/step-backward", s.playerAction(func(s *workout.Session) { s.Player().StepBackward() }))
		r.Post("/api/v1/session/player/seek", s.handleSeek)

		r.Delete("/api/v1/cache", s.handleInvalidate)
	})
}

// MountMCP serves an MCP transport handler at /mcp behind the API key.
func (s *Server) MountMCP(h http.Handler) {
	if s.apiKey != "" {
		h = RequireKey(s.apiKey)(h)
	}
	s.router.Handle("/mcp", h)
}

// SetWhoIs enables caller identification, typically through the tailnet.
func (s *Server) SetWhoIs(fn WhoIsFunc) {
	s.whois = fn
}
