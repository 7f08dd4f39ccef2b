package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/workout"
	"github.com/disintegration/imaging"
)

// loopTimeout bounds how long a handler waits for the playback loop.
const loopTimeout = 5 * time.Second

// maxPosterSide caps the requested poster dimensions.
const maxPosterSide = 2048

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, operatorFrom(r))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.runSession(w, r, nil)
}

// sessionAction adapts a Session method into a control handler that
// responds with the resulting state.
func (s *Server) sessionAction(fn func(*workout.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.log.Info("session control", "path", r.URL.Path, "operator", operatorFrom(r).Login)
		s.runSession(w, r, fn)
	}
}

func (s *Server) playerAction(fn func(*workout.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.runSession(w, r, fn)
	}
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index parameter must be an integer"})
		return
	}
	s.runSession(w, r, func(sess *workout.Session) {
		sess.Player().Seek(index)
	})
}

func (s *Server) runSession(w http.ResponseWriter, r *http.Request, fn func(*workout.Session)) {
	ctx, cancel := context.WithTimeout(r.Context(), loopTimeout)
	defer cancel()

	st, err := s.session.Do(ctx, fn)
	if err != nil {
		s.log.Error("session loop unavailable", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "playback loop unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if s.canvas == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no canvas surface"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.canvas.EncodePNG(w); err != nil {
		s.log.Error("encoding frame", "error", err)
	}
}

// handlePoster renders a thumbnail of the current exercise's first frame,
// fitted inside w x h.
func (s *Server) handlePoster(w http.ResponseWriter, r *http.Request) {
	width, err := dimension(r, "w", 320)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	height, err := dimension(r, "h", 240)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), loopTimeout)
	defer cancel()

	var entry *gifcache.Entry
	if _, err := s.session.Do(ctx, func(sess *workout.Session) {
		entry = sess.Player().Entry()
	}); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "playback loop unavailable"})
		return
	}
	if entry == nil || entry.Status() != gifcache.Ready {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no animation loaded"})
		return
	}

	frames := entry.Frames()
	thumb := imaging.Fit(frames[0].Pixels, width, height, imaging.Lanczos)

	w.Header().Set("Content-Type", "image/png")
	if err := imaging.Encode(w, thumb, imaging.PNG); err != nil {
		s.log.Error("encoding poster", "url", entry.URL(), "error", err)
	}
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":   s.cache.Stats(),
		"entries": s.cache.List(),
	})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url parameter required"})
		return
	}
	if !s.cache.Invalidate(url) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not cached"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": url})
}

func dimension(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxPosterSide {
		return 0, errors.New(name + " must be between 1 and " + strconv.Itoa(maxPosterSide))
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
