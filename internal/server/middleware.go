package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type ctxKey struct{}

// Operator is whoever is driving the player: a tailnet user, or the
// local operator when serving on a plain listener.
type Operator struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

var localOperator = Operator{Login: "local", Name: "Local operator"}

// WhoIsFunc resolves the operator behind r.
type WhoIsFunc func(r *http.Request) (Operator, error)

// RequireKey rejects control requests that do not carry key, either as
// X-API-Key or as a bearer token. A missing key is 401, a wrong one 403.
func RequireKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-API-Key")
			if got == "" {
				got, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			switch got {
			case "":
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing API key"})
			case key:
				next.ServeHTTP(w, r)
			default:
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid API key"})
			}
		})
	}
}

// LogRequests logs one line per request. Frame and poster fetches are
// polled by viewers at animation rate, so they only show up at debug level.
func LogRequests(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, ".png") && sw.status < 400 {
				level = slog.LevelDebug
			}
			log.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"operator", operatorFrom(r).Login,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// CORS lets browser dashboards on other origins poll the session and send
// control requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LocalOperator attributes every request to the local operator.
func LocalOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, withOperator(r, localOperator))
	})
}

// identity resolves the operator through whois when one is set.
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			LocalOperator(next).ServeHTTP(w, r)
			return
		}
		op, err := s.whois(r)
		if err != nil {
			s.log.Warn("whois failed", "remote", r.RemoteAddr, "error", err)
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "unknown caller"})
			return
		}
		next.ServeHTTP(w, withOperator(r, op))
	})
}

func withOperator(r *http.Request, op Operator) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKey{}, op))
}

func operatorFrom(r *http.Request) Operator {
	if op, ok := r.Context().Value(ctxKey{}).(Operator); ok {
		return op
	}
	return localOperator
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
