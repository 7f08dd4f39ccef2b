package server

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

// TestLocalOperator verifies requests on a plain listener are attributed to
// the local operator, and that the same operator is the fallback.
func TestLocalOperator(t *testing.T) {
	var got Operator
	h := LocalOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = operatorFrom(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != localOperator {
		t.Errorf("operator = %+v, want %+v", got, localOperator)
	}

	if op := operatorFrom(httptest.NewRequest(http.MethodGet, "/", nil)); op != localOperator {
		t.Errorf("fallback operator = %+v", op)
	}

	coach := Operator{Login: "coach@example.com", Name: "Coach"}
	if op := operatorFrom(withOperator(httptest.NewRequest(http.MethodGet, "/", nil), coach)); op != coach {
		t.Errorf("operator = %+v, want %+v", op, coach)
	}
}

// TestIdentityRejectsUnknownCaller verifies that a failed WhoIs lookup
// refuses the request instead of treating it as local.
func TestIdentityRejectsUnknownCaller(t *testing.T) {
	s := &Server{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		whois: func(*http.Request) (Operator, error) {
			return Operator{}, errors.New("no such peer")
		},
	}
	h := s.identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

// TestRequireKey verifies missing and wrong keys are told apart and that a
// bearer token is accepted in place of X-API-Key.
func TestRequireKey(t *testing.T) {
	h := RequireKey("k")(okHandler(http.StatusNoContent))

	cases := []struct {
		header, value string
		want          int
	}{
		{"", "", http.StatusUnauthorized},
		{"X-API-Key", "nope", http.StatusForbidden},
		{"X-API-Key", "k", http.StatusNoContent},
		{"Authorization", "Bearer k", http.StatusNoContent},
		{"Authorization", "Bearer nope", http.StatusForbidden},
		{"Authorization", "Basic k", http.StatusForbidden},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if c.header != "" {
			req.Header.Set(c.header, c.value)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != c.want {
			t.Errorf("%s %q: status = %d, want %d", c.header, c.value, rec.Code, c.want)
		}
	}
}

// TestLogRequests verifies control requests log at info while frame polling
// only logs at debug.
func TestLogRequests(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	LogRequests(log)(okHandler(http.StatusCreated)).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/session/next", nil))
	if !strings.Contains(buf.String(), "status=201") || !strings.Contains(buf.String(), "operator=local") {
		t.Errorf("log line = %q", buf.String())
	}

	buf.Reset()
	LogRequests(log)(okHandler(http.StatusOK)).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/session/frame.png", nil))
	if buf.Len() != 0 {
		t.Errorf("frame fetch logged at info: %q", buf.String())
	}
}

// TestCORS verifies headers on normal requests and that preflight requests
// are answered without reaching the handler.
func TestCORS(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(okHandler(http.StatusOK)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("allow headers = %q", got)
	}

	preflight := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))
	rec = httptest.NewRecorder()
	preflight.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}
