package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/workout"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by method and path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestHTTPClientState verifies session reads parse the state document.
func TestHTTPClientState(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/session": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, workout.State{WorkoutID: "w-1", Index: 2, Total: 5, Phase: workout.PhaseRunning})
		},
	})
	defer ts.Close()

	st, err := NewHTTPClient(ts.URL+"/", "").State(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.WorkoutID != "w-1" || st.Index != 2 || st.Phase != workout.PhaseRunning {
		t.Errorf("state = %+v", st)
	}
}

// TestHTTPClientControlSendsKey verifies control calls POST with the API key.
func TestHTTPClientControlSendsKey(t *testing.T) {
	var seen []string
	control := func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "k" {
			t.Errorf("X-API-Key = %q, want k", got)
		}
		seen = append(seen, r.URL.Path)
		writeTestJSON(t, w, workout.State{})
	}
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/session/next":     control,
		"POST /api/v1/session/previous": control,
		"POST /api/v1/session/pause":    control,
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "k")
	ctx := context.Background()
	if _, err := c.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Previous(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.TogglePause(ctx); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 {
		t.Errorf("requests = %v", seen)
	}
}

// TestHTTPClientErrorStatus verifies non-200 responses become errors.
func TestHTTPClientErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/session/next": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid API key"}`, http.StatusForbidden)
		},
	})
	defer ts.Close()

	if _, err := NewHTTPClient(ts.URL, "bad").Next(context.Background()); err == nil {
		t.Fatal("expected error for 403")
	}
}

// TestHTTPClientCache verifies cache listing and invalidation mapping.
func TestHTTPClientCache(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/cache": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, CacheReport{
				Stats:   gifcache.Stats{Entries: 2, Hits: 7},
				Entries: []gifcache.Info{{URL: "a.gif"}, {URL: "b.gif"}},
			})
		},
		"DELETE /api/v1/cache": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("url") == "a.gif" {
				writeTestJSON(t, w, map[string]string{"invalidated": "a.gif"})
				return
			}
			w.WriteHeader(http.StatusNotFound)
		},
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "")
	ctx := context.Background()

	report, err := c.CacheReport(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Stats.Hits != 7 || len(report.Entries) != 2 {
		t.Errorf("report = %+v", report)
	}

	removed, err := c.InvalidateGIF(ctx, "a.gif")
	if err != nil || !removed {
		t.Errorf("InvalidateGIF(a.gif) = %v, %v", removed, err)
	}
	removed, err = c.InvalidateGIF(ctx, "zzz.gif")
	if err != nil || removed {
		t.Errorf("InvalidateGIF(zzz.gif) = %v, %v", removed, err)
	}
}
