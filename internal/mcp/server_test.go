package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/workout"
	"github.com/mark3labs/mcp-go/mcp"
)

// fakeController records calls and serves canned state.
type fakeController struct {
	state   workout.State
	err     error
	calls   []string
	removed map[string]bool
}

func (f *fakeController) call(name string) (workout.State, error) {
	f.calls = append(f.calls, name)
	return f.state, f.err
}

func (f *fakeController) State(context.Context) (workout.State, error) { return f.call("state") }
func (f *fakeController) Next(context.Context) (workout.State, error) {
	f.state.Index++
	return f.call("next")
}
func (f *fakeController) Previous(context.Context) (workout.State, error) { return f.call("previous") }
func (f *fakeController) TogglePause(context.Context) (workout.State, error) {
	f.state.Paused = !f.state.Paused
	return f.call("pause")
}

func (f *fakeController) CacheReport(context.Context) (*CacheReport, error) {
	f.calls = append(f.calls, "cache")
	return &CacheReport{
		Stats:   gifcache.Stats{Entries: 1, Ready: 1, Requests: 3, Hits: 2, Decodes: 1},
		Entries: []gifcache.Info{{URL: "squat.gif", Status: "ready", Frames: 12}},
	}, f.err
}

func (f *fakeController) InvalidateGIF(_ context.Context, url string) (bool, error) {
	f.calls = append(f.calls, "invalidate "+url)
	return f.removed[url], f.err
}

func testHandlers(ctrl Controller) *handlers {
	return &handlers{ctrl: ctrl, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// TestSessionTools verifies the navigation tools call through to the
// controller and return the new state.
func TestSessionTools(t *testing.T) {
	ctrl := &fakeController{state: workout.State{WorkoutID: "w-1", Total: 3, Phase: workout.PhaseRunning}}
	h := testHandlers(ctrl)
	ctx := context.Background()

	res, err := h.nextExercise(ctx, callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	var st workout.State
	if err := json.Unmarshal([]byte(resultText(t, res)), &st); err != nil {
		t.Fatalf("result is not a state: %v", err)
	}
	if st.Index != 1 || st.WorkoutID != "w-1" {
		t.Errorf("state = %+v", st)
	}

	res, err = h.togglePause(ctx, callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(t, res), `"paused":true`) {
		t.Errorf("toggle_pause result = %s", resultText(t, res))
	}

	if _, err := h.previousExercise(ctx, callTool(nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := h.getSessionState(ctx, callTool(nil)); err != nil {
		t.Fatal(err)
	}

	want := []string{"next", "pause", "previous", "state"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", ctrl.calls, want)
	}
}

// TestToolErrorResult verifies controller failures become tool errors
// rather than protocol errors.
func TestToolErrorResult(t *testing.T) {
	h := testHandlers(&fakeController{err: errors.New("loop stopped")})

	res, err := h.getSessionState(context.Background(), callTool(nil))
	if err != nil {
		t.Fatalf("protocol error: %v", err)
	}
	if !res.IsError {
		t.Error("IsError = false, want true")
	}
	if !strings.Contains(resultText(t, res), "loop stopped") {
		t.Errorf("error text = %q", resultText(t, res))
	}
}

// TestInvalidateGIF verifies the url argument is required and passed through.
func TestInvalidateGIF(t *testing.T) {
	ctrl := &fakeController{removed: map[string]bool{"squat.gif": true}}
	h := testHandlers(ctrl)
	ctx := context.Background()

	res, err := h.invalidateGIF(ctx, callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("missing url should be a tool error")
	}

	res, err = h.invalidateGIF(ctx, callTool(map[string]any{"url": "squat.gif"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(t, res), `"invalidated":true`) {
		t.Errorf("result = %s", resultText(t, res))
	}
	if ctrl.calls[len(ctrl.calls)-1] != "invalidate squat.gif" {
		t.Errorf("calls = %v", ctrl.calls)
	}
}

// TestCacheStatsTool verifies the cache report is returned as JSON.
func TestCacheStatsTool(t *testing.T) {
	h := testHandlers(&fakeController{})
	res, err := h.getCacheStats(context.Background(), callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	var report CacheReport
	if err := json.Unmarshal([]byte(resultText(t, res)), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Stats.Hits != 2 || len(report.Entries) != 1 || report.Entries[0].Frames != 12 {
		t.Errorf("report = %+v", report)
	}
}

// TestSessionResource verifies the session resource carries the state as JSON.
func TestSessionResource(t *testing.T) {
	h := testHandlers(&fakeController{state: workout.State{WorkoutID: "w-9", Reps: 4}})

	var req mcp.ReadResourceRequest
	req.Params.URI = "fitcourse://session"
	contents, err := h.session(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	if text.URI != "fitcourse://session" || text.MIMEType != "application/json" {
		t.Errorf("uri=%q mime=%q", text.URI, text.MIMEType)
	}
	var st workout.State
	if err := json.Unmarshal([]byte(text.Text), &st); err != nil {
		t.Fatal(err)
	}
	if st.WorkoutID != "w-9" || st.Reps != 4 {
		t.Errorf("state = %+v", st)
	}
}

// TestNewRegistersTools verifies every tool is listed by the server.
func TestNewRegistersTools(t *testing.T) {
	s := New(&fakeController{}, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"get_session_state", "next_exercise", "previous_exercise", "toggle_pause", "get_cache_stats", "invalidate_gif"} {
		if !strings.Contains(string(data), `"`+name+`"`) {
			t.Errorf("tools/list missing %s: %s", name, data)
		}
	}
}
