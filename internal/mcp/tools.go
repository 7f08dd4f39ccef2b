package mcp

import (
	"context"

	"github.com/claude/fitcourse/internal/workout"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolGetSessionState = mcp.NewTool("get_session_state",
	mcp.WithDescription("Get the running workout session: exercise index and total, current exercise with mode and target, phase (loading, countdown, running, completed), paused flag, countdown, elapsed seconds, counted repetitions and animation status."),
)

var toolNextExercise = mcp.NewTool("next_exercise",
	mcp.WithDescription("Skip to the next exercise. The current exercise is finished with whatever was achieved so far. Skipping past the last exercise completes the workout."),
)

var toolPreviousExercise = mcp.NewTool("previous_exercise",
	mcp.WithDescription("Go back. Within the first two seconds of running this returns to the previous exercise, otherwise it restarts the current one."),
)

var toolTogglePause = mcp.NewTool("toggle_pause",
	mcp.WithDescription("Pause or resume the workout. Pausing during the countdown cancels it; resuming then starts the exercise immediately."),
)

var toolGetCacheStats = mcp.NewTool("get_cache_stats",
	mcp.WithDescription("Get decode cache counters (requests, hits, decodes, failures, evictions) and the cached animations."),
)

var toolInvalidateGIF = mcp.NewTool("invalidate_gif",
	mcp.WithDescription("Drop a cached animation so the next request fetches and decodes it again. Use after an asset was replaced at the same URL."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Animation URL exactly as referenced by the exercise")),
)

// --- Tool handlers ---

func (h *handlers) getSessionState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.ctrl.State(ctx)
	return h.stateResult("get_session_state", st, err)
}

func (h *handlers) nextExercise(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.ctrl.Next(ctx)
	return h.stateResult("next_exercise", st, err)
}

func (h *handlers) previousExercise(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.ctrl.Previous(ctx)
	return h.stateResult("previous_exercise", st, err)
}

func (h *handlers) togglePause(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.ctrl.TogglePause(ctx)
	return h.stateResult("toggle_pause", st, err)
}

func (h *handlers) stateResult(tool string, st workout.State, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		h.log.Error("mcp "+tool, "error", err)
		return mcp.NewToolResultError("session unavailable: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(st)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCacheStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.ctrl.CacheReport(ctx)
	if err != nil {
		h.log.Error("mcp get_cache_stats", "error", err)
		return mcp.NewToolResultError("cache unavailable: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(report)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) invalidateGIF(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	removed, err := h.ctrl.InvalidateGIF(ctx, url)
	if err != nil {
		h.log.Error("mcp invalidate_gif", "url", url, "error", err)
		return mcp.NewToolResultError("invalidate failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"url":         url,
		"invalidated": removed,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
