package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ctrl Controller, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("fitcourse", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("fitcourse workout player. Inspect the running workout session, move between exercises, pause or resume, and manage the animation cache."),
	)

	h := &handlers{ctrl: ctrl, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetSessionState, Handler: h.getSessionState},
		server.ServerTool{Tool: toolNextExercise, Handler: h.nextExercise},
		server.ServerTool{Tool: toolPreviousExercise, Handler: h.previousExercise},
		server.ServerTool{Tool: toolTogglePause, Handler: h.togglePause},
		server.ServerTool{Tool: toolGetCacheStats, Handler: h.getCacheStats},
		server.ServerTool{Tool: toolInvalidateGIF, Handler: h.invalidateGIF},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resSession, Handler: h.session},
		server.ServerResource{Resource: resCache, Handler: h.cache},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ctrl Controller
	log  *slog.Logger
}

// --- Resource definitions ---

var resSession = mcp.NewResource(
	"fitcourse://session",
	"Workout Session",
	mcp.WithResourceDescription("The running workout: current exercise, phase, countdown, elapsed seconds, repetitions and animation state"),
	mcp.WithMIMEType("application/json"),
)

var resCache = mcp.NewResource(
	"fitcourse://cache",
	"Animation Cache",
	mcp.WithResourceDescription("Decoded exercise animations with their status, frame counts and decode times"),
	mcp.WithMIMEType("application/json"),
)
