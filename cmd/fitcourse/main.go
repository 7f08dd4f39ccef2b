package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/claude/fitcourse/internal/app"
	"github.com/claude/fitcourse/internal/config"
	"github.com/claude/fitcourse/internal/logging"
	fcmcp "github.com/claude/fitcourse/internal/mcp"
	"github.com/claude/fitcourse/internal/server"
	"github.com/claude/fitcourse/internal/storage"
	"github.com/claude/fitcourse/internal/surface"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	workoutFile := flag.String("workout", "", "workout definition file (YAML or JSON)")
	workoutID := flag.String("workout-id", "", "workout to fetch from api.base_url")
	resume := flag.String("resume", "", `resume query, e.g. "session=...&exercise=...&resume=1"`)
	restart := flag.Bool("restart", false, "start a fresh session, ignoring any stored position")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpRemote := flag.String("mcp-remote", "", "serve MCP on stdio, controlling the fitcourse daemon at this URL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	if *mcpRemote != "" {
		// stdout carries the MCP protocol
		log := logging.NewWriter(os.Stderr, cfg.Log)
		if err := serveRemoteMCP(*mcpRemote, cfg.Server.APIKey, log); err != nil {
			log.Error("mcp stdio server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	log := logging.New(cfg.Log)
	log.Info("fitcourse starting", "version", Version)

	if *migrateOnly {
		if err := migrate(cfg); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrate-only: exiting")
		return
	}

	ctx := context.Background()
	canvas := surface.NewCanvas(cfg.Player.Width, cfg.Player.Height)

	a, err := app.New(ctx, cfg, canvas, nil, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	w, err := a.LoadWorkout(ctx, app.Source{
		File:      *workoutFile,
		WorkoutID: *workoutID,
		Resume:    *resume,
		Restart:   *restart,
	})
	if err != nil {
		log.Error("failed to load workout", "error", err)
		a.Close(ctx)
		os.Exit(1)
	}
	log.Info("workout started", "workout_id", w.ID, "exercises", len(w.Exercises))

	srv := server.New(a.Remote, a.Cache, canvas, cfg.Server.APIKey, log)
	mcpSrv := fcmcp.New(&fcmcp.Local{Session: a.Remote, Cache: a.Cache}, Version, log)
	srv.MountMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	listener, closeListener, err := listen(cfg, srv, log)
	if err != nil {
		log.Error("listen failed", "error", err)
		a.Close(ctx)
		os.Exit(1)
	}
	defer closeListener()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.Serve(listener) }()

	select {
	case <-sigCtx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	a.Close(shutdownCtx)

	stats := a.Progress.Stats()
	log.Info("fitcourse stopped", "reports_sent", stats.Attempts-stats.Failures, "reports_failed", stats.Failures)
}

// listen opens the control listener: a tailnet node when tailscale is
// enabled, with operators identified by WhoIs, or a plain TCP socket.
func listen(cfg *config.Config, srv *server.Server, log *slog.Logger) (net.Listener, func(), error) {
	if !cfg.Tailscale.Enabled {
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("listening on %s: %w", addr, err)
		}
		log.Info("control server listening", "addr", addr)
		return ln, func() {}, nil
	}

	ts := &tsnet.Server{Hostname: cfg.Tailscale.Hostname, Dir: cfg.Tailscale.StateDir}
	if err := ts.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting tsnet: %w", err)
	}
	lc, err := ts.LocalClient()
	if err != nil {
		ts.Close()
		return nil, nil, fmt.Errorf("tsnet local client: %w", err)
	}
	srv.SetWhoIs(func(r *http.Request) (server.Operator, error) {
		who, err := lc.WhoIs(r.Context(), r.RemoteAddr)
		if err != nil {
			return server.Operator{}, err
		}
		if who.UserProfile == nil {
			return server.Operator{}, fmt.Errorf("no user profile for %s", r.RemoteAddr)
		}
		return server.Operator{Login: who.UserProfile.LoginName, Name: who.UserProfile.DisplayName}, nil
	})

	ln, err := ts.Listen("tcp", ":80")
	if err != nil {
		ts.Close()
		return nil, nil, fmt.Errorf("tsnet listen: %w", err)
	}
	log.Info("control server on tailnet", "hostname", cfg.Tailscale.Hostname)
	return ln, func() { ts.Close() }, nil
}

func migrate(cfg *config.Config) error {
	switch cfg.Store.Driver {
	case "sqlite":
		return storage.MigrateSQLite(cfg.Store.Path)
	case "postgres":
		return storage.MigratePostgres(cfg.Store.Database.DSN())
	default:
		return nil
	}
}

func serveRemoteMCP(baseURL, apiKey string, log *slog.Logger) error {
	ctrl := fcmcp.NewHTTPClient(baseURL, apiKey)
	s := fcmcp.New(ctrl, Version, log)
	log.Info("mcp stdio server starting", "remote", baseURL)
	return mcpserver.ServeStdio(s)
}
