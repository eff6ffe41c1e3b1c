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
	"syscall"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsnet"

	"github.com/claude/posecoach/internal/coach"
	"github.com/claude/posecoach/internal/config"
	"github.com/claude/posecoach/internal/form"
	"github.com/claude/posecoach/internal/mcp"
	"github.com/claude/posecoach/internal/metrics"
	"github.com/claude/posecoach/internal/models"
	apiserver "github.com/claude/posecoach/internal/server"
	"github.com/claude/posecoach/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// reapInterval is how often idle live sessions are checked.
const reapInterval = time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := cfg.Log.NewLogger(cfg.Log.Output(os.Stdout))
	log.Info("PoseCoach starting", "version", Version)

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Metrics and coach
	promRegistry := metrics.SetupPrometheus(pgxpoolprometheus.NewCollector(
		db.Pool,
		map[string]string{"db_name": cfg.Database.Name},
	))
	m := metrics.NewManager("posecoach", "coach", promRegistry)

	engine := coach.NewEngine(log, form.Options{SideViewChecks: cfg.Coach.SideViewChecks}, m)
	registry := coach.NewRegistry(engine, log)
	registry.OnChange(m.SetActiveSessions)

	// Create server
	srv := apiserver.New(db, registry, cfg.Auth.APIKey, m, log)
	srv.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	mcpServer := mcp.New(db, engine, Version, log)
	srv.HandleWithIdentity("/mcp", server.NewStreamableHTTPServer(mcpServer,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return mcp.WithUserID(ctx, apiserver.UserID(r))
		}),
	))

	// Idle sessions are persisted like ended ones.
	go registry.RunReaper(ctx, reapInterval, cfg.Coach.SessionIdleTimeout, func(sum coach.Summary) {
		pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := srv.Persist(pctx, sum, models.SourceLive); err != nil {
			log.Error("storing reaped session", "session", sum.SessionID, "error", err)
		}
	})

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	// Sessions still open at shutdown are stored rather than lost.
	if err := srv.PersistAll(shutdownCtx, registry.Drain(), models.SourceLive); err != nil {
		log.Error("storing sessions at shutdown", "error", err)
	}
	log.Info("server stopped")
}
