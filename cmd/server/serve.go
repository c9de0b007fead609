package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/health"

	"github.com/ashureev/finboard/internal/api"
	"github.com/ashureev/finboard/internal/auth"
	"github.com/ashureev/finboard/internal/authclient"
	"github.com/ashureev/finboard/internal/chat"
	"github.com/ashureev/finboard/internal/config"
	"github.com/ashureev/finboard/internal/identity"
	"github.com/ashureev/finboard/internal/live"
	"github.com/ashureev/finboard/internal/middleware"
	"github.com/ashureev/finboard/internal/probe"
	"github.com/ashureev/finboard/internal/session"
	"github.com/ashureev/finboard/internal/shell"
	"github.com/ashureev/finboard/internal/store"
	"github.com/ashureev/finboard/internal/ui"
	"github.com/ashureev/finboard/web"
)

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func serve(parent context.Context, port string) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}
	if port != "" {
		cfg.Port = port
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "version", version)

	// Transcript store (optional).
	var repo store.Repository
	if cfg.Transcript.Enabled {
		sqliteRepo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			return err
		}
		defer func() {
			if closeErr := sqliteRepo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		if err := sqliteRepo.Ping(parent); err != nil {
			slog.Error("Database health check failed", "error", err)
			return err
		}
		repo = sqliteRepo
		slog.Info("Transcript store connected", "path", cfg.DBPath)
	} else {
		slog.Info("Chat transcripts disabled")
	}

	// Backends.
	authClient := authclient.New(cfg.AuthURL, cfg.AuthTimeout, authclient.WithLogger(logger))
	chatClient := chat.NewClient(cfg.ChatURL, cfg.ChatTimeout)
	resolver := session.NewResolver(authClient, logger)

	widgetOpts := []chat.Option{chat.WithLogger(logger)}
	if repo != nil {
		widgetOpts = append(widgetOpts, chat.WithRecorder(repo))
	}

	// Workspaces.
	registry := shell.NewRegistry(func(id string) *shell.Workspace {
		return shell.NewWorkspace(id, resolver, chat.NewWidget(id, chatClient, widgetOpts...))
	}, cfg.WorkspaceTTL)
	hub := live.NewHub()
	limiter := api.NewKeyedLimiter(cfg.ChatRateLimit)
	registry.OnEvict(hub.CloseWorkspace)
	registry.OnEvict(limiter.Forget)

	ids := identity.NewManager(identity.NewStore(cfg.SessionSecret, cfg.IsDevelopment()), registry, logger)
	authSvc := auth.NewService(authClient, cfg.LoginCloseDelay, logger)

	// Handlers.
	var healthRepo api.Pinger
	if repo != nil {
		healthRepo = repo
	}
	healthHandler := api.NewHealthHandler(healthRepo, 5*time.Second)
	shellHandler := api.NewShellHandler(authSvc, logger)
	chatHandler := api.NewChatHandler(limiter, logger)
	liveHandler := live.NewHandler(hub, limiter, cfg.OriginHosts(), cfg.IsDevelopment(), logger)
	pageHandler := ui.NewHandler(authSvc, ids, limiter, web.MustTemplates(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", web.StaticHandler())

	// Everything else runs inside a workspace.
	r.Group(func(r chi.Router) {
		r.Use(ids.Middleware)
		r.Route("/api", func(r chi.Router) {
			shellHandler.RegisterRoutes(r)
			chatHandler.RegisterRoutes(r)
		})
		r.Get("/ws/chat", liveHandler.ServeHTTP)
		pageHandler.RegisterRoutes(r)
	})

	// Create server.
	// Note: websocket connections require long timeouts (no WriteTimeout)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background workers.
	shell.StartTTLWorker(ctx, registry, shell.SweepInterval(cfg.WorkspaceTTL))
	slog.Info("TTL worker started", "workspace_ttl", cfg.WorkspaceTTL)

	if repo != nil {
		store.StartRetentionWorker(ctx, repo, cfg.Transcript.Retention, time.Hour)
	}

	var (
		probeServer *probe.Server
		hs          *health.Server
	)
	if cfg.Probe.Addr != "" {
		probeServer = probe.NewServer(logger)
		hs = probeServer.Health()
	}
	checker := probe.NewChecker(hs, 5*time.Second, logger,
		probe.Target{Name: "auth", Pinger: authClient},
		probe.Target{Name: "chat", Pinger: chatClient},
	)
	checker.Start(ctx, cfg.Probe.Interval)

	errCh := make(chan error, 2)
	if probeServer != nil {
		go func() {
			if err := probeServer.ListenAndServe(ctx, cfg.Probe.Addr); err != nil {
				errCh <- fmt.Errorf("health service: %w", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	// Wait for shutdown signal.
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("Server failed", "error", runErr)
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return runErr
}
