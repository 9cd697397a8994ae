package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/syncveil/apiserver/config"
	"github.com/syncveil/apiserver/internal/auth"
	"github.com/syncveil/apiserver/internal/db"
	"github.com/syncveil/apiserver/internal/events"
	"github.com/syncveil/apiserver/internal/handlers"
	"github.com/syncveil/apiserver/internal/services"
	"github.com/syncveil/apiserver/internal/storage"
	"github.com/syncveil/apiserver/internal/store"
)

// Server wraps the HTTP server, the router, and the background workers.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *events.Bus
	cancel     context.CancelFunc
}

// New constructs a Server: opens the database, wires the services and
// routes, and starts the breach monitor and expiry janitor goroutines.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	tokenRepo := store.NewTokenRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	vaultRepo := store.NewVaultFileRepository(dbConn)
	breachRepo := store.NewBreachEventRepository(dbConn)

	hasher := auth.NewHasher(auth.HasherParams{
		Time:    uint32(cfg.Auth.HashTimeCost),
		Memory:  uint32(cfg.Auth.HashMemoryCostKiB),
		Threads: uint8(cfg.Auth.HashParallelism),
	})

	issuer, err := services.NewIssuer(cfg.Auth, sessionRepo)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	bus, err := events.NewBusFromConfig(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		_ = bus.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		_ = bus.Close()
		return nil, fmt.Errorf("ensure vault bucket: %w", err)
	}

	verification := services.NewVerificationService(tokenRepo, cfg.Auth.VerificationTTL)
	mailer := services.NewMailer(cfg.Mailer, logger)
	authService := services.NewAuthService(
		userRepo, hasher, verification, issuer, mailer, bus, logger, cfg.Auth.AutoVerifyEmail,
	)
	vaultService := services.NewVaultService(vaultRepo, objects, logger)
	monitorService := services.NewMonitorService(breachRepo, bus, logger)
	janitor := services.NewJanitor(sessionRepo, tokenRepo, cfg.Auth.CleanupInterval, logger)

	authMiddleware := handlers.RequireAuth(authService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService)
	})
	router.Route("/api/dashboard", func(r chi.Router) {
		handlers.DashboardRouter(r, vaultService, monitorService, sessionRepo, authMiddleware)
	})
	router.Route("/api/vault", func(r chi.Router) {
		handlers.VaultRouter(r, vaultService, authMiddleware)
	})
	router.Route("/api/monitor", func(r chi.Router) {
		handlers.MonitorRouter(r, monitorService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := monitorService.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("breach monitor stopped", "error", err)
		}
	}()
	go janitor.Run(workerCtx)

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
		cancel:     cancel,
	}, nil
}

// cors allows the browser dashboard to call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the workers and closes the server's resources.
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
