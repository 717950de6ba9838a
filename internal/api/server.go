// Package api provides the HTTP API server for the platform.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/regulateai/platform/internal/api/handlers"
	"github.com/regulateai/platform/internal/api/health"
	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/auth"
	"github.com/regulateai/platform/internal/compliance"
	"github.com/regulateai/platform/internal/ingest"
	"github.com/regulateai/platform/internal/queue"
	"github.com/regulateai/platform/internal/secrets"
	"github.com/regulateai/platform/internal/store"
	"github.com/regulateai/platform/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	queue         queue.Queue
	auth          *auth.Service
	cipher        *secrets.Cipher
	scorer        *compliance.Scorer
	pipeline      *ingest.Pipeline
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, q queue.Queue, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:  st,
		queue:  q,
		auth:   authSvc,
		config: cfg,
		logger: logger,
	}

	s.healthChecker = health.NewChecker(pingerFor(st), Version)

	// Document encryption at rest; decryption also needed to serve content.
	if cfg.Documents.AgePublicKey != "" || cfg.Documents.AgePrivateKey != "" {
		cipher, err := secrets.NewCipher(&secrets.Config{
			AgePublicKey:  cfg.Documents.AgePublicKey,
			AgePrivateKey: cfg.Documents.AgePrivateKey,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize document cipher", "error", err)
		} else {
			s.cipher = cipher
			logger.Info("document cipher initialized",
				"can_encrypt", cipher.CanEncrypt(),
				"can_decrypt", cipher.CanDecrypt(),
			)
		}
	} else {
		logger.Warn("document encryption not configured, generated documents will be unavailable")
	}

	rules := compliance.DefaultRules()
	if cfg.Compliance.RulesPath != "" {
		loaded, err := compliance.LoadRules(cfg.Compliance.RulesPath)
		if err != nil {
			logger.Error("failed to load compliance rules, using defaults", "error", err)
		} else {
			rules = loaded
		}
	}
	s.scorer = compliance.NewScorer(st, rules, cfg.Compliance.ScoreWindow, logger)

	s.pipeline = ingest.NewPipeline(st, ingest.Config{
		MaxBatchSize:   cfg.Ingest.MaxBatchSize,
		LookbackWindow: cfg.Ingest.LookbackWindow,
	}, logger)

	s.setupRouter()
	return s
}

// pingerFor extracts a health pinger from the store when available.
func pingerFor(st store.Store) health.Pinger {
	if p, ok := st.(health.Pinger); ok {
		return p
	}
	return nil
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	// Auth routes (no auth required)
	authHandler := handlers.NewAuthHandler(s.store, s.auth, s.logger)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// SDK ingestion, authenticated by project API key
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(s.auth, s.store.APIKeys(), s.config.APIKeyHeader, s.logger)
	ingestHandler := handlers.NewIngestHandler(s.pipeline, s.logger)
	r.Route("/ingest", func(r chi.Router) {
		r.Use(apiKeyMiddleware.Authenticate)
		r.Post("/logs", ingestHandler.Ingest)
	})

	// Dashboard API, authenticated by JWT
	authMiddleware := middleware.NewAuthMiddleware(s.auth, s.logger)
	orgHandler := handlers.NewOrgHandler(s.store, s.logger)
	projectHandler := handlers.NewProjectHandler(s.store, s.logger)
	apiKeyHandler := handlers.NewAPIKeyHandler(s.store, s.logger)
	logHandler := handlers.NewLogHandler(s.store, s.logger)
	logStreamHandler := handlers.NewLogStreamHandler(s.store, s.logger)
	alertHandler := handlers.NewAlertHandler(s.store, s.logger)
	documentHandler := handlers.NewDocumentHandler(s.store, s.queue, s.cipher, s.logger)
	dashboardHandler := handlers.NewDashboardHandler(s.store, s.scorer, s.config.Compliance.ScoreWindow, s.logger)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/orgs", func(r chi.Router) {
			r.Post("/", orgHandler.Create)
			r.Get("/", orgHandler.List)
			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", orgHandler.Get)
				r.Patch("/", orgHandler.Update)
				r.Delete("/", orgHandler.Delete)
				r.Get("/members", orgHandler.ListMembers)
			})
		})

		// Project routes require organization context
		r.Group(func(r chi.Router) {
			r.Use(middleware.OrgContext(s.store, s.logger))

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", projectHandler.Create)
				r.Get("/", projectHandler.List)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Use(middleware.ProjectAccess(s.store, s.logger))

					r.Get("/", projectHandler.Get)
					r.Patch("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)

					r.Route("/keys", func(r chi.Router) {
						r.Post("/", apiKeyHandler.Create)
						r.Get("/", apiKeyHandler.List)
						r.Delete("/{keyID}", apiKeyHandler.Revoke)
					})

					r.Route("/logs", func(r chi.Router) {
						r.Get("/", logHandler.List)
						r.Get("/search", logHandler.Search)
						r.Get("/export", logHandler.Export)
						r.Get("/stream", logStreamHandler.Stream)
						r.Get("/{logID}", logHandler.Get)
					})

					r.Route("/alerts", func(r chi.Router) {
						r.Get("/", alertHandler.List)
						r.Post("/{alertID}/resolve", alertHandler.Resolve)
					})

					r.Route("/documents", func(r chi.Router) {
						r.Post("/", documentHandler.Generate)
						r.Get("/", documentHandler.List)
						r.Get("/{documentID}", documentHandler.Get)
					})

					r.Get("/stats", dashboardHandler.Stats)
					r.Get("/score", dashboardHandler.Score)
				})
			})
		})
	})

	s.router = r
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
