package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pbelov/snowview/internal/auth"
	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/metrics"
	"github.com/pbelov/snowview/internal/registry"
	"github.com/pbelov/snowview/internal/store"
	"github.com/pbelov/snowview/internal/warehouse"
	"github.com/pbelov/snowview/internal/web/handlers"
	"github.com/pbelov/snowview/internal/web/middleware"
	"github.com/pbelov/snowview/internal/web/session"
	"github.com/pbelov/snowview/internal/web/static"
	"github.com/pbelov/snowview/internal/web/views"
)

// sweepInterval is how often expired sessions and their cached results
// are removed.
const sweepInterval = 10 * time.Minute

type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.DB
	pool     *sql.DB
	sessions *store.SessionRepository
	cache    *session.ResultCache
	metrics  *metrics.Metrics
	views    *views.Engine
	http     *http.Server
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// Initialize metadata database (sessions always live here)
	database, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Open the warehouse pool once; every report query shares it
	pool, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	// Initialize views
	viewEngine, err := views.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize views: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		pool:     pool,
		sessions: store.NewSessionRepository(database),
		cache:    session.NewResultCache(),
		metrics:  metrics.New(),
		views:    viewEngine,
	}

	s.http = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // large exports
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) setupRoutes() http.Handler {
	// Auth strategy and view registry depend on the configured mode.
	// Auditing only exists in database mode; a nil repo disables it.
	var (
		authn    auth.Authenticator
		resolver registry.Resolver
		audit    *store.AuditRepository
	)
	switch s.cfg.Auth.Mode {
	case config.AuthModeDatabase:
		users := store.NewUserRepository(s.db)
		authn = auth.NewDatabase(users, s.logger)
		resolver = registry.NewDatabase(store.NewViewRepository(s.db), s.logger)
		audit = store.NewAuditRepository(s.db)
	default:
		authn = auth.NewStatic(s.cfg.Auth, s.logger)
		resolver = registry.NewStatic(s.cfg, s.logger)
	}

	executor := warehouse.NewExecutor(s.pool, s.cfg.Warehouse.Database, s.cfg.Warehouse.QueryTimeout, s.logger)

	h := handlers.New(s.cfg, s.logger, s.views, authn, resolver, executor,
		s.sessions, audit, s.cache, s.metrics)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Logger(s.logger))
	r.Use(s.metrics.HTTPMiddleware)

	// Public routes
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", static.Handler()))
	r.Get("/auth/login", h.LoginPage)
	r.Post("/auth/login", h.Login)
	r.Get("/auth/logout", h.Logout)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(s.sessions, s.logger))
		r.Get("/", h.Dashboard)
		r.Post("/query", h.Query)
		r.Get("/export", h.Export)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	go s.sweepSessions(ctx)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting web server", "addr", s.cfg.Server.ListenAddr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
		}
		s.close()
		return nil
	}
}

// sweepSessions periodically drops expired sessions and their cached
// results.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := s.sessions.DeleteExpired(ctx)
			if err != nil {
				s.logger.Error("session sweep failed", "error", err)
				continue
			}
			for _, id := range ids {
				s.cache.Delete(id)
			}
			if len(ids) > 0 {
				s.metrics.ActiveSessions.Sub(float64(len(ids)))
				s.logger.Info("swept expired sessions", "count", len(ids))
			}
		}
	}
}

func (s *Server) close() {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("failed to close warehouse pool", "error", err)
	}
	s.db.Close()
}
