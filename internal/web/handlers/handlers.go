package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pbelov/snowview/internal/auth"
	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/dateutil"
	"github.com/pbelov/snowview/internal/metrics"
	"github.com/pbelov/snowview/internal/registry"
	"github.com/pbelov/snowview/internal/store"
	"github.com/pbelov/snowview/internal/warehouse"
	"github.com/pbelov/snowview/internal/web/models"
	"github.com/pbelov/snowview/internal/web/session"
	"github.com/pbelov/snowview/internal/web/views"
)

// QueryRunner runs the report query. Satisfied by warehouse.Executor.
type QueryRunner interface {
	Run(ctx context.Context, view models.View, dr dateutil.DateRange) (*warehouse.Result, error)
}

type Handlers struct {
	cfg      *config.Config
	logger   *slog.Logger
	views    *views.Engine
	authn    auth.Authenticator
	registry registry.Resolver
	runner   QueryRunner
	sessions *store.SessionRepository
	audit    *store.AuditRepository // nil when auditing is disabled
	cache    *session.ResultCache
	metrics  *metrics.Metrics
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	viewEngine *views.Engine,
	authn auth.Authenticator,
	resolver registry.Resolver,
	runner QueryRunner,
	sessions *store.SessionRepository,
	audit *store.AuditRepository,
	cache *session.ResultCache,
	m *metrics.Metrics,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		logger:   logger,
		views:    viewEngine,
		authn:    authn,
		registry: resolver,
		runner:   runner,
		sessions: sessions,
		audit:    audit,
		cache:    cache,
		metrics:  m,
	}
}

// Health check
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// Helper to render templates
func (h *Handlers) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.views.Render(w, name, data); err != nil {
		h.logger.Error("template render failed", "template", name, "error", err)
	}
}
