// internal/api/router.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"commitsync/internal/apikey"
	"commitsync/internal/ingest"
	"commitsync/internal/metrics"
	"commitsync/internal/model"
	"commitsync/internal/store"
)

// IngestionService is the batch insertion core the submit endpoint fronts.
type IngestionService interface {
	SubmitBatch(ctx context.Context, repoID, actor, clientVersion string, commits []model.Commit) (*ingest.Result, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	db        store.Querier
	ingestion IngestionService
	authority *apikey.Authority
	limiter   *limiterRegistry
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// RouterConfig bundles the wiring for NewRouter.
type RouterConfig struct {
	DB             store.Querier
	Ingestion      IngestionService
	Authority      *apikey.Authority
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Registry       *prometheus.Registry
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(cfg RouterConfig) http.Handler {
	h := &Handler{
		db:        cfg.DB,
		ingestion: cfg.Ingestion,
		authority: cfg.Authority,
		limiter:   newLimiterRegistry(cfg.RateLimitRPS, cfg.RateLimitBurst),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		// Push-transport ingestion and status, behind bearer API keys.
		r.Group(func(r chi.Router) {
			r.Use(h.requireKey(model.ScopeSyncCommits))
			r.Use(h.rateLimit)
			r.Post("/repos/{repoID}/commits", h.submitCommits)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.requireKey(model.ScopeReadRepos))
			r.Use(h.rateLimit)
			r.Get("/repos/{repoID}/status", h.syncStatus)
		})

		// Operator surface: repository registration and key management. These
		// sit behind the deployment's admin perimeter, not API keys.
		r.Post("/repos", h.createRepository)
		r.Get("/repos", h.listRepositories)
		r.Delete("/repos/{repoID}", h.deleteRepository)

		r.Post("/keys", h.createKey)
		r.Get("/keys", h.listKeys)
		r.Delete("/keys/{keyID}", h.revokeKey)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
