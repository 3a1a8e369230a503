package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apimw "github.com/loomwork/loom/internal/api/middleware"
	"github.com/loomwork/loom/internal/metrics"
	"github.com/loomwork/loom/internal/workflow"
)

// NewRouter wires the full HTTP surface: workflow CRUD, execution
// enqueue/inspection, and the /healthz and /metrics ambient endpoints.
// m's collectors are registered into registry so /metrics exposes
// them. Within this router only the HTTP request collectors are
// recorded; the Execution Engine and Queue Processor record against
// the worker process's own *metrics.Metrics and metrics server.
func NewRouter(store workflow.Store, registry *prometheus.Registry, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	workflows := NewWorkflowHandler(store, logger)
	executions := NewExecutionHandler(store, logger)

	if m != nil {
		if err := m.Register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
		}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.StructuredLogger(logger))
	r.Use(apimw.Metrics(m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", workflows.List)
		r.Post("/", workflows.Create)
		r.Delete("/", workflows.Delete)
		r.Put("/{id}", workflows.Update)
		r.Post("/{id}/execute", executions.Enqueue)
		r.Get("/{id}/executions/latest", executions.GetLatestByWorkflow)
	})

	r.Route("/executions", func(r chi.Router) {
		r.Post("/", executions.Create)
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Query().Get("latest") == "true" {
				executions.GetLatestByWorkflow(w, req)
				return
			}
			executions.Get(w, req)
		})
		r.Get("/{id}/status", executions.Get)
	})

	return r
}
