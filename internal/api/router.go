// Package api provides the HTTP surface of the data-access engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"datagate/internal/service"
)

// Handler holds the services behind the HTTP routes.
type Handler struct {
	data    *service.DataService
	schemas *service.SchemaService
	audit   *service.AuditService
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required service dependencies.
func NewHandler(data *service.DataService, schemas *service.SchemaService, audit *service.AuditService, logger *slog.Logger) *Handler {
	return &Handler{data: data, schemas: schemas, audit: audit, logger: logger}
}

// Routes mounts every endpoint on a fresh router. Auth, rate limiting,
// and the rest of the middleware chain are the caller's concern.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/data/{table}", func(r chi.Router) {
		r.Post("/query", h.queryRecords)
		r.Post("/", h.insertRecord)
		r.Patch("/", h.updateRecords)
		r.Delete("/", h.deleteRecords)
		r.Post("/batch/insert", h.batchInsert)
		r.Post("/batch/update", h.batchUpdate)
		r.Post("/batch/delete", h.batchDelete)
	})

	r.Get("/tables", h.listTables)
	r.Route("/tables/{table}", func(r chi.Router) {
		r.Get("/schema", h.getSchema)
		r.Get("/columns", h.listColumns)
		r.Get("/relationships", h.getRelationships)
		r.Get("/graph", h.getGraph)
	})
	r.Get("/relationships/path", h.findPath)

	r.Get("/audit/logs", h.listAuditLogs)
	r.Get("/audit/summary", h.auditSummary)

	r.Get("/cache/stats", h.cacheStats)
	r.Post("/cache/invalidate", h.invalidateCache)

	return r
}

// Healthz is a liveness probe, mounted outside the authenticated tree.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
