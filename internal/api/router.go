package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Maturity/internal/assessment"
)

func NewRouter(svc *assessment.Service, adminToken string, rateLimit int, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))

	answers := NewAnswersHandler(svc)
	reports := NewReportsHandler(svc)
	evidence := NewEvidenceHandler(svc)
	admin := NewAdminHandler(svc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(UserIDMiddleware)

			r.Get("/catalog", reports.Catalog)
			r.Get("/answers", answers.List)
			r.Get("/score", reports.Score)
			r.Get("/compliance", reports.Compliance)
			r.Get("/progress", reports.Progress)
			r.Get("/progress/me", reports.MyProgress)
			r.Get("/evidence", evidence.List)
			r.Get("/evidence/gaps", evidence.Gaps)
			r.Get("/evidence/{qid}", evidence.Get)
			r.Get("/export", reports.Export)

			r.Group(func(r chi.Router) {
				r.Use(RateLimitMiddleware(rateLimit))
				r.Put("/answers/{qid}", answers.Set)
				r.Delete("/answers/{qid}", answers.Clear)
				r.Post("/answers/{qid}/select", answers.Select)
				r.Put("/evidence/{qid}", evidence.Save)
				r.Delete("/evidence/{qid}", evidence.Delete)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/frameworks", admin.ListFrameworks)
			r.Get("/frameworks/{id}", admin.GetFramework)
			r.Put("/frameworks/{id}", admin.PutFramework)
			r.Delete("/frameworks/{id}", admin.DeleteFramework)
			r.Get("/users", admin.ListUsers)
			r.Put("/users/{id}", admin.PutUser)
			r.Get("/users/{id}/export", admin.ExportUser)
			r.Get("/orphans", admin.Orphans)
			r.Delete("/orphans", admin.PurgeOrphans)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
