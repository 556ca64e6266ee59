package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yourorg/rdcredit/internal/auth"
	"github.com/yourorg/rdcredit/internal/review"
)

// NewRouter mounts the API. Everything under /v1 is authenticated; the review
// endpoint additionally requires at least the reviewer role.
func NewRouter(svc Service, authStore auth.Store, limiter *auth.RateLimiter, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", svc.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(authStore, limiter, logger))

		r.Post("/projects/classify", svc.Classify)
		r.Get("/projects/needs-review", svc.NeedsReview)
		r.Get("/projects/{projectID}/ledger", svc.ProjectLedger)
		r.Get("/projects/{projectID}/qre", svc.QRE)
		r.Get("/ledger/verify", svc.VerifyLedger)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(review.RoleReviewer))
			r.Post("/projects/{projectID}/review", svc.Review)
		})
	})

	return r
}
