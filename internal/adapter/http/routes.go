package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Consultations
		r.Post("/consultations", h.CreateConsultation)
		r.Post("/classify", h.ClassifyTask)

		// Role catalog
		r.Get("/roles", h.ListRoles)
		r.Get("/roles/{id}", h.GetRole)

		// Domain vocabulary
		r.Get("/domains", h.ListDomains)
	})
}
