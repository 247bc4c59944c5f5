package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all archive routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/test", func(r chi.Router) {
		r.Get("/archives", h.HandleList)
		r.Get("/archives/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGet(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/archives/{id}/response", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetResponse(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/automated", h.HandleRunAutomated)
		r.Get("/progress", h.HandleProgress)
	})
}
