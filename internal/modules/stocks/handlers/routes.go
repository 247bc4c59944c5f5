package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all stock routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetInfo(w, r, chi.URLParam(r, "symbol"))
		})
		r.Get("/{symbol}/price", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetPrice(w, r, chi.URLParam(r, "symbol"))
		})
		r.Get("/{symbol}/indicators", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetIndicators(w, r, chi.URLParam(r, "symbol"))
		})
		r.Get("/{symbol}/beta", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetBeta(w, r, chi.URLParam(r, "symbol"))
		})
		r.Put("/{symbol}/beta", func(w http.ResponseWriter, r *http.Request) {
			h.HandlePutBeta(w, r, chi.URLParam(r, "symbol"))
		})
	})

	r.Post("/beta/calculate", h.HandleCalculateBeta)
}
