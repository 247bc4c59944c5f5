package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backtest routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/portfolio-backtest", h.HandlePortfolioBacktest)

	r.Route("/backtest", func(r chi.Router) {
		r.Post("/dca", h.HandleDCABacktest)
		r.Post("/batch", h.HandleBatchBacktest)
		r.Post("/sweep", h.HandleSweep)
		r.Post("/portfolio", h.HandleEnginePortfolio)
		r.Post("/portfolio/config", h.HandleConfigBacktest)
		r.Get("/portfolio/configs", h.HandleListConfigs)
		r.Get("/portfolio/config/{name}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetConfig(w, r, chi.URLParam(r, "name"))
		})
	})
}
