package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all frontier optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/frontier", func(r chi.Router) {
		r.Post("/", h.HandleFrontier)
		r.Post("/prices", h.HandleFrontierFromPrices)
	})
}
