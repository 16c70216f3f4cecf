// Package reporthttp exposes financial reports over HTTP.
package reporthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/balance-sheet", h.handleBalanceSheet)
	r.Get("/profit-loss", h.handleProfitLoss)
	r.Get("/ar-aging", h.handleAging)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/cache/bump", h.handleBump)
	})
}
