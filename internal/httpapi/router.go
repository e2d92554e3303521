// Package httpapi exposes the order lifecycle over HTTP: cart and checkout
// for shoppers, status transitions for back office, and the gateway callback
// endpoints. Identity arrives pre-authenticated in the X-User-ID header;
// session handling lives in the edge proxy.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/cart/items", h.addCartItem)
	r.Post("/checkout", h.placeOrder)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/code/{code}", h.getOrderByCode)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)

	r.Get("/payments/vnpay/ipn", h.vnpayIPN)
	r.Get("/payments/vnpay/return", h.vnpayReturn)

	r.Route("/admin", func(r chi.Router) {
		r.Patch("/orders/{id}/status", h.advanceOrderStatus)
		r.Post("/inventory", h.createInventoryUnit)
		r.Patch("/inventory/{id}/listing", h.setInventoryListing)
	})

	return r
}
