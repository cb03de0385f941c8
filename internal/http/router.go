package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the storefront API surface.
func NewRouter(carts *CartHandler, checkout *CheckoutHandler, payments *PaymentHandler, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/", carts.GetCart)
			r.Post("/items/{line_ref}/increment", carts.Increment)
			r.Post("/items/{line_ref}/decrement", carts.Decrement)
			r.Delete("/items/{line_ref}", carts.RemoveLine)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.Timeout(requestTimeout)).Post("/", checkout.PlaceOrder)
			// settlement streams outlive the request timeout on purpose
			r.Get("/{order_id}/settlement", payments.StreamOrderSettlement)
			r.With(middleware.Timeout(requestTimeout)).Get("/{order_id}/settlement/check", payments.CheckOrderSettlement)
		})

		r.Route("/chat/messages/{message_id}", func(r chi.Router) {
			r.Get("/settlement", payments.StreamChatSettlement)
			r.With(middleware.Timeout(requestTimeout)).Get("/settlement/check", payments.CheckChatSettlement)
		})
	})

	return r
}
