package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/rgshop/shop-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/owner", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(custommiddleware.RequireOwner)

		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Post("/orders/{orderID}/status", h.UpdateOrderStatus)

		r.Get("/payments", h.ListPayments)
		r.Get("/payments/reject-reasons", h.ListRejectReasons)
		r.Post("/orders/{orderID}/payment/confirm", h.ConfirmPayment)
		r.Post("/orders/{orderID}/payment/reject", h.RejectPayment)

		r.Post("/orders/{orderID}/shipment", h.UpsertShipment)
		r.Post("/orders/{orderID}/shipment/delivered", h.MarkDelivered)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)
	})

	r.Route("/api/my", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.ListMyOrders)
		r.Get("/orders/{orderID}", h.GetMyOrder)
		r.Post("/orders/{orderID}/payment-proof", h.SubmitPaymentProof)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func pathOrderID(r *http.Request) string {
	return chi.URLParam(r, "orderID")
}
