package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/carsharing-system/internal/middleware"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// SetupRouter настраивает HTTP-маршруты и middleware сервиса каршеринга.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		// Callback-адреса провайдера: редиректы приходят без auth-cookie.
		r.Get("/payments/success", h.PaymentSuccess)
		r.Get("/payments/cancel", h.PaymentCancel)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/users/me", h.GetProfile)
			r.Patch("/users/me", h.UpdateProfile)

			r.Get("/cars", h.ListCars)
			r.Get("/cars/{id}", h.GetCar)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.RequireManager)

				r.Put("/users/{id}/role", h.UpdateUserRole)

				r.Post("/cars", h.AddCar)
				r.Put("/cars/{id}", h.UpdateCar)
				r.Delete("/cars/{id}", h.DeleteCar)
			})

			r.Post("/rentals", h.AddRental)
			r.Get("/rentals", h.ListRentals)
			r.Get("/rentals/{id}", h.GetRental)
			r.Post("/rentals/{id}/return", h.ReturnRental)

			r.Get("/payments", h.ListPayments)
			r.Get("/payments/{id}", h.GetPayment)
			r.Post("/payments/checkout", h.Checkout)
			r.Post("/payments/{id}/renew", h.RenewPayment)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
