package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/storefront-system/internal/middleware"
)

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func pathParamInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// SetupRouter настраивает HTTP-маршруты и middleware сервиса магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Get("/products", h.GetProducts)
		r.Get("/products/{slug}", h.GetProduct)

		// Вебхук провайдера: без пользовательской сессии, авторизация — подпись тела.
		r.Post("/payment/webhook", h.ProviderWebhook)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.AddToCart)
			r.Put("/cart/{productID}", h.UpdateCartItem)
			r.Delete("/cart/{productID}", h.RemoveCartItem)

			r.Get("/addresses", h.GetAddresses)
			r.Post("/addresses", h.CreateAddress)
			r.Get("/addresses/{addressID}", h.GetAddress)
			r.Put("/addresses/{addressID}", h.UpdateAddress)
			r.Delete("/addresses/{addressID}", h.DeleteAddress)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{orderID}", h.GetOrder)

			r.Post("/payment/create", h.CreatePayment)
			r.Post("/payment/verify", h.VerifyPayment)

			r.Post("/admin/products", h.CreateProduct)
			r.Put("/admin/products/{productID}", h.UpdateProduct)
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
