package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/jrkim-kr/vibe-coding-study-sub000/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware интернет-магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)

	r.Get("/api/health", h.Health)

	r.Route("/api/auth", func(r chi.Router) {
		if h.opts.AuthLimiter != nil {
			r.Use(h.opts.AuthLimiter.Middleware)
		}

		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
	})

	r.Get("/api/products", h.ListProducts)
	r.Get("/api/products/{id}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/api/users/me", h.Me)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Patch("/items/{id}", h.UpdateCartItem)
			r.Delete("/items/{id}", h.RemoveCartItem)
		})

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{number}", h.GetOrder)
			r.Post("/{number}/cancel", h.CancelOrder)
			r.Post("/{number}/pay", h.PayOrder)
		})

		r.Post("/api/payments/verify", h.VerifyPayment)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(custommiddleware.RequireAdmin)

			r.Get("/products", h.ListProducts)
			r.Get("/products/{id}", h.GetProduct)
			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Get("/orders", h.AdminListOrders)
			r.Patch("/orders/{number}/shipping", h.AdminUpdateShipping)
			r.Delete("/orders/{number}", h.AdminDeleteOrder)

			r.Get("/customers", h.AdminListCustomers)
			r.Patch("/customers/{id}/status", h.AdminSetCustomerStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "요청한 경로를 찾을 수 없습니다.", nil)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "허용되지 않은 메서드입니다.", nil)
	})

	return r
}
