// Package handler exposes the storefront over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/gateway/paymob"
	"github.com/xenking/storefront/internal/gateway/shipping"
)

// Handler carries the services and gateways behind the HTTP routes.
type Handler struct {
	products   product.Repository
	categories product.CategoryRepository
	carts      *cart.Service
	coupons    coupon.Repository
	validator  coupon.Validator
	orders     *order.Service
	payments   *paymob.Client
	carrier    *shipping.Client
	jwtSecret  []byte
	lg         *zap.Logger
}

// Config bundles the Handler's dependencies.
type Config struct {
	Products   product.Repository
	Categories product.CategoryRepository
	Carts      *cart.Service
	Coupons    coupon.Repository
	Validator  coupon.Validator
	Orders     *order.Service
	Payments   *paymob.Client
	Carrier    *shipping.Client
	JWTSecret  string
	Logger     *zap.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	return &Handler{
		products:   cfg.Products,
		categories: cfg.Categories,
		carts:      cfg.Carts,
		coupons:    cfg.Coupons,
		validator:  cfg.Validator,
		orders:     cfg.Orders,
		payments:   cfg.Payments,
		carrier:    cfg.Carrier,
		jwtSecret:  []byte(cfg.JWTSecret),
		lg:         cfg.Logger,
	}
}

// Routes builds the API router. Identity is resolved permissively on every
// route; the auth guards sit only where a user or admin is required.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.identity)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Get("/{id}", h.getProduct)
			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Post("/", h.createProduct)
				r.Put("/{id}", h.updateProduct)
				r.Delete("/{id}", h.deleteProduct)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Post("/", h.createCategory)
				r.Put("/{id}", h.updateCategory)
				r.Delete("/{id}", h.deleteCategory)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items", h.updateCartItem)
			r.Delete("/items", h.removeCartItem)
			r.Group(func(r chi.Router) {
				r.Use(h.requireUser)
				r.Delete("/", h.clearCart)
				r.Post("/merge", h.mergeCart)
			})
		})

		r.Route("/coupons", func(r chi.Router) {
			r.With(h.requireUser).Post("/validate", h.validateCoupon)
			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/", h.listCoupons)
				r.Post("/", h.createCoupon)
				r.Put("/{id}", h.updateCoupon)
				r.Delete("/{id}", h.deleteCoupon)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/shipping-rates", h.shippingRates)
			r.Post("/checkout", h.checkoutCOD)
			r.Post("/pay-with-paymob", h.checkoutOnline)
			r.Get("/{id}", h.getOrder)
			r.Post("/{id}/cancel", h.cancelOrder)
			r.With(h.requireUser).Get("/", h.listMyOrders)
			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/admin", h.listAllOrders)
				r.Put("/{id}/status", h.updateOrderStatus)
			})
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/paymob", h.paymobWebhook)
			r.Post("/shipping", h.shippingWebhook)
		})
	})

	return r
}
