package handlers

import (
	"github.com/go-chi/chi/v5"
)

// APIRouter registers the JSON API. Catalog reads are public, orders need a
// session and order administration needs the admin role.
func APIRouter(r chi.Router, auth *AuthHandler, catalog *CatalogHandler, orders *OrderHandler) {
	r.Route("/auth", func(r chi.Router) {
		AuthAPIRouter(r, auth)
	})

	r.Get("/categories", catalog.ListCategoriesJSON)
	r.Get("/products", catalog.ListProductsJSON)
	r.Get("/products/{"+productParam+"}", catalog.GetProductJSON)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/orders", orders.CreateOrderJSON)
		r.Get("/orders", orders.ListOwnOrdersJSON)
		r.Get("/orders/{"+orderParam+"}", orders.GetOrderJSON)

		r.With(auth.RequireAdmin).Patch("/orders/{"+orderParam+"}/status", orders.UpdateStatusJSON)
		r.With(auth.RequireAdmin).Get("/stats", orders.StatsJSON)
	})
}
