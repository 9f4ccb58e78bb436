package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-hq/backoffice/internal/web"
	"github.com/storefront-hq/backoffice/types"
)

// CategoryRouter registers the admin category pages.
func CategoryRouter(r chi.Router, h *CatalogHandler) {
	r.Get("/", h.ListCategories)
	r.Get("/add", h.NewCategoryForm)
	r.Post("/add", h.CreateCategory)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.pageError(w, r, err, "")
		return
	}
	h.pages.Render(w, http.StatusOK, "categories", web.Page{Title: "Categories", Identity: identityPtr(r), Data: categories})
}

func (h *CatalogHandler) NewCategoryForm(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, http.StatusOK, "category_form", web.Page{Title: "Add category", Identity: identityPtr(r), Data: types.Category{}})
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("name")
	if _, err := h.catalog.CreateCategory(r.Context(), name); err != nil {
		status, message := errorStatus(err, "")
		if status == http.StatusInternalServerError {
			h.pageError(w, r, err, "")
			return
		}
		h.pages.Render(w, status, "category_form", web.Page{
			Title:    "Add category",
			Identity: identityPtr(r),
			Error:    message,
			Data:     types.Category{Name: name},
		})
		return
	}
	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}

func (h *CatalogHandler) ListCategoriesJSON(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	if categories == nil {
		categories = []types.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}
