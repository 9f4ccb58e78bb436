package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/storefront-hq/backoffice/internal/services"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/internal/web"
	"github.com/storefront-hq/backoffice/types"
)

const (
	// productParam is a slug on read and edit routes and a numeric id on delete.
	productParam       = "product"
	formFieldImage     = "image"
	maxMultipartMemory = 8 << 20
	maxProductFormSize = services.MaxImageBytes + 1<<20
)

// CatalogHandler serves product and category pages and their JSON views.
type CatalogHandler struct {
	catalog *services.CatalogService
	pages   *web.Renderer
	logger  *slog.Logger
}

// NewCatalogHandler constructs a handler with the provided service.
func NewCatalogHandler(catalog *services.CatalogService, pages *web.Renderer, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, pages: pages, logger: logger}
}

// ProductRouter registers the admin product pages.
func ProductRouter(r chi.Router, h *CatalogHandler) {
	r.Get("/", h.ListProducts)
	r.Get("/add", h.NewProductForm)
	r.Post("/add", h.CreateProduct)
	r.Route("/{"+productParam+"}", func(r chi.Router) {
		r.Get("/", h.ShowProduct)
		r.Get("/edit", h.EditProductForm)
		r.Post("/edit", h.UpdateProduct)
		r.Post("/delete", h.DeleteProduct)
	})
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.pageError(w, r, err, "")
		return
	}
	h.pages.Render(w, http.StatusOK, "products", web.Page{Title: "Products", Identity: identityPtr(r), Data: products})
}

func (h *CatalogHandler) ShowProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProductBySlug(r.Context(), chi.URLParam(r, productParam))
	if err != nil {
		h.pageError(w, r, err, "Product not found.")
		return
	}
	h.pages.Render(w, http.StatusOK, "product", web.Page{Title: product.Name, Identity: identityPtr(r), Data: product})
}

type productFormData struct {
	Action         string
	Product        types.Product
	Categories     []types.Category
	UploadsEnabled bool
}

func (h *CatalogHandler) NewProductForm(w http.ResponseWriter, r *http.Request) {
	h.renderProductForm(w, r, http.StatusOK, "Add product", "/products/add", types.Product{}, "")
}

func (h *CatalogHandler) EditProductForm(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProductBySlug(r.Context(), chi.URLParam(r, productParam))
	if err != nil {
		h.pageError(w, r, err, "Product not found.")
		return
	}
	h.renderProductForm(w, r, http.StatusOK, "Edit product", editAction(product.Slug), product, "")
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, image, cleanup, err := parseProductForm(w, r)
	defer cleanup()
	if err != nil {
		h.renderProductForm(w, r, http.StatusBadRequest, "Add product", "/products/add", productFromForm(r), err.Error())
		return
	}

	created, err := h.catalog.CreateProduct(r.Context(), input, image)
	if err != nil {
		h.productFormError(w, r, err, "Add product", "/products/add")
		return
	}
	http.Redirect(w, r, "/products/"+url.PathEscape(created.Slug), http.StatusSeeOther)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	current, err := h.catalog.GetProductBySlug(r.Context(), chi.URLParam(r, productParam))
	if err != nil {
		h.pageError(w, r, err, "Product not found.")
		return
	}
	action := editAction(current.Slug)

	input, image, cleanup, err := parseProductForm(w, r)
	defer cleanup()
	if err != nil {
		product := productFromForm(r)
		product.ID = current.ID
		h.renderProductForm(w, r, http.StatusBadRequest, "Edit product", action, product, err.Error())
		return
	}

	updated, err := h.catalog.UpdateProduct(r.Context(), current.ID, input, image)
	if err != nil {
		h.productFormError(w, r, err, "Edit product", action)
		return
	}
	http.Redirect(w, r, "/products/"+url.PathEscape(updated.Slug), http.StatusSeeOther)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, productParam)
	if err != nil {
		h.pages.Error(w, http.StatusBadRequest, identityPtr(r), "Invalid product ID.")
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrProductInUse) {
			h.pages.Error(w, http.StatusConflict, identityPtr(r), "This product appears in orders and cannot be deleted.")
			return
		}
		h.pageError(w, r, err, "Product not found.")
		return
	}
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

// ListProductsJSON lists products, optionally filtered by ?category=<id>.
func (h *CatalogHandler) ListProductsJSON(w http.ResponseWriter, r *http.Request) {
	var (
		products []types.Product
		err      error
	)
	if raw, ok := r.URL.Query()["category"]; ok {
		categoryID, convErr := strconv.Atoi(strings.TrimSpace(firstValue(raw)))
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "invalid category query parameter")
			return
		}
		products, err = h.catalog.ListProductsByCategory(r.Context(), categoryID)
	} else {
		products, err = h.catalog.ListProducts(r.Context())
	}
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	if products == nil {
		products = []types.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProductJSON(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProductBySlug(r.Context(), chi.URLParam(r, productParam))
	if err != nil {
		respondError(w, r, h.logger, err, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) renderProductForm(w http.ResponseWriter, r *http.Request, status int, title, action string, product types.Product, message string) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.pageError(w, r, err, "")
		return
	}
	h.pages.Render(w, status, "product_form", web.Page{
		Title:    title,
		Identity: identityPtr(r),
		Error:    message,
		Data: productFormData{
			Action:         action,
			Product:        product,
			Categories:     categories,
			UploadsEnabled: h.catalog.UploadsEnabled(),
		},
	})
}

func (h *CatalogHandler) productFormError(w http.ResponseWriter, r *http.Request, err error, title, action string) {
	status, message := errorStatus(err, "Product not found.")
	switch {
	case errors.Is(err, store.ErrConflict):
		message = "A product with this slug already exists."
	case errors.Is(err, store.ErrCategoryNotFound):
		message = "The selected category does not exist."
	case status == http.StatusInternalServerError:
		h.pageError(w, r, err, "")
		return
	}
	h.renderProductForm(w, r, status, title, action, productFromForm(r), message)
}

// pageError renders err as an HTML error page, logging unexpected failures.
func (h *CatalogHandler) pageError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	renderPageError(w, r, h.pages, h.logger, err, notFound)
}

func renderPageError(w http.ResponseWriter, r *http.Request, pages *web.Renderer, logger *slog.Logger, err error, notFound string) {
	status, message := errorStatus(err, notFound)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "Something went wrong."
	}
	pages.Error(w, status, identityPtr(r), message)
}

func editAction(slug string) string {
	return "/products/" + url.PathEscape(slug) + "/edit"
}

// parseProductForm reads the product fields and the optional image part.
// The returned cleanup closes the uploaded file and must always be called.
func parseProductForm(w http.ResponseWriter, r *http.Request) (types.ProductInput, *services.ImageUpload, func(), error) {
	cleanup := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxProductFormSize)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return types.ProductInput{}, nil, cleanup, errors.New("invalid form or upload too large")
		}
		if err := r.ParseForm(); err != nil {
			return types.ProductInput{}, nil, cleanup, errors.New("invalid form")
		}
	}

	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("price")))
	if err != nil {
		return types.ProductInput{}, nil, cleanup, errors.New("price must be a number")
	}

	var categoryID int
	if raw := strings.TrimSpace(r.FormValue("category_id")); raw != "" {
		if categoryID, err = strconv.Atoi(raw); err != nil || categoryID < 0 {
			return types.ProductInput{}, nil, cleanup, errors.New("invalid category")
		}
	}

	input := types.ProductInput{
		Name:        r.FormValue("name"),
		Slug:        r.FormValue("slug"),
		Price:       price,
		Description: r.FormValue("description"),
		ImageURL:    r.FormValue("image_url"),
		CategoryID:  categoryID,
	}

	image, closeFile, err := imageFromForm(r.MultipartForm)
	if err != nil {
		return types.ProductInput{}, nil, cleanup, err
	}
	return input, image, closeFile, nil
}

func imageFromForm(form *multipart.Form) (*services.ImageUpload, func(), error) {
	noop := func() {}
	if form == nil {
		return nil, noop, nil
	}
	files := form.File[formFieldImage]
	if len(files) == 0 || files[0].Size == 0 {
		return nil, noop, nil
	}
	if len(files) > 1 {
		return nil, noop, errors.New("only one image is allowed")
	}

	header := files[0]
	file, err := header.Open()
	if err != nil {
		return nil, noop, errors.New("failed to read image")
	}
	return &services.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, nil
}

// productFromForm echoes submitted values back into the form after a failure.
func productFromForm(r *http.Request) types.Product {
	price, _ := decimal.NewFromString(strings.TrimSpace(r.FormValue("price")))
	categoryID, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("category_id")))
	return types.Product{
		Name:        r.FormValue("name"),
		Slug:        r.FormValue("slug"),
		Price:       price,
		Description: r.FormValue("description"),
		ImageURL:    r.FormValue("image_url"),
		CategoryID:  categoryID,
	}
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
