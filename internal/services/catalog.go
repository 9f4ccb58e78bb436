package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/storefront-hq/backoffice/types"
)

const (
	// MaxImageBytes caps product image uploads.
	MaxImageBytes = 5 << 20

	// ImageURLPrefix is the public path under which stored images are served.
	ImageURLPrefix = "/images/"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]types.Category, error)
	Get(ctx context.Context, id int) (types.Category, error)
	Create(ctx context.Context, name string) (types.Category, error)
	Update(ctx context.Context, id int, name string) (types.Category, error)
	Delete(ctx context.Context, id int) error
}

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	List(ctx context.Context) ([]types.Product, error)
	ListByCategory(ctx context.Context, categoryID int) ([]types.Product, error)
	Get(ctx context.Context, id int) (types.Product, error)
	GetBySlug(ctx context.Context, slug string) (types.Product, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product) (types.Product, error)
	Delete(ctx context.Context, id int) error
}

// ImageStore persists product images in object storage.
type ImageStore interface {
	PutImage(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
	DeleteImage(ctx context.Context, key string) error
}

// ImageUpload is an image attached to a product form.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CatalogService encapsulates product and category use-cases.
type CatalogService struct {
	categories CategoryRepository
	products   ProductRepository
	images     ImageStore
	logger     *slog.Logger
}

// NewCatalogService constructs the service. images may be nil when uploads are disabled.
func NewCatalogService(categories CategoryRepository, products ProductRepository, images ImageStore, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		categories: categories,
		products:   products,
		images:     images,
		logger:     logger,
	}
}

// UploadsEnabled reports whether product images can be uploaded.
func (s *CatalogService) UploadsEnabled() bool {
	return s.images != nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]types.Category, error) {
	return s.categories.List(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, id int) (types.Category, error) {
	return s.categories.Get(ctx, id)
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (types.Category, error) {
	name, err := categoryName(name)
	if err != nil {
		return types.Category{}, err
	}
	return s.categories.Create(ctx, name)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id int, name string) (types.Category, error) {
	name, err := categoryName(name)
	if err != nil {
		return types.Category{}, err
	}
	return s.categories.Update(ctx, id, name)
}

// DeleteCategory removes the category. Its products become uncategorized.
func (s *CatalogService) DeleteCategory(ctx context.Context, id int) error {
	return s.categories.Delete(ctx, id)
}

func categoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > 200 {
		return "", fmt.Errorf("%w: name length must be at most 200", ErrValidation)
	}
	return name, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]types.Product, error) {
	return s.products.List(ctx)
}

func (s *CatalogService) ListProductsByCategory(ctx context.Context, categoryID int) ([]types.Product, error) {
	return s.products.ListByCategory(ctx, categoryID)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int) (types.Product, error) {
	return s.products.Get(ctx, id)
}

func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (types.Product, error) {
	return s.products.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

// CreateProduct validates the input, stores an optional image and inserts the product.
// The category reference is enforced by the store's foreign key.
func (s *CatalogService) CreateProduct(ctx context.Context, input types.ProductInput, image *ImageUpload) (types.Product, error) {
	input = normalizeProductInput(input)
	if err := validateStruct(input); err != nil {
		return types.Product{}, err
	}
	if err := validatePrice(input.Price); err != nil {
		return types.Product{}, err
	}

	key, err := s.storeImage(ctx, image)
	if err != nil {
		return types.Product{}, err
	}
	if key != "" {
		input.ImageURL = ImageURLPrefix + key
	}

	created, err := s.products.Create(ctx, productFromInput(input))
	if err != nil {
		s.discardImage(ctx, key)
		return types.Product{}, err
	}
	return created, nil
}

// UpdateProduct replaces the editable fields of a product. A new image replaces the old
// stored object; without one the current image reference is kept unless input sets another.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int, input types.ProductInput, image *ImageUpload) (types.Product, error) {
	input = normalizeProductInput(input)
	if err := validateStruct(input); err != nil {
		return types.Product{}, err
	}
	if err := validatePrice(input.Price); err != nil {
		return types.Product{}, err
	}

	current, err := s.products.Get(ctx, id)
	if err != nil {
		return types.Product{}, err
	}

	key, err := s.storeImage(ctx, image)
	if err != nil {
		return types.Product{}, err
	}
	switch {
	case key != "":
		input.ImageURL = ImageURLPrefix + key
	case input.ImageURL == "":
		input.ImageURL = current.ImageURL
	}

	product := productFromInput(input)
	product.ID = id
	updated, err := s.products.Update(ctx, product)
	if err != nil {
		s.discardImage(ctx, key)
		return types.Product{}, err
	}

	if current.ImageURL != updated.ImageURL {
		s.discardImage(ctx, storedImageKey(current.ImageURL))
	}
	return updated, nil
}

// DeleteProduct removes a product that no order line item references.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int) error {
	current, err := s.products.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.discardImage(ctx, storedImageKey(current.ImageURL))
	return nil
}

func (s *CatalogService) storeImage(ctx context.Context, image *ImageUpload) (string, error) {
	if image == nil || image.Body == nil {
		return "", nil
	}
	if s.images == nil {
		return "", ErrUploadsDisabled
	}
	if !strings.HasPrefix(strings.ToLower(image.ContentType), "image/") {
		return "", fmt.Errorf("%w: image must be an image file", ErrValidation)
	}
	if image.Size > MaxImageBytes {
		return "", fmt.Errorf("%w: image must be at most %d bytes", ErrValidation, MaxImageBytes)
	}

	key, err := s.images.PutImage(ctx, image.Filename, image.ContentType, image.Body, image.Size)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}

func (s *CatalogService) discardImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.DeleteImage(ctx, key); err != nil {
		s.logger.Warn("failed to delete product image", "key", key, "error", err)
	}
}

func storedImageKey(imageURL string) string {
	if !strings.HasPrefix(imageURL, ImageURLPrefix) {
		return ""
	}
	return strings.TrimPrefix(imageURL, ImageURLPrefix)
}

func normalizeProductInput(input types.ProductInput) types.ProductInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	if input.Slug == "" {
		input.Slug = SlugFromName(input.Name)
	}
	input.Description = strings.TrimSpace(input.Description)
	input.ImageURL = strings.TrimSpace(input.ImageURL)
	return input
}

func productFromInput(input types.ProductInput) types.Product {
	return types.Product{
		Name:        input.Name,
		Slug:        input.Slug,
		Price:       input.Price,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		CategoryID:  input.CategoryID,
	}
}
