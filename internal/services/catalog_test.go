package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) List(ctx context.Context) ([]types.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]types.Product), args.Error(1)
}

func (m *MockProductRepository) ListByCategory(ctx context.Context, categoryID int) ([]types.Product, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).([]types.Product), args.Error(1)
}

func (m *MockProductRepository) Get(ctx context.Context, id int) (types.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Product), args.Error(1)
}

func (m *MockProductRepository) GetBySlug(ctx context.Context, slug string) (types.Product, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(types.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		product.ID = 1
		return product, args.Error(1)
	}
	return args.Get(0).(types.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return product, args.Error(1)
	}
	return args.Get(0).(types.Product), args.Error(1)
}

func (m *MockProductRepository) Delete(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockImageStore is a mock implementation of ImageStore.
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) PutImage(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	args := m.Called(ctx, filename, contentType, size)
	return args.String(0), args.Error(1)
}

func (m *MockImageStore) DeleteImage(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func pngUpload(size int64) *ImageUpload {
	return &ImageUpload{Filename: "mug.png", ContentType: "image/png", Size: size, Body: strings.NewReader("png")}
}

func TestCatalogService_CreateProductValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		input types.ProductInput
	}{
		{name: "missing name", input: types.ProductInput{Price: decimal.NewFromInt(1)}},
		{name: "negative price", input: types.ProductInput{Name: "Mug", Price: decimal.NewFromInt(-1)}},
		{name: "bad slug", input: types.ProductInput{Name: "Mug", Slug: "Blue Mug!", Price: decimal.NewFromInt(1)}},
		{name: "price above column limit", input: types.ProductInput{Name: "Mug", Price: decimal.NewFromInt(1_000_000_000_000)}},
		{name: "sub-cent price", input: types.ProductInput{Name: "Mug", Price: decimal.RequireFromString("1.005")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := new(MockProductRepository)
			svc := NewCatalogService(nil, products, nil, nil)

			_, err := svc.CreateProduct(ctx, tt.input, nil)
			assert.ErrorIs(t, err, ErrValidation)
			products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCatalogService_CreateProductDerivesSlug(t *testing.T) {
	ctx := context.Background()
	products := new(MockProductRepository)
	products.On("Create", ctx, mock.MatchedBy(func(p types.Product) bool {
		return p.Slug == "blue-mug-xl"
	})).Return(nil, nil)

	svc := NewCatalogService(nil, products, nil, nil)
	product, err := svc.CreateProduct(ctx, types.ProductInput{Name: " Blue Mug (XL) ", Price: decimal.RequireFromString("12.90")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Blue Mug (XL)", product.Name)
	products.AssertExpectations(t)
}

func TestCatalogService_CreateProductAcceptsMaxPrice(t *testing.T) {
	ctx := context.Background()
	products := new(MockProductRepository)
	products.On("Create", ctx, mock.Anything).Return(nil, nil)

	svc := NewCatalogService(nil, products, nil, nil)
	_, err := svc.CreateProduct(ctx, types.ProductInput{Name: "Safe", Price: decimal.RequireFromString("99999999.99")}, nil)
	require.NoError(t, err)
	products.AssertExpectations(t)
}

func TestCatalogService_UpdateProductRejectsSubCentPrice(t *testing.T) {
	products := new(MockProductRepository)
	svc := NewCatalogService(nil, products, nil, nil)

	_, err := svc.UpdateProduct(context.Background(), 4, types.ProductInput{Name: "Mug", Price: decimal.RequireFromString("2.499")}, nil)
	assert.ErrorIs(t, err, ErrValidation)
	products.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestCatalogService_CreateProductWithImage(t *testing.T) {
	ctx := context.Background()
	input := types.ProductInput{Name: "Mug", Price: decimal.NewFromInt(5)}

	t.Run("stores image and links it", func(t *testing.T) {
		products := new(MockProductRepository)
		images := new(MockImageStore)
		images.On("PutImage", ctx, "mug.png", "image/png", int64(3)).Return("products/abc.png", nil)
		products.On("Create", ctx, mock.MatchedBy(func(p types.Product) bool {
			return p.ImageURL == "/images/products/abc.png"
		})).Return(nil, nil)

		svc := NewCatalogService(nil, products, images, nil)
		product, err := svc.CreateProduct(ctx, input, pngUpload(3))
		require.NoError(t, err)
		assert.Equal(t, "/images/products/abc.png", product.ImageURL)
	})

	t.Run("discards image when insert fails", func(t *testing.T) {
		products := new(MockProductRepository)
		images := new(MockImageStore)
		images.On("PutImage", ctx, "mug.png", "image/png", int64(3)).Return("products/abc.png", nil)
		images.On("DeleteImage", ctx, "products/abc.png").Return(nil).Once()
		products.On("Create", ctx, mock.Anything).Return(types.Product{}, store.ErrConflict)

		svc := NewCatalogService(nil, products, images, nil)
		_, err := svc.CreateProduct(ctx, input, pngUpload(3))
		assert.ErrorIs(t, err, store.ErrConflict)
		images.AssertExpectations(t)
	})

	t.Run("rejects non image", func(t *testing.T) {
		svc := NewCatalogService(nil, new(MockProductRepository), new(MockImageStore), nil)
		upload := pngUpload(3)
		upload.ContentType = "application/pdf"
		_, err := svc.CreateProduct(ctx, input, upload)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects oversized image", func(t *testing.T) {
		svc := NewCatalogService(nil, new(MockProductRepository), new(MockImageStore), nil)
		_, err := svc.CreateProduct(ctx, input, pngUpload(MaxImageBytes+1))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("uploads disabled", func(t *testing.T) {
		svc := NewCatalogService(nil, new(MockProductRepository), nil, nil)
		_, err := svc.CreateProduct(ctx, input, pngUpload(3))
		assert.ErrorIs(t, err, ErrUploadsDisabled)
	})
}

func TestCatalogService_UpdateProductReplacesImage(t *testing.T) {
	ctx := context.Background()
	current := types.Product{ID: 4, Name: "Mug", Slug: "mug", ImageURL: "/images/products/old.png"}

	products := new(MockProductRepository)
	products.On("Get", ctx, 4).Return(current, nil)
	products.On("Update", ctx, mock.MatchedBy(func(p types.Product) bool {
		return p.ID == 4 && p.ImageURL == "/images/products/new.png"
	})).Return(nil, nil)

	images := new(MockImageStore)
	images.On("PutImage", ctx, "mug.png", "image/png", int64(3)).Return("products/new.png", nil)
	images.On("DeleteImage", ctx, "products/old.png").Return(errors.New("gone")).Once()

	svc := NewCatalogService(nil, products, images, nil)
	updated, err := svc.UpdateProduct(ctx, 4, types.ProductInput{Name: "Mug", Slug: "mug", Price: decimal.NewFromInt(6)}, pngUpload(3))
	require.NoError(t, err)
	assert.Equal(t, "/images/products/new.png", updated.ImageURL)
	images.AssertExpectations(t)
}

func TestCatalogService_UpdateProductKeepsImage(t *testing.T) {
	ctx := context.Background()
	products := new(MockProductRepository)
	products.On("Get", ctx, 4).Return(types.Product{ID: 4, ImageURL: "https://cdn.example.com/mug.png"}, nil)
	products.On("Update", ctx, mock.MatchedBy(func(p types.Product) bool {
		return p.ImageURL == "https://cdn.example.com/mug.png"
	})).Return(nil, nil)

	svc := NewCatalogService(nil, products, nil, nil)
	_, err := svc.UpdateProduct(ctx, 4, types.ProductInput{Name: "Mug", Price: decimal.NewFromInt(6)}, nil)
	require.NoError(t, err)
	products.AssertExpectations(t)
}

func TestCatalogService_DeleteProductInUse(t *testing.T) {
	ctx := context.Background()
	products := new(MockProductRepository)
	products.On("Get", ctx, 2).Return(types.Product{ID: 2, ImageURL: "/images/products/a.png"}, nil)
	products.On("Delete", ctx, 2).Return(store.ErrProductInUse)
	images := new(MockImageStore)

	svc := NewCatalogService(nil, products, images, nil)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, 2), store.ErrProductInUse)
	images.AssertNotCalled(t, "DeleteImage", mock.Anything, mock.Anything)
}

func TestCatalogService_CategoryName(t *testing.T) {
	svc := NewCatalogService(nil, nil, nil, nil)
	_, err := svc.CreateCategory(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSlugFromName(t *testing.T) {
	tests := map[string]string{
		"Blue Mug":          "blue-mug",
		"  Tea -- Green  ":  "tea-green",
		"Crème brûlée 2000": "cr-me-br-l-e-2000",
		"!!!":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SlugFromName(in), in)
	}
}
