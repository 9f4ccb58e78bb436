package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products in the catalog.
type Category struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Product is a sellable catalog entry.
type Product struct {
	// ID is the numeric identifier of the product.
	ID int `json:"id" db:"id"`

	// Name is the display name of the product.
	Name string `json:"name" db:"name"`

	// Slug is the unique URL-safe identifier used in product URLs.
	Slug string `json:"slug" db:"slug"`

	// Price is the current unit price. Orders snapshot it per line item.
	Price decimal.Decimal `json:"price" db:"price"`

	// Description is an optional free-form text.
	Description string `json:"description,omitempty" db:"description"`

	// ImageURL is an optional reference to the product image.
	ImageURL string `json:"image_url,omitempty" db:"image_url"`

	// CategoryID references the owning category. Zero means uncategorized.
	CategoryID int `json:"category_id,omitempty" db:"category_id"`

	// CreatedAt is the timestamp at which the product was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Slug        string          `json:"slug" validate:"required,max=200,slug"`
	Price       decimal.Decimal `json:"price" validate:"gte=0,lte=99999999.99"`
	Description string          `json:"description" validate:"max=5000"`
	ImageURL    string          `json:"image_url" validate:"max=1000"`
	CategoryID  int             `json:"category_id" validate:"gte=0"`
}
