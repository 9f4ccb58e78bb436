package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("already exists")

	// ErrProductInUse is returned when a product is still referenced by order line items.
	ErrProductInUse = errors.New("product is referenced by orders")

	// ErrProductNotFound is returned when an order references an unknown product.
	ErrProductNotFound = errors.New("product not found")

	// ErrCategoryNotFound is returned when a product references an unknown category.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrUserNotFound is returned when an order is placed for a user that no longer exists.
	ErrUserNotFound = errors.New("user not found")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	return pqCode(err) == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pqCode(err) == pqForeignKeyViolation
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
