package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/storefront-hq/backoffice/types"
)

const productColumns = `id, name, slug, price, description, image_url, category_id, created_at`

// ProductRepository handles persistence for products.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) List(ctx context.Context) ([]types.Product, error) {
	const query = `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at, id`
	return r.list(ctx, query)
}

func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID int) ([]types.Product, error) {
	const query = `
		SELECT ` + productColumns + `
		FROM products
		WHERE category_id = $1
		ORDER BY created_at, id`
	return r.list(ctx, query, categoryID)
}

func (r *ProductRepository) list(ctx context.Context, query string, args ...any) ([]types.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]types.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id int) (types.Product, error) {
	const query = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (types.Product, error) {
	const query = `
		SELECT ` + productColumns + `
		FROM products
		WHERE slug = $1`
	return r.getOne(ctx, query, slug)
}

func (r *ProductRepository) getOne(ctx context.Context, query string, arg any) (types.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, err
	}
	return product, nil
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	const query = `
		INSERT INTO products (name, slug, price, description, image_url, category_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, price, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Slug,
		product.Price,
		nullString(product.Description),
		nullString(product.ImageURL),
		nullInt(product.CategoryID),
	).Scan(&product.ID, &product.Price, &product.CreatedAt); err != nil {
		return types.Product{}, translateProductWriteError(err)
	}
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	const query = `
		UPDATE products
		SET name = $1,
			slug = $2,
			price = $3,
			description = $4,
			image_url = $5,
			category_id = $6
		WHERE id = $7
		RETURNING price, created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Slug,
		product.Price,
		nullString(product.Description),
		nullString(product.ImageURL),
		nullInt(product.CategoryID),
		product.ID,
	).Scan(&product.Price, &product.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, translateProductWriteError(err)
	}
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductInUse
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (types.Product, error) {
	var (
		product     types.Product
		description sql.NullString
		imageURL    sql.NullString
		categoryID  sql.NullInt64
	)
	if err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Slug,
		&product.Price,
		&description,
		&imageURL,
		&categoryID,
		&product.CreatedAt,
	); err != nil {
		return types.Product{}, err
	}
	product.Description = description.String
	product.ImageURL = imageURL.String
	product.CategoryID = int(categoryID.Int64)
	return product, nil
}

// translateProductWriteError maps constraint violations on product writes.
func translateProductWriteError(err error) error {
	switch {
	case isUniqueViolation(err):
		return ErrConflict
	case isForeignKeyViolation(err):
		return ErrCategoryNotFound
	default:
		return err
	}
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullInt(value int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(value), Valid: value > 0}
}
