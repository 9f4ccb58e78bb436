package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront-hq/backoffice/types"
)

// OrderRepository handles persistence for orders and their line items.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a pending order and one line item per entry in a single transaction.
// Each line item snapshots the product's current price. An unknown product aborts the
// whole order with ErrProductNotFound and a deleted owner with ErrUserNotFound.
func (r *OrderRepository) Create(ctx context.Context, userID uuid.UUID, items []types.OrderItem) (types.OrderWithProducts, error) {
	var order types.OrderWithProducts

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const insertOrder = `
			INSERT INTO orders (user_id, status)
			VALUES ($1, $2)
			RETURNING id, user_id, status, created_at`
		if err := tx.QueryRowContext(ctx, insertOrder, userID, types.OrderStatusPending).Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.CreatedAt,
		); err != nil {
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return err
		}

		const insertItem = `
			WITH product AS (
				SELECT id, name, price FROM products WHERE id = $2
			), item AS (
				INSERT INTO order_products (order_id, product_id, quantity, price)
				SELECT $1, id, $3, price FROM product
				RETURNING product_id, quantity, price
			)
			SELECT item.product_id, product.name, item.quantity, item.price
			FROM item JOIN product ON product.id = item.product_id`
		order.Products = make([]types.OrderedProduct, 0, len(items))
		for _, it := range items {
			var line types.OrderedProduct
			err := tx.QueryRowContext(ctx, insertItem, order.ID, it.ProductID, it.Quantity).Scan(
				&line.ProductID,
				&line.Name,
				&line.Quantity,
				&line.Price,
			)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrProductNotFound
				}
				return err
			}
			order.Products = append(order.Products, line)
		}
		return nil
	})
	if err != nil {
		return types.OrderWithProducts{}, err
	}
	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Order, error) {
	const query = `
		SELECT id, user_id, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.listOrders(ctx, query, userID)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]types.Order, error) {
	const query = `
		SELECT id, user_id, status, created_at
		FROM orders
		ORDER BY created_at DESC, id DESC`
	return r.listOrders(ctx, query)
}

func (r *OrderRepository) listOrders(ctx context.Context, query string, args ...any) ([]types.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]types.Order, 0)
	for rows.Next() {
		var order types.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.Status, &order.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

const ordersWithProductsQuery = `
	SELECT o.id, o.user_id, o.status, o.created_at,
	       p.id, p.name, op.quantity, op.price
	FROM orders o
	LEFT JOIN order_products op ON op.order_id = o.id
	LEFT JOIN products p ON p.id = op.product_id`

func (r *OrderRepository) ListAllWithProducts(ctx context.Context) ([]types.OrderWithProducts, error) {
	const query = ordersWithProductsQuery + `
	ORDER BY o.created_at DESC, o.id DESC, op.product_id`
	return r.queryWithProducts(ctx, query)
}

func (r *OrderRepository) GetWithProducts(ctx context.Context, id int) (types.OrderWithProducts, error) {
	const query = ordersWithProductsQuery + `
	WHERE o.id = $1
	ORDER BY op.product_id`
	orders, err := r.queryWithProducts(ctx, query, id)
	if err != nil {
		return types.OrderWithProducts{}, err
	}
	if len(orders) == 0 {
		return types.OrderWithProducts{}, ErrNotFound
	}
	return orders[0], nil
}

// queryWithProducts groups one-row-per-line-item results into nested orders,
// preserving the row order of the first occurrence of each order.
func (r *OrderRepository) queryWithProducts(ctx context.Context, query string, args ...any) ([]types.OrderWithProducts, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]types.OrderWithProducts, 0)
	index := make(map[int]int)
	for rows.Next() {
		var (
			order     types.Order
			productID sql.NullInt64
			name      sql.NullString
			quantity  sql.NullInt64
			price     decimal.NullDecimal
		)
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.CreatedAt,
			&productID,
			&name,
			&quantity,
			&price,
		); err != nil {
			return nil, err
		}

		pos, ok := index[order.ID]
		if !ok {
			pos = len(orders)
			index[order.ID] = pos
			orders = append(orders, types.OrderWithProducts{
				Order:    order,
				Products: make([]types.OrderedProduct, 0),
			})
		}

		if !productID.Valid {
			continue
		}
		orders[pos].Products = append(orders[pos].Products, types.OrderedProduct{
			ProductID: int(productID.Int64),
			Name:      name.String,
			Quantity:  int(quantity.Int64),
			Price:     price.Decimal,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus locks the order row, lets check approve the move from the current status,
// and stores next. check returning an error aborts the update with that error.
func (r *OrderRepository) UpdateStatus(
	ctx context.Context,
	id int,
	next types.OrderStatus,
	check func(current types.OrderStatus) error,
) (types.Order, error) {
	var order types.Order

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const selectQuery = `
			SELECT id, user_id, status, created_at
			FROM orders
			WHERE id = $1
			FOR UPDATE`
		if err := tx.QueryRowContext(ctx, selectQuery, id).Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.CreatedAt,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if check != nil {
			if err := check(order.Status); err != nil {
				return err
			}
		}
		if order.Status == next {
			return nil
		}

		const updateQuery = `UPDATE orders SET status = $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, updateQuery, next, id); err != nil {
			return err
		}
		order.Status = next
		return nil
	})
	if err != nil {
		return types.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) TodayCount(ctx context.Context) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM orders
		WHERE created_at::date = NOW()::date`
	return r.count(ctx, query)
}

func (r *OrderRepository) TodayPendingCount(ctx context.Context) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM orders
		WHERE created_at::date = NOW()::date
		  AND status <> 'completed'`
	return r.count(ctx, query)
}

func (r *OrderRepository) MonthCount(ctx context.Context) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM orders
		WHERE date_trunc('month', created_at) = date_trunc('month', NOW())`
	return r.count(ctx, query)
}

func (r *OrderRepository) YearRevenue(ctx context.Context) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(op.price * op.quantity), 0)
		FROM order_products op
		JOIN orders o ON o.id = op.order_id
		WHERE date_trunc('year', o.created_at) = date_trunc('year', NOW())`
	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *OrderRepository) count(ctx context.Context, query string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
