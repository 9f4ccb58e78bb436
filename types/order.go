package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Supported order statuses.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// OrderStatuses lists every known status in display order.
var OrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusCompleted, OrderStatusCanceled}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether an order in status s may move to next.
// Pending orders may be completed or canceled; completed and canceled are final.
// Re-applying the current status is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == OrderStatusPending
}

// Order is an order row without its line items.
type Order struct {
	ID int `json:"id" db:"id"`

	// UserID is the owning user. It is null once the user has been deleted.
	UserID uuid.NullUUID `json:"user_id" db:"user_id"`

	Status    OrderStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// OrderedProduct is a line item as displayed within an order.
type OrderedProduct struct {
	ProductID int             `json:"product_id" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
}

// Subtotal returns price × quantity for the line item.
func (p OrderedProduct) Subtotal() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// OrderWithProducts is an order together with its line items.
type OrderWithProducts struct {
	Order
	Products []OrderedProduct `json:"products"`
}

// Total returns the sum of price × quantity over all line items.
func (o OrderWithProducts) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Products {
		total = total.Add(p.Subtotal())
	}
	return total
}

type orderWithProductsJSON struct {
	Order
	Products []OrderedProduct `json:"products"`
	Total    decimal.Decimal  `json:"total"`
}

// MarshalJSON includes the computed total and always emits a products array.
func (o OrderWithProducts) MarshalJSON() ([]byte, error) {
	products := o.Products
	if products == nil {
		products = []OrderedProduct{}
	}
	return json.Marshal(orderWithProductsJSON{
		Order:    o.Order,
		Products: products,
		Total:    o.Total(),
	})
}

// OrderItem is the canonical input for a single line of a new order.
type OrderItem struct {
	ProductID int `json:"product_id" validate:"gt=0"`
	Quantity  int `json:"quantity" validate:"gt=0,lte=2147483647"`
}

// OrderStats summarizes order activity over calendar windows.
type OrderStats struct {
	TodayCount        int             `json:"today_count"`
	TodayPendingCount int             `json:"today_pending_count"`
	MonthCount        int             `json:"month_count"`
	YearRevenue       decimal.Decimal `json:"year_revenue"`
}
