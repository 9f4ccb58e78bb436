package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/types"
)

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, userID uuid.UUID, items []types.OrderItem) (types.OrderWithProducts, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Order, error)
	ListAll(ctx context.Context) ([]types.Order, error)
	ListAllWithProducts(ctx context.Context) ([]types.OrderWithProducts, error)
	GetWithProducts(ctx context.Context, id int) (types.OrderWithProducts, error)
	UpdateStatus(ctx context.Context, id int, next types.OrderStatus, check func(current types.OrderStatus) error) (types.Order, error)
	TodayCount(ctx context.Context) (int, error)
	TodayPendingCount(ctx context.Context) (int, error)
	MonthCount(ctx context.Context) (int, error)
	YearRevenue(ctx context.Context) (decimal.Decimal, error)
}

// OrderEventPublisher delivers order lifecycle events to the message bus.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event types.OrderEvent) error
}

// OrderService encapsulates order placement, aggregation, lifecycle and statistics.
type OrderService struct {
	repo      OrderRepository
	publisher OrderEventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderService constructs the service. publisher may be nil when events are disabled.
func NewOrderService(repo OrderRepository, publisher OrderEventPublisher, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOrder places a pending order for userID. Every item must name a positive product id
// and quantity, and a product may appear only once. The order and all its line items are
// written atomically with each line item snapshotting the product's current price.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, items []types.OrderItem) (types.OrderWithProducts, error) {
	if userID == uuid.Nil {
		return types.OrderWithProducts{}, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if len(items) == 0 {
		return types.OrderWithProducts{}, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}

	seen := make(map[int]struct{}, len(items))
	for i, it := range items {
		if err := validateStruct(it); err != nil {
			return types.OrderWithProducts{}, fmt.Errorf("item %d: %w", i, err)
		}
		if _, dup := seen[it.ProductID]; dup {
			return types.OrderWithProducts{}, fmt.Errorf("%w: product %d appears more than once", ErrValidation, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}

	order, err := s.repo.Create(ctx, userID, items)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return types.OrderWithProducts{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return types.OrderWithProducts{}, fmt.Errorf("create order: %w", err)
	}

	s.publish(ctx, types.OrderEvent{
		Type:      types.OrderEventCreated,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Total:     order.Total(),
		ItemCount: len(order.Products),
	})
	return order, nil
}

// CreateOrderFromProductIDs places an order where each listed product is bought once.
// Repeated ids are folded into a single line item with the summed quantity.
func (s *OrderService) CreateOrderFromProductIDs(ctx context.Context, userID uuid.UUID, productIDs []int) (types.OrderWithProducts, error) {
	items := make([]types.OrderItem, 0, len(productIDs))
	index := make(map[int]int, len(productIDs))
	for _, id := range productIDs {
		if pos, ok := index[id]; ok {
			items[pos].Quantity++
			continue
		}
		index[id] = len(items)
		items = append(items, types.OrderItem{ProductID: id, Quantity: 1})
	}
	return s.CreateOrder(ctx, userID, items)
}

// ListByUser returns the user's orders, newest first, without line items.
func (s *OrderService) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]types.Order, error) {
	return s.repo.ListAll(ctx)
}

// ListAllWithProducts returns every order with its line items, newest first.
func (s *OrderService) ListAllWithProducts(ctx context.Context) ([]types.OrderWithProducts, error) {
	return s.repo.ListAllWithProducts(ctx)
}

// GetWithProducts returns a single order with its line items.
func (s *OrderService) GetWithProducts(ctx context.Context, id int) (types.OrderWithProducts, error) {
	return s.repo.GetWithProducts(ctx, id)
}

// GetForViewer returns the order if viewer may see it. Orders owned by someone else
// are reported as not found.
func (s *OrderService) GetForViewer(ctx context.Context, id int, viewer types.Identity) (types.OrderWithProducts, error) {
	order, err := s.repo.GetWithProducts(ctx, id)
	if err != nil {
		return types.OrderWithProducts{}, err
	}
	if !viewer.CanView(order.UserID) {
		return types.OrderWithProducts{}, store.ErrNotFound
	}
	return order, nil
}

// UpdateStatus moves an order along its lifecycle. Pending orders may become completed or
// canceled; completed and canceled orders are final. Re-applying the current status is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, id int, status types.OrderStatus) (types.Order, error) {
	if !status.Valid() {
		return types.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var previous types.OrderStatus
	order, err := s.repo.UpdateStatus(ctx, id, status, func(current types.OrderStatus) error {
		previous = current
		if !current.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, status)
		}
		return nil
	})
	if err != nil {
		return types.Order{}, err
	}

	if previous != status {
		s.publish(ctx, types.OrderEvent{
			Type:           types.OrderEventStatusChanged,
			OrderID:        order.ID,
			UserID:         order.UserID,
			Status:         order.Status,
			PreviousStatus: previous,
		})
	}
	return order, nil
}

// Stats returns today's, this month's and this year's order figures.
func (s *OrderService) Stats(ctx context.Context) (types.OrderStats, error) {
	var (
		stats types.OrderStats
		err   error
	)
	if stats.TodayCount, err = s.repo.TodayCount(ctx); err != nil {
		return types.OrderStats{}, fmt.Errorf("today count: %w", err)
	}
	if stats.TodayPendingCount, err = s.repo.TodayPendingCount(ctx); err != nil {
		return types.OrderStats{}, fmt.Errorf("today pending count: %w", err)
	}
	if stats.MonthCount, err = s.repo.MonthCount(ctx); err != nil {
		return types.OrderStats{}, fmt.Errorf("month count: %w", err)
	}
	if stats.YearRevenue, err = s.repo.YearRevenue(ctx); err != nil {
		return types.OrderStats{}, fmt.Errorf("year revenue: %w", err)
	}
	return stats, nil
}

func (s *OrderService) TodayOrderCount(ctx context.Context) (int, error) {
	return s.repo.TodayCount(ctx)
}

// TodayPendingOrderCount counts today's orders that are not completed.
func (s *OrderService) TodayPendingOrderCount(ctx context.Context) (int, error) {
	return s.repo.TodayPendingCount(ctx)
}

func (s *OrderService) ThisMonthOrderCount(ctx context.Context) (int, error) {
	return s.repo.MonthCount(ctx)
}

// ThisYearRevenue sums price × quantity over line items of orders created this calendar year.
func (s *OrderService) ThisYearRevenue(ctx context.Context) (decimal.Decimal, error) {
	return s.repo.YearRevenue(ctx)
}

// publish delivers the event after the write has committed. Delivery failures are
// logged and never undo the order change.
func (s *OrderService) publish(ctx context.Context, event types.OrderEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish order event",
			"type", event.Type,
			"order_id", event.OrderID,
			"error", err,
		)
	}
}
