package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-hq/backoffice/internal/services"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/internal/web"
	"github.com/storefront-hq/backoffice/types"
)

const (
	orderParam          = "orderID"
	maxOrderRequestSize = 1 << 20
)

var orderFormField = regexp.MustCompile(`^products\[(\w+)\]\[(id|quantity)\]$`)

// OrderHandler serves order placement, listing, detail and status pages.
type OrderHandler struct {
	orders  *services.OrderService
	catalog *services.CatalogService
	pages   *web.Renderer
	logger  *slog.Logger
}

// NewOrderHandler constructs a handler with the provided services.
func NewOrderHandler(orders *services.OrderService, catalog *services.CatalogService, pages *web.Renderer, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, catalog: catalog, pages: pages, logger: logger}
}

// OrderRouter registers the order pages. Every route requires a session.
func OrderRouter(r chi.Router, h *OrderHandler, requireAdmin func(http.Handler) http.Handler) {
	r.Get("/", h.ListOwnOrders)
	r.With(requireAdmin).Get("/all", h.ListAllOrders)
	r.Get("/add", h.NewOrderForm)
	r.Post("/add", h.CreateOrder)
	r.Route("/{"+orderParam+"}", func(r chi.Router) {
		r.Get("/", h.ShowOrder)
		r.With(requireAdmin).Post("/status", h.UpdateStatus)
	})
}

type ordersPageData struct {
	WithProducts bool
	Orders       []types.Order
	Detailed     []types.OrderWithProducts
}

func (h *OrderHandler) ListOwnOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	orders, err := h.orders.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		h.pageError(w, r, err, "")
		return
	}
	h.pages.Render(w, http.StatusOK, "orders", web.Page{
		Title:    "My orders",
		Identity: &identity,
		Data:     ordersPageData{Orders: orders},
	})
}

func (h *OrderHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAllWithProducts(r.Context())
	if err != nil {
		h.pageError(w, r, err, "")
		return
	}
	h.pages.Render(w, http.StatusOK, "orders", web.Page{
		Title:    "All orders",
		Identity: identityPtr(r),
		Data:     ordersPageData{WithProducts: true, Detailed: orders},
	})
}

type orderPageData struct {
	Order     types.OrderWithProducts
	CanManage bool
	Statuses  []types.OrderStatus
}

// ShowOrder renders one order. Customers only see their own orders.
func (h *OrderHandler) ShowOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, orderParam)
	if err != nil {
		h.pages.Error(w, http.StatusBadRequest, identityPtr(r), "Invalid order ID.")
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	order, err := h.orders.GetForViewer(r.Context(), id, identity)
	if err != nil {
		h.pageError(w, r, err, "Order not found.")
		return
	}
	h.pages.Render(w, http.StatusOK, "order", web.Page{
		Title:    "Order #" + strconv.Itoa(order.ID),
		Identity: &identity,
		Data: orderPageData{
			Order:     order,
			CanManage: identity.IsAdmin(),
			Statuses:  types.OrderStatuses,
		},
	})
}

func (h *OrderHandler) NewOrderForm(w http.ResponseWriter, r *http.Request) {
	h.renderOrderForm(w, r, http.StatusOK, "")
}

// CreateOrder places an order from the products[i][id] / products[i][quantity] form.
// Rows with a zero quantity are treated as not selected.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderOrderForm(w, r, http.StatusBadRequest, "Invalid form.")
		return
	}
	items, err := orderItemsFromForm(r.PostForm)
	if err != nil {
		h.renderOrderForm(w, r, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := IdentityFromContext(r.Context())
	order, err := h.orders.CreateOrder(r.Context(), identity.UserID, items)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		status, message := errorStatus(err, "")
		if status == http.StatusInternalServerError {
			h.pageError(w, r, err, "")
			return
		}
		h.renderOrderForm(w, r, status, message)
		return
	}
	http.Redirect(w, r, "/orders/"+strconv.Itoa(order.ID), http.StatusSeeOther)
}

// UpdateStatus applies a lifecycle change submitted from the order page.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, orderParam)
	if err != nil {
		h.pages.Error(w, http.StatusBadRequest, identityPtr(r), "Invalid order ID.")
		return
	}
	status := types.OrderStatus(strings.TrimSpace(r.PostFormValue("status")))
	if status == "" {
		h.pages.Error(w, http.StatusBadRequest, identityPtr(r), "Status is required.")
		return
	}

	if _, err := h.orders.UpdateStatus(r.Context(), id, status); err != nil {
		h.pageError(w, r, err, "Order not found.")
		return
	}
	http.Redirect(w, r, "/orders/"+strconv.Itoa(id), http.StatusSeeOther)
}

// CreateOrderRequest is the JSON order payload. Exactly one of Items and
// ProductIDs must be present.
type CreateOrderRequest struct {
	Items      []types.OrderItem `json:"items"`
	ProductIDs []int             `json:"productIds"`
}

// CreateOrderResponse wraps the created order.
type CreateOrderResponse struct {
	Success bool                    `json:"success"`
	Order   types.OrderWithProducts `json:"order"`
}

func (h *OrderHandler) CreateOrderJSON(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateOrder(io.LimitReader(r.Body, maxOrderRequestSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := IdentityFromContext(r.Context())
	var order types.OrderWithProducts
	if req.Items != nil {
		order, err = h.orders.CreateOrder(r.Context(), identity.UserID, req.Items)
	} else {
		order, err = h.orders.CreateOrderFromProductIDs(r.Context(), identity.UserID, req.ProductIDs)
	}
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, CreateOrderResponse{Success: true, Order: order})
}

func (h *OrderHandler) ListOwnOrdersJSON(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	orders, err := h.orders.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	if orders == nil {
		orders = []types.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) GetOrderJSON(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, orderParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	identity, _ := IdentityFromContext(r.Context())
	order, err := h.orders.GetForViewer(r.Context(), id, identity)
	if err != nil {
		respondError(w, r, h.logger, err, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateStatusRequest is the JSON status change payload.
type UpdateStatusRequest struct {
	Status types.OrderStatus `json:"status"`
}

func (h *OrderHandler) UpdateStatusJSON(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, orderParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxOrderRequestSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, r, h.logger, err, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) StatsJSON(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *OrderHandler) renderOrderForm(w http.ResponseWriter, r *http.Request, status int, message string) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.pageError(w, r, err, "")
		return
	}
	h.pages.Render(w, status, "order_form", web.Page{
		Title:    "Place new order",
		Identity: identityPtr(r),
		Error:    message,
		Data:     products,
	})
}

func (h *OrderHandler) pageError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	renderPageError(w, r, h.pages, h.logger, err, notFound)
}

// decodeCreateOrder accepts {"items":[…]} or {"productIds":[…]} and nothing else.
func decodeCreateOrder(body io.Reader) (CreateOrderRequest, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return CreateOrderRequest{}, errors.New("invalid request")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return CreateOrderRequest{}, errors.New("body must be a JSON object")
	}
	_, hasItems := fields["items"]
	_, hasIDs := fields["productIds"]
	if hasItems == hasIDs {
		return CreateOrderRequest{}, errors.New("body must contain either items or productIds")
	}

	var req CreateOrderRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if hasItems {
			return CreateOrderRequest{}, errors.New("items must be an array of {product_id, quantity}")
		}
		return CreateOrderRequest{}, errors.New("productIds must be an array of numeric ids")
	}
	if hasItems && req.Items == nil {
		req.Items = []types.OrderItem{}
	}
	return req, nil
}

// orderItemsFromForm collects products[key][id] / products[key][quantity] pairs
// in key order, skipping rows without a positive quantity.
func orderItemsFromForm(form map[string][]string) ([]types.OrderItem, error) {
	type row struct {
		id, quantity string
	}
	rows := map[string]*row{}
	for field, values := range form {
		m := orderFormField.FindStringSubmatch(field)
		if m == nil || len(values) == 0 {
			continue
		}
		rw, ok := rows[m[1]]
		if !ok {
			rw = &row{}
			rows[m[1]] = rw
		}
		if m[2] == "id" {
			rw.id = strings.TrimSpace(values[0])
		} else {
			rw.quantity = strings.TrimSpace(values[0])
		}
	}

	keys := make([]string, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})

	var items []types.OrderItem
	for _, key := range keys {
		rw := rows[key]
		quantity, err := strconv.Atoi(rw.quantity)
		if err != nil || quantity <= 0 {
			continue
		}
		id, err := strconv.Atoi(rw.id)
		if err != nil || id <= 0 {
			return nil, errors.New("invalid product selection")
		}
		items = append(items, types.OrderItem{ProductID: id, Quantity: quantity})
	}
	if len(items) == 0 {
		return nil, errors.New("select at least one product")
	}
	return items, nil
}
