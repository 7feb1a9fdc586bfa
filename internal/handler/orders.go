package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bistro-pos/api/internal/board"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/middleware"
	"github.com/bistro-pos/api/internal/service"
	"github.com/bistro-pos/api/internal/status"
)

// OrderService is the business-logic surface the order handlers call.
// Satisfied by *service.OrderService.
type OrderService interface {
	SaveCart(ctx context.Context, req service.SaveCartRequest) (*service.SaveCartResult, error)
	SetLineItemStatus(ctx context.Context, actor enum.Role, itemID int64, to enum.KitchenStatus) (database.LineItem, error)
	Pay(ctx context.Context, orderID int64) (database.Order, error)
}

// OrderBoard is the live active-order view the read endpoints serve
// from. Satisfied by *board.Synchronizer.
type OrderBoard interface {
	Snapshot() []board.OrderView
	KitchenSnapshot() []board.OrderView
	Get(orderID int64) (board.OrderView, bool)
	ApplyItemStatus(ctx context.Context, orderID, itemID int64, to enum.KitchenStatus, persist func(context.Context) error) error
}

// OrderHandler handles the order lifecycle endpoints.
type OrderHandler struct {
	svc   OrderService
	board OrderBoard
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderService, b OrderBoard) *OrderHandler {
	return &OrderHandler{svc: svc, board: b}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/active", h.ListActive)
	r.Get("/orders/{id}", h.Get)
	r.Post("/orders", h.Create)
	r.Put("/orders/{id}/cart", h.UpdateCart)
	r.Post("/orders/{id}/pay", h.Pay)
	r.Patch("/line-items/{id}/status", h.SetItemStatus)
}

// --- Request / Response types ---

type cartItemRequest struct {
	DishID   int64 `json:"dish_id"`
	Quantity int32 `json:"quantity"`
}

type saveCartRequest struct {
	TableNumber int32             `json:"table_number"`
	Takeaway    bool              `json:"takeaway"`
	Note        string            `json:"note"`
	Items       []cartItemRequest `json:"items"`
}

type setItemStatusRequest struct {
	Status int16 `json:"status"`
}

type orderItemResponse struct {
	ID        int64  `json:"id"`
	DishID    int64  `json:"dish_id"`
	Name      string `json:"name"`
	Category  int16  `json:"category"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Status    int16  `json:"status"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	TableNumber *int32              `json:"table_number"`
	OrderType   int16               `json:"order_type"`
	Status      int16               `json:"status"`
	Note        string              `json:"note,omitempty"`
	Total       string              `json:"total"`
	Aggregate   string              `json:"aggregate"`
	Color       string              `json:"color"`
	CreatedAt   time.Time           `json:"created_at"`
	Items       []orderItemResponse `json:"items"`
}

type lineItemResponse struct {
	ID            int64 `json:"id"`
	OrderID       int64 `json:"order_id"`
	DishID        int64 `json:"dish_id"`
	Quantity      int32 `json:"quantity"`
	KitchenStatus int16 `json:"kitchen_status"`
}

// --- Handlers ---

// ListActive serves the active-order view. The optional view query
// parameter picks the dashboard layout: "kitchen" pushes fully-ready
// orders to the back and groups items by category, "waiter" sorts
// served items first. Without it orders come back by id with items in
// insertion order.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")

	var views []board.OrderView
	if view == "kitchen" {
		views = h.board.KitchenSnapshot()
	} else {
		views = h.board.Snapshot()
	}

	out := make([]orderResponse, len(views))
	for i, v := range views {
		out[i] = toOrderResponse(v, view)
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one active order from the board view.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	v, ok := h.board.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(v, ""))
}

// Create opens a new order with an initial cart.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req saveCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.svc.SaveCart(r.Context(), service.SaveCartRequest{
		TableNumber: req.TableNumber,
		Takeaway:    req.Takeaway,
		Note:        req.Note,
		Items:       toCartItems(req.Items),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSavedOrderResponse(res))
}

// UpdateCart replaces the cart of an existing order.
func (h *OrderHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req saveCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.svc.SaveCart(r.Context(), service.SaveCartRequest{
		OrderID: id,
		Note:    req.Note,
		Items:   toCartItems(req.Items),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSavedOrderResponse(res))
}

// SetItemStatus moves one dish through the kitchen pipeline. The board
// view is updated optimistically; if the database write fails the view
// reloads and the error surfaces.
func (h *OrderHandler) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line item id"})
		return
	}

	var req setItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	to := enum.KitchenStatus(req.Status)
	if !to.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var updated database.LineItem
	persist := func(ctx context.Context) error {
		var perr error
		updated, perr = h.svc.SetLineItemStatus(ctx, claims.Role, id, to)
		return perr
	}

	// Only items in the active view go through the optimistic path.
	if orderID, found := h.findItemOrder(id); found {
		err = h.board.ApplyItemStatus(r.Context(), orderID, id, to, persist)
	} else {
		err = persist(r.Context())
	}
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lineItemResponse{
		ID:            updated.ID,
		OrderID:       updated.OrderID,
		DishID:        updated.DishID,
		Quantity:      updated.Quantity,
		KitchenStatus: int16(updated.KitchenStatus),
	})
}

// Pay closes an order.
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.svc.Pay(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     order.ID,
		"status": int16(order.Status),
		"total":  database.NumericToDecimal(order.Total).StringFixed(2),
	})
}

// --- Helpers ---

func (h *OrderHandler) findItemOrder(itemID int64) (int64, bool) {
	for _, v := range h.board.Snapshot() {
		for _, it := range v.Items {
			if it.ID == itemID {
				return v.ID, true
			}
		}
	}
	return 0, false
}

func toCartItems(items []cartItemRequest) []service.CartItemRequest {
	out := make([]service.CartItemRequest, len(items))
	for i, it := range items {
		out[i] = service.CartItemRequest{DishID: it.DishID, Quantity: it.Quantity}
	}
	return out
}

// toOrderResponse converts a board view into the wire shape, applying
// the per-dashboard item ordering.
func toOrderResponse(v board.OrderView, view string) orderResponse {
	lines := make([]status.Line, len(v.Items))
	for i, it := range v.Items {
		lines[i] = status.Line{
			ID:       int64(i),
			Category: it.Category,
			Status:   it.Status,
			Quantity: it.Quantity,
		}
	}

	var ordered []status.Line
	switch view {
	case "kitchen":
		buckets := status.GroupByCategory(lines)
		for _, bucket := range buckets {
			ordered = append(ordered, bucket...)
		}
	case "waiter":
		ordered = status.SortForWaiter(lines)
	default:
		ordered = lines
	}

	items := make([]orderItemResponse, len(ordered))
	for i, l := range ordered {
		it := v.Items[l.ID]
		items[i] = orderItemResponse{
			ID:        it.ID,
			DishID:    it.DishID,
			Name:      it.Name,
			Category:  int16(it.Category),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Status:    int16(it.Status),
		}
	}

	return orderResponse{
		ID:          v.ID,
		TableNumber: v.TableNumber,
		OrderType:   int16(v.OrderType),
		Status:      int16(v.Status),
		Note:        v.Note,
		Total:       v.Total.StringFixed(2),
		Aggregate:   v.Aggregate.Label(),
		Color:       v.Color,
		CreatedAt:   v.CreatedAt,
		Items:       items,
	}
}

func toSavedOrderResponse(res *service.SaveCartResult) map[string]any {
	items := make([]lineItemResponse, len(res.Items))
	for i, li := range res.Items {
		items[i] = lineItemResponse{
			ID:            li.ID,
			OrderID:       li.OrderID,
			DishID:        li.DishID,
			Quantity:      li.Quantity,
			KitchenStatus: int16(li.KitchenStatus),
		}
	}
	return map[string]any{
		"id":         res.Order.ID,
		"order_type": int16(res.Order.OrderType),
		"status":     int16(res.Order.Status),
		"total":      database.NumericToDecimal(res.Order.Total).StringFixed(2),
		"items":      items,
	}
}

// writeOrderError maps service and state-machine errors to HTTP codes.
func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrLineItemNotFound),
		errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrDishNotFound),
		errors.Is(err, board.ErrOrderNotFound),
		errors.Is(err, board.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, status.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderClosed),
		errors.Is(err, service.ErrDishUnavailable),
		errors.Is(err, service.ErrNotAllServed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, status.ErrNotAllowed):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
