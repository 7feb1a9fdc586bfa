package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bistro-pos/api/internal/board"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/queue"
	"github.com/bistro-pos/api/internal/status"
	"github.com/bistro-pos/api/internal/ws"
)

// Errors returned by the order service.
var (
	ErrEmptyCart        = errors.New("cart must contain at least one dish")
	ErrInvalidQuantity  = errors.New("quantity must be > 0")
	ErrDishNotFound     = errors.New("dish not found")
	ErrDishUnavailable  = errors.New("dish is not available")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderClosed      = errors.New("order is already paid")
	ErrTableNotFound    = errors.New("table not found")
	ErrLineItemNotFound = errors.New("line item not found")
	ErrNotAllServed     = errors.New("all dishes must be served before payment")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order flows need.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableByNumber(ctx context.Context, number int32) (database.Table, error)
	SetTableOccupied(ctx context.Context, arg database.SetTableOccupiedParams) (database.Table, error)

	GetDish(ctx context.Context, id int64) (database.Dish, error)

	GetOrder(ctx context.Context, id int64) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	UpdateOrderCart(ctx context.Context, arg database.UpdateOrderCartParams) (database.Order, error)
	SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	SetOrderPaid(ctx context.Context, id int64) (database.Order, error)
	ListActiveOrders(ctx context.Context) ([]database.ListActiveOrdersRow, error)
	ListActiveOrdersByTable(ctx context.Context, tableID int64) ([]database.Order, error)

	ListLineItemsByOrder(ctx context.Context, orderID int64) ([]database.LineItem, error)
	ListLineItemsForOrders(ctx context.Context, orderIDs []int64) ([]database.LineItemWithDishRow, error)
	GetLineItemWithDish(ctx context.Context, id int64) (database.LineItemWithDishRow, error)
	DeleteLineItemsByOrder(ctx context.Context, orderID int64) error
	CreateLineItem(ctx context.Context, arg database.CreateLineItemParams) (database.LineItem, error)
	UpdateLineItemStatus(ctx context.Context, arg database.UpdateLineItemStatusParams) (database.LineItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// FeedPublisher pushes change notifications to the live feed.
// Satisfied by *ws.Hub.
type FeedPublisher interface {
	Publish(channel string, event ws.Event)
}

// SaveCartRequest is the validated input for writing an order's cart.
// OrderID zero means a new order; otherwise the whole cart of the
// existing order is replaced.
type SaveCartRequest struct {
	OrderID     int64
	TableNumber int32
	Takeaway    bool
	Note        string
	Items       []CartItemRequest
}

// CartItemRequest is a single dish position in the cart.
type CartItemRequest struct {
	DishID   int64
	Quantity int32
}

// SaveCartResult is the written order with its line items.
type SaveCartResult struct {
	Order   database.Order
	Items   []database.LineItem
	Created bool
}

// OrderService handles the order lifecycle business logic.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	feed     FeedPublisher
	broker   queue.Broker
	log      *zap.SugaredLogger
}

// NewOrderService creates a new OrderService. broker may be nil when
// no message queue is configured.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, feed FeedPublisher, broker queue.Broker, log *zap.SugaredLogger) *OrderService {
	return &OrderService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		feed:     feed,
		broker:   broker,
		log:      log,
	}
}

// SaveCart creates or rewrites an order's cart atomically. Existing
// line items are deleted and reinserted; dishes that stay in the cart
// keep their kitchen status, new ones start in preparation (drinks go
// straight to ready). The order total is recomputed from current dish
// prices and the table is flagged occupied.
func (s *OrderService) SaveCart(ctx context.Context, req SaveCartRequest) (*SaveCartResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Resolve or create the order ---
	var order database.Order
	created := false
	priorStatus := make(map[int64]enum.KitchenStatus)

	if req.OrderID != 0 {
		order, err = store.GetOrder(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderNotFound
			}
			return nil, fmt.Errorf("get order: %w", err)
		}
		if order.Status == enum.OrderPaid {
			return nil, ErrOrderClosed
		}

		// Remember each dish's progress so rewriting the cart does not
		// reset the kitchen.
		existing, err := store.ListLineItemsByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("list line items: %w", err)
		}
		for _, li := range existing {
			if _, ok := priorStatus[li.DishID]; !ok {
				priorStatus[li.DishID] = li.KitchenStatus
			}
		}
	} else {
		orderType := enum.TypeDineIn
		tableNumber := req.TableNumber
		if req.Takeaway {
			orderType = enum.TypeTakeaway
			tableNumber = enum.TakeawayTableNumber
		}

		table, err := store.GetTableByNumber(ctx, tableNumber)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("get table: %w", err)
		}

		order, err = store.CreateOrder(ctx, database.CreateOrderParams{
			TableID:   pgtype.Int8{Int64: table.ID, Valid: true},
			OrderType: orderType,
			Note:      textOrNull(req.Note),
			Total:     database.DecimalToNumeric(decimal.Zero),
		})
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
		created = true
	}

	// --- Rewrite line items ---
	if err := store.DeleteLineItemsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("delete line items: %w", err)
	}

	total := decimal.Zero
	items := make([]database.LineItem, 0, len(req.Items))
	for i, item := range req.Items {
		dish, err := store.GetDish(ctx, item.DishID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrDishNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get dish: %w", i, err)
		}
		if !dish.Available {
			return nil, fmt.Errorf("items[%d]: %s: %w", i, dish.Name, ErrDishUnavailable)
		}

		st, kept := priorStatus[dish.ID]
		if !kept {
			st = enum.DishInPreparation
		}
		st, _ = status.AutoAdvance(dish.Category, st)

		li, err := store.CreateLineItem(ctx, database.CreateLineItemParams{
			OrderID:       order.ID,
			DishID:        dish.ID,
			Quantity:      item.Quantity,
			KitchenStatus: st,
		})
		if err != nil {
			return nil, fmt.Errorf("items[%d]: create line item: %w", i, err)
		}
		items = append(items, li)

		price := database.NumericToDecimal(dish.Price)
		total = total.Add(price.Mul(decimal.NewFromInt32(item.Quantity)))
	}

	order, err = store.UpdateOrderCart(ctx, database.UpdateOrderCartParams{
		ID:    order.ID,
		Total: database.DecimalToNumeric(total),
		Note:  textOrNull(req.Note),
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	// A table with a live cart is occupied.
	if order.TableID.Valid {
		if _, err := store.SetTableOccupied(ctx, database.SetTableOccupiedParams{
			ID:       order.TableID.Int64,
			Occupied: true,
		}); err != nil {
			return nil, fmt.Errorf("set table occupied: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	eventType := ws.EventUpdate
	if created {
		eventType = ws.EventInsert
	}
	s.publishFeed("orders", eventType, orderRow(order))
	s.publishFeed("tables", ws.EventUpdate, map[string]any{"id": order.TableID.Int64, "occupied": true})
	if created {
		s.publishOrderEvent(ctx, queue.EventOrderCreated, order)
	}

	return &SaveCartResult{Order: order, Items: items, Created: created}, nil
}

// SetLineItemStatus moves one dish through the kitchen pipeline on
// behalf of a role. The transition is validated against the state
// machine before anything is written. Moving the first dish out of
// preparation promotes an accepted order to in-preparation.
func (s *OrderService) SetLineItemStatus(ctx context.Context, actor enum.Role, itemID int64, to enum.KitchenStatus) (database.LineItem, error) {
	var updated database.LineItem

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return updated, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetLineItemWithDish(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return updated, ErrLineItemNotFound
		}
		return updated, fmt.Errorf("get line item: %w", err)
	}

	order, err := store.GetOrder(ctx, item.OrderID)
	if err != nil {
		return updated, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderPaid {
		return updated, ErrOrderClosed
	}

	if err := status.Allowed(actor, item.KitchenStatus, to); err != nil {
		return updated, err
	}

	updated, err = store.UpdateLineItemStatus(ctx, database.UpdateLineItemStatusParams{
		ID:            itemID,
		KitchenStatus: to,
	})
	if err != nil {
		return updated, fmt.Errorf("update line item: %w", err)
	}

	promoted := false
	if order.Status == enum.OrderAccepted && to != enum.DishInPreparation {
		order, err = store.SetOrderStatus(ctx, database.SetOrderStatusParams{
			ID:     order.ID,
			Status: enum.OrderInPreparation,
		})
		if err != nil {
			return updated, fmt.Errorf("promote order: %w", err)
		}
		promoted = true
	}

	if err := tx.Commit(ctx); err != nil {
		return updated, fmt.Errorf("commit tx: %w", err)
	}

	s.publishFeed("line_items", ws.EventUpdate, map[string]any{
		"id":             updated.ID,
		"order_id":       updated.OrderID,
		"kitchen_status": updated.KitchenStatus,
	})
	if promoted {
		s.publishFeed("orders", ws.EventUpdate, orderRow(order))
	}

	return updated, nil
}

// ActiveOrders loads the full active-order set for the board view.
// Drinks still marked in-preparation are advanced to ready on the way
// out and the change persisted, so the kitchen never sees them.
func (s *OrderService) ActiveOrders(ctx context.Context) ([]board.Order, error) {
	rows, err := s.store.ListActiveOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	lineRows, err := s.store.ListLineItemsForOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}

	itemsByOrder := make(map[int64][]board.Item, len(rows))
	for _, lr := range lineRows {
		st := lr.KitchenStatus
		if next, changed := status.AutoAdvance(lr.Category, st); changed {
			if _, err := s.store.UpdateLineItemStatus(ctx, database.UpdateLineItemStatusParams{
				ID:            lr.ID,
				KitchenStatus: next,
			}); err != nil {
				return nil, fmt.Errorf("auto-advance drink %d: %w", lr.ID, err)
			}
			st = next
			s.publishFeed("line_items", ws.EventUpdate, map[string]any{
				"id":             lr.ID,
				"order_id":       lr.OrderID,
				"kitchen_status": st,
			})
		}
		itemsByOrder[lr.OrderID] = append(itemsByOrder[lr.OrderID], board.Item{
			ID:        lr.ID,
			DishID:    lr.DishID,
			Name:      lr.DishName,
			Category:  lr.Category,
			Quantity:  lr.Quantity,
			UnitPrice: database.NumericToDecimal(lr.UnitPrice),
			Status:    st,
		})
	}

	out := make([]board.Order, 0, len(rows))
	for _, r := range rows {
		o := board.Order{
			ID:        r.ID,
			OrderType: r.OrderType,
			Status:    r.Status,
			Note:      r.Note.String,
			Total:     database.NumericToDecimal(r.Total),
			CreatedAt: r.CreatedAt,
			Items:     itemsByOrder[r.ID],
		}
		if r.TableNumber.Valid {
			n := r.TableNumber.Int32
			o.TableNumber = &n
		}
		out = append(out, o)
	}
	return out, nil
}

// Pay closes an order. Every dish must already be served; the status
// write is conditional so two concurrent payments cannot both succeed.
// When the table has no other active orders left it is freed.
func (s *OrderService) Pay(ctx context.Context, orderID int64) (database.Order, error) {
	var paid database.Order

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return paid, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paid, ErrOrderNotFound
		}
		return paid, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderPaid {
		return paid, ErrOrderClosed
	}

	items, err := store.ListLineItemsByOrder(ctx, orderID)
	if err != nil {
		return paid, fmt.Errorf("list line items: %w", err)
	}
	if len(items) == 0 {
		return paid, ErrEmptyCart
	}
	for _, li := range items {
		if li.KitchenStatus != enum.DishServed {
			return paid, ErrNotAllServed
		}
	}

	paid, err = store.SetOrderPaid(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paid, ErrOrderClosed
		}
		return paid, fmt.Errorf("set order paid: %w", err)
	}

	tableFreed := false
	if paid.TableID.Valid {
		remaining, err := store.ListActiveOrdersByTable(ctx, paid.TableID.Int64)
		if err != nil {
			return paid, fmt.Errorf("list table orders: %w", err)
		}
		if len(remaining) == 0 {
			if _, err := store.SetTableOccupied(ctx, database.SetTableOccupiedParams{
				ID:       paid.TableID.Int64,
				Occupied: false,
			}); err != nil {
				return paid, fmt.Errorf("free table: %w", err)
			}
			tableFreed = true
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return paid, fmt.Errorf("commit tx: %w", err)
	}

	s.publishFeed("orders", ws.EventUpdate, orderRow(paid))
	if tableFreed {
		s.publishFeed("tables", ws.EventUpdate, map[string]any{"id": paid.TableID.Int64, "occupied": false})
	}
	s.publishOrderEvent(ctx, queue.EventOrderPaid, paid)

	return paid, nil
}

// --- Helpers ---

func (s *OrderService) publishFeed(table, eventType string, row any) {
	if s.feed == nil {
		return
	}
	raw, err := json.Marshal(row)
	if err != nil {
		s.log.Errorw("marshal feed row", "table", table, "error", err)
		return
	}
	s.feed.Publish(ws.FeedChannel, ws.Event{Table: table, Type: eventType, Row: raw})
}

// publishOrderEvent pushes a lifecycle event to the message queue.
// Queue failures are logged, never surfaced: payment must not fail
// because the broker is down.
func (s *OrderService) publishOrderEvent(ctx context.Context, eventType string, order database.Order) {
	if s.broker == nil {
		return
	}
	ev := queue.OrderEvent{
		EventID:    uuid.New(),
		Type:       eventType,
		OrderID:    order.ID,
		OrderType:  order.OrderType,
		Total:      database.NumericToDecimal(order.Total).StringFixed(2),
		OccurredAt: time.Now().UTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		s.log.Errorw("marshal order event", "type", eventType, "error", err)
		return
	}
	if err := s.broker.Publish(ctx, queue.QueueOrderEvents, body); err != nil {
		s.log.Errorw("publish order event", "type", eventType, "order_id", order.ID, "error", err)
	}
}

func orderRow(o database.Order) map[string]any {
	row := map[string]any{
		"id":         o.ID,
		"order_type": o.OrderType,
		"status":     o.Status,
		"total":      database.NumericToDecimal(o.Total).StringFixed(2),
	}
	if o.TableID.Valid {
		row["table_id"] = o.TableID.Int64
	}
	return row
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
