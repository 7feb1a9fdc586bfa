package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bistro-pos/api/internal/enum"
)

const orderColumns = `id, table_id, order_type, status, total, note, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.TableID, &o.OrderType, &o.Status, &o.Total, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// ListActiveOrdersRow is an order in the active set together with its
// table number (NULL for orders without a table).
type ListActiveOrdersRow struct {
	Order
	TableNumber pgtype.Int4
}

// ListActiveOrders returns all orders whose status is accepted or
// in_preparation, ordered by order id.
func (q *Queries) ListActiveOrders(ctx context.Context) ([]ListActiveOrdersRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT o.id, o.table_id, o.order_type, o.status, o.total, o.note, o.created_at, o.updated_at,
		       t.number
		FROM orders o
		LEFT JOIN tables t ON t.id = o.table_id
		WHERE o.status IN ($1, $2)
		ORDER BY o.id`,
		enum.OrderAccepted, enum.OrderInPreparation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ListActiveOrdersRow
	for rows.Next() {
		var r ListActiveOrdersRow
		if err := rows.Scan(&r.ID, &r.TableID, &r.OrderType, &r.Status, &r.Total, &r.Note,
			&r.CreatedAt, &r.UpdatedAt, &r.TableNumber); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListActiveOrdersByTable returns the active orders attached to one
// table, oldest first. A table normally has at most one, but takeaway
// shares a slot.
func (q *Queries) ListActiveOrdersByTable(ctx context.Context, tableID int64) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE table_id = $1 AND status IN ($2, $3)
		ORDER BY id`,
		tableID, enum.OrderAccepted, enum.OrderInPreparation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetOrder fetches one order by id.
func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// CreateOrderParams are the fields for a new order; it starts accepted
// with a zero total until the cart is written.
type CreateOrderParams struct {
	TableID   pgtype.Int8
	OrderType enum.OrderType
	Note      pgtype.Text
	Total     pgtype.Numeric
}

// CreateOrder inserts a new accepted order.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `
		INSERT INTO orders (table_id, order_type, status, total, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderColumns,
		arg.TableID, arg.OrderType, enum.OrderAccepted, arg.Total, arg.Note))
}

// UpdateOrderCartParams stamp an order after its line items change.
type UpdateOrderCartParams struct {
	ID    int64
	Total pgtype.Numeric
	Note  pgtype.Text
}

// UpdateOrderCart rewrites the running total, note, and timestamp.
func (q *Queries) UpdateOrderCart(ctx context.Context, arg UpdateOrderCartParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `
		UPDATE orders
		SET total = $2, note = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.Total, arg.Note))
}

// SetOrderStatusParams move an order between lifecycle states.
type SetOrderStatusParams struct {
	ID     int64
	Status enum.OrderStatus
}

// SetOrderStatus updates the order-level status unconditionally.
func (q *Queries) SetOrderStatus(ctx context.Context, arg SetOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.Status))
}

// SetOrderPaid marks an order paid. The WHERE clause enforces the
// precondition atomically: a no-row result means the order is missing
// or already paid.
func (q *Queries) SetOrderPaid(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status <> $2
		RETURNING `+orderColumns,
		id, enum.OrderPaid))
}

// --- Line items ---

// ListLineItemsByOrder returns the line items of one order in
// insertion order.
func (q *Queries) ListLineItemsByOrder(ctx context.Context, orderID int64) ([]LineItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, dish_id, quantity, kitchen_status
		FROM line_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.DishID, &li.Quantity, &li.KitchenStatus); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// LineItemWithDishRow is a line item joined with the dish fields the
// display rules need.
type LineItemWithDishRow struct {
	LineItem
	DishName  string
	Category  enum.DishCategory
	UnitPrice pgtype.Numeric
}

// ListLineItemsForOrders returns, for a set of order ids, every line
// item joined with its dish, in line-item insertion order.
func (q *Queries) ListLineItemsForOrders(ctx context.Context, orderIDs []int64) ([]LineItemWithDishRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT li.id, li.order_id, li.dish_id, li.quantity, li.kitchen_status,
		       d.name, d.category, d.price
		FROM line_items li
		JOIN dishes d ON d.id = li.dish_id
		WHERE li.order_id = ANY($1)
		ORDER BY li.id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItemWithDishRow
	for rows.Next() {
		var r LineItemWithDishRow
		if err := rows.Scan(&r.ID, &r.OrderID, &r.DishID, &r.Quantity, &r.KitchenStatus,
			&r.DishName, &r.Category, &r.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLineItemWithDish fetches one line item joined with its dish.
func (q *Queries) GetLineItemWithDish(ctx context.Context, id int64) (LineItemWithDishRow, error) {
	var r LineItemWithDishRow
	err := q.db.QueryRow(ctx, `
		SELECT li.id, li.order_id, li.dish_id, li.quantity, li.kitchen_status,
		       d.name, d.category, d.price
		FROM line_items li
		JOIN dishes d ON d.id = li.dish_id
		WHERE li.id = $1`, id).
		Scan(&r.ID, &r.OrderID, &r.DishID, &r.Quantity, &r.KitchenStatus,
			&r.DishName, &r.Category, &r.UnitPrice)
	return r, err
}

// DeleteLineItemsByOrder removes every line item of an order. Cart
// saves delete-then-reinsert; callers carry prior statuses forward.
func (q *Queries) DeleteLineItemsByOrder(ctx context.Context, orderID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM line_items WHERE order_id = $1`, orderID)
	return err
}

// CreateLineItemParams are the fields for one cart entry.
type CreateLineItemParams struct {
	OrderID       int64
	DishID        int64
	Quantity      int32
	KitchenStatus enum.KitchenStatus
}

// CreateLineItem inserts one line item.
func (q *Queries) CreateLineItem(ctx context.Context, arg CreateLineItemParams) (LineItem, error) {
	var li LineItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO line_items (order_id, dish_id, quantity, kitchen_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, order_id, dish_id, quantity, kitchen_status`,
		arg.OrderID, arg.DishID, arg.Quantity, arg.KitchenStatus).
		Scan(&li.ID, &li.OrderID, &li.DishID, &li.Quantity, &li.KitchenStatus)
	return li, err
}

// UpdateLineItemStatusParams is a single-row status write.
type UpdateLineItemStatusParams struct {
	ID            int64
	KitchenStatus enum.KitchenStatus
}

// UpdateLineItemStatus persists one line-item transition.
func (q *Queries) UpdateLineItemStatus(ctx context.Context, arg UpdateLineItemStatusParams) (LineItem, error) {
	var li LineItem
	err := q.db.QueryRow(ctx, `
		UPDATE line_items SET kitchen_status = $2
		WHERE id = $1
		RETURNING id, order_id, dish_id, quantity, kitchen_status`,
		arg.ID, arg.KitchenStatus).
		Scan(&li.ID, &li.OrderID, &li.DishID, &li.Quantity, &li.KitchenStatus)
	return li, err
}
