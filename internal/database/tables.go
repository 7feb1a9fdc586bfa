package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bistro-pos/api/internal/enum"
)

func scanTable(row pgx.Row) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.Number, &t.Occupied)
	return t, err
}

// ListTables returns every table ordered by number.
func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, `SELECT id, number, occupied FROM tables ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTable fetches one table by id.
func (q *Queries) GetTable(ctx context.Context, id int64) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, `SELECT id, number, occupied FROM tables WHERE id = $1`, id))
}

// GetTableByNumber fetches one table by its floor number.
func (q *Queries) GetTableByNumber(ctx context.Context, number int32) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, `SELECT id, number, occupied FROM tables WHERE number = $1`, number))
}

// CreateTable inserts a new table with the given floor number.
func (q *Queries) CreateTable(ctx context.Context, number int32) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, `
		INSERT INTO tables (number, occupied) VALUES ($1, false)
		RETURNING id, number, occupied`, number))
}

// SetTableOccupiedParams flip a table's occupancy flag.
type SetTableOccupiedParams struct {
	ID       int64
	Occupied bool
}

// SetTableOccupied updates the occupancy flag.
func (q *Queries) SetTableOccupied(ctx context.Context, arg SetTableOccupiedParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, `
		UPDATE tables SET occupied = $2 WHERE id = $1
		RETURNING id, number, occupied`, arg.ID, arg.Occupied))
}

// LatestTableOrderRow is the most recent order on a table together
// with its line-item statuses, for the floor-view color derivation.
type LatestTableOrderRow struct {
	OrderID      int64
	Status       enum.OrderStatus
	ItemStatuses []int16
}

// GetLatestOrderForTable returns the newest order on a table with an
// aggregate of its line-item statuses. pgx.ErrNoRows means the table
// has never had an order.
func (q *Queries) GetLatestOrderForTable(ctx context.Context, tableID int64) (LatestTableOrderRow, error) {
	var r LatestTableOrderRow
	var statuses pgtype.FlatArray[int16]
	err := q.db.QueryRow(ctx, `
		SELECT o.id, o.status,
		       COALESCE(array_agg(li.kitchen_status) FILTER (WHERE li.id IS NOT NULL), '{}')
		FROM orders o
		LEFT JOIN line_items li ON li.order_id = o.id
		WHERE o.table_id = $1
		GROUP BY o.id, o.status
		ORDER BY o.id DESC
		LIMIT 1`, tableID).
		Scan(&r.OrderID, &r.Status, &statuses)
	if err != nil {
		return r, err
	}
	r.ItemStatuses = statuses
	return r, nil
}
