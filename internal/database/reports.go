package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bistro-pos/api/internal/enum"
)

// ReportRangeParams bound a report to paid orders in [Start, End).
// Zero-valued (invalid) bounds mean unbounded on that side.
type ReportRangeParams struct {
	Start pgtype.Timestamptz
	End   pgtype.Timestamptz
}

// DishPopularityRow is one dish with its total quantity sold.
type DishPopularityRow struct {
	DishID   int64
	Name     string
	Category enum.DishCategory
	Count    int64
}

// DishPopularity counts units sold per dish across paid orders,
// most popular first.
func (q *Queries) DishPopularity(ctx context.Context, arg ReportRangeParams) ([]DishPopularityRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT d.id, d.name, d.category, SUM(li.quantity)::bigint
		FROM line_items li
		JOIN dishes d ON d.id = li.dish_id
		JOIN orders o ON o.id = li.order_id
		WHERE o.status = $1
		  AND ($2::timestamptz IS NULL OR o.created_at >= $2)
		  AND ($3::timestamptz IS NULL OR o.created_at < $3)
		GROUP BY d.id, d.name, d.category
		ORDER BY SUM(li.quantity) DESC, d.name`,
		enum.OrderPaid, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DishPopularityRow
	for rows.Next() {
		var r DishPopularityRow
		if err := rows.Scan(&r.DishID, &r.Name, &r.Category, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RevenueRow is the revenue total and paid-order count for a range.
type RevenueRow struct {
	Total      pgtype.Numeric
	OrderCount int64
}

// Revenue sums the totals of paid orders in the range.
func (q *Queries) Revenue(ctx context.Context, arg ReportRangeParams) (RevenueRow, error) {
	var r RevenueRow
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE status = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)`,
		enum.OrderPaid, arg.Start, arg.End).
		Scan(&r.Total, &r.OrderCount)
	return r, err
}
