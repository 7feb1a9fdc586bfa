package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bistro-pos/api/internal/enum"
)

const dishColumns = `id, name, category, price, description, image_url, available, created_at, updated_at`

func scanDish(row pgx.Row) (Dish, error) {
	var d Dish
	err := row.Scan(&d.ID, &d.Name, &d.Category, &d.Price, &d.Description, &d.ImageURL,
		&d.Available, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// ListDishes returns the whole catalog, available filter optional,
// sorted by name the way the menu renders.
func (q *Queries) ListDishes(ctx context.Context, onlyAvailable bool) ([]Dish, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+dishColumns+`
		FROM dishes
		WHERE available OR NOT $1
		ORDER BY name`, onlyAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Dish
	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDish fetches one dish by id.
func (q *Queries) GetDish(ctx context.Context, id int64) (Dish, error) {
	return scanDish(q.db.QueryRow(ctx, `SELECT `+dishColumns+` FROM dishes WHERE id = $1`, id))
}

// CreateDishParams are the fields for a new menu entry.
type CreateDishParams struct {
	Name        string
	Category    enum.DishCategory
	Price       pgtype.Numeric
	Description pgtype.Text
	ImageURL    pgtype.Text
	Available   bool
}

// CreateDish inserts a new dish.
func (q *Queries) CreateDish(ctx context.Context, arg CreateDishParams) (Dish, error) {
	return scanDish(q.db.QueryRow(ctx, `
		INSERT INTO dishes (name, category, price, description, image_url, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+dishColumns,
		arg.Name, arg.Category, arg.Price, arg.Description, arg.ImageURL, arg.Available))
}

// UpdateDishParams rewrite a dish in place.
type UpdateDishParams struct {
	ID          int64
	Name        string
	Category    enum.DishCategory
	Price       pgtype.Numeric
	Description pgtype.Text
	ImageURL    pgtype.Text
}

// UpdateDish updates the editable fields of a dish.
func (q *Queries) UpdateDish(ctx context.Context, arg UpdateDishParams) (Dish, error) {
	return scanDish(q.db.QueryRow(ctx, `
		UPDATE dishes
		SET name = $2, category = $3, price = $4, description = $5, image_url = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+dishColumns,
		arg.ID, arg.Name, arg.Category, arg.Price, arg.Description, arg.ImageURL))
}

// SetDishAvailabilityParams toggle a dish on or off the menu. Dishes
// are never deleted so historical line items keep their references.
type SetDishAvailabilityParams struct {
	ID        int64
	Available bool
}

// SetDishAvailability flips the availability flag.
func (q *Queries) SetDishAvailability(ctx context.Context, arg SetDishAvailabilityParams) (Dish, error) {
	return scanDish(q.db.QueryRow(ctx, `
		UPDATE dishes SET available = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+dishColumns,
		arg.ID, arg.Available))
}
