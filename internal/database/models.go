package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bistro-pos/api/internal/enum"
)

// Employee is a staff account. PINs are stored bcrypt-hashed.
type Employee struct {
	ID        int64
	Username  string
	FullName  string
	PinHash   string
	Role      enum.Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Table is a physical seating unit or the reserved takeaway slot.
type Table struct {
	ID       int64
	Number   int32
	Occupied bool
}

// Dish is a menu catalog entry. Availability is toggled instead of
// deleting rows so historical line items keep their references.
type Dish struct {
	ID          int64
	Name        string
	Category    enum.DishCategory
	Price       pgtype.Numeric
	Description pgtype.Text
	ImageURL    pgtype.Text
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Order is one customer check. TableID is NULL only for legacy
// takeaway rows that predate the explicit order type.
type Order struct {
	ID        int64
	TableID   pgtype.Int8
	OrderType enum.OrderType
	Status    enum.OrderStatus
	Total     pgtype.Numeric
	Note      pgtype.Text
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is one dish-and-quantity entry within an order.
type LineItem struct {
	ID            int64
	OrderID       int64
	DishID        int64
	Quantity      int32
	KitchenStatus enum.KitchenStatus
}
