// Package enum holds the numeric wire codes shared between the API,
// the database CHECK constraints, and the frontend. The values are
// load-bearing: existing rows and clients already use them, so they
// must never be renumbered.
package enum

// OrderStatus is the order-level lifecycle code (orders.status).
type OrderStatus int16

const (
	OrderAccepted      OrderStatus = 0
	OrderInPreparation OrderStatus = 1
	OrderPaid          OrderStatus = 2
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderAccepted, OrderInPreparation, OrderPaid:
		return true
	}
	return false
}

func (s OrderStatus) Label() string {
	switch s {
	case OrderAccepted:
		return "accepted"
	case OrderInPreparation:
		return "in_preparation"
	case OrderPaid:
		return "paid"
	}
	return "unknown"
}

// KitchenStatus is the per-line-item progress code
// (line_items.kitchen_status).
type KitchenStatus int16

const (
	DishInPreparation KitchenStatus = 0
	DishReady         KitchenStatus = 1
	DishServed        KitchenStatus = 2
)

// Valid reports whether s is a known kitchen status.
func (s KitchenStatus) Valid() bool {
	switch s {
	case DishInPreparation, DishReady, DishServed:
		return true
	}
	return false
}

func (s KitchenStatus) Label() string {
	switch s {
	case DishInPreparation:
		return "in_preparation"
	case DishReady:
		return "ready"
	case DishServed:
		return "served"
	}
	return "unknown"
}

// DishCategory is the menu category code (dishes.category).
type DishCategory int16

const (
	CategoryAppetizer DishCategory = 0
	CategoryMain      DishCategory = 1
	CategoryDessert   DishCategory = 2
	CategoryDrink     DishCategory = 3
)

// NumCategories is the number of fixed display buckets.
const NumCategories = 4

// Valid reports whether c is a known dish category.
func (c DishCategory) Valid() bool {
	return c >= CategoryAppetizer && c <= CategoryDrink
}

func (c DishCategory) Label() string {
	switch c {
	case CategoryAppetizer:
		return "appetizer"
	case CategoryMain:
		return "main"
	case CategoryDessert:
		return "dessert"
	case CategoryDrink:
		return "drink"
	}
	return "unknown"
}

// Role is the staff role code (employees.role).
type Role int16

const (
	RoleManager Role = 0
	RoleWaiter  Role = 1
	RoleCook    Role = 2
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleWaiter, RoleCook:
		return true
	}
	return false
}

func (r Role) Label() string {
	switch r {
	case RoleManager:
		return "manager"
	case RoleWaiter:
		return "waiter"
	case RoleCook:
		return "cook"
	}
	return "unknown"
}

// OrderType distinguishes dine-in orders from takeaway ones. Takeaway
// orders still attach to the reserved takeaway table slot for display,
// but lifecycle logic keys on the type, not the table number.
type OrderType int16

const (
	TypeDineIn   OrderType = 0
	TypeTakeaway OrderType = 1
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	return t == TypeDineIn || t == TypeTakeaway
}

func (t OrderType) Label() string {
	if t == TypeTakeaway {
		return "takeaway"
	}
	return "dine_in"
}

// TakeawayTableNumber is the table slot conventionally reserved for
// takeaway orders. Seed data creates it; existing rows reference it.
const TakeawayTableNumber = 7
