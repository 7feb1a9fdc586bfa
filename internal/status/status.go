// Package status is the single source of truth for the order and dish
// status state machine: which per-line transitions each role may make,
// how drinks skip kitchen prep, and how an order's aggregate display
// state is derived from its line items. Handlers and the board
// synchronizer call into here instead of comparing codes ad hoc.
package status

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bistro-pos/api/internal/enum"
)

var (
	// ErrInvalidStatus is returned when a transition names a status
	// outside the wire enumeration.
	ErrInvalidStatus = errors.New("invalid kitchen status")

	// ErrNotAllowed is returned when the transition itself is legal for
	// no role, or not for the requesting one.
	ErrNotAllowed = errors.New("transition not allowed")
)

// transitions maps each status to the set of statuses it may move to,
// regardless of actor. Forward steps plus one reversion edge each;
// Served is only reachable from Ready.
var transitions = map[enum.KitchenStatus][]enum.KitchenStatus{
	enum.DishInPreparation: {enum.DishReady},
	enum.DishReady:         {enum.DishInPreparation, enum.DishServed},
	enum.DishServed:        {enum.DishReady},
}

// roleEdges restricts which end of the pipeline each role works:
// cooks toggle in-preparation <-> ready, waiters toggle ready <-> served.
// Managers are not kitchen actors and may not move dishes at all.
var roleEdges = map[enum.Role][2]enum.KitchenStatus{
	enum.RoleCook:   {enum.DishInPreparation, enum.DishReady},
	enum.RoleWaiter: {enum.DishReady, enum.DishServed},
}

// Allowed validates a single line-item transition request.
func Allowed(actor enum.Role, from, to enum.KitchenStatus) error {
	if !from.Valid() || !to.Valid() {
		return ErrInvalidStatus
	}

	legal := false
	for _, next := range transitions[from] {
		if next == to {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Errorf("%w: %s -> %s", ErrNotAllowed, from.Label(), to.Label())
	}

	edge, ok := roleEdges[actor]
	if !ok {
		return fmt.Errorf("%w: role %s cannot change dish status", ErrNotAllowed, actor.Label())
	}
	if (from == edge[0] && to == edge[1]) || (from == edge[1] && to == edge[0]) {
		return nil
	}
	return fmt.Errorf("%w: role %s cannot move %s -> %s", ErrNotAllowed, actor.Label(), from.Label(), to.Label())
}

// AutoAdvance returns the status a line item should hold after the
// system's own pass: drinks never wait on kitchen prep, so a drink
// still in preparation advances to ready. The second return reports
// whether a change happened.
func AutoAdvance(category enum.DishCategory, s enum.KitchenStatus) (enum.KitchenStatus, bool) {
	if category == enum.CategoryDrink && s == enum.DishInPreparation {
		return enum.DishReady, true
	}
	return s, false
}

// Aggregate is the derived order-level display classification.
type Aggregate int

const (
	NoItems Aggregate = iota
	Accepted
	InProgress
	ReadyOrServed
	FullyServed
)

// Classify derives the aggregate classification from a set of
// line-item statuses. Total: every multiset of valid statuses maps to
// exactly one value; the empty set maps to NoItems.
func Classify(statuses []enum.KitchenStatus) Aggregate {
	if len(statuses) == 0 {
		return NoItems
	}
	inPrep, served := 0, 0
	for _, s := range statuses {
		switch s {
		case enum.DishInPreparation:
			inPrep++
		case enum.DishServed:
			served++
		}
	}
	switch {
	case inPrep == len(statuses):
		return Accepted
	case inPrep > 0:
		return InProgress
	case served == len(statuses):
		return FullyServed
	default:
		return ReadyOrServed
	}
}

func (a Aggregate) Label() string {
	switch a {
	case NoItems:
		return "no_items"
	case Accepted:
		return "accepted"
	case InProgress:
		return "in_progress"
	case ReadyOrServed:
		return "ready_or_served"
	case FullyServed:
		return "fully_served"
	}
	return "unknown"
}

// Color returns the display color token for an aggregate state. The
// mapping is total and the five tokens are distinct.
func (a Aggregate) Color() string {
	switch a {
	case NoItems:
		return "gray"
	case Accepted:
		return "yellow"
	case InProgress:
		return "orange"
	case ReadyOrServed:
		return "red"
	case FullyServed:
		return "green"
	}
	return "gray"
}

// Line is the minimal line-item view the display rules operate on.
type Line struct {
	ID       int64
	Category enum.DishCategory
	Status   enum.KitchenStatus
	Quantity int32
}

// GroupByCategory partitions lines into the four fixed display buckets
// (appetizer, main, dessert, drink), preserving input order within
// each bucket. Lines with an out-of-range category land in the drink
// bucket, matching how legacy rows rendered.
func GroupByCategory(lines []Line) [enum.NumCategories][]Line {
	var buckets [enum.NumCategories][]Line
	for _, l := range lines {
		c := l.Category
		if !c.Valid() {
			c = enum.CategoryDrink
		}
		buckets[c] = append(buckets[c], l)
	}
	return buckets
}

// SortForWaiter orders lines for front-of-house display: served first,
// then ready, then in-preparation, stable within each group. The
// waiter wants completed work confirmed up top and outstanding items
// trailing.
func SortForWaiter(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Status > out[j].Status
	})
	return out
}

// AllReady reports whether every line has at least reached Ready.
// The kitchen board treats such orders as done.
func AllReady(statuses []enum.KitchenStatus) bool {
	for _, s := range statuses {
		if s == enum.DishInPreparation {
			return false
		}
	}
	return true
}

// OrderCardRank gives the kitchen-board sort key for an order card:
// orders whose items are all ready or served rank 1 and sort after
// everything else; all other orders rank 0 and keep input order.
// Callers use it with a stable sort.
func OrderCardRank(statuses []enum.KitchenStatus) int {
	if len(statuses) > 0 && AllReady(statuses) {
		return 1
	}
	return 0
}
