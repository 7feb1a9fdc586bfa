// Package board keeps an in-memory view of the active orders, kept in
// sync with the database through the change feed. Dashboards read from
// this view instead of hitting the database on every poll.
package board

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/status"
	"github.com/bistro-pos/api/internal/ws"
)

var (
	ErrNotSubscribed = errors.New("board: not subscribed to change feed")
	ErrOrderNotFound = errors.New("board: order not in active view")
	ErrItemNotFound  = errors.New("board: line item not in active view")
)

// Item is one dish position of an active order.
type Item struct {
	ID        int64
	DishID    int64
	Name      string
	Category  enum.DishCategory
	Quantity  int32
	UnitPrice decimal.Decimal
	Status    enum.KitchenStatus
}

// Order is one active order as held by the view.
type Order struct {
	ID          int64
	TableNumber *int32
	OrderType   enum.OrderType
	Status      enum.OrderStatus
	Note        string
	Total       decimal.Decimal
	CreatedAt   time.Time
	Items       []Item
}

// OrderView is an Order plus the derived classification served to
// dashboards.
type OrderView struct {
	Order
	Aggregate status.Aggregate
	Color     string
}

// Loader fetches the complete active-order set from persistence.
// The synchronizer replaces its whole view with whatever the loader
// returns.
type Loader interface {
	ActiveOrders(ctx context.Context) ([]Order, error)
}

// Feed is the change-feed side the synchronizer subscribes to.
type Feed interface {
	SubscribeLocal(channel string, fn func(ws.Event)) func()
}

// SubscriptionState tracks the feed connection lifecycle. There is no
// automatic resubscribe: once in StateError, a caller must Start again.
type SubscriptionState int

const (
	StateDisconnected SubscriptionState = iota
	StateSubscribing
	StateSubscribed
	StateError
)

func (s SubscriptionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Tables whose changes affect the active-order view. Any event on one
// of these triggers a full reload.
var watchedTables = map[string]bool{
	"orders":     true,
	"line_items": true,
	"tables":     true,
}

// Synchronizer holds the active-order view and reconciles it against
// the change feed. All methods are safe for concurrent use.
type Synchronizer struct {
	loader Loader
	log    *zap.SugaredLogger

	mu     sync.RWMutex
	orders map[int64]*Order
	state  SubscriptionState
	cancel func()

	// Monotonic load sequence. A slow load that finishes after a newer
	// one must not clobber the newer snapshot.
	loadSeq  uint64
	applySeq uint64
}

func NewSynchronizer(loader Loader, log *zap.SugaredLogger) *Synchronizer {
	return &Synchronizer{
		loader: loader,
		log:    log,
		orders: make(map[int64]*Order),
		state:  StateDisconnected,
	}
}

// State reports the current feed subscription state.
func (s *Synchronizer) State() SubscriptionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start subscribes to the change feed and performs the initial load.
// If the load fails the subscription is torn down, the view stays
// empty and the caller decides whether to try again.
func (s *Synchronizer) Start(ctx context.Context, feed Feed) error {
	s.mu.Lock()
	if s.state == StateSubscribing || s.state == StateSubscribed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateSubscribing
	s.mu.Unlock()

	cancel := feed.SubscribeLocal(ws.FeedChannel, func(ev ws.Event) {
		s.OnEvent(context.Background(), ev)
	})

	s.mu.Lock()
	s.cancel = cancel
	s.state = StateSubscribed
	s.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		s.Stop()
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		return err
	}
	return nil
}

// Stop cancels the feed subscription. The view keeps its last snapshot
// but no longer tracks changes.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// OnEvent handles one change-feed notification. Events on watched
// tables trigger a full reload; everything else is ignored.
func (s *Synchronizer) OnEvent(ctx context.Context, ev ws.Event) {
	if !watchedTables[ev.Table] {
		s.log.Debugw("ignoring change event", "table", ev.Table, "type", ev.Type)
		return
	}
	if err := s.Load(ctx); err != nil {
		s.log.Errorw("reload after change event failed", "table", ev.Table, "error", err)
	}
}

// Load replaces the whole view with the loader's current active-order
// set. On failure the view is cleared rather than left stale. When
// loads overlap, only the most recently started one may install its
// result.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()

	orders, err := s.loader.ActiveOrders(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applySeq {
		// A newer load already finished.
		return nil
	}
	s.applySeq = seq

	if err != nil {
		s.orders = make(map[int64]*Order)
		return err
	}

	next := make(map[int64]*Order, len(orders))
	for i := range orders {
		o := orders[i]
		next[o.ID] = &o
	}
	s.orders = next
	return nil
}

// ApplyItemStatus optimistically moves a line item to a new kitchen
// status: the in-memory view changes first, then persist runs. If
// persist fails, the view is reloaded from the loader and the error
// returned. When the change moves an item out of preparation on an
// accepted order, the order is promoted to in-preparation as well.
func (s *Synchronizer) ApplyItemStatus(ctx context.Context, orderID, itemID int64, to enum.KitchenStatus, persist func(context.Context) error) error {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return ErrOrderNotFound
	}
	idx := -1
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	o.Items[idx].Status = to
	if o.Status == enum.OrderAccepted && to != enum.DishInPreparation {
		o.Status = enum.OrderInPreparation
	}
	s.mu.Unlock()

	if err := persist(ctx); err != nil {
		if lerr := s.Load(ctx); lerr != nil {
			s.log.Errorw("reload after failed persist", "order_id", orderID, "error", lerr)
		}
		return err
	}
	return nil
}

// Snapshot returns a deep copy of the view with derived aggregate and
// color per order, sorted by order id.
func (s *Synchronizer) Snapshot() []OrderView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OrderView, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, viewOf(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// KitchenSnapshot is Snapshot ordered for the kitchen board: orders
// with every item at least ready move to the back, otherwise oldest
// first.
func (s *Synchronizer) KitchenSnapshot() []OrderView {
	out := s.Snapshot()
	sort.SliceStable(out, func(i, j int) bool {
		return rankOf(out[i]) < rankOf(out[j])
	})
	return out
}

// Get returns a deep copy of one active order.
func (s *Synchronizer) Get(orderID int64) (OrderView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return OrderView{}, false
	}
	return viewOf(o), true
}

func rankOf(v OrderView) int {
	statuses := make([]enum.KitchenStatus, len(v.Items))
	for i, it := range v.Items {
		statuses[i] = it.Status
	}
	return status.OrderCardRank(statuses)
}

func viewOf(o *Order) OrderView {
	cp := *o
	cp.Items = make([]Item, len(o.Items))
	copy(cp.Items, o.Items)
	if o.TableNumber != nil {
		n := *o.TableNumber
		cp.TableNumber = &n
	}

	statuses := make([]enum.KitchenStatus, len(o.Items))
	for i, it := range o.Items {
		statuses[i] = it.Status
	}
	agg := status.Classify(statuses)
	return OrderView{Order: cp, Aggregate: agg, Color: agg.Color()}
}
