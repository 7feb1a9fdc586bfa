package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bistro-pos/api/internal/auth"
	"github.com/bistro-pos/api/internal/board"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/handler"
	"github.com/bistro-pos/api/internal/middleware"
	"github.com/bistro-pos/api/internal/service"
	"github.com/bistro-pos/api/internal/status"
)

// --- Mocks ---

type mockOrderService struct {
	saveCartFn  func(ctx context.Context, req service.SaveCartRequest) (*service.SaveCartResult, error)
	setStatusFn func(ctx context.Context, actor enum.Role, itemID int64, to enum.KitchenStatus) (database.LineItem, error)
	payFn       func(ctx context.Context, orderID int64) (database.Order, error)
}

func (m *mockOrderService) SaveCart(ctx context.Context, req service.SaveCartRequest) (*service.SaveCartResult, error) {
	return m.saveCartFn(ctx, req)
}
func (m *mockOrderService) SetLineItemStatus(ctx context.Context, actor enum.Role, itemID int64, to enum.KitchenStatus) (database.LineItem, error) {
	return m.setStatusFn(ctx, actor, itemID, to)
}
func (m *mockOrderService) Pay(ctx context.Context, orderID int64) (database.Order, error) {
	return m.payFn(ctx, orderID)
}

type mockOrderBoard struct {
	views      []board.OrderView
	applyCalls int
	applyErr   error
}

func (m *mockOrderBoard) Snapshot() []board.OrderView        { return m.views }
func (m *mockOrderBoard) KitchenSnapshot() []board.OrderView { return m.views }
func (m *mockOrderBoard) Get(orderID int64) (board.OrderView, bool) {
	for _, v := range m.views {
		if v.ID == orderID {
			return v, true
		}
	}
	return board.OrderView{}, false
}
func (m *mockOrderBoard) ApplyItemStatus(ctx context.Context, orderID, itemID int64, to enum.KitchenStatus, persist func(context.Context) error) error {
	m.applyCalls++
	if m.applyErr != nil {
		return m.applyErr
	}
	return persist(ctx)
}

// --- Helpers ---

func intPtr(n int32) *int32 { return &n }

func boardViews() []board.OrderView {
	items := []board.Item{
		{ID: 10, DishID: 1, Name: "Tomato Soup", Category: enum.CategoryAppetizer, Quantity: 1, UnitPrice: decimal.RequireFromString("12.00"), Status: enum.DishServed},
		{ID: 11, DishID: 3, Name: "Lemonade", Category: enum.CategoryDrink, Quantity: 2, UnitPrice: decimal.RequireFromString("6.00"), Status: enum.DishReady},
		{ID: 12, DishID: 2, Name: "Schnitzel", Category: enum.CategoryMain, Quantity: 1, UnitPrice: decimal.RequireFromString("31.00"), Status: enum.DishInPreparation},
	}
	agg := status.InProgress
	return []board.OrderView{{
		Order: board.Order{
			ID:          500,
			TableNumber: intPtr(3),
			OrderType:   enum.TypeDineIn,
			Status:      enum.OrderInPreparation,
			Total:       decimal.RequireFromString("55.00"),
			CreatedAt:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			Items:       items,
		},
		Aggregate: agg,
		Color:     agg.Color(),
	}}
}

func setupOrderRouter(svc *mockOrderService, b *mockOrderBoard) *chi.Mux {
	h := handler.NewOrderHandler(svc, b)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		h.RegisterRoutes(r)
	})
	return r
}

func authedRequest(t *testing.T, method, target, body string, role enum.Role) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken(testJWTSecret, 1, "staff", role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// --- Tests ---

func TestListActive_DerivedFields(t *testing.T) {
	r := setupOrderRouter(&mockOrderService{}, &mockOrderBoard{views: boardViews()})

	req := authedRequest(t, http.MethodGet, "/orders/active", "", enum.RoleWaiter)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rr.Code, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("orders = %d, want 1", len(resp))
	}
	o := resp[0]
	if o["aggregate"] != "in_progress" || o["color"] != "orange" {
		t.Errorf("aggregate=%v color=%v", o["aggregate"], o["color"])
	}
	if o["total"] != "55.00" {
		t.Errorf("total = %v", o["total"])
	}
	if o["table_number"] != float64(3) {
		t.Errorf("table_number = %v", o["table_number"])
	}
}

func TestListActive_WaiterViewSortsServedFirst(t *testing.T) {
	r := setupOrderRouter(&mockOrderService{}, &mockOrderBoard{views: boardViews()})

	req := authedRequest(t, http.MethodGet, "/orders/active?view=waiter", "", enum.RoleWaiter)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var resp []struct {
		Items []struct {
			ID     int64 `json:"id"`
			Status int16 `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := []int64{resp[0].Items[0].ID, resp[0].Items[1].ID, resp[0].Items[2].ID}
	// served soup, ready lemonade, in-prep schnitzel
	want := []int64{10, 11, 12}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item order = %v, want %v", got, want)
		}
	}
}

func TestListActive_KitchenViewGroupsByCategory(t *testing.T) {
	r := setupOrderRouter(&mockOrderService{}, &mockOrderBoard{views: boardViews()})

	req := authedRequest(t, http.MethodGet, "/orders/active?view=kitchen", "", enum.RoleCook)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var resp []struct {
		Items []struct {
			ID       int64 `json:"id"`
			Category int16 `json:"category"`
		} `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// appetizer, main, drink bucket order
	got := []int64{resp[0].Items[0].ID, resp[0].Items[1].ID, resp[0].Items[2].ID}
	want := []int64{10, 12, 11}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item order = %v, want %v", got, want)
		}
	}
}

func TestGetOrder(t *testing.T) {
	r := setupOrderRouter(&mockOrderService{}, &mockOrderBoard{views: boardViews()})

	req := authedRequest(t, http.MethodGet, "/orders/500", "", enum.RoleWaiter)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	req = authedRequest(t, http.MethodGet, "/orders/999", "", enum.RoleWaiter)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestCreateOrder(t *testing.T) {
	svc := &mockOrderService{
		saveCartFn: func(ctx context.Context, req service.SaveCartRequest) (*service.SaveCartResult, error) {
			if req.OrderID != 0 || req.TableNumber != 3 || len(req.Items) != 1 {
				t.Errorf("unexpected request: %+v", req)
			}
			return &service.SaveCartResult{
				Order:   database.Order{ID: 500, Status: enum.OrderAccepted},
				Items:   []database.LineItem{{ID: 10, OrderID: 500, DishID: 1, Quantity: 2}},
				Created: true,
			}, nil
		},
	}
	r := setupOrderRouter(svc, &mockOrderBoard{})

	body := `{"table_number":3,"items":[{"dish_id":1,"quantity":2}]}`
	req := authedRequest(t, http.MethodPost, "/orders", body, enum.RoleWaiter)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"empty cart", service.ErrEmptyCart, http.StatusBadRequest},
		{"unknown dish", service.ErrDishNotFound, http.StatusNotFound},
		{"unavailable dish", service.ErrDishUnavailable, http.StatusConflict},
		{"unknown table", service.ErrTableNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockOrderService{
				saveCartFn: func(ctx context.Context, req service.SaveCartRequest) (*service.SaveCartResult, error) {
					return nil, tc.err
				},
			}
			r := setupOrderRouter(svc, &mockOrderBoard{})

			body := `{"table_number":3,"items":[]}`
			req := authedRequest(t, http.MethodPost, "/orders", body, enum.RoleWaiter)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestUpdateCart(t *testing.T) {
	svc := &mockOrderService{
		saveCartFn: func(ctx context.Context, req service.SaveCartRequest) (*service.SaveCartResult, error) {
			if req.OrderID != 500 {
				t.Errorf("order id = %d, want 500", req.OrderID)
			}
			return &service.SaveCartResult{Order: database.Order{ID: 500}}, nil
		},
	}
	r := setupOrderRouter(svc, &mockOrderBoard{})

	body := `{"items":[{"dish_id":1,"quantity":1}]}`
	req := authedRequest(t, http.MethodPut, "/orders/500/cart", body, enum.RoleWaiter)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
}

func TestSetItemStatus_OptimisticPath(t *testing.T) {
	svc := &mockOrderService{
		setStatusFn: func(ctx context.Context, actor enum.Role, itemID int64, to enum.KitchenStatus) (database.LineItem, error) {
			if actor != enum.RoleCook {
				t.Errorf("actor = %d, want cook", actor)
			}
			return database.LineItem{ID: itemID, OrderID: 500, DishID: 2, Quantity: 1, KitchenStatus: to}, nil
		},
	}
	b := &mockOrderBoard{views: boardViews()}
	r := setupOrderRouter(svc, b)

	// Item 12 is in the active view, so the board's optimistic path runs.
	req := authedRequest(t, http.MethodPatch, "/line-items/12/status", `{"status":1}`, enum.RoleCook)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
	if b.applyCalls != 1 {
		t.Errorf("board apply calls = %d, want 1", b.applyCalls)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["kitchen_status"] != float64(1) {
		t.Errorf("kitchen_status = %v, want 1", resp["kitchen_status"])
	}
}

func TestSetItemStatus_ForbiddenTransition(t *testing.T) {
	svc := &mockOrderService{
		setStatusFn: func(ctx context.Context, actor enum.Role, itemID int64, to enum.KitchenStatus) (database.LineItem, error) {
			return database.LineItem{}, status.ErrNotAllowed
		},
	}
	r := setupOrderRouter(svc, &mockOrderBoard{views: boardViews()})

	req := authedRequest(t, http.MethodPatch, "/line-items/12/status", `{"status":2}`, enum.RoleManager)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestSetItemStatus_InvalidStatusCode(t *testing.T) {
	r := setupOrderRouter(&mockOrderService{}, &mockOrderBoard{})

	req := authedRequest(t, http.MethodPatch, "/line-items/12/status", `{"status":7}`, enum.RoleCook)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSetItemStatus_RequiresAuth(t *testing.T) {
	r := setupOrderRouter(&mockOrderService{}, &mockOrderBoard{})

	req := httptest.NewRequest(http.MethodPatch, "/line-items/12/status", strings.NewReader(`{"status":1}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestPay(t *testing.T) {
	svc := &mockOrderService{
		payFn: func(ctx context.Context, orderID int64) (database.Order, error) {
			return database.Order{ID: orderID, Status: enum.OrderPaid}, nil
		},
	}
	r := setupOrderRouter(svc, &mockOrderBoard{})

	req := authedRequest(t, http.MethodPost, "/orders/500/pay", "", enum.RoleWaiter)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
}

func TestPay_NotAllServed(t *testing.T) {
	svc := &mockOrderService{
		payFn: func(ctx context.Context, orderID int64) (database.Order, error) {
			return database.Order{}, service.ErrNotAllServed
		},
	}
	r := setupOrderRouter(svc, &mockOrderBoard{})

	req := authedRequest(t, http.MethodPost, "/orders/500/pay", "", enum.RoleWaiter)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}
