package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/status"
)

// TableStore defines the database methods needed by table handlers.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	CreateTable(ctx context.Context, number int32) (database.Table, error)
	GetLatestOrderForTable(ctx context.Context, tableID int64) (database.LatestTableOrderRow, error)
}

// TableHandler handles the floor-view endpoints.
type TableHandler struct {
	store TableStore
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore) *TableHandler {
	return &TableHandler{store: store}
}

// RegisterRoutes registers the floor view.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tables", h.List)
}

// RegisterManagerRoutes registers floor management endpoints.
func (h *TableHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/tables", h.Create)
}

// --- Request / Response types ---

type tableResponse struct {
	ID       int64  `json:"id"`
	Number   int32  `json:"number"`
	Takeaway bool   `json:"takeaway"`
	Occupied bool   `json:"occupied"`
	OrderID  *int64 `json:"order_id,omitempty"`
	Color    string `json:"color"`
}

type createTableRequest struct {
	Number int32 `json:"number"`
}

// --- Handlers ---

// List paints the floor plan: every table with its occupancy and the
// color of its newest order. A table that never had an order, or whose
// last order is paid and gone, shows gray.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	out := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp := tableResponse{
			ID:       t.ID,
			Number:   t.Number,
			Takeaway: t.Number == enum.TakeawayTableNumber,
			Occupied: t.Occupied,
			Color:    status.NoItems.Color(),
		}

		latest, err := h.store.GetLatestOrderForTable(r.Context(), t.ID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// never ordered
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		case latest.Status != enum.OrderPaid:
			statuses := make([]enum.KitchenStatus, len(latest.ItemStatuses))
			for j, s := range latest.ItemStatuses {
				statuses[j] = enum.KitchenStatus(s)
			}
			resp.OrderID = &latest.OrderID
			resp.Color = status.Classify(statuses).Color()
		}
		out[i] = resp
	}
	writeJSON(w, http.StatusOK, out)
}

// Create adds a table to the floor plan.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Number <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number must be > 0"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), req.Number)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, tableResponse{
		ID:       table.ID,
		Number:   table.Number,
		Takeaway: table.Number == enum.TakeawayTableNumber,
		Occupied: table.Occupied,
		Color:    status.NoItems.Color(),
	})
}
