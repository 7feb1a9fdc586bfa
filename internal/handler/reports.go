package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bistro-pos/api/internal/database"
)

// ReportStore defines the database methods needed by report handlers.
type ReportStore interface {
	DishPopularity(ctx context.Context, arg database.ReportRangeParams) ([]database.DishPopularityRow, error)
	Revenue(ctx context.Context, arg database.ReportRangeParams) (database.RevenueRow, error)
}

// ReportHandler handles the manager reporting endpoints.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterManagerRoutes registers report endpoints.
func (h *ReportHandler) RegisterManagerRoutes(r chi.Router) {
	r.Get("/reports/dish-popularity", h.DishPopularity)
	r.Get("/reports/revenue", h.Revenue)
}

// --- Response types ---

type dishPopularityResponse struct {
	DishID   int64  `json:"dish_id"`
	Name     string `json:"name"`
	Category int16  `json:"category"`
	Count    int64  `json:"count"`
}

type revenueResponse struct {
	Total      string `json:"total"`
	OrderCount int64  `json:"order_count"`
}

// --- Handlers ---

// DishPopularity reports units sold per dish over paid orders.
// Optional ?from= and ?to= bounds accept RFC 3339 timestamps or plain
// dates.
func (h *ReportHandler) DishPopularity(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseReportRange(w, r)
	if !ok {
		return
	}

	rows, err := h.store.DishPopularity(r.Context(), rng)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	out := make([]dishPopularityResponse, len(rows))
	for i, row := range rows {
		out[i] = dishPopularityResponse{
			DishID:   row.DishID,
			Name:     row.Name,
			Category: int16(row.Category),
			Count:    row.Count,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Revenue reports the paid-order revenue total for the range.
func (h *ReportHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseReportRange(w, r)
	if !ok {
		return
	}

	row, err := h.store.Revenue(r.Context(), rng)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, revenueResponse{
		Total:      database.NumericToDecimal(row.Total).StringFixed(2),
		OrderCount: row.OrderCount,
	})
}

// --- Helpers ---

// parseReportRange reads the optional from/to query bounds. On a bad
// timestamp it writes the 400 itself and returns ok=false.
func parseReportRange(w http.ResponseWriter, r *http.Request) (database.ReportRangeParams, bool) {
	var rng database.ReportRangeParams

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := parseTimestamp(from)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from timestamp"})
			return rng, false
		}
		rng.Start = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := parseTimestamp(to)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to timestamp"})
			return rng, false
		}
		rng.End = pgtype.Timestamptz{Time: t, Valid: true}
	}
	return rng, true
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
