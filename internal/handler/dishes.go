package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
)

// DishStore defines the database methods needed by dish handlers.
type DishStore interface {
	ListDishes(ctx context.Context, onlyAvailable bool) ([]database.Dish, error)
	GetDish(ctx context.Context, id int64) (database.Dish, error)
	CreateDish(ctx context.Context, arg database.CreateDishParams) (database.Dish, error)
	UpdateDish(ctx context.Context, arg database.UpdateDishParams) (database.Dish, error)
	SetDishAvailability(ctx context.Context, arg database.SetDishAvailabilityParams) (database.Dish, error)
}

// DishHandler handles the menu catalog endpoints.
type DishHandler struct {
	store DishStore
}

// NewDishHandler creates a new DishHandler.
func NewDishHandler(store DishStore) *DishHandler {
	return &DishHandler{store: store}
}

// RegisterRoutes registers the read endpoints every role may use.
func (h *DishHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dishes", h.List)
	r.Get("/dishes/{id}", h.Get)
}

// RegisterManagerRoutes registers the catalog management endpoints.
func (h *DishHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/dishes", h.Create)
	r.Put("/dishes/{id}", h.Update)
	r.Patch("/dishes/{id}/availability", h.SetAvailability)
}

// --- Request / Response types ---

type dishRequest struct {
	Name        string `json:"name"`
	Category    int16  `json:"category"`
	Price       string `json:"price"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Available   *bool  `json:"available"`
}

type dishResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    int16     `json:"category"`
	Price       string    `json:"price"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

type setAvailabilityRequest struct {
	Available bool `json:"available"`
}

// --- Handlers ---

// List returns the catalog. ?available=true narrows to orderable
// dishes, which is what the cart view requests.
func (h *DishHandler) List(w http.ResponseWriter, r *http.Request) {
	onlyAvailable := r.URL.Query().Get("available") == "true"

	dishes, err := h.store.ListDishes(r.Context(), onlyAvailable)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	out := make([]dishResponse, len(dishes))
	for i, d := range dishes {
		out[i] = toDishResponse(d)
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one dish by id.
func (h *DishHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dish id"})
		return
	}

	dish, err := h.store.GetDish(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toDishResponse(dish))
}

// Create adds a dish to the catalog.
func (h *DishHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, errMsg := validateDishRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	params.Available = available

	dish, err := h.store.CreateDish(r.Context(), params)
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "dish name already exists"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toDishResponse(dish))
}

// Update rewrites a dish's editable fields.
func (h *DishHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dish id"})
		return
	}

	var req dishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, errMsg := validateDishRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	dish, err := h.store.UpdateDish(r.Context(), database.UpdateDishParams{
		ID:          id,
		Name:        params.Name,
		Category:    params.Category,
		Price:       params.Price,
		Description: params.Description,
		ImageURL:    params.ImageURL,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toDishResponse(dish))
}

// SetAvailability toggles a dish on or off the menu.
func (h *DishHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dish id"})
		return
	}

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	dish, err := h.store.SetDishAvailability(r.Context(), database.SetDishAvailabilityParams{
		ID:        id,
		Available: req.Available,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toDishResponse(dish))
}

// --- Helpers ---

func validateDishRequest(req dishRequest) (database.CreateDishParams, string) {
	var params database.CreateDishParams

	if req.Name == "" {
		return params, "name is required"
	}
	category := enum.DishCategory(req.Category)
	if !category.Valid() {
		return params, "invalid category"
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return params, "invalid price"
	}

	params.Name = req.Name
	params.Category = category
	params.Price = database.DecimalToNumeric(price)
	if req.Description != "" {
		params.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.ImageURL != "" {
		params.ImageURL = pgtype.Text{String: req.ImageURL, Valid: true}
	}
	return params, ""
}

func toDishResponse(d database.Dish) dishResponse {
	return dishResponse{
		ID:          d.ID,
		Name:        d.Name,
		Category:    int16(d.Category),
		Price:       database.NumericToDecimal(d.Price).StringFixed(2),
		Description: d.Description.String,
		ImageURL:    d.ImageURL.String,
		Available:   d.Available,
		CreatedAt:   d.CreatedAt,
	}
}
