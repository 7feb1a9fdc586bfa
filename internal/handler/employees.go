package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
)

// EmployeeStore defines the database methods needed by staff handlers.
type EmployeeStore interface {
	ListEmployees(ctx context.Context) ([]database.Employee, error)
	CreateEmployee(ctx context.Context, arg database.CreateEmployeeParams) (database.Employee, error)
	UpdateEmployee(ctx context.Context, arg database.UpdateEmployeeParams) (database.Employee, error)
	DeactivateEmployee(ctx context.Context, id int64) (int64, error)
}

// EmployeeHandler handles staff account management. All routes are
// manager-only.
type EmployeeHandler struct {
	store EmployeeStore
}

// NewEmployeeHandler creates a new EmployeeHandler.
func NewEmployeeHandler(store EmployeeStore) *EmployeeHandler {
	return &EmployeeHandler{store: store}
}

// RegisterManagerRoutes registers staff endpoints.
func (h *EmployeeHandler) RegisterManagerRoutes(r chi.Router) {
	r.Get("/employees", h.List)
	r.Post("/employees", h.Create)
	r.Put("/employees/{id}", h.Update)
	r.Delete("/employees/{id}", h.Deactivate)
}

// --- Request / Response types ---

type employeeRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Pin      string `json:"pin"`
	Role     int16  `json:"role"`
}

type staffResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     int16  `json:"role"`
}

// --- Handlers ---

// List returns every active staff account.
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	employees, err := h.store.ListEmployees(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	out := make([]staffResponse, len(employees))
	for i, e := range employees {
		out[i] = toStaffResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// Create adds a staff account. The PIN is bcrypt-hashed before it
// touches the database.
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Username == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and full_name are required"})
		return
	}
	if len(req.Pin) < 4 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pin must be at least 4 characters"})
		return
	}
	role := enum.Role(req.Role)
	if !role.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	emp, err := h.store.CreateEmployee(r.Context(), database.CreateEmployeeParams{
		Username: req.Username,
		FullName: req.FullName,
		PinHash:  string(hash),
		Role:     role,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "username already taken"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toStaffResponse(emp))
}

// Update rewrites an account. An empty pin keeps the current one.
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid employee id"})
		return
	}

	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Username == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and full_name are required"})
		return
	}
	role := enum.Role(req.Role)
	if !role.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	pinHash := ""
	if req.Pin != "" {
		if len(req.Pin) < 4 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pin must be at least 4 characters"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		pinHash = string(hash)
	}

	emp, err := h.store.UpdateEmployee(r.Context(), database.UpdateEmployeeParams{
		ID:       id,
		Username: req.Username,
		FullName: req.FullName,
		PinHash:  pinHash,
		Role:     role,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "employee not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "username already taken"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(emp))
}

// Deactivate soft-deletes a staff account.
func (h *EmployeeHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid employee id"})
		return
	}

	if _, err := h.store.DeactivateEmployee(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "employee not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func toStaffResponse(e database.Employee) staffResponse {
	return staffResponse{
		ID:       e.ID,
		Username: e.Username,
		FullName: e.FullName,
		Role:     int16(e.Role),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
