package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bistro-pos/api/internal/board"
	"github.com/bistro-pos/api/internal/config"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/handler"
	mw "github.com/bistro-pos/api/internal/middleware"
	"github.com/bistro-pos/api/internal/service"
	"github.com/bistro-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, svc *service.OrderService, sync *board.Synchronizer, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/feed", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler := handler.NewOrderHandler(svc, sync)
		orderHandler.RegisterRoutes(r)

		dishHandler := handler.NewDishHandler(queries)
		dishHandler.RegisterRoutes(r)

		tableHandler := handler.NewTableHandler(queries)
		tableHandler.RegisterRoutes(r)

		// Manager-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleManager))

			dishHandler.RegisterManagerRoutes(r)
			tableHandler.RegisterManagerRoutes(r)

			employeeHandler := handler.NewEmployeeHandler(queries)
			employeeHandler.RegisterManagerRoutes(r)

			reportHandler := handler.NewReportHandler(queries)
			reportHandler.RegisterManagerRoutes(r)
		})
	})

	return r
}
