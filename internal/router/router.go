package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oficinapro/api/internal/config"
	"github.com/oficinapro/api/internal/database"
	"github.com/oficinapro/api/internal/enum"
	"github.com/oficinapro/api/internal/handler"
	mw "github.com/oficinapro/api/internal/middleware"
	"github.com/oficinapro/api/internal/service"
	"github.com/oficinapro/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",            // Vite dev server
			"https://app.oficinapro.com.br",    // Production frontend
			"https://stg.oficinapro.com.br",    // Staging frontend
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders/{oid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderService := service.NewOrders(pool, func(tx pgx.Tx) service.OrderStore {
			return queries.WithTx(tx)
		})
		orderHandler := handler.NewOrderHandler(orderService, queries)

		budgets := service.NewBudgetRegistry(queries, ws.NewToaster(hub), ws.NewChangeFeed(hub))
		itemsHandler := handler.NewItemsHandler(budgets)

		r.Route("/orders", func(r chi.Router) {
			// Reads are open to every authenticated role.
			orderHandler.RegisterRoutes(r)

			// Opening orders and moving them across the kanban is front-desk work.
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleAttendant))
				orderHandler.RegisterStaffRoutes(r)
			})

			// Budget items (nested under orders)
			r.Route("/{oid}/items", func(r chi.Router) {
				itemsHandler.RegisterRoutes(r)

				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleAttendant, enum.UserRoleMechanic))
					itemsHandler.RegisterStaffRoutes(r)
				})

				// CLIENTE decides on their own quote.
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleAttendant, enum.UserRoleClient))
					itemsHandler.RegisterDecisionRoutes(r)
				})
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
