package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/tabs/internal/config"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/kiwari-pos/tabs/internal/handler"
	mw "github.com/kiwari-pos/tabs/internal/middleware"
	"github.com/kiwari-pos/tabs/internal/service"
	"github.com/kiwari-pos/tabs/internal/ws"
)

// NewCore builds the service core from configuration. notifier may be nil.
func NewCore(cfg *config.Config, db service.DB, notifier service.Notifier) *service.Core {
	rules := service.ConfigRules{
		TaxRate:        cfg.TaxRate,
		PromoType:      cfg.PromoType,
		PromoValue:     cfg.PromoValue,
		PromoStartHour: cfg.PromoStartHour,
		PromoEndHour:   cfg.PromoEndHour,
		Location:       cfg.Location(),
	}
	return service.NewCore(db, rules, notifier, cfg.PaymentTimeout)
}

// New creates a Chi router with all application routes wired up.
// Every API route requires a staff token; voids and restocks are
// manager-only (enforced in the handlers' route registration).
func New(cfg *config.Config, core *service.Core, queries *database.Queries, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // POS frontend dev server
			"https://pos.kiwari.local",
		},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Station displays authenticate with ?token= since browsers cannot set
	// headers on a websocket upgrade.
	r.Get("/ws/stations/{room}", ws.Handler(hub, cfg.JWTSecret))

	orders := service.NewOrderService(core, cfg.MinVoidReason)
	tabs := service.NewTabService(core)

	tabHandler := handler.NewTabHandler(tabs)
	orderHandler := handler.NewOrderHandler(orders)
	ticketHandler := handler.NewTicketHandler(orders)
	stockHandler := handler.NewStockHandler(core.Ledger, queries)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Front of house
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleManager, enum.UserRoleCashier))
			r.Route("/tables", tabHandler.RegisterTableRoutes)
			r.Route("/tabs", tabHandler.RegisterRoutes)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})

		// Station displays and floor staff
		r.Route("/tickets", ticketHandler.RegisterRoutes)
		r.Route("/stock", stockHandler.RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}
