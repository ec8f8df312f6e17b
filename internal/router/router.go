// Package router wires every handler onto the chi router with auth, role,
// and CORS middleware.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/config"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/handler"
	mw "github.com/nourishbox/api/internal/middleware"
	"github.com/nourishbox/api/internal/repository"
	"github.com/nourishbox/api/internal/service"
	"github.com/nourishbox/api/internal/ws"
)

// Deps carries the constructed services and infrastructure the routes
// need. Built once in main.
type Deps struct {
	Config   *config.Config
	Repo     *repository.Postgres
	Resolver *clock.Resolver
	Orders   *service.OrderService
	Invoices *service.InvoiceService
	Payments *service.PaymentService
	Recs     *service.RecommendService
	Hub      *ws.Hub
	Logger   *zap.SugaredLogger
}

// New creates the Chi router with all application routes wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.Config.FrontendURL, "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(d.Repo, d.Config.JWTSecret, d.Logger)
	r.Route("/auth", authHandler.RegisterRoutes)

	// Provider webhook: authenticated by HMAC signature, not JWT.
	paymentHandler := handler.NewPaymentHandler(d.Payments, d.Logger)
	paymentHandler.RegisterWebhook(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/companies/{cid}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, d.Config.JWTSecret, w, r)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(d.Config.JWTSecret))

		mealHandler := handler.NewMealHandler(d.Repo, d.Logger)
		r.Route("/meals", func(r chi.Router) {
			mealHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleAdmin))
				mealHandler.RegisterAdminRoutes(r)
			})
		})

		profileHandler := handler.NewProfileHandler(d.Repo, d.Recs, d.Logger)
		r.Route("/profile", profileHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(d.Orders, d.Resolver, d.Logger)
		r.Route("/orders", orderHandler.RegisterRoutes)

		recHandler := handler.NewRecommendHandler(d.Recs)
		r.Route("/recommendations", recHandler.RegisterRoutes)

		invoiceHandler := handler.NewInvoiceHandler(d.Invoices, d.Logger)
		r.Route("/invoices", func(r chi.Router) {
			invoiceHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleAdmin))
				invoiceHandler.RegisterAdminRoutes(r)
			})
		})

		r.Route("/payments", paymentHandler.RegisterRoutes)
	})

	return r
}
