package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"lpg-service/internal/api/handlers"
	"lpg-service/internal/logging"
	"lpg-service/internal/realtime"
	"lpg-service/internal/service"
)

type Deps struct {
	Auth          *service.AuthService
	Drafts        *service.SignupDrafts
	Catalog       *service.CatalogService
	Cart          *service.CartLedger
	Orders        *service.OrderCoordinator
	Chat          *service.ChatRelay
	Locations     *service.LocationService
	Hub           *realtime.Hub
	MaxImageBytes int64
	Checks        map[string]handlers.Pinger
	Logger        *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(d.Logger))
	r.Use(middleware.Recoverer)

	authH := handlers.NewAuthHandler(d.Auth, d.Drafts, d.Logger)
	productH := handlers.NewProductHandler(d.Catalog, d.MaxImageBytes, d.Logger)
	cartH := handlers.NewCartHandler(d.Cart, d.Logger)
	orderH := handlers.NewOrderHandler(d.Orders, d.Locations, d.Logger)
	chatH := handlers.NewChatHandler(d.Chat, d.Logger)
	adminH := handlers.NewAdminHandler(d.Orders, d.Catalog, d.Logger)
	streamH := handlers.NewStreamHandler(d.Hub, 0, d.Logger)

	requireAuth := handlers.RequireAuth(d.Auth, d.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health(d.Checks))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authH.Login)
			r.Post("/register", authH.Register)
			r.With(requireAuth).Post("/logout", authH.Logout)
			r.With(requireAuth).Get("/me", authH.Me)

			r.Post("/signup/drafts", authH.BeginSignup)
			r.Put("/signup/drafts/{id}/profile", authH.SetSignupProfile)
			r.Post("/signup/drafts/{id}/complete", authH.CompleteSignup)
			r.Delete("/signup/drafts/{id}", authH.ResetSignup)
		})

		r.Route("/products", func(r chi.Router) {
			r.With(handlers.OptionalAuth(d.Auth)).Get("/", productH.List)
			r.With(handlers.OptionalAuth(d.Auth)).Get("/{id}", productH.GetByID)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, handlers.RequireAdmin)
				r.Post("/", productH.Create)
				r.Put("/{id}", productH.Update)
				r.Delete("/{id}", productH.Delete)
				r.Post("/{id}/stock", productH.AdjustStock)
				r.Get("/{id}/stock", productH.StockLedger)
				r.Post("/{id}/image", productH.UploadImage)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartH.List)
				r.Delete("/", cartH.Clear)
				r.Post("/lines", cartH.AddLine)
				r.Put("/lines/{id}", cartH.EditLine)
				r.Delete("/lines/{id}", cartH.RemoveLine)
				r.Post("/selection-total", cartH.SelectionTotal)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orderH.Submit)
				r.Get("/", orderH.List)
				r.Delete("/", orderH.DeleteHistory)
				r.Get("/{id}", orderH.GetByID)
				r.Post("/{id}/cancel", orderH.Cancel)
				r.Get("/{id}/locations", orderH.Locations)
				r.With(handlers.RequireAdmin).Post("/{id}/locations", orderH.RecordLocation)
			})

			r.Route("/chat/{conversation}", func(r chi.Router) {
				r.Get("/messages", chatH.List)
				r.Post("/messages", chatH.Send)
				r.Post("/read", chatH.MarkRead)
			})

			r.Get("/stream", streamH.Stream)

			r.Route("/admin", func(r chi.Router) {
				r.Use(handlers.RequireAdmin)
				r.Get("/orders", adminH.Orders)
				r.Put("/orders/{id}/status", adminH.UpdateStatus)
				r.Get("/conversations", chatH.Conversations)
				r.Put("/messages/{seq}", chatH.Edit)
				r.Delete("/messages/{seq}", chatH.Delete)
				r.Get("/messages/{seq}/revisions", chatH.Revisions)
				r.Get("/dashboard", adminH.Dashboard)
				r.Get("/stock-alerts", adminH.StockAlerts)
				r.Post("/stock-alerts/{id}/resolve", adminH.ResolveAlert)
			})
		})
	})

	return r
}
