package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"balancebook/internal/shared/config"
	"balancebook/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedHosts))

	if cfg.TLS.Enabled {
		r.Use(middleware.HSTS, middleware.SecureCookies)
		slog.Info("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	r.Get("/health", deps.HealthHandler.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		// Server-to-server; authenticated by the Plaid-Verification JWT.
		r.Post("/webhooks/plaid", deps.WebhookHandler.HandlePlaid)

		r.Post("/auth/register", deps.AuthHandler.HandleRegister)
		r.Post("/auth/login", deps.AuthHandler.HandleLogin)
		r.Post("/auth/logout", deps.AuthHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.JWT))

			r.Get("/users/me", deps.UserHandler.HandleGetMe)
			r.Patch("/users/me", deps.UserHandler.HandleUpdateMe)

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", deps.AccountHandler.HandleList)
				r.Post("/", deps.AccountHandler.HandleCreate)
				r.Get("/{id}", deps.AccountHandler.HandleGet)
				r.Patch("/{id}", deps.AccountHandler.HandleUpdate)
				r.Delete("/{id}", deps.AccountHandler.HandleDelete)
				r.Post("/{id}/balance", deps.AccountHandler.HandleUpdateBalance)
			})

			r.Route("/links", func(r chi.Router) {
				r.Get("/", deps.LinkHandler.HandleList)
				r.Post("/plaid/link-token", deps.LinkHandler.HandlePlaidLinkToken)
				r.Post("/plaid/exchange", deps.LinkHandler.HandlePlaidExchange)
				r.Post("/crypto", deps.LinkHandler.HandleCryptoWallet)
				r.Delete("/{id}", deps.LinkHandler.HandleDelete)
				r.Post("/{id}/refresh", deps.LinkHandler.HandleRefresh)
			})

			r.Get("/balances", deps.BalanceHandler.HandleQuery)
			r.Get("/dashboard", deps.BalanceHandler.HandleDashboard)

			r.Get("/exchange-rates/convert", deps.ExchangeRateHandler.HandleConvert)
			r.Post("/exchange-rates/backfill", deps.ExchangeRateHandler.HandleBackfill)

			r.Get("/transactions", deps.TransactionHandler.HandleList)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", deps.NotificationHandler.HandleList)
				r.Post("/devices", deps.NotificationHandler.HandleRegisterDevice)
				r.Get("/preferences", deps.NotificationHandler.HandleGetPreferences)
				r.Patch("/preferences", deps.NotificationHandler.HandleUpdatePreferences)
				r.Put("/{id}", deps.NotificationHandler.HandleOpen)
			})
		})
	})

	return r
}
