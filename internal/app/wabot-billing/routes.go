// Package wabotbilling предоставляет маршруты основного процесса биллинга.
package wabotbilling

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/brightmoyo/wabot-billing/internal/bot"
	"github.com/brightmoyo/wabot-billing/internal/http/handlers/admin/account"
	"github.com/brightmoyo/wabot-billing/internal/http/handlers/admin/forceactivate"
	"github.com/brightmoyo/wabot-billing/internal/http/handlers/admin/login"
	"github.com/brightmoyo/wabot-billing/internal/http/handlers/admin/override"
	"github.com/brightmoyo/wabot-billing/internal/http/handlers/admin/pending"
	ratehandler "github.com/brightmoyo/wabot-billing/internal/http/handlers/admin/rate"
	"github.com/brightmoyo/wabot-billing/internal/http/handlers/webhook/health"
	"github.com/brightmoyo/wabot-billing/internal/http/handlers/webhook/message"
	"github.com/brightmoyo/wabot-billing/internal/http/middlewarectx"
	"github.com/brightmoyo/wabot-billing/internal/lib/jwt"
	"github.com/brightmoyo/wabot-billing/internal/services/adminauth"
	"github.com/brightmoyo/wabot-billing/internal/services/entitlement"
	"github.com/brightmoyo/wabot-billing/internal/services/lifecycle"
	"github.com/brightmoyo/wabot-billing/internal/services/pricing"
)

// RouteDeps зависимости маршрутов основного процесса.
type RouteDeps struct {
	Maker      jwt.Maker
	Auth       *adminauth.Service
	Lifecycle  *lifecycle.Service
	Store      *entitlement.Store
	Engine     *pricing.Engine
	RateHolder *pricing.RateHolder
	Bot        *bot.Router
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps RouteDeps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	webhookLimiter := rate.NewLimiter(20, 40)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/admin/login", login.New(logger, deps.Auth).ServeHTTP)
		r.Get("/health", health.New(logger).ServeHTTP)

		// Вебхук шлюза сообщений, без JWT, но под лимитером
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(webhookLimiter, logger))
			r.Post("/webhook/message", message.New(logger, deps.Bot).ServeHTTP)
		})

		// Группа админки с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Maker, logger))
			r.Post("/admin/activate", forceactivate.New(logger, deps.Lifecycle).ServeHTTP)
			r.Post("/admin/override", override.New(logger, deps.Engine).ServeHTTP)
			r.Get("/admin/rate", ratehandler.New(logger, deps.RateHolder).Get)
			r.Post("/admin/rate", ratehandler.New(logger, deps.RateHolder).Set)
			r.Get("/admin/payments/pending", pending.New(logger, deps.Lifecycle).List)
			r.Get("/admin/payments/stats", pending.New(logger, deps.Lifecycle).Stats)
			r.Get("/admin/accounts/{phone}", account.New(logger, deps.Store).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
