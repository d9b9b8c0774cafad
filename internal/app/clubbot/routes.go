// Package clubbot собирает приложение бота клуба: хранилище, кеш,
// брокер сообщений, сервисы, планировщик и административный HTTP API.
package clubbot

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/x10club/club-bot/internal/http-server/handlers/auth/login"
	broadcastcreate "github.com/x10club/club-bot/internal/http-server/handlers/broadcast/create"
	"github.com/x10club/club-bot/internal/http-server/handlers/event/eventcreate"
	"github.com/x10club/club-bot/internal/http-server/handlers/health"
	"github.com/x10club/club-bot/internal/http-server/handlers/payment/confirm"
	"github.com/x10club/club-bot/internal/http-server/handlers/payment/pendinglist"
	"github.com/x10club/club-bot/internal/http-server/handlers/stats/exportusers"
	"github.com/x10club/club-bot/internal/http-server/handlers/stats/report"
	"github.com/x10club/club-bot/internal/http-server/handlers/user/userinfo"
	"github.com/x10club/club-bot/internal/http-server/mware"
	"github.com/x10club/club-bot/internal/lib/jwt"
)

// RegisterRoutes регистрирует все маршруты административного API.
func (a *App) RegisterRoutes(r chi.Router, logger *slog.Logger, maker jwt.Maker, adminUser, adminPasswordHash string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/login", login.New(logger, maker, adminUser, adminPasswordHash).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(mware.JWTMiddleware(maker, logger))
			r.Use(mware.RateLimitMiddleware(logger))
			r.Post("/payments/{id}/confirm", confirm.New(logger, a.payments).ServeHTTP)
			r.Get("/payments/pending", pendinglist.New(logger, a.payments).ServeHTTP)
			r.Get("/users/{id}", userinfo.New(logger, a.db, a.subscriptions, a.referrals).ServeHTTP)
			r.Get("/users/export", exportusers.New(logger, a.stats).ServeHTTP)
			r.Get("/stats", report.New(logger, a.stats).ServeHTTP)
			r.Post("/broadcasts", broadcastcreate.New(logger, a.broadcasts).ServeHTTP)
			r.Post("/events", eventcreate.New(logger, a.events).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", health.New(logger, a.db).ServeHTTP)
}
