package riya

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/riya-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/riya-bot/internal/http/handlers/payment/paylink"
	"github.com/magabrotheeeer/riya-bot/internal/http/handlers/payment/paymentwebhook"
	tghandler "github.com/magabrotheeeer/riya-bot/internal/http/handlers/telegram"
	"github.com/magabrotheeeer/riya-bot/internal/http/middlewarectx"
)

// Routes зависимости HTTP-маршрутов.
type Routes struct {
	PaymentService paymentwebhook.Service
	PayLinks       paylink.Service
	Tokens         paylink.TokenParser
	WebhookSecret  string
	// Telegram равен nil в режиме long polling.
	Telegram       tghandler.Dispatcher
	TelegramSecret string
	// WebhookLimiter ограничивает частоту запросов к вебхуку оплаты.
	WebhookLimiter *rate.Limiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Routes) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pay/{token}", paylink.New(logger, deps.Tokens, deps.PayLinks).ServeHTTP)

		r.Group(func(r chi.Router) {
			if deps.WebhookLimiter != nil {
				r.Use(middlewarectx.RateLimitMiddleware(logger, deps.WebhookLimiter))
			}
			r.Post("/payments/webhook", paymentwebhook.New(logger, deps.PaymentService, deps.WebhookSecret).ServeHTTP)
		})
	})

	if deps.Telegram != nil {
		r.With(middlewarectx.SecretTokenMiddleware(logger, middlewarectx.TelegramSecretHeader, deps.TelegramSecret)).
			Post(TelegramWebhookPath, tghandler.New(logger, deps.Telegram))
	}
}
