package riya

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/riya-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/riya-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/riya-bot/internal/services/payment"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type stubPayments struct{}

func (stubPayments) HandleEvent(context.Context, string, *payment.Event) (payment.Outcome, error) {
	return payment.OutcomeIgnored, nil
}

func (stubPayments) CreatePaymentLink(context.Context, int64, string) (string, error) {
	return "https://rzp.io/i/abc", nil
}

type countingDispatcher struct {
	calls int
}

func (d *countingDispatcher) Dispatch(context.Context, tgbotapi.Update) bool {
	d.calls++
	return true
}

func newRouter(t *testing.T, tg *countingDispatcher) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	deps := Routes{
		PaymentService: stubPayments{},
		PayLinks:       stubPayments{},
		Tokens:         jwt.NewJWTMaker("link-secret", 0),
		WebhookSecret:  "whsec",
	}
	if tg != nil {
		deps.Telegram = tg
		deps.TelegramSecret = "tgsecret"
	}
	RegisterRoutes(r, newNoopLogger(), deps)
	return r
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name     string
		webhook  bool
		method   string
		path     string
		body     string
		header   map[string]string
		wantCode int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantCode: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantCode: http.StatusOK},
		{name: "payment webhook without signature", method: http.MethodPost, path: "/api/v1/payments/webhook",
			body: `{"event":"payment.captured"}`, wantCode: http.StatusBadRequest},
		{name: "pay link with garbage token", method: http.MethodGet, path: "/api/v1/pay/garbage", wantCode: http.StatusForbidden},
		{name: "telegram route absent in polling mode", method: http.MethodPost, path: TelegramWebhookPath,
			body: `{"update_id":1}`, wantCode: http.StatusNotFound},
		{name: "telegram webhook with wrong secret", webhook: true, method: http.MethodPost, path: TelegramWebhookPath,
			body: `{"update_id":1}`, header: map[string]string{middlewarectx.TelegramSecretHeader: "nope"},
			wantCode: http.StatusUnauthorized},
		{name: "telegram webhook", webhook: true, method: http.MethodPost, path: TelegramWebhookPath,
			body: `{"update_id":1}`, header: map[string]string{middlewarectx.TelegramSecretHeader: "tgsecret"},
			wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tg *countingDispatcher
			if tt.webhook {
				tg = &countingDispatcher{}
			}
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()

			newRouter(t, tg).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.webhook && tt.wantCode == http.StatusOK {
				require.NotNil(t, tg)
				assert.Equal(t, 1, tg.calls)
			}
		})
	}
}
