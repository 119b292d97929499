// Package paymentwebhook принимает подписанные события платёжного провайдера.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/riya-bot/internal/http/response"
	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/metrics"
	"github.com/magabrotheeeer/riya-bot/internal/services/payment"
)

// Заголовки провайдера.
const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"
)

// StatusInvalidSignature тело ответа при неверной подписи.
const StatusInvalidSignature = "invalid signature"

const maxBodyBytes = 1 << 20

// Service определяет интерфейс обработки событий оплаты.
type Service interface {
	HandleEvent(ctx context.Context, eventID string, ev *payment.Event) (payment.Outcome, error)
}

// Handler обработчик вебхука оплаты.
type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создаёт обработчик. Пустой секрет недопустим и проверяется при загрузке конфига.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// VerifySignature проверяет HMAC-SHA256 (hex) от сырого тела запроса.
// Тело нельзя разбирать и сериализовать заново до проверки.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		metrics.WebhookEvents.WithLabelValues("bad_request").Inc()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	if !VerifySignature(body, r.Header.Get(SignatureHeader), h.webhookSecret) {
		log.Warn("security: invalid or missing webhook signature",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("body_len", len(body)),
		)
		metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Status(StatusInvalidSignature))
		return
	}

	var ev payment.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Warn("signed webhook payload is not valid json", sl.Err(err))
		metrics.WebhookEvents.WithLabelValues(string(payment.OutcomeIgnored)).Inc()
		render.JSON(w, r, response.Status(string(payment.OutcomeIgnored)))
		return
	}

	outcome, err := h.service.HandleEvent(r.Context(), r.Header.Get(EventIDHeader), &ev)
	if err != nil {
		log.Error("failed to process webhook event", sl.Err(err))
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	metrics.WebhookEvents.WithLabelValues(string(outcome)).Inc()
	log.Info("webhook processed", slog.String("event", ev.Event), slog.String("outcome", string(outcome)))
	render.JSON(w, r, response.Status(string(outcome)))
}
