// Package paylink обрабатывает переход пользователя по ссылке из кнопки пейвола:
// проверяет подписанный токен, создаёт ссылку у провайдера и перенаправляет на неё.
package paylink

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/riya-bot/internal/http/response"
	"github.com/magabrotheeeer/riya-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/services/payment"
)

// TokenParser проверяет токен ссылки на оплату.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.PayLinkClaims, error)
}

// Service определяет интерфейс для работы с платежами.
type Service interface {
	CreatePaymentLink(ctx context.Context, userID int64, planKey string) (string, error)
}

// Handler обрабатывает GET /pay/{token}.
type Handler struct {
	log            *slog.Logger // Логгер для записи информации и ошибок
	tokens         TokenParser
	paymentService Service
	validate       *validator.Validate // Валидатор данных из токена
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, tokens TokenParser, ps Service) *Handler {
	return &Handler{
		log:            log,
		tokens:         tokens,
		paymentService: ps,
		validate:       validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.paylink"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, err := h.tokens.ParseToken(chi.URLParam(r, "token"))
	if err != nil {
		log.Warn("invalid pay link token", sl.Err(err))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("link is invalid or expired"))
		return
	}

	if err := h.validate.Struct(claims); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			log.Error("validation failed", sl.Err(err))
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid link"))
		return
	}

	shortURL, err := h.paymentService.CreatePaymentLink(r.Context(), claims.UserID, claims.Plan)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownPlan) {
			log.Warn("pay link for unknown plan", sl.UserID(claims.UserID), slog.String("plan", claims.Plan))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("plan is no longer available"))
			return
		}
		log.Error("failed to create payment link", sl.UserID(claims.UserID), sl.Err(err))
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment provider error"))
		return
	}

	log.Info("redirecting to payment page", sl.UserID(claims.UserID), slog.String("plan", claims.Plan))
	http.Redirect(w, r, shortURL, http.StatusSeeOther)
}
