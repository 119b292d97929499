// Package telegram принимает обновления Telegram в режиме вебхука.
package telegram

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/riya-bot/internal/http/response"
	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
)

// Dispatcher передаёт обновление на обработку.
type Dispatcher interface {
	Dispatch(ctx context.Context, u tgbotapi.Update) bool
}

// New возвращает обработчик POST-запросов от Telegram. Ответ отдаётся сразу,
// обработка сообщения продолжается в фоне.
func New(log *slog.Logger, dispatcher Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.telegram.update"
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var u tgbotapi.Update
		if err := render.DecodeJSON(r.Body, &u); err != nil {
			log.Error("failed to decode update", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode update"))
			return
		}

		if !dispatcher.Dispatch(context.WithoutCancel(r.Context()), u) {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("shutting down"))
			return
		}
		render.JSON(w, r, response.OK())
	}
}
