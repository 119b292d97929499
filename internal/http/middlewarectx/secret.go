package middlewarectx

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/riya-bot/internal/http/response"
)

// TelegramSecretHeader заголовок, в котором Telegram передаёт secret_token вебхука.
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// SecretTokenMiddleware пропускает запрос, только если заголовок header
// совпадает с secret. Пустой secret отклоняет все запросы.
func SecretTokenMiddleware(log *slog.Logger, header, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SecretToken"
			got := r.Header.Get(header)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				log.Warn("rejected request with bad secret token",
					slog.String("op", op),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
