// Package telegram связывает Bot API Telegram с обработчиком сообщений:
// получение обновлений (long polling или вебхук), их преобразование,
// ограниченная параллельная обработка и отправка ответов.
package telegram

import (
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API подмножество методов BotAPI, которое использует пакет.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// NewBot авторизует бота по токену. Пустой endpoint означает официальный API.
func NewBot(token, endpoint string, client *http.Client) (*tgbotapi.BotAPI, error) {
	const op = "telegram.NewBot"
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bot, nil
}

// SetWebhook регистрирует адрес вебхука вместе с секретом, который Telegram
// будет присылать в заголовке X-Telegram-Bot-Api-Secret-Token.
func SetWebhook(api API, url, secret string) error {
	const op = "telegram.SetWebhook"
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteWebhook снимает вебхук, чтобы заработал getUpdates.
func DeleteWebhook(api API) error {
	const op = "telegram.DeleteWebhook"
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
