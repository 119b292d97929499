package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/riya-bot/internal/services/chat"
)

// ToMessage извлекает из обновления входящее сообщение. Обновления без
// сообщения от пользователя (правки, каналы, служебные) возвращают false.
// Сообщения без текста (фото, стикеры) превращаются в сообщение с пустым текстом.
func ToMessage(u tgbotapi.Update) (chat.Message, bool) {
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil || m.From.IsBot {
		return chat.Message{}, false
	}
	msg := chat.Message{
		ChatID:   m.Chat.ID,
		UserID:   m.From.ID,
		Username: m.From.UserName,
		Text:     m.Text,
	}
	if m.IsCommand() {
		msg.Command = strings.ToLower(m.Command())
		msg.Args = strings.TrimSpace(m.CommandArguments())
		msg.Text = ""
	}
	return msg, true
}
