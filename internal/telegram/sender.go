package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/riya-bot/internal/services/chat"
)

// MaxMessageLength предел длины одного сообщения Telegram в символах.
const MaxMessageLength = 4096

const maxSendAttempts = 3

// Sender отправляет сообщения через Bot API. При ответе 429 ждёт
// retry_after и повторяет запрос.
type Sender struct {
	api  API
	log  *slog.Logger
	wait func(ctx context.Context, d time.Duration) error
}

// NewSender создаёт отправителя.
func NewSender(api API, log *slog.Logger) *Sender {
	return &Sender{api: api, log: log, wait: sleepCtx}
}

// SendText отправляет текст, разбивая длинные ответы на части.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	const op = "telegram.SendText"
	for _, part := range splitText(text, MaxMessageLength) {
		if err := s.send(ctx, tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// SendButtons отправляет текст с inline-кнопками-ссылками, по одной в ряд.
func (s *Sender) SendButtons(ctx context.Context, chatID int64, text string, buttons []chat.Button) error {
	const op = "telegram.SendButtons"
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL)))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendTyping показывает индикатор "печатает".
func (s *Sender) SendTyping(ctx context.Context, chatID int64) error {
	const op = "telegram.SendTyping"
	if err := s.send(ctx, tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Notify пишет пользователю в личный чат, идентификатор чата совпадает с userID.
func (s *Sender) Notify(ctx context.Context, userID int64, text string) error {
	return s.SendText(ctx, userID, text)
}

func (s *Sender) send(ctx context.Context, c tgbotapi.Chattable) error {
	var err error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if _, err = s.api.Request(c); err == nil {
			return nil
		}
		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 || attempt == maxSendAttempts {
			return err
		}
		delay := time.Duration(apiErr.RetryAfter) * time.Second
		s.log.Warn("telegram rate limit hit, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_after", delay),
		)
		if werr := s.wait(ctx, delay); werr != nil {
			return werr
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// splitText режет текст на части не длиннее limit символов, по возможности
// по переводу строки или пробелу.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if i := lastIndexRune(runes[:limit], '\n'); i > limit/2 {
			cut = i + 1
		} else if i := lastIndexRune(runes[:limit], ' '); i > limit/2 {
			cut = i + 1
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), " \n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
