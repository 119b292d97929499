// Package chat обрабатывает входящие сообщения пользователей: лимит частоты,
// модерация, шлюз доступа, генерация ответа и журнал переписки, а также
// команды бота.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/models"
	"github.com/magabrotheeeer/riya-bot/internal/services/gate"
)

// Message входящее сообщение, независимое от транспорта.
type Message struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
	Command  string // Команда без "/", пусто для обычного текста
	Args     string // Аргументы команды
}

// Button кнопка-ссылка под сообщением.
type Button struct {
	Text string
	URL  string
}

// Gate шлюз доступа.
type Gate interface {
	CheckAndConsume(ctx context.Context, userID int64) (gate.Decision, error)
	RecordStrike(ctx context.Context, userID int64) (gate.StrikeLevel, error)
	IsMuted(ctx context.Context, userID int64) (bool, error)
	ResetModeration(ctx context.Context, userID int64) error
	Status(ctx context.Context, userID int64) (models.UserState, error)
	FreeLimit() int
	Now() time.Time
}

// Moderator фильтр запрещённых слов.
type Moderator interface {
	Scan(text string) bool
}

// Detector определитель языка.
type Detector interface {
	Detect(text string) string
}

// Generator генератор ответов.
type Generator interface {
	Generate(ctx context.Context, text, lang string) (string, error)
}

// Sender отправляет сообщения пользователю.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, buttons []Button) error
	SendTyping(ctx context.Context, chatID int64) error
}

// Payments каталог тарифов, ссылки на оплату и ручная выдача доступа.
type Payments interface {
	Plans() []models.Plan
	PayURL(userID int64, planKey string) (string, error)
	AdminGrant(ctx context.Context, userID int64, planKey string) (models.Plan, error)
}

// Transcripts журнал переписки. Log не должен блокировать.
type Transcripts interface {
	Log(entry models.TranscriptEntry)
}

// Options параметры обработчика.
type Options struct {
	AdminID       int64
	RatePerSecond float64
	RateBurst     int
}

// Handler обработчик сообщений.
type Handler struct {
	log         *slog.Logger
	gate        Gate
	moderator   Moderator
	detector    Detector
	generator   Generator
	sender      Sender
	payments    Payments
	transcripts Transcripts
	limiter     *userLimiter
	adminID     int64
	commands    map[string]command
}

// New создаёт обработчик сообщений.
func New(
	log *slog.Logger,
	g Gate,
	moderator Moderator,
	detector Detector,
	generator Generator,
	sender Sender,
	payments Payments,
	transcripts Transcripts,
	opts Options,
) *Handler {
	h := &Handler{
		log:         log,
		gate:        g,
		moderator:   moderator,
		detector:    detector,
		generator:   generator,
		sender:      sender,
		payments:    payments,
		transcripts: transcripts,
		limiter:     newUserLimiter(opts.RatePerSecond, opts.RateBurst),
		adminID:     opts.AdminID,
	}
	h.commands = h.commandTable()
	return h
}

// Handle обрабатывает одно входящее сообщение. Ошибки логируются, наружу не возвращаются.
func (h *Handler) Handle(ctx context.Context, msg Message) {
	const op = "chat.Handle"
	log := h.log.With(slog.String("op", op), sl.UserID(msg.UserID))

	if msg.Command != "" {
		h.handleCommand(ctx, log, msg)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		h.send(ctx, log, msg.ChatID, textTextOnly)
		return
	}

	if !h.limiter.Allow(msg.UserID) {
		log.Debug("user rate limited")
		h.send(ctx, log, msg.ChatID, textSlowDown)
		return
	}

	muted, err := h.gate.IsMuted(ctx, msg.UserID)
	if err != nil {
		log.Error("failed to check mute", sl.Err(err))
		h.send(ctx, log, msg.ChatID, textFallback)
		return
	}
	if muted {
		h.sendMuted(ctx, log, msg)
		return
	}

	if h.moderator.Scan(msg.Text) {
		h.handleViolation(ctx, log, msg)
		return
	}

	decision, err := h.gate.CheckAndConsume(ctx, msg.UserID)
	if err != nil {
		log.Error("gate check failed", sl.Err(err))
		h.send(ctx, log, msg.ChatID, textFallback)
		return
	}
	if !decision.Allowed {
		switch decision.Reason {
		case gate.ReasonMuted:
			h.sendMuted(ctx, log, msg)
		default:
			log.Info("paywall shown")
			h.sendPaywall(ctx, log, msg.ChatID, msg.UserID, textPaywall)
		}
		return
	}

	h.reply(ctx, log, msg, decision)
}

// reply генерирует ответ. После разрешения шлюза пользователь всегда получает
// хоть какой-то ответ: при сбое генератора отправляется запасной текст.
func (h *Handler) reply(ctx context.Context, log *slog.Logger, msg Message, decision gate.Decision) {
	if err := h.sender.SendTyping(ctx, msg.ChatID); err != nil {
		log.Debug("failed to send typing action", sl.Err(err))
	}

	lang := h.detector.Detect(msg.Text)
	text, err := h.generator.Generate(ctx, msg.Text, lang)
	if err != nil {
		log.Warn("reply generation failed, sending fallback", sl.Err(err))
		text = textFallback
	}
	h.send(ctx, log, msg.ChatID, text)

	if h.transcripts != nil {
		h.transcripts.Log(models.TranscriptEntry{
			Time:         h.gate.Now(),
			UserID:       msg.UserID,
			MessageCount: decision.MessageCount,
			Lang:         lang,
			UserMessage:  msg.Text,
			Reply:        text,
		})
	}
}

func (h *Handler) handleViolation(ctx context.Context, log *slog.Logger, msg Message) {
	lvl, err := h.gate.RecordStrike(ctx, msg.UserID)
	if err != nil {
		log.Error("failed to record strike", sl.Err(err))
		h.send(ctx, log, msg.ChatID, textStrike1)
		return
	}
	log.Info("moderation strike", slog.Int("strikes", lvl.Count), slog.Bool("muted", lvl.Muted))
	switch {
	case lvl.Muted:
		h.send(ctx, log, msg.ChatID, mutedText(lvl.MutedUntil))
	case lvl.Count == 1:
		h.send(ctx, log, msg.ChatID, textStrike1)
	default:
		h.send(ctx, log, msg.ChatID, textStrike2)
	}
}

func (h *Handler) sendMuted(ctx context.Context, log *slog.Logger, msg Message) {
	st, err := h.gate.Status(ctx, msg.UserID)
	if err != nil {
		h.send(ctx, log, msg.ChatID, textMuted)
		return
	}
	h.send(ctx, log, msg.ChatID, mutedText(st.Moderation.MutedUntil))
}

func mutedText(until *time.Time) string {
	if until == nil {
		return textMuted
	}
	return fmt.Sprintf(textMutedUntil, until.UTC().Format("02 Jan 15:04 MST"))
}

func (h *Handler) sendPaywall(ctx context.Context, log *slog.Logger, chatID, userID int64, text string) {
	plans := h.payments.Plans()
	buttons := make([]Button, 0, len(plans))
	for _, p := range plans {
		u, err := h.payments.PayURL(userID, p.Key)
		if err != nil {
			log.Error("failed to build pay url", slog.String("plan", p.Key), sl.Err(err))
			continue
		}
		buttons = append(buttons, Button{Text: fmt.Sprintf(textButtonUnlock, p.Title, p.Price()), URL: u})
	}
	if len(buttons) == 0 {
		h.send(ctx, log, chatID, textPayLinkFailed)
		return
	}
	if err := h.sender.SendButtons(ctx, chatID, text, buttons); err != nil {
		log.Error("failed to send paywall", sl.Err(err))
	}
}

func (h *Handler) send(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	if err := h.sender.SendText(ctx, chatID, text); err != nil {
		log.Error("failed to send message", sl.Err(err))
	}
}
