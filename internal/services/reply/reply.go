// Package reply генерирует ответы бота через API чат-комплишенов.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/magabrotheeeer/riya-bot/internal/metrics"
)

// DefaultPersona системная роль по умолчанию.
const DefaultPersona = "You're Riya, a sassy, emotional virtual girlfriend from Delhi. " +
	"You flirt, tease, and sometimes roast. Keep it spicy and desi. Respond only as her."

// ErrEmptyReply возвращается, если API ответил без текста.
var ErrEmptyReply = errors.New("empty completion")

var styleHints = map[string]string{
	"hi":       "Reply in Hindi using Devanagari script.",
	"hinglish": "Reply in Hinglish: Hindi words written in Latin script mixed with English.",
	"en":       "Reply in casual English with a little desi flavour.",
}

// Options параметры генератора.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Persona string
}

// Generator обёртка над клиентом go-openai.
type Generator struct {
	client  *openai.Client
	log     *slog.Logger
	model   string
	timeout time.Duration
	persona string
}

// New создаёт генератор ответов.
func New(log *slog.Logger, opts Options) *Generator {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT3Dot5Turbo
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Persona == "" {
		opts.Persona = DefaultPersona
	}
	return &Generator{
		client:  openai.NewClientWithConfig(cfg),
		log:     log,
		model:   opts.Model,
		timeout: opts.Timeout,
		persona: opts.Persona,
	}
}

// Generate возвращает ответ на сообщение пользователя. Ошибка означает
// временный сбой внешнего API; повторов нет, вызывающий отправляет запасной текст.
func (g *Generator) Generate(ctx context.Context, text, lang string) (string, error) {
	const op = "reply.Generate"

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	system := g.persona
	if hint, ok := styleHints[lang]; ok {
		system += " " + hint
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	metrics.ReplyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ReplyFailures.Inc()
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		metrics.ReplyFailures.Inc()
		return "", fmt.Errorf("%s: %w", op, ErrEmptyReply)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		metrics.ReplyFailures.Inc()
		return "", fmt.Errorf("%s: %w", op, ErrEmptyReply)
	}
	g.log.Debug("reply generated",
		slog.String("op", op),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("took", time.Since(start)),
	)
	return out, nil
}
