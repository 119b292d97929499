package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdatesSource источник обновлений long polling.
type UpdatesSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller получает обновления через getUpdates и передаёт их диспетчеру.
type Poller struct {
	source     UpdatesSource
	dispatcher *Dispatcher
	log        *slog.Logger
	timeout    int
}

// NewPoller создаёт поллер; timeout в секундах для long polling.
func NewPoller(source UpdatesSource, dispatcher *Dispatcher, log *slog.Logger, timeout int) *Poller {
	return &Poller{source: source, dispatcher: dispatcher, log: log, timeout: timeout}
}

// Run читает обновления до отмены ctx, затем дожидается обработчиков.
func (p *Poller) Run(ctx context.Context) {
	const op = "telegram.Poller.Run"
	log := p.log.With(slog.String("op", op))

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}
	updates := p.source.GetUpdatesChan(cfg)
	log.Info("long polling started")

	defer func() {
		p.source.StopReceivingUpdates()
		p.dispatcher.Wait()
		log.Info("long polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if !p.dispatcher.Dispatch(ctx, u) {
				return
			}
		}
	}
}
