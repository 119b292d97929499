package telegram

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/metrics"
	"github.com/magabrotheeeer/riya-bot/internal/services/chat"
)

// MessageHandler обработчик входящих сообщений.
type MessageHandler interface {
	Handle(ctx context.Context, msg chat.Message)
}

// Dispatcher обрабатывает обновления параллельно, не более workers одновременно.
// Когда все слоты заняты, Dispatch ждёт освобождения.
type Dispatcher struct {
	api     API
	handler MessageHandler
	log     *slog.Logger
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher создаёт диспетчер. workers меньше единицы трактуется как 1.
func NewDispatcher(api API, handler MessageHandler, log *slog.Logger, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		api:     api,
		handler: handler,
		log:     log,
		sem:     make(chan struct{}, workers),
	}
}

// Dispatch запускает обработку обновления. Возвращает false, если ctx
// завершился раньше, чем освободился слот.
func (d *Dispatcher) Dispatch(ctx context.Context, u tgbotapi.Update) bool {
	if u.CallbackQuery != nil {
		d.answerCallback(u.CallbackQuery)
		return true
	}
	msg, ok := ToMessage(u)
	if !ok {
		d.log.Debug("skipping update", slog.Int("update_id", u.UpdateID))
		return true
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	d.wg.Add(1)
	metrics.UpdatesInFlight.Inc()
	go func() {
		defer func() {
			metrics.UpdatesInFlight.Dec()
			<-d.sem
			d.wg.Done()
		}()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("panic while handling update", slog.Any("panic", r), sl.UserID(msg.UserID))
			}
		}()
		d.handler.Handle(context.WithoutCancel(ctx), msg)
	}()
	return true
}

// Wait ждёт завершения всех запущенных обработчиков.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) answerCallback(q *tgbotapi.CallbackQuery) {
	if _, err := d.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		d.log.Warn("failed to answer callback query", sl.Err(err))
	}
}
