package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
)

// ErrDrop возвращается обработчиком, если сообщение нельзя обработать
// никогда (например, битый JSON): оно подтверждается без повторной доставки.
var ErrDrop = errors.New("drop message")

// Consumer источник доставок. *amqp.Channel ему удовлетворяет.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// ConsumerMessage читает очередь queueName и обрабатывает не более workers
// сообщений одновременно. Ошибка обработчика возвращает сообщение в очередь.
// Возвращённый канал закрывается, когда все обработчики завершились.
func ConsumerMessage(
	ctx context.Context,
	ch Consumer,
	queueName string,
	workers int,
	log *slog.Logger,
	handler func(context.Context, []byte) error,
) (<-chan struct{}, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if workers < 1 {
		workers = 1
	}

	done := make(chan struct{})
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	go func() {
		defer func() {
			wg.Wait()
			close(done)
		}()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer func() {
						<-sem
						wg.Done()
					}()
					settle(ctx, log, d, handler)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done, nil
}

func settle(ctx context.Context, log *slog.Logger, d amqp.Delivery, handler func(context.Context, []byte) error) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
	case errors.Is(err, ErrDrop):
		log.Warn("dropping message", slog.Uint64("delivery_tag", d.DeliveryTag), sl.Err(err))
	default:
		log.Error("failed to handle message, requeueing", slog.Uint64("delivery_tag", d.DeliveryTag), sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
