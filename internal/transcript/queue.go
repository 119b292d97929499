package transcript

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/riya-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/riya-bot/internal/models"
)

// QueueSink публикует строки журнала в RabbitMQ; запись в таблицу
// выполняет отдельный процесс transcript-writer.
type QueueSink struct {
	pub rabbitmq.Publisher
}

// NewQueueSink создаёт приёмник поверх канала RabbitMQ.
func NewQueueSink(pub rabbitmq.Publisher) *QueueSink {
	return &QueueSink{pub: pub}
}

// Append публикует запись.
func (q *QueueSink) Append(_ context.Context, entry models.TranscriptEntry) error {
	return rabbitmq.PublishMessage(q.pub, rabbitmq.TranscriptExchange, rabbitmq.TranscriptRoutingKey, entry)
}

// DeliveryHandler возвращает обработчик сообщений очереди, который
// пишет строку в sink. Битое сообщение подтверждается и отбрасывается,
// ошибка sink возвращает сообщение в очередь.
func DeliveryHandler(sink Sink) func(ctx context.Context, body []byte) error {
	return func(ctx context.Context, body []byte) error {
		const op = "transcript.DeliveryHandler"
		var entry models.TranscriptEntry
		if err := json.Unmarshal(body, &entry); err != nil {
			return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDrop, err)
		}
		if entry.UserID == 0 {
			return fmt.Errorf("%s: %w: missing user_id", op, rabbitmq.ErrDrop)
		}
		if err := sink.Append(ctx, entry); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
}
