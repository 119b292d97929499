// Package transcriptwriter читает строки журнала переписки из RabbitMQ и
// дописывает их в Google-таблицу.
package transcriptwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/riya-bot/internal/config"
	"github.com/magabrotheeeer/riya-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/transcript"
)

var errConsumerStopped = errors.New("delivery channel closed by broker")

// App представляет приложение transcript-writer.
type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	sink    transcript.Sink
	workers int
	logger  *slog.Logger
}

// New подключается к брокеру и к таблице.
func New(ctx context.Context, cfg *config.WriterConfig, logger *slog.Logger) (*App, error) {
	const op = "app.transcriptwriter.New"
	tc := cfg.Transcript

	sink, err := transcript.NewSheets(ctx, tc.SpreadsheetID, tc.Range, tc.CredentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.TranscriptExchange, rabbitmq.TranscriptQueues(), tc.Workers)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:    conn,
		ch:      ch,
		sink:    sink,
		workers: tc.Workers,
		logger:  logger,
	}, nil
}

// Run обрабатывает очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	const op = "app.transcriptwriter.Run"
	done, err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.TranscriptQueue, a.workers, a.logger,
		transcript.DeliveryHandler(a.sink))
	if err != nil {
		closeResources(a.ch, a.conn, a.logger)
		return fmt.Errorf("%s: %w", op, err)
	}
	a.logger.Info("transcript writer consuming", slog.String("queue", rabbitmq.TranscriptQueue))

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down transcript writer")
		<-done
	case <-done:
		closeResources(a.ch, a.conn, a.logger)
		return fmt.Errorf("%s: %w", op, errConsumerStopped)
	}
	closeResources(a.ch, a.conn, a.logger)
	return nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}
